package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkingovr/portal/api"
	"github.com/tkingovr/portal/internal/routes"
)

const sampleConfig = "../../../testdata/portal.yaml"

// run executes the root command with flag values reset to their defaults.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, verbose, logFormat, logLevel = "", false, "text", "error"
	checkMethod, checkPath, checkHost, checkHeaders, checkBody = "GET", "/", "", nil, ""
	routesOutput = "table"

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func check(t *testing.T, args ...string) api.CheckResponse {
	t.Helper()
	out, err := run(t, append([]string{"check", "-c", sampleConfig}, args...)...)
	require.NoError(t, err)
	var resp api.CheckResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "portal dev\n", out)
}

func TestCheck_Stars(t *testing.T) {
	resp := check(t, "--path", "/stars", "--host", "127.0.0.1:3030", "-H", "Accept: */*")
	assert.Equal(t, api.OutcomeMatched, resp.Outcome)
	assert.Equal(t, "accepting stars on 127.0.0.1:3030\n", resp.Body)

	resp = check(t, "--path", "/stars", "--host", "127.0.0.1:3030", "-H", "Accept: text/html")
	assert.Equal(t, api.OutcomeRejected, resp.Outcome)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "header_mismatch", resp.Kind)
}

func TestCheck_AssetsAndIndex(t *testing.T) {
	resp := check(t, "--path", "/assets/site.css")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, "font-family")

	resp = check(t, "--path", "/")
	assert.Equal(t, "Index page\n", resp.Body)

	resp = check(t, "--path", "/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestCheck_Policy(t *testing.T) {
	resp := check(t, "--path", "/users/7", "-H", "User-Agent: sqlmap/1.7")
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, "block-scanners", resp.Field)

	resp = check(t, "--path", "/users/7", "-H", "User-Agent: curl/8")
	assert.JSONEq(t, `{"id": 7}`, resp.Body)
}

func TestCheck_BadHeader(t *testing.T) {
	_, err := run(t, "check", "-c", sampleConfig, "-H", "no-colon")
	assert.Error(t, err)
}

func TestRoutes_JSON(t *testing.T) {
	out, err := run(t, "routes", "-c", sampleConfig, "-o", "json")
	require.NoError(t, err)

	var infos []routes.Info
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 6)
	assert.Equal(t, "assets", infos[0].Name)
	assert.True(t, strings.HasPrefix(infos[0].Action, "dir "), infos[0].Action)
	assert.Equal(t, []string{"id"}, infos[2].Captures)
	assert.Equal(t, []string{"policy", "rate_limit 60/1m0s"}, infos[2].Guards)
}

func TestRoutes_Table(t *testing.T) {
	out, err := run(t, "routes", "-c", sampleConfig, "-o", "table")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, out, "policy,secrets")
}

func TestRoutes_UnknownFormat(t *testing.T) {
	_, err := run(t, "routes", "-c", sampleConfig, "-o", "xml")
	assert.Error(t, err)
}

func TestRoutes_DefaultConfig(t *testing.T) {
	out, err := run(t, "routes", "-c", "", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "index")
}

func TestBadLogFormat(t *testing.T) {
	_, err := run(t, "version", "--log-format", "xml")
	assert.Error(t, err)
}
