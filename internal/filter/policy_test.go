package filter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkingovr/portal/api"
	"github.com/tkingovr/portal/internal/policy"
)

type failingEngine struct{}

func (failingEngine) Evaluate(context.Context, *policy.EvalInput) (*policy.EvalResult, error) {
	return nil, errors.New("engine down")
}

func (failingEngine) Reload(context.Context) error { return nil }

func testEngine(t *testing.T) policy.Engine {
	t.Helper()
	engine, err := policy.NewYAMLEngineFromRules(&policy.RuleSet{
		DefaultAction: api.VerdictAllow,
		Rules: []policy.Rule{
			{
				Name:    "admins-only",
				Match:   policy.RuleMatch{Path: "/admin"},
				Action:  "deny",
				Message: "admin area",
			},
			{
				Name:   "log-deletes",
				Match:  policy.RuleMatch{Method: "DELETE"},
				Action: "log",
			},
		},
	})
	require.NoError(t, err)
	return engine
}

func TestPolicy(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := Policy(testEngine(t), WithPolicyLogger(logger))
	assert.Equal(t, 0, f.Shape().Arity())

	_, rej := Evaluate(f, newRequest("GET", "/public"))
	assert.Nil(t, rej)

	_, rej = Evaluate(f, newRequest("DELETE", "/items/1"))
	assert.Nil(t, rej, "log verdict lets the request through")

	_, rej = Evaluate(f, newRequest("GET", "/admin/users"))
	require.NotNil(t, rej)
	assert.Equal(t, KindForbidden, rej.Kind)
	assert.Equal(t, "admins-only", rej.Field)
	assert.Equal(t, "admin area", rej.Message)
	assert.Equal(t, http.StatusForbidden, rej.StatusCode())
}

func TestPolicy_EngineError(t *testing.T) {
	_, rej := Evaluate(Policy(failingEngine{}), newRequest("GET", "/"))
	require.NotNil(t, rej)
	assert.Equal(t, KindForbidden, rej.Kind)
	assert.Equal(t, http.StatusInternalServerError, rej.StatusCode())
	assert.EqualError(t, rej.Cause, "engine down")
}

func TestPolicyInput(t *testing.T) {
	r := newRequest("GET", "/a/b?x=1&x=2", "X-Role", "admin")
	in := PolicyInput(r)

	assert.Equal(t, "GET", in.Method)
	assert.Equal(t, "/a/b", in.Path)
	assert.Equal(t, "example.com", in.Host)
	assert.Equal(t, "192.0.2.1", in.RemoteAddr)
	assert.Equal(t, "admin", in.Headers["X-Role"])
	assert.Equal(t, "1", in.Query["x"])
}
