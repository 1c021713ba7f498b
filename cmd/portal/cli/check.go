package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tkingovr/portal/api"
	"github.com/tkingovr/portal/internal/dispatch"
	"github.com/tkingovr/portal/internal/routes"
)

var (
	checkMethod  string
	checkPath    string
	checkHost    string
	checkHeaders []string
	checkBody    string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry-run a request against the route table",
	Long: `Check which response a request would receive without starting a server.
Useful for testing and debugging route tables. Proxy routes do contact
their upstream.`,
	Example: `  portal check -c portal.yaml --path /stars -H 'Accept: */*' --host 127.0.0.1:3030
  portal check -c portal.yaml --method POST --path /items --body '{"name":"x"}'`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkMethod, "method", "X", "GET", "request method")
	checkCmd.Flags().StringVar(&checkPath, "path", "/", "request path, optionally with a query string")
	checkCmd.Flags().StringVar(&checkHost, "host", "", "Host header")
	checkCmd.Flags().StringArrayVarP(&checkHeaders, "header", "H", nil, "request header as 'Name: value' (repeatable)")
	checkCmd.Flags().StringVar(&checkBody, "body", "", "request body")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	table, _, err := routes.FromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("compiling routes: %w", err)
	}
	d, err := dispatch.New(table.Filter(), append([]dispatch.Option{dispatch.WithLogger(logger)}, dispatchOptions(cfg)...)...)
	if err != nil {
		return err
	}

	headers, err := parseHeaders(checkHeaders)
	if err != nil {
		return err
	}
	r, err := dispatch.NewCheckRequest(api.CheckRequest{
		Method:  checkMethod,
		Path:    checkPath,
		Host:    checkHost,
		Headers: headers,
		Body:    checkBody,
	})
	if err != nil {
		return err
	}
	r = r.WithContext(cmd.Context())

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(d.Check(r).CheckResponse())
}

func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want 'Name: value'", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
