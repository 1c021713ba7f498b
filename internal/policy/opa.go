package policy

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage/inmem"
	"github.com/open-policy-agent/opa/v1/topdown"

	"github.com/tkingovr/portal/api"
)

// DefaultOPAQuery is the Rego document holding the decision.
const DefaultOPAQuery = "data.portal"

const opaModuleName = "portal.rego"

// OPAEngine evaluates requests with an embedded Rego policy. The decision
// document must set verdict to "allow", "deny" or "log", and may set
// rule_name and message. The input document has method, path, host,
// remote_addr, headers (canonical name to first value) and query.
//
// A policy that produces no decision, an unknown verdict or a runtime
// error denies the request.
type OPAEngine struct {
	path  string
	query string

	mu       sync.RWMutex
	source   string
	prepared rego.PreparedEvalQuery
}

// OPAOption configures an OPAEngine.
type OPAOption func(*OPAEngine)

// WithOPAQuery evaluates query instead of DefaultOPAQuery.
func WithOPAQuery(query string) OPAOption {
	return func(e *OPAEngine) {
		e.query = query
	}
}

// NewOPAEngine compiles the .rego file at path.
func NewOPAEngine(path string, opts ...OPAOption) (*OPAEngine, error) {
	e := newOPAEngine(path, opts)
	if err := e.Reload(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// NewOPAEngineFromSource compiles Rego source held in memory. Reload is a
// no-op for such engines.
func NewOPAEngineFromSource(source string, opts ...OPAOption) (*OPAEngine, error) {
	e := newOPAEngine("", opts)
	if err := e.compile(context.Background(), source); err != nil {
		return nil, err
	}
	return e, nil
}

func newOPAEngine(path string, opts []OPAOption) *OPAEngine {
	e := &OPAEngine{path: path, query: DefaultOPAQuery}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *OPAEngine) Evaluate(ctx context.Context, input *EvalInput) (*EvalResult, error) {
	e.mu.RLock()
	prepared := e.prepared
	e.mu.RUnlock()

	rs, err := prepared.Eval(ctx, rego.EvalInput(opaInput(input)))
	switch {
	case err != nil && topdown.IsError(err):
		return denied("_opa_error", "policy error: "+err.Error()), nil
	case err != nil:
		return nil, fmt.Errorf("evaluating %s: %w", e.query, err)
	case len(rs) == 0 || len(rs[0].Expressions) == 0:
		return denied("_opa_default", e.query+" is undefined"), nil
	}

	doc, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return denied("_opa_parse_error", fmt.Sprintf("%s is %T, not an object", e.query, rs[0].Expressions[0].Value)), nil
	}
	return decode(doc), nil
}

// Reload recompiles the policy file. The previous policy stays in effect
// when the new one fails to compile.
func (e *OPAEngine) Reload(ctx context.Context) error {
	if e.path == "" {
		return nil
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return fmt.Errorf("reading OPA policy file: %w", err)
	}
	return e.compile(ctx, string(data))
}

// Source returns the Rego module currently in effect.
func (e *OPAEngine) Source() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.source
}

func (e *OPAEngine) compile(ctx context.Context, source string) error {
	module, err := ast.ParseModuleWithOpts(opaModuleName, source, ast.ParserOptions{RegoVersion: ast.RegoV1})
	if err != nil {
		return fmt.Errorf("parsing Rego policy: %w", err)
	}

	prepared, err := rego.New(
		rego.Query(e.query),
		rego.ParsedModule(module),
		rego.Store(inmem.New()),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("preparing %s: %w", e.query, err)
	}

	e.mu.Lock()
	e.prepared = prepared
	e.source = source
	e.mu.Unlock()
	return nil
}

func opaInput(in *EvalInput) map[string]any {
	return map[string]any{
		"method":      in.Method,
		"path":        in.Path,
		"host":        in.Host,
		"remote_addr": in.RemoteAddr,
		"headers":     anyMap(in.Headers),
		"query":       anyMap(in.Query),
	}
}

// anyMap widens the values so OPA sees an object rather than an opaque Go map.
func anyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func decode(doc map[string]any) *EvalResult {
	rule, _ := doc["rule_name"].(string)
	msg, _ := doc["message"].(string)
	verdict, _ := doc["verdict"].(string)

	switch v := api.Verdict(verdict); v {
	case api.VerdictAllow, api.VerdictDeny, api.VerdictLog:
		return &EvalResult{Verdict: v, Rule: rule, Message: msg}
	case "":
		return &EvalResult{Verdict: api.VerdictDeny, Rule: rule, Message: msg}
	}
	return denied("_opa_bad_verdict", fmt.Sprintf("unknown verdict %q", verdict))
}

func denied(rule, msg string) *EvalResult {
	return &EvalResult{Verdict: api.VerdictDeny, Rule: rule, Message: msg}
}
