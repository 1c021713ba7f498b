package filter

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/tkingovr/portal/api"
	"github.com/tkingovr/portal/internal/policy"
)

type policyFilter struct {
	engine policy.Engine
	logger *slog.Logger
}

// PolicyOption configures the Policy filter.
type PolicyOption func(*policyFilter)

// WithPolicyLogger sets the logger used for "log" verdicts.
func WithPolicyLogger(logger *slog.Logger) PolicyOption {
	return func(p *policyFilter) {
		p.logger = logger
	}
}

// Policy evaluates the request against a policy engine. It extracts
// nothing. A deny verdict rejects with Forbidden naming the matched rule;
// a log verdict lets the request through and logs it. An engine failure
// is a Forbidden rejection with a 500 status hint.
func Policy(engine policy.Engine, opts ...PolicyOption) Filter {
	p := &policyFilter{engine: engine, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *policyFilter) Shape() Shape { return Unit }

func (p *policyFilter) Extract(rt *Route) (Tuple, *Rejection) {
	req := rt.Request()
	result, err := p.engine.Evaluate(req.Context(), PolicyInput(req))
	if err != nil {
		rej := Forbidden("_engine_error", "policy evaluation failed").WithStatus(http.StatusInternalServerError)
		rej.Cause = err
		return nil, rej
	}

	switch result.Verdict {
	case api.VerdictDeny:
		return nil, Forbidden(result.Rule, result.Message)
	case api.VerdictLog:
		p.logger.Info("policy match",
			"rule", result.Rule,
			"method", req.Method,
			"path", req.URL.Path,
			"message", result.Message,
		)
	}
	return Tuple{}, nil
}

// PolicyInput builds the policy input for r. Headers and query parameters
// contribute their first value.
func PolicyInput(r *http.Request) *policy.EvalInput {
	in := &policy.EvalInput{
		Method:     r.Method,
		Path:       r.URL.Path,
		Host:       r.Host,
		RemoteAddr: clientIP(r),
		Headers:    make(map[string]string, len(r.Header)),
		Query:      make(map[string]string),
	}
	for k, v := range r.Header {
		if len(v) > 0 {
			in.Headers[k] = v[0]
		}
	}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			in.Query[k] = v[0]
		}
	}
	return in
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
