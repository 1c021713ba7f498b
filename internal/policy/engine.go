// Package policy decides whether a request may proceed, from YAML rules
// or an embedded Rego policy.
package policy

import "context"

// Engine returns a verdict for one request. Implementations are safe for
// concurrent use, including while Reload runs.
type Engine interface {
	Evaluate(ctx context.Context, input *EvalInput) (*EvalResult, error)

	// Reload re-reads the policy from where it was loaded. Engines built
	// from memory treat it as a no-op.
	Reload(ctx context.Context) error
}
