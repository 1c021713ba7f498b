package policy

import (
	"github.com/tkingovr/portal/api"
)

// RuleSet is the policy section of a route table.
type RuleSet struct {
	DefaultAction api.Verdict `yaml:"default_action" json:"default_action"`
	Rules         []Rule      `yaml:"rules" json:"rules"`
}

// Rule represents a single policy rule.
type Rule struct {
	Name    string    `yaml:"name" json:"name"`
	Match   RuleMatch `yaml:"match" json:"match"`
	Action  string    `yaml:"action" json:"action"`
	Message string    `yaml:"message,omitempty" json:"message,omitempty"`
}

// RuleMatch specifies conditions for matching a request. Every non-empty
// condition must hold.
type RuleMatch struct {
	Method  string                `yaml:"method,omitempty" json:"method,omitempty"`
	Path    string                `yaml:"path,omitempty" json:"path,omitempty"`
	Headers map[string]ValueMatch `yaml:"headers,omitempty" json:"headers,omitempty"`
	Query   map[string]ValueMatch `yaml:"query,omitempty" json:"query,omitempty"`
}

// IsEmpty reports whether the match has no conditions at all.
func (m RuleMatch) IsEmpty() bool {
	return m.Method == "" && m.Path == "" && len(m.Headers) == 0 && len(m.Query) == 0
}

// ValueMatch specifies a matching condition for a single header or query value.
type ValueMatch struct {
	Exact string `yaml:"exact,omitempty" json:"exact,omitempty"`
	Regex string `yaml:"regex,omitempty" json:"regex,omitempty"`
}

// AnyValueKey matches a condition against every header value.
const AnyValueKey = "_any_value"

// EvalInput is the input to a policy engine evaluation.
type EvalInput struct {
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Host       string            `json:"host,omitempty"`
	RemoteAddr string            `json:"remote_addr,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Query      map[string]string `json:"query,omitempty"`
}

// EvalResult is the output of a policy engine evaluation.
type EvalResult struct {
	Verdict api.Verdict `json:"verdict"`
	Rule    string      `json:"rule,omitempty"`
	Message string      `json:"message,omitempty"`
}
