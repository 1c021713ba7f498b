package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkingovr/portal/api"
)

const testRegoPolicy = `package portal

import rego.v1

default verdict := "allow"
default rule_name := "_default"
default message := ""

admin_path if startswith(input.path, "/admin")

is_admin if input.headers["X-Role"] == "admin"

verdict := "deny" if {
	admin_path
	not is_admin
}
rule_name := "admin-only" if {
	admin_path
	not is_admin
}
message := "admin role required" if {
	admin_path
	not is_admin
}

verdict := "log" if {
	input.method == "DELETE"
	not admin_path
}
rule_name := "log-deletes" if {
	input.method == "DELETE"
	not admin_path
}
`

func TestOPAEngine_Evaluate(t *testing.T) {
	engine, err := NewOPAEngineFromSource(testRegoPolicy)
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   *EvalInput
		verdict api.Verdict
		rule    string
	}{
		{
			name:    "default allow",
			input:   &EvalInput{Method: "GET", Path: "/"},
			verdict: api.VerdictAllow,
			rule:    "_default",
		},
		{
			name:    "admin without role",
			input:   &EvalInput{Method: "GET", Path: "/admin/users"},
			verdict: api.VerdictDeny,
			rule:    "admin-only",
		},
		{
			name: "admin with role",
			input: &EvalInput{Method: "GET", Path: "/admin/users", Headers: map[string]string{
				"X-Role": "admin",
			}},
			verdict: api.VerdictAllow,
			rule:    "_default",
		},
		{
			name:    "delete is logged",
			input:   &EvalInput{Method: "DELETE", Path: "/items/3"},
			verdict: api.VerdictLog,
			rule:    "log-deletes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := evaluate(t, engine, tt.input)
			assert.Equal(t, tt.verdict, result.Verdict, "rule: %s, msg: %s", result.Rule, result.Message)
			assert.Equal(t, tt.rule, result.Rule)
		})
	}
}

func TestOPAEngine_Message(t *testing.T) {
	engine, err := NewOPAEngineFromSource(testRegoPolicy)
	require.NoError(t, err)

	result := evaluate(t, engine, &EvalInput{Method: "POST", Path: "/admin"})
	assert.Equal(t, "admin role required", result.Message)
}

func TestOPAEngine_InvalidRego(t *testing.T) {
	_, err := NewOPAEngineFromSource("this is not valid rego {{{")
	assert.Error(t, err)
}

func TestOPAEngine_FromFile(t *testing.T) {
	engine, err := NewOPAEngine("../../testdata/policies/example.rego")
	require.NoError(t, err)

	result := evaluate(t, engine, &EvalInput{Method: "GET", Path: "/"})
	assert.Equal(t, api.VerdictAllow, result.Verdict)

	result = evaluate(t, engine, &EvalInput{Method: "GET", Path: "/admin"})
	assert.Equal(t, api.VerdictDeny, result.Verdict)
}

func TestOPAEngine_Source(t *testing.T) {
	engine, err := NewOPAEngineFromSource(testRegoPolicy)
	require.NoError(t, err)
	assert.Equal(t, testRegoPolicy, engine.Source())
}

func TestOPAEngine_Query(t *testing.T) {
	src := `package gate

import rego.v1

decision := {"verdict": "deny", "rule_name": "closed", "message": "gate is closed"}
`
	engine, err := NewOPAEngineFromSource(src, WithOPAQuery("data.gate.decision"))
	require.NoError(t, err)

	result := evaluate(t, engine, &EvalInput{Method: "GET", Path: "/"})
	assert.Equal(t, api.VerdictDeny, result.Verdict)
	assert.Equal(t, "closed", result.Rule)
	assert.Equal(t, "gate is closed", result.Message)
}

func TestOPAEngine_DeniesWithoutDecision(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		query string
		rule  string
	}{
		{
			name:  "undefined document",
			src:   "package portal\n\nimport rego.v1\n\nverdict := \"allow\"\n",
			query: "data.elsewhere",
			rule:  "_opa_default",
		},
		{
			name:  "unknown verdict",
			src:   "package portal\n\nimport rego.v1\n\nverdict := \"maybe\"\n",
			query: DefaultOPAQuery,
			rule:  "_opa_bad_verdict",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewOPAEngineFromSource(tt.src, WithOPAQuery(tt.query))
			require.NoError(t, err)

			result := evaluate(t, engine, &EvalInput{Method: "GET", Path: "/"})
			assert.Equal(t, api.VerdictDeny, result.Verdict)
			assert.Equal(t, tt.rule, result.Rule)
		})
	}
}
