package policy

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/tkingovr/portal/api"
	"gopkg.in/yaml.v3"
)

// LoadFile reads and validates a standalone YAML rule set.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates YAML rule set data.
func LoadBytes(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}
	if err := Validate(&rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks a rule set and fills in the default action.
func Validate(rs *RuleSet) error {
	if rs.DefaultAction == "" {
		rs.DefaultAction = api.VerdictAllow
	}
	if !validAction(string(rs.DefaultAction)) {
		return fmt.Errorf("invalid default_action %q", rs.DefaultAction)
	}

	for i, rule := range rs.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if !validAction(rule.Action) {
			return fmt.Errorf("rule %q: invalid action %q", rule.Name, rule.Action)
		}
		if rule.Match.IsEmpty() {
			return fmt.Errorf("rule %q: match needs at least one condition", rule.Name)
		}
		if rule.Match.Path != "" && !strings.HasPrefix(rule.Match.Path, "/") {
			return fmt.Errorf("rule %q: match.path must start with '/'", rule.Name)
		}
		for key, vm := range rule.Match.Headers {
			if err := validateValue(vm); err != nil {
				return fmt.Errorf("rule %q: header %q: %w", rule.Name, key, err)
			}
		}
		for key, vm := range rule.Match.Query {
			if err := validateValue(vm); err != nil {
				return fmt.Errorf("rule %q: query %q: %w", rule.Name, key, err)
			}
		}
	}

	return nil
}

func validAction(a string) bool {
	switch api.Verdict(a) {
	case api.VerdictAllow, api.VerdictDeny, api.VerdictLog:
		return true
	}
	return false
}

func validateValue(vm ValueMatch) error {
	if vm.Regex == "" {
		return nil
	}
	if _, err := regexp.Compile(vm.Regex); err != nil {
		return fmt.Errorf("regex invalid: %w", err)
	}
	return nil
}
