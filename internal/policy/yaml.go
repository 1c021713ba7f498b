package policy

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/tkingovr/portal/api"
)

// YAMLEngine implements first-match-wins policy evaluation using YAML rules.
type YAMLEngine struct {
	mu    sync.RWMutex
	rules *RuleSet
	path  string

	// compiled regex cache, keyed by rule, section and key
	regexCache map[string]*regexp.Regexp
}

// NewYAMLEngine creates a new YAML policy engine from a rule set file.
func NewYAMLEngine(path string) (*YAMLEngine, error) {
	e := &YAMLEngine{path: path}
	if err := e.Reload(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// NewYAMLEngineFromRules creates a new YAML policy engine from an already-loaded rule set.
func NewYAMLEngineFromRules(rs *RuleSet) (*YAMLEngine, error) {
	if rs == nil {
		rs = &RuleSet{DefaultAction: api.VerdictAllow}
	}
	if err := Validate(rs); err != nil {
		return nil, err
	}
	e := &YAMLEngine{rules: rs}
	cache, err := compileRegexes(rs)
	if err != nil {
		return nil, err
	}
	e.regexCache = cache
	return e, nil
}

// Evaluate checks the input against rules in order, returning the first match.
func (e *YAMLEngine) Evaluate(_ context.Context, input *EvalInput) (*EvalResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for i := range e.rules.Rules {
		rule := &e.rules.Rules[i]
		if e.matches(rule, input) {
			return &EvalResult{
				Verdict: api.Verdict(rule.Action),
				Rule:    rule.Name,
				Message: rule.Message,
			}, nil
		}
	}

	return &EvalResult{
		Verdict: e.rules.DefaultAction,
		Rule:    "_default",
		Message: "no matching rule; default action applied",
	}, nil
}

// Reload re-reads the rule set file from disk.
func (e *YAMLEngine) Reload(_ context.Context) error {
	if e.path == "" {
		return nil
	}
	rs, err := LoadFile(e.path)
	if err != nil {
		return err
	}
	cache, err := compileRegexes(rs)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rs
	e.regexCache = cache
	return nil
}

// Rules returns the current rule set (for admin display).
func (e *YAMLEngine) Rules() *RuleSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules
}

func cacheKey(rule, section, key string) string {
	return rule + ":" + section + ":" + key
}

func compileRegexes(rs *RuleSet) (map[string]*regexp.Regexp, error) {
	cache := make(map[string]*regexp.Regexp)
	for _, rule := range rs.Rules {
		for section, values := range map[string]map[string]ValueMatch{
			"header": rule.Match.Headers,
			"query":  rule.Match.Query,
		} {
			for key, vm := range values {
				if vm.Regex == "" {
					continue
				}
				re, err := regexp.Compile(vm.Regex)
				if err != nil {
					return nil, fmt.Errorf("rule %q %s %q: %w", rule.Name, section, key, err)
				}
				cache[cacheKey(rule.Name, section, key)] = re
			}
		}
	}
	return cache, nil
}

func (e *YAMLEngine) matches(rule *Rule, input *EvalInput) bool {
	if rule.Match.Method != "" && !strings.EqualFold(rule.Match.Method, input.Method) {
		return false
	}

	if rule.Match.Path != "" && !pathHasPrefix(input.Path, rule.Match.Path) {
		return false
	}

	for key, vm := range rule.Match.Headers {
		if key == AnyValueKey {
			if !e.matchAnyValue(rule.Name, key, vm, input.Headers) {
				return false
			}
			continue
		}
		val, ok := lookupFold(input.Headers, key)
		if !ok || !e.matchValue(cacheKey(rule.Name, "header", key), vm, val) {
			return false
		}
	}

	for key, vm := range rule.Match.Query {
		val, ok := input.Query[key]
		if !ok || !e.matchValue(cacheKey(rule.Name, "query", key), vm, val) {
			return false
		}
	}

	return true
}

// pathHasPrefix matches whole segments, so "/api" matches "/api" and
// "/api/x" but not "/apix".
func pathHasPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func lookupFold(m map[string]string, key string) (string, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func (e *YAMLEngine) matchAnyValue(ruleName, key string, vm ValueMatch, values map[string]string) bool {
	for _, v := range values {
		if e.matchValue(cacheKey(ruleName, "header", key), vm, v) {
			return true
		}
	}
	return false
}

func (e *YAMLEngine) matchValue(cacheKey string, vm ValueMatch, val string) bool {
	if vm.Exact != "" {
		return val == vm.Exact
	}

	if vm.Regex != "" {
		re, ok := e.regexCache[cacheKey]
		if !ok {
			return false
		}
		return re.MatchString(val)
	}

	return true
}
