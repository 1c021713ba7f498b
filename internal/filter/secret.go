package filter

import (
	"fmt"
	"math"
	"regexp"

	"github.com/tidwall/gjson"
)

// SecretPattern is a named regular expression for one kind of credential.
type SecretPattern struct {
	Name  string
	Regex *regexp.Regexp
}

// DefaultSecretPatterns returns the built-in credential patterns.
func DefaultSecretPatterns() []SecretPattern {
	return []SecretPattern{
		{Name: "aws_access_key", Regex: regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`)},
		{Name: "github_token", Regex: regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9_]{36,255}`)},
		{Name: "github_pat", Regex: regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{22,255}`)},
		{Name: "private_key", Regex: regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`)},
		{Name: "slack_token", Regex: regexp.MustCompile(`\bxox[baprs]-[0-9]{10,13}-[0-9]{10,13}[A-Za-z0-9-]*`)},
		{Name: "stripe_key", Regex: regexp.MustCompile(`\b(?:sk|rk)_(?:live|test)_[A-Za-z0-9]{20,100}`)},
		{Name: "google_api_key", Regex: regexp.MustCompile(`\bAIza[A-Za-z0-9\-_]{35}`)},
	}
}

type secretScanner struct {
	patterns         []SecretPattern
	entropyThreshold float64
	minTokenLength   int
	limit            int64
}

// SecretOption configures the Secrets filter.
type SecretOption func(*secretScanner)

// WithPatterns replaces the default patterns.
func WithPatterns(patterns []SecretPattern) SecretOption {
	return func(s *secretScanner) {
		s.patterns = patterns
	}
}

// WithEntropyThreshold sets the Shannon entropy, in bits per character,
// above which a long JSON string value counts as a secret. Zero disables
// the entropy check.
func WithEntropyThreshold(threshold float64) SecretOption {
	return func(s *secretScanner) {
		s.entropyThreshold = threshold
	}
}

// WithSecretBodyLimit caps the bytes read from the body.
func WithSecretBodyLimit(limit int64) SecretOption {
	return func(s *secretScanner) {
		s.limit = limit
	}
}

// Secrets rejects requests whose body carries something that looks like a
// credential. It extracts nothing. The raw body is matched against the
// patterns; when the body is JSON its string values are also checked for
// high entropy. A hit is Forbidden with the rule "secret:<pattern>".
func Secrets(opts ...SecretOption) Filter {
	s := &secretScanner{
		patterns:         DefaultSecretPatterns(),
		entropyThreshold: 4.5,
		minTokenLength:   20,
		limit:            DefaultBodyLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *secretScanner) Shape() Shape { return Unit }

func (s *secretScanner) Extract(rt *Route) (Tuple, *Rejection) {
	data, rej := readBody(rt, s.limit)
	if rej != nil {
		return nil, rej
	}
	if len(data) == 0 {
		return Tuple{}, nil
	}

	for _, p := range s.patterns {
		if p.Regex.Match(data) {
			return nil, Forbidden("secret:"+p.Name, fmt.Sprintf("request body matches the %s pattern", p.Name))
		}
	}

	if s.entropyThreshold > 0 && gjson.ValidBytes(data) {
		if token, ok := s.highEntropy(gjson.ParseBytes(data)); ok {
			return nil, Forbidden("secret:high_entropy",
				fmt.Sprintf("high-entropy value (%.1f bits) starting with %q", shannonEntropy(token), truncate(token, 6)))
		}
	}
	return Tuple{}, nil
}

// highEntropy walks every string value in a JSON document.
func (s *secretScanner) highEntropy(v gjson.Result) (string, bool) {
	switch {
	case v.Type == gjson.String:
		str := v.String()
		if len(str) >= s.minTokenLength && shannonEntropy(str) >= s.entropyThreshold {
			return str, true
		}
	case v.IsArray() || v.IsObject():
		var (
			found string
			ok    bool
		)
		v.ForEach(func(_, child gjson.Result) bool {
			found, ok = s.highEntropy(child)
			return !ok
		})
		return found, ok
	}
	return "", false
}

func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]float64)
	n := 0.0
	for _, c := range s {
		freq[c]++
		n++
	}
	entropy := 0.0
	for _, count := range freq {
		p := count / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
