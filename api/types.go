package api

import "time"

// Verdict represents the outcome of a policy evaluation.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictDeny  Verdict = "deny"
	VerdictLog   Verdict = "log"
)

// Outcome is the state of a single dispatch. Every dispatch starts in
// OutcomeEvaluating and ends in exactly one of the other two.
type Outcome string

const (
	OutcomeEvaluating Outcome = "evaluating"
	OutcomeMatched    Outcome = "matched"
	OutcomeRejected   Outcome = "rejected"
)

// AccessRecord represents a single dispatched request.
type AccessRecord struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	Method     string        `json:"method"`
	Host       string        `json:"host,omitempty"`
	Path       string        `json:"path"`
	RemoteAddr string        `json:"remote_addr,omitempty"`
	Outcome    Outcome       `json:"outcome"`
	Kind       string        `json:"kind,omitempty"`
	Field      string        `json:"field,omitempty"`
	Status     int           `json:"status"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// CheckRequest is used by the CLI `check` command and the admin API to
// dry-run a request against the route table.
type CheckRequest struct {
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Host       string            `json:"host,omitempty"`
	RemoteAddr string            `json:"remote_addr,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
}

// CheckResponse is the result of a dry-run.
type CheckResponse struct {
	Outcome     Outcome `json:"outcome"`
	Status      int     `json:"status"`
	Kind        string  `json:"kind,omitempty"`
	Field       string  `json:"field,omitempty"`
	Message     string  `json:"message,omitempty"`
	ContentType string  `json:"content_type,omitempty"`
	Body        string  `json:"body,omitempty"`
}
