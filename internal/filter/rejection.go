package filter

import (
	"fmt"
	"net/http"
)

// Kind classifies why a filter rejected a request.
type Kind int

const (
	KindNotFound Kind = iota
	KindMethodMismatch
	KindHeaderMissing
	KindHeaderMismatch
	KindParseFailure
	KindPayloadTooLarge
	KindForbidden
	KindTooManyRequests
)

var kindNames = map[Kind]string{
	KindNotFound:        "not_found",
	KindMethodMismatch:  "method_mismatch",
	KindHeaderMissing:   "header_missing",
	KindHeaderMismatch:  "header_mismatch",
	KindParseFailure:    "parse_failure",
	KindPayloadTooLarge: "payload_too_large",
	KindForbidden:       "forbidden",
	KindTooManyRequests: "too_many_requests",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status returns the default HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindMethodMismatch:
		return http.StatusMethodNotAllowed
	case KindHeaderMissing, KindHeaderMismatch, KindParseFailure:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindForbidden:
		return http.StatusForbidden
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusNotFound
	}
}

// specificity ranks kinds for Combine. Not found says the least about a
// request, a method mismatch says the path was right, everything else
// names a concrete problem with the request.
func (k Kind) specificity() int {
	switch k {
	case KindNotFound:
		return 0
	case KindMethodMismatch:
		return 1
	default:
		return 2
	}
}

// Rejection describes a failed match. It is also an error so it can be
// returned from APIs that deal in errors.
type Rejection struct {
	Kind Kind

	// Field names the header, query key or body path the rejection is
	// about. Empty when the kind alone says enough.
	Field string

	// Status overrides Kind.Status when non-zero.
	Status int

	Message string
	Cause   error
}

func (r *Rejection) Error() string {
	msg := r.Kind.String()
	if r.Field != "" {
		msg += fmt.Sprintf(" %q", r.Field)
	}
	if r.Message != "" {
		msg += ": " + r.Message
	}
	if r.Cause != nil {
		msg += ": " + r.Cause.Error()
	}
	return msg
}

func (r *Rejection) Unwrap() error { return r.Cause }

// StatusCode returns the status hint, falling back to the kind default.
func (r *Rejection) StatusCode() int {
	if r.Status != 0 {
		return r.Status
	}
	return r.Kind.Status()
}

// WithStatus returns a copy of r carrying the given status hint.
func (r *Rejection) WithStatus(status int) *Rejection {
	c := *r
	c.Status = status
	return &c
}

// Combine picks the rejection to report when both sides of an Or failed.
// The more specific kind wins; on a tie the later evaluated b wins.
func Combine(a, b *Rejection) *Rejection {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Kind.specificity() > b.Kind.specificity():
		return a
	default:
		return b
	}
}

// NotFound rejects a request no route matched.
func NotFound() *Rejection {
	return &Rejection{Kind: KindNotFound}
}

// MethodMismatch rejects a request whose method is not the expected one.
func MethodMismatch(want, got string) *Rejection {
	return &Rejection{
		Kind:    KindMethodMismatch,
		Message: fmt.Sprintf("want %s, got %s", want, got),
	}
}

// HeaderMissing rejects a request lacking a required header.
func HeaderMissing(name string) *Rejection {
	return &Rejection{Kind: KindHeaderMissing, Field: name}
}

// HeaderMismatch rejects a request whose header has the wrong value.
func HeaderMismatch(name string, cause error) *Rejection {
	return &Rejection{Kind: KindHeaderMismatch, Field: name, Cause: cause}
}

// ParseFailure rejects a request whose field could not be decoded.
func ParseFailure(field string, cause error) *Rejection {
	return &Rejection{Kind: KindParseFailure, Field: field, Cause: cause}
}

// PayloadTooLarge rejects a request whose body exceeds a limit.
func PayloadTooLarge(limit int64) *Rejection {
	return &Rejection{
		Kind:    KindPayloadTooLarge,
		Field:   "body",
		Message: fmt.Sprintf("limit is %d bytes", limit),
	}
}

// Forbidden rejects a request denied by policy.
func Forbidden(rule, message string) *Rejection {
	return &Rejection{Kind: KindForbidden, Field: rule, Message: message}
}

// TooManyRequests rejects a request over a rate limit.
func TooManyRequests(key, message string) *Rejection {
	return &Rejection{Kind: KindTooManyRequests, Field: key, Message: message}
}
