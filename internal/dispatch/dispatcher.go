// Package dispatch evaluates a filter tree against incoming requests and
// turns the result into a response.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/tkingovr/portal/api"
	"github.com/tkingovr/portal/internal/filter"
)

// ErrNotReply is returned by New when the filter does not extract exactly
// one value.
var ErrNotReply = errors.New("filter must extract exactly one value")

// RequestIDHeader carries the dispatch ID on every response.
const RequestIDHeader = "X-Request-Id"

// StatusMapper picks the response status for a rejection.
type StatusMapper func(rej *filter.Rejection) int

// RecoverFunc writes the response for a rejected request. It is called
// once per rejected request with the status chosen for it.
type RecoverFunc func(w http.ResponseWriter, r *http.Request, rej *filter.Rejection, status int)

// Dispatcher evaluates one filter tree per request. It is safe for
// concurrent use.
type Dispatcher struct {
	filter    filter.Filter
	logger    *slog.Logger
	mapStatus StatusMapper
	onReject  RecoverFunc
	observers []Observer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithStatusMapper overrides the status code chosen for rejections.
func WithStatusMapper(m StatusMapper) Option {
	return func(d *Dispatcher) {
		d.mapStatus = m
	}
}

// WithRecover replaces the default plain text rejection response.
func WithRecover(fn RecoverFunc) Option {
	return func(d *Dispatcher) {
		d.onReject = fn
	}
}

// WithObserver registers observers notified after every request.
func WithObserver(obs ...Observer) Option {
	return func(d *Dispatcher) {
		d.observers = append(d.observers, obs...)
	}
}

// New creates a dispatcher for f, which must extract a single value: the
// reply, or something AsReply can convert.
func New(f filter.Filter, opts ...Option) (*Dispatcher, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil filter", ErrNotReply)
	}
	if f.Shape().Arity() != 1 {
		return nil, fmt.Errorf("%w: shape is %s", ErrNotReply, f.Shape())
	}
	d := &Dispatcher{
		filter:    f,
		logger:    slog.Default(),
		mapStatus: func(rej *filter.Rejection) int { return rej.StatusCode() },
		onReject:  defaultRecover,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ServeHTTP evaluates the filter once and writes either the extracted
// reply or the rejection response.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	out := newOutcome(r)
	for _, o := range d.observers {
		o.Started(out)
	}

	sw := &statusWriter{ResponseWriter: w}
	sw.Header().Set(RequestIDHeader, out.ID)
	d.serve(sw, r, out)
	out.finish(sw.Status())

	for _, o := range d.observers {
		o.Finished(out)
	}
}

// Check evaluates r like ServeHTTP but captures the response instead of
// sending it. Observers are not notified.
func (d *Dispatcher) Check(r *http.Request) *Outcome {
	out := newOutcome(r)
	capture := NewCapture()
	sw := &statusWriter{ResponseWriter: capture}
	d.serve(sw, r, out)
	out.finish(sw.Status())
	out.Response = capture
	return out
}

func (d *Dispatcher) serve(w *statusWriter, r *http.Request, out *Outcome) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		if p == http.ErrAbortHandler {
			panic(p)
		}
		out.Err = fmt.Errorf("panic: %v", p)
		d.logger.Error("panic while dispatching",
			"id", out.ID,
			"method", r.Method,
			"path", r.URL.Path,
			"panic", p,
			"stack", string(debug.Stack()),
		)
		if !w.wrote {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}()

	tuple, rej := filter.Evaluate(d.filter, r)
	if rej != nil {
		out.State = api.OutcomeRejected
		out.Rejection = rej
		status := d.mapStatus(rej)
		d.logger.Debug("request rejected",
			"id", out.ID,
			"method", r.Method,
			"path", r.URL.Path,
			"kind", rej.Kind.String(),
			"status", status,
			"reason", rej.Error(),
		)
		d.onReject(w, r, rej, status)
		return
	}

	out.State = api.OutcomeMatched
	filter.AsReply(tuple[0]).WriteReply(w, r)
}

func defaultRecover(w http.ResponseWriter, _ *http.Request, _ *filter.Rejection, status int) {
	http.Error(w, http.StatusText(status), status)
}

// Outcome is the result of dispatching one request.
type Outcome struct {
	ID         string
	Timestamp  time.Time
	Method     string
	Host       string
	Path       string
	RemoteAddr string

	State     api.Outcome
	Rejection *filter.Rejection
	Status    int
	Duration  time.Duration

	// Err is set when a filter or reply panicked.
	Err error

	// Response holds the captured response of a Check.
	Response *Capture
}

func newOutcome(r *http.Request) *Outcome {
	return &Outcome{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Method:     r.Method,
		Host:       r.Host,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		State:      api.OutcomeEvaluating,
	}
}

func (o *Outcome) finish(status int) {
	o.Status = status
	o.Duration = time.Since(o.Timestamp)
}

// Record converts the outcome into an access record.
func (o *Outcome) Record() *api.AccessRecord {
	rec := &api.AccessRecord{
		ID:         o.ID,
		Timestamp:  o.Timestamp,
		Method:     o.Method,
		Host:       o.Host,
		Path:       o.Path,
		RemoteAddr: o.RemoteAddr,
		Outcome:    o.State,
		Status:     o.Status,
		Duration:   o.Duration,
	}
	if o.Rejection != nil {
		rec.Kind = o.Rejection.Kind.String()
		rec.Field = o.Rejection.Field
	}
	return rec
}

// statusWriter remembers the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Status returns the written status, 200 if the reply wrote nothing.
func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
