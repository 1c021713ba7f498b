package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkingovr/portal/api"
	"github.com/tkingovr/portal/internal/access"
	"github.com/tkingovr/portal/internal/filter"
	"github.com/tkingovr/portal/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRoutes() filter.Filter {
	return filter.OrAll(
		filter.ToReply(filter.Map1(
			filter.AndAll(filter.Path("hello"), filter.Param[string](), filter.PathEnd(), filter.Get()),
			func(name string) string { return "Hello, " + name },
		)),
		filter.ToReply(filter.Map1(
			filter.AndAll(filter.Path("items"), filter.PathEnd(), filter.Post(), filter.JSONField[string]("name")),
			func(name string) filter.Reply {
				return filter.WithStatus(http.StatusCreated, filter.JSON(map[string]string{"name": name}))
			},
		)),
		filter.ToReply(filter.Map0(
			filter.AndAll(filter.Path("boom"), filter.PathEnd()),
			func() string { panic("boom") },
		)),
	)
}

func newDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	d, err := New(testRoutes(), append([]Option{WithLogger(testLogger())}, opts...)...)
	require.NoError(t, err)
	return d
}

func serve(d http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(method, target, rd))
	return rec
}

func TestNew_RequiresSingleValue(t *testing.T) {
	_, err := New(filter.Path("x"))
	assert.ErrorIs(t, err, ErrNotReply)

	_, err = New(filter.And(filter.Param[int](), filter.Param[int]()))
	assert.ErrorIs(t, err, ErrNotReply)

	_, err = New(nil)
	assert.ErrorIs(t, err, ErrNotReply)
}

func TestDispatcher_Matched(t *testing.T) {
	d := newDispatcher(t)

	rec := serve(d, "GET", "/hello/warp", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello, warp", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec = serve(d, "POST", "/items", `{"name":"lamp"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"name":"lamp"}`, rec.Body.String())
}

func TestDispatcher_Rejections(t *testing.T) {
	d := newDispatcher(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"unknown path", "GET", "/nope", "", http.StatusNotFound},
		{"wrong method", "DELETE", "/hello/x", "", http.StatusMethodNotAllowed},
		{"bad body", "POST", "/items", `{"title":"lamp"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(d, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, http.StatusText(tt.status)+"\n", rec.Body.String())
			assert.Empty(t, rec.Header().Get("Allow"))
		})
	}
}

func TestDispatcher_StatusMapper(t *testing.T) {
	d := newDispatcher(t, WithStatusMapper(func(rej *filter.Rejection) int {
		if rej.Kind == filter.KindMethodMismatch {
			return http.StatusNotFound
		}
		return rej.StatusCode()
	}))

	assert.Equal(t, http.StatusNotFound, serve(d, "DELETE", "/hello/x", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(d, "GET", "/nope", "").Code)
}

func TestDispatcher_RecoverCalledOnce(t *testing.T) {
	calls := 0
	var got *filter.Rejection
	d := newDispatcher(t, WithRecover(func(w http.ResponseWriter, _ *http.Request, rej *filter.Rejection, status int) {
		calls++
		got = rej
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"error":"` + rej.Kind.String() + `"}`))
	}))

	rec := serve(d, "POST", "/items", `{}`)
	assert.Equal(t, 1, calls)
	require.NotNil(t, got)
	assert.Equal(t, filter.KindParseFailure, got.Kind)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"parse_failure"}`, rec.Body.String())

	serve(d, "GET", "/hello/x", "")
	assert.Equal(t, 1, calls, "recover must not run for matched requests")
}

func TestDispatcher_PanicBecomes500(t *testing.T) {
	obs := &recordingObserver{}
	d := newDispatcher(t, WithObserver(obs))

	rec := serve(d, "GET", "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	require.Len(t, obs.finished, 1)
	assert.Error(t, obs.finished[0].Err)
	assert.Equal(t, http.StatusInternalServerError, obs.finished[0].Status)
}

type recordingObserver struct {
	mu       sync.Mutex
	started  int
	finished []*Outcome
}

func (r *recordingObserver) Started(o *Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *recordingObserver) Finished(o *Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, o)
}

func TestDispatcher_Observers(t *testing.T) {
	obs := &recordingObserver{}
	d := newDispatcher(t, WithObserver(obs))

	serve(d, "GET", "/hello/a", "")
	serve(d, "GET", "/nope", "")

	assert.Equal(t, 2, obs.started)
	require.Len(t, obs.finished, 2)

	assert.Equal(t, api.OutcomeMatched, obs.finished[0].State)
	assert.Equal(t, http.StatusOK, obs.finished[0].Status)
	assert.Nil(t, obs.finished[0].Rejection)

	assert.Equal(t, api.OutcomeRejected, obs.finished[1].State)
	assert.Equal(t, http.StatusNotFound, obs.finished[1].Status)
	assert.Equal(t, filter.KindNotFound, obs.finished[1].Rejection.Kind)
}

func TestDispatcher_AccessLogAndMetrics(t *testing.T) {
	store := access.NewMemoryStore()
	prom := metrics.NewPrometheus(metrics.Options{})
	d := newDispatcher(t, WithObserver(
		AccessLog(store, testLogger()),
		Metrics(prom),
		RequestLog(testLogger()),
	))

	serve(d, "GET", "/hello/a", "")
	serve(d, "PUT", "/hello/a", "")

	records, err := store.Query(context.Background(), api.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "/hello/a", records[0].Path)
	assert.Equal(t, api.OutcomeRejected, records[1].Outcome)
	assert.Equal(t, "method_mismatch", records[1].Kind)
	assert.Equal(t, http.StatusMethodNotAllowed, records[1].Status)

	n, err := testutil.GatherAndCount(prom.Registry(), "portal_dispatch_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

type failingStore struct {
	access.Store
}

func (failingStore) Write(context.Context, *api.AccessRecord) error {
	return errors.New("disk full")
}

func TestAccessLog_WriteErrorDoesNotFailRequest(t *testing.T) {
	d := newDispatcher(t, WithObserver(AccessLog(failingStore{}, testLogger())))
	assert.Equal(t, http.StatusOK, serve(d, "GET", "/hello/a", "").Code)
}

func TestDispatcher_Check(t *testing.T) {
	obs := &recordingObserver{}
	d := newDispatcher(t, WithObserver(obs))

	out := d.Check(httptest.NewRequest("GET", "/hello/dry", nil))
	assert.Equal(t, api.OutcomeMatched, out.State)
	assert.Equal(t, http.StatusOK, out.Status)
	require.NotNil(t, out.Response)
	assert.Equal(t, "Hello, dry", string(out.Response.Body()))
	assert.Equal(t, "text/plain; charset=utf-8", out.Response.Header().Get("Content-Type"))

	out = d.Check(httptest.NewRequest("GET", "/missing", nil))
	assert.Equal(t, api.OutcomeRejected, out.State)
	assert.Equal(t, http.StatusNotFound, out.Status)

	assert.Empty(t, obs.finished, "check must not notify observers")
}

func TestOutcome_Record(t *testing.T) {
	d := newDispatcher(t)
	out := d.Check(httptest.NewRequest("POST", "/items", strings.NewReader(`{}`)))

	rec := out.Record()
	assert.Equal(t, out.ID, rec.ID)
	assert.Equal(t, "POST", rec.Method)
	assert.Equal(t, "/items", rec.Path)
	assert.Equal(t, "parse_failure", rec.Kind)
	assert.Equal(t, "name", rec.Field)
	assert.Equal(t, http.StatusBadRequest, rec.Status)
}
