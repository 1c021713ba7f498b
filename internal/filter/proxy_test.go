package filter

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForward(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend-Path", r.URL.Path)
		w.Header().Set("X-Backend-Query", r.URL.RawQuery)
		io.WriteString(w, "from backend")
	}))
	defer backend.Close()

	fwd, err := Forward(backend.URL+"/v2", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	f := And(Path("api"), fwd)

	r := newRequest("GET", "/api/users/7?x=1")
	tup, rej := Evaluate(f, r)
	require.Nil(t, rej)
	assert.Equal(t, "/v2/users/7", Value[*ProxyReply](tup, 0).Path())

	rec := httptest.NewRecorder()
	Value[*ProxyReply](tup, 0).WriteReply(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from backend", rec.Body.String())
	assert.Equal(t, "/v2/users/7", rec.Header().Get("X-Backend-Path"))
	assert.Equal(t, "x=1", rec.Header().Get("X-Backend-Query"))
}

func TestForward_BackendDown(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	url := backend.URL
	backend.Close()

	fwd, err := Forward(url, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	r := newRequest("GET", "/x")
	tup, rej := Evaluate(fwd, r)
	require.Nil(t, rej)

	rec := httptest.NewRecorder()
	Value[*ProxyReply](tup, 0).WriteReply(rec, r)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestForward_InvalidTarget(t *testing.T) {
	_, err := Forward("ftp://example.com", nil)
	assert.Error(t, err)
	_, err = Forward("://bad", nil)
	assert.Error(t, err)
}
