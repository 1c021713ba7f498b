package filter

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBodyLimit caps body reads done by filters that don't set their own limit.
const DefaultBodyLimit int64 = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// Route carries the state of one request through a filter tree. It wraps
// the incoming request, which filters must treat as read-only, together
// with a cursor over the path segments that have not been matched yet.
type Route struct {
	req      *http.Request
	segments []string
	index    int
	query    url.Values

	// Body bytes buffered so far. bodySrc is the unread rest of the
	// original body, nil once it reached EOF or failed.
	body     []byte
	bodySrc  io.ReadCloser
	bodyErr  error
	bodyInit bool
}

// NewRoute creates the evaluation state for r.
func NewRoute(r *http.Request) *Route {
	return &Route{
		req:      r,
		segments: splitPath(r.URL),
	}
}

// splitPath breaks the escaped path into decoded segments. Empty segments
// are dropped, so "/", "" and "//" all have no segments and a trailing
// slash does not change the match.
func splitPath(u *url.URL) []string {
	raw := strings.Split(u.EscapedPath(), "/")
	segs := make([]string, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			continue
		}
		if dec, err := url.PathUnescape(s); err == nil {
			s = dec
		}
		segs = append(segs, s)
	}
	return segs
}

// Request returns the underlying request.
func (rt *Route) Request() *http.Request { return rt.req }

// Method returns the request method.
func (rt *Route) Method() string { return rt.req.Method }

// Header returns the first value of the named header. net/http moves the
// Host header out of the header map, so it is served from Request.Host.
func (rt *Route) Header(name string) (string, bool) {
	if strings.EqualFold(name, "host") {
		if rt.req.Host == "" {
			return "", false
		}
		return rt.req.Host, true
	}
	vals, ok := rt.req.Header[http.CanonicalHeaderKey(name)]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Query returns the parsed query string, parsing it on first use.
func (rt *Route) Query() url.Values {
	if rt.query == nil {
		rt.query = rt.req.URL.Query()
	}
	return rt.query
}

// Peek returns the next unmatched path segment.
func (rt *Route) Peek() (string, bool) {
	if rt.index >= len(rt.segments) {
		return "", false
	}
	return rt.segments[rt.index], true
}

// Remaining returns the unmatched path segments.
func (rt *Route) Remaining() []string {
	return rt.segments[rt.index:]
}

// Matched returns the path segments consumed so far.
func (rt *Route) Matched() []string {
	return rt.segments[:rt.index]
}

func (rt *Route) advance(n int) {
	rt.index = min(rt.index+n, len(rt.segments))
}

func (rt *Route) cursor() int { return rt.index }

func (rt *Route) reset(idx int) { rt.index = idx }

// Body returns the request body if it is at most limit bytes, and
// errBodyTooLarge otherwise. Bytes are buffered on the route and read from
// the client only as far as the largest limit asked for so far, so every
// caller gets a decision for its own limit regardless of which filters ran
// before it. The request body keeps serving the complete stream, buffered
// bytes first.
func (rt *Route) Body(limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	if !rt.bodyInit {
		rt.bodyInit = true
		if rt.req.Body != nil && rt.req.Body != http.NoBody {
			rt.bodySrc = rt.req.Body
		}
	}

	if rt.bodySrc != nil && int64(len(rt.body)) <= limit {
		want := limit + 1 - int64(len(rt.body))
		chunk, err := io.ReadAll(io.LimitReader(rt.bodySrc, want))
		rt.body = append(rt.body, chunk...)
		switch {
		case err != nil:
			rt.bodyErr = err
			rt.closeBody()
		case int64(len(chunk)) < want:
			rt.closeBody()
		}
		rt.restoreBody()
	}

	switch {
	case rt.bodyErr != nil:
		return nil, rt.bodyErr
	case int64(len(rt.body)) > limit:
		return nil, errBodyTooLarge
	}
	return rt.body[:len(rt.body):len(rt.body)], nil
}

func (rt *Route) closeBody() {
	rt.bodySrc.Close()
	rt.bodySrc = nil
}

// restoreBody points the request body at the buffered bytes followed by
// whatever the client has not sent yet.
func (rt *Route) restoreBody() {
	buffered := bytes.NewReader(rt.body)
	if rt.bodySrc == nil {
		rt.req.Body = io.NopCloser(buffered)
		return
	}
	rt.req.Body = &pendingBody{Reader: io.MultiReader(buffered, rt.bodySrc), src: rt.bodySrc}
}

type pendingBody struct {
	io.Reader
	src io.Closer
}

func (b *pendingBody) Close() error { return b.src.Close() }
