package filter

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
)

// newRequest builds a request with alternating header names and values.
func newRequest(method, target string, headers ...string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}
	return r
}

func newBodyRequest(method, target, body string) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	return httptest.NewRequest(method, target, rd)
}

// counting wraps a fixed result and counts evaluations.
func counting(shape Shape, t Tuple, rej *Rejection, calls *int) Filter {
	return Func(shape, func(*Route) (Tuple, *Rejection) {
		*calls++
		if rej != nil {
			return nil, rej
		}
		return t, nil
	})
}

func writeReply(t Tuple, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	Value[Reply](t, 0).WriteReply(rec, r)
	return rec
}
