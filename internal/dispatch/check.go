package dispatch

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tkingovr/portal/api"
)

// DefaultCheckHost is used when a check request names no host.
const DefaultCheckHost = "localhost"

// NewCheckRequest builds the synthetic request a dry run evaluates. Path
// may carry a query string.
func NewCheckRequest(req api.CheckRequest) (*http.Request, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	path := req.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path %q must start with /", path)
	}
	host := req.Host
	if host == "" {
		host = DefaultCheckHost
	}

	r, err := http.NewRequest(method, "http://"+host+path, strings.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("building check request: %w", err)
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, "Host") {
			r.Host = v
			continue
		}
		r.Header.Set(k, v)
	}
	r.RemoteAddr = req.RemoteAddr
	if r.RemoteAddr == "" {
		r.RemoteAddr = "127.0.0.1:0"
	}
	return r, nil
}

// CheckResponse summarizes a dry run.
func (o *Outcome) CheckResponse() *api.CheckResponse {
	resp := &api.CheckResponse{
		Outcome: o.State,
		Status:  o.Status,
	}
	if o.Rejection != nil {
		resp.Kind = o.Rejection.Kind.String()
		resp.Field = o.Rejection.Field
		resp.Message = o.Rejection.Error()
	}
	if o.Err != nil {
		resp.Message = o.Err.Error()
	}
	if o.Response != nil {
		resp.ContentType = o.Response.Header().Get("Content-Type")
		resp.Body = string(o.Response.Body())
	}
	return resp
}
