package filter

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"strings"
)

// ProxyReply forwards the request to a backend and streams its response.
type ProxyReply struct {
	rp   *httputil.ReverseProxy
	path string
}

// Path returns the backend path the request is sent to.
func (p *ProxyReply) Path() string { return p.path }

func (p *ProxyReply) WriteReply(w http.ResponseWriter, r *http.Request) {
	out := r.Clone(r.Context())
	out.URL.Path = p.path
	out.URL.RawPath = ""
	p.rp.ServeHTTP(w, out)
}

type forward struct {
	target *url.URL
	rp     *httputil.ReverseProxy
}

// Forward returns a filter extracting a *ProxyReply for target. The
// unmatched path segments are appended to the target path and consumed.
func Forward(target string, logger *slog.Logger) (Filter, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy target: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid proxy target %q: scheme must be http or https", target)
	}
	if logger == nil {
		logger = slog.Default()
	}

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			path := pr.Out.URL.Path
			pr.SetURL(u)
			pr.Out.URL.Path = path
			pr.Out.URL.RawPath = ""
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("proxy error", "error", err, "target", u.String(), "path", r.URL.Path)
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		},
	}
	return &forward{target: u, rp: rp}, nil
}

func (f *forward) Shape() Shape { return ShapeOf[*ProxyReply]() }

func (f *forward) Extract(rt *Route) (Tuple, *Rejection) {
	rest := rt.Remaining()
	rt.advance(len(rest))
	p := "/" + strings.TrimPrefix(path.Join(f.target.Path, path.Join(rest...)), "/")
	if len(rest) > 0 && strings.HasSuffix(rt.Request().URL.Path, "/") {
		p += "/"
	}
	return Tuple{&ProxyReply{rp: f.rp, path: p}}, nil
}
