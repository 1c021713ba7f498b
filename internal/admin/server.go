// Package admin serves the operator pages and JSON API next to the
// route server: access log, statistics, the compiled route table, the
// active policy, dry runs and Prometheus metrics.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tkingovr/portal/internal/access"
	"github.com/tkingovr/portal/internal/dispatch"
	"github.com/tkingovr/portal/internal/metrics"
	"github.com/tkingovr/portal/internal/policy"
	"github.com/tkingovr/portal/internal/routes"
)

// Server is the admin HTTP server.
type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	store      access.Store
	dispatcher *dispatch.Dispatcher
	table      *routes.Table
	engine     policy.Engine
	prom       *metrics.Prometheus
	addr       string
}

// Option configures a Server.
type Option func(*Server)

// WithEngine exposes the policy engine on the policy page and enables
// reloads.
func WithEngine(e policy.Engine) Option {
	return func(s *Server) {
		s.engine = e
	}
}

// WithMetrics serves p on /metrics.
func WithMetrics(p *metrics.Prometheus) Option {
	return func(s *Server) {
		s.prom = p
	}
}

// NewServer creates a new admin server. The dispatcher answers dry runs
// and table is shown on the routes page.
func NewServer(addr string, store access.Store, d *dispatch.Dispatcher, table *routes.Table, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		store:      store,
		dispatcher: d,
		table:      table,
		addr:       addr,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /", s.handleOverview)
	s.mux.HandleFunc("GET /access", s.handleAccess)
	s.mux.HandleFunc("GET /access/stream", s.handleAccessStream)
	s.mux.HandleFunc("GET /routes", s.handleRoutes)
	s.mux.HandleFunc("GET /policy", s.handlePolicy)
	s.mux.HandleFunc("GET /api/v1/stats", s.handleAPIStats)
	s.mux.HandleFunc("GET /api/v1/access", s.handleAPIAccess)
	s.mux.HandleFunc("GET /api/v1/routes", s.handleAPIRoutes)
	s.mux.HandleFunc("POST /api/v1/check", s.handleAPICheck)
	s.mux.HandleFunc("POST /api/v1/policy/reload", s.handleAPIReload)
	if s.prom != nil {
		s.mux.Handle("GET /metrics", s.prom.Handler())
	}
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	s.logger.Info("starting admin server", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the HTTP handler for embedding in other servers.
func (s *Server) Handler() http.Handler {
	return s.mux
}
