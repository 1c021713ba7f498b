// Package server runs a filter tree behind an http.Server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tkingovr/portal/internal/dispatch"
	"github.com/tkingovr/portal/internal/filter"
)

const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second
)

// Server serves one filter tree.
type Server struct {
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	dispatchOpts    []dispatch.Option
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for the server and its dispatcher.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTimeouts sets the http.Server read, write and idle timeouts. Zero
// leaves a timeout disabled.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
		s.idleTimeout = idle
	}
}

// WithShutdownTimeout bounds how long Run waits for in-flight requests
// after its context is cancelled.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// WithDispatchOptions passes options through to the dispatcher.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(s *Server) {
		s.dispatchOpts = append(s.dispatchOpts, opts...)
	}
}

// New creates a server for f. It fails if f does not extract exactly one
// value.
func New(f filter.Filter, opts ...Option) (*Server, error) {
	s := &Server{
		logger:          slog.Default(),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	dopts := append([]dispatch.Option{dispatch.WithLogger(s.logger)}, s.dispatchOpts...)
	d, err := dispatch.New(f, dopts...)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	s.dispatcher = d
	return s, nil
}

// Serve is New for filter trees known to be valid. It panics on error.
func Serve(f filter.Filter, opts ...Option) *Server {
	s, err := New(f, opts...)
	if err != nil {
		panic("server.Serve: " + err.Error())
	}
	return s
}

// Handler returns the dispatcher as an http.Handler.
func (s *Server) Handler() http.Handler { return s.dispatcher }

// Dispatcher returns the underlying dispatcher.
func (s *Server) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// Run listens on addr and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.RunListener(ctx, ln)
}

// RunListener serves on ln until ctx is cancelled. It closes ln.
func (s *Server) RunListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.dispatcher,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       s.idleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("serving", "listen", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "listen", ln.Addr().String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
