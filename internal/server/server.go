package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vyrodovalexey/edgerouter/internal/observability"
)

// Server is the long-running HTTP listener hosting the engine handler plus
// the health and metrics endpoints.
type Server struct {
	addr    string
	server  *http.Server
	handler http.Handler
	metrics *observability.Metrics
	logger  observability.Logger
	running atomic.Bool
}

// ServerOption is a functional option for configuring the server.
type ServerOption func(*Server)

// WithServerLogger sets the logger for the server.
func WithServerLogger(logger observability.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithServerMetrics mounts the metrics registry on /metrics.
func WithServerMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a server for the given handler.
func NewServer(addr string, handler http.Handler, opts ...ServerOption) *Server {
	s := &Server{
		addr:    addr,
		handler: handler,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Address returns the listen address.
func (s *Server) Address() string {
	return s.addr
}

// Start starts the listener.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server is already running on %s", s.addr)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	mux.Handle("/", s.handler)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.running.Store(true)

	s.logger.Info("server started",
		observability.String("address", s.addr),
	)

	go s.serve(ln)

	return nil
}

// serve starts serving requests.
func (s *Server) serve(ln net.Listener) {
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		s.logger.Error("server error", observability.Error(err))
	}
	s.running.Store(false)
}

// Stop stops the server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.Load() {
		return nil
	}

	s.logger.Info("stopping server")

	if err := s.server.Shutdown(ctx); err != nil {
		if closeErr := s.server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close server: %w", closeErr)
		}
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	s.running.Store(false)

	s.logger.Info("server stopped")

	return nil
}
