package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nholik/case-sentinel/internal/api"
	"github.com/nholik/case-sentinel/internal/healthcheck"
	"github.com/nholik/case-sentinel/internal/metrics"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Server hosts the read API, health endpoints and metrics on one address.
type Server struct {
	logger zerolog.Logger
	server *http.Server
}

// New builds the router and HTTP server for addr.
func New(logger zerolog.Logger, addr string, pollInterval time.Duration, handler *api.Handler, tracker *healthcheck.Tracker, metricsCollector *metrics.Metrics) *Server {
	return &Server{
		logger: logger,
		server: &http.Server{
			Addr:              addr,
			Handler:           Router(handler, tracker, metricsCollector, pollInterval),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Router returns the combined route table.
func Router(handler *api.Handler, tracker *healthcheck.Tracker, metricsCollector *metrics.Metrics, pollInterval time.Duration) chi.Router {
	r := chi.NewRouter()
	if handler != nil {
		handler.RegisterHTTP(r)
	}
	r.Get("/healthz", healthcheck.HealthHandler(tracker, pollInterval))
	r.Get("/readyz", healthcheck.ReadyHandler(tracker))
	if metricsCollector != nil {
		r.Method(http.MethodGet, "/metrics", metricsCollector.Handler())
	}
	return r
}

// Run listens until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is canceled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", listener.Addr().String()).Msg("http server starting")
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Error().Err(err).Msg("http server failed")
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("http server shutdown failed")
		return err
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}
