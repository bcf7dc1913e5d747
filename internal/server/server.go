// Package server hosts the backup API alongside metrics and health endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imedwei/workspace-backups/internal/health"
)

// Server represents the HTTP server.
type Server struct {
	server  *http.Server
	logger  *slog.Logger
	checker *health.Checker
}

// Config holds server configuration.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Port:            8080,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// New creates a new HTTP server. api, when non-nil, is mounted at /api.
func New(config Config, logger *slog.Logger, api http.Handler) *Server {
	r := chi.NewRouter()
	checker := health.NewChecker()

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", checker.Handler())
	r.Get("/ready", checker.ReadinessHandler())
	r.Get("/live", health.LivenessHandler())
	if api != nil {
		r.Mount("/api", api)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return &Server{
		server:  server,
		logger:  logger,
		checker: checker,
	}
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// RegisterHealthCheck registers a health check function.
func (s *Server) RegisterHealthCheck(name string, checkFunc func(context.Context) health.Check) {
	s.checker.RegisterCheck(name, checkFunc)
}

// SetReady marks the server ready or draining.
func (s *Server) SetReady(ready bool) {
	s.checker.SetReady(ready)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	s.checker.SetReady(false)
	return s.server.Shutdown(ctx)
}
