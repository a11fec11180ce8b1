// Package server exposes the operational HTTP surface: a liveness ping
// and a detailed status snapshot for dashboards and uptime probes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
)

// Server wraps the health HTTP listener.
type Server struct {
	cfg    *common.Config
	logger arbor.ILogger
	health *healthHandler
	server *http.Server
}

// New builds the server around the given health surfaces. Start blocks,
// so callers run it on its own goroutine.
func New(cfg *common.Config, health Health, logger arbor.ILogger) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		health: newHealthHandler(cfg, health),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health/ping", s.health.ping)
	mux.HandleFunc("/health/detailed", s.health.detailed)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.withMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.server.Addr).Msg("Health server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("health server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("health server shutdown failed: %w", err)
	}
	s.logger.Info().Msg("Health server stopped")
	return nil
}
