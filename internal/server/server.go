// Package server exposes ingestion and the session operations over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rcliao/checkpoint-tracker/internal/ingest"
	"github.com/rcliao/checkpoint-tracker/internal/interview"
)

// Sessions is the session-driving surface.
type Sessions interface {
	StartSession(ctx context.Context, topic, category string) (*interview.StartResult, error)
	RecordEvent(ctx context.Context, ev interview.Event) (*interview.EventResult, error)
	GetContext(ctx context.Context, sessionID string) (*interview.ContextResult, error)
	EndSession(ctx context.Context, sessionID string) (*interview.EndResult, error)
}

// Ingester accepts raw session summaries.
type Ingester interface {
	Ingest(ctx context.Context, req *ingest.Request) (*ingest.Result, error)
}

// Config holds the HTTP server configuration.
type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration

	// IngestPerMinute and IngestBurst size the per-client limiter on the
	// ingest endpoint. Zero IngestPerMinute disables it.
	IngestPerMinute float64
	IngestBurst     int

	Logger *slog.Logger
}

// Server wraps the HTTP server with its handlers.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// New creates a server. Nothing listens until ListenAndServe.
func New(cfg Config, sessions Sessions, ingester Ingester) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}

	h := &handlers{
		sessions: sessions,
		ingester: ingester,
		limiter:  newClientLimiter(cfg.IngestPerMinute, cfg.IngestBurst),
		logger:   cfg.Logger,
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery(), requestID(), logRequests(cfg.Logger))
	registerRoutes(router, h)

	return &Server{
		logger: cfg.Logger,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.logger.Info("HTTP server starting", "address", s.srv.Addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err)
		}
	}()

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
