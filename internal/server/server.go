// Package server exposes the audit pipeline over HTTP: analysis
// submission, health and statistics, a verbose debug variant, and cached
// result retrieval, behind authentication and per-class rate limiting.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/amansir99/trustscan-ai-sub001/internal/adapter"
	"github.com/amansir99/trustscan-ai-sub001/internal/audit"
	"github.com/amansir99/trustscan-ai-sub001/internal/queue"
	"github.com/amansir99/trustscan-ai-sub001/internal/ratelimit"
)

// Config configures the HTTP server.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns production server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    2 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Rate classes. Audit submission is far more expensive than the other
// endpoints, so it gets its own, tighter limiter.
const (
	classAudit = "audit"
	classAPI   = "api"
)

// Server routes HTTP requests into the audit pipeline.
type Server struct {
	cfg          Config
	orchestrator *audit.Orchestrator
	queue        *queue.Queue
	auditLimiter *ratelimit.Limiter
	apiLimiter   *ratelimit.Limiter
	auth         adapter.Authenticator
	logger       *slog.Logger

	httpServer *http.Server
}

// New creates a Server. The orchestrator, queue, and both limiters are
// required; auth may be nil to disable authentication entirely.
func New(
	cfg Config,
	orchestrator *audit.Orchestrator,
	q *queue.Queue,
	auditLimiter, apiLimiter *ratelimit.Limiter,
	auth adapter.Authenticator,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		queue:        q,
		auditLimiter: auditLimiter,
		apiLimiter:   apiLimiter,
		auth:         auth,
		logger:       logger,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Handler builds the route table with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /audit/analyze",
		s.requireAuth(s.rateLimited(classAudit, http.HandlerFunc(s.handleAnalyze))))
	mux.Handle("GET /audit/analyze",
		s.rateLimited(classAPI, http.HandlerFunc(s.handleHealth)))
	mux.Handle("POST /audit/debug",
		s.rateLimited(classAPI, http.HandlerFunc(s.handleDebug)))
	mux.Handle("GET /audit/{id}",
		s.rateLimited(classAPI, http.HandlerFunc(s.handleGetResult)))

	return s.withRecovery(s.withLogging(mux))
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
