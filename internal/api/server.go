// Package api exposes the assistant over HTTP.
//
// Endpoints:
//
//	POST /api/v1/chat                    answer one question
//	POST /api/v1/feedback                rate an answer
//	GET  /api/v1/sessions/{id}/messages  conversation history
//	GET  /health                         dependency health
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: recovery, request id, logging, CORS
//   - ratelimit.go: per-IP token bucket for /api/ routes
//   - chat.go, feedback.go, history.go, health.go: handlers
//   - response.go: JSON envelope helpers and error kinds
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/uovfts/faculty-assistant/internal/log"
)

// Server timeouts. ReadHeaderTimeout guards against Slowloris; WriteTimeout
// must exceed the pipeline's worst case (two generation attempts).
const (
	ShutdownTimeout   = 10 * time.Second
	ReadHeaderTimeout = 10 * time.Second
	ReadTimeout       = 30 * time.Second
	WriteTimeout      = 120 * time.Second
	IdleTimeout       = 120 * time.Second
)

// Config holds server settings.
type Config struct {
	Addr               string
	CORSOrigins        []string
	TrustProxy         bool
	RateLimitPerMinute int
	RateLimitBurst     int
}

// Server is the HTTP server for the assistant API.
type Server struct {
	mux    *http.ServeMux
	cfg    Config
	logger log.Logger
}

// NewServer creates a server with all routes registered.
func NewServer(cfg Config, chat *ChatHandler, feedback *FeedbackHandler, history *HistoryHandler, health *HealthHandler, logger log.Logger) *Server {
	mux := http.NewServeMux()
	chat.RegisterRoutes(mux)
	feedback.RegisterRoutes(mux)
	history.RegisterRoutes(mux)
	health.RegisterRoutes(mux)

	return &Server{mux: mux, cfg: cfg, logger: logger}
}

// Handler returns the HTTP handler with the middleware stack applied.
// Order: recovery → request id → logging → CORS → rate limit → routes.
func (s *Server) Handler() http.Handler {
	perSecond := float64(s.cfg.RateLimitPerMinute) / 60.0
	rl := newRateLimiter(perSecond, s.cfg.RateLimitBurst)

	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware(),
		loggingMiddleware(s.logger),
		corsMiddleware(s.cfg.CORSOrigins),
		rateLimitMiddleware(rl, s.cfg.TrustProxy, s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully. handler is usually s.Handler(), optionally
// wrapped with tracing by the caller.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
