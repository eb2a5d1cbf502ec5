// Package server exposes the escrow engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/crowdduel/duelbet/internal/domain"
	"github.com/crowdduel/duelbet/internal/server/handler"
	"github.com/crowdduel/duelbet/internal/server/middleware"
	"github.com/crowdduel/duelbet/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// Per-client-IP request limit across the whole API. Zero disables it.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health   *handler.HealthHandler
	Bets     *handler.BetHandler
	Supports *handler.SupportHandler
	Payouts  *handler.PayoutHandler
	Audit    *handler.AuditHandler
}

// Server is the headless HTTP + WebSocket API for the duel escrow engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting) and attaches
// the WebSocket hub. The limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Bet lifecycle.
	mux.HandleFunc("POST /api/bets", handlers.Bets.CreateBet)
	mux.HandleFunc("GET /api/bets", handlers.Bets.ListBets)
	mux.HandleFunc("GET /api/bets/{id}", handlers.Bets.GetBet)
	mux.HandleFunc("POST /api/bets/{id}/deposit", handlers.Bets.Deposit)
	mux.HandleFunc("POST /api/bets/{id}/declare", handlers.Bets.DeclareWinner)

	// Crowd support.
	mux.HandleFunc("POST /api/bets/{id}/support", handlers.Supports.Support)
	mux.HandleFunc("POST /api/bets/{id}/claim", handlers.Supports.Claim)
	mux.HandleFunc("GET /api/bets/{id}/positions", handlers.Supports.ListBetPositions)
	mux.HandleFunc("GET /api/supports", handlers.Supports.ListPositions)

	// Payouts.
	mux.HandleFunc("POST /api/bets/{id}/withdraw-principal", handlers.Payouts.WithdrawPrincipal)
	mux.HandleFunc("POST /api/bets/{id}/withdraw-spread", handlers.Payouts.WithdrawSpread)

	// Audit log.
	mux.HandleFunc("GET /api/audit", handlers.Audit.ListEntries)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	authed := middleware.Auth(cfg.APIKey)(h)
	h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The health check stays reachable without credentials.
		if r.URL.Path == "/api/health" {
			mux.ServeHTTP(w, r)
			return
		}
		authed.ServeHTTP(w, r)
	})

	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
