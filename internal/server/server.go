// Package server exposes the settlement engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/octagon/internal/domain"
	"github.com/alanyoungcy/octagon/internal/server/handler"
	"github.com/alanyoungcy/octagon/internal/server/middleware"
	"github.com/alanyoungcy/octagon/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	AdminAPIKey string // if empty, the admin surface is disabled
	// APIRateLimit caps requests per client IP per minute (0 = unlimited).
	APIRateLimit int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Markets     *handler.MarketHandler
	Bets        *handler.BetHandler
	Accounts    *handler.AccountHandler
	Resolutions *handler.ResolutionHandler
	Admin       *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server for the settlement engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, optional IP rate limiting) and
// attaches the WebSocket hub. The admin surface carries its own key check and
// is only registered when a key is configured.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market endpoints.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)

	// Bet endpoints.
	mux.HandleFunc("POST /api/markets/{id}/bets", handlers.Bets.PlaceBet)
	mux.HandleFunc("GET /api/markets/{id}/bets", handlers.Bets.ListMarketBets)

	// Resolution endpoints (creator path).
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Resolutions.Propose)
	mux.HandleFunc("POST /api/markets/{id}/dispute/votes", handlers.Resolutions.Vote)
	mux.HandleFunc("POST /api/markets/{id}/finalize", handlers.Resolutions.Finalize)

	// Account endpoints.
	mux.HandleFunc("POST /api/accounts", handlers.Accounts.Signup)
	mux.HandleFunc("GET /api/accounts/{userID}", handlers.Accounts.GetAccount)
	mux.HandleFunc("GET /api/accounts/{userID}/transactions", handlers.Accounts.ListTransactions)
	mux.HandleFunc("GET /api/accounts/{userID}/bets", handlers.Bets.ListUserBets)
	mux.HandleFunc("POST /api/accounts/{userID}/checkin", handlers.Accounts.CheckIn)

	// Admin endpoints, guarded by the admin key. Without a key the whole
	// surface stays unregistered.
	if cfg.AdminAPIKey != "" {
		admin := http.NewServeMux()
		admin.HandleFunc("POST /api/admin/markets", handlers.Admin.CreateMarket)
		admin.HandleFunc("POST /api/admin/markets/{id}/approve", handlers.Admin.ApproveMarket)
		admin.HandleFunc("POST /api/admin/markets/{id}/reject", handlers.Admin.RejectMarket)
		admin.HandleFunc("POST /api/admin/markets/{id}/resolve", handlers.Admin.ResolveMarket)
		admin.HandleFunc("DELETE /api/admin/markets/{id}", handlers.Admin.PurgeMarket)
		admin.HandleFunc("POST /api/admin/transfers", handlers.Admin.Transfer)
		admin.HandleFunc("POST /api/admin/airdrop", handlers.Admin.Airdrop)
		mux.Handle("/api/admin/", middleware.Auth(cfg.AdminAPIKey)(admin))
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	if limiter != nil && cfg.APIRateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.APIRateLimit, time.Minute)(h)
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
