// Package app provides the top-level application lifecycle management for the
// settlement engine. It wires together all dependencies (stores, caches, blob
// storage, services, and notifications), starts the HTTP/WebSocket server and
// the background jobs, and tears everything down on shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/octagon/internal/config"
	"github.com/alanyoungcy/octagon/internal/server"
	"github.com/alanyoungcy/octagon/internal/server/handler"
	"github.com/alanyoungcy/octagon/internal/server/ws"
	"github.com/alanyoungcy/octagon/internal/service"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// context is cancelled.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the API
// server and background jobs, and blocks until the context is cancelled or a
// component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// --- Services ---
	ledgerSvc := service.NewLedgerService(
		deps.LedgerStore,
		deps.SignalBus,
		a.logger,
		a.cfg.Settlement.SignupBonus,
		a.cfg.Settlement.CheckInBonus,
	)
	marketSvc := service.NewMarketService(
		deps.MarketStore,
		deps.MarketCache,
		deps.SignalBus,
		a.logger,
		a.cfg.Settlement.ListingFee,
	)
	bettingSvc := service.NewBettingService(
		deps.BetStore,
		deps.MarketCache,
		deps.RateLimiter,
		deps.SignalBus,
		a.logger,
		a.cfg.Settlement.MinStake,
		a.cfg.Server.BetRateLimit,
	)
	resolutionSvc := service.NewResolutionService(
		deps.ResolutionStore,
		deps.MarketStore,
		deps.LockManager,
		deps.MarketCache,
		deps.SignalBus,
		deps.Notifier,
		a.logger,
		a.cfg.Settlement.DisputeWindow.Duration,
		a.cfg.Settlement.CreatorBonusBps,
	)

	// --- Handlers ---
	health := handler.NewHealthHandler(map[string]handler.Pinger{
		"postgres": pingFunc(deps.PostgresPing),
		"redis":    pingFunc(deps.RedisPing),
	}, a.logger)

	handlers := server.Handlers{
		Health:      health,
		Markets:     handler.NewMarketHandler(marketSvc, a.logger),
		Bets:        handler.NewBetHandler(bettingSvc, a.logger),
		Accounts:    handler.NewAccountHandler(ledgerSvc, a.logger),
		Resolutions: handler.NewResolutionHandler(resolutionSvc, a.logger),
		Admin:       handler.NewAdminHandler(marketSvc, resolutionSvc, ledgerSvc, a.logger),
	}

	hub := ws.NewHub(deps.SignalBus, a.logger)

	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		AdminAPIKey:  a.cfg.Server.AdminAPIKey,
		APIRateLimit: a.cfg.Server.APIRateLimit,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	// WebSocket hub.
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && err != context.Canceled {
			return fmt.Errorf("app: ws hub: %w", err)
		}
		return nil
	})

	// HTTP server plus its graceful-shutdown watcher.
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Close-time sweeper: flips open markets past their close time to
	// awaiting_resolution.
	g.Go(func() error {
		return a.runTicker(ctx, "sweeper", a.cfg.Jobs.SweepInterval.Duration, func(now time.Time) (int, error) {
			return marketSvc.SweepExpired(ctx, now)
		})
	})

	// Dispute finalizer: tallies every dispute whose challenge window has
	// elapsed.
	g.Go(func() error {
		return a.runTicker(ctx, "finalizer", a.cfg.Jobs.FinalizeInterval.Duration, func(now time.Time) (int, error) {
			return resolutionSvc.FinalizeDue(ctx, now)
		})
	})

	// Settlement archiver (optional).
	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runTicker(ctx, "archiver", a.cfg.Jobs.ArchiveInterval.Duration, func(time.Time) (int, error) {
				return deps.Archiver.Run(ctx)
			})
		})
	}

	return g.Wait()
}

// runTicker runs job on the given interval until the context is cancelled.
// Job errors are logged, not fatal; the next tick retries.
func (a *App) runTicker(ctx context.Context, name string, interval time.Duration, job func(now time.Time) (int, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.InfoContext(ctx, "background job started",
		slog.String("job", name),
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			n, err := job(now.UTC())
			if err != nil {
				a.logger.ErrorContext(ctx, "background job failed",
					slog.String("job", name),
					slog.String("error", err.Error()),
				)
				continue
			}
			if n > 0 {
				a.logger.InfoContext(ctx, "background job processed items",
					slog.String("job", name),
					slog.Int("count", n),
				)
			}
		}
	}
}

// pingFunc adapts a bare function to the handler.Pinger interface.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f(ctx)
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
