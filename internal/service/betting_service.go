package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/octagon/internal/domain"
)

// BettingService admits bets into outcome pools. Every admission precondition
// runs inside the store transaction, in contract order; the service layer adds
// only the checks that never need database state (identity, rate limit).
type BettingService struct {
	bets      domain.BetStore
	cache     domain.MarketCache
	limiter   domain.RateLimiter
	bus       domain.SignalBus
	logger    *slog.Logger
	minStake  int64
	rateLimit int
}

// NewBettingService creates a BettingService with all required dependencies.
func NewBettingService(
	bets domain.BetStore,
	cache domain.MarketCache,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	logger *slog.Logger,
	minStake int64,
	rateLimit int,
) *BettingService {
	return &BettingService{
		bets:      bets,
		cache:     cache,
		limiter:   limiter,
		bus:       bus,
		logger:    logger,
		minStake:  minStake,
		rateLimit: rateLimit,
	}
}

// PlaceBet validates and admits a bet. Same-outcome top-ups are allowed; a
// second outcome on the same market is rejected before any money moves.
func (s *BettingService) PlaceBet(ctx context.Context, userID, marketID, outcomeID string, amount int64) (domain.Bet, error) {
	if userID == "" || marketID == "" || outcomeID == "" {
		return domain.Bet{}, fmt.Errorf("betting_service: %w: missing identifiers", domain.ErrValidation)
	}

	if s.rateLimit > 0 {
		allowed, err := s.limiter.Allow(ctx, "bet:"+userID, s.rateLimit, time.Minute)
		if err != nil {
			// A broken limiter must not take betting down with it.
			s.logger.WarnContext(ctx, "betting_service: rate limiter unavailable",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		} else if !allowed {
			return domain.Bet{}, fmt.Errorf("betting_service: %w", domain.ErrRateLimited)
		}
	}

	bet, err := s.bets.PlaceBet(ctx, domain.Bet{
		UserID:    userID,
		MarketID:  marketID,
		OutcomeID: outcomeID,
		Amount:    amount,
	}, s.minStake)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("betting_service: place bet: %w", err)
	}

	if err := s.cache.Invalidate(ctx, marketID); err != nil {
		s.logger.WarnContext(ctx, "betting_service: cache invalidate failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "betting_service: bet admitted",
		slog.String("bet_id", bet.ID),
		slog.String("user_id", userID),
		slog.String("market_id", marketID),
		slog.Int64("amount", amount),
	)
	s.publishMarket(ctx, marketID, "bet_placed")
	return bet, nil
}

// ListMarketBets returns the bets on a market, oldest first.
func (s *BettingService) ListMarketBets(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Bet, error) {
	bets, err := s.bets.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("betting_service: list market bets %q: %w", marketID, err)
	}
	return bets, nil
}

// ListUserBets returns a user's bets, newest first.
func (s *BettingService) ListUserBets(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error) {
	bets, err := s.bets.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("betting_service: list user bets %q: %w", userID, err)
	}
	return bets, nil
}

func (s *BettingService) publishMarket(ctx context.Context, marketID, event string) {
	payload, err := json.Marshal(domain.MarketEvent{
		MarketID: marketID,
		Status:   domain.MarketOpen,
		Event:    event,
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelMarket, payload); err != nil {
		s.logger.WarnContext(ctx, "betting_service: publish market event failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}
