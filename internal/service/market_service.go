package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/octagon/internal/domain"
)

// MarketService handles the market lifecycle up to the resolution phase:
// creation, moderation, listing and the close-time sweep.
type MarketService struct {
	markets    domain.MarketStore
	cache      domain.MarketCache
	bus        domain.SignalBus
	logger     *slog.Logger
	listingFee int64
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	markets domain.MarketStore,
	cache domain.MarketCache,
	bus domain.SignalBus,
	logger *slog.Logger,
	listingFee int64,
) *MarketService {
	return &MarketService{
		markets:    markets,
		cache:      cache,
		bus:        bus,
		logger:     logger,
		listingFee: listingFee,
	}
}

// validateProposal checks the shape of a new market before anything touches
// the database.
func validateProposal(question string, closeTime time.Time, outcomeNames []string) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("%w: empty question", domain.ErrValidation)
	}
	if !closeTime.After(time.Now()) {
		return fmt.Errorf("%w: close time must be in the future", domain.ErrValidation)
	}
	if len(outcomeNames) < 2 {
		return fmt.Errorf("%w: at least two outcomes required", domain.ErrValidation)
	}
	seen := make(map[string]bool, len(outcomeNames))
	for _, name := range outcomeNames {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("%w: empty outcome name", domain.ErrValidation)
		}
		if seen[strings.ToLower(name)] {
			return fmt.Errorf("%w: duplicate outcome %q", domain.ErrValidation, name)
		}
		seen[strings.ToLower(name)] = true
	}
	return nil
}

// CreateOfficial publishes an admin market: it opens immediately, no listing
// fee, no creator.
func (s *MarketService) CreateOfficial(ctx context.Context, question, description string, closeTime time.Time, outcomeNames []string, feeBps int) (domain.Market, error) {
	if err := validateProposal(question, closeTime, outcomeNames); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create official: %w", err)
	}

	m, err := s.markets.Create(ctx, domain.Market{
		Question:    question,
		Description: description,
		CloseTime:   closeTime,
		FeeBps:      feeBps,
	}, outcomeNames)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create official: %w", err)
	}

	s.logger.InfoContext(ctx, "market_service: official market created",
		slog.String("market_id", m.ID),
		slog.String("question", m.Question),
	)
	s.publishMarket(ctx, m.ID, m.Status, "created")
	return m, nil
}

// CreateCommunity submits a user market for moderation. The listing fee is
// debited in the same database transaction that persists the draft.
func (s *MarketService) CreateCommunity(ctx context.Context, creator, question, description string, closeTime time.Time, outcomeNames []string, feeBps int) (domain.Market, error) {
	if strings.TrimSpace(creator) == "" {
		return domain.Market{}, fmt.Errorf("market_service: create community: %w: empty creator", domain.ErrValidation)
	}
	if err := validateProposal(question, closeTime, outcomeNames); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create community: %w", err)
	}

	m, err := s.markets.CreateWithListingFee(ctx, domain.Market{
		Question:    question,
		Description: description,
		CloseTime:   closeTime,
		Creator:     &creator,
		FeeBps:      feeBps,
	}, outcomeNames, s.listingFee)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create community: %w", err)
	}

	s.logger.InfoContext(ctx, "market_service: community market submitted",
		slog.String("market_id", m.ID),
		slog.String("creator", creator),
		slog.Int64("listing_fee", s.listingFee),
	)
	return m, nil
}

// Approve opens a draft market for betting.
func (s *MarketService) Approve(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.markets.ApproveDraft(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: approve %q: %w", id, err)
	}

	s.logger.InfoContext(ctx, "market_service: draft approved", slog.String("market_id", id))
	s.publishMarket(ctx, id, m.Status, "approved")
	return m, nil
}

// Reject deletes a draft market; the listing fee stays with the house.
func (s *MarketService) Reject(ctx context.Context, id string) error {
	if err := s.markets.RejectDraft(ctx, id); err != nil {
		return fmt.Errorf("market_service: reject %q: %w", id, err)
	}
	s.logger.InfoContext(ctx, "market_service: draft rejected", slog.String("market_id", id))
	return nil
}

// Get retrieves a market by ID, checking the cache first and falling back to
// the persistent store on a cache miss.
func (s *MarketService) Get(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.cache.Get(ctx, id)
	if err == nil {
		m.FillProbabilities()
		return m, nil
	}

	m, err = s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %q: %w", id, err)
	}

	// Back-fill cache; log but do not fail on cache write errors.
	if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.String("market_id", id),
			slog.String("error", cacheErr.Error()),
		)
	}
	m.FillProbabilities()
	return m, nil
}

// List returns markets filtered by status ("" = all), newest first.
func (s *MarketService) List(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.List(ctx, status, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list: %w", err)
	}
	for i := range markets {
		markets[i].FillProbabilities()
	}
	return markets, nil
}

// Purge removes a non-resolved market and everything hanging off it.
func (s *MarketService) Purge(ctx context.Context, id string) error {
	if err := s.markets.Purge(ctx, id); err != nil {
		return fmt.Errorf("market_service: purge %q: %w", id, err)
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache invalidate failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "market_service: market purged", slog.String("market_id", id))
	return nil
}

// SweepExpired moves every open market past its close time into
// awaiting_resolution. Safe to run from multiple replicas: the UPDATE's status
// guard makes overlapping sweeps harmless.
func (s *MarketService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	moved, err := s.markets.CloseExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("market_service: sweep expired: %w", err)
	}
	if moved > 0 {
		s.logger.InfoContext(ctx, "market_service: swept expired markets",
			slog.Int("count", moved),
		)
	}
	return moved, nil
}

func (s *MarketService) publishMarket(ctx context.Context, id string, status domain.MarketStatus, event string) {
	payload, err := json.Marshal(domain.MarketEvent{
		MarketID: id,
		Status:   status,
		Event:    event,
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelMarket, payload); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish market event failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}
