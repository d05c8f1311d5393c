package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/octagon/internal/domain"
	"github.com/alanyoungcy/octagon/internal/notify"
)

// settleLockTTL bounds how long a settlement lock can outlive a crashed
// holder.
const settleLockTTL = 30 * time.Second

// ResolutionService drives both resolution paths: the administrator override
// and the creator-staked proposal with its dispute window. The database keeps
// settlement atomic; the redis lock keeps the surrounding side effects
// (events, notifications) from running twice.
type ResolutionService struct {
	resolutions     domain.ResolutionStore
	markets         domain.MarketStore
	locks           domain.LockManager
	cache           domain.MarketCache
	bus             domain.SignalBus
	notifier        *notify.Notifier
	logger          *slog.Logger
	disputeWindow   time.Duration
	creatorBonusBps int
}

// NewResolutionService creates a ResolutionService with all required
// dependencies.
func NewResolutionService(
	resolutions domain.ResolutionStore,
	markets domain.MarketStore,
	locks domain.LockManager,
	cache domain.MarketCache,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	logger *slog.Logger,
	disputeWindow time.Duration,
	creatorBonusBps int,
) *ResolutionService {
	return &ResolutionService{
		resolutions:     resolutions,
		markets:         markets,
		locks:           locks,
		cache:           cache,
		bus:             bus,
		notifier:        notifier,
		logger:          logger,
		disputeWindow:   disputeWindow,
		creatorBonusBps: creatorBonusBps,
	}
}

// AdminResolve settles a market at the given outcome and pays every winner.
func (s *ResolutionService) AdminResolve(ctx context.Context, marketID, outcomeID, evidence string) (domain.SettlementResult, error) {
	unlock, err := s.locks.Acquire(ctx, "settle:"+marketID, settleLockTTL)
	if err != nil {
		return domain.SettlementResult{}, fmt.Errorf("resolution_service: admin resolve %q: %w", marketID, err)
	}
	defer unlock()

	result, err := s.resolutions.ResolveAndPay(ctx, marketID, outcomeID, evidence)
	if err != nil {
		return domain.SettlementResult{}, fmt.Errorf("resolution_service: admin resolve %q: %w", marketID, err)
	}

	s.afterSettlement(ctx, result, "resolved")
	return result, nil
}

// Propose starts the creator-staked resolution path: the creator's whole
// balance is locked as stake and the challenge window opens.
func (s *ResolutionService) Propose(ctx context.Context, marketID, outcomeID, evidence, creator string) (domain.Market, error) {
	disputeEndsAt := time.Now().Add(s.disputeWindow)

	m, err := s.resolutions.ProposeResolution(ctx, marketID, outcomeID, evidence, creator, disputeEndsAt)
	if err != nil {
		return domain.Market{}, fmt.Errorf("resolution_service: propose %q: %w", marketID, err)
	}

	s.invalidate(ctx, marketID)
	s.logger.InfoContext(ctx, "resolution_service: resolution proposed",
		slog.String("market_id", marketID),
		slog.String("creator", creator),
		slog.Int64("stake", m.StakedAmount),
		slog.Time("dispute_ends_at", disputeEndsAt),
	)
	s.publishMarket(ctx, marketID, m.Status, "dispute_opened")
	if err := s.notifier.Notify(ctx, "dispute_opened", "Resolution proposed",
		fmt.Sprintf("Market %s: creator %s staked %d coins; challenge window closes %s.",
			marketID, creator, m.StakedAmount, disputeEndsAt.Format(time.RFC3339))); err != nil {
		s.logger.WarnContext(ctx, "resolution_service: notify failed", slog.String("error", err.Error()))
	}
	return m, nil
}

// Vote records a bettor's objection to the pending proposal.
func (s *ResolutionService) Vote(ctx context.Context, marketID, voter string) (domain.DisputeVote, error) {
	vote, err := s.resolutions.InsertVote(ctx, marketID, voter)
	if err != nil {
		return domain.DisputeVote{}, fmt.Errorf("resolution_service: vote %q: %w", marketID, err)
	}

	s.logger.InfoContext(ctx, "resolution_service: dispute vote recorded",
		slog.String("market_id", marketID),
		slog.String("voter", voter),
	)
	return vote, nil
}

// Finalize tallies a dispute whose window has elapsed and either settles the
// market or reverts it to awaiting_resolution.
func (s *ResolutionService) Finalize(ctx context.Context, marketID string) (domain.FinalizeResult, error) {
	unlock, err := s.locks.Acquire(ctx, "settle:"+marketID, settleLockTTL)
	if err != nil {
		return domain.FinalizeResult{}, fmt.Errorf("resolution_service: finalize %q: %w", marketID, err)
	}
	defer unlock()

	result, err := s.resolutions.Finalize(ctx, marketID, time.Now(), s.creatorBonusBps)
	if err != nil {
		return domain.FinalizeResult{}, fmt.Errorf("resolution_service: finalize %q: %w", marketID, err)
	}

	switch result.Outcome {
	case domain.FinalizeUpheld:
		s.afterSettlement(ctx, domain.SettlementResult{Market: result.Market, Payouts: result.Payouts}, "resolved")
		s.logger.InfoContext(ctx, "resolution_service: dispute upheld",
			slog.String("market_id", marketID),
			slog.Int("votes_against", result.VotesAgainst),
			slog.Int("distinct_bettors", result.DistinctBettors),
			slog.Int64("creator_bonus", result.CreatorBonus),
		)
	case domain.FinalizeReverted:
		s.invalidate(ctx, marketID)
		s.publishMarket(ctx, marketID, result.Market.Status, "dispute_reverted")
		s.logger.InfoContext(ctx, "resolution_service: dispute reverted",
			slog.String("market_id", marketID),
			slog.Int("votes_against", result.VotesAgainst),
			slog.Int("distinct_bettors", result.DistinctBettors),
		)
		if err := s.notifier.Notify(ctx, "dispute_reverted", "Resolution reverted",
			fmt.Sprintf("Market %s: %d of %d bettors voted against; stake forfeited.",
				marketID, result.VotesAgainst, result.DistinctBettors)); err != nil {
			s.logger.WarnContext(ctx, "resolution_service: notify failed", slog.String("error", err.Error()))
		}
	}
	return result, nil
}

// FinalizeDue finalizes every dispute whose challenge window has elapsed.
// Returns the number of markets settled or reverted.
func (s *ResolutionService) FinalizeDue(ctx context.Context, now time.Time) (int, error) {
	markets, err := s.markets.List(ctx, domain.MarketDisputePhase, domain.ListOpts{Limit: 100})
	if err != nil {
		return 0, fmt.Errorf("resolution_service: finalize due: %w", err)
	}

	var done int
	for _, m := range markets {
		if m.DisputeEndsAt == nil || now.Before(*m.DisputeEndsAt) {
			continue
		}
		if _, err := s.Finalize(ctx, m.ID); err != nil {
			// ErrLockHeld means another replica took this one; anything else
			// is logged and the loop moves on.
			s.logger.WarnContext(ctx, "resolution_service: finalize due failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		done++
	}
	return done, nil
}

// afterSettlement runs the post-commit side effects shared by both settlement
// paths.
func (s *ResolutionService) afterSettlement(ctx context.Context, result domain.SettlementResult, event string) {
	s.invalidate(ctx, result.Market.ID)
	s.publishMarket(ctx, result.Market.ID, domain.MarketResolved, event)

	s.logger.InfoContext(ctx, "resolution_service: market settled",
		slog.String("market_id", result.Market.ID),
		slog.Int("winners", len(result.Payouts)),
		slog.Int64("distributable", result.Distributable),
		slog.Int64("fee", result.FeeAmount),
	)
	if err := s.notifier.Notify(ctx, "market_resolved", "Market resolved",
		fmt.Sprintf("Market %s settled; %d winner(s) paid.", result.Market.ID, len(result.Payouts))); err != nil {
		s.logger.WarnContext(ctx, "resolution_service: notify failed", slog.String("error", err.Error()))
	}
}

func (s *ResolutionService) invalidate(ctx context.Context, marketID string) {
	if err := s.cache.Invalidate(ctx, marketID); err != nil {
		s.logger.WarnContext(ctx, "resolution_service: cache invalidate failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ResolutionService) publishMarket(ctx context.Context, id string, status domain.MarketStatus, event string) {
	payload, err := json.Marshal(domain.MarketEvent{
		MarketID: id,
		Status:   status,
		Event:    event,
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelMarket, payload); err != nil {
		s.logger.WarnContext(ctx, "resolution_service: publish market event failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}
