package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/octagon/internal/domain"
)

// ResolutionStore implements domain.ResolutionStore using PostgreSQL. Every
// method is a single transaction: resolution state, stake movements and
// payouts commit together or not at all.
type ResolutionStore struct {
	pool *pgxpool.Pool
}

// NewResolutionStore creates a new ResolutionStore backed by the given pool.
func NewResolutionStore(pool *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{pool: pool}
}

// lockMarket reads the market row under FOR UPDATE so resolution decisions are
// serialized per market.
func lockMarket(ctx context.Context, tx pgx.Tx, marketID string) (domain.Market, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1 FOR UPDATE`, marketID)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: lock market %s: %w", marketID, err)
	}
	if m.Outcomes, err = loadOutcomes(ctx, tx, marketID); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

func outcomeOf(m domain.Market, outcomeID string) (domain.Outcome, bool) {
	for _, o := range m.Outcomes {
		if o.ID == outcomeID {
			return o, true
		}
	}
	return domain.Outcome{}, false
}

// payWinners computes and credits the proportional payouts for a settled
// market on the caller's open transaction.
func payWinners(ctx context.Context, tx pgx.Tx, m domain.Market, winningOutcomeID string) ([]domain.Payout, int64, int64, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+betCols+` FROM bets WHERE market_id = $1 ORDER BY created_at`, m.ID)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("postgres: load bets for %s: %w", m.ID, err)
	}
	bets, err := scanBets(rows)
	if err != nil {
		return nil, 0, 0, err
	}

	totalPool := m.TotalPool()
	fee := domain.FeeAmount(totalPool, m.FeeBps)
	payouts := domain.ComputePayouts(bets, winningOutcomeID, totalPool, m.FeeBps)

	for _, p := range payouts {
		if _, err := applyLedger(ctx, tx, p.UserID, p.Amount, domain.TxPayout, "market payout", &m.ID); err != nil {
			return nil, 0, 0, err
		}
	}
	return payouts, totalPool - fee, fee, nil
}

// markResolved claims the terminal transition. The status guard in the WHERE
// clause means a concurrent settlement that slipped past the row lock still
// produces exactly one winner.
func markResolved(ctx context.Context, tx pgx.Tx, marketID, outcomeID, evidence string, fromStatus domain.MarketStatus) error {
	tag, err := tx.Exec(ctx,
		`UPDATE markets
		 SET status = $2, resolved_outcome = $3, evidence = $4,
		     resolved_at = NOW(), dispute_ends_at = NULL, updated_at = NOW()
		 WHERE id = $1 AND status = $5`,
		marketID, string(domain.MarketResolved), outcomeID, evidence, string(fromStatus),
	)
	if err != nil {
		return fmt.Errorf("postgres: mark resolved %s: %w", marketID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

// ResolveAndPay is the administrator override: valid from any non-resolved,
// non-draft state. If it interrupts a dispute phase the creator's stake is
// returned; the proposal simply never takes effect.
func (s *ResolutionStore) ResolveAndPay(ctx context.Context, marketID, outcomeID, evidence string) (domain.SettlementResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.SettlementResult{}, fmt.Errorf("postgres: begin resolve: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return domain.SettlementResult{}, err
	}
	if m.Status == domain.MarketResolved || m.Status == domain.MarketDraftPending {
		return domain.SettlementResult{}, domain.ErrInvalidState
	}
	if _, ok := outcomeOf(m, outcomeID); !ok {
		return domain.SettlementResult{}, domain.ErrNotFound
	}

	if m.Status == domain.MarketDisputePhase && m.StakedAmount > 0 && m.Creator != nil {
		if _, err := applyLedger(ctx, tx, *m.Creator, m.StakedAmount, domain.TxStakeReturn, "stake returned on admin resolution", &m.ID); err != nil {
			return domain.SettlementResult{}, err
		}
	}

	payouts, distributable, fee, err := payWinners(ctx, tx, m, outcomeID)
	if err != nil {
		return domain.SettlementResult{}, err
	}

	if err := markResolved(ctx, tx, marketID, outcomeID, evidence, m.Status); err != nil {
		return domain.SettlementResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.SettlementResult{}, fmt.Errorf("postgres: commit resolve: %w", err)
	}

	m.Status = domain.MarketResolved
	m.ResolvedOutcomeID = &outcomeID
	m.Evidence = evidence
	now := time.Now()
	m.ResolvedAt = &now
	return domain.SettlementResult{
		Market:        m,
		Payouts:       payouts,
		Distributable: distributable,
		FeeAmount:     fee,
	}, nil
}

// ProposeResolution is the creator-staked path: the creator's entire current
// balance is locked as stake (zero balance yields a zero-value stake) and the
// market enters the dispute phase until disputeEndsAt.
func (s *ResolutionStore) ProposeResolution(ctx context.Context, marketID, outcomeID, evidence, creator string, disputeEndsAt time.Time) (domain.Market, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: begin propose: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return domain.Market{}, err
	}
	if m.Status != domain.MarketAwaitingResolution {
		return domain.Market{}, domain.ErrInvalidState
	}
	if !m.CreatedBy(creator) {
		return domain.Market{}, domain.ErrNotCreator
	}
	if _, ok := outcomeOf(m, outcomeID); !ok {
		return domain.Market{}, domain.ErrNotFound
	}

	var stake int64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE user_id = $1 FOR UPDATE`, creator,
	).Scan(&stake)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: lock creator account %s: %w", creator, err)
	}
	if stake > 0 {
		if _, err := applyLedger(ctx, tx, creator, -stake, domain.TxStakeLock, "resolution stake locked", &m.ID); err != nil {
			return domain.Market{}, err
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE markets
		 SET status = $2, resolved_outcome = $3, evidence = $4,
		     staked_amount = $5, dispute_ends_at = $6, updated_at = NOW()
		 WHERE id = $1`,
		marketID, string(domain.MarketDisputePhase), outcomeID, evidence, stake, disputeEndsAt,
	); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: enter dispute phase %s: %w", marketID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: commit propose: %w", err)
	}

	m.Status = domain.MarketDisputePhase
	m.ResolvedOutcomeID = &outcomeID
	m.Evidence = evidence
	m.StakedAmount = stake
	m.DisputeEndsAt = &disputeEndsAt
	return m, nil
}

// InsertVote records a dispute vote after checking, in order, market state,
// voter eligibility and vote uniqueness.
func (s *ResolutionStore) InsertVote(ctx context.Context, marketID, voter string) (domain.DisputeVote, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.DisputeVote{}, fmt.Errorf("postgres: begin vote: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM markets WHERE id = $1 FOR UPDATE`, marketID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DisputeVote{}, domain.ErrNotFound
		}
		return domain.DisputeVote{}, fmt.Errorf("postgres: lock market %s: %w", marketID, err)
	}
	if domain.MarketStatus(status) != domain.MarketDisputePhase {
		return domain.DisputeVote{}, domain.ErrInvalidState
	}

	var hasBet bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM bets WHERE market_id = $1 AND user_id = $2)`,
		marketID, voter,
	).Scan(&hasBet)
	if err != nil {
		return domain.DisputeVote{}, fmt.Errorf("postgres: check voter eligibility: %w", err)
	}
	if !hasBet {
		return domain.DisputeVote{}, domain.ErrNotEligible
	}

	vote := domain.DisputeVote{MarketID: marketID, Voter: voter}
	err = tx.QueryRow(ctx,
		`INSERT INTO dispute_votes (market_id, voter) VALUES ($1, $2) RETURNING created_at`,
		marketID, voter,
	).Scan(&vote.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.DisputeVote{}, domain.ErrAlreadyVoted
		}
		return domain.DisputeVote{}, fmt.Errorf("postgres: insert vote: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.DisputeVote{}, fmt.Errorf("postgres: commit vote: %w", err)
	}
	return vote, nil
}

// Finalize tallies the dispute once the challenge window has elapsed. An
// upheld proposal settles the market: winners are paid, the stake is returned
// and the creator earns the bonus. A reverted proposal sends the market back
// to awaiting_resolution and the stake is forfeited.
func (s *ResolutionStore) Finalize(ctx context.Context, marketID string, now time.Time, creatorBonusBps int) (domain.FinalizeResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.FinalizeResult{}, fmt.Errorf("postgres: begin finalize: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return domain.FinalizeResult{}, err
	}
	if m.Status == domain.MarketResolved {
		return domain.FinalizeResult{Outcome: domain.FinalizeAlreadyResolved, Market: m}, nil
	}
	if m.Status != domain.MarketDisputePhase || m.ResolvedOutcomeID == nil {
		return domain.FinalizeResult{}, domain.ErrInvalidState
	}
	if m.DisputeEndsAt == nil || now.Before(*m.DisputeEndsAt) {
		return domain.FinalizeResult{}, domain.ErrChallengeWindowOpen
	}

	var votesAgainst int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM dispute_votes WHERE market_id = $1`, marketID,
	).Scan(&votesAgainst); err != nil {
		return domain.FinalizeResult{}, fmt.Errorf("postgres: count votes: %w", err)
	}
	var distinctBettors int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM bets WHERE market_id = $1`, marketID,
	).Scan(&distinctBettors); err != nil {
		return domain.FinalizeResult{}, fmt.Errorf("postgres: count bettors: %w", err)
	}

	result := domain.FinalizeResult{
		VotesAgainst:    votesAgainst,
		DistinctBettors: distinctBettors,
	}

	if domain.Tally(votesAgainst, distinctBettors) == domain.TallyReverted {
		// Stake forfeited: the STAKE_LOCK debit is never reversed. Votes are
		// cleared so the next proposal starts from a clean slate.
		if _, err := tx.Exec(ctx,
			`DELETE FROM dispute_votes WHERE market_id = $1`, marketID); err != nil {
			return domain.FinalizeResult{}, fmt.Errorf("postgres: clear votes: %w", err)
		}
		tag, err := tx.Exec(ctx,
			`UPDATE markets
			 SET status = $2, resolved_outcome = NULL, evidence = '',
			     staked_amount = 0, dispute_ends_at = NULL, updated_at = NOW()
			 WHERE id = $1 AND status = $3`,
			marketID, string(domain.MarketAwaitingResolution), string(domain.MarketDisputePhase),
		)
		if err != nil {
			return domain.FinalizeResult{}, fmt.Errorf("postgres: revert market %s: %w", marketID, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.FinalizeResult{}, domain.ErrInvalidState
		}
		if err := tx.Commit(ctx); err != nil {
			return domain.FinalizeResult{}, fmt.Errorf("postgres: commit revert: %w", err)
		}

		result.Outcome = domain.FinalizeReverted
		m.Status = domain.MarketAwaitingResolution
		m.ResolvedOutcomeID = nil
		m.Evidence = ""
		m.StakedAmount = 0
		m.DisputeEndsAt = nil
		result.Market = m
		return result, nil
	}

	// Upheld: settle at the proposed outcome.
	winningOutcomeID := *m.ResolvedOutcomeID
	payouts, _, _, err := payWinners(ctx, tx, m, winningOutcomeID)
	if err != nil {
		return domain.FinalizeResult{}, err
	}

	if m.Creator != nil {
		if m.StakedAmount > 0 {
			if _, err := applyLedger(ctx, tx, *m.Creator, m.StakedAmount, domain.TxStakeReturn, "resolution stake returned", &m.ID); err != nil {
				return domain.FinalizeResult{}, err
			}
			result.StakeReturned = m.StakedAmount
		}
		if bonus := domain.BonusAmount(m.TotalPool(), creatorBonusBps); bonus > 0 {
			if _, err := applyLedger(ctx, tx, *m.Creator, bonus, domain.TxCreatorBonus, "creator resolution bonus", &m.ID); err != nil {
				return domain.FinalizeResult{}, err
			}
			result.CreatorBonus = bonus
		}
	}

	if err := markResolved(ctx, tx, marketID, winningOutcomeID, m.Evidence, domain.MarketDisputePhase); err != nil {
		return domain.FinalizeResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.FinalizeResult{}, fmt.Errorf("postgres: commit finalize: %w", err)
	}

	result.Outcome = domain.FinalizeUpheld
	result.Payouts = payouts
	m.Status = domain.MarketResolved
	resolvedAt := now
	m.ResolvedAt = &resolvedAt
	result.Market = m
	return result, nil
}
