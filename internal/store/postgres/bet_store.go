package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/octagon/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

// PlaceBet admits a bet inside one database transaction: it re-checks the
// admission preconditions under a market row lock, debits the bettor, grows
// the outcome pool and records the bet plus its ledger entry. Any failed
// check rolls everything back.
func (s *BetStore) PlaceBet(ctx context.Context, bet domain.Bet, minStake int64) (domain.Bet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: begin place bet: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the market row so the state check and the pool increment are
	// consistent with concurrent sweeps and resolutions.
	state := domain.AdmissionState{}
	var status string
	err = tx.QueryRow(ctx,
		`SELECT status, close_time, creator FROM markets WHERE id = $1 FOR UPDATE`,
		bet.MarketID,
	).Scan(&status, &state.CloseTime, &state.Creator)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: lock market %s: %w", bet.MarketID, err)
	}
	state.Status = domain.MarketStatus(status)

	// The outcome must belong to this market.
	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM outcomes WHERE id = $1 AND market_id = $2)`,
		bet.OutcomeID, bet.MarketID,
	).Scan(&exists)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: check outcome %s: %w", bet.OutcomeID, err)
	}
	if !exists {
		return domain.Bet{}, domain.ErrNotFound
	}

	rows, err := tx.Query(ctx,
		`SELECT DISTINCT outcome_id FROM bets WHERE market_id = $1 AND user_id = $2`,
		bet.MarketID, bet.UserID,
	)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: check existing bets: %w", err)
	}
	state.HeldOutcomes, err = scanStrings(rows)
	if err != nil {
		return domain.Bet{}, err
	}

	if err := domain.CheckAdmission(state, bet, minStake, time.Now()); err != nil {
		return domain.Bet{}, err
	}

	if _, err := applyLedger(ctx, tx, bet.UserID, -bet.Amount, domain.TxBet, "bet placed", &bet.MarketID); err != nil {
		return domain.Bet{}, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE outcomes SET pool = pool + $2 WHERE id = $1`,
		bet.OutcomeID, bet.Amount,
	); err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: grow pool %s: %w", bet.OutcomeID, err)
	}

	if bet.ID == "" {
		bet.ID = uuid.NewString()
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO bets (id, user_id, market_id, outcome_id, amount)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		bet.ID, bet.UserID, bet.MarketID, bet.OutcomeID, bet.Amount,
	).Scan(&bet.CreatedAt)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: insert bet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: commit place bet: %w", err)
	}
	return bet, nil
}

func scanStrings(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}
	return out, nil
}

const betCols = `id, user_id, market_id, outcome_id, amount, created_at`

func scanBets(rows pgx.Rows) ([]domain.Bet, error) {
	defer rows.Close()
	var bets []domain.Bet
	for rows.Next() {
		var b domain.Bet
		if err := rows.Scan(&b.ID, &b.UserID, &b.MarketID, &b.OutcomeID, &b.Amount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: bet rows: %w", err)
	}
	return bets, nil
}

// ListByMarket returns the bets on a market, oldest first.
func (s *BetStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Bet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+betCols+` FROM bets
		 WHERE market_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3`,
		marketID, limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for market %s: %w", marketID, err)
	}
	return scanBets(rows)
}

// ListAllByMarket returns every bet on a market, oldest first, with no
// pagination cap. Settlement exports must never truncate.
func (s *BetStore) ListAllByMarket(ctx context.Context, marketID string) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betCols+` FROM bets WHERE market_id = $1 ORDER BY created_at`,
		marketID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list all bets for market %s: %w", marketID, err)
	}
	return scanBets(rows)
}

// ListByUser returns a user's bets, newest first.
func (s *BetStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+betCols+` FROM bets
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for user %s: %w", userID, err)
	}
	return scanBets(rows)
}

// CountDistinctBettors returns how many distinct users ever bet on a market.
func (s *BetStore) CountDistinctBettors(ctx context.Context, marketID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM bets WHERE market_id = $1`, marketID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count bettors for %s: %w", marketID, err)
	}
	return count, nil
}
