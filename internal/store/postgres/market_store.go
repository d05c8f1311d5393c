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

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, question, description, status, close_time, creator,
	fee_bps, resolved_outcome, evidence, staked_amount,
	dispute_ends_at, resolved_at, created_at, updated_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status string
	err := row.Scan(
		&m.ID, &m.Question, &m.Description, &status, &m.CloseTime, &m.Creator,
		&m.FeeBps, &m.ResolvedOutcomeID, &m.Evidence, &m.StakedAmount,
		&m.DisputeEndsAt, &m.ResolvedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// queryable lets the outcome loaders run on either the pool or an open tx.
type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadOutcomes(ctx context.Context, q queryable, marketID string) ([]domain.Outcome, error) {
	rows, err := q.Query(ctx,
		`SELECT id, market_id, name, pool, position
		 FROM outcomes WHERE market_id = $1 ORDER BY position`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load outcomes for %s: %w", marketID, err)
	}
	defer rows.Close()

	var outcomes []domain.Outcome
	for rows.Next() {
		var o domain.Outcome
		if err := rows.Scan(&o.ID, &o.MarketID, &o.Name, &o.Pool, &o.Position); err != nil {
			return nil, fmt.Errorf("postgres: scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: outcome rows: %w", err)
	}
	return outcomes, nil
}

// insertMarket persists the market row and its outcome rows on an open tx.
func insertMarket(ctx context.Context, tx pgx.Tx, m domain.Market, outcomeNames []string) (domain.Market, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	err := tx.QueryRow(ctx,
		`INSERT INTO markets (id, question, description, status, close_time, creator, fee_bps)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		m.ID, m.Question, m.Description, string(m.Status), m.CloseTime, m.Creator, m.FeeBps,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: insert market: %w", err)
	}

	m.Outcomes = make([]domain.Outcome, 0, len(outcomeNames))
	for i, name := range outcomeNames {
		o := domain.Outcome{
			ID:       uuid.NewString(),
			MarketID: m.ID,
			Name:     name,
			Position: i,
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO outcomes (id, market_id, name, pool, position)
			 VALUES ($1, $2, $3, 0, $4)`,
			o.ID, o.MarketID, o.Name, o.Position,
		); err != nil {
			return domain.Market{}, fmt.Errorf("postgres: insert outcome %q: %w", name, err)
		}
		m.Outcomes = append(m.Outcomes, o)
	}
	return m, nil
}

// Create persists an official market in the open state.
func (s *MarketStore) Create(ctx context.Context, market domain.Market, outcomeNames []string) (domain.Market, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: begin create market: %w", err)
	}
	defer tx.Rollback(ctx)

	market.Status = domain.MarketOpen
	created, err := insertMarket(ctx, tx, market, outcomeNames)
	if err != nil {
		return domain.Market{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: commit create market: %w", err)
	}
	return created, nil
}

// CreateWithListingFee persists a community market in draft_pending state,
// debiting the listing fee from the creator in the same database transaction.
// If the creator cannot cover the fee nothing is persisted.
func (s *MarketStore) CreateWithListingFee(ctx context.Context, market domain.Market, outcomeNames []string, fee int64) (domain.Market, error) {
	if market.Creator == nil {
		return domain.Market{}, domain.ErrValidation
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: begin create draft: %w", err)
	}
	defer tx.Rollback(ctx)

	market.Status = domain.MarketDraftPending
	created, err := insertMarket(ctx, tx, market, outcomeNames)
	if err != nil {
		return domain.Market{}, err
	}

	if fee > 0 {
		if _, err := applyLedger(ctx, tx, *market.Creator, -fee, domain.TxFee, "market listing fee", &created.ID); err != nil {
			return domain.Market{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: commit create draft: %w", err)
	}
	return created, nil
}

// ApproveDraft transitions a draft_pending market to open. The status guard in
// the UPDATE makes concurrent approvals settle on exactly one winner.
func (s *MarketStore) ApproveDraft(ctx context.Context, id string) (domain.Market, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND status = $3`,
		id, string(domain.MarketOpen), string(domain.MarketDraftPending),
	)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: approve draft %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, id); errors.Is(err, domain.ErrNotFound) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, domain.ErrInvalidState
	}
	return s.GetByID(ctx, id)
}

// RejectDraft deletes a draft_pending market. The listing fee is kept.
func (s *MarketStore) RejectDraft(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM markets WHERE id = $1 AND status = $2`,
		id, string(domain.MarketDraftPending),
	)
	if err != nil {
		return fmt.Errorf("postgres: reject draft %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, id); errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidState
	}
	return nil
}

// CloseExpired moves every open market whose close time has elapsed into
// awaiting_resolution. Idempotent: markets already moved match nothing.
func (s *MarketStore) CloseExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET status = $1, updated_at = NOW()
		 WHERE status = $2 AND close_time <= $3`,
		string(domain.MarketAwaitingResolution), string(domain.MarketOpen), now,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: close expired markets: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// GetByID retrieves a market with its outcomes.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	if m.Outcomes, err = loadOutcomes(ctx, s.pool, id); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

// List returns markets filtered by status ("" = all), newest first.
func (s *MarketStore) List(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + marketCols + ` FROM markets`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	markets, err := scanMarkets(rows)
	if err != nil {
		return nil, err
	}
	for i := range markets {
		if markets[i].Outcomes, err = loadOutcomes(ctx, s.pool, markets[i].ID); err != nil {
			return nil, err
		}
	}
	return markets, nil
}

// ListResolvedSince returns markets resolved at or after the given instant,
// oldest first. The archiver walks this to export settlement trails.
func (s *MarketStore) ListResolvedSince(ctx context.Context, since time.Time) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets
		 WHERE status = $1 AND resolved_at >= $2 AND archived_at IS NULL
		 ORDER BY resolved_at`,
		string(domain.MarketResolved), since,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved markets: %w", err)
	}
	markets, err := scanMarkets(rows)
	if err != nil {
		return nil, err
	}
	for i := range markets {
		if markets[i].Outcomes, err = loadOutcomes(ctx, s.pool, markets[i].ID); err != nil {
			return nil, err
		}
	}
	return markets, nil
}

// MarkArchived stamps a resolved market as exported to the archive.
func (s *MarketStore) MarkArchived(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE markets SET archived_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: mark archived %s: %w", id, err)
	}
	return nil
}

// Purge removes a non-resolved market; bets and votes cascade. Resolved
// markets are refused because their financial trail is retained indefinitely.
func (s *MarketStore) Purge(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM markets WHERE id = $1 AND status <> $2`,
		id, string(domain.MarketResolved),
	)
	if err != nil {
		return fmt.Errorf("postgres: purge market %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, id); errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidState
	}
	return nil
}

func scanMarkets(rows pgx.Rows) ([]domain.Market, error) {
	defer rows.Close()
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: market rows: %w", err)
	}
	return markets, nil
}
