package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/octagon/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// applyLedger locks the account row, applies a signed amount to the balance
// and appends the transaction row, all on the caller's open transaction. It is
// the single choke point every money movement in the codebase goes through.
func applyLedger(ctx context.Context, tx pgx.Tx, userID string, amount int64, kind domain.TxKind, description string, marketID *string) (domain.Transaction, error) {
	var balance int64
	err := tx.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: lock account %s: %w", userID, err)
	}

	if balance+amount < 0 {
		return domain.Transaction{}, domain.ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $2, updated_at = NOW() WHERE user_id = $1`,
		userID, amount,
	); err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: update balance %s: %w", userID, err)
	}

	entry := domain.Transaction{
		UserID:      userID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		MarketID:    marketID,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO transactions (user_id, amount, kind, description, market_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		userID, amount, string(kind), description, marketID,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: insert transaction for %s: %w", userID, err)
	}
	return entry, nil
}

// CreateAccount creates an account, crediting the opening balance (if any)
// with a welcome transaction in the same database transaction.
func (s *LedgerStore) CreateAccount(ctx context.Context, userID string, openingBalance int64) (domain.Account, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Account{}, fmt.Errorf("postgres: begin create account: %w", err)
	}
	defer tx.Rollback(ctx)

	var acct domain.Account
	err = tx.QueryRow(ctx,
		`INSERT INTO accounts (user_id, balance) VALUES ($1, $2)
		 RETURNING user_id, balance, created_at, updated_at`,
		userID, openingBalance,
	).Scan(&acct.UserID, &acct.Balance, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Account{}, domain.ErrAlreadyExists
		}
		return domain.Account{}, fmt.Errorf("postgres: create account %s: %w", userID, err)
	}

	if openingBalance > 0 {
		if _, err := tx.Exec(ctx,
			`INSERT INTO transactions (user_id, amount, kind, description)
			 VALUES ($1, $2, $3, $4)`,
			userID, openingBalance, string(domain.TxAirdrop), "signup bonus",
		); err != nil {
			return domain.Account{}, fmt.Errorf("postgres: record signup bonus for %s: %w", userID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Account{}, fmt.Errorf("postgres: commit create account: %w", err)
	}
	return acct, nil
}

// GetAccount retrieves an account by user ID.
func (s *LedgerStore) GetAccount(ctx context.Context, userID string) (domain.Account, error) {
	var acct domain.Account
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1`,
		userID,
	).Scan(&acct.UserID, &acct.Balance, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("postgres: get account %s: %w", userID, err)
	}
	return acct, nil
}

// Transfer applies a signed amount to the user's balance and appends a
// transaction as one atomic unit.
func (s *LedgerStore) Transfer(ctx context.Context, userID string, amount int64, kind domain.TxKind, description string) (domain.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: begin transfer: %w", err)
	}
	defer tx.Rollback(ctx)

	entry, err := applyLedger(ctx, tx, userID, amount, kind, description, nil)
	if err != nil {
		return domain.Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: commit transfer: %w", err)
	}
	return entry, nil
}

// BulkCredit credits every account the same amount and appends the matching
// ledger rows, all in one statement. The single snapshot matters: an account
// created between a separate UPDATE and INSERT..SELECT would get a ledger row
// with no balance credit.
func (s *LedgerStore) BulkCredit(ctx context.Context, amount int64, kind domain.TxKind, description string) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrValidation
	}

	tag, err := s.pool.Exec(ctx,
		`WITH credited AS (
			UPDATE accounts SET balance = balance + $1, updated_at = NOW()
			RETURNING user_id
		 )
		 INSERT INTO transactions (user_id, amount, kind, description)
		 SELECT user_id, $1, $2, $3 FROM credited`,
		amount, string(kind), description,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: bulk credit: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ClaimDaily credits the check-in bonus at most once per calendar day. The
// daily_claims primary key enforces the once-per-day rule under concurrency.
func (s *LedgerStore) ClaimDaily(ctx context.Context, userID string, amount int64, day time.Time) (domain.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: begin daily claim: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO daily_claims (user_id, claim_date) VALUES ($1, $2)`,
		userID, day.UTC().Format("2006-01-02"),
	); err != nil {
		if isUniqueViolation(err) {
			return domain.Transaction{}, domain.ErrAlreadyClaimed
		}
		// No account row to reference: the claimant does not exist.
		if isForeignKeyViolation(err) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: record daily claim %s: %w", userID, err)
	}

	entry, err := applyLedger(ctx, tx, userID, amount, domain.TxCheckIn, "daily check-in bonus", nil)
	if err != nil {
		return domain.Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: commit daily claim: %w", err)
	}
	return entry, nil
}

const txCols = `id, user_id, amount, kind, description, market_id, created_at`

func scanTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()
	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var kind string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &kind, &t.Description, &t.MarketID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		t.Kind = domain.TxKind(kind)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: transaction rows: %w", err)
	}
	return out, nil
}

// ListTransactions returns a user's transaction history, newest first.
func (s *LedgerStore) ListTransactions(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+txCols+` FROM transactions
		 WHERE user_id = $1
		 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		userID, limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions for %s: %w", userID, err)
	}
	return scanTransactions(rows)
}

// ListTransactionsByMarket returns every ledger entry linked to a market, in
// insertion order. This is the settlement audit trail.
func (s *LedgerStore) ListTransactionsByMarket(ctx context.Context, marketID string) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+txCols+` FROM transactions WHERE market_id = $1 ORDER BY id`,
		marketID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions for market %s: %w", marketID, err)
	}
	return scanTransactions(rows)
}
