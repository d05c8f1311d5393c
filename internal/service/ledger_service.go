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

// LedgerService handles accounts, bonuses and administrative money movement.
type LedgerService struct {
	ledger       domain.LedgerStore
	bus          domain.SignalBus
	logger       *slog.Logger
	signupBonus  int64
	checkInBonus int64
}

// NewLedgerService creates a LedgerService with all required dependencies.
func NewLedgerService(
	ledger domain.LedgerStore,
	bus domain.SignalBus,
	logger *slog.Logger,
	signupBonus, checkInBonus int64,
) *LedgerService {
	return &LedgerService{
		ledger:       ledger,
		bus:          bus,
		logger:       logger,
		signupBonus:  signupBonus,
		checkInBonus: checkInBonus,
	}
}

// Signup creates an account credited with the signup bonus.
func (s *LedgerService) Signup(ctx context.Context, userID string) (domain.Account, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Account{}, fmt.Errorf("ledger_service: %w: empty user id", domain.ErrValidation)
	}

	acct, err := s.ledger.CreateAccount(ctx, userID, s.signupBonus)
	if err != nil {
		return domain.Account{}, fmt.Errorf("ledger_service: signup %q: %w", userID, err)
	}

	s.logger.InfoContext(ctx, "ledger_service: account created",
		slog.String("user_id", userID),
		slog.Int64("opening_balance", acct.Balance),
	)
	s.publishBalance(ctx, userID, acct.Balance, s.signupBonus, domain.TxAirdrop)
	return acct, nil
}

// GetAccount retrieves an account by user ID.
func (s *LedgerService) GetAccount(ctx context.Context, userID string) (domain.Account, error) {
	acct, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		return domain.Account{}, fmt.Errorf("ledger_service: get account %q: %w", userID, err)
	}
	return acct, nil
}

// ListTransactions returns a user's transaction history, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	txs, err := s.ledger.ListTransactions(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("ledger_service: list transactions %q: %w", userID, err)
	}
	return txs, nil
}

// CheckIn credits the daily check-in bonus, at most once per calendar day.
func (s *LedgerService) CheckIn(ctx context.Context, userID string) (domain.Transaction, error) {
	entry, err := s.ledger.ClaimDaily(ctx, userID, s.checkInBonus, time.Now().UTC())
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("ledger_service: check-in %q: %w", userID, err)
	}

	s.logger.InfoContext(ctx, "ledger_service: daily bonus claimed",
		slog.String("user_id", userID),
		slog.Int64("amount", entry.Amount),
	)
	s.notifyBalance(ctx, userID, entry.Amount, domain.TxCheckIn)
	return entry, nil
}

// AdminTransfer applies a signed adjustment to one account. Positive amounts
// credit, negative amounts debit.
func (s *LedgerService) AdminTransfer(ctx context.Context, userID string, amount int64, description string) (domain.Transaction, error) {
	if amount == 0 {
		return domain.Transaction{}, fmt.Errorf("ledger_service: %w: zero transfer", domain.ErrValidation)
	}

	entry, err := s.ledger.Transfer(ctx, userID, amount, domain.TxTransfer, description)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("ledger_service: transfer %q: %w", userID, err)
	}

	s.logger.InfoContext(ctx, "ledger_service: admin transfer",
		slog.String("user_id", userID),
		slog.Int64("amount", amount),
	)
	s.notifyBalance(ctx, userID, amount, domain.TxTransfer)
	return entry, nil
}

// Airdrop credits every account the same amount and returns how many accounts
// were credited.
func (s *LedgerService) Airdrop(ctx context.Context, amount int64, description string) (int, error) {
	count, err := s.ledger.BulkCredit(ctx, amount, domain.TxAirdrop, description)
	if err != nil {
		return 0, fmt.Errorf("ledger_service: airdrop: %w", err)
	}

	s.logger.InfoContext(ctx, "ledger_service: airdrop",
		slog.Int64("amount", amount),
		slog.Int("accounts", count),
	)
	return count, nil
}

// notifyBalance re-reads the balance and publishes a balance event. Event
// delivery is best-effort and never fails the money movement.
func (s *LedgerService) notifyBalance(ctx context.Context, userID string, amount int64, kind domain.TxKind) {
	acct, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "ledger_service: balance lookup for event failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.publishBalance(ctx, userID, acct.Balance, amount, kind)
}

func (s *LedgerService) publishBalance(ctx context.Context, userID string, balance, amount int64, kind domain.TxKind) {
	payload, err := json.Marshal(domain.BalanceEvent{
		UserID:  userID,
		Balance: balance,
		Amount:  amount,
		Kind:    kind,
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelBalance, payload); err != nil {
		s.logger.WarnContext(ctx, "ledger_service: publish balance event failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
