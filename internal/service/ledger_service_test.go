package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/octagon/internal/domain"
)

type fakeLedgerStore struct {
	accounts map[string]domain.Account
	claims   map[string]bool
	credited int
	err      error
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{
		accounts: make(map[string]domain.Account),
		claims:   make(map[string]bool),
	}
}

func (s *fakeLedgerStore) CreateAccount(ctx context.Context, userID string, openingBalance int64) (domain.Account, error) {
	if s.err != nil {
		return domain.Account{}, s.err
	}
	if _, ok := s.accounts[userID]; ok {
		return domain.Account{}, domain.ErrAlreadyExists
	}
	acct := domain.Account{UserID: userID, Balance: openingBalance}
	s.accounts[userID] = acct
	return acct, nil
}

func (s *fakeLedgerStore) GetAccount(ctx context.Context, userID string) (domain.Account, error) {
	acct, ok := s.accounts[userID]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return acct, nil
}

func (s *fakeLedgerStore) Transfer(ctx context.Context, userID string, amount int64, kind domain.TxKind, description string) (domain.Transaction, error) {
	acct, ok := s.accounts[userID]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if acct.Balance+amount < 0 {
		return domain.Transaction{}, domain.ErrInsufficientFunds
	}
	acct.Balance += amount
	s.accounts[userID] = acct
	return domain.Transaction{UserID: userID, Amount: amount, Kind: kind, Description: description}, nil
}

func (s *fakeLedgerStore) BulkCredit(ctx context.Context, amount int64, kind domain.TxKind, description string) (int, error) {
	return s.credited, s.err
}

func (s *fakeLedgerStore) ClaimDaily(ctx context.Context, userID string, amount int64, day time.Time) (domain.Transaction, error) {
	key := userID + day.Format("2006-01-02")
	if s.claims[key] {
		return domain.Transaction{}, domain.ErrAlreadyClaimed
	}
	s.claims[key] = true
	acct := s.accounts[userID]
	acct.UserID = userID
	acct.Balance += amount
	s.accounts[userID] = acct
	return domain.Transaction{UserID: userID, Amount: amount, Kind: domain.TxCheckIn}, nil
}

func (s *fakeLedgerStore) ListTransactions(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	return nil, s.err
}

func (s *fakeLedgerStore) ListTransactionsByMarket(ctx context.Context, marketID string) ([]domain.Transaction, error) {
	return nil, nil
}

func newLedgerService(store *fakeLedgerStore, bus *fakeBus) *LedgerService {
	return NewLedgerService(store, bus, testLogger(), 1000, 50)
}

func TestSignup_CreditsBonusAndPublishes(t *testing.T) {
	store := newFakeLedgerStore()
	bus := newFakeBus()
	svc := newLedgerService(store, bus)

	acct, err := svc.Signup(context.Background(), "  u1  ")

	require.NoError(t, err)
	assert.Equal(t, "u1", acct.UserID)
	assert.Equal(t, int64(1000), acct.Balance)

	events := bus.events(domain.ChannelBalance)
	require.Len(t, events, 1)

	var ev domain.BalanceEvent
	require.NoError(t, json.Unmarshal(events[0], &ev))
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, int64(1000), ev.Balance)
}

func TestSignup_EmptyUserID(t *testing.T) {
	svc := newLedgerService(newFakeLedgerStore(), newFakeBus())

	_, err := svc.Signup(context.Background(), "   ")

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSignup_Duplicate(t *testing.T) {
	store := newFakeLedgerStore()
	svc := newLedgerService(store, newFakeBus())

	_, err := svc.Signup(context.Background(), "u1")
	require.NoError(t, err)

	_, err = svc.Signup(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestCheckIn_OncePerDay(t *testing.T) {
	store := newFakeLedgerStore()
	store.accounts["u1"] = domain.Account{UserID: "u1", Balance: 100}
	svc := newLedgerService(store, newFakeBus())

	entry, err := svc.CheckIn(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), entry.Amount)

	_, err = svc.CheckIn(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestAdminTransfer_RejectsZero(t *testing.T) {
	svc := newLedgerService(newFakeLedgerStore(), newFakeBus())

	_, err := svc.AdminTransfer(context.Background(), "u1", 0, "noop")

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAdminTransfer_DebitBeyondBalance(t *testing.T) {
	store := newFakeLedgerStore()
	store.accounts["u1"] = domain.Account{UserID: "u1", Balance: 40}
	svc := newLedgerService(store, newFakeBus())

	_, err := svc.AdminTransfer(context.Background(), "u1", -50, "clawback")

	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestAirdrop_ReportsAccountCount(t *testing.T) {
	store := newFakeLedgerStore()
	store.credited = 7
	svc := newLedgerService(store, newFakeBus())

	count, err := svc.Airdrop(context.Background(), 25, "launch bonus")

	require.NoError(t, err)
	assert.Equal(t, 7, count)
}
