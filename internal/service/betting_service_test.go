package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/octagon/internal/domain"
)

type fakeBetStore struct {
	placed      []domain.Bet
	placeErr    error
	gotMinStake int64
	byMarket    []domain.Bet
	byUser      []domain.Bet
}

func (s *fakeBetStore) PlaceBet(ctx context.Context, bet domain.Bet, minStake int64) (domain.Bet, error) {
	s.gotMinStake = minStake
	if s.placeErr != nil {
		return domain.Bet{}, s.placeErr
	}
	bet.ID = "b1"
	s.placed = append(s.placed, bet)
	return bet, nil
}

func (s *fakeBetStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Bet, error) {
	return s.byMarket, nil
}

func (s *fakeBetStore) ListAllByMarket(ctx context.Context, marketID string) ([]domain.Bet, error) {
	return s.byMarket, nil
}

func (s *fakeBetStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error) {
	return s.byUser, nil
}

func (s *fakeBetStore) CountDistinctBettors(ctx context.Context, marketID string) (int, error) {
	return 0, nil
}

func newBettingService(store *fakeBetStore, limiter *fakeLimiter, cache *fakeCache, bus *fakeBus) *BettingService {
	return NewBettingService(store, cache, limiter, bus, testLogger(), 1, 30)
}

func TestPlaceBet_Admits(t *testing.T) {
	store := &fakeBetStore{}
	cache := newFakeCache()
	bus := newFakeBus()
	svc := newBettingService(store, &fakeLimiter{allowed: true}, cache, bus)

	bet, err := svc.PlaceBet(context.Background(), "u1", "m1", "o1", 100)

	require.NoError(t, err)
	assert.Equal(t, "b1", bet.ID)
	require.Len(t, store.placed, 1)
	assert.Equal(t, int64(100), store.placed[0].Amount)
	assert.Equal(t, []string{"m1"}, cache.invalidated)
	assert.Len(t, bus.events(domain.ChannelMarket), 1)
}

func TestPlaceBet_ForwardsStakeFloorToStore(t *testing.T) {
	store := &fakeBetStore{}
	svc := NewBettingService(store, newFakeCache(), &fakeLimiter{allowed: true}, newFakeBus(), testLogger(), 10, 30)

	_, err := svc.PlaceBet(context.Background(), "u1", "m1", "o1", 100)

	require.NoError(t, err)
	assert.Equal(t, int64(10), store.gotMinStake)
}

func TestPlaceBet_ClosedMarketWinsOverSmallStake(t *testing.T) {
	// A bet that is both below minimum and on a closed market must report
	// the closed market: the preconditions are checked in contract order.
	store := &fakeBetStore{placeErr: domain.ErrMarketClosed}
	svc := NewBettingService(store, newFakeCache(), &fakeLimiter{allowed: true}, newFakeBus(), testLogger(), 10, 30)

	_, err := svc.PlaceBet(context.Background(), "u1", "m1", "o1", 5)

	assert.ErrorIs(t, err, domain.ErrMarketClosed)
	assert.NotErrorIs(t, err, domain.ErrStakeTooSmall)
}

func TestPlaceBet_RejectsMissingIdentifiers(t *testing.T) {
	svc := newBettingService(&fakeBetStore{}, &fakeLimiter{allowed: true}, newFakeCache(), newFakeBus())

	_, err := svc.PlaceBet(context.Background(), "", "m1", "o1", 100)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.PlaceBet(context.Background(), "u1", "m1", "", 100)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPlaceBet_RateLimited(t *testing.T) {
	store := &fakeBetStore{}
	svc := newBettingService(store, &fakeLimiter{allowed: false}, newFakeCache(), newFakeBus())

	_, err := svc.PlaceBet(context.Background(), "u1", "m1", "o1", 100)

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Empty(t, store.placed)
}

func TestPlaceBet_LimiterFailureFailsOpen(t *testing.T) {
	store := &fakeBetStore{}
	limiter := &fakeLimiter{err: errors.New("redis down")}
	svc := newBettingService(store, limiter, newFakeCache(), newFakeBus())

	_, err := svc.PlaceBet(context.Background(), "u1", "m1", "o1", 100)

	assert.NoError(t, err)
	assert.Len(t, store.placed, 1)
}

func TestPlaceBet_ZeroRateLimitSkipsLimiter(t *testing.T) {
	limiter := &fakeLimiter{allowed: false}
	svc := NewBettingService(&fakeBetStore{}, newFakeCache(), limiter, newFakeBus(), testLogger(), 1, 0)

	_, err := svc.PlaceBet(context.Background(), "u1", "m1", "o1", 100)

	assert.NoError(t, err)
	assert.Zero(t, limiter.calls)
}

func TestPlaceBet_StoreErrorPassesThrough(t *testing.T) {
	store := &fakeBetStore{placeErr: domain.ErrSingleSided}
	svc := newBettingService(store, &fakeLimiter{allowed: true}, newFakeCache(), newFakeBus())

	_, err := svc.PlaceBet(context.Background(), "u1", "m1", "o1", 100)

	assert.ErrorIs(t, err, domain.ErrSingleSided)
}
