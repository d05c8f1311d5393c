package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/octagon/internal/domain"
)

type fakeMarketStore struct {
	markets map[string]domain.Market
	listed  []domain.Market
	swept   int
	err     error

	createdOutcomes []string
	listingFee      int64
}

func newFakeMarketStore() *fakeMarketStore {
	return &fakeMarketStore{markets: make(map[string]domain.Market)}
}

func (s *fakeMarketStore) Create(ctx context.Context, m domain.Market, outcomeNames []string) (domain.Market, error) {
	if s.err != nil {
		return domain.Market{}, s.err
	}
	m.ID = "m1"
	m.Status = domain.MarketOpen
	s.createdOutcomes = outcomeNames
	s.markets[m.ID] = m
	return m, nil
}

func (s *fakeMarketStore) CreateWithListingFee(ctx context.Context, m domain.Market, outcomeNames []string, fee int64) (domain.Market, error) {
	if s.err != nil {
		return domain.Market{}, s.err
	}
	m.ID = "m1"
	m.Status = domain.MarketDraftPending
	s.createdOutcomes = outcomeNames
	s.listingFee = fee
	s.markets[m.ID] = m
	return m, nil
}

func (s *fakeMarketStore) ApproveDraft(ctx context.Context, id string) (domain.Market, error) {
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	m.Status = domain.MarketOpen
	s.markets[id] = m
	return m, nil
}

func (s *fakeMarketStore) RejectDraft(ctx context.Context, id string) error {
	if _, ok := s.markets[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.markets, id)
	return nil
}

func (s *fakeMarketStore) CloseExpired(ctx context.Context, now time.Time) (int, error) {
	return s.swept, s.err
}

func (s *fakeMarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *fakeMarketStore) List(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	return s.listed, s.err
}

func (s *fakeMarketStore) ListResolvedSince(ctx context.Context, since time.Time) ([]domain.Market, error) {
	return nil, nil
}

func (s *fakeMarketStore) MarkArchived(ctx context.Context, id string) error {
	return nil
}

func (s *fakeMarketStore) Purge(ctx context.Context, id string) error {
	delete(s.markets, id)
	return s.err
}

func newMarketService(store *fakeMarketStore, cache *fakeCache, bus *fakeBus) *MarketService {
	return NewMarketService(store, cache, bus, testLogger(), 100)
}

func futureClose() time.Time {
	return time.Now().Add(24 * time.Hour)
}

func TestCreateOfficial_OpensImmediately(t *testing.T) {
	store := newFakeMarketStore()
	bus := newFakeBus()
	svc := newMarketService(store, newFakeCache(), bus)

	m, err := svc.CreateOfficial(context.Background(), "will it rain", "", futureClose(), []string{"yes", "no"}, 200)

	require.NoError(t, err)
	assert.Equal(t, domain.MarketOpen, m.Status)
	assert.Nil(t, m.Creator)
	assert.Equal(t, []string{"yes", "no"}, store.createdOutcomes)
	assert.Len(t, bus.events(domain.ChannelMarket), 1)
}

func TestCreateCommunity_DebitsListingFee(t *testing.T) {
	store := newFakeMarketStore()
	svc := newMarketService(store, newFakeCache(), newFakeBus())

	m, err := svc.CreateCommunity(context.Background(), "u1", "will it rain", "", futureClose(), []string{"yes", "no"}, 200)

	require.NoError(t, err)
	assert.Equal(t, domain.MarketDraftPending, m.Status)
	require.NotNil(t, m.Creator)
	assert.Equal(t, "u1", *m.Creator)
	assert.Equal(t, int64(100), store.listingFee)
}

func TestCreateCommunity_RequiresCreator(t *testing.T) {
	svc := newMarketService(newFakeMarketStore(), newFakeCache(), newFakeBus())

	_, err := svc.CreateCommunity(context.Background(), "  ", "q", "", futureClose(), []string{"yes", "no"}, 0)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestValidateProposal_Rejections(t *testing.T) {
	cases := []struct {
		name      string
		question  string
		closeTime time.Time
		outcomes  []string
	}{
		{"empty question", "  ", futureClose(), []string{"yes", "no"}},
		{"past close time", "q", time.Now().Add(-time.Hour), []string{"yes", "no"}},
		{"single outcome", "q", futureClose(), []string{"yes"}},
		{"empty outcome name", "q", futureClose(), []string{"yes", " "}},
		{"duplicate outcomes", "q", futureClose(), []string{"Yes", "yes"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateProposal(tc.question, tc.closeTime, tc.outcomes)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestGet_CacheHitSkipsStore(t *testing.T) {
	store := newFakeMarketStore()
	cache := newFakeCache()
	require.NoError(t, cache.Set(context.Background(), domain.Market{ID: "m1", Question: "cached"}))
	svc := newMarketService(store, cache, newFakeBus())

	m, err := svc.Get(context.Background(), "m1")

	require.NoError(t, err)
	assert.Equal(t, "cached", m.Question)
}

func TestGet_CacheMissBackfills(t *testing.T) {
	store := newFakeMarketStore()
	store.markets["m1"] = domain.Market{ID: "m1", Question: "from store"}
	cache := newFakeCache()
	svc := newMarketService(store, cache, newFakeBus())

	m, err := svc.Get(context.Background(), "m1")

	require.NoError(t, err)
	assert.Equal(t, "from store", m.Question)

	cached, err := cache.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "from store", cached.Question)
}

func TestGet_FillsImpliedProbabilities(t *testing.T) {
	store := newFakeMarketStore()
	cache := newFakeCache()
	require.NoError(t, cache.Set(context.Background(), domain.Market{
		ID:       "m1",
		Outcomes: []domain.Outcome{{Name: "yes", Pool: 60}, {Name: "no", Pool: 40}},
	}))
	svc := newMarketService(store, cache, newFakeBus())

	m, err := svc.Get(context.Background(), "m1")

	require.NoError(t, err)
	assert.InDelta(t, 0.6, m.Outcomes[0].Probability, 1e-9)
	assert.InDelta(t, 0.4, m.Outcomes[1].Probability, 1e-9)
}

func TestGet_NotFound(t *testing.T) {
	svc := newMarketService(newFakeMarketStore(), newFakeCache(), newFakeBus())

	_, err := svc.Get(context.Background(), "nope")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApprove_PublishesEvent(t *testing.T) {
	store := newFakeMarketStore()
	store.markets["m1"] = domain.Market{ID: "m1", Status: domain.MarketDraftPending}
	bus := newFakeBus()
	svc := newMarketService(store, newFakeCache(), bus)

	m, err := svc.Approve(context.Background(), "m1")

	require.NoError(t, err)
	assert.Equal(t, domain.MarketOpen, m.Status)
	assert.Len(t, bus.events(domain.ChannelMarket), 1)
}

func TestSweepExpired_ReportsCount(t *testing.T) {
	store := newFakeMarketStore()
	store.swept = 3
	svc := newMarketService(store, newFakeCache(), newFakeBus())

	moved, err := svc.SweepExpired(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, 3, moved)
}

func TestPurge_InvalidatesCache(t *testing.T) {
	store := newFakeMarketStore()
	store.markets["m1"] = domain.Market{ID: "m1", Status: domain.MarketOpen}
	cache := newFakeCache()
	svc := newMarketService(store, cache, newFakeBus())

	require.NoError(t, svc.Purge(context.Background(), "m1"))
	assert.Equal(t, []string{"m1"}, cache.invalidated)
}
