package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/octagon/internal/domain"
)

type fakeMarketService struct {
	market  domain.Market
	markets []domain.Market
	err     error

	gotStatus  domain.MarketStatus
	gotCreator string
}

func (f *fakeMarketService) Get(ctx context.Context, id string) (domain.Market, error) {
	return f.market, f.err
}

func (f *fakeMarketService) List(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	f.gotStatus = status
	return f.markets, f.err
}

func (f *fakeMarketService) CreateCommunity(ctx context.Context, creator, question, description string, closeTime time.Time, outcomeNames []string, feeBps int) (domain.Market, error) {
	f.gotCreator = creator
	return f.market, f.err
}

func newMarketMux(svc MarketService) *http.ServeMux {
	h := NewMarketHandler(svc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets", h.ListMarkets)
	mux.HandleFunc("POST /api/markets", h.CreateMarket)
	mux.HandleFunc("GET /api/markets/{id}", h.GetMarket)
	return mux
}

func TestGetMarket_Success(t *testing.T) {
	svc := &fakeMarketService{
		market: domain.Market{ID: "m1", Question: "will it rain", Status: domain.MarketOpen},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/markets/m1", nil)
	rec := httptest.NewRecorder()

	newMarketMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Market
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, domain.MarketOpen, got.Status)
}

func TestGetMarket_NotFound(t *testing.T) {
	svc := &fakeMarketService{err: domain.ErrNotFound}

	req := httptest.NewRequest(http.MethodGet, "/api/markets/nope", nil)
	rec := httptest.NewRecorder()

	newMarketMux(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMarkets_PassesStatusFilter(t *testing.T) {
	svc := &fakeMarketService{
		markets: []domain.Market{{ID: "m1"}},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/markets?status=open", nil)
	rec := httptest.NewRecorder()

	newMarketMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.MarketOpen, svc.gotStatus)

	var got listMarketsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Markets, 1)
	assert.Equal(t, 50, got.Limit)
}

func TestCreateMarket_UsesCallerAsCreator(t *testing.T) {
	svc := &fakeMarketService{
		market: domain.Market{ID: "m1", Status: domain.MarketDraftPending},
	}

	body := `{"question":"will it rain","close_time":"2027-01-01T00:00:00Z","outcomes":["yes","no"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/markets", strings.NewReader(body))
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()

	newMarketMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u1", svc.gotCreator)
}

func TestCreateMarket_MissingIdentity(t *testing.T) {
	svc := &fakeMarketService{}

	req := httptest.NewRequest(http.MethodPost, "/api/markets",
		strings.NewReader(`{"question":"q"}`))
	rec := httptest.NewRecorder()

	newMarketMux(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateMarket_InsufficientFundsForListingFee(t *testing.T) {
	svc := &fakeMarketService{err: domain.ErrInsufficientFunds}

	body := `{"question":"will it rain","close_time":"2027-01-01T00:00:00Z","outcomes":["yes","no"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/markets", strings.NewReader(body))
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()

	newMarketMux(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
