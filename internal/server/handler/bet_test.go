package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/octagon/internal/domain"
)

type fakeBettingService struct {
	placeBet func(ctx context.Context, userID, marketID, outcomeID string, amount int64) (domain.Bet, error)
	bets     []domain.Bet
	err      error
}

func (f *fakeBettingService) PlaceBet(ctx context.Context, userID, marketID, outcomeID string, amount int64) (domain.Bet, error) {
	return f.placeBet(ctx, userID, marketID, outcomeID, amount)
}

func (f *fakeBettingService) ListMarketBets(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Bet, error) {
	return f.bets, f.err
}

func (f *fakeBettingService) ListUserBets(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error) {
	return f.bets, f.err
}

func newBetMux(svc BettingService) *http.ServeMux {
	h := NewBetHandler(svc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/markets/{id}/bets", h.PlaceBet)
	mux.HandleFunc("GET /api/markets/{id}/bets", h.ListMarketBets)
	mux.HandleFunc("GET /api/accounts/{userID}/bets", h.ListUserBets)
	return mux
}

func TestPlaceBet_Success(t *testing.T) {
	svc := &fakeBettingService{
		placeBet: func(_ context.Context, userID, marketID, outcomeID string, amount int64) (domain.Bet, error) {
			assert.Equal(t, "u1", userID)
			assert.Equal(t, "m1", marketID)
			assert.Equal(t, "o1", outcomeID)
			assert.Equal(t, int64(100), amount)
			return domain.Bet{ID: "b1", UserID: userID, MarketID: marketID, OutcomeID: outcomeID, Amount: amount}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/markets/m1/bets",
		strings.NewReader(`{"outcome_id":"o1","amount":100}`))
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()

	newBetMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var got domain.Bet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "b1", got.ID)
}

func TestPlaceBet_MissingIdentity(t *testing.T) {
	svc := &fakeBettingService{
		placeBet: func(context.Context, string, string, string, int64) (domain.Bet, error) {
			t.Fatal("service must not be called")
			return domain.Bet{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/markets/m1/bets",
		strings.NewReader(`{"outcome_id":"o1","amount":100}`))
	rec := httptest.NewRecorder()

	newBetMux(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceBet_BadBody(t *testing.T) {
	svc := &fakeBettingService{
		placeBet: func(context.Context, string, string, string, int64) (domain.Bet, error) {
			t.Fatal("service must not be called")
			return domain.Bet{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/markets/m1/bets",
		strings.NewReader(`not json`))
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()

	newBetMux(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceBet_DomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrMarketClosed, http.StatusConflict},
		{domain.ErrSingleSided, http.StatusConflict},
		{domain.ErrCreatorCannotBet, http.StatusForbidden},
		{domain.ErrStakeTooSmall, http.StatusBadRequest},
		{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		svc := &fakeBettingService{
			placeBet: func(context.Context, string, string, string, int64) (domain.Bet, error) {
				return domain.Bet{}, tc.err
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/api/markets/m1/bets",
			strings.NewReader(`{"outcome_id":"o1","amount":100}`))
		req.Header.Set("X-User-ID", "u1")
		rec := httptest.NewRecorder()

		newBetMux(svc).ServeHTTP(rec, req)

		assert.Equal(t, tc.status, rec.Code, "error %v", tc.err)
	}
}

func TestListMarketBets_Success(t *testing.T) {
	svc := &fakeBettingService{
		bets: []domain.Bet{{ID: "b1"}, {ID: "b2"}},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/markets/m1/bets", nil)
	rec := httptest.NewRecorder()

	newBetMux(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Bets []domain.Bet `json:"bets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Bets, 2)
}

func TestListUserBets_NotFound(t *testing.T) {
	svc := &fakeBettingService{err: domain.ErrNotFound}

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/u1/bets", nil)
	rec := httptest.NewRecorder()

	newBetMux(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
