package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/octagon/internal/domain"
)

// BettingService defines the methods the bet handler requires from the
// service layer.
type BettingService interface {
	PlaceBet(ctx context.Context, userID, marketID, outcomeID string, amount int64) (domain.Bet, error)
	ListMarketBets(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Bet, error)
	ListUserBets(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error)
}

// BetHandler serves bet admission and bet listing endpoints.
type BetHandler struct {
	betting BettingService
	logger  *slog.Logger
}

// NewBetHandler creates a BetHandler with the given service and logger.
func NewBetHandler(betting BettingService, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		betting: betting,
		logger:  logger,
	}
}

// placeBetRequest is the payload for a bet placement.
type placeBetRequest struct {
	OutcomeID string `json:"outcome_id"`
	Amount    int64  `json:"amount"`
}

// PlaceBet admits a bet on one outcome of an open market.
// POST /api/markets/{id}/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	marketID := pathParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req placeBetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bet, err := h.betting.PlaceBet(r.Context(), caller, marketID, req.OutcomeID, req.Amount)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

// ListMarketBets returns the bets admitted into a market's pools.
// GET /api/markets/{id}/bets
func (h *BetHandler) ListMarketBets(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	bets, err := h.betting.ListMarketBets(r.Context(), marketID, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": bets})
}

// ListUserBets returns the caller's bet history.
// GET /api/accounts/{userID}/bets
func (h *BetHandler) ListUserBets(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	bets, err := h.betting.ListUserBets(r.Context(), userID, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": bets})
}
