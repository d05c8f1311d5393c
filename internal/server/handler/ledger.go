package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/octagon/internal/domain"
)

// LedgerService defines the methods the account handler requires from the
// service layer.
type LedgerService interface {
	Signup(ctx context.Context, userID string) (domain.Account, error)
	GetAccount(ctx context.Context, userID string) (domain.Account, error)
	ListTransactions(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error)
	CheckIn(ctx context.Context, userID string) (domain.Transaction, error)
}

// AccountHandler serves account and transaction endpoints.
type AccountHandler struct {
	ledger LedgerService
	logger *slog.Logger
}

// NewAccountHandler creates an AccountHandler with the given service and
// logger.
func NewAccountHandler(ledger LedgerService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		ledger: ledger,
		logger: logger,
	}
}

// signupRequest is the payload for account creation.
type signupRequest struct {
	UserID string `json:"user_id"`
}

// Signup creates an account credited with the signup bonus.
// POST /api/accounts
func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acct, err := h.ledger.Signup(r.Context(), req.UserID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

// GetAccount returns an account's current balance.
// GET /api/accounts/{userID}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	acct, err := h.ledger.GetAccount(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// ListTransactions returns an account's transaction history, newest first.
// GET /api/accounts/{userID}/transactions
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	txs, err := h.ledger.ListTransactions(r.Context(), userID, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

// CheckIn claims the daily check-in bonus.
// POST /api/accounts/{userID}/checkin
func (h *AccountHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}
	if caller := callerID(r); caller != "" && caller != userID {
		writeError(w, http.StatusForbidden, "cannot claim for another user")
		return
	}

	entry, err := h.ledger.CheckIn(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
