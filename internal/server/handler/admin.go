package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/octagon/internal/domain"
)

// AdminMarketService is the moderation surface the admin handler needs.
type AdminMarketService interface {
	CreateOfficial(ctx context.Context, question, description string, closeTime time.Time, outcomeNames []string, feeBps int) (domain.Market, error)
	Approve(ctx context.Context, id string) (domain.Market, error)
	Reject(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error
}

// AdminResolutionService is the settlement override surface.
type AdminResolutionService interface {
	AdminResolve(ctx context.Context, marketID, outcomeID, evidence string) (domain.SettlementResult, error)
}

// AdminLedgerService is the administrative money-movement surface.
type AdminLedgerService interface {
	AdminTransfer(ctx context.Context, userID string, amount int64, description string) (domain.Transaction, error)
	Airdrop(ctx context.Context, amount int64, description string) (int, error)
}

// AdminHandler serves the /api/admin surface. Authentication is enforced by
// the router; every route here assumes the caller holds the admin key.
type AdminHandler struct {
	markets     AdminMarketService
	resolutions AdminResolutionService
	ledger      AdminLedgerService
	logger      *slog.Logger
}

// NewAdminHandler creates an AdminHandler with the given services and logger.
func NewAdminHandler(
	markets AdminMarketService,
	resolutions AdminResolutionService,
	ledger AdminLedgerService,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		markets:     markets,
		resolutions: resolutions,
		ledger:      ledger,
		logger:      logger,
	}
}

// CreateMarket publishes an official market; it opens immediately.
// POST /api/admin/markets
func (h *AdminHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.CreateOfficial(r.Context(),
		req.Question, req.Description, req.CloseTime, req.Outcomes, req.FeeBps)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, market)
}

// ApproveMarket opens a community draft for betting.
// POST /api/admin/markets/{id}/approve
func (h *AdminHandler) ApproveMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.Approve(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// RejectMarket deletes a community draft; the listing fee is kept.
// POST /api/admin/markets/{id}/reject
func (h *AdminHandler) RejectMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	if err := h.markets.Reject(r.Context(), id); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveRequest is the payload for an administrative resolution.
type resolveRequest struct {
	OutcomeID string `json:"outcome_id"`
	Evidence  string `json:"evidence"`
}

// ResolveMarket settles a market at the given outcome and pays every winner.
// POST /api/admin/markets/{id}/resolve
func (h *AdminHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.resolutions.AdminResolve(r.Context(), id, req.OutcomeID, req.Evidence)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PurgeMarket removes a non-resolved market and everything hanging off it.
// DELETE /api/admin/markets/{id}
func (h *AdminHandler) PurgeMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	if err := h.markets.Purge(r.Context(), id); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transferRequest is the payload for an administrative balance adjustment.
type transferRequest struct {
	UserID      string `json:"user_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// Transfer applies a signed adjustment to one account.
// POST /api/admin/transfers
func (h *AdminHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.ledger.AdminTransfer(r.Context(), req.UserID, req.Amount, req.Description)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// airdropRequest is the payload for a platform-wide credit.
type airdropRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// Airdrop credits every account the same amount.
// POST /api/admin/airdrop
func (h *AdminHandler) Airdrop(w http.ResponseWriter, r *http.Request) {
	var req airdropRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	count, err := h.ledger.Airdrop(r.Context(), req.Amount, req.Description)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts_credited": count})
}
