package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/octagon/internal/domain"
)

// ResolutionService defines the methods the resolution handler requires from
// the service layer.
type ResolutionService interface {
	Propose(ctx context.Context, marketID, outcomeID, evidence, creator string) (domain.Market, error)
	Vote(ctx context.Context, marketID, voter string) (domain.DisputeVote, error)
	Finalize(ctx context.Context, marketID string) (domain.FinalizeResult, error)
}

// ResolutionHandler serves the creator-staked resolution endpoints: proposal,
// dispute voting and finalization.
type ResolutionHandler struct {
	resolutions ResolutionService
	logger      *slog.Logger
}

// NewResolutionHandler creates a ResolutionHandler with the given service and
// logger.
func NewResolutionHandler(resolutions ResolutionService, logger *slog.Logger) *ResolutionHandler {
	return &ResolutionHandler{
		resolutions: resolutions,
		logger:      logger,
	}
}

// proposeRequest is the payload for a creator resolution proposal.
type proposeRequest struct {
	OutcomeID string `json:"outcome_id"`
	Evidence  string `json:"evidence"`
}

// Propose submits the creator's resolution; their whole balance is staked and
// the challenge window opens.
// POST /api/markets/{id}/resolve
func (h *ResolutionHandler) Propose(w http.ResponseWriter, r *http.Request) {
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

	var req proposeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.resolutions.Propose(r.Context(), marketID, req.OutcomeID, req.Evidence, caller)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// Vote records the caller's objection to the pending proposal.
// POST /api/markets/{id}/dispute/votes
func (h *ResolutionHandler) Vote(w http.ResponseWriter, r *http.Request) {
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

	vote, err := h.resolutions.Vote(r.Context(), marketID, caller)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, vote)
}

// Finalize tallies an elapsed dispute on demand. The background finalizer
// makes this optional; the endpoint exists so clients need not wait for the
// next sweep.
// POST /api/markets/{id}/finalize
func (h *ResolutionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	result, err := h.resolutions.Finalize(r.Context(), marketID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
