package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/crowdduel/duelbet/internal/domain"
)

// SupportService defines the methods the support handler requires from the
// service layer.
type SupportService interface {
	Support(ctx context.Context, betID string, bettor domain.Account, side domain.Side, amount uint64) (domain.SupportPosition, error)
	Claim(ctx context.Context, betID string, bettor domain.Account, side domain.Side) (uint64, error)
	GetPosition(ctx context.Context, betID string, bettor domain.Account, side domain.Side) (domain.SupportPosition, error)
	ListByBet(ctx context.Context, betID string) ([]domain.SupportPosition, error)
	ListByBettor(ctx context.Context, bettor domain.Account, opts domain.ListOpts) ([]domain.SupportPosition, error)
}

// SupportHandler serves crowd support and claim HTTP endpoints.
type SupportHandler struct {
	supports SupportService
	logger   *slog.Logger
}

// NewSupportHandler creates a SupportHandler with the given service and
// logger.
func NewSupportHandler(supports SupportService, logger *slog.Logger) *SupportHandler {
	return &SupportHandler{
		supports: supports,
		logger:   logger,
	}
}

// supportRequest is the JSON body for backing a side.
type supportRequest struct {
	Bettor string `json:"bettor"`
	Side   string `json:"side"`
	Amount uint64 `json:"amount"`
}

// Support backs one side of an open duel with the given amount.
// POST /api/bets/{id}/support
func (h *SupportHandler) Support(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bet id")
		return
	}

	var req supportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Bettor == "" {
		writeError(w, http.StatusBadRequest, "bettor is required")
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	pos, err := h.supports.Support(r.Context(), id, domain.Account(req.Bettor), side, req.Amount)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: support rejected",
			slog.String("bet_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pos)
}

// claimRequest is the JSON body for claiming a crowd payout.
type claimRequest struct {
	Bettor string `json:"bettor"`
	Side   string `json:"side"`
}

// claimResponse reports the payout of a settled claim. Payout is zero for
// positions on the losing side.
type claimResponse struct {
	BetID  string `json:"bet_id"`
	Bettor string `json:"bettor"`
	Side   string `json:"side"`
	Payout uint64 `json:"payout"`
}

// Claim settles the caller's position on a resolved duel.
// POST /api/bets/{id}/claim
func (h *SupportHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bet id")
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Bettor == "" {
		writeError(w, http.StatusBadRequest, "bettor is required")
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	payout, err := h.supports.Claim(r.Context(), id, domain.Account(req.Bettor), side)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: claim rejected",
			slog.String("bet_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{
		BetID:  id,
		Bettor: req.Bettor,
		Side:   string(side),
		Payout: payout,
	})
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.SupportPosition `json:"positions"`
}

// ListBetPositions returns all crowd positions on one bet.
// GET /api/bets/{id}/positions
func (h *SupportHandler) ListBetPositions(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bet id")
		return
	}

	positions, err := h.supports.ListByBet(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list bet positions failed",
			slog.String("bet_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}
	if positions == nil {
		positions = []domain.SupportPosition{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// ListPositions returns crowd positions for a bet, or for a bettor across
// bets.
// GET /api/supports?bet_id=...  or  GET /api/supports?bettor=...
func (h *SupportHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	betID := q.Get("bet_id")
	bettor := q.Get("bettor")

	if betID == "" && bettor == "" {
		writeError(w, http.StatusBadRequest, "bet_id or bettor query parameter required")
		return
	}

	var positions []domain.SupportPosition
	var err error
	if betID != "" {
		positions, err = h.supports.ListByBet(r.Context(), betID)
	} else {
		positions, err = h.supports.ListByBettor(r.Context(), domain.Account(bettor), parseListOpts(r))
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	if positions == nil {
		positions = []domain.SupportPosition{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}
