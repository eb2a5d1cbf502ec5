package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/crowdduel/duelbet/internal/domain"
	"github.com/crowdduel/duelbet/internal/engine"
)

// PayoutService defines the methods the payout handler requires from the
// service layer.
type PayoutService interface {
	WithdrawPrincipal(ctx context.Context, betID string, caller domain.Account) (uint64, error)
	WithdrawSpread(ctx context.Context, betID string, rcpt engine.SpreadRecipients) (engine.SpreadPayout, error)
	SpreadRecipientsFor(ctx context.Context, betID string) (engine.SpreadRecipients, error)
}

// PayoutHandler serves principal withdrawal and spread distribution
// endpoints.
type PayoutHandler struct {
	payouts PayoutService
	logger  *slog.Logger
}

// NewPayoutHandler creates a PayoutHandler with the given service and logger.
func NewPayoutHandler(payouts PayoutService, logger *slog.Logger) *PayoutHandler {
	return &PayoutHandler{
		payouts: payouts,
		logger:  logger,
	}
}

// withdrawPrincipalResponse reports the 2x-stake payout.
type withdrawPrincipalResponse struct {
	BetID  string `json:"bet_id"`
	Winner string `json:"winner"`
	Amount uint64 `json:"amount"`
}

// WithdrawPrincipal pays the declared winner both locked stakes.
// POST /api/bets/{id}/withdraw-principal
func (h *PayoutHandler) WithdrawPrincipal(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bet id")
		return
	}

	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}

	amount, err := h.payouts.WithdrawPrincipal(r.Context(), id, domain.Account(req.Caller))
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: withdraw principal rejected",
			slog.String("bet_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, withdrawPrincipalResponse{
		BetID:  id,
		Winner: req.Caller,
		Amount: amount,
	})
}

// WithdrawSpread drains the accumulated fee pools to the recipients recorded
// on the bet. Anyone may trigger it on a resolved bet; it is a successful
// no-op when the pools are empty.
// POST /api/bets/{id}/withdraw-spread
func (h *PayoutHandler) WithdrawSpread(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bet id")
		return
	}

	rcpt, err := h.payouts.SpreadRecipientsFor(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	payout, err := h.payouts.WithdrawSpread(r.Context(), id, rcpt)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: withdraw spread rejected",
			slog.String("bet_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, payout)
}
