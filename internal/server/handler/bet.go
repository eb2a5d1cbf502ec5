package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/crowdduel/duelbet/internal/domain"
	"github.com/crowdduel/duelbet/internal/engine"
)

// BetService defines the methods the bet handler requires from the service
// layer.
type BetService interface {
	Create(ctx context.Context, p engine.CreateParams) (domain.Bet, error)
	DepositPrincipal(ctx context.Context, betID string, caller domain.Account) (domain.Bet, error)
	DeclareWinner(ctx context.Context, betID string, caller domain.Account, side domain.Side) (domain.Bet, error)
	Get(ctx context.Context, betID string) (domain.Bet, error)
	ListByStatus(ctx context.Context, status domain.BetStatus, opts domain.ListOpts) ([]domain.Bet, error)
	ListByAccount(ctx context.Context, account domain.Account, opts domain.ListOpts) ([]domain.Bet, error)
}

// BetHandler serves bet lifecycle HTTP endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler with the given service and logger.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		bets:   bets,
		logger: logger,
	}
}

// createBetRequest is the JSON body for creating a duel.
type createBetRequest struct {
	UserA            string           `json:"user_a"`
	UserB            string           `json:"user_b"`
	Arbiter          string           `json:"arbiter"`
	StakeLamports    uint64           `json:"stake_lamports"`
	DeadlineDuel     time.Time        `json:"deadline_duel"`
	DeadlineCrowd    time.Time        `json:"deadline_crowd"`
	ResolveTS        time.Time        `json:"resolve_ts"`
	Fees             domain.FeeConfig `json:"fees"`
	ProtocolTreasury string           `json:"protocol_treasury"`
}

// CreateBet opens a new duel between two principals.
// POST /api/bets
func (h *BetHandler) CreateBet(w http.ResponseWriter, r *http.Request) {
	var req createBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.UserA == "" || req.UserB == "" || req.Arbiter == "" || req.ProtocolTreasury == "" {
		writeError(w, http.StatusBadRequest, "user_a, user_b, arbiter and protocol_treasury are required")
		return
	}

	bet, err := h.bets.Create(r.Context(), engine.CreateParams{
		UserA:            domain.Account(req.UserA),
		UserB:            domain.Account(req.UserB),
		Arbiter:          domain.Account(req.Arbiter),
		StakeLamports:    req.StakeLamports,
		DeadlineDuel:     req.DeadlineDuel,
		DeadlineCrowd:    req.DeadlineCrowd,
		ResolveTS:        req.ResolveTS,
		Fees:             req.Fees,
		ProtocolTreasury: domain.Account(req.ProtocolTreasury),
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: create bet rejected",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bet)
}

// GetBet returns a single bet by ID.
// GET /api/bets/{id}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bet id")
		return
	}

	bet, err := h.bets.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// listBetsResponse wraps the list bets response.
type listBetsResponse struct {
	Bets []domain.Bet `json:"bets"`
}

// ListBets returns bets filtered by status or by involved account.
// GET /api/bets?status=open&account=...&limit=50&offset=0
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	account := q.Get("account")

	if status == "" && account == "" {
		writeError(w, http.StatusBadRequest, "status or account query parameter required")
		return
	}

	opts := parseListOpts(r)

	var bets []domain.Bet
	var err error
	if account != "" {
		bets, err = h.bets.ListByAccount(r.Context(), domain.Account(account), opts)
	} else {
		bets, err = h.bets.ListByStatus(r.Context(), domain.BetStatus(status), opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list bets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list bets")
		return
	}

	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, listBetsResponse{Bets: bets})
}

// callerRequest carries the acting account for operations keyed only on who
// calls them.
type callerRequest struct {
	Caller string `json:"caller"`
}

// Deposit locks the calling principal's stake in escrow.
// POST /api/bets/{id}/deposit
func (h *BetHandler) Deposit(w http.ResponseWriter, r *http.Request) {
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

	bet, err := h.bets.DepositPrincipal(r.Context(), id, domain.Account(req.Caller))
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: deposit rejected",
			slog.String("bet_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// declareWinnerRequest is the JSON body for resolving a duel.
type declareWinnerRequest struct {
	Caller string `json:"caller"`
	Side   string `json:"side"`
}

// DeclareWinner resolves the duel. Only the arbiter may call it, and only
// once the resolve timestamp has been reached.
// POST /api/bets/{id}/declare
func (h *BetHandler) DeclareWinner(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bet id")
		return
	}

	var req declareWinnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	bet, err := h.bets.DeclareWinner(r.Context(), id, domain.Account(req.Caller), side)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: declare winner rejected",
			slog.String("bet_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}
