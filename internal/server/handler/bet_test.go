package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdduel/duelbet/internal/domain"
	"github.com/crowdduel/duelbet/internal/engine"
)

// stubBetService returns canned values so the handler's decoding, routing,
// and error mapping can be tested in isolation.
type stubBetService struct {
	bet domain.Bet
	err error
}

func (s *stubBetService) Create(context.Context, engine.CreateParams) (domain.Bet, error) {
	return s.bet, s.err
}

func (s *stubBetService) DepositPrincipal(context.Context, string, domain.Account) (domain.Bet, error) {
	return s.bet, s.err
}

func (s *stubBetService) DeclareWinner(context.Context, string, domain.Account, domain.Side) (domain.Bet, error) {
	return s.bet, s.err
}

func (s *stubBetService) Get(context.Context, string) (domain.Bet, error) {
	return s.bet, s.err
}

func (s *stubBetService) ListByStatus(context.Context, domain.BetStatus, domain.ListOpts) ([]domain.Bet, error) {
	return []domain.Bet{s.bet}, s.err
}

func (s *stubBetService) ListByAccount(context.Context, domain.Account, domain.ListOpts) ([]domain.Bet, error) {
	return []domain.Bet{s.bet}, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMux(h *BetHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/bets", h.CreateBet)
	mux.HandleFunc("GET /api/bets", h.ListBets)
	mux.HandleFunc("GET /api/bets/{id}", h.GetBet)
	mux.HandleFunc("POST /api/bets/{id}/deposit", h.Deposit)
	mux.HandleFunc("POST /api/bets/{id}/declare", h.DeclareWinner)
	return mux
}

func TestCreateBet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &stubBetService{bet: domain.Bet{ID: "bet-1", Status: domain.BetOpen}}
	mux := newMux(NewBetHandler(svc, testLogger()))

	body := `{
		"user_a": "alice", "user_b": "bob", "arbiter": "carol",
		"stake_lamports": 1000000,
		"deadline_duel": "` + now.Add(time.Hour).Format(time.RFC3339) + `",
		"deadline_crowd": "` + now.Add(2*time.Hour).Format(time.RFC3339) + `",
		"resolve_ts": "` + now.Add(3*time.Hour).Format(time.RFC3339) + `",
		"fees": {"spread_bps": 200, "creator_share_bps": 5000, "arbiter_share_bps": 2000, "protocol_share_bps": 3000},
		"protocol_treasury": "treasury"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/bets", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var got domain.Bet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "bet-1", got.ID)
}

func TestCreateBetMissingParties(t *testing.T) {
	svc := &stubBetService{}
	mux := newMux(NewBetHandler(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/bets", strings.NewReader(`{"user_a":"alice"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBetNotFound(t *testing.T) {
	svc := &stubBetService{err: domain.ErrNotFound}
	mux := newMux(NewBetHandler(svc, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/bets/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDepositErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"deadline passed", domain.ErrDeadlinePassed, http.StatusConflict},
		{"not a participant", domain.ErrInvalidParticipant, http.StatusForbidden},
		{"already deposited", domain.ErrAlreadyDeposited, http.StatusConflict},
		{"insufficient funds", domain.ErrInsufficientFunds, http.StatusPaymentRequired},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"lock held", domain.ErrLockHeld, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubBetService{err: tt.err}
			mux := newMux(NewBetHandler(svc, testLogger()))

			req := httptest.NewRequest(http.MethodPost, "/api/bets/bet-1/deposit",
				strings.NewReader(`{"caller":"alice"}`))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestDeclareWinnerInvalidSide(t *testing.T) {
	svc := &stubBetService{}
	mux := newMux(NewBetHandler(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/bets/bet-1/declare",
		strings.NewReader(`{"caller":"carol","side":"c"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBetsRequiresFilter(t *testing.T) {
	svc := &stubBetService{}
	mux := newMux(NewBetHandler(svc, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/bets", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
