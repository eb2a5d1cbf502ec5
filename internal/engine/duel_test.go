package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdduel/duelbet/internal/domain"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testParams() CreateParams {
	return CreateParams{
		UserA:            "alice",
		UserB:            "bob",
		Arbiter:          "carol",
		StakeLamports:    1_000_000,
		DeadlineDuel:     testStart.Add(1 * time.Hour),
		DeadlineCrowd:    testStart.Add(2 * time.Hour),
		ResolveTS:        testStart.Add(3 * time.Hour),
		Fees:             testFees(),
		ProtocolTreasury: "treasury",
	}
}

// depositedBet returns an Open bet with both stakes locked, ready for crowd
// support.
func depositedBet(t *testing.T) domain.Bet {
	t.Helper()
	bet, err := NewBet(testParams(), testStart)
	require.NoError(t, err)
	bet.ID = "bet-1"
	_, err = DepositPrincipal(&bet, "alice", testStart.Add(time.Minute))
	require.NoError(t, err)
	_, err = DepositPrincipal(&bet, "bob", testStart.Add(2*time.Minute))
	require.NoError(t, err)
	return bet
}

// resolvedBet returns a bet resolved in favor of side a, with a crowd
// position on each side (net 98,000 on a, net 49,000 on b).
func resolvedBet(t *testing.T) (domain.Bet, domain.SupportPosition, domain.SupportPosition) {
	t.Helper()
	bet := depositedBet(t)

	var posA, posB domain.SupportPosition
	_, _, err := Support(&bet, &posA, "dave", domain.SideA, 100_000, testStart.Add(10*time.Minute))
	require.NoError(t, err)
	_, _, err = Support(&bet, &posB, "erin", domain.SideB, 50_000, testStart.Add(11*time.Minute))
	require.NoError(t, err)

	require.NoError(t, DeclareWinner(&bet, "carol", domain.SideA, testStart.Add(3*time.Hour)))
	return bet, posA, posB
}

func TestNewBet(t *testing.T) {
	bet, err := NewBet(testParams(), testStart)
	require.NoError(t, err)

	assert.Equal(t, domain.BetOpen, bet.Status)
	assert.False(t, bet.UserADeposited)
	assert.False(t, bet.UserBDeposited)
	assert.Zero(t, bet.NetSupportA)
	assert.Zero(t, bet.NetSupportB)
	assert.Nil(t, bet.WinnerSide)
	assert.False(t, bet.PrincipalWithdrawn)
	assert.Equal(t, testStart, bet.CreatedAt)
}

func TestNewBetValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateParams)
		wantErr error
	}{
		{
			name:    "zero stake",
			mutate:  func(p *CreateParams) { p.StakeLamports = 0 },
			wantErr: domain.ErrInvalidStakeAmount,
		},
		{
			name:    "duel deadline after crowd deadline",
			mutate:  func(p *CreateParams) { p.DeadlineDuel = p.DeadlineCrowd.Add(time.Minute) },
			wantErr: domain.ErrInvalidDeadlines,
		},
		{
			name:    "duel deadline equals crowd deadline",
			mutate:  func(p *CreateParams) { p.DeadlineDuel = p.DeadlineCrowd },
			wantErr: domain.ErrInvalidDeadlines,
		},
		{
			name:    "resolve before crowd deadline",
			mutate:  func(p *CreateParams) { p.ResolveTS = p.DeadlineCrowd.Add(-time.Minute) },
			wantErr: domain.ErrInvalidDeadlines,
		},
		{
			name:    "zero spread",
			mutate:  func(p *CreateParams) { p.Fees.SpreadBps = 0 },
			wantErr: domain.ErrInvalidFeeConfig,
		},
		{
			name:    "shares do not sum to 10000",
			mutate:  func(p *CreateParams) { p.Fees.CreatorShareBps = 4999 },
			wantErr: domain.ErrInvalidFeeConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.mutate(&p)
			_, err := NewBet(p, testStart)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewBetResolveEqualsCrowdDeadline(t *testing.T) {
	p := testParams()
	p.ResolveTS = p.DeadlineCrowd
	_, err := NewBet(p, testStart)
	assert.NoError(t, err)
}

func TestDepositPrincipal(t *testing.T) {
	bet, err := NewBet(testParams(), testStart)
	require.NoError(t, err)
	bet.ID = "bet-1"

	tr, err := DepositPrincipal(&bet, "alice", testStart.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, bet.UserADeposited)
	assert.False(t, bet.UserBDeposited)
	assert.Equal(t, domain.Transfer{
		From:   "alice",
		To:     bet.EscrowAccount(),
		Amount: 1_000_000,
	}, tr)

	tr, err = DepositPrincipal(&bet, "bob", testStart.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, bet.BothDeposited())
	assert.Equal(t, domain.Account("bob"), tr.From)
}

func TestDepositPrincipalRejections(t *testing.T) {
	now := testStart.Add(time.Minute)

	t.Run("non-participant", func(t *testing.T) {
		bet := mustNewBet(t)
		_, err := DepositPrincipal(&bet, "mallory", now)
		assert.ErrorIs(t, err, domain.ErrInvalidParticipant)
	})

	t.Run("double deposit", func(t *testing.T) {
		bet := mustNewBet(t)
		_, err := DepositPrincipal(&bet, "alice", now)
		require.NoError(t, err)
		_, err = DepositPrincipal(&bet, "alice", now)
		assert.ErrorIs(t, err, domain.ErrAlreadyDeposited)
	})

	t.Run("at deadline", func(t *testing.T) {
		bet := mustNewBet(t)
		_, err := DepositPrincipal(&bet, "alice", bet.DeadlineDuel)
		assert.ErrorIs(t, err, domain.ErrDeadlinePassed)
	})

	t.Run("not open", func(t *testing.T) {
		bet := mustNewBet(t)
		bet.Status = domain.BetResolved
		_, err := DepositPrincipal(&bet, "alice", now)
		assert.ErrorIs(t, err, domain.ErrBetNotOpen)
	})
}

func mustNewBet(t *testing.T) domain.Bet {
	t.Helper()
	bet, err := NewBet(testParams(), testStart)
	require.NoError(t, err)
	bet.ID = "bet-1"
	return bet
}

func TestDeclareWinner(t *testing.T) {
	bet := depositedBet(t)
	resolveAt := testStart.Add(3 * time.Hour)

	require.NoError(t, DeclareWinner(&bet, "carol", domain.SideA, resolveAt))
	assert.Equal(t, domain.BetResolved, bet.Status)
	require.NotNil(t, bet.WinnerSide)
	assert.Equal(t, domain.SideA, *bet.WinnerSide)
	require.NotNil(t, bet.ResolvedAt)
	assert.Equal(t, resolveAt, *bet.ResolvedAt)

	// The transition is irreversible.
	err := DeclareWinner(&bet, "carol", domain.SideB, resolveAt.Add(time.Minute))
	assert.ErrorIs(t, err, domain.ErrBetNotOpen)
	assert.Equal(t, domain.SideA, *bet.WinnerSide)
}

func TestDeclareWinnerRejections(t *testing.T) {
	resolveAt := testStart.Add(3 * time.Hour)

	t.Run("not arbiter", func(t *testing.T) {
		bet := depositedBet(t)
		err := DeclareWinner(&bet, "alice", domain.SideA, resolveAt)
		assert.ErrorIs(t, err, domain.ErrInvalidArbiter)
	})

	t.Run("before resolve time", func(t *testing.T) {
		bet := depositedBet(t)
		err := DeclareWinner(&bet, "carol", domain.SideA, resolveAt.Add(-time.Second))
		assert.ErrorIs(t, err, domain.ErrTooEarlyToResolve)
	})

	t.Run("missing deposit", func(t *testing.T) {
		bet := mustNewBet(t)
		_, err := DepositPrincipal(&bet, "alice", testStart.Add(time.Minute))
		require.NoError(t, err)
		err = DeclareWinner(&bet, "carol", domain.SideA, resolveAt)
		assert.ErrorIs(t, err, domain.ErrParticipantsNotDeposited)
	})

	t.Run("invalid side", func(t *testing.T) {
		bet := depositedBet(t)
		err := DeclareWinner(&bet, "carol", domain.Side("c"), resolveAt)
		assert.ErrorIs(t, err, domain.ErrWrongSide)
	})
}
