package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdduel/duelbet/internal/domain"
)

func TestSupport(t *testing.T) {
	bet := depositedBet(t)
	now := testStart.Add(10 * time.Minute)

	var pos domain.SupportPosition
	split, tr, err := Support(&bet, &pos, "dave", domain.SideA, 100_000, now)
	require.NoError(t, err)

	assert.Equal(t, uint64(98_000), split.Net)
	assert.Equal(t, uint64(98_000), bet.NetSupportA)
	assert.Zero(t, bet.NetSupportB)
	assert.Equal(t, uint64(1_000), bet.SpreadPoolCreators)
	assert.Equal(t, uint64(400), bet.SpreadPoolArbiter)
	assert.Equal(t, uint64(600), bet.SpreadPoolProtocol)

	// The full gross amount moves into escrow; the fee is skimmed inside.
	assert.Equal(t, domain.Transfer{
		From:   "dave",
		To:     bet.EscrowAccount(),
		Amount: 100_000,
	}, tr)

	assert.Equal(t, "bet-1", pos.BetID)
	assert.Equal(t, domain.Account("dave"), pos.Bettor)
	assert.Equal(t, domain.SideA, pos.Side)
	assert.Equal(t, uint64(98_000), pos.NetAmount)
	assert.False(t, pos.Claimed)
	assert.Equal(t, now, pos.CreatedAt)
}

func TestSupportAccumulates(t *testing.T) {
	bet := depositedBet(t)
	var pos domain.SupportPosition

	_, _, err := Support(&bet, &pos, "dave", domain.SideA, 100_000, testStart.Add(10*time.Minute))
	require.NoError(t, err)
	created := pos.CreatedAt

	_, _, err = Support(&bet, &pos, "dave", domain.SideA, 50_000, testStart.Add(20*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, uint64(98_000+49_000), pos.NetAmount)
	assert.Equal(t, uint64(98_000+49_000), bet.NetSupportA)
	assert.Equal(t, created, pos.CreatedAt, "created_at is fixed on first contribution")
	assert.Equal(t, testStart.Add(20*time.Minute), pos.UpdatedAt)
}

func TestSupportBothSidesIndependent(t *testing.T) {
	bet := depositedBet(t)

	// The same bettor backing both sides holds two independent positions.
	var posA, posB domain.SupportPosition
	_, _, err := Support(&bet, &posA, "dave", domain.SideA, 100_000, testStart.Add(10*time.Minute))
	require.NoError(t, err)
	_, _, err = Support(&bet, &posB, "dave", domain.SideB, 50_000, testStart.Add(11*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, uint64(98_000), bet.NetSupportA)
	assert.Equal(t, uint64(49_000), bet.NetSupportB)
	assert.Equal(t, domain.SideA, posA.Side)
	assert.Equal(t, domain.SideB, posB.Side)
}

func TestSupportRejections(t *testing.T) {
	now := testStart.Add(10 * time.Minute)

	t.Run("before both deposits", func(t *testing.T) {
		bet := mustNewBet(t)
		_, err := DepositPrincipal(&bet, "alice", testStart.Add(time.Minute))
		require.NoError(t, err)

		var pos domain.SupportPosition
		_, _, err = Support(&bet, &pos, "dave", domain.SideA, 100_000, now)
		assert.ErrorIs(t, err, domain.ErrParticipantsNotDeposited)
	})

	t.Run("at crowd deadline", func(t *testing.T) {
		bet := depositedBet(t)
		var pos domain.SupportPosition
		_, _, err := Support(&bet, &pos, "dave", domain.SideA, 100_000, bet.DeadlineCrowd)
		assert.ErrorIs(t, err, domain.ErrDeadlinePassed)
	})

	t.Run("zero amount", func(t *testing.T) {
		bet := depositedBet(t)
		var pos domain.SupportPosition
		_, _, err := Support(&bet, &pos, "dave", domain.SideA, 0, now)
		assert.ErrorIs(t, err, domain.ErrAmountTooSmall)
	})

	t.Run("invalid side", func(t *testing.T) {
		bet := depositedBet(t)
		var pos domain.SupportPosition
		_, _, err := Support(&bet, &pos, "dave", domain.Side("c"), 100_000, now)
		assert.ErrorIs(t, err, domain.ErrWrongSide)
	})

	t.Run("resolved bet", func(t *testing.T) {
		bet, _, _ := resolvedBet(t)
		var pos domain.SupportPosition
		_, _, err := Support(&bet, &pos, "dave", domain.SideA, 100_000, now)
		assert.ErrorIs(t, err, domain.ErrBetNotOpen)
	})

	t.Run("position from another bet", func(t *testing.T) {
		bet := depositedBet(t)
		pos := domain.SupportPosition{
			BetID:     "bet-other",
			Bettor:    "dave",
			Side:      domain.SideA,
			NetAmount: 10,
		}
		_, _, err := Support(&bet, &pos, "dave", domain.SideA, 100_000, now)
		assert.ErrorIs(t, err, domain.ErrInvalidSupportPosition)
	})
}

func TestSupportRejectionLeavesStateUntouched(t *testing.T) {
	bet := depositedBet(t)
	before := bet

	var pos domain.SupportPosition
	_, _, err := Support(&bet, &pos, "dave", domain.SideA, 100_000, bet.DeadlineCrowd)
	require.Error(t, err)
	assert.Equal(t, before, bet)
	assert.Zero(t, pos.NetAmount)
}
