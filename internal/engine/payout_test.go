package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdduel/duelbet/internal/domain"
)

func TestWithdrawPrincipal(t *testing.T) {
	bet, _, _ := resolvedBet(t)

	tr, err := WithdrawPrincipal(&bet, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.Transfer{
		From:   bet.EscrowAccount(),
		To:     "alice",
		Amount: 2_000_000,
	}, tr)
	assert.True(t, bet.PrincipalWithdrawn)

	// Second withdrawal fails and moves nothing.
	_, err = WithdrawPrincipal(&bet, "alice")
	assert.ErrorIs(t, err, domain.ErrPrincipalWithdrawn)
}

func TestWithdrawPrincipalRejections(t *testing.T) {
	t.Run("unresolved bet", func(t *testing.T) {
		bet := depositedBet(t)
		_, err := WithdrawPrincipal(&bet, "alice")
		assert.ErrorIs(t, err, domain.ErrBetNotResolved)
	})

	t.Run("loser", func(t *testing.T) {
		bet, _, _ := resolvedBet(t)
		_, err := WithdrawPrincipal(&bet, "bob")
		assert.ErrorIs(t, err, domain.ErrInvalidWinner)
		assert.False(t, bet.PrincipalWithdrawn)
	})

	t.Run("arbiter", func(t *testing.T) {
		bet, _, _ := resolvedBet(t)
		_, err := WithdrawPrincipal(&bet, "carol")
		assert.ErrorIs(t, err, domain.ErrInvalidWinner)
	})
}

func TestClaimSupportWinner(t *testing.T) {
	bet, posA, _ := resolvedBet(t)
	now := testStart.Add(4 * time.Hour)

	// Sole winning-side position takes the whole combined pool:
	// floor(98,000 * (98,000 + 49,000) / 98,000) = 147,000.
	payout, tr, err := ClaimSupport(&bet, &posA, "dave", now)
	require.NoError(t, err)
	assert.Equal(t, uint64(147_000), payout)
	require.NotNil(t, tr)
	assert.Equal(t, domain.Transfer{
		From:   bet.EscrowAccount(),
		To:     "dave",
		Amount: 147_000,
	}, *tr)
	assert.True(t, posA.Claimed)
	require.NotNil(t, posA.ClaimedAt)
	assert.Equal(t, now, *posA.ClaimedAt)
}

func TestClaimSupportLoser(t *testing.T) {
	bet, _, posB := resolvedBet(t)

	payout, tr, err := ClaimSupport(&bet, &posB, "erin", testStart.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, payout)
	assert.Nil(t, tr)
	assert.True(t, posB.Claimed, "losing claims are still consumed")
}

func TestClaimSupportIdempotenceGuard(t *testing.T) {
	bet, posA, _ := resolvedBet(t)
	now := testStart.Add(4 * time.Hour)

	_, _, err := ClaimSupport(&bet, &posA, "dave", now)
	require.NoError(t, err)

	_, _, err = ClaimSupport(&bet, &posA, "dave", now)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestClaimSupportRejections(t *testing.T) {
	now := testStart.Add(4 * time.Hour)

	t.Run("unresolved bet", func(t *testing.T) {
		bet := depositedBet(t)
		pos := domain.SupportPosition{BetID: bet.ID, Bettor: "dave", Side: domain.SideA, NetAmount: 10}
		_, _, err := ClaimSupport(&bet, &pos, "dave", now)
		assert.ErrorIs(t, err, domain.ErrBetNotResolved)
	})

	t.Run("wrong bettor", func(t *testing.T) {
		bet, posA, _ := resolvedBet(t)
		_, _, err := ClaimSupport(&bet, &posA, "mallory", now)
		assert.ErrorIs(t, err, domain.ErrInvalidSupportPosition)
	})
}

// Winning-side payouts split the combined pool proportionally and flooring
// never pays out more than the pool holds.
func TestClaimSupportProportionalSplit(t *testing.T) {
	bet := depositedBet(t)

	var pos1, pos2, posB domain.SupportPosition
	_, _, err := Support(&bet, &pos1, "dave", domain.SideA, 100_000, testStart.Add(10*time.Minute))
	require.NoError(t, err)
	_, _, err = Support(&bet, &pos2, "frank", domain.SideA, 33_333, testStart.Add(11*time.Minute))
	require.NoError(t, err)
	_, _, err = Support(&bet, &posB, "erin", domain.SideB, 50_000, testStart.Add(12*time.Minute))
	require.NoError(t, err)

	require.NoError(t, DeclareWinner(&bet, "carol", domain.SideA, testStart.Add(3*time.Hour)))

	pool := bet.NetSupportA + bet.NetSupportB
	now := testStart.Add(4 * time.Hour)

	p1, _, err := ClaimSupport(&bet, &pos1, "dave", now)
	require.NoError(t, err)
	p2, _, err := ClaimSupport(&bet, &pos2, "frank", now)
	require.NoError(t, err)

	assert.LessOrEqual(t, p1+p2, pool)
	// Flooring loses at most one unit per winning position.
	assert.GreaterOrEqual(t, p1+p2, pool-2)
	assert.Greater(t, p1, p2)
}

func TestWithdrawSpread(t *testing.T) {
	bet, _, _ := resolvedBet(t)

	// Pools after the two contributions: creators 1,500, arbiter 600,
	// protocol 900. The creators pool splits evenly, remainder to B.
	payout, transfers, err := WithdrawSpread(&bet, RecipientsOf(&bet))
	require.NoError(t, err)
	assert.Equal(t, SpreadPayout{
		FeeA:        750,
		FeeB:        750,
		FeeArbiter:  600,
		FeeProtocol: 900,
	}, payout)
	assert.Equal(t, uint64(3_000), payout.Total())

	escrow := bet.EscrowAccount()
	assert.Equal(t, []domain.Transfer{
		{From: escrow, To: "alice", Amount: 750},
		{From: escrow, To: "bob", Amount: 750},
		{From: escrow, To: "carol", Amount: 600},
		{From: escrow, To: "treasury", Amount: 900},
	}, transfers)

	assert.Zero(t, bet.SpreadPoolCreators)
	assert.Zero(t, bet.SpreadPoolArbiter)
	assert.Zero(t, bet.SpreadPoolProtocol)
}

func TestWithdrawSpreadOddCreatorsPool(t *testing.T) {
	bet, _, _ := resolvedBet(t)
	bet.SpreadPoolCreators = 1_501

	payout, _, err := WithdrawSpread(&bet, RecipientsOf(&bet))
	require.NoError(t, err)
	assert.Equal(t, uint64(750), payout.FeeA)
	assert.Equal(t, uint64(751), payout.FeeB, "remainder goes to user b")
}

func TestWithdrawSpreadEmptyPoolsNoOp(t *testing.T) {
	bet, _, _ := resolvedBet(t)
	bet.SpreadPoolCreators = 0
	bet.SpreadPoolArbiter = 0
	bet.SpreadPoolProtocol = 0

	payout, transfers, err := WithdrawSpread(&bet, RecipientsOf(&bet))
	require.NoError(t, err)
	assert.Zero(t, payout.Total())
	assert.Empty(t, transfers)
}

func TestWithdrawSpreadRejections(t *testing.T) {
	t.Run("unresolved", func(t *testing.T) {
		bet := depositedBet(t)
		_, _, err := WithdrawSpread(&bet, RecipientsOf(&bet))
		assert.ErrorIs(t, err, domain.ErrBetNotResolved)
	})

	t.Run("mismatched recipient", func(t *testing.T) {
		bet, _, _ := resolvedBet(t)
		rcpt := RecipientsOf(&bet)
		rcpt.Arbiter = "mallory"
		_, _, err := WithdrawSpread(&bet, rcpt)
		assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
		assert.Equal(t, uint64(1_500), bet.SpreadPoolCreators, "pools stay intact on rejection")
	})
}

// Escrow conservation across a full lifecycle: everything paid out plus the
// stranded fee dust equals everything paid in.
func TestLifecycleConservation(t *testing.T) {
	bet := depositedBet(t)

	var posA, posB domain.SupportPosition
	splitA, _, err := Support(&bet, &posA, "dave", domain.SideA, 100_001, testStart.Add(10*time.Minute))
	require.NoError(t, err)
	splitB, _, err := Support(&bet, &posB, "erin", domain.SideB, 50_003, testStart.Add(11*time.Minute))
	require.NoError(t, err)

	deposited := 2*bet.StakeLamports + 100_001 + 50_003

	require.NoError(t, DeclareWinner(&bet, "carol", domain.SideA, testStart.Add(3*time.Hour)))

	principal, err := WithdrawPrincipal(&bet, "alice")
	require.NoError(t, err)

	now := testStart.Add(4 * time.Hour)
	claimA, _, err := ClaimSupport(&bet, &posA, "dave", now)
	require.NoError(t, err)
	claimB, _, err := ClaimSupport(&bet, &posB, "erin", now)
	require.NoError(t, err)
	assert.Zero(t, claimB)

	spread, _, err := WithdrawSpread(&bet, RecipientsOf(&bet))
	require.NoError(t, err)

	paidOut := principal.Amount + claimA + claimB + spread.Total()
	dust := splitA.Dust() + splitB.Dust()
	// Claim flooring may strand a little more alongside the fee dust.
	assert.LessOrEqual(t, paidOut, deposited)
	assert.GreaterOrEqual(t, paidOut+dust+1, deposited)
}
