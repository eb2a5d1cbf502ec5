package escrow

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdduel/duelbet/internal/domain"
)

func TestMemoryLedgerApply(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	l.Fund("alice", 1_000)

	err := l.Apply(ctx, []domain.Transfer{
		{From: "alice", To: "escrow:bet-1", Amount: 600},
		{From: "escrow:bet-1", To: "bob", Amount: 100},
	})
	require.NoError(t, err)

	bal, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(400), bal)

	bal, err = l.Balance(ctx, "escrow:bet-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), bal)

	bal, err = l.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal)
}

func TestMemoryLedgerApplyAtomic(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	l.Fund("alice", 500)

	// The second transfer overdraws, so the first must not stick either.
	err := l.Apply(ctx, []domain.Transfer{
		{From: "alice", To: "bob", Amount: 300},
		{From: "alice", To: "carol", Amount: 300},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	bal, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), bal)

	bal, err = l.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestMemoryLedgerApplyWithinBatchFlow(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	l.Fund("alice", 100)

	// A credit earlier in the batch funds a later debit.
	err := l.Apply(ctx, []domain.Transfer{
		{From: "alice", To: "bob", Amount: 100},
		{From: "bob", To: "carol", Amount: 100},
	})
	require.NoError(t, err)

	bal, err := l.Balance(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal)
}

func TestMemoryLedgerCreditOverflow(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	l.Fund("alice", 10)
	l.Fund("bob", math.MaxUint64)

	err := l.Apply(ctx, []domain.Transfer{{From: "alice", To: "bob", Amount: 1}})
	assert.ErrorIs(t, err, domain.ErrArithmeticOverflow)

	bal, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), bal)
}

func TestMemoryLedgerUnknownAccount(t *testing.T) {
	l := NewMemoryLedger()
	bal, err := l.Balance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, bal)
}
