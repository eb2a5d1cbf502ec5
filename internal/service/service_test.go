package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdduel/duelbet/internal/domain"
	"github.com/crowdduel/duelbet/internal/engine"
	"github.com/crowdduel/duelbet/internal/escrow"
	"github.com/crowdduel/duelbet/internal/store/memory"
)

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, string) error { return nil }

// fixture wires the three services over in-memory implementations with a
// manually stepped clock.
type fixture struct {
	bets     *BetService
	supports *SupportService
	payouts  *PayoutService
	ledger   *escrow.MemoryLedger
	audit    *memory.AuditStore
	now      time.Time
}

func newFixture(t *testing.T, supportRateLimit int) *fixture {
	t.Helper()
	f := &fixture{
		ledger: escrow.NewMemoryLedger(),
		audit:  memory.NewAuditStore(),
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := domain.ClockFunc(func() time.Time { return f.now })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	betStore := memory.NewBetStore()
	posStore := memory.NewSupportStore()
	locks := memory.NewLockManager()
	bus := memory.NewSignalBus()
	limiter := memory.NewRateLimiter()

	f.bets = NewBetService(betStore, f.ledger, locks, f.audit, bus, nopNotifier{}, clock, logger)
	f.supports = NewSupportService(
		betStore, posStore, f.ledger, locks, limiter, f.audit, bus, nopNotifier{},
		clock, logger, supportRateLimit, time.Minute,
	)
	f.payouts = NewPayoutService(betStore, f.ledger, locks, f.audit, bus, nopNotifier{}, logger)
	return f
}

func (f *fixture) params() engine.CreateParams {
	return engine.CreateParams{
		UserA:            "alice",
		UserB:            "bob",
		Arbiter:          "carol",
		StakeLamports:    1_000_000,
		DeadlineDuel:     f.now.Add(1 * time.Hour),
		DeadlineCrowd:    f.now.Add(2 * time.Hour),
		ResolveTS:        f.now.Add(3 * time.Hour),
		ProtocolTreasury: "treasury",
		Fees: domain.FeeConfig{
			SpreadBps:        200,
			CreatorShareBps:  5000,
			ArbiterShareBps:  2000,
			ProtocolShareBps: 3000,
		},
	}
}

func (f *fixture) balance(t *testing.T, account domain.Account) uint64 {
	t.Helper()
	bal, err := f.ledger.Balance(context.Background(), account)
	require.NoError(t, err)
	return bal
}

func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	for _, acct := range []domain.Account{"alice", "bob", "dave", "erin"} {
		f.ledger.Fund(acct, 2_000_000)
	}

	bet, err := f.bets.Create(ctx, f.params())
	require.NoError(t, err)
	require.NotEmpty(t, bet.ID)
	assert.Equal(t, domain.BetOpen, bet.Status)

	_, err = f.bets.DepositPrincipal(ctx, bet.ID, "alice")
	require.NoError(t, err)
	bet, err = f.bets.DepositPrincipal(ctx, bet.ID, "bob")
	require.NoError(t, err)
	assert.True(t, bet.BothDeposited())
	assert.Equal(t, uint64(2_000_000), f.balance(t, bet.EscrowAccount()))

	pos, err := f.supports.Support(ctx, bet.ID, "dave", domain.SideA, 100_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(98_000), pos.NetAmount)
	_, err = f.supports.Support(ctx, bet.ID, "erin", domain.SideB, 50_000)
	require.NoError(t, err)

	f.now = f.now.Add(3 * time.Hour)
	bet, err = f.bets.DeclareWinner(ctx, bet.ID, "carol", domain.SideA)
	require.NoError(t, err)
	assert.Equal(t, domain.BetResolved, bet.Status)

	principal, err := f.payouts.WithdrawPrincipal(ctx, bet.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), principal)

	payout, err := f.supports.Claim(ctx, bet.ID, "dave", domain.SideA)
	require.NoError(t, err)
	assert.Equal(t, uint64(147_000), payout)

	payout, err = f.supports.Claim(ctx, bet.ID, "erin", domain.SideB)
	require.NoError(t, err)
	assert.Zero(t, payout)

	rcpt, err := f.payouts.SpreadRecipientsFor(ctx, bet.ID)
	require.NoError(t, err)
	spread, err := f.payouts.WithdrawSpread(ctx, bet.ID, rcpt)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_000), spread.Total())

	// Everything paid in has been paid out; the escrow account is empty.
	assert.Equal(t, uint64(3_000_750), f.balance(t, "alice"))
	assert.Equal(t, uint64(1_000_750), f.balance(t, "bob"))
	assert.Equal(t, uint64(600), f.balance(t, "carol"))
	assert.Equal(t, uint64(2_047_000), f.balance(t, "dave"))
	assert.Equal(t, uint64(1_950_000), f.balance(t, "erin"))
	assert.Equal(t, uint64(900), f.balance(t, "treasury"))
	assert.Zero(t, f.balance(t, bet.EscrowAccount()))
}

func TestDepositInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.ledger.Fund("alice", 1_000_000)
	// bob is unfunded.

	bet, err := f.bets.Create(ctx, f.params())
	require.NoError(t, err)

	_, err = f.bets.DepositPrincipal(ctx, bet.ID, "alice")
	require.NoError(t, err)

	_, err = f.bets.DepositPrincipal(ctx, bet.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// The failed transfer left the deposited flag unset.
	got, err := f.bets.Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.True(t, got.UserADeposited)
	assert.False(t, got.UserBDeposited)
}

func TestSupportRateLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	for _, acct := range []domain.Account{"alice", "bob", "dave"} {
		f.ledger.Fund(acct, 2_000_000)
	}

	bet, err := f.bets.Create(ctx, f.params())
	require.NoError(t, err)
	_, err = f.bets.DepositPrincipal(ctx, bet.ID, "alice")
	require.NoError(t, err)
	_, err = f.bets.DepositPrincipal(ctx, bet.ID, "bob")
	require.NoError(t, err)

	_, err = f.supports.Support(ctx, bet.ID, "dave", domain.SideA, 10_000)
	require.NoError(t, err)

	_, err = f.supports.Support(ctx, bet.ID, "dave", domain.SideA, 10_000)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestWithdrawPrincipalSingleShot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	for _, acct := range []domain.Account{"alice", "bob"} {
		f.ledger.Fund(acct, 1_000_000)
	}

	bet, err := f.bets.Create(ctx, f.params())
	require.NoError(t, err)
	_, err = f.bets.DepositPrincipal(ctx, bet.ID, "alice")
	require.NoError(t, err)
	_, err = f.bets.DepositPrincipal(ctx, bet.ID, "bob")
	require.NoError(t, err)

	f.now = f.now.Add(3 * time.Hour)
	_, err = f.bets.DeclareWinner(ctx, bet.ID, "carol", domain.SideB)
	require.NoError(t, err)

	amount, err := f.payouts.WithdrawPrincipal(ctx, bet.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), amount)

	_, err = f.payouts.WithdrawPrincipal(ctx, bet.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrPrincipalWithdrawn)
	assert.Equal(t, uint64(2_000_000), f.balance(t, "bob"))
}

func TestClaimConsumedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	for _, acct := range []domain.Account{"alice", "bob", "dave"} {
		f.ledger.Fund(acct, 2_000_000)
	}

	bet, err := f.bets.Create(ctx, f.params())
	require.NoError(t, err)
	_, err = f.bets.DepositPrincipal(ctx, bet.ID, "alice")
	require.NoError(t, err)
	_, err = f.bets.DepositPrincipal(ctx, bet.ID, "bob")
	require.NoError(t, err)
	_, err = f.supports.Support(ctx, bet.ID, "dave", domain.SideA, 100_000)
	require.NoError(t, err)

	f.now = f.now.Add(3 * time.Hour)
	_, err = f.bets.DeclareWinner(ctx, bet.ID, "carol", domain.SideA)
	require.NoError(t, err)

	_, err = f.supports.Claim(ctx, bet.ID, "dave", domain.SideA)
	require.NoError(t, err)

	_, err = f.supports.Claim(ctx, bet.ID, "dave", domain.SideA)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestWithdrawSpreadNoPools(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	for _, acct := range []domain.Account{"alice", "bob"} {
		f.ledger.Fund(acct, 1_000_000)
	}

	bet, err := f.bets.Create(ctx, f.params())
	require.NoError(t, err)
	_, err = f.bets.DepositPrincipal(ctx, bet.ID, "alice")
	require.NoError(t, err)
	_, err = f.bets.DepositPrincipal(ctx, bet.ID, "bob")
	require.NoError(t, err)

	f.now = f.now.Add(3 * time.Hour)
	_, err = f.bets.DeclareWinner(ctx, bet.ID, "carol", domain.SideA)
	require.NoError(t, err)

	// No crowd entered, so the pools are empty and nothing moves.
	rcpt, err := f.payouts.SpreadRecipientsFor(ctx, bet.ID)
	require.NoError(t, err)
	spread, err := f.payouts.WithdrawSpread(ctx, bet.ID, rcpt)
	require.NoError(t, err)
	assert.Zero(t, spread.Total())
}

func TestDuplicatePartiesRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	_, err := f.bets.Create(ctx, f.params())
	require.NoError(t, err)

	_, err = f.bets.Create(ctx, f.params())
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	for _, acct := range []domain.Account{"alice", "bob"} {
		f.ledger.Fund(acct, 1_000_000)
	}

	bet, err := f.bets.Create(ctx, f.params())
	require.NoError(t, err)
	_, err = f.bets.DepositPrincipal(ctx, bet.ID, "alice")
	require.NoError(t, err)
	_, err = f.bets.DepositPrincipal(ctx, bet.ID, "bob")
	require.NoError(t, err)

	// List returns newest first.
	entries, err := f.audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.EventParticipantDeposited, entries[0].Event)
	assert.Equal(t, domain.EventBetCreated, entries[2].Event)
	assert.Equal(t, bet.ID, entries[0].Detail["bet_id"])
}
