package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdduel/duelbet/internal/domain"
)

func sampleBet(id string, arbiter domain.Account) domain.Bet {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Bet{
		ID:            id,
		UserA:         "alice",
		UserB:         "bob",
		Arbiter:       arbiter,
		StakeLamports: 1_000_000,
		DeadlineDuel:  now.Add(time.Hour),
		DeadlineCrowd: now.Add(2 * time.Hour),
		ResolveTS:     now.Add(3 * time.Hour),
		Status:        domain.BetOpen,
		CreatedAt:     now,
	}
}

func TestBetStoreUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewBetStore()

	require.NoError(t, s.Create(ctx, sampleBet("b1", "carol")))

	err := s.Create(ctx, sampleBet("b1", "dave"))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists, "duplicate id")

	err = s.Create(ctx, sampleBet("b2", "carol"))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists, "duplicate parties")

	require.NoError(t, s.Create(ctx, sampleBet("b2", "dave")))
}

func TestBetStoreGetByParties(t *testing.T) {
	ctx := context.Background()
	s := NewBetStore()
	require.NoError(t, s.Create(ctx, sampleBet("b1", "carol")))

	bet, err := s.GetByParties(ctx, "carol", "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "b1", bet.ID)

	_, err = s.GetByParties(ctx, "carol", "alice", "mallory")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBetStoreListSettledBefore(t *testing.T) {
	ctx := context.Background()
	s := NewBetStore()

	cutoff := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-time.Hour)
	side := domain.SideA

	settled := sampleBet("b1", "carol")
	settled.Status = domain.BetResolved
	settled.WinnerSide = &side
	settled.PrincipalWithdrawn = true
	settled.ResolvedAt = &old
	require.NoError(t, s.Create(ctx, settled))

	// Resolved but the principal is still unclaimed: not settled yet.
	pending := sampleBet("b2", "dave")
	pending.Status = domain.BetResolved
	pending.WinnerSide = &side
	pending.ResolvedAt = &old
	require.NoError(t, s.Create(ctx, pending))

	got, err := s.ListSettledBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b1", got[0].ID)
}

func TestLockManager(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	release, err := lm.Acquire(ctx, "bet:b1", time.Second)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "bet:b1", time.Second)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	// Other keys are independent.
	release2, err := lm.Acquire(ctx, "bet:b2", time.Second)
	require.NoError(t, err)
	release2()

	release()
	release() // releasing twice is safe

	release3, err := lm.Acquire(ctx, "bet:b1", time.Second)
	require.NoError(t, err)
	release3()
}

func TestSignalBusPubSub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewSignalBus()

	ch, err := bus.Subscribe(ctx, "bets")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "bets", []byte("one")))
	require.NoError(t, bus.Publish(ctx, "other", []byte("two")))

	select {
	case msg := <-ch:
		assert.Equal(t, []byte("one"), msg)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %q", msg)
	default:
	}
}

func TestSignalBusStream(t *testing.T) {
	ctx := context.Background()
	bus := NewSignalBus()

	require.NoError(t, bus.StreamAppend(ctx, "stream:events", []byte("a")))
	require.NoError(t, bus.StreamAppend(ctx, "stream:events", []byte("b")))
	require.NoError(t, bus.StreamAppend(ctx, "stream:events", []byte("c")))

	msgs, err := bus.StreamRead(ctx, "stream:events", "", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("a"), msgs[0].Payload)

	rest, err := bus.StreamRead(ctx, "stream:events", msgs[1].ID, 0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, []byte("c"), rest[0].Payload)
}

func TestRateLimiterWindow(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := rl.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different key has its own window.
	ok, err = rl.Allow(ctx, "k2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
