package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// BetStore persists Bet records. Bets are created once, updated in place, and
// never deleted.
type BetStore interface {
	Create(ctx context.Context, bet Bet) error
	Update(ctx context.Context, bet Bet) error
	GetByID(ctx context.Context, id string) (Bet, error)
	// GetByParties looks up a bet by its natural key.
	GetByParties(ctx context.Context, arbiter, userA, userB Account) (Bet, error)
	ListByStatus(ctx context.Context, status BetStatus, opts ListOpts) ([]Bet, error)
	ListByAccount(ctx context.Context, account Account, opts ListOpts) ([]Bet, error)
	// ListSettledBefore returns resolved bets whose principal payout has been
	// withdrawn and whose resolution predates the cutoff. Used by the
	// settlement archiver.
	ListSettledBefore(ctx context.Context, before time.Time) ([]Bet, error)
	Count(ctx context.Context) (int64, error)
}

// SupportPositionStore persists crowd positions, keyed by
// (bet, bettor, side).
type SupportPositionStore interface {
	// Upsert inserts the position or replaces the mutable fields of an
	// existing record with the same key.
	Upsert(ctx context.Context, pos SupportPosition) error
	Get(ctx context.Context, betID string, bettor Account, side Side) (SupportPosition, error)
	ListByBet(ctx context.Context, betID string) ([]SupportPosition, error)
	ListByBettor(ctx context.Context, bettor Account, opts ListOpts) ([]SupportPosition, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log fed after every successful
// operation.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	// ListBefore returns entries created strictly before the cutoff, oldest
	// first. Used by the settlement archiver.
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
}

// Ledger is the escrow custody collaborator. All fund movement goes through
// it; the engine itself never touches balances.
type Ledger interface {
	// Apply executes the transfers as one atomic batch: either every
	// transfer succeeds or none is applied. It fails with
	// ErrInsufficientFunds if any debit would overdraw its source account.
	Apply(ctx context.Context, transfers []Transfer) error
	Balance(ctx context.Context, account Account) (uint64, error)
}

// LockManager provides record-level exclusivity: the platform guarantee that
// no two operations mutate the same Bet concurrently.
type LockManager interface {
	// Acquire obtains the lock for key or fails with ErrLockHeld. The
	// returned unlock function is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// StreamMessage is a single message read from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus is the event sink: every successful operation publishes a
// structured notification on it, and durable streams keep an ordered history.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// RateLimiter throttles callers of the hot support endpoint.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under a sliding
	// window of limit requests per window, counting the request if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
