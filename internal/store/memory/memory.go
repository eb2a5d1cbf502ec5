// Package memory implements the domain stores and platform collaborators
// entirely in process memory. Demo mode runs on it so the engine can be
// exercised without PostgreSQL or Redis; the service tests use it for the
// same reason.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/crowdduel/duelbet/internal/domain"
)

// BetStore implements domain.BetStore with a mutex-guarded map.
type BetStore struct {
	mu   sync.RWMutex
	bets map[string]domain.Bet
}

// NewBetStore creates an empty BetStore.
func NewBetStore() *BetStore {
	return &BetStore{bets: make(map[string]domain.Bet)}
}

// Create inserts a new bet, enforcing uniqueness of both the ID and the
// (arbiter, user_a, user_b) triple.
func (s *BetStore) Create(_ context.Context, bet domain.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bets[bet.ID]; ok {
		return domain.ErrAlreadyExists
	}
	for _, b := range s.bets {
		if b.Arbiter == bet.Arbiter && b.UserA == bet.UserA && b.UserB == bet.UserB {
			return domain.ErrAlreadyExists
		}
	}
	s.bets[bet.ID] = bet
	return nil
}

// Update replaces an existing bet record.
func (s *BetStore) Update(_ context.Context, bet domain.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bets[bet.ID]; !ok {
		return domain.ErrNotFound
	}
	s.bets[bet.ID] = bet
	return nil
}

// GetByID returns the bet with the given ID.
func (s *BetStore) GetByID(_ context.Context, id string) (domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bet, ok := s.bets[id]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return bet, nil
}

// GetByParties returns the bet with the given natural key.
func (s *BetStore) GetByParties(_ context.Context, arbiter, userA, userB domain.Account) (domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bets {
		if b.Arbiter == arbiter && b.UserA == userA && b.UserB == userB {
			return b, nil
		}
	}
	return domain.Bet{}, domain.ErrNotFound
}

// ListByStatus returns bets in the given status, newest first.
func (s *BetStore) ListByStatus(_ context.Context, status domain.BetStatus, opts domain.ListOpts) ([]domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Bet
	for _, b := range s.bets {
		if b.Status == status {
			out = append(out, b)
		}
	}
	sortByCreated(out)
	return paginate(out, opts), nil
}

// ListByAccount returns bets in which the account appears as principal,
// arbiter, or treasury, newest first.
func (s *BetStore) ListByAccount(_ context.Context, account domain.Account, opts domain.ListOpts) ([]domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Bet
	for _, b := range s.bets {
		if b.UserA == account || b.UserB == account || b.Arbiter == account || b.ProtocolTreasury == account {
			out = append(out, b)
		}
	}
	sortByCreated(out)
	return paginate(out, opts), nil
}

// ListSettledBefore returns resolved, principal-withdrawn bets resolved
// before the cutoff.
func (s *BetStore) ListSettledBefore(_ context.Context, before time.Time) ([]domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Bet
	for _, b := range s.bets {
		if b.Status == domain.BetResolved && b.PrincipalWithdrawn &&
			b.ResolvedAt != nil && b.ResolvedAt.Before(before) {
			out = append(out, b)
		}
	}
	sortByCreated(out)
	return out, nil
}

// Count returns the number of stored bets.
func (s *BetStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.bets)), nil
}

func sortByCreated(bets []domain.Bet) {
	sort.Slice(bets, func(i, j int) bool {
		return bets[i].CreatedAt.After(bets[j].CreatedAt)
	})
}

func paginate(bets []domain.Bet, opts domain.ListOpts) []domain.Bet {
	if opts.Offset > 0 {
		if opts.Offset >= len(bets) {
			return nil
		}
		bets = bets[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(bets) {
		bets = bets[:opts.Limit]
	}
	return bets
}

type positionKey struct {
	betID  string
	bettor domain.Account
	side   domain.Side
}

// SupportStore implements domain.SupportPositionStore with a mutex-guarded
// map.
type SupportStore struct {
	mu        sync.RWMutex
	positions map[positionKey]domain.SupportPosition
}

// NewSupportStore creates an empty SupportStore.
func NewSupportStore() *SupportStore {
	return &SupportStore{positions: make(map[positionKey]domain.SupportPosition)}
}

// Upsert inserts or replaces a position.
func (s *SupportStore) Upsert(_ context.Context, pos domain.SupportPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[positionKey{pos.BetID, pos.Bettor, pos.Side}] = pos
	return nil
}

// Get returns the position for (betID, bettor, side).
func (s *SupportStore) Get(_ context.Context, betID string, bettor domain.Account, side domain.Side) (domain.SupportPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[positionKey{betID, bettor, side}]
	if !ok {
		return domain.SupportPosition{}, domain.ErrNotFound
	}
	return pos, nil
}

// ListByBet returns all positions on the given bet.
func (s *SupportStore) ListByBet(_ context.Context, betID string) ([]domain.SupportPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SupportPosition
	for _, p := range s.positions {
		if p.BetID == betID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListByBettor returns all positions held by the given bettor.
func (s *SupportStore) ListByBettor(_ context.Context, bettor domain.Account, opts domain.ListOpts) ([]domain.SupportPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SupportPosition
	for _, p := range s.positions {
		if p.Bettor == bettor {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// AuditStore implements domain.AuditStore as an append-only slice.
type AuditStore struct {
	mu      sync.Mutex
	nextID  int64
	entries []domain.AuditEntry
}

// NewAuditStore creates an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{nextID: 1}
}

// Log appends an entry.
func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, domain.AuditEntry{
		ID:        s.nextID,
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	s.nextID++
	return nil
}

// List returns entries newest first.
func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditEntry, len(s.entries))
	copy(out, s.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// ListBefore returns entries created before the cutoff, oldest first.
func (s *AuditStore) ListBefore(_ context.Context, before time.Time) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range s.entries {
		if e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

// LockManager implements domain.LockManager with process-local mutexes. The
// TTL is ignored; locks live until released.
type LockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]bool)}
}

// Acquire implements domain.LockManager.
func (lm *LockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.held[key] {
		return nil, domain.ErrLockHeld
	}
	lm.held[key] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			lm.mu.Lock()
			delete(lm.held, key)
			lm.mu.Unlock()
		})
	}, nil
}

// SignalBus implements domain.SignalBus over in-process channels. Stream
// history is kept in memory with sequential IDs.
type SignalBus struct {
	mu      sync.Mutex
	subs    map[string][]chan []byte
	streams map[string][]domain.StreamMessage
	nextSeq int64
}

// NewSignalBus creates an empty SignalBus.
func NewSignalBus() *SignalBus {
	return &SignalBus{
		subs:    make(map[string][]chan []byte),
		streams: make(map[string][]domain.StreamMessage),
		nextSeq: 1,
	}
}

// Publish delivers the payload to current subscribers without blocking;
// slow subscribers drop messages, matching pub/sub semantics.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber channel for the given channel name.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}()
	return ch, nil
}

// StreamAppend appends a message to the named stream.
func (b *SignalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[stream] = append(b.streams[stream], domain.StreamMessage{
		ID:      itoa(b.nextSeq),
		Payload: payload,
	})
	b.nextSeq++
	return nil
}

// StreamRead returns up to count messages after lastID.
func (b *SignalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.StreamMessage
	for _, m := range b.streams[stream] {
		if m.ID > lastID && (count <= 0 || len(out) < count) {
			out = append(out, m)
		}
	}
	return out, nil
}

func itoa(n int64) string {
	// Zero-padded so lexicographic order matches numeric order.
	const width = 19
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf)
}

// RateLimiter implements domain.RateLimiter with a per-key sliding window of
// timestamps.
type RateLimiter struct {
	mu      sync.Mutex
	history map[string][]time.Time
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{history: make(map[string][]time.Time)}
}

// Allow implements domain.RateLimiter.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	cutoff := now.Add(-window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	kept := rl.history[key][:0]
	for _, t := range rl.history[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= limit {
		rl.history[key] = kept
		return false, nil
	}
	rl.history[key] = append(kept, now)
	return true, nil
}

// Compile-time interface checks.
var (
	_ domain.BetStore             = (*BetStore)(nil)
	_ domain.SupportPositionStore = (*SupportStore)(nil)
	_ domain.AuditStore           = (*AuditStore)(nil)
	_ domain.LockManager          = (*LockManager)(nil)
	_ domain.SignalBus            = (*SignalBus)(nil)
	_ domain.RateLimiter          = (*RateLimiter)(nil)
)
