// Package escrow provides an in-memory implementation of the escrow custody
// ledger, used by demo mode and tests. Production deployments use the
// PostgreSQL-backed ledger in store/postgres.
package escrow

import (
	"context"
	"fmt"
	"math/bits"
	"sync"

	"github.com/crowdduel/duelbet/internal/domain"
)

// MemoryLedger keeps escrow account balances in a map guarded by a mutex.
// Apply is all-or-nothing: the batch is staged against a copy and swapped in
// only when every transfer clears.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[domain.Account]uint64
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[domain.Account]uint64)}
}

// Fund credits an account out of thin air. It stands in for the platform's
// external funding path; only demo mode and tests call it.
func (l *MemoryLedger) Fund(account domain.Account, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

// Apply implements domain.Ledger.
func (l *MemoryLedger) Apply(_ context.Context, transfers []domain.Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	staged := make(map[domain.Account]uint64, len(l.balances))
	for acct, bal := range l.balances {
		staged[acct] = bal
	}

	for _, t := range transfers {
		if staged[t.From] < t.Amount {
			return fmt.Errorf("escrow: debit %d from %s (balance %d): %w",
				t.Amount, t.From, staged[t.From], domain.ErrInsufficientFunds)
		}
		staged[t.From] -= t.Amount

		sum, carry := bits.Add64(staged[t.To], t.Amount, 0)
		if carry != 0 {
			return fmt.Errorf("escrow: credit %d to %s: %w", t.Amount, t.To, domain.ErrArithmeticOverflow)
		}
		staged[t.To] = sum
	}

	l.balances = staged
	return nil
}

// Balance implements domain.Ledger. Unknown accounts report zero.
func (l *MemoryLedger) Balance(_ context.Context, account domain.Account) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

// Compile-time interface check.
var _ domain.Ledger = (*MemoryLedger)(nil)
