package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crowdduel/duelbet/internal/domain"
)

// LedgerStore implements domain.Ledger on an escrow_accounts balance table
// plus an append-only transfers journal. A batch is applied inside one
// transaction; a debit that would overdraw its source rolls the whole batch
// back.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given connection
// pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Apply executes the transfers as one atomic batch.
func (s *LedgerStore) Apply(ctx context.Context, transfers []domain.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("postgres: begin ledger tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, t := range transfers {
		if t.Amount == 0 {
			continue
		}

		// The debit is conditional on sufficient balance; zero rows
		// affected means the account is missing or would overdraw.
		tag, err := tx.Exec(ctx,
			`UPDATE escrow_accounts
			 SET balance = balance - $2, updated_at = NOW()
			 WHERE account = $1 AND balance >= $2`,
			string(t.From), int64(t.Amount))
		if err != nil {
			return fmt.Errorf("postgres: debit %s: %w", t.From, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: debit %s by %d: %w", t.From, t.Amount, domain.ErrInsufficientFunds)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO escrow_accounts (account, balance)
			 VALUES ($1, $2)
			 ON CONFLICT (account) DO UPDATE SET
				balance = escrow_accounts.balance + EXCLUDED.balance,
				updated_at = NOW()`,
			string(t.To), int64(t.Amount)); err != nil {
			return fmt.Errorf("postgres: credit %s: %w", t.To, err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO transfers (from_account, to_account, amount)
			 VALUES ($1, $2, $3)`,
			string(t.From), string(t.To), int64(t.Amount)); err != nil {
			return fmt.Errorf("postgres: journal transfer: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit ledger tx: %w", err)
	}
	return nil
}

// Balance returns the current balance of the account. Unknown accounts have a
// zero balance.
func (s *LedgerStore) Balance(ctx context.Context, account domain.Account) (uint64, error) {
	var balance int64
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM escrow_accounts WHERE account = $1`,
		string(account)).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: balance %s: %w", account, err)
	}
	return uint64(balance), nil
}

// Fund credits an account outside any bet operation. Deployments that custody
// funds elsewhere never call this; the demo mode and tests use it to seed
// balances.
func (s *LedgerStore) Fund(ctx context.Context, account domain.Account, amount uint64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO escrow_accounts (account, balance)
		 VALUES ($1, $2)
		 ON CONFLICT (account) DO UPDATE SET
			balance = escrow_accounts.balance + EXCLUDED.balance,
			updated_at = NOW()`,
		string(account), int64(amount))
	if err != nil {
		return fmt.Errorf("postgres: fund %s: %w", account, err)
	}
	return nil
}

var _ domain.Ledger = (*LedgerStore)(nil)
