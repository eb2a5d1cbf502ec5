package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crowdduel/duelbet/internal/domain"
)

// SupportStore implements domain.SupportPositionStore using PostgreSQL.
// Positions are keyed by (bet_id, bettor, side).
type SupportStore struct {
	pool *pgxpool.Pool
}

// NewSupportStore creates a new SupportStore backed by the given connection
// pool.
func NewSupportStore(pool *pgxpool.Pool) *SupportStore {
	return &SupportStore{pool: pool}
}

// Upsert inserts the position or replaces the mutable fields of an existing
// record with the same key.
func (s *SupportStore) Upsert(ctx context.Context, p domain.SupportPosition) error {
	const query = `
		INSERT INTO support_positions (
			bet_id, bettor, side, net_amount, claimed,
			created_at, updated_at, claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (bet_id, bettor, side) DO UPDATE SET
			net_amount = EXCLUDED.net_amount,
			claimed = EXCLUDED.claimed,
			updated_at = EXCLUDED.updated_at,
			claimed_at = EXCLUDED.claimed_at`

	_, err := s.pool.Exec(ctx, query,
		p.BetID, string(p.Bettor), string(p.Side),
		int64(p.NetAmount), p.Claimed,
		p.CreatedAt, p.UpdatedAt, p.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert support position %s/%s/%s: %w",
			p.BetID, p.Bettor, p.Side, err)
	}
	return nil
}

const supportSelectCols = `bet_id, bettor, side, net_amount, claimed,
	created_at, updated_at, claimed_at`

func scanSupportFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.SupportPosition, error) {
	var p domain.SupportPosition
	var bettor, side string
	var netAmount int64

	err := scanner.Scan(
		&p.BetID, &bettor, &side, &netAmount, &p.Claimed,
		&p.CreatedAt, &p.UpdatedAt, &p.ClaimedAt,
	)
	if err != nil {
		return domain.SupportPosition{}, err
	}

	p.Bettor = domain.Account(bettor)
	p.Side = domain.Side(side)
	p.NetAmount = uint64(netAmount)
	return p, nil
}

func scanSupportRows(rows pgx.Rows) ([]domain.SupportPosition, error) {
	var positions []domain.SupportPosition
	for rows.Next() {
		p, err := scanSupportFromRow(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Get retrieves a single position by key.
func (s *SupportStore) Get(ctx context.Context, betID string, bettor domain.Account, side domain.Side) (domain.SupportPosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+supportSelectCols+` FROM support_positions
		 WHERE bet_id = $1 AND bettor = $2 AND side = $3`,
		betID, string(bettor), string(side))

	p, err := scanSupportFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.SupportPosition{}, domain.ErrNotFound
		}
		return domain.SupportPosition{}, fmt.Errorf("postgres: get support position %s/%s/%s: %w",
			betID, bettor, side, err)
	}
	return p, nil
}

// ListByBet returns every position on the given bet.
func (s *SupportStore) ListByBet(ctx context.Context, betID string) ([]domain.SupportPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+supportSelectCols+` FROM support_positions
		 WHERE bet_id = $1
		 ORDER BY created_at ASC`, betID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list support positions by bet: %w", err)
	}
	defer rows.Close()

	positions, err := scanSupportRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan support positions by bet: %w", err)
	}
	return positions, nil
}

// ListByBettor returns the bettor's positions across bets with pagination.
func (s *SupportStore) ListByBettor(ctx context.Context, bettor domain.Account, opts domain.ListOpts) ([]domain.SupportPosition, error) {
	query := `SELECT ` + supportSelectCols + ` FROM support_positions WHERE bettor = $1`
	args := []any{string(bettor)}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list support positions by bettor: %w", err)
	}
	defer rows.Close()

	positions, err := scanSupportRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan support positions by bettor: %w", err)
	}
	return positions, nil
}
