package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crowdduel/duelbet/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

// Create inserts a new bet. Both the id and the (arbiter, user_a, user_b)
// triple are unique; a collision on either returns domain.ErrAlreadyExists.
func (s *BetStore) Create(ctx context.Context, b domain.Bet) error {
	const query = `
		INSERT INTO bets (
			id, user_a, user_b, arbiter,
			stake_lamports, user_a_deposited, user_b_deposited,
			deadline_duel, deadline_crowd, resolve_ts,
			net_support_a, net_support_b,
			spread_pool_creators, spread_pool_arbiter, spread_pool_protocol,
			spread_bps, creator_share_bps, arbiter_share_bps, protocol_share_bps,
			status, winner_side, principal_withdrawn, protocol_treasury,
			created_at, resolved_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10,
			$11, $12,
			$13, $14, $15,
			$16, $17, $18, $19,
			$20, $21, $22, $23,
			$24, $25
		)`

	_, err := s.pool.Exec(ctx, query,
		b.ID, string(b.UserA), string(b.UserB), string(b.Arbiter),
		int64(b.StakeLamports), b.UserADeposited, b.UserBDeposited,
		b.DeadlineDuel, b.DeadlineCrowd, b.ResolveTS,
		int64(b.NetSupportA), int64(b.NetSupportB),
		int64(b.SpreadPoolCreators), int64(b.SpreadPoolArbiter), int64(b.SpreadPoolProtocol),
		int16(b.Fees.SpreadBps), int16(b.Fees.CreatorShareBps), int16(b.Fees.ArbiterShareBps), int16(b.Fees.ProtocolShareBps),
		string(b.Status), winnerSideValue(b.WinnerSide), b.PrincipalWithdrawn, string(b.ProtocolTreasury),
		b.CreatedAt, b.ResolvedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create bet %s: %w", b.ID, err)
	}
	return nil
}

// Update replaces every mutable field of an existing bet.
func (s *BetStore) Update(ctx context.Context, b domain.Bet) error {
	const query = `
		UPDATE bets SET
			user_a_deposited = $2, user_b_deposited = $3,
			net_support_a = $4, net_support_b = $5,
			spread_pool_creators = $6, spread_pool_arbiter = $7, spread_pool_protocol = $8,
			status = $9, winner_side = $10, principal_withdrawn = $11,
			resolved_at = $12, updated_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		b.ID,
		b.UserADeposited, b.UserBDeposited,
		int64(b.NetSupportA), int64(b.NetSupportB),
		int64(b.SpreadPoolCreators), int64(b.SpreadPoolArbiter), int64(b.SpreadPoolProtocol),
		string(b.Status), winnerSideValue(b.WinnerSide), b.PrincipalWithdrawn,
		b.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update bet %s: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const betSelectCols = `id, user_a, user_b, arbiter,
	stake_lamports, user_a_deposited, user_b_deposited,
	deadline_duel, deadline_crowd, resolve_ts,
	net_support_a, net_support_b,
	spread_pool_creators, spread_pool_arbiter, spread_pool_protocol,
	spread_bps, creator_share_bps, arbiter_share_bps, protocol_share_bps,
	status, winner_side, principal_withdrawn, protocol_treasury,
	created_at, resolved_at`

func scanBetFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Bet, error) {
	var b domain.Bet
	var userA, userB, arbiter, treasury, status string
	var stake, netA, netB, poolCreators, poolArbiter, poolProtocol int64
	var spreadBps, creatorBps, arbiterBps, protocolBps int16
	var winnerSide *string

	err := scanner.Scan(
		&b.ID, &userA, &userB, &arbiter,
		&stake, &b.UserADeposited, &b.UserBDeposited,
		&b.DeadlineDuel, &b.DeadlineCrowd, &b.ResolveTS,
		&netA, &netB,
		&poolCreators, &poolArbiter, &poolProtocol,
		&spreadBps, &creatorBps, &arbiterBps, &protocolBps,
		&status, &winnerSide, &b.PrincipalWithdrawn, &treasury,
		&b.CreatedAt, &b.ResolvedAt,
	)
	if err != nil {
		return domain.Bet{}, err
	}

	b.UserA = domain.Account(userA)
	b.UserB = domain.Account(userB)
	b.Arbiter = domain.Account(arbiter)
	b.ProtocolTreasury = domain.Account(treasury)
	b.StakeLamports = uint64(stake)
	b.NetSupportA = uint64(netA)
	b.NetSupportB = uint64(netB)
	b.SpreadPoolCreators = uint64(poolCreators)
	b.SpreadPoolArbiter = uint64(poolArbiter)
	b.SpreadPoolProtocol = uint64(poolProtocol)
	b.Fees = domain.FeeConfig{
		SpreadBps:        uint16(spreadBps),
		CreatorShareBps:  uint16(creatorBps),
		ArbiterShareBps:  uint16(arbiterBps),
		ProtocolShareBps: uint16(protocolBps),
	}
	b.Status = domain.BetStatus(status)
	if winnerSide != nil {
		side := domain.Side(*winnerSide)
		b.WinnerSide = &side
	}
	return b, nil
}

func scanBetRows(rows pgx.Rows) ([]domain.Bet, error) {
	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBetFromRow(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// GetByID retrieves a single bet by ID.
func (s *BetStore) GetByID(ctx context.Context, id string) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betSelectCols+` FROM bets WHERE id = $1`, id)

	b, err := scanBetFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s: %w", id, err)
	}
	return b, nil
}

// GetByParties looks up a bet by its (arbiter, user_a, user_b) natural key.
func (s *BetStore) GetByParties(ctx context.Context, arbiter, userA, userB domain.Account) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betSelectCols+` FROM bets
		 WHERE arbiter = $1 AND user_a = $2 AND user_b = $3`,
		string(arbiter), string(userA), string(userB))

	b, err := scanBetFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet by parties: %w", err)
	}
	return b, nil
}

// ListByStatus returns bets in the given status with pagination.
func (s *BetStore) ListByStatus(ctx context.Context, status domain.BetStatus, opts domain.ListOpts) ([]domain.Bet, error) {
	query := `SELECT ` + betSelectCols + ` FROM bets WHERE status = $1`
	args := []any{string(status)}
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
		return nil, fmt.Errorf("postgres: list bets by status: %w", err)
	}
	defer rows.Close()

	bets, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bets by status: %w", err)
	}
	return bets, nil
}

// ListByAccount returns bets where the account is a principal or the arbiter.
func (s *BetStore) ListByAccount(ctx context.Context, account domain.Account, opts domain.ListOpts) ([]domain.Bet, error) {
	query := `SELECT ` + betSelectCols + ` FROM bets
		 WHERE (user_a = $1 OR user_b = $1 OR arbiter = $1)`
	args := []any{string(account)}
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
		return nil, fmt.Errorf("postgres: list bets by account: %w", err)
	}
	defer rows.Close()

	bets, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bets by account: %w", err)
	}
	return bets, nil
}

// ListSettledBefore returns resolved bets with the principal already paid out
// whose resolution predates the cutoff, oldest first.
func (s *BetStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betSelectCols+` FROM bets
		 WHERE status = $1 AND principal_withdrawn AND resolved_at < $2
		 ORDER BY resolved_at ASC`,
		string(domain.BetResolved), before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled bets: %w", err)
	}
	defer rows.Close()

	bets, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan settled bets: %w", err)
	}
	return bets, nil
}

// Count returns the total number of bets.
func (s *BetStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count bets: %w", err)
	}
	return count, nil
}

func winnerSideValue(side *domain.Side) *string {
	if side == nil {
		return nil
	}
	v := string(*side)
	return &v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
