// Package domain defines the core data model for crowd-backed duels: the Bet
// aggregate, crowd support positions, the error taxonomy, and the collaborator
// interfaces (stores, escrow ledger, clock, locks, signal bus) that the rest
// of the system implements.
package domain

import (
	"fmt"
	"time"
)

// Account is an opaque principal identifier. Who controls an account is the
// platform's concern; the engine only compares accounts for equality and
// issues ledger transfers between them.
type Account string

// Side identifies one of the two duel sides.
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

// ParseSide converts a wire value into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideA:
		return SideA, nil
	case SideB:
		return SideB, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrWrongSide, s)
	}
}

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// BetStatus is the lifecycle state of a Bet.
type BetStatus string

const (
	BetOpen     BetStatus = "open"
	BetResolved BetStatus = "resolved"

	// BetCancelled is reserved for a future cancel-and-refund path. No
	// operation currently produces it; stores and wire formats accept it so
	// adding the transition later is not a schema change.
	BetCancelled BetStatus = "cancelled"
)

// BpsDenominator is the basis-point scale: 10,000 bps = 100%.
const BpsDenominator = 10_000

// FeeConfig is the spread fee configuration fixed at bet creation. SpreadBps
// is skimmed from every crowd contribution; the three share fields split that
// fee between the duel principals, the arbiter, and the protocol treasury and
// must sum to exactly BpsDenominator.
type FeeConfig struct {
	SpreadBps        uint16 `json:"spread_bps"`
	CreatorShareBps  uint16 `json:"creator_share_bps"`
	ArbiterShareBps  uint16 `json:"arbiter_share_bps"`
	ProtocolShareBps uint16 `json:"protocol_share_bps"`
}

// Validate checks the fee configuration invariants.
func (f FeeConfig) Validate() error {
	if f.SpreadBps == 0 {
		return fmt.Errorf("%w: spread_bps must be > 0", ErrInvalidFeeConfig)
	}
	sum := int(f.CreatorShareBps) + int(f.ArbiterShareBps) + int(f.ProtocolShareBps)
	if sum != BpsDenominator {
		return fmt.Errorf("%w: shares sum to %d bps, want %d", ErrInvalidFeeConfig, sum, BpsDenominator)
	}
	return nil
}

// Bet is the aggregate record for one duel: the two principals and their
// stakes, the arbiter, the crowd pools, the accumulated spread fee pools, and
// the state machine driving which operations are currently legal.
//
// A Bet is uniquely identified both by its ID and by the
// (arbiter, user_a, user_b) triple. It is created once, mutated by the seven
// engine operations, and never deleted; settled bets remain for audit and
// late claims.
type Bet struct {
	ID string `json:"id"`

	UserA   Account `json:"user_a"`
	UserB   Account `json:"user_b"`
	Arbiter Account `json:"arbiter"`

	// StakeLamports is the identical amount each principal locks.
	StakeLamports  uint64 `json:"stake_lamports"`
	UserADeposited bool   `json:"user_a_deposited"`
	UserBDeposited bool   `json:"user_b_deposited"`

	// Timeline: DeadlineDuel < DeadlineCrowd <= ResolveTS. Principals deposit
	// before DeadlineDuel, the crowd enters before DeadlineCrowd, and the
	// arbiter may resolve from ResolveTS onward.
	DeadlineDuel  time.Time `json:"deadline_duel"`
	DeadlineCrowd time.Time `json:"deadline_crowd"`
	ResolveTS     time.Time `json:"resolve_ts"`

	// Crowd pools: cumulative post-fee contributions per side.
	NetSupportA uint64 `json:"net_support_a"`
	NetSupportB uint64 `json:"net_support_b"`

	// Spread fee pools: accumulated, undistributed fee by recipient class.
	SpreadPoolCreators uint64 `json:"spread_pool_creators"`
	SpreadPoolArbiter  uint64 `json:"spread_pool_arbiter"`
	SpreadPoolProtocol uint64 `json:"spread_pool_protocol"`

	Fees FeeConfig `json:"fees"`

	Status BetStatus `json:"status"`

	// WinnerSide is nil while Open and set exactly once at resolution.
	WinnerSide *Side `json:"winner_side,omitempty"`

	// PrincipalWithdrawn guards the 2x-stake payout against double
	// withdrawal.
	PrincipalWithdrawn bool `json:"principal_withdrawn"`

	ProtocolTreasury Account `json:"protocol_treasury"`

	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// EscrowAccount returns the ledger account holding this bet's locked stakes,
// crowd contributions, and fee pools.
func (b *Bet) EscrowAccount() Account {
	return Account("escrow:" + b.ID)
}

// Principal returns the account of the principal on the given side.
func (b *Bet) Principal(side Side) Account {
	if side == SideA {
		return b.UserA
	}
	return b.UserB
}

// BothDeposited reports whether both principals have locked their stake.
func (b *Bet) BothDeposited() bool {
	return b.UserADeposited && b.UserBDeposited
}

// NetSupport returns the net crowd pool for the given side.
func (b *Bet) NetSupport(side Side) uint64 {
	if side == SideA {
		return b.NetSupportA
	}
	return b.NetSupportB
}

// Transfer is a single escrow custody instruction: move Amount from one
// account to another. Transfers are emitted by the engine and executed by a
// Ledger implementation.
type Transfer struct {
	From   Account `json:"from"`
	To     Account `json:"to"`
	Amount uint64  `json:"amount"`
}
