package engine

import (
	"time"

	"github.com/crowdduel/duelbet/internal/domain"
)

// CreateParams carries the immutable terms of a new duel.
type CreateParams struct {
	UserA   domain.Account
	UserB   domain.Account
	Arbiter domain.Account

	StakeLamports uint64

	DeadlineDuel  time.Time
	DeadlineCrowd time.Time
	ResolveTS     time.Time

	Fees domain.FeeConfig

	ProtocolTreasury domain.Account
}

// NewBet validates the duel terms and returns a fresh Open bet with all
// counters zeroed. No funds move at creation. The caller assigns the record
// ID before persisting.
func NewBet(p CreateParams, now time.Time) (domain.Bet, error) {
	if p.StakeLamports == 0 {
		return domain.Bet{}, domain.ErrInvalidStakeAmount
	}
	if !p.DeadlineDuel.Before(p.DeadlineCrowd) {
		return domain.Bet{}, domain.ErrInvalidDeadlines
	}
	if p.ResolveTS.Before(p.DeadlineCrowd) {
		return domain.Bet{}, domain.ErrInvalidDeadlines
	}
	if err := p.Fees.Validate(); err != nil {
		return domain.Bet{}, err
	}

	return domain.Bet{
		UserA:            p.UserA,
		UserB:            p.UserB,
		Arbiter:          p.Arbiter,
		StakeLamports:    p.StakeLamports,
		DeadlineDuel:     p.DeadlineDuel.UTC(),
		DeadlineCrowd:    p.DeadlineCrowd.UTC(),
		ResolveTS:        p.ResolveTS.UTC(),
		Fees:             p.Fees,
		Status:           domain.BetOpen,
		ProtocolTreasury: p.ProtocolTreasury,
		CreatedAt:        now.UTC(),
	}, nil
}

// DepositPrincipal marks the caller's stake as deposited and returns the
// transfer locking it in escrow. The caller must execute the transfer before
// persisting the flipped flag so a failed transfer never leaves the flag set.
func DepositPrincipal(bet *domain.Bet, caller domain.Account, now time.Time) (domain.Transfer, error) {
	if bet.Status != domain.BetOpen {
		return domain.Transfer{}, domain.ErrBetNotOpen
	}
	if !now.Before(bet.DeadlineDuel) {
		return domain.Transfer{}, domain.ErrDeadlinePassed
	}

	switch caller {
	case bet.UserA:
		if bet.UserADeposited {
			return domain.Transfer{}, domain.ErrAlreadyDeposited
		}
		bet.UserADeposited = true
	case bet.UserB:
		if bet.UserBDeposited {
			return domain.Transfer{}, domain.ErrAlreadyDeposited
		}
		bet.UserBDeposited = true
	default:
		return domain.Transfer{}, domain.ErrInvalidParticipant
	}

	return domain.Transfer{
		From:   caller,
		To:     bet.EscrowAccount(),
		Amount: bet.StakeLamports,
	}, nil
}

// DeclareWinner resolves the duel. Only the bet's arbiter may call it, only
// from ResolveTS onward, and only once both principals have deposited. The
// transition is irreversible.
func DeclareWinner(bet *domain.Bet, caller domain.Account, side domain.Side, now time.Time) error {
	if caller != bet.Arbiter {
		return domain.ErrInvalidArbiter
	}
	if bet.Status != domain.BetOpen {
		return domain.ErrBetNotOpen
	}
	if now.Before(bet.ResolveTS) {
		return domain.ErrTooEarlyToResolve
	}
	if !bet.BothDeposited() {
		return domain.ErrParticipantsNotDeposited
	}
	if !side.Valid() {
		return domain.ErrWrongSide
	}

	winner := side
	resolvedAt := now.UTC()
	bet.WinnerSide = &winner
	bet.Status = domain.BetResolved
	bet.ResolvedAt = &resolvedAt
	return nil
}
