package engine

import (
	"math/bits"

	"github.com/crowdduel/duelbet/internal/domain"
)

// WithdrawPrincipal pays the duel winner 2x the stake (their own returned
// plus the loser's forfeited). The withdrawn flag makes the payout
// single-shot; a second call fails with ErrPrincipalWithdrawn and moves
// nothing.
func WithdrawPrincipal(bet *domain.Bet, caller domain.Account) (domain.Transfer, error) {
	if bet.Status != domain.BetResolved || bet.WinnerSide == nil {
		return domain.Transfer{}, domain.ErrBetNotResolved
	}
	if caller != bet.Principal(*bet.WinnerSide) {
		return domain.Transfer{}, domain.ErrInvalidWinner
	}
	if bet.PrincipalWithdrawn {
		return domain.Transfer{}, domain.ErrPrincipalWithdrawn
	}

	hi, amount := bits.Mul64(bet.StakeLamports, 2)
	if hi != 0 {
		return domain.Transfer{}, domain.ErrArithmeticOverflow
	}

	bet.PrincipalWithdrawn = true
	return domain.Transfer{
		From:   bet.EscrowAccount(),
		To:     caller,
		Amount: amount,
	}, nil
}

// SpreadRecipients are the caller-supplied destination accounts for a spread
// withdrawal. The engine verifies each one against the bet record before any
// credit; trusting them unchecked would let a caller redirect fee pools.
type SpreadRecipients struct {
	UserA            domain.Account
	UserB            domain.Account
	Arbiter          domain.Account
	ProtocolTreasury domain.Account
}

// RecipientsOf builds the spread recipients recorded on the bet itself.
func RecipientsOf(bet *domain.Bet) SpreadRecipients {
	return SpreadRecipients{
		UserA:            bet.UserA,
		UserB:            bet.UserB,
		Arbiter:          bet.Arbiter,
		ProtocolTreasury: bet.ProtocolTreasury,
	}
}

// SpreadPayout is the per-recipient outcome of a spread withdrawal.
type SpreadPayout struct {
	FeeA        uint64 `json:"fee_a"`
	FeeB        uint64 `json:"fee_b"`
	FeeArbiter  uint64 `json:"fee_arbiter"`
	FeeProtocol uint64 `json:"fee_protocol"`
}

// Total returns the combined amount leaving escrow.
func (p SpreadPayout) Total() uint64 {
	return p.FeeA + p.FeeB + p.FeeArbiter + p.FeeProtocol
}

// WithdrawSpread drains the three fee pools once the bet is resolved. The
// creators pool splits evenly between the principals, remainder to B; the
// arbiter and protocol pools pay out whole. Anyone may trigger it; the
// recipient accounts must match the bet record. With all pools empty it
// succeeds as a no-op. The pools are zeroed only after the transfers are
// built, so a failed ledger batch leaves them intact.
func WithdrawSpread(bet *domain.Bet, rcpt SpreadRecipients) (SpreadPayout, []domain.Transfer, error) {
	if bet.Status != domain.BetResolved {
		return SpreadPayout{}, nil, domain.ErrBetNotResolved
	}
	if rcpt.UserA != bet.UserA || rcpt.UserB != bet.UserB ||
		rcpt.Arbiter != bet.Arbiter || rcpt.ProtocolTreasury != bet.ProtocolTreasury {
		return SpreadPayout{}, nil, domain.ErrInvalidRecipient
	}

	creators := bet.SpreadPoolCreators
	payout := SpreadPayout{
		FeeA:        creators / 2,
		FeeB:        creators - creators/2,
		FeeArbiter:  bet.SpreadPoolArbiter,
		FeeProtocol: bet.SpreadPoolProtocol,
	}

	total, err := addChecked(creators, payout.FeeArbiter)
	if err != nil {
		return SpreadPayout{}, nil, err
	}
	if total, err = addChecked(total, payout.FeeProtocol); err != nil {
		return SpreadPayout{}, nil, err
	}
	if total == 0 {
		return SpreadPayout{}, nil, nil
	}

	escrow := bet.EscrowAccount()
	var transfers []domain.Transfer
	if payout.FeeA > 0 {
		transfers = append(transfers, domain.Transfer{From: escrow, To: rcpt.UserA, Amount: payout.FeeA})
	}
	if payout.FeeB > 0 {
		transfers = append(transfers, domain.Transfer{From: escrow, To: rcpt.UserB, Amount: payout.FeeB})
	}
	if payout.FeeArbiter > 0 {
		transfers = append(transfers, domain.Transfer{From: escrow, To: rcpt.Arbiter, Amount: payout.FeeArbiter})
	}
	if payout.FeeProtocol > 0 {
		transfers = append(transfers, domain.Transfer{From: escrow, To: rcpt.ProtocolTreasury, Amount: payout.FeeProtocol})
	}

	bet.SpreadPoolCreators = 0
	bet.SpreadPoolArbiter = 0
	bet.SpreadPoolProtocol = 0

	return payout, transfers, nil
}
