package engine

import (
	"time"

	"github.com/crowdduel/duelbet/internal/domain"
)

// Support applies one crowd contribution: it runs the fee split, accumulates
// the net amount into the side's pool and the fee shares into the bet's fee
// pools, and creates or accumulates the bettor's position. The returned
// transfer moves the full gross amount from the bettor into escrow.
//
// pos must be the bettor's existing position for (bet, side), or a zero-value
// record if none exists yet; the distinction is the position's NetAmount.
func Support(
	bet *domain.Bet,
	pos *domain.SupportPosition,
	bettor domain.Account,
	side domain.Side,
	amount uint64,
	now time.Time,
) (FeeSplit, domain.Transfer, error) {
	if bet.Status != domain.BetOpen {
		return FeeSplit{}, domain.Transfer{}, domain.ErrBetNotOpen
	}
	if !bet.BothDeposited() {
		return FeeSplit{}, domain.Transfer{}, domain.ErrParticipantsNotDeposited
	}
	if !now.Before(bet.DeadlineCrowd) {
		return FeeSplit{}, domain.Transfer{}, domain.ErrDeadlinePassed
	}
	if !side.Valid() {
		return FeeSplit{}, domain.Transfer{}, domain.ErrWrongSide
	}
	if pos.NetAmount > 0 && (pos.BetID != bet.ID || pos.Bettor != bettor || pos.Side != side) {
		return FeeSplit{}, domain.Transfer{}, domain.ErrInvalidSupportPosition
	}

	split, err := SplitFee(amount, bet.Fees)
	if err != nil {
		return FeeSplit{}, domain.Transfer{}, err
	}

	// Stage the pool updates so a late overflow leaves the bet untouched.
	netA, netB := bet.NetSupportA, bet.NetSupportB
	switch side {
	case domain.SideA:
		if netA, err = addChecked(netA, split.Net); err != nil {
			return FeeSplit{}, domain.Transfer{}, err
		}
	case domain.SideB:
		if netB, err = addChecked(netB, split.Net); err != nil {
			return FeeSplit{}, domain.Transfer{}, err
		}
	}
	poolCreators, err := addChecked(bet.SpreadPoolCreators, split.FeeCreators)
	if err != nil {
		return FeeSplit{}, domain.Transfer{}, err
	}
	poolArbiter, err := addChecked(bet.SpreadPoolArbiter, split.FeeArbiter)
	if err != nil {
		return FeeSplit{}, domain.Transfer{}, err
	}
	poolProtocol, err := addChecked(bet.SpreadPoolProtocol, split.FeeProtocol)
	if err != nil {
		return FeeSplit{}, domain.Transfer{}, err
	}

	posNet := pos.NetAmount
	if posNet, err = addChecked(posNet, split.Net); err != nil {
		return FeeSplit{}, domain.Transfer{}, err
	}

	bet.NetSupportA, bet.NetSupportB = netA, netB
	bet.SpreadPoolCreators = poolCreators
	bet.SpreadPoolArbiter = poolArbiter
	bet.SpreadPoolProtocol = poolProtocol

	if pos.NetAmount == 0 {
		pos.BetID = bet.ID
		pos.Bettor = bettor
		pos.Side = side
		pos.Claimed = false
		pos.CreatedAt = now.UTC()
	}
	pos.NetAmount = posNet
	pos.UpdatedAt = now.UTC()

	return split, domain.Transfer{
		From:   bettor,
		To:     bet.EscrowAccount(),
		Amount: amount,
	}, nil
}

// ClaimSupport settles one crowd position after resolution. Losing-side
// positions are marked claimed with a zero payout and no transfer.
// Winning-side positions receive a share of the combined net pool
// proportional to their net contribution:
//
//	payout = floor(net_amount * (s_win + s_lose) / s_win)
//
// computed with a 128-bit intermediate product. The sum of all winning-side
// payouts never exceeds the combined pool; flooring loses at most one unit
// per winning position. The claim is consumed exactly once whatever the
// payout.
func ClaimSupport(bet *domain.Bet, pos *domain.SupportPosition, bettor domain.Account, now time.Time) (uint64, *domain.Transfer, error) {
	if bet.Status != domain.BetResolved || bet.WinnerSide == nil {
		return 0, nil, domain.ErrBetNotResolved
	}
	if pos.BetID != bet.ID || pos.Bettor != bettor {
		return 0, nil, domain.ErrInvalidSupportPosition
	}
	if pos.Claimed {
		return 0, nil, domain.ErrAlreadyClaimed
	}

	claimedAt := now.UTC()
	winner := *bet.WinnerSide

	if pos.Side != winner {
		pos.Claimed = true
		pos.ClaimedAt = &claimedAt
		return 0, nil, nil
	}

	sWin := bet.NetSupport(winner)
	sLose := bet.NetSupport(winner.Opposite())
	pool, err := addChecked(sWin, sLose)
	if err != nil {
		return 0, nil, err
	}

	var payout uint64
	if sWin > 0 {
		if payout, err = mulDiv(pos.NetAmount, pool, sWin); err != nil {
			return 0, nil, err
		}
	}

	pos.Claimed = true
	pos.ClaimedAt = &claimedAt

	if payout == 0 {
		return 0, nil, nil
	}
	return payout, &domain.Transfer{
		From:   bet.EscrowAccount(),
		To:     bettor,
		Amount: payout,
	}, nil
}
