// Package engine implements the deterministic accounting core for
// crowd-backed duels: fee splitting, the bet state machine, crowd support
// accounting, and payout computation.
//
// Every function here is a total function of (current state, inputs, now). No
// I/O happens in this package; state mutations are applied to the records the
// caller passes in, and fund movement is expressed as transfer instructions
// for the caller to execute. A function that returns an error has made no
// mutation.
package engine

import (
	"math/bits"

	"github.com/crowdduel/duelbet/internal/domain"
)

// FeeSplit is the outcome of applying the spread fee to one gross crowd
// contribution. Net + FeeTotal == the gross amount exactly. Because each
// recipient share is floored independently, FeeCreators + FeeArbiter +
// FeeProtocol may undershoot FeeTotal; the difference is dust that stays in
// escrow and is never credited anywhere.
type FeeSplit struct {
	Net         uint64
	FeeTotal    uint64
	FeeCreators uint64
	FeeArbiter  uint64
	FeeProtocol uint64
}

// Dust returns the portion of FeeTotal lost to independent flooring.
func (s FeeSplit) Dust() uint64 {
	return s.FeeTotal - s.FeeCreators - s.FeeArbiter - s.FeeProtocol
}

// SplitFee computes the fee split for a gross contribution under the given
// fee configuration. All divisions floor; all multiplications are checked.
func SplitFee(amount uint64, cfg domain.FeeConfig) (FeeSplit, error) {
	if amount == 0 {
		return FeeSplit{}, domain.ErrAmountTooSmall
	}

	feeTotal, err := mulBps(amount, cfg.SpreadBps)
	if err != nil {
		return FeeSplit{}, err
	}
	if feeTotal > amount {
		// Only reachable with spread_bps > 10,000.
		return FeeSplit{}, domain.ErrArithmeticOverflow
	}

	feeCreators, err := mulBps(feeTotal, cfg.CreatorShareBps)
	if err != nil {
		return FeeSplit{}, err
	}
	feeArbiter, err := mulBps(feeTotal, cfg.ArbiterShareBps)
	if err != nil {
		return FeeSplit{}, err
	}
	feeProtocol, err := mulBps(feeTotal, cfg.ProtocolShareBps)
	if err != nil {
		return FeeSplit{}, err
	}

	return FeeSplit{
		Net:         amount - feeTotal,
		FeeTotal:    feeTotal,
		FeeCreators: feeCreators,
		FeeArbiter:  feeArbiter,
		FeeProtocol: feeProtocol,
	}, nil
}

// mulBps computes floor(amount * bps / 10000) with a checked multiply.
func mulBps(amount uint64, bps uint16) (uint64, error) {
	hi, lo := bits.Mul64(amount, uint64(bps))
	if hi != 0 {
		return 0, domain.ErrArithmeticOverflow
	}
	return lo / domain.BpsDenominator, nil
}

// addChecked returns a+b, failing on uint64 wraparound.
func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, domain.ErrArithmeticOverflow
	}
	return sum, nil
}

// mulDiv computes floor(a * b / div) with a 128-bit intermediate product. It
// fails when div is zero or the quotient does not fit in 64 bits.
func mulDiv(a, b, div uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if div == 0 || hi >= div {
		return 0, domain.ErrArithmeticOverflow
	}
	q, _ := bits.Div64(hi, lo, div)
	return q, nil
}
