package domain

import "errors"

// Input validation errors. These are permanent: resubmitting the same request
// will never succeed.
var (
	ErrInvalidStakeAmount = errors.New("invalid stake amount")
	ErrInvalidDeadlines   = errors.New("invalid deadlines")
	ErrInvalidFeeConfig   = errors.New("invalid fee configuration")
	ErrAmountTooSmall     = errors.New("amount too small")
)

// State and authorization errors.
var (
	ErrBetNotOpen               = errors.New("bet is not open")
	ErrBetNotResolved           = errors.New("bet is not resolved")
	ErrAlreadyDeposited         = errors.New("participant already deposited")
	ErrParticipantsNotDeposited = errors.New("participants must deposit first")
	ErrInvalidParticipant       = errors.New("invalid participant")
	ErrInvalidArbiter           = errors.New("invalid arbiter")
	ErrInvalidWinner            = errors.New("invalid winner")
	ErrWrongSide                = errors.New("wrong side")
	ErrInvalidSupportPosition   = errors.New("invalid support position")
	ErrAlreadyClaimed           = errors.New("support position already claimed")
	ErrPrincipalWithdrawn       = errors.New("principal already withdrawn")
	ErrInvalidRecipient         = errors.New("recipient does not match bet record")
)

// Timing errors. Resubmitting later may succeed (or a window closed for good).
var (
	ErrDeadlinePassed    = errors.New("deadline has passed")
	ErrTooEarlyToResolve = errors.New("too early to resolve")
)

// ErrArithmeticOverflow indicates a checked multiply/add/subtract overflowed.
// It is never silently wrapped or saturated; treat it as a configuration or
// precision bug, not a retryable condition.
var ErrArithmeticOverflow = errors.New("arithmetic overflow")

// Infrastructure errors shared by store, ledger, cache, and lock
// implementations.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInsufficientFunds = errors.New("insufficient escrow balance")
	ErrLockHeld          = errors.New("lock already held")
	ErrRateLimited       = errors.New("rate limited")
)

// IsValidationError reports whether err is a permanent input-validation
// rejection.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidStakeAmount) ||
		errors.Is(err, ErrInvalidDeadlines) ||
		errors.Is(err, ErrInvalidFeeConfig) ||
		errors.Is(err, ErrAmountTooSmall) ||
		errors.Is(err, ErrWrongSide)
}

// IsStateError reports whether err is a state-machine or authorization
// rejection for the current bet state.
func IsStateError(err error) bool {
	return errors.Is(err, ErrBetNotOpen) ||
		errors.Is(err, ErrBetNotResolved) ||
		errors.Is(err, ErrAlreadyDeposited) ||
		errors.Is(err, ErrParticipantsNotDeposited) ||
		errors.Is(err, ErrInvalidSupportPosition) ||
		errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrPrincipalWithdrawn) ||
		errors.Is(err, ErrInvalidRecipient)
}

// IsAuthError reports whether err is a caller-identity rejection.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidParticipant) ||
		errors.Is(err, ErrInvalidArbiter) ||
		errors.Is(err, ErrInvalidWinner)
}

// IsTimingError reports whether err is a deadline/window rejection.
func IsTimingError(err error) bool {
	return errors.Is(err, ErrDeadlinePassed) || errors.Is(err, ErrTooEarlyToResolve)
}
