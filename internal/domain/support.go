package domain

import "time"

// SupportPosition is one bettor's cumulative crowd position on one side of
// one bet. A bettor holding positions on both sides of the same bet has two
// independent records.
//
// Positions are created on the bettor's first contribution, accumulate on
// later contributions while the crowd window is open, are consumed exactly
// once by a post-resolution claim, and are never deleted.
type SupportPosition struct {
	BetID  string  `json:"bet_id"`
	Bettor Account `json:"bettor"`
	Side   Side    `json:"side"`

	// NetAmount is the post-fee sum of this bettor's contributions.
	NetAmount uint64 `json:"net_amount"`

	// Claimed flips to true when the post-resolution claim is processed,
	// regardless of payout size. It never flips back.
	Claimed bool `json:"claimed"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}
