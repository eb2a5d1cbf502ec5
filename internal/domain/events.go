package domain

// Event types emitted on the signal bus and audit log after each successful
// operation.
const (
	EventBetCreated           = "bet_created"
	EventParticipantDeposited = "participant_deposited"
	EventSideSupported        = "side_supported"
	EventWinnerDeclared       = "winner_declared"
	EventPrincipalWithdrawn   = "principal_withdrawn"
	EventSupportClaimed       = "support_claimed"
	EventSpreadWithdrawn      = "spread_withdrawn"
)

// Signal bus channels, grouped by operation family. The WebSocket hub fans
// these out to subscribed clients.
const (
	ChannelBets     = "bets"
	ChannelSupports = "supports"
	ChannelPayouts  = "payouts"
)

// StreamEvents is the durable stream keeping an ordered history of all seven
// event types.
const StreamEvents = "stream:events"
