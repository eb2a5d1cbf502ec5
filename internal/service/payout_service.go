package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crowdduel/duelbet/internal/domain"
	"github.com/crowdduel/duelbet/internal/engine"
)

// PayoutService handles the post-resolution principal payout and spread
// distribution.
type PayoutService struct {
	emitter
	bets   domain.BetStore
	ledger domain.Ledger
	locks  domain.LockManager
}

// NewPayoutService creates a PayoutService with all required dependencies.
func NewPayoutService(
	bets domain.BetStore,
	ledger domain.Ledger,
	locks domain.LockManager,
	audit domain.AuditStore,
	bus domain.SignalBus,
	notifier Notifier,
	logger *slog.Logger,
) *PayoutService {
	return &PayoutService{
		emitter: emitter{
			audit:    audit,
			bus:      bus,
			notifier: notifier,
			logger:   logger.With(slog.String("component", "payout_service")),
		},
		bets:   bets,
		ledger: ledger,
		locks:  locks,
	}
}

// WithdrawPrincipal pays the duel winner 2x the stake, once.
func (s *PayoutService) WithdrawPrincipal(ctx context.Context, betID string, caller domain.Account) (uint64, error) {
	var amount uint64
	err := withBetLock(ctx, s.locks, betID, func() error {
		bet, err := s.bets.GetByID(ctx, betID)
		if err != nil {
			return fmt.Errorf("load bet: %w", err)
		}

		transfer, err := engine.WithdrawPrincipal(&bet, caller)
		if err != nil {
			return err
		}
		amount = transfer.Amount

		if err := s.ledger.Apply(ctx, []domain.Transfer{transfer}); err != nil {
			return fmt.Errorf("pay principal: %w", err)
		}
		if err := s.bets.Update(ctx, bet); err != nil {
			return fmt.Errorf("persist bet: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("payout_service: withdraw principal %s: %w", betID, err)
	}

	s.emit(ctx, domain.ChannelPayouts, domain.EventPrincipalWithdrawn, map[string]any{
		"bet_id": betID,
		"winner": string(caller),
		"amount": amount,
	})

	s.logger.InfoContext(ctx, "principal withdrawn",
		slog.String("bet_id", betID),
		slog.String("winner", string(caller)),
		slog.Uint64("amount", amount),
	)
	return amount, nil
}

// WithdrawSpread drains the accumulated fee pools to the principals, the
// arbiter, and the protocol treasury. The recipient accounts are verified
// against the bet record; with all pools empty the call is a successful
// no-op.
func (s *PayoutService) WithdrawSpread(ctx context.Context, betID string, rcpt engine.SpreadRecipients) (engine.SpreadPayout, error) {
	var payout engine.SpreadPayout
	err := withBetLock(ctx, s.locks, betID, func() error {
		bet, err := s.bets.GetByID(ctx, betID)
		if err != nil {
			return fmt.Errorf("load bet: %w", err)
		}

		var transfers []domain.Transfer
		if payout, transfers, err = engine.WithdrawSpread(&bet, rcpt); err != nil {
			return err
		}
		if len(transfers) == 0 {
			return nil
		}

		if err := s.ledger.Apply(ctx, transfers); err != nil {
			return fmt.Errorf("pay spread: %w", err)
		}
		if err := s.bets.Update(ctx, bet); err != nil {
			return fmt.Errorf("persist bet: %w", err)
		}
		return nil
	})
	if err != nil {
		return engine.SpreadPayout{}, fmt.Errorf("payout_service: withdraw spread %s: %w", betID, err)
	}

	if payout.Total() > 0 {
		s.emit(ctx, domain.ChannelPayouts, domain.EventSpreadWithdrawn, map[string]any{
			"bet_id":       betID,
			"fee_a":        payout.FeeA,
			"fee_b":        payout.FeeB,
			"fee_arbiter":  payout.FeeArbiter,
			"fee_protocol": payout.FeeProtocol,
		})
		s.logger.InfoContext(ctx, "spread withdrawn",
			slog.String("bet_id", betID),
			slog.Uint64("total", payout.Total()),
		)
	}
	return payout, nil
}

// SpreadRecipientsFor returns the recipient set recorded on the bet, for
// callers that do not supply explicit recipients.
func (s *PayoutService) SpreadRecipientsFor(ctx context.Context, betID string) (engine.SpreadRecipients, error) {
	bet, err := s.bets.GetByID(ctx, betID)
	if err != nil {
		return engine.SpreadRecipients{}, fmt.Errorf("payout_service: recipients %s: %w", betID, err)
	}
	return engine.RecipientsOf(&bet), nil
}
