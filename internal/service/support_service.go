package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crowdduel/duelbet/internal/domain"
	"github.com/crowdduel/duelbet/internal/engine"
)

// SupportService handles crowd contributions and post-resolution claims.
type SupportService struct {
	emitter
	bets      domain.BetStore
	positions domain.SupportPositionStore
	ledger    domain.Ledger
	locks     domain.LockManager
	limiter   domain.RateLimiter
	clock     domain.Clock

	rateLimit  int
	rateWindow time.Duration
}

// NewSupportService creates a SupportService. rateLimit/rateWindow throttle
// Support calls per bettor; a zero rateLimit disables throttling.
func NewSupportService(
	bets domain.BetStore,
	positions domain.SupportPositionStore,
	ledger domain.Ledger,
	locks domain.LockManager,
	limiter domain.RateLimiter,
	audit domain.AuditStore,
	bus domain.SignalBus,
	notifier Notifier,
	clock domain.Clock,
	logger *slog.Logger,
	rateLimit int,
	rateWindow time.Duration,
) *SupportService {
	return &SupportService{
		emitter: emitter{
			audit:    audit,
			bus:      bus,
			notifier: notifier,
			logger:   logger.With(slog.String("component", "support_service")),
		},
		bets:       bets,
		positions:  positions,
		ledger:     ledger,
		locks:      locks,
		limiter:    limiter,
		clock:      clock,
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
	}
}

// Support backs one side of an open bet with a gross amount. The spread fee
// is skimmed into the bet's fee pools, the net lands in the side's pool and
// the bettor's position, and the full gross amount moves into escrow.
func (s *SupportService) Support(ctx context.Context, betID string, bettor domain.Account, side domain.Side, amount uint64) (domain.SupportPosition, error) {
	if s.limiter != nil && s.rateLimit > 0 {
		allowed, err := s.limiter.Allow(ctx, "support:"+string(bettor), s.rateLimit, s.rateWindow)
		if err != nil {
			return domain.SupportPosition{}, fmt.Errorf("support_service: rate limiter: %w", err)
		}
		if !allowed {
			return domain.SupportPosition{}, fmt.Errorf("support_service: bettor %s: %w", bettor, domain.ErrRateLimited)
		}
	}

	var (
		pos   domain.SupportPosition
		split engine.FeeSplit
	)
	err := withBetLock(ctx, s.locks, betID, func() error {
		bet, err := s.bets.GetByID(ctx, betID)
		if err != nil {
			return fmt.Errorf("load bet: %w", err)
		}

		pos, err = s.positions.Get(ctx, betID, bettor, side)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("load position: %w", err)
			}
			pos = domain.SupportPosition{}
		}

		var transfer domain.Transfer
		if split, transfer, err = engine.Support(&bet, &pos, bettor, side, amount, s.clock.Now()); err != nil {
			return err
		}

		if err := s.ledger.Apply(ctx, []domain.Transfer{transfer}); err != nil {
			return fmt.Errorf("lock contribution: %w", err)
		}
		if err := s.bets.Update(ctx, bet); err != nil {
			return fmt.Errorf("persist bet: %w", err)
		}
		if err := s.positions.Upsert(ctx, pos); err != nil {
			return fmt.Errorf("persist position: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.SupportPosition{}, fmt.Errorf("support_service: support %s: %w", betID, err)
	}

	s.emit(ctx, domain.ChannelSupports, domain.EventSideSupported, map[string]any{
		"bet_id":     betID,
		"bettor":     string(bettor),
		"side":       string(side),
		"amount":     amount,
		"net_amount": split.Net,
		"fee_total":  split.FeeTotal,
	})

	s.logger.InfoContext(ctx, "side supported",
		slog.String("bet_id", betID),
		slog.String("bettor", string(bettor)),
		slog.String("side", string(side)),
		slog.Uint64("amount", amount),
		slog.Uint64("net_amount", split.Net),
	)
	return pos, nil
}

// Claim settles the bettor's position on the given side after resolution.
// Losing-side claims pay zero but are consumed all the same; a second claim
// fails with ErrAlreadyClaimed.
func (s *SupportService) Claim(ctx context.Context, betID string, bettor domain.Account, side domain.Side) (uint64, error) {
	var payout uint64
	err := withBetLock(ctx, s.locks, betID, func() error {
		bet, err := s.bets.GetByID(ctx, betID)
		if err != nil {
			return fmt.Errorf("load bet: %w", err)
		}

		pos, err := s.positions.Get(ctx, betID, bettor, side)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrInvalidSupportPosition
			}
			return fmt.Errorf("load position: %w", err)
		}

		var transfer *domain.Transfer
		if payout, transfer, err = engine.ClaimSupport(&bet, &pos, bettor, s.clock.Now()); err != nil {
			return err
		}

		if transfer != nil {
			if err := s.ledger.Apply(ctx, []domain.Transfer{*transfer}); err != nil {
				return fmt.Errorf("pay claim: %w", err)
			}
		}
		if err := s.positions.Upsert(ctx, pos); err != nil {
			return fmt.Errorf("persist position: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("support_service: claim %s: %w", betID, err)
	}

	s.emit(ctx, domain.ChannelPayouts, domain.EventSupportClaimed, map[string]any{
		"bet_id": betID,
		"bettor": string(bettor),
		"side":   string(side),
		"payout": payout,
	})

	s.logger.InfoContext(ctx, "support claimed",
		slog.String("bet_id", betID),
		slog.String("bettor", string(bettor)),
		slog.Uint64("payout", payout),
	)
	return payout, nil
}

// GetPosition retrieves one position by its (bet, bettor, side) key.
func (s *SupportService) GetPosition(ctx context.Context, betID string, bettor domain.Account, side domain.Side) (domain.SupportPosition, error) {
	pos, err := s.positions.Get(ctx, betID, bettor, side)
	if err != nil {
		return domain.SupportPosition{}, fmt.Errorf("support_service: get position: %w", err)
	}
	return pos, nil
}

// ListByBet returns all positions on a bet.
func (s *SupportService) ListByBet(ctx context.Context, betID string) ([]domain.SupportPosition, error) {
	positions, err := s.positions.ListByBet(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("support_service: list by bet %s: %w", betID, err)
	}
	return positions, nil
}

// ListByBettor returns all positions held by a bettor.
func (s *SupportService) ListByBettor(ctx context.Context, bettor domain.Account, opts domain.ListOpts) ([]domain.SupportPosition, error) {
	positions, err := s.positions.ListByBettor(ctx, bettor, opts)
	if err != nil {
		return nil, fmt.Errorf("support_service: list by bettor: %w", err)
	}
	return positions, nil
}
