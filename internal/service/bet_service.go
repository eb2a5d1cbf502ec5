package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/crowdduel/duelbet/internal/domain"
	"github.com/crowdduel/duelbet/internal/engine"
)

// BetService handles the duel lifecycle: creation, principal deposits, and
// winner declaration.
type BetService struct {
	emitter
	bets   domain.BetStore
	ledger domain.Ledger
	locks  domain.LockManager
	clock  domain.Clock
}

// NewBetService creates a BetService with all required dependencies.
func NewBetService(
	bets domain.BetStore,
	ledger domain.Ledger,
	locks domain.LockManager,
	audit domain.AuditStore,
	bus domain.SignalBus,
	notifier Notifier,
	clock domain.Clock,
	logger *slog.Logger,
) *BetService {
	return &BetService{
		emitter: emitter{
			audit:    audit,
			bus:      bus,
			notifier: notifier,
			logger:   logger.With(slog.String("component", "bet_service")),
		},
		bets:   bets,
		ledger: ledger,
		locks:  locks,
		clock:  clock,
	}
}

// Create validates the duel terms and persists a new Open bet. No funds move.
func (s *BetService) Create(ctx context.Context, p engine.CreateParams) (domain.Bet, error) {
	bet, err := engine.NewBet(p, s.clock.Now())
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bet_service: create: %w", err)
	}
	bet.ID = uuid.NewString()

	if err := s.bets.Create(ctx, bet); err != nil {
		return domain.Bet{}, fmt.Errorf("bet_service: create bet %s: %w", bet.ID, err)
	}

	s.emit(ctx, domain.ChannelBets, domain.EventBetCreated, map[string]any{
		"bet_id":         bet.ID,
		"user_a":         string(bet.UserA),
		"user_b":         string(bet.UserB),
		"arbiter":        string(bet.Arbiter),
		"stake_lamports": bet.StakeLamports,
	})

	s.logger.InfoContext(ctx, "bet created",
		slog.String("bet_id", bet.ID),
		slog.Uint64("stake_lamports", bet.StakeLamports),
	)
	return bet, nil
}

// DepositPrincipal locks the caller's stake in escrow. The deposited flag is
// persisted only after the ledger transfer clears, so a failed transfer
// leaves the bet unchanged.
func (s *BetService) DepositPrincipal(ctx context.Context, betID string, caller domain.Account) (domain.Bet, error) {
	var bet domain.Bet
	err := withBetLock(ctx, s.locks, betID, func() error {
		var err error
		if bet, err = s.bets.GetByID(ctx, betID); err != nil {
			return fmt.Errorf("load bet: %w", err)
		}

		transfer, err := engine.DepositPrincipal(&bet, caller, s.clock.Now())
		if err != nil {
			return err
		}

		if err := s.ledger.Apply(ctx, []domain.Transfer{transfer}); err != nil {
			return fmt.Errorf("lock stake: %w", err)
		}
		if err := s.bets.Update(ctx, bet); err != nil {
			return fmt.Errorf("persist bet: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bet_service: deposit %s: %w", betID, err)
	}

	s.emit(ctx, domain.ChannelBets, domain.EventParticipantDeposited, map[string]any{
		"bet_id":      bet.ID,
		"participant": string(caller),
		"amount":      bet.StakeLamports,
	})

	s.logger.InfoContext(ctx, "principal deposited",
		slog.String("bet_id", bet.ID),
		slog.String("participant", string(caller)),
	)
	return bet, nil
}

// DeclareWinner resolves the duel on the arbiter's signal. Irreversible.
func (s *BetService) DeclareWinner(ctx context.Context, betID string, caller domain.Account, side domain.Side) (domain.Bet, error) {
	var bet domain.Bet
	err := withBetLock(ctx, s.locks, betID, func() error {
		var err error
		if bet, err = s.bets.GetByID(ctx, betID); err != nil {
			return fmt.Errorf("load bet: %w", err)
		}

		if err := engine.DeclareWinner(&bet, caller, side, s.clock.Now()); err != nil {
			return err
		}
		if err := s.bets.Update(ctx, bet); err != nil {
			return fmt.Errorf("persist bet: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bet_service: declare winner %s: %w", betID, err)
	}

	s.emit(ctx, domain.ChannelBets, domain.EventWinnerDeclared, map[string]any{
		"bet_id":      bet.ID,
		"winner_side": string(side),
	})

	s.logger.InfoContext(ctx, "winner declared",
		slog.String("bet_id", bet.ID),
		slog.String("winner_side", string(side)),
	)
	return bet, nil
}

// Get retrieves a bet by ID.
func (s *BetService) Get(ctx context.Context, betID string) (domain.Bet, error) {
	bet, err := s.bets.GetByID(ctx, betID)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bet_service: get %s: %w", betID, err)
	}
	return bet, nil
}

// GetByParties retrieves a bet by its (arbiter, user_a, user_b) key.
func (s *BetService) GetByParties(ctx context.Context, arbiter, userA, userB domain.Account) (domain.Bet, error) {
	bet, err := s.bets.GetByParties(ctx, arbiter, userA, userB)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bet_service: get by parties: %w", err)
	}
	return bet, nil
}

// ListByStatus returns bets in the given status with pagination.
func (s *BetService) ListByStatus(ctx context.Context, status domain.BetStatus, opts domain.ListOpts) ([]domain.Bet, error) {
	bets, err := s.bets.ListByStatus(ctx, status, opts)
	if err != nil {
		return nil, fmt.Errorf("bet_service: list by status %s: %w", status, err)
	}
	return bets, nil
}

// ListByAccount returns bets the account participates in.
func (s *BetService) ListByAccount(ctx context.Context, account domain.Account, opts domain.ListOpts) ([]domain.Bet, error) {
	bets, err := s.bets.ListByAccount(ctx, account, opts)
	if err != nil {
		return nil, fmt.Errorf("bet_service: list by account: %w", err)
	}
	return bets, nil
}
