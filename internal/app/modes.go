package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crowdduel/duelbet/internal/domain"
	"github.com/crowdduel/duelbet/internal/engine"
	"github.com/crowdduel/duelbet/internal/server"
	"github.com/crowdduel/duelbet/internal/server/handler"
	"github.com/crowdduel/duelbet/internal/server/ws"
	"github.com/crowdduel/duelbet/internal/service"
)

// escrowServices bundles the three domain services every mode builds the same
// way from the wired dependencies.
type escrowServices struct {
	bets     *service.BetService
	supports *service.SupportService
	payouts  *service.PayoutService
}

func (a *App) buildServices(deps *Dependencies, clock domain.Clock) escrowServices {
	return escrowServices{
		bets: service.NewBetService(
			deps.BetStore, deps.Ledger, deps.LockManager,
			deps.AuditStore, deps.SignalBus, deps.Notifier,
			clock, a.logger,
		),
		supports: service.NewSupportService(
			deps.BetStore, deps.SupportStore, deps.Ledger, deps.LockManager,
			deps.RateLimiter, deps.AuditStore, deps.SignalBus, deps.Notifier,
			clock, a.logger,
			a.cfg.Escrow.SupportRateLimit, a.cfg.Escrow.SupportRateWindow.Duration,
		),
		payouts: service.NewPayoutService(
			deps.BetStore, deps.Ledger, deps.LockManager,
			deps.AuditStore, deps.SignalBus, deps.Notifier,
			a.logger,
		),
	}
}

// ServerMode runs the HTTP + WebSocket API and, when enabled, the background
// archive loop. It blocks until the context is cancelled or a subsystem fails.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps, domain.SystemClock())

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			APIKey:          a.cfg.Server.APIKey,
			RateLimit:       a.cfg.Server.RateLimit,
			RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(a.logger),
			Bets:     handler.NewBetHandler(svcs.bets, a.logger),
			Supports: handler.NewSupportHandler(svcs.supports, a.logger),
			Payouts:  handler.NewPayoutHandler(svcs.payouts, a.logger),
			Audit:    handler.NewAuditHandler(deps.AuditStore, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "http server listening",
			slog.Int("port", a.cfg.Server.Port),
		)
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("http server shutdown", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps.Archiver)
		})
	}

	return g.Wait()
}

// runArchiveLoop periodically archives settled bets and old audit entries to
// blob storage. Failures are logged and retried on the next tick.
func (a *App) runArchiveLoop(ctx context.Context, archiver domain.Archiver) error {
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	a.logger.InfoContext(ctx, "archive loop started",
		slog.Duration("interval", interval),
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			before := time.Now().UTC().Add(-retention)

			n, err := archiver.ArchiveSettledBets(ctx, before)
			if err != nil {
				a.logger.WarnContext(ctx, "archive settled bets failed",
					slog.String("error", err.Error()),
				)
			} else if n > 0 {
				a.logger.InfoContext(ctx, "archived settled bets", slog.Int64("count", n))
			}

			n, err = archiver.ArchiveAuditLog(ctx, before)
			if err != nil {
				a.logger.WarnContext(ctx, "archive audit log failed",
					slog.String("error", err.Error()),
				)
			} else if n > 0 {
				a.logger.InfoContext(ctx, "archived audit entries", slog.Int64("count", n))
			}
		}
	}
}

// MigrateMode applies pending database migrations and exits. The migrations
// themselves run during wiring; this mode exists so deployments can run them
// as a one-shot step before starting the server.
func (a *App) MigrateMode(ctx context.Context, _ *Dependencies) error {
	a.logger.InfoContext(ctx, "migrations applied")
	return nil
}

// demoClock is a manually advanced clock so the demo can step past the
// deposit, crowd, and resolve deadlines without sleeping.
type demoClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *demoClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *demoClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// DemoMode runs a complete scripted bet lifecycle against in-memory
// implementations: create, both principal deposits, crowd support on both
// sides, winner declaration, principal withdrawal, winning-side claims, and
// the spread fee withdrawal. It needs no external backend.
func (a *App) DemoMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting demo mode")

	clock := &demoClock{now: time.Now().UTC()}
	svcs := a.buildServices(deps, clock)

	const (
		alice    = domain.Account("alice")
		bob      = domain.Account("bob")
		carol    = domain.Account("carol") // arbiter
		dave     = domain.Account("dave")  // crowd, side a
		erin     = domain.Account("erin")  // crowd, side b
		treasury = domain.Account("treasury")
	)

	for _, acct := range []domain.Account{alice, bob, dave, erin} {
		deps.MemoryLedger.Fund(acct, 2_000_000)
	}

	start := clock.Now()
	bet, err := svcs.bets.Create(ctx, engine.CreateParams{
		UserA:         alice,
		UserB:         bob,
		Arbiter:       carol,
		StakeLamports: 1_000_000,
		DeadlineDuel:  start.Add(1 * time.Hour),
		DeadlineCrowd: start.Add(2 * time.Hour),
		ResolveTS:     start.Add(3 * time.Hour),
		Fees: domain.FeeConfig{
			SpreadBps:        200,
			CreatorShareBps:  5000,
			ArbiterShareBps:  2000,
			ProtocolShareBps: 3000,
		},
		ProtocolTreasury: treasury,
	})
	if err != nil {
		return fmt.Errorf("demo: create bet: %w", err)
	}
	a.logger.InfoContext(ctx, "demo bet created", slog.String("bet_id", bet.ID))

	for _, caller := range []domain.Account{alice, bob} {
		if _, err := svcs.bets.DepositPrincipal(ctx, bet.ID, caller); err != nil {
			return fmt.Errorf("demo: deposit %s: %w", caller, err)
		}
	}

	if _, err := svcs.supports.Support(ctx, bet.ID, dave, domain.SideA, 100_000); err != nil {
		return fmt.Errorf("demo: support side a: %w", err)
	}
	if _, err := svcs.supports.Support(ctx, bet.ID, erin, domain.SideB, 50_000); err != nil {
		return fmt.Errorf("demo: support side b: %w", err)
	}

	clock.Advance(3 * time.Hour)

	if _, err := svcs.bets.DeclareWinner(ctx, bet.ID, carol, domain.SideA); err != nil {
		return fmt.Errorf("demo: declare winner: %w", err)
	}

	principal, err := svcs.payouts.WithdrawPrincipal(ctx, bet.ID, alice)
	if err != nil {
		return fmt.Errorf("demo: withdraw principal: %w", err)
	}
	a.logger.InfoContext(ctx, "demo principal withdrawn",
		slog.String("winner", string(alice)),
		slog.Uint64("amount", principal),
	)

	claim, err := svcs.supports.Claim(ctx, bet.ID, dave, domain.SideA)
	if err != nil {
		return fmt.Errorf("demo: claim: %w", err)
	}
	a.logger.InfoContext(ctx, "demo crowd claim paid",
		slog.String("bettor", string(dave)),
		slog.Uint64("payout", claim),
	)

	rcpt, err := svcs.payouts.SpreadRecipientsFor(ctx, bet.ID)
	if err != nil {
		return fmt.Errorf("demo: spread recipients: %w", err)
	}
	spread, err := svcs.payouts.WithdrawSpread(ctx, bet.ID, rcpt)
	if err != nil {
		return fmt.Errorf("demo: withdraw spread: %w", err)
	}
	a.logger.InfoContext(ctx, "demo spread withdrawn",
		slog.Uint64("total", spread.Total()),
	)

	for _, acct := range []domain.Account{alice, bob, carol, dave, erin, treasury} {
		bal, err := deps.Ledger.Balance(ctx, acct)
		if err != nil {
			return fmt.Errorf("demo: balance %s: %w", acct, err)
		}
		a.logger.InfoContext(ctx, "demo final balance",
			slog.String("account", string(acct)),
			slog.Uint64("balance", bal),
		)
	}

	a.logger.InfoContext(ctx, "demo complete")
	return nil
}
