// Package service orchestrates the escrow engine: each operation acquires the
// per-bet record lock, loads the records, reads the clock once, runs the pure
// engine step, applies the resulting transfers through the ledger, persists
// the new state, and emits the operation's event. Precondition failures abort
// before any transfer or mutation.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/crowdduel/duelbet/internal/domain"
)

// lockTTL bounds how long a crashed operation can hold a bet's record lock.
const lockTTL = 10 * time.Second

// Notifier is the operator-notification collaborator. A nil Notifier
// disables notifications.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// emitter fans a successful operation's event out to the audit log, the
// signal bus (pub/sub channel plus durable stream), and the notifier. Event
// delivery is best-effort: failures are logged, never surfaced, because the
// operation itself has already committed.
type emitter struct {
	audit    domain.AuditStore
	bus      domain.SignalBus
	notifier Notifier
	logger   *slog.Logger
}

func (e emitter) emit(ctx context.Context, channel, event string, detail map[string]any) {
	if e.audit != nil {
		if err := e.audit.Log(ctx, event, detail); err != nil {
			e.logger.WarnContext(ctx, "audit log failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}

	if e.bus != nil {
		body := make(map[string]any, len(detail)+1)
		for k, v := range detail {
			body[k] = v
		}
		body["event"] = event
		payload, err := json.Marshal(body)
		if err != nil {
			e.logger.WarnContext(ctx, "event marshal failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			return
		}
		if err := e.bus.Publish(ctx, channel, payload); err != nil {
			e.logger.WarnContext(ctx, "event publish failed",
				slog.String("event", event),
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
		}
		if err := e.bus.StreamAppend(ctx, domain.StreamEvents, payload); err != nil {
			e.logger.WarnContext(ctx, "event stream append failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}

	if e.notifier != nil {
		title := fmt.Sprintf("duelbet: %s", event)
		message := fmt.Sprintf("%v", detail["bet_id"])
		if err := e.notifier.Notify(ctx, event, title, message); err != nil {
			e.logger.WarnContext(ctx, "notify failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}

func betLockKey(betID string) string {
	return "bet:" + betID
}

// withBetLock runs fn while holding the record lock for the given bet.
func withBetLock(ctx context.Context, locks domain.LockManager, betID string, fn func() error) error {
	unlock, err := locks.Acquire(ctx, betLockKey(betID), lockTTL)
	if err != nil {
		return fmt.Errorf("acquire bet lock %s: %w", betID, err)
	}
	defer unlock()
	return fn()
}
