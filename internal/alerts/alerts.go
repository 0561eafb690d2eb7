// Package alerts evaluates user-defined price and spread conditions against
// live venue quotes and arbitrage opportunities, notifying operators the
// moment a condition transitions from not-triggered to triggered.
package alerts

import (
	"context"
	"log/slog"
	"time"

	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/notify"
)

// PriceTick is one live observation fed into Evaluate: a venue/market price,
// and optionally the spread of the arbitrage opportunity currently active on
// that market (for SpreadAbove conditions). Spread is nil when no
// opportunity is active.
type PriceTick struct {
	Venue    string
	MarketID string
	Price    float64
	Spread   *float64
}

// Engine evaluates Alert conditions against PriceTicks and dispatches
// notifications through notify.Notifier on trigger transitions, the same
// dispatch-to-all-senders shape as the teacher's internal/notify, gated by
// the threshold-crossing detection internal/arbitrage/spread.go uses.
type Engine struct {
	alerts   domain.AlertStore
	notifier *notify.Notifier
	logger   *slog.Logger
}

// New creates an Engine.
func New(alerts domain.AlertStore, notifier *notify.Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		alerts:   alerts,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "alerts")),
	}
}

// Evaluate checks every enabled Alert bound to tick's market and, for any
// condition that is met, fires a notification if this is a fresh transition
// into the triggered state. A tick carrying a zero Price is treated as a
// missing price and the alert is skipped, not errored, per spec.md §7.
func (e *Engine) Evaluate(ctx context.Context, tick PriceTick) error {
	if tick.Price <= 0 {
		return nil
	}

	candidates, err := e.alerts.ListEnabledForMarket(ctx, tick.Venue, tick.MarketID)
	if err != nil {
		return err
	}

	for _, a := range candidates {
		met := conditionMet(a.Condition, tick)
		switch {
		case met && !a.Triggered:
			if err := e.fire(ctx, a); err != nil {
				e.logger.Error("alert fire failed", slog.String("alert", a.ID), slog.String("error", err.Error()))
			}
		case !met && a.Triggered:
			// Reset the latch so the next crossing fires again.
			a.Triggered = false
			if err := e.alerts.Upsert(ctx, a); err != nil {
				e.logger.Error("alert reset failed", slog.String("alert", a.ID), slog.String("error", err.Error()))
			}
		}
	}
	return nil
}

// conditionMet reports whether tick satisfies a's structured predicate.
// Exactly one of PriceAbove/PriceBelow/SpreadAbove is expected to be set;
// an alert with none set never fires.
func conditionMet(c domain.AlertCondition, tick PriceTick) bool {
	if c.PriceAbove != nil && tick.Price > *c.PriceAbove {
		return true
	}
	if c.PriceBelow != nil && tick.Price < *c.PriceBelow {
		return true
	}
	if c.SpreadAbove != nil && tick.Spread != nil && *tick.Spread > *c.SpreadAbove {
		return true
	}
	return false
}

// fire records the trigger transition and sends an "alert_triggered"
// notification to every configured operator sender. The alert's Channel and
// ChatID are not used for delivery.
func (e *Engine) fire(ctx context.Context, a domain.Alert) error {
	now := time.Now().UTC()
	if err := e.alerts.RecordTrigger(ctx, a.ID, now); err != nil {
		return err
	}

	title := "Alert triggered"
	message := alertMessage(a)
	if e.notifier == nil {
		return nil
	}
	return e.notifier.Notify(ctx, "alert_triggered", title, message)
}

func alertMessage(a domain.Alert) string {
	switch a.Kind {
	case domain.AlertKindSpread:
		return "Spread alert triggered for " + a.Condition.Venue + "/" + a.Condition.MarketID
	case domain.AlertKindPortfolio:
		return "Portfolio alert triggered for user " + a.UserID
	default:
		return "Price alert triggered for " + a.Condition.Venue + "/" + a.Condition.MarketID
	}
}
