package alerts

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/notify"
	"github.com/agenthub/venuecore/internal/store/sqlite"
)

type recordingSender struct {
	sent []string
}

func (r *recordingSender) Send(_ context.Context, title, message string) error {
	r.sent = append(r.sent, title+": "+message)
	return nil
}
func (r *recordingSender) Name() string { return "recorder" }

func f64(v float64) *float64 { return &v }

func newTestEngine(t *testing.T) (*Engine, *sqlite.AlertStore, *recordingSender) {
	t.Helper()
	dir := t.TempDir()
	c, err := sqlite.Open(context.Background(), filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	store := sqlite.NewAlertStore(c)
	sender := &recordingSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := notify.NewNotifier([]notify.Sender{sender}, nil, logger)
	return New(store, n, logger), store, sender
}

func TestEvaluateFiresOnPriceAboveTransition(t *testing.T) {
	e, store, sender := newTestEngine(t)
	ctx := context.Background()

	a := domain.Alert{
		ID:      "a1",
		UserID:  "u1",
		Kind:    domain.AlertKindPrice,
		Enabled: true,
		Condition: domain.AlertCondition{
			Venue: "polymarket", MarketID: "trump-2024-yes", PriceAbove: f64(0.6),
		},
	}
	require.NoError(t, store.Upsert(ctx, a))

	require.NoError(t, e.Evaluate(ctx, PriceTick{Venue: "polymarket", MarketID: "trump-2024-yes", Price: 0.65}))
	require.Len(t, sender.sent, 1)

	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	require.True(t, got.Triggered)
	require.Equal(t, 1, got.TriggerCount)
	require.NotNil(t, got.LastTriggeredAt)

	// A second tick still above threshold must not re-fire (no transition).
	require.NoError(t, e.Evaluate(ctx, PriceTick{Venue: "polymarket", MarketID: "trump-2024-yes", Price: 0.66}))
	require.Len(t, sender.sent, 1)
}

func TestEvaluateResetsLatchAndRefires(t *testing.T) {
	e, store, sender := newTestEngine(t)
	ctx := context.Background()

	a := domain.Alert{
		ID:      "a2",
		UserID:  "u1",
		Kind:    domain.AlertKindPrice,
		Enabled: true,
		Condition: domain.AlertCondition{
			Venue: "kalshi", MarketID: "m1", PriceBelow: f64(0.4),
		},
	}
	require.NoError(t, store.Upsert(ctx, a))

	require.NoError(t, e.Evaluate(ctx, PriceTick{Venue: "kalshi", MarketID: "m1", Price: 0.3}))
	require.Len(t, sender.sent, 1)

	// Price moves back above threshold: latch resets, no notification.
	require.NoError(t, e.Evaluate(ctx, PriceTick{Venue: "kalshi", MarketID: "m1", Price: 0.5}))
	require.Len(t, sender.sent, 1)
	got, err := store.Get(ctx, "a2")
	require.NoError(t, err)
	require.False(t, got.Triggered)

	// Crossing below threshold again fires a second notification.
	require.NoError(t, e.Evaluate(ctx, PriceTick{Venue: "kalshi", MarketID: "m1", Price: 0.2}))
	require.Len(t, sender.sent, 2)
}

func TestEvaluateSkipsMissingPrice(t *testing.T) {
	e, store, sender := newTestEngine(t)
	ctx := context.Background()

	a := domain.Alert{
		ID: "a3", UserID: "u1", Kind: domain.AlertKindPrice, Enabled: true,
		Condition: domain.AlertCondition{Venue: "polymarket", MarketID: "m2", PriceAbove: f64(0.1)},
	}
	require.NoError(t, store.Upsert(ctx, a))

	require.NoError(t, e.Evaluate(ctx, PriceTick{Venue: "polymarket", MarketID: "m2", Price: 0}))
	require.Empty(t, sender.sent)
}

func TestEvaluateSpreadAboveIgnoresNilSpread(t *testing.T) {
	e, store, sender := newTestEngine(t)
	ctx := context.Background()

	a := domain.Alert{
		ID: "a4", UserID: "u1", Kind: domain.AlertKindSpread, Enabled: true,
		Condition: domain.AlertCondition{Venue: "polymarket", MarketID: "m3", SpreadAbove: f64(0.05)},
	}
	require.NoError(t, store.Upsert(ctx, a))

	require.NoError(t, e.Evaluate(ctx, PriceTick{Venue: "polymarket", MarketID: "m3", Price: 0.5}))
	require.Empty(t, sender.sent)

	require.NoError(t, e.Evaluate(ctx, PriceTick{Venue: "polymarket", MarketID: "m3", Price: 0.5, Spread: f64(0.08)}))
	require.Len(t, sender.sent, 1)
}
