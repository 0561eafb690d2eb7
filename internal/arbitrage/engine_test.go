package arbitrage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agenthub/venuecore/internal/config"
	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/store/sqlite"
	"github.com/agenthub/venuecore/internal/venue"
)

type quoteAdapter struct {
	tag    string
	prices map[string]float64 // outcome -> price
}

func (q *quoteAdapter) Tag() string { return q.tag }
func (q *quoteAdapter) Capabilities() venue.Capabilities {
	return venue.Capabilities{PriceUnit: "probability"}
}
func (q *quoteAdapter) FetchPositions(context.Context, venue.Credential) ([]domain.Position, error) {
	return nil, nil
}
func (q *quoteAdapter) FetchBalances(context.Context, venue.Credential) ([]domain.Balance, error) {
	return nil, nil
}
func (q *quoteAdapter) FetchTrades(context.Context, venue.Credential, venue.FetchOpts) ([]domain.Trade, error) {
	return nil, venue.NewNotSupported(q.tag, "FetchTrades")
}
func (q *quoteAdapter) FetchFunding(context.Context, venue.Credential, venue.FetchOpts) ([]domain.FundingPayment, error) {
	return nil, venue.NewNotSupported(q.tag, "FetchFunding")
}
func (q *quoteAdapter) Quote(_ context.Context, _ string, side string, _ float64) (venue.Quote, error) {
	p, ok := q.prices[side]
	if !ok {
		return venue.Quote{}, venue.NewVenueError(q.tag, "no_price", side)
	}
	return venue.Quote{Price: p}, nil
}

func newTestEngine(t *testing.T, cfg config.ArbitrageConfig) (*Engine, *venue.Registry) {
	t.Helper()
	dir := t.TempDir()
	c, err := sqlite.Open(context.Background(), filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	reg := venue.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(reg, sqlite.NewArbMatchStore(c), sqlite.NewArbOpportunityStore(c), cfg, logger)
	return e, reg
}

func TestTickDetectsCrossVenueArbitrageScenario(t *testing.T) {
	e, reg := newTestEngine(t, config.ArbitrageConfig{MinSpread: 0.02})
	reg.Register(&quoteAdapter{tag: "polymarket", prices: map[string]float64{"yes": 0.62}})
	reg.Register(&quoteAdapter{tag: "kalshi", prices: map[string]float64{"yes": 0.70}})

	ctx := context.Background()
	require.NoError(t, e.AddMatch(ctx, domain.ArbMatch{
		Markets: []domain.MarketRef{
			{Venue: "polymarket", MarketID: "trump-2024-yes", Outcome: "yes"},
			{Venue: "kalshi", MarketID: "PRES-2024-DJT-YES", Outcome: "yes"},
		},
		Similarity: 0.92,
	}))

	var emitted []domain.ArbOpportunity
	e.Subscribe(func(o domain.ArbOpportunity) { emitted = append(emitted, o) })

	require.NoError(t, e.Tick(ctx, time.Hour))

	opps, err := e.ListActiveOpportunities(ctx)
	require.NoError(t, err)
	require.Len(t, opps, 1)

	o := opps[0]
	require.Equal(t, "polymarket", o.Buy.Venue)
	require.InDelta(t, 0.62, o.Buy.Price, 1e-9)
	require.Equal(t, "kalshi", o.Sell.Venue)
	require.InDelta(t, 0.70, o.Sell.Price, 1e-9)
	require.InDelta(t, 0.08, o.Spread, 1e-9)
	require.InDelta(t, 12.903, o.SpreadPct, 1e-3)
	require.InDelta(t, 12.903, o.ProfitPer100, 1e-3)
	require.InDelta(t, 0.92, o.Confidence, 1e-9)
	require.True(t, o.IsActive)
	require.True(t, o.ExpiresAt.After(o.DetectedAt))

	require.Len(t, emitted, 1)
}

func TestTickSkipsBelowMinSpread(t *testing.T) {
	e, reg := newTestEngine(t, config.ArbitrageConfig{MinSpread: 0.5})
	reg.Register(&quoteAdapter{tag: "polymarket", prices: map[string]float64{"yes": 0.62}})
	reg.Register(&quoteAdapter{tag: "kalshi", prices: map[string]float64{"yes": 0.70}})

	ctx := context.Background()
	require.NoError(t, e.AddMatch(ctx, domain.ArbMatch{
		Markets: []domain.MarketRef{
			{Venue: "polymarket", MarketID: "m1", Outcome: "yes"},
			{Venue: "kalshi", MarketID: "m2", Outcome: "yes"},
		},
		Similarity: 0.9,
	}))
	require.NoError(t, e.Tick(ctx, time.Hour))

	opps, err := e.ListActiveOpportunities(ctx)
	require.NoError(t, err)
	require.Empty(t, opps)
}

func TestTickSkipsMarketWithNoPrice(t *testing.T) {
	e, reg := newTestEngine(t, config.ArbitrageConfig{MinSpread: 0.01})
	reg.Register(&quoteAdapter{tag: "polymarket", prices: map[string]float64{}})
	reg.Register(&quoteAdapter{tag: "kalshi", prices: map[string]float64{"yes": 0.70}})

	ctx := context.Background()
	require.NoError(t, e.AddMatch(ctx, domain.ArbMatch{
		Markets: []domain.MarketRef{
			{Venue: "polymarket", MarketID: "m1", Outcome: "yes"},
			{Venue: "kalshi", MarketID: "m2", Outcome: "yes"},
		},
		Similarity: 0.9,
	}))
	require.NoError(t, e.Tick(ctx, time.Hour))

	opps, err := e.ListActiveOpportunities(ctx)
	require.NoError(t, err)
	require.Empty(t, opps)
}

func TestTickExpiresStaleOpportunities(t *testing.T) {
	e, reg := newTestEngine(t, config.ArbitrageConfig{MinSpread: 0.01})
	reg.Register(&quoteAdapter{tag: "polymarket", prices: map[string]float64{"yes": 0.60}})
	reg.Register(&quoteAdapter{tag: "kalshi", prices: map[string]float64{"yes": 0.70}})

	ctx := context.Background()
	require.NoError(t, e.AddMatch(ctx, domain.ArbMatch{
		Markets: []domain.MarketRef{
			{Venue: "polymarket", MarketID: "m1", Outcome: "yes"},
			{Venue: "kalshi", MarketID: "m2", Outcome: "yes"},
		},
		Similarity: 0.9,
	}))
	// A negative TTL immediately places the created opportunity in the past.
	require.NoError(t, e.Tick(ctx, -time.Second))
	require.NoError(t, e.Tick(ctx, -time.Second))

	opps, err := e.ListActiveOpportunities(ctx)
	require.NoError(t, err)
	require.Empty(t, opps)
}

func TestAddMatchThenRemoveMatchLeavesListUnchanged(t *testing.T) {
	e, _ := newTestEngine(t, config.ArbitrageConfig{})
	ctx := context.Background()

	before, err := e.matches.List(ctx)
	require.NoError(t, err)

	m := domain.ArbMatch{
		Markets:    []domain.MarketRef{{Venue: "a", MarketID: "1"}, {Venue: "b", MarketID: "2"}},
		Similarity: 0.5,
	}
	require.NoError(t, e.AddMatch(ctx, m))

	added, err := e.matches.List(ctx)
	require.NoError(t, err)
	require.Len(t, added, len(before)+1)

	require.NoError(t, e.RemoveMatch(ctx, added[len(added)-1].ID))

	after, err := e.matches.List(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)
}
