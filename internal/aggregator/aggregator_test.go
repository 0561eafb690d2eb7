package aggregator

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
	"github.com/agenthub/venuecore/internal/vault"
	"github.com/agenthub/venuecore/internal/venue"
)

type fakeAdapter struct {
	tag       string
	positions []domain.Position
	balances  []domain.Balance
	err       error
	calls     int
}

func (f *fakeAdapter) Tag() string { return f.tag }
func (f *fakeAdapter) Capabilities() venue.Capabilities {
	return venue.Capabilities{PriceUnit: "probability"}
}
func (f *fakeAdapter) FetchPositions(ctx context.Context, cred venue.Credential) ([]domain.Position, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.positions, nil
}
func (f *fakeAdapter) FetchBalances(ctx context.Context, cred venue.Credential) ([]domain.Balance, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.balances, nil
}
func (f *fakeAdapter) FetchTrades(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.Trade, error) {
	return nil, venue.NewNotSupported(f.tag, "FetchTrades")
}
func (f *fakeAdapter) FetchFunding(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.FundingPayment, error) {
	return nil, venue.NewNotSupported(f.tag, "FetchFunding")
}
func (f *fakeAdapter) Quote(ctx context.Context, marketID, side string, size float64) (venue.Quote, error) {
	return venue.Quote{}, venue.NewNotSupported(f.tag, "Quote")
}

func newTestAggregator(t *testing.T, adapters ...*fakeAdapter) (*Aggregator, domain.CredentialStore) {
	t.Helper()
	dir := t.TempDir()
	c, err := sqlite.Open(context.Background(), filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	credStore := sqlite.NewCredentialStore(c)
	v := vault.New(credStore, "test-passphrase")

	reg := venue.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
		require.NoError(t, v.Put(context.Background(), "u1", a.tag, domain.CredentialModeLive, vault.Blob{APIKey: "k", APISecret: "s"}))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	agg := New(reg, credStore, v, config.AggregatorConfig{FetchTimeoutSeconds: 2, CacheTTLSeconds: 30}, logger)
	return agg, credStore
}

func TestGetSummaryMergesAcrossVenues(t *testing.T) {
	now := time.Now()
	a1 := &fakeAdapter{tag: "polymarket", positions: []domain.Position{
		{Venue: "polymarket", MarketID: "m1", OutcomeID: "yes", Size: 10, AvgEntryPrice: 0.4, CurrentPrice: 0.6, OpenedAt: now, UpdatedAt: now},
	}}
	a2 := &fakeAdapter{tag: "kalshi", positions: []domain.Position{
		{Venue: "kalshi", MarketID: "m2", OutcomeID: "no", Size: 5, AvgEntryPrice: 0.3, CurrentPrice: 0.3, OpenedAt: now, UpdatedAt: now},
	}}
	agg, _ := newTestAggregator(t, a1, a2)

	summary, err := agg.GetSummary(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, summary.Positions, 2)
	require.Empty(t, summary.Failures)
	require.InDelta(t, 10*0.6+5*0.3, summary.TotalValue, 1e-9)
	require.InDelta(t, 10*0.4+5*0.3, summary.TotalCostBasis, 1e-9)
	require.InDelta(t, 10*(0.6-0.4), summary.TotalPnl, 1e-9)
}

func TestGetSummaryExcludesFailingVenue(t *testing.T) {
	now := time.Now()
	good := &fakeAdapter{tag: "polymarket", positions: []domain.Position{
		{Venue: "polymarket", MarketID: "m1", OutcomeID: "yes", Size: 1, AvgEntryPrice: 0.5, CurrentPrice: 0.5, OpenedAt: now, UpdatedAt: now},
	}}
	bad := &fakeAdapter{tag: "kalshi", err: venue.NewNetworkError("kalshi", context.DeadlineExceeded)}
	agg, _ := newTestAggregator(t, good, bad)

	summary, err := agg.GetSummary(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, summary.Positions, 1)
	require.Len(t, summary.Failures, 1)
	require.Equal(t, "kalshi", summary.Failures[0].Venue)
}

func TestGetSummaryZeroCostBasisYieldsZeroPnlPct(t *testing.T) {
	agg, _ := newTestAggregator(t)
	summary, err := agg.GetSummary(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 0.0, summary.TotalPnlPct)
	require.Empty(t, summary.Positions)
}

func TestGetSummaryRateLimitedVenueIsSkippedUntilRetryAfter(t *testing.T) {
	rateLimited := &fakeAdapter{tag: "bybit", err: venue.NewRateLimited("bybit", time.Hour)}
	agg, _ := newTestAggregator(t, rateLimited)

	summary, err := agg.GetSummary(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	require.Equal(t, 1, rateLimited.calls)

	agg.Invalidate("u1")
	summary, err = agg.GetSummary(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	require.Equal(t, 1, rateLimited.calls, "adapter must not be re-invoked before retryAfter elapses")
}

func TestGetSummaryIsCached(t *testing.T) {
	now := time.Now()
	a1 := &fakeAdapter{tag: "polymarket", positions: []domain.Position{
		{Venue: "polymarket", MarketID: "m1", Size: 1, AvgEntryPrice: 1, CurrentPrice: 1, OpenedAt: now, UpdatedAt: now},
	}}
	agg, _ := newTestAggregator(t, a1)

	first, err := agg.GetSummary(context.Background(), "u1")
	require.NoError(t, err)

	a1.positions = nil // mutate the backing fetch; cached summary should not change
	second, err := agg.GetSummary(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, first, second)

	agg.Invalidate("u1")
	third, err := agg.GetSummary(context.Background(), "u1")
	require.NoError(t, err)
	require.Empty(t, third.Positions)
}
