package history

import (
	"context"
	"io"
	"log/slog"
	"math"
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

func newTestService(t *testing.T) (*Service, domain.TradeStore, domain.CredentialStore, *vault.Vault) {
	t.Helper()
	dir := t.TempDir()
	c, err := sqlite.Open(context.Background(), filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	trades := sqlite.NewTradeStore(c)
	creds := sqlite.NewCredentialStore(c)
	v := vault.New(creds, "test-passphrase")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := New(venue.NewRegistry(), trades, creds, v, config.HistoryConfig{PullLimit: 100}, logger)
	return svc, trades, creds, v
}

func insertTrade(t *testing.T, trades domain.TradeStore, userID, venueTag, marketID, outcome, side string, size, price, fee float64, ts time.Time) {
	t.Helper()
	_, err := trades.InsertBatch(context.Background(), []domain.Trade{{
		UserID: userID, Venue: venueTag, VenueTradeID: venueTag + "-" + ts.String(),
		MarketID: marketID, OutcomeID: outcome, Side: side,
		Size: size, Price: price, Fee: fee, Timestamp: ts,
	}})
	require.NoError(t, err)
}

func TestGetStatsComputesWinRateAndProfitFactor(t *testing.T) {
	svc, trades, _, _ := newTestService(t)
	now := time.Now()

	insertTrade(t, trades, "u1", "polymarket", "m1", "yes", "buy", 10, 0.4, 0.1, now.Add(-time.Hour))
	insertTrade(t, trades, "u1", "polymarket", "m1", "yes", "sell", 10, 0.6, 0.1, now)

	insertTrade(t, trades, "u1", "kalshi", "m2", "no", "buy", 5, 0.5, 0, now.Add(-time.Hour))
	insertTrade(t, trades, "u1", "kalshi", "m2", "no", "sell", 5, 0.3, 0, now)

	stats, err := svc.GetStats(context.Background(), "u1", domain.StatsPeriodAll)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Wins)
	require.Equal(t, 1, stats.Losses)
	require.InDelta(t, 50, stats.WinRate, 1e-9)
	require.Greater(t, stats.ProfitFactor, 0.0)
	require.False(t, math.IsInf(stats.ProfitFactor, 1))
}

func TestGetStatsWorkedExample(t *testing.T) {
	svc, trades, _, _ := newTestService(t)
	now := time.Now()
	insertTrade(t, trades, "u1", "polymarket", "m1", "yes", "buy", 100, 0.40, 0.10, now.Add(-time.Hour))
	insertTrade(t, trades, "u1", "polymarket", "m1", "yes", "sell", 100, 0.55, 0.10, now)

	stats, err := svc.GetStats(context.Background(), "u1", domain.StatsPeriodAll)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalTrades)
	require.InDelta(t, 95.0, stats.TotalVolume, 1e-9)
	require.Equal(t, 1, stats.Wins)
	require.Equal(t, 0, stats.Losses)
	require.InDelta(t, 14.80, stats.TotalPnl, 1e-9)
	require.InDelta(t, 100.0, stats.WinRate, 1e-9)
	require.True(t, math.IsInf(stats.ProfitFactor, 1))
}

func TestGetStatsEmptyPortfolioIsZeroed(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	stats, err := svc.GetStats(context.Background(), "u1", domain.StatsPeriodAll)
	require.NoError(t, err)
	require.Equal(t, 0.0, stats.WinRate)
	require.Equal(t, 0.0, stats.ProfitFactor)
}

func TestGetStatsInfiniteProfitFactorWhenNoLosses(t *testing.T) {
	svc, trades, _, _ := newTestService(t)
	now := time.Now()
	insertTrade(t, trades, "u1", "polymarket", "m1", "yes", "buy", 10, 0.4, 0, now.Add(-time.Hour))
	insertTrade(t, trades, "u1", "polymarket", "m1", "yes", "sell", 10, 0.6, 0, now)

	stats, err := svc.GetStats(context.Background(), "u1", domain.StatsPeriodAll)
	require.NoError(t, err)
	require.True(t, math.IsInf(stats.ProfitFactor, 1))
}

func TestGetDailyPnlGroupsByUTCDayOldestFirst(t *testing.T) {
	svc, trades, _, _ := newTestService(t)
	today := time.Now().UTC().Truncate(24 * time.Hour)
	day1 := today.AddDate(0, 0, -2).Add(10 * time.Hour)
	day2 := today.AddDate(0, 0, -1).Add(10 * time.Hour)

	insertTrade(t, trades, "u1", "polymarket", "m1", "yes", "sell", 10, 0.5, 0, day1)
	insertTrade(t, trades, "u1", "polymarket", "m1", "yes", "sell", 5, 0.5, 0, day2)

	daily, err := svc.GetDailyPnl(context.Background(), "u1", 30)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	require.True(t, daily[0].Day.Before(daily[1].Day))
}

type notSupportedAdapter struct{ venue.Adapter }

func (notSupportedAdapter) Tag() string                   { return "evmdex" }
func (notSupportedAdapter) Capabilities() venue.Capabilities { return venue.Capabilities{} }
func (notSupportedAdapter) FetchTrades(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.Trade, error) {
	return nil, venue.NewNotSupported("evmdex", "FetchTrades")
}

func TestSyncSkipsVenuesWithoutTradeHistorySupport(t *testing.T) {
	svc, _, _, v := newTestService(t)
	ctx := context.Background()

	require.NoError(t, v.Put(ctx, "u1", "evmdex", domain.CredentialModeLive, vault.Blob{WalletAddress: "0xabc"}))
	svc.registry.Register(notSupportedAdapter{})

	results, err := svc.Sync(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, results)
}
