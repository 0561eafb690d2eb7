package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agenthub/venuecore/internal/domain"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(context.Background(), filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpenAppliesSchemaIdempotently(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	c1, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, c1.Close())

	c2, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer c2.Close()

	var version int
	err = c2.DB().QueryRow(`SELECT version FROM _schema_version WHERE id = 1`).Scan(&version)
	require.NoError(t, err)
	require.Equal(t, schemaVersion, version)
}

func TestUserStoreGetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(newTestClient(t))

	u1, err := store.GetOrCreate(ctx, "telegram:123")
	require.NoError(t, err)
	require.NotEmpty(t, u1.ID)

	u2, err := store.GetOrCreate(ctx, "telegram:123")
	require.NoError(t, err)
	require.Equal(t, u1.ID, u2.ID)
}

func TestUserStoreListReturnsAllUsers(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(newTestClient(t))

	_, err := store.GetOrCreate(ctx, "telegram:1")
	require.NoError(t, err)
	_, err = store.GetOrCreate(ctx, "telegram:2")
	require.NoError(t, err)

	users, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
}

func TestCredentialStoreCooldownRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := NewCredentialStore(newTestClient(t))

	cred := domain.TradingCredential{
		UserID:        "u1",
		Venue:         "kalshi",
		Mode:          domain.CredentialModeLive,
		EncryptedBlob: []byte("cipher"),
		Enabled:       true,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.Upsert(ctx, cred))

	cooldownUntil := time.Now().Add(time.Minute).UTC()
	require.NoError(t, store.RecordFailure(ctx, "u1", "kalshi", &cooldownUntil))

	got, err := store.Get(ctx, "u1", "kalshi")
	require.NoError(t, err)
	require.Equal(t, 1, got.FailedAttempts)
	require.True(t, got.InCooldown(time.Now()))

	require.NoError(t, store.RecordSuccess(ctx, "u1", "kalshi"))
	got, err = store.Get(ctx, "u1", "kalshi")
	require.NoError(t, err)
	require.Equal(t, 0, got.FailedAttempts)
	require.False(t, got.InCooldown(time.Now()))
}

func TestPositionStoreUpsertIsUniquePerLeg(t *testing.T) {
	ctx := context.Background()
	store := NewPositionStore(newTestClient(t))

	p := domain.Position{
		ID: "pos-1", UserID: "u1", Venue: "polymarket", MarketID: "m1", OutcomeID: "yes",
		Side: "yes", Size: 100, AvgEntryPrice: 0.4, CurrentPrice: 0.4,
		OpenedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Upsert(ctx, p))

	p.CurrentPrice = 0.6
	require.NoError(t, store.Upsert(ctx, p))

	open, err := store.GetOpen(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.InDelta(t, 0.6, open[0].CurrentPrice, 1e-9)
}

func TestTradeStoreInsertBatchDedupsByVenueTradeID(t *testing.T) {
	ctx := context.Background()
	store := NewTradeStore(newTestClient(t))

	trades := []domain.Trade{
		{UserID: "u1", Venue: "binancefutures", VenueTradeID: "t1", MarketID: "BTCUSDT", Side: "buy", Size: 1, Price: 60000, Timestamp: time.Now().UTC()},
		{UserID: "u1", Venue: "binancefutures", VenueTradeID: "t1", MarketID: "BTCUSDT", Side: "buy", Size: 1, Price: 60000, Timestamp: time.Now().UTC()},
		{UserID: "u1", Venue: "binancefutures", VenueTradeID: "t2", MarketID: "BTCUSDT", Side: "sell", Size: 1, Price: 60500, Timestamp: time.Now().UTC()},
	}

	inserted, err := store.InsertBatch(ctx, trades)
	require.NoError(t, err)
	require.Equal(t, 2, inserted)

	all, err := store.ListByUser(ctx, "u1", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestAlertStoreListEnabledForMarket(t *testing.T) {
	ctx := context.Background()
	store := NewAlertStore(newTestClient(t))

	priceAbove := 0.8
	a := domain.Alert{
		ID: "a1", UserID: "u1", Kind: domain.AlertKindPrice,
		Condition: domain.AlertCondition{Venue: "kalshi", MarketID: "m1", PriceAbove: &priceAbove},
		Enabled:   true, Channel: "telegram", ChatID: "chat1", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Upsert(ctx, a))

	matches, err := store.ListEnabledForMarket(ctx, "kalshi", "m1")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "a1", matches[0].ID)

	none, err := store.ListEnabledForMarket(ctx, "kalshi", "other")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestClientBackupProducesRestorableFile(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	store := NewUserStore(c)
	_, err := store.GetOrCreate(ctx, "discord:abc")
	require.NoError(t, err)

	dir := t.TempDir()
	dest := filepath.Join(dir, BackupFilename(time.Now()))
	require.NoError(t, c.Backup(ctx, dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))

	restored, err := Open(ctx, dest)
	require.NoError(t, err)
	defer restored.Close()

	got, err := NewUserStore(restored).GetOrCreate(ctx, "discord:abc")
	require.NoError(t, err)
	require.NotEmpty(t, got.ID)
}
