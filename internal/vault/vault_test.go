package vault

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/store/sqlite"
)

func newTestStore(t *testing.T) domain.CredentialStore {
	t.Helper()
	dir := t.TempDir()
	c, err := sqlite.Open(context.Background(), filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return sqlite.NewCredentialStore(c)
}

func TestVaultPutAndGetRoundtrips(t *testing.T) {
	ctx := context.Background()
	v := New(newTestStore(t), "test-passphrase")

	blob := Blob{APIKey: "key1", APISecret: "secret1"}
	require.NoError(t, v.Put(ctx, "u1", "binancefutures", domain.CredentialModeLive, blob))

	got, err := v.Get(ctx, "u1", "binancefutures")
	require.NoError(t, err)
	require.Equal(t, blob, got)
}

func TestVaultEntersCooldownAfterThreshold(t *testing.T) {
	ctx := context.Background()
	v := New(newTestStore(t), "test-passphrase")
	require.NoError(t, v.Put(ctx, "u1", "bybit", domain.CredentialModeLive, Blob{APIKey: "k"}))

	for i := 0; i < failureThreshold-1; i++ {
		require.NoError(t, v.RecordFailure(ctx, "u1", "bybit"))
		_, err := v.Get(ctx, "u1", "bybit")
		require.NoError(t, err, "should not cool down before threshold")
	}

	require.NoError(t, v.RecordFailure(ctx, "u1", "bybit"))
	_, err := v.Get(ctx, "u1", "bybit")
	require.ErrorIs(t, err, ErrCooldown)
}

func TestVaultRecordSuccessClearsCooldown(t *testing.T) {
	ctx := context.Background()
	v := New(newTestStore(t), "test-passphrase")
	require.NoError(t, v.Put(ctx, "u1", "mexc", domain.CredentialModeLive, Blob{APIKey: "k"}))

	for i := 0; i < failureThreshold; i++ {
		require.NoError(t, v.RecordFailure(ctx, "u1", "mexc"))
	}
	_, err := v.Get(ctx, "u1", "mexc")
	require.ErrorIs(t, err, ErrCooldown)

	require.NoError(t, v.RecordSuccess(ctx, "u1", "mexc"))
	_, err = v.Get(ctx, "u1", "mexc")
	require.NoError(t, err)
}

func TestBackoffForGrowsAndCaps(t *testing.T) {
	require.Equal(t, baseBackoff, backoffFor(1))
	require.Equal(t, 2*baseBackoff, backoffFor(2))
	require.Equal(t, maxBackoff, backoffFor(100))
}
