package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"privacyPool/internal/model"
)

func TestNumericDefaultsEmptyToZero(t *testing.T) {
	require.Equal(t, "0", numeric(""))
	require.Equal(t, "714387", numeric("714387"))
}

func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("POOL_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("POOL_TEST_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))

	snap := model.PoolSnapshot{
		Address:         "0x00000000000000000000000000000000000000f0",
		Token0:          "0x00000000000000000000000000000000000000a0",
		Token1:          "0x00000000000000000000000000000000000000a1",
		FeeBps:          3000,
		Reserve0:        "2099700000000000000000",
		Reserve1Virtual: "714387",
		EventSequence:   10,
	}
	require.NoError(t, store.UpsertPoolSnapshot(ctx, snap))

	stale := snap
	stale.EventSequence = 9
	stale.Reserve1Virtual = "1"
	require.NoError(t, store.UpsertPoolSnapshot(ctx, stale))

	loaded, ok, err := store.LoadPoolSnapshot(ctx, snap.Address)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "714387", loaded.Reserve1Virtual)

	start := time.Unix(1700000000, 0).UTC()
	require.NoError(t, store.UpsertEpochMetrics(ctx, []model.EpochWindowMetrics{{
		PoolAddress:    snap.Address,
		WindowSizeSecs: 3600,
		WindowStart:    start,
		WindowEnd:      start.Add(time.Hour),
		SwapCount:      1,
		Volume0:        "100",
		Fee0:           "1",
		LastSequence:   10,
	}}))

	require.NoError(t, store.SaveState(ctx, "test-aggregate", 10))
	seq, ok, err := store.LoadState(ctx, "test-aggregate")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(10), seq)
}
