package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyPerfStore_Counters(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStrategyPerfStore(pool)

	require.NoError(t, store.RecordOpen(ctx, "memecoin", "2024-01-01", 100))
	require.NoError(t, store.RecordOpen(ctx, "memecoin", "2024-01-01", 50))

	// A partial exit books pnl without closing; the final leg closes.
	require.NoError(t, store.RecordClose(ctx, "memecoin", "2024-01-01", 12, false))
	require.NoError(t, store.RecordClose(ctx, "memecoin", "2024-01-01", 30, true))
	require.NoError(t, store.RecordClose(ctx, "memecoin", "2024-01-01", -4, true))

	rows, err := store.ListSince(ctx, "2024-01-01")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "memecoin", row.StrategyType)
	assert.Equal(t, 2, row.TradesOpened)
	assert.Equal(t, 2, row.TradesClosed)
	assert.Equal(t, 1, row.Wins)
	assert.Equal(t, 1, row.Losses)
	assert.InDelta(t, 38.0, row.PnLUSD, 1e-9)
	assert.InDelta(t, 150.0, row.VolumeUSD, 1e-9)
}

func TestStrategyPerfStore_ListSinceWindow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStrategyPerfStore(pool)

	for _, d := range []string{"2024-01-01", "2024-01-05", "2024-01-09"} {
		require.NoError(t, store.RecordOpen(ctx, "copyTrade", d, 10))
	}
	require.NoError(t, store.RecordOpen(ctx, "smartMoney", "2024-01-09", 25))

	rows, err := store.ListSince(ctx, "2024-01-05")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-01-09", rows[0].Date, "newest first")
}
