package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

func TestStateStore_UpsertRoundtrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStateStore(pool)

	require.NoError(t, store.Set(ctx, domain.StateTradingPaused, "true"))

	got, err := store.Get(ctx, domain.StateTradingPaused)
	require.NoError(t, err)
	assert.Equal(t, "true", got)

	require.NoError(t, store.Set(ctx, domain.StateTradingPaused, "false"))
	got, err = store.Get(ctx, domain.StateTradingPaused)
	require.NoError(t, err)
	assert.Equal(t, "false", got)

	_, err = store.Get(ctx, "no_such_key")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStateStore_FloatHelpers(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStateStore(pool)

	require.NoError(t, store.SetFloat(ctx, domain.StateAvailableCapital, 9742.515))

	got, err := store.GetFloat(ctx, domain.StateAvailableCapital)
	require.NoError(t, err)
	assert.InDelta(t, 9742.515, got, 1e-9)

	require.NoError(t, store.Set(ctx, "garbage", "not-a-number"))
	_, err = store.GetFloat(ctx, "garbage")
	assert.Error(t, err)
}

func TestStateStore_Delete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStateStore(pool)

	require.NoError(t, store.Set(ctx, "k", "v"))
	require.NoError(t, store.Delete(ctx, "k"))

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Delete(ctx, "never-existed"))
}
