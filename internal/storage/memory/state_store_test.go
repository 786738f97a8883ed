package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

func TestStateStore_SetGetRoundtrip(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	if err := store.Set(ctx, domain.StateTradingPaused, "true"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := store.Get(ctx, domain.StateTradingPaused)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "true" {
		t.Errorf("Get: got %q, want \"true\"", got)
	}

	// Overwrite.
	if err := store.Set(ctx, domain.StateTradingPaused, "false"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, _ = store.Get(ctx, domain.StateTradingPaused)
	if got != "false" {
		t.Errorf("Set should overwrite, got %q", got)
	}
}

func TestStateStore_GetMissing(t *testing.T) {
	store := NewStateStore()

	if _, err := store.Get(context.Background(), "no_such_key"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStateStore_FloatRoundtrip(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	if err := store.SetFloat(ctx, domain.StateAvailableCapital, 9742.515); err != nil {
		t.Fatalf("SetFloat failed: %v", err)
	}
	got, err := store.GetFloat(ctx, domain.StateAvailableCapital)
	if err != nil {
		t.Fatalf("GetFloat failed: %v", err)
	}
	if got != 9742.515 {
		t.Errorf("GetFloat: got %f, want 9742.515", got)
	}
}

func TestStateStore_GetFloatBadValue(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k", "not-a-number"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := store.GetFloat(ctx, "k"); err == nil {
		t.Errorf("GetFloat should fail on a non-numeric value")
	}
}

func TestStateStore_Delete(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Deleted key should be ErrNotFound, got %v", err)
	}

	// Deleting a missing key is a no-op.
	if err := store.Delete(ctx, "nope"); err != nil {
		t.Errorf("Delete of missing key should not error: %v", err)
	}
}
