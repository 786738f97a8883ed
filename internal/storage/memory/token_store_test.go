package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

func TestTokenStore_MaxPriceMonotone(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	prices := []float64{10, 20, 15, 5}
	for _, p := range prices {
		err := store.AddOrUpdate(ctx, &domain.Token{
			Address:         "0xtoken",
			Chain:           domain.ChainEthereum,
			CurrentPriceUSD: p,
			LastUpdated:     1000,
		})
		if err != nil {
			t.Fatalf("AddOrUpdate(%f) failed: %v", p, err)
		}
	}

	tok, err := store.Get(ctx, "0xtoken", domain.ChainEthereum)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if tok.CurrentPriceUSD != 5 {
		t.Errorf("CurrentPriceUSD should be last write: got %f, want 5", tok.CurrentPriceUSD)
	}
	if tok.MaxPriceUSD != 20 {
		t.Errorf("MaxPriceUSD should hold the peak: got %f, want 20", tok.MaxPriceUSD)
	}
}

func TestTokenStore_ConcurrentMaxPrice(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	seed := &domain.Token{Address: "0xtoken", Chain: domain.ChainEthereum, CurrentPriceUSD: 10}
	if err := store.AddOrUpdate(ctx, seed); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	var wg sync.WaitGroup
	for _, p := range []float64{15, 20} {
		wg.Add(1)
		go func(price float64) {
			defer wg.Done()
			_ = store.AddOrUpdate(ctx, &domain.Token{
				Address:         "0xtoken",
				Chain:           domain.ChainEthereum,
				CurrentPriceUSD: price,
			})
		}(p)
	}
	wg.Wait()

	tok, _ := store.Get(ctx, "0xtoken", domain.ChainEthereum)
	if tok.MaxPriceUSD != 20 {
		t.Errorf("MaxPriceUSD lost under concurrency: got %f, want 20", tok.MaxPriceUSD)
	}
	if tok.CurrentPriceUSD != 15 && tok.CurrentPriceUSD != 20 {
		t.Errorf("CurrentPriceUSD should be one writer's value, got %f", tok.CurrentPriceUSD)
	}
}

func TestTokenStore_ZeroPriceDoesNotClobber(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	if err := store.AddOrUpdate(ctx, &domain.Token{Address: "m1", Chain: domain.ChainSolana, CurrentPriceUSD: 3}); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if err := store.AddOrUpdate(ctx, &domain.Token{Address: "m1", Chain: domain.ChainSolana, CurrentPriceUSD: 0, Symbol: "SOLCAT"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	tok, _ := store.Get(ctx, "m1", domain.ChainSolana)
	if tok.CurrentPriceUSD != 3 {
		t.Errorf("Zero price clobbered current: got %f, want 3", tok.CurrentPriceUSD)
	}
	if tok.Symbol != "SOLCAT" {
		t.Errorf("Symbol should still update: got %q", tok.Symbol)
	}
}

func TestTokenStore_ListPumpCandidates(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	fixtures := []struct {
		address string
		first   int64
		current float64
		max     float64
	}{
		{"pumped", 5000, 10, 30},   // ratio 3.0, recent
		{"flat", 5000, 10, 11},     // ratio 1.1
		{"old", 100, 10, 50},       // ratio 5.0 but too old
		{"pricless", 5000, 0, 40},  // unresolved current price
	}
	for _, f := range fixtures {
		tok := &domain.Token{Address: f.address, Chain: domain.ChainSolana, FirstSeen: f.first, CurrentPriceUSD: f.current, MaxPriceUSD: f.max}
		if err := store.AddOrUpdate(ctx, tok); err != nil {
			t.Fatalf("AddOrUpdate(%s) failed: %v", f.address, err)
		}
	}

	result, err := store.ListPumpCandidates(ctx, 1000, 2.5)
	if err != nil {
		t.Fatalf("ListPumpCandidates failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Expected 1 pump candidate, got %d", len(result))
	}
	if result[0].Address != "pumped" {
		t.Errorf("Expected 'pumped', got %q", result[0].Address)
	}
}
