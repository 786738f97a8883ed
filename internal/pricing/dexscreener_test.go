package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

func TestDexScreener_PicksDeepestPoolOnChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/dex/tokens/mint1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pairs":[
			{"chainId":"solana","priceUsd":"0.0010","liquidity":{"usd":5000},"marketCap":100000},
			{"chainId":"solana","priceUsd":"0.0012","liquidity":{"usd":90000},"marketCap":120000},
			{"chainId":"ethereum","priceUsd":"0.5","liquidity":{"usd":900000},"marketCap":500000}
		]}`))
	}))
	defer server.Close()

	src := NewDexScreener(server.URL)
	p, err := src.Lookup(context.Background(), "mint1", domain.ChainSolana)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p == nil {
		t.Fatal("expected a price")
	}
	if p.PriceUSD != 0.0012 {
		t.Errorf("should pick the deepest solana pool, got price %f", p.PriceUSD)
	}
	if p.LiquidityUSD != 90000 {
		t.Errorf("liquidity: got %f", p.LiquidityUSD)
	}
	if p.MarketCapUSD != 120000 {
		t.Errorf("market cap: got %f", p.MarketCapUSD)
	}
}

func TestDexScreener_NoPairOnChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pairs":[{"chainId":"bsc","priceUsd":"1.0","liquidity":{"usd":100}}]}`))
	}))
	defer server.Close()

	src := NewDexScreener(server.URL)
	p, err := src.Lookup(context.Background(), "mint1", domain.ChainSolana)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p != nil {
		t.Errorf("no pair on the requested chain should be a clean miss, got %+v", p)
	}
}

func TestDexScreener_FDVFallbackForMarketCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pairs":[{"chainId":"base","priceUsd":"2.0","liquidity":{"usd":100},"fdv":77000}]}`))
	}))
	defer server.Close()

	src := NewDexScreener(server.URL)
	p, err := src.Lookup(context.Background(), "0xtoken", domain.ChainBase)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p == nil || p.MarketCapUSD != 77000 {
		t.Errorf("fdv should back-fill a missing market cap, got %+v", p)
	}
}

func TestDexScreener_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	src := NewDexScreener(server.URL)
	if _, err := src.Lookup(context.Background(), "mint1", domain.ChainSolana); err == nil {
		t.Error("non-200 should surface as an error for the cascade to swallow")
	}
}
