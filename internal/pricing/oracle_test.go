package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// fakeSource is a scriptable Source for cascade tests.
type fakeSource struct {
	name   string
	chains map[domain.Chain]bool
	price  *Price
	err    error
	calls  int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Supports(chain domain.Chain) bool {
	if f.chains == nil {
		return true
	}
	return f.chains[chain]
}

func (f *fakeSource) Lookup(_ context.Context, _ string, _ domain.Chain) (*Price, error) {
	f.calls++
	return f.price, f.err
}

func TestOracle_CascadeFirstHitWins(t *testing.T) {
	miss := &fakeSource{name: "miss"}
	failing := &fakeSource{name: "failing", err: errors.New("boom")}
	hit := &fakeSource{name: "hit", price: &Price{PriceUSD: 2.5}}
	never := &fakeSource{name: "never", price: &Price{PriceUSD: 99}}

	oracle := NewOracle(OracleOptions{Sources: []Source{miss, failing, hit, never}})

	p := oracle.GetPrice(context.Background(), "mint1", domain.ChainSolana)
	if p == nil {
		t.Fatal("expected a price")
	}
	if p.PriceUSD != 2.5 || p.Source != "hit" {
		t.Errorf("wrong winner: %+v", p)
	}
	if miss.calls != 1 || failing.calls != 1 || hit.calls != 1 {
		t.Errorf("cascade should try sources in order: %d %d %d", miss.calls, failing.calls, hit.calls)
	}
	if never.calls != 0 {
		t.Errorf("sources after the first hit must not be consulted")
	}
}

func TestOracle_CacheShortCircuits(t *testing.T) {
	src := &fakeSource{name: "src", price: &Price{PriceUSD: 1.25}}
	oracle := NewOracle(OracleOptions{Sources: []Source{src}})
	ctx := context.Background()

	first := oracle.GetPrice(ctx, "mint1", domain.ChainSolana)
	second := oracle.GetPrice(ctx, "mint1", domain.ChainSolana)
	if first == nil || second == nil {
		t.Fatal("expected prices")
	}
	if src.calls != 1 {
		t.Errorf("second call should hit the cache, source called %d times", src.calls)
	}
}

func TestOracle_ZeroPriceFallsThrough(t *testing.T) {
	zero := &fakeSource{name: "zero", price: &Price{PriceUSD: 0}}
	real := &fakeSource{name: "real", price: &Price{PriceUSD: 3}}
	oracle := NewOracle(OracleOptions{Sources: []Source{zero, real}})

	p := oracle.GetPrice(context.Background(), "mint1", domain.ChainSolana)
	if p == nil || p.Source != "real" {
		t.Fatalf("zero price should fall through to the next source, got %+v", p)
	}
	if oracle.CacheLen() != 1 {
		t.Errorf("only the real price should be cached, len=%d", oracle.CacheLen())
	}
}

func TestOracle_TotalMissReturnsNil(t *testing.T) {
	oracle := NewOracle(OracleOptions{Sources: []Source{
		&fakeSource{name: "a"},
		&fakeSource{name: "b", err: errors.New("down")},
	}})

	if p := oracle.GetPrice(context.Background(), "mint1", domain.ChainSolana); p != nil {
		t.Errorf("total miss should be nil, got %+v", p)
	}
	if oracle.CacheLen() != 0 {
		t.Errorf("misses must not be cached")
	}
}

func TestOracle_SkipsUnsupportedChains(t *testing.T) {
	solOnly := &fakeSource{
		name:   "solana-only",
		chains: map[domain.Chain]bool{domain.ChainSolana: true},
		price:  &Price{PriceUSD: 5},
	}
	oracle := NewOracle(OracleOptions{Sources: []Source{solOnly}})

	if p := oracle.GetPrice(context.Background(), "0xtoken", domain.ChainEthereum); p != nil {
		t.Errorf("source should be skipped for unsupported chain, got %+v", p)
	}
	if solOnly.calls != 0 {
		t.Errorf("unsupported source should not be called")
	}
}

func TestOracle_GetPricesLoopsSingles(t *testing.T) {
	src := &fakeSource{name: "src", price: &Price{PriceUSD: 1}}
	oracle := NewOracle(OracleOptions{Sources: []Source{src}})

	got := oracle.GetPrices(context.Background(), []string{"a", "b", "c"}, domain.ChainSolana)
	if len(got) != 3 {
		t.Fatalf("expected 3 resolved prices, got %d", len(got))
	}
	if src.calls != 3 {
		t.Errorf("batch is served by looping singles, calls=%d", src.calls)
	}
}
