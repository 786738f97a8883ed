// Package pricing resolves USD prices for tokens across chains.
//
// The Oracle walks a fixed cascade of sources and returns the first hit:
//
//  1. cache (60s TTL)
//  2. CoinGecko by contract, when a key is configured
//  3. CoinMarketCap by contract, when a key is configured
//  4. DexScreener pairs, best-liquidity pair on the matching chain
//  5. Jupiter, Solana mints only
//
// Source failures are swallowed; a total miss returns nil, never an error.
package pricing

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// Price is one resolved price observation.
type Price struct {
	PriceUSD     float64 // unit price, > 0 for a valid observation
	MarketCapUSD float64 // 0 when the source does not report it
	LiquidityUSD float64 // 0 when the source does not report it
	Source       string  // source name, e.g. "dexscreener"
}

// Source resolves a token price on one provider. Implementations return
// (nil, nil) for a clean miss and an error for transport or decode failures;
// the Oracle treats both the same way and moves on.
type Source interface {
	Name() string
	Supports(chain domain.Chain) bool
	Lookup(ctx context.Context, token string, chain domain.Chain) (*Price, error)
}

// Oracle resolves prices through the source cascade with a bounded cache.
type Oracle struct {
	sources []Source
	cache   *priceCache
	logger  *log.Logger
}

// OracleOptions contains configuration for creating an Oracle.
type OracleOptions struct {
	// Sources in cascade order. Nil entries are skipped.
	Sources []Source
	// CacheTTL defaults to 60s.
	CacheTTL time.Duration
	// CacheSize defaults to 500 entries.
	CacheSize int
	Logger    *log.Logger
}

// NewOracle creates an Oracle over the given cascade.
func NewOracle(opts OracleOptions) *Oracle {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 500
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	var sources []Source
	for _, s := range opts.Sources {
		if s != nil {
			sources = append(sources, s)
		}
	}

	return &Oracle{
		sources: sources,
		cache:   newPriceCache(size, ttl),
		logger:  logger,
	}
}

// GetPrice resolves the USD price of (token, chain), or nil on a total miss.
func (o *Oracle) GetPrice(ctx context.Context, token string, chain domain.Chain) *Price {
	if token == "" || !chain.Valid() {
		return nil
	}

	if p, ok := o.cache.get(chain, token); ok {
		return p
	}

	for _, src := range o.sources {
		if !src.Supports(chain) {
			continue
		}
		p, err := src.Lookup(ctx, token, chain)
		if err != nil {
			o.logger.Printf("%s lookup %s/%s: %v", src.Name(), chain, token, err)
			continue
		}
		if p == nil || p.PriceUSD <= 0 {
			continue
		}
		if p.Source == "" {
			p.Source = src.Name()
		}
		// Zero prices never reach the cache; checked above.
		o.cache.put(chain, token, p)
		return p
	}

	return nil
}

// GetPrices resolves a batch by looping GetPrice. Missing tokens are absent
// from the result map.
func (o *Oracle) GetPrices(ctx context.Context, tokens []string, chain domain.Chain) map[string]*Price {
	out := make(map[string]*Price, len(tokens))
	for _, token := range tokens {
		if ctx.Err() != nil {
			break
		}
		if p := o.GetPrice(ctx, token, chain); p != nil {
			out[token] = p
		}
	}
	return out
}

// CacheLen reports the current number of cached entries.
func (o *Oracle) CacheLen() int {
	return o.cache.len()
}
