package pricing

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// DexScreener resolves prices from the public pair index. It needs no API
// key and covers new tokens long before the aggregators list them, which
// makes it the workhorse of the cascade.
type DexScreener struct {
	http *resty.Client
}

// NewDexScreener creates a DexScreener source.
func NewDexScreener(baseURL string) *DexScreener {
	if baseURL == "" {
		baseURL = "https://api.dexscreener.com"
	}
	return &DexScreener{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

// Compile-time interface check.
var _ Source = (*DexScreener)(nil)

// dexScreener chainId values per supported chain.
var dexScreenerChainIDs = map[domain.Chain]string{
	domain.ChainEthereum: "ethereum",
	domain.ChainBase:     "base",
	domain.ChainArbitrum: "arbitrum",
	domain.ChainOptimism: "optimism",
	domain.ChainPolygon:  "polygon",
	domain.ChainSolana:   "solana",
}

func (d *DexScreener) Name() string { return "dexscreener" }

func (d *DexScreener) Supports(chain domain.Chain) bool {
	_, ok := dexScreenerChainIDs[chain]
	return ok
}

type dexScreenerPair struct {
	ChainID   string `json:"chainId"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap float64 `json:"marketCap"`
	FDV       float64 `json:"fdv"`
}

type dexScreenerResponse struct {
	Pairs []dexScreenerPair `json:"pairs"`
}

// Lookup fetches all pairs for the token and picks the deepest pool on the
// matching chain. Pairs on other chains (bridged copies) are ignored.
func (d *DexScreener) Lookup(ctx context.Context, token string, chain domain.Chain) (*Price, error) {
	chainID := dexScreenerChainIDs[chain]

	var result dexScreenerResponse
	resp, err := d.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/latest/dex/tokens/" + token)
	if err != nil {
		return nil, fmt.Errorf("dexscreener request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("dexscreener status %d", resp.StatusCode())
	}

	var best *dexScreenerPair
	for i := range result.Pairs {
		pair := &result.Pairs[i]
		if pair.ChainID != chainID {
			continue
		}
		if best == nil || pair.Liquidity.USD > best.Liquidity.USD {
			best = pair
		}
	}
	if best == nil {
		return nil, nil
	}

	priceUSD, err := strconv.ParseFloat(best.PriceUSD, 64)
	if err != nil || priceUSD <= 0 {
		return nil, nil
	}

	marketCap := best.MarketCap
	if marketCap == 0 {
		marketCap = best.FDV
	}

	return &Price{
		PriceUSD:     priceUSD,
		MarketCapUSD: marketCap,
		LiquidityUSD: best.Liquidity.USD,
		Source:       d.Name(),
	}, nil
}
