package pricing

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// CoinGecko resolves prices by token contract on the simple token_price
// endpoint. Only consulted when an API key is configured.
type CoinGecko struct {
	http   *resty.Client
	apiKey string
}

// NewCoinGecko creates a CoinGecko source. An empty apiKey disables it.
func NewCoinGecko(baseURL, apiKey string) *CoinGecko {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	return &CoinGecko{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
		apiKey: apiKey,
	}
}

// Compile-time interface check.
var _ Source = (*CoinGecko)(nil)

// CoinGecko asset platform ids per supported chain.
var coinGeckoPlatforms = map[domain.Chain]string{
	domain.ChainEthereum: "ethereum",
	domain.ChainBase:     "base",
	domain.ChainArbitrum: "arbitrum-one",
	domain.ChainOptimism: "optimistic-ethereum",
	domain.ChainPolygon:  "polygon-pos",
	domain.ChainSolana:   "solana",
}

func (c *CoinGecko) Name() string { return "coingecko" }

func (c *CoinGecko) Supports(chain domain.Chain) bool {
	if c.apiKey == "" {
		return false
	}
	_, ok := coinGeckoPlatforms[chain]
	return ok
}

type coinGeckoQuote struct {
	USD          float64 `json:"usd"`
	USDMarketCap float64 `json:"usd_market_cap"`
}

func (c *CoinGecko) Lookup(ctx context.Context, token string, chain domain.Chain) (*Price, error) {
	platform := coinGeckoPlatforms[chain]

	// Response is keyed by the (lowercased) contract address.
	result := map[string]coinGeckoQuote{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-cg-demo-api-key", c.apiKey).
		SetQueryParams(map[string]string{
			"contract_addresses": token,
			"vs_currencies":      "usd",
			"include_market_cap": "true",
		}).
		SetResult(&result).
		Get("/simple/token_price/" + platform)
	if err != nil {
		return nil, fmt.Errorf("coingecko request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("coingecko status %d", resp.StatusCode())
	}

	quote, ok := result[strings.ToLower(token)]
	if !ok {
		quote, ok = result[token]
	}
	if !ok || quote.USD <= 0 {
		return nil, nil
	}

	return &Price{
		PriceUSD:     quote.USD,
		MarketCapUSD: quote.USDMarketCap,
		Source:       c.Name(),
	}, nil
}
