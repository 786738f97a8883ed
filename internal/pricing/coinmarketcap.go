package pricing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// CoinMarketCap resolves prices by token contract on the v2 quotes endpoint.
// Only consulted when an API key is configured. CMC indexes EVM contracts
// only, so Solana mints skip it.
type CoinMarketCap struct {
	http   *resty.Client
	apiKey string
}

// NewCoinMarketCap creates a CoinMarketCap source. An empty apiKey disables it.
func NewCoinMarketCap(baseURL, apiKey string) *CoinMarketCap {
	if baseURL == "" {
		baseURL = "https://pro-api.coinmarketcap.com"
	}
	return &CoinMarketCap{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
		apiKey: apiKey,
	}
}

// Compile-time interface check.
var _ Source = (*CoinMarketCap)(nil)

func (c *CoinMarketCap) Name() string { return "coinmarketcap" }

func (c *CoinMarketCap) Supports(chain domain.Chain) bool {
	return c.apiKey != "" && chain.IsEVM()
}

type cmcQuoteEntry struct {
	Quote struct {
		USD struct {
			Price     float64 `json:"price"`
			MarketCap float64 `json:"market_cap"`
		} `json:"USD"`
	} `json:"quote"`
}

type cmcQuoteResponse struct {
	// Keyed by CMC's internal id; the address query returns exactly one.
	Data map[string]cmcQuoteEntry `json:"data"`
}

func (c *CoinMarketCap) Lookup(ctx context.Context, token string, chain domain.Chain) (*Price, error) {
	var result cmcQuoteResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-CMC_PRO_API_KEY", c.apiKey).
		SetQueryParam("address", token).
		SetResult(&result).
		Get("/v2/cryptocurrency/quotes/latest")
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("coinmarketcap status %d", resp.StatusCode())
	}

	for _, entry := range result.Data {
		if entry.Quote.USD.Price > 0 {
			return &Price{
				PriceUSD:     entry.Quote.USD.Price,
				MarketCapUSD: entry.Quote.USD.MarketCap,
				Source:       c.Name(),
			}, nil
		}
	}
	return nil, nil
}
