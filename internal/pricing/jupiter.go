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

// Jupiter resolves Solana mint prices from the Jupiter price API. It is the
// cascade's last stop and only answers for Solana.
type Jupiter struct {
	http *resty.Client
}

// NewJupiter creates a Jupiter source.
func NewJupiter(baseURL string) *Jupiter {
	if baseURL == "" {
		baseURL = "https://api.jup.ag"
	}
	return &Jupiter{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

// Compile-time interface check.
var _ Source = (*Jupiter)(nil)

func (j *Jupiter) Name() string { return "jupiter" }

func (j *Jupiter) Supports(chain domain.Chain) bool {
	return chain == domain.ChainSolana
}

type jupiterResponse struct {
	Data map[string]struct {
		Price string `json:"price"`
	} `json:"data"`
}

func (j *Jupiter) Lookup(ctx context.Context, token string, chain domain.Chain) (*Price, error) {
	var result jupiterResponse
	resp, err := j.http.R().
		SetContext(ctx).
		SetQueryParam("ids", token).
		SetResult(&result).
		Get("/price/v2")
	if err != nil {
		return nil, fmt.Errorf("jupiter request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("jupiter status %d", resp.StatusCode())
	}

	entry, ok := result.Data[token]
	if !ok {
		return nil, nil
	}
	priceUSD, err := strconv.ParseFloat(entry.Price, 64)
	if err != nil || priceUSD <= 0 {
		return nil, nil
	}

	return &Price{PriceUSD: priceUSD, Source: j.Name()}, nil
}
