package stub

import (
	"context"
	"math"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/pricing"
)

// PriceSource resolves the synthetic token set so position management works
// offline. Prices follow a slow sine walk around each token's base price,
// which makes stop and take-profit paths reachable in a mock run.
type PriceSource struct {
	now func() time.Time
}

// NewPriceSource creates a mock price source.
func NewPriceSource() *PriceSource {
	return &PriceSource{now: time.Now}
}

var _ pricing.Source = (*PriceSource)(nil)

func (p *PriceSource) Name() string { return "mock" }

// Supports reports whether synthetic tokens exist for the chain.
func (p *PriceSource) Supports(chain domain.Chain) bool {
	return len(mockTokens[chain]) > 0
}

// Lookup returns the walked price for a synthetic token and a clean miss
// for anything else.
func (p *PriceSource) Lookup(_ context.Context, token string, chain domain.Chain) (*pricing.Price, error) {
	for _, tok := range mockTokens[chain] {
		if tok.address != token {
			continue
		}
		// ±30% over a 20-minute period.
		phase := float64(p.now().Unix()) * 2 * math.Pi / 1200
		return &pricing.Price{
			PriceUSD: tok.price * (1 + 0.3*math.Sin(phase)),
			Source:   p.Name(),
		}, nil
	}
	return nil, nil
}
