// Package stub provides a deterministic synthetic transfer source so the
// full ingestion and trading loop runs offline in mock mode.
package stub

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// mockToken is one synthetic token on a chain.
type mockToken struct {
	address string
	symbol  string
	price   float64 // base price the walk oscillates around
}

var mockTokens = map[domain.Chain][]mockToken{
	domain.ChainSolana: {
		{"MockBonk1111111111111111111111111111111111111", "MBONK", 0.000021},
		{"MockWif11111111111111111111111111111111111111", "MWIF", 1.85},
		{"MockJup11111111111111111111111111111111111111", "MJUP", 0.92},
	},
	domain.ChainEthereum: {
		{"0x000000000000000000000000000000000000mock1", "MPEPE", 0.0000089},
		{"0x000000000000000000000000000000000000mock2", "MSHIB", 0.000013},
	},
	domain.ChainBase: {
		{"0x000000000000000000000000000000000000mock3", "MBRETT", 0.064},
	},
	domain.ChainArbitrum: {
		{"0x000000000000000000000000000000000000mock4", "MARB", 0.41},
	},
}

// Source emits a reproducible transfer stream: the same wallet observed over
// the same tick sequence always yields the same transfers, so the whole loop
// can run and be replayed without network access.
type Source struct {
	mu    sync.Mutex
	ticks map[string]int64
	now   func() time.Time
}

// NewSource creates a mock transfer source.
func NewSource() *Source {
	return &Source{
		ticks: make(map[string]int64),
		now:   time.Now,
	}
}

// Supports reports whether synthetic tokens exist for the chain.
func (s *Source) Supports(chain domain.Chain) bool {
	return len(mockTokens[chain]) > 0
}

// GetRecentTokenTransfers returns zero to two synthetic transfers for the
// wallet's current tick. Tx hashes encode (wallet seed, tick, index) so
// re-running a tick produces duplicates, exercising the dedup path the same
// way live sources do.
func (s *Source) GetRecentTokenTransfers(_ context.Context, address string, chain domain.Chain) ([]*domain.Transfer, error) {
	tokens := mockTokens[chain]
	if len(tokens) == 0 {
		return nil, fmt.Errorf("unsupported chain %q", chain)
	}

	s.mu.Lock()
	tick := s.ticks[address]
	s.ticks[address] = tick + 1
	now := s.now()
	s.mu.Unlock()

	seed := walletSeed(address)
	rng := rand.New(rand.NewSource(seed + tick))

	n := rng.Intn(3) // roughly one tick in three is quiet
	out := make([]*domain.Transfer, 0, n)
	for i := 0; i < n; i++ {
		tok := tokens[rng.Intn(len(tokens))]
		action := domain.ActionBuy
		if rng.Float64() < 0.3 {
			action = domain.ActionSell
		}
		price := tok.price * (0.8 + 0.4*rng.Float64())
		totalUSD := 50 + rng.Float64()*4950
		block := 1_000_000 + tick

		out = append(out, &domain.Transfer{
			WalletAddress: address,
			Chain:         chain,
			TxHash:        fmt.Sprintf("mock-%016x-%d-%d", seed, tick, i),
			TokenAddress:  tok.address,
			TokenSymbol:   tok.symbol,
			Action:        action,
			Amount:        totalUSD / price,
			PriceUSD:      price,
			TotalValueUSD: totalUSD,
			Timestamp:     now.UnixMilli(),
			BlockNumber:   &block,
		})
	}
	return out, nil
}

func walletSeed(address string) int64 {
	h := fnv.New64a()
	h.Write([]byte(address))
	return int64(h.Sum64() & (1<<63 - 1))
}
