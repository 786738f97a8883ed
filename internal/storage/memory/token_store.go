package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
// Safe for concurrent use; the max-price update happens under the write
// lock so concurrent writers cannot lose the peak.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*domain.Token
}

// NewTokenStore creates a new in-memory TokenStore.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]*domain.Token)}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

func tokenKey(address string, chain domain.Chain) string {
	return address + "|" + string(chain)
}

// AddOrUpdate upserts the token, keeping max_price_usd monotone.
func (s *TokenStore) AddOrUpdate(_ context.Context, t *domain.Token) error {
	if t.Address == "" || !t.Chain.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	key := tokenKey(t.Address, t.Chain)

	existing, ok := s.tokens[key]
	if !ok {
		c := copyToken(t)
		if c.FirstSeen == 0 {
			c.FirstSeen = now
		}
		if c.LastUpdated == 0 {
			c.LastUpdated = now
		}
		if c.MaxPriceUSD < c.CurrentPriceUSD {
			c.MaxPriceUSD = c.CurrentPriceUSD
		}
		s.tokens[key] = c
		return nil
	}

	if t.Symbol != "" {
		existing.Symbol = t.Symbol
	}
	if t.Decimals > 0 {
		existing.Decimals = t.Decimals
	}
	if existing.CreationTime == nil && t.CreationTime != nil {
		v := *t.CreationTime
		existing.CreationTime = &v
	}
	if t.CurrentPriceUSD > 0 {
		existing.CurrentPriceUSD = t.CurrentPriceUSD
	}
	if t.CurrentPriceUSD > existing.MaxPriceUSD {
		existing.MaxPriceUSD = t.CurrentPriceUSD
	}
	if t.MarketCapUSD > 0 {
		existing.MarketCapUSD = t.MarketCapUSD
	}
	existing.LastUpdated = t.LastUpdated
	if existing.LastUpdated == 0 {
		existing.LastUpdated = now
	}
	return nil
}

// Get retrieves a token. Returns ErrNotFound if never observed.
func (s *TokenStore) Get(_ context.Context, address string, chain domain.Chain) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[tokenKey(address, chain)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyToken(t), nil
}

// ListPumpCandidates retrieves recently seen tokens whose peak-to-current
// ratio is at least ratio.
func (s *TokenStore) ListPumpCandidates(_ context.Context, since int64, ratio float64) ([]*domain.Token, error) {
	s.mu.RLock()
	var out []*domain.Token
	for _, t := range s.tokens {
		if t.FirstSeen >= since && t.CurrentPriceUSD > 0 && t.MaxPriceUSD >= t.CurrentPriceUSD*ratio {
			out = append(out, copyToken(t))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ri := out[i].MaxPriceUSD / out[i].CurrentPriceUSD
		rj := out[j].MaxPriceUSD / out[j].CurrentPriceUSD
		if ri != rj {
			return ri > rj
		}
		return out[i].Address < out[j].Address
	})
	return out, nil
}

// copyToken returns a deep copy so callers cannot mutate stored state.
func copyToken(t *domain.Token) *domain.Token {
	c := *t
	if t.CreationTime != nil {
		v := *t.CreationTime
		c.CreationTime = &v
	}
	return &c
}
