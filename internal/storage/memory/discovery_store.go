package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// DiscoveryStore is an in-memory implementation of storage.DiscoveryStore.
// Safe for concurrent use.
type DiscoveryStore struct {
	mu         sync.RWMutex
	discovered map[string]*domain.DiscoveredWallet
}

// NewDiscoveryStore creates a new in-memory DiscoveryStore.
func NewDiscoveryStore() *DiscoveryStore {
	return &DiscoveryStore{discovered: make(map[string]*domain.DiscoveredWallet)}
}

// Compile-time interface check.
var _ storage.DiscoveryStore = (*DiscoveryStore)(nil)

// Insert adds a candidate. Returns ErrDuplicateKey when already discovered.
func (s *DiscoveryStore) Insert(_ context.Context, d *domain.DiscoveredWallet) error {
	if d.Address == "" || !d.Chain.Valid() || d.FirstSeen <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := walletKey(d.Address, d.Chain)
	if _, exists := s.discovered[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.discovered[key] = copyDiscovered(d)
	return nil
}

// Get retrieves a candidate. Returns ErrNotFound if not exists.
func (s *DiscoveryStore) Get(_ context.Context, address string, chain domain.Chain) (*domain.DiscoveredWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.discovered[walletKey(address, chain)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyDiscovered(d), nil
}

// List retrieves candidates, best score first.
func (s *DiscoveryStore) List(_ context.Context, promoted *bool) ([]*domain.DiscoveredWallet, error) {
	s.mu.RLock()
	var out []*domain.DiscoveredWallet
	for _, d := range s.discovered {
		if promoted != nil && d.Promoted != *promoted {
			continue
		}
		out = append(out, copyDiscovered(d))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ProfitabilityScore != out[j].ProfitabilityScore {
			return out[i].ProfitabilityScore > out[j].ProfitabilityScore
		}
		return out[i].Address < out[j].Address
	})
	return out, nil
}

// Promote marks the candidate promoted at ts.
func (s *DiscoveryStore) Promote(_ context.Context, address string, chain domain.Chain, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.discovered[walletKey(address, chain)]
	if !ok {
		return storage.ErrNotFound
	}
	if d.Promoted {
		return storage.ErrDuplicateKey
	}
	d.Promoted = true
	d.PromotedDate = &ts
	return nil
}

// Reject records an operator rejection reason.
func (s *DiscoveryStore) Reject(_ context.Context, address string, chain domain.Chain, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.discovered[walletKey(address, chain)]
	if !ok {
		return storage.ErrNotFound
	}
	d.RejectionReason = &reason
	return nil
}

// CountInsertedSince counts candidates first seen at or after since (ms).
func (s *DiscoveryStore) CountInsertedSince(_ context.Context, since int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, d := range s.discovered {
		if d.FirstSeen >= since {
			count++
		}
	}
	return count, nil
}

// copyDiscovered returns a deep copy so callers cannot mutate stored state.
func copyDiscovered(d *domain.DiscoveredWallet) *domain.DiscoveredWallet {
	c := *d
	if d.PromotedDate != nil {
		v := *d.PromotedDate
		c.PromotedDate = &v
	}
	if d.RejectionReason != nil {
		v := *d.RejectionReason
		c.RejectionReason = &v
	}
	return &c
}
