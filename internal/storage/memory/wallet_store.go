package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
// Safe for concurrent use.
type WalletStore struct {
	mu      sync.RWMutex
	wallets map[string]*domain.Wallet
}

// NewWalletStore creates a new in-memory WalletStore.
func NewWalletStore() *WalletStore {
	return &WalletStore{wallets: make(map[string]*domain.Wallet)}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

func walletKey(address string, chain domain.Chain) string {
	return address + "|" + string(chain)
}

// Upsert inserts or replaces the wallet identified by (address, chain).
func (s *WalletStore) Upsert(_ context.Context, w *domain.Wallet) error {
	if w.Address == "" || !w.Chain.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := copyWallet(w)
	if c.Status == "" {
		c.Status = domain.WalletStatusActive
	}
	s.wallets[walletKey(w.Address, w.Chain)] = c
	return nil
}

// Get retrieves a wallet. Returns ErrNotFound if not tracked.
func (s *WalletStore) Get(_ context.Context, address string, chain domain.Chain) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[walletKey(address, chain)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyWallet(w), nil
}

// List retrieves all wallets ordered by (chain, address).
func (s *WalletStore) List(_ context.Context) ([]*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(*domain.Wallet) bool { return true }), nil
}

// ListActive retrieves wallets with status=active ordered by (chain, address).
func (s *WalletStore) ListActive(_ context.Context) ([]*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(w *domain.Wallet) bool { return w.Status == domain.WalletStatusActive }), nil
}

func (s *WalletStore) listLocked(keep func(*domain.Wallet) bool) []*domain.Wallet {
	var out []*domain.Wallet
	for _, w := range s.wallets {
		if keep(w) {
			out = append(out, copyWallet(w))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Chain != out[j].Chain {
			return out[i].Chain < out[j].Chain
		}
		return out[i].Address < out[j].Address
	})
	return out
}

// SetStatus updates the lifecycle status.
func (s *WalletStore) SetStatus(_ context.Context, address string, chain domain.Chain, status string) error {
	switch status {
	case domain.WalletStatusActive, domain.WalletStatusPaused, domain.WalletStatusDemoted:
	default:
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletKey(address, chain)]
	if !ok {
		return storage.ErrNotFound
	}
	w.Status = status
	return nil
}

// TouchLastChecked records a completed poll at ts.
func (s *WalletStore) TouchLastChecked(_ context.Context, address string, chain domain.Chain, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletKey(address, chain)]
	if !ok {
		return storage.ErrNotFound
	}
	w.LastChecked = ts
	return nil
}

// RecordTradeOutcome folds one realized close into the rolling aggregates.
func (s *WalletStore) RecordTradeOutcome(_ context.Context, address string, chain domain.Chain, entryValueUSD, pnlUSD float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletKey(address, chain)]
	if !ok {
		return storage.ErrNotFound
	}

	prevTotal := float64(w.TotalTrades)
	w.TotalTrades++
	if pnlUSD > 0 {
		w.SuccessfulTrades++
	}
	w.TotalPnLUSD += pnlUSD
	w.AvgTradeSizeUSD = (w.AvgTradeSizeUSD*prevTotal + entryValueUSD) / float64(w.TotalTrades)
	if pnlUSD > w.BiggestWinUSD {
		w.BiggestWinUSD = pnlUSD
	}
	if pnlUSD < w.BiggestLossUSD {
		w.BiggestLossUSD = pnlUSD
	}
	rate := float64(w.SuccessfulTrades) / float64(w.TotalTrades)
	w.WinRate = &rate
	return nil
}

// copyWallet returns a deep copy so callers cannot mutate stored state.
func copyWallet(w *domain.Wallet) *domain.Wallet {
	c := *w
	if w.WinRate != nil {
		v := *w.WinRate
		c.WinRate = &v
	}
	return &c
}
