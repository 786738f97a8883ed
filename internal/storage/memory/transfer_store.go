package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// TransferStore is an in-memory implementation of storage.TransferStore.
// Safe for concurrent use.
type TransferStore struct {
	mu     sync.RWMutex
	byKey  map[string]*domain.Transfer
	nextID int64
}

// NewTransferStore creates a new in-memory TransferStore.
func NewTransferStore() *TransferStore {
	return &TransferStore{byKey: make(map[string]*domain.Transfer), nextID: 1}
}

// Compile-time interface check.
var _ storage.TransferStore = (*TransferStore)(nil)

func transferKey(wallet, txHash string, chain domain.Chain) string {
	return wallet + "|" + txHash + "|" + string(chain)
}

// Insert adds one observed transfer. Returns ErrDuplicateKey when
// (wallet_address, tx_hash, chain) exists; ErrInvalidInput on missing fields.
func (s *TransferStore) Insert(_ context.Context, t *domain.Transfer) error {
	if t.WalletAddress == "" || t.TxHash == "" || t.TokenAddress == "" || !t.Chain.Valid() {
		return storage.ErrInvalidInput
	}
	if t.Action != domain.ActionBuy && t.Action != domain.ActionSell {
		return storage.ErrInvalidInput
	}
	if t.Amount < 0 || t.Timestamp <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := transferKey(t.WalletAddress, t.TxHash, t.Chain)
	if _, exists := s.byKey[key]; exists {
		return storage.ErrDuplicateKey
	}

	c := copyTransfer(t)
	c.ID = s.nextID
	s.nextID++
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	s.byKey[key] = c

	t.ID = c.ID
	t.CreatedAt = c.CreatedAt
	return nil
}

// ListByWallet retrieves a wallet's transfers, newest first.
func (s *TransferStore) ListByWallet(_ context.Context, address string, chain domain.Chain, limit int) ([]*domain.Transfer, error) {
	s.mu.RLock()
	out := s.collectLocked(func(t *domain.Transfer) bool {
		return t.WalletAddress == address && t.Chain == chain
	})
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListByToken retrieves transfers touching a token within [start, end] (ms).
func (s *TransferStore) ListByToken(_ context.Context, token string, chain domain.Chain, start, end int64) ([]*domain.Transfer, error) {
	s.mu.RLock()
	out := s.collectLocked(func(t *domain.Transfer) bool {
		return t.TokenAddress == token && t.Chain == chain && t.Timestamp >= start && t.Timestamp <= end
	})
	s.mu.RUnlock()

	sortTransfersAsc(out)
	return out, nil
}

// ListSince retrieves all transfers with timestamp >= since, oldest first.
func (s *TransferStore) ListSince(_ context.Context, since int64) ([]*domain.Transfer, error) {
	s.mu.RLock()
	out := s.collectLocked(func(t *domain.Transfer) bool { return t.Timestamp >= since })
	s.mu.RUnlock()

	sortTransfersAsc(out)
	return out, nil
}

// CountForWallet returns the number of stored transfers for a wallet.
func (s *TransferStore) CountForWallet(_ context.Context, address string, chain domain.Chain) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, t := range s.byKey {
		if t.WalletAddress == address && t.Chain == chain {
			count++
		}
	}
	return count, nil
}

func (s *TransferStore) collectLocked(keep func(*domain.Transfer) bool) []*domain.Transfer {
	var out []*domain.Transfer
	for _, t := range s.byKey {
		if keep(t) {
			out = append(out, copyTransfer(t))
		}
	}
	return out
}

func sortTransfersAsc(ts []*domain.Transfer) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Timestamp != ts[j].Timestamp {
			return ts[i].Timestamp < ts[j].Timestamp
		}
		return ts[i].ID < ts[j].ID
	})
}

// copyTransfer returns a deep copy so callers cannot mutate stored state.
func copyTransfer(t *domain.Transfer) *domain.Transfer {
	c := *t
	if t.BlockNumber != nil {
		v := *t.BlockNumber
		c.BlockNumber = &v
	}
	return &c
}
