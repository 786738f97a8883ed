package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
// Safe for concurrent use.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[int64]*domain.PaperTrade
	nextID int64
}

// NewTradeStore creates a new in-memory TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{trades: make(map[int64]*domain.PaperTrade), nextID: 1}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Open inserts a new open trade and assigns its ID.
func (s *TradeStore) Open(_ context.Context, t *domain.PaperTrade) error {
	if t.TokenAddress == "" || !t.Chain.Valid() || t.StrategyUsed == "" {
		return storage.ErrInvalidInput
	}
	if t.EntryPrice <= 0 || t.Amount <= 0 || t.EntryTime <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := copyTrade(t)
	c.ID = s.nextID
	s.nextID++
	c.Status = domain.TradeStatusOpen
	c.EntryValueUSD = c.EntryPrice * c.Amount
	if c.PeakPrice < c.EntryPrice {
		c.PeakPrice = c.EntryPrice
	}
	s.trades[c.ID] = c

	t.ID = c.ID
	t.Status = c.Status
	t.EntryValueUSD = c.EntryValueUSD
	t.PeakPrice = c.PeakPrice
	return nil
}

// Get retrieves a trade by id. Returns ErrNotFound if not exists.
func (s *TradeStore) Get(_ context.Context, id int64) (*domain.PaperTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyTrade(t), nil
}

// ListOpen retrieves open trades ordered by entry_time ASC.
func (s *TradeStore) ListOpen(_ context.Context) ([]*domain.PaperTrade, error) {
	s.mu.RLock()
	var out []*domain.PaperTrade
	for _, t := range s.trades {
		if t.Status == domain.TradeStatusOpen {
			out = append(out, copyTrade(t))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime != out[j].EntryTime {
			return out[i].EntryTime < out[j].EntryTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListClosed retrieves closed trades matching the filter, newest first.
func (s *TradeStore) ListClosed(_ context.Context, f storage.TradeFilter) ([]*domain.PaperTrade, error) {
	s.mu.RLock()
	var out []*domain.PaperTrade
	for _, t := range s.trades {
		if t.Status != domain.TradeStatusClosed {
			continue
		}
		if f.SourceWallet != "" && t.SourceWallet != f.SourceWallet {
			continue
		}
		if f.Strategy != "" && t.StrategyUsed != f.Strategy {
			continue
		}
		if f.Chain != "" && t.Chain != f.Chain {
			continue
		}
		if f.Since > 0 && (t.ExitTime == nil || *t.ExitTime < f.Since) {
			continue
		}
		out = append(out, copyTrade(t))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ei, ej := int64(0), int64(0)
		if out[i].ExitTime != nil {
			ei = *out[i].ExitTime
		}
		if out[j].ExitTime != nil {
			ej = *out[j].ExitTime
		}
		if ei != ej {
			return ei > ej
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// UpdatePeakPrice raises peak_price when higher; closed trades are a no-op.
func (s *TradeStore) UpdatePeakPrice(_ context.Context, id int64, peak float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[id]
	if !ok || t.Status != domain.TradeStatusOpen {
		return nil
	}
	if peak > t.PeakPrice {
		t.PeakPrice = peak
	}
	return nil
}

// ReduceAmount shrinks an open trade to the remaining token units.
func (s *TradeStore) ReduceAmount(_ context.Context, id int64, remaining float64) error {
	if remaining <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[id]
	if !ok {
		return storage.ErrNotFound
	}
	if t.Status != domain.TradeStatusOpen {
		return storage.ErrTradeClosed
	}
	t.Amount = remaining
	t.EntryValueUSD = t.EntryPrice * remaining
	return nil
}

// AppendNote appends marker to the trade's notes journal.
func (s *TradeStore) AppendNote(_ context.Context, id int64, marker string) error {
	if marker == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[id]
	if !ok {
		return storage.ErrNotFound
	}
	if t.Notes == "" {
		t.Notes = marker
	} else {
		t.Notes += "," + marker
	}
	return nil
}

// Close finalizes an open trade.
func (s *TradeStore) Close(_ context.Context, id int64, exitPrice float64, exitTime int64, reason string) error {
	if exitPrice <= 0 || exitTime <= 0 || reason == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[id]
	if !ok {
		return storage.ErrNotFound
	}
	if t.Status != domain.TradeStatusOpen {
		return storage.ErrTradeClosed
	}

	exitValue := exitPrice * t.Amount
	pnl := (exitPrice - t.EntryPrice) * t.Amount
	pnlPct := (exitPrice - t.EntryPrice) / t.EntryPrice * 100

	t.Status = domain.TradeStatusClosed
	t.ExitPrice = &exitPrice
	t.ExitValueUSD = &exitValue
	t.PnL = &pnl
	t.PnLPercent = &pnlPct
	t.ExitTime = &exitTime
	t.ExitReason = &reason
	return nil
}

// copyTrade returns a deep copy so callers cannot mutate stored state.
func copyTrade(t *domain.PaperTrade) *domain.PaperTrade {
	c := *t
	copyFloat := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		v := *p
		return &v
	}
	c.ExitPrice = copyFloat(t.ExitPrice)
	c.ExitValueUSD = copyFloat(t.ExitValueUSD)
	c.PnL = copyFloat(t.PnL)
	c.PnLPercent = copyFloat(t.PnLPercent)
	if t.ExitTime != nil {
		v := *t.ExitTime
		c.ExitTime = &v
	}
	if t.ExitReason != nil {
		v := *t.ExitReason
		c.ExitReason = &v
	}
	return &c
}
