package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// StrategyPerfStore is an in-memory implementation of storage.StrategyPerfStore.
// Safe for concurrent use.
type StrategyPerfStore struct {
	mu   sync.RWMutex
	rows map[string]*domain.StrategyPerformance
}

// NewStrategyPerfStore creates a new in-memory StrategyPerfStore.
func NewStrategyPerfStore() *StrategyPerfStore {
	return &StrategyPerfStore{rows: make(map[string]*domain.StrategyPerformance)}
}

// Compile-time interface check.
var _ storage.StrategyPerfStore = (*StrategyPerfStore)(nil)

func perfKey(strategy, date string) string {
	return strategy + "|" + date
}

func (s *StrategyPerfStore) rowLocked(strategy, date string) *domain.StrategyPerformance {
	key := perfKey(strategy, date)
	row, ok := s.rows[key]
	if !ok {
		row = &domain.StrategyPerformance{StrategyType: strategy, Date: date}
		s.rows[key] = row
	}
	return row
}

// RecordOpen folds one trade open into the (strategy, date) row.
func (s *StrategyPerfStore) RecordOpen(_ context.Context, strategy, date string, entryValueUSD float64) error {
	if strategy == "" || date == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.rowLocked(strategy, date)
	row.TradesOpened++
	row.VolumeUSD += entryValueUSD
	return nil
}

// RecordClose folds one realized exit leg into the (strategy, date) row.
func (s *StrategyPerfStore) RecordClose(_ context.Context, strategy, date string, pnlUSD float64, final bool) error {
	if strategy == "" || date == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.rowLocked(strategy, date)
	row.PnLUSD += pnlUSD
	if final {
		row.TradesClosed++
		if pnlUSD > 0 {
			row.Wins++
		} else {
			row.Losses++
		}
	}
	return nil
}

// ListSince retrieves rows with date >= since, newest first.
func (s *StrategyPerfStore) ListSince(_ context.Context, since string) ([]*domain.StrategyPerformance, error) {
	s.mu.RLock()
	var out []*domain.StrategyPerformance
	for _, row := range s.rows {
		if row.Date >= since {
			c := *row
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].StrategyType < out[j].StrategyType
	})
	return out, nil
}
