package postgres

import (
	"context"
	"fmt"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// StrategyPerfStore implements storage.StrategyPerfStore using PostgreSQL.
type StrategyPerfStore struct {
	pool *Pool
}

// NewStrategyPerfStore creates a new StrategyPerfStore.
func NewStrategyPerfStore(pool *Pool) *StrategyPerfStore {
	return &StrategyPerfStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StrategyPerfStore = (*StrategyPerfStore)(nil)

// RecordOpen folds one trade open into the (strategy, date) row.
func (s *StrategyPerfStore) RecordOpen(ctx context.Context, strategy, date string, entryValueUSD float64) error {
	if strategy == "" || date == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO strategy_performance (strategy_type, date, trades_opened, volume_usd)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (strategy_type, date) DO UPDATE SET
			trades_opened = strategy_performance.trades_opened + 1,
			volume_usd = strategy_performance.volume_usd + EXCLUDED.volume_usd
	`

	if _, err := s.pool.Exec(ctx, query, strategy, date, entryValueUSD); err != nil {
		return fmt.Errorf("record strategy open: %w", err)
	}
	return nil
}

// RecordClose folds one realized exit leg into the (strategy, date) row.
// Partial-exit legs contribute pnl only; the final leg also counts toward
// trades_closed and the win/loss tallies.
func (s *StrategyPerfStore) RecordClose(ctx context.Context, strategy, date string, pnlUSD float64, final bool) error {
	if strategy == "" || date == "" {
		return storage.ErrInvalidInput
	}

	closed, wins, losses := 0, 0, 0
	if final {
		closed = 1
		if pnlUSD > 0 {
			wins = 1
		} else {
			losses = 1
		}
	}

	query := `
		INSERT INTO strategy_performance (strategy_type, date, trades_closed, wins, losses, pnl_usd)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (strategy_type, date) DO UPDATE SET
			trades_closed = strategy_performance.trades_closed + EXCLUDED.trades_closed,
			wins = strategy_performance.wins + EXCLUDED.wins,
			losses = strategy_performance.losses + EXCLUDED.losses,
			pnl_usd = strategy_performance.pnl_usd + EXCLUDED.pnl_usd
	`

	if _, err := s.pool.Exec(ctx, query, strategy, date, closed, wins, losses, pnlUSD); err != nil {
		return fmt.Errorf("record strategy close: %w", err)
	}
	return nil
}

// ListSince retrieves rows with date >= since, newest first.
func (s *StrategyPerfStore) ListSince(ctx context.Context, since string) ([]*domain.StrategyPerformance, error) {
	query := `
		SELECT strategy_type, date, trades_opened, trades_closed, wins, losses, pnl_usd, volume_usd
		FROM strategy_performance
		WHERE date >= $1
		ORDER BY date DESC, strategy_type ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("list strategy performance: %w", err)
	}
	defer rows.Close()

	var out []*domain.StrategyPerformance
	for rows.Next() {
		var p domain.StrategyPerformance
		err := rows.Scan(
			&p.StrategyType, &p.Date, &p.TradesOpened, &p.TradesClosed,
			&p.Wins, &p.Losses, &p.PnLUSD, &p.VolumeUSD,
		)
		if err != nil {
			return nil, fmt.Errorf("scan strategy performance row: %w", err)
		}
		out = append(out, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strategy performance rows: %w", err)
	}

	return out, nil
}
