package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

const walletColumns = `
	address, chain, strategy_type, win_rate,
	total_trades, successful_trades, total_pnl_usd, avg_trade_size_usd,
	biggest_win_usd, biggest_loss_usd, status, date_added, last_checked, notes
`

// Upsert inserts or replaces the wallet identified by (address, chain).
func (s *WalletStore) Upsert(ctx context.Context, w *domain.Wallet) error {
	if w.Address == "" || !w.Chain.Valid() {
		return storage.ErrInvalidInput
	}
	if w.Status == "" {
		w.Status = domain.WalletStatusActive
	}

	query := `
		INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (address, chain) DO UPDATE SET
			strategy_type = EXCLUDED.strategy_type,
			win_rate = EXCLUDED.win_rate,
			total_trades = EXCLUDED.total_trades,
			successful_trades = EXCLUDED.successful_trades,
			total_pnl_usd = EXCLUDED.total_pnl_usd,
			avg_trade_size_usd = EXCLUDED.avg_trade_size_usd,
			biggest_win_usd = EXCLUDED.biggest_win_usd,
			biggest_loss_usd = EXCLUDED.biggest_loss_usd,
			status = EXCLUDED.status,
			last_checked = EXCLUDED.last_checked,
			notes = EXCLUDED.notes
	`

	_, err := s.pool.Exec(ctx, query,
		w.Address, w.Chain, w.StrategyType, w.WinRate,
		w.TotalTrades, w.SuccessfulTrades, w.TotalPnLUSD, w.AvgTradeSizeUSD,
		w.BiggestWinUSD, w.BiggestLossUSD, w.Status, w.DateAdded, w.LastChecked, w.Notes,
	)
	if err != nil {
		return fmt.Errorf("upsert wallet: %w", err)
	}
	return nil
}

// Get retrieves a wallet. Returns ErrNotFound if not tracked.
func (s *WalletStore) Get(ctx context.Context, address string, chain domain.Chain) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE address = $1 AND chain = $2`

	row := s.pool.QueryRow(ctx, query, address, chain)
	w, err := scanWallet(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// List retrieves all wallets ordered by (chain, address).
func (s *WalletStore) List(ctx context.Context) ([]*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets ORDER BY chain ASC, address ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	return scanWallets(rows)
}

// ListActive retrieves wallets with status=active ordered by (chain, address).
func (s *WalletStore) ListActive(ctx context.Context) ([]*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE status = $1 ORDER BY chain ASC, address ASC`

	rows, err := s.pool.Query(ctx, query, domain.WalletStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active wallets: %w", err)
	}
	defer rows.Close()

	return scanWallets(rows)
}

// SetStatus updates the lifecycle status.
func (s *WalletStore) SetStatus(ctx context.Context, address string, chain domain.Chain, status string) error {
	switch status {
	case domain.WalletStatusActive, domain.WalletStatusPaused, domain.WalletStatusDemoted:
	default:
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE wallets SET status = $3 WHERE address = $1 AND chain = $2`,
		address, chain, status,
	)
	if err != nil {
		return fmt.Errorf("set wallet status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// TouchLastChecked records a completed poll at ts.
func (s *WalletStore) TouchLastChecked(ctx context.Context, address string, chain domain.Chain, ts int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE wallets SET last_checked = $3 WHERE address = $1 AND chain = $2`,
		address, chain, ts,
	)
	if err != nil {
		return fmt.Errorf("touch wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RecordTradeOutcome folds one realized close into the rolling aggregates.
// Column references on the right-hand side read the pre-update row, so the
// win-rate and average recompute from the old counters in one statement.
func (s *WalletStore) RecordTradeOutcome(ctx context.Context, address string, chain domain.Chain, entryValueUSD, pnlUSD float64) error {
	query := `
		UPDATE wallets SET
			total_trades = total_trades + 1,
			successful_trades = successful_trades + CASE WHEN $4 > 0 THEN 1 ELSE 0 END,
			total_pnl_usd = total_pnl_usd + $4,
			avg_trade_size_usd = (avg_trade_size_usd * total_trades + $3) / (total_trades + 1),
			biggest_win_usd = GREATEST(biggest_win_usd, $4),
			biggest_loss_usd = LEAST(biggest_loss_usd, $4),
			win_rate = (successful_trades + CASE WHEN $4 > 0 THEN 1 ELSE 0 END)::double precision / (total_trades + 1)
		WHERE address = $1 AND chain = $2
	`

	tag, err := s.pool.Exec(ctx, query, address, chain, entryValueUSD, pnlUSD)
	if err != nil {
		return fmt.Errorf("record wallet trade outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanWallet scans a single row into a Wallet.
func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet

	err := row.Scan(
		&w.Address, &w.Chain, &w.StrategyType, &w.WinRate,
		&w.TotalTrades, &w.SuccessfulTrades, &w.TotalPnLUSD, &w.AvgTradeSizeUSD,
		&w.BiggestWinUSD, &w.BiggestLossUSD, &w.Status, &w.DateAdded, &w.LastChecked, &w.Notes,
	)
	if err != nil {
		return nil, err
	}

	return &w, nil
}

// scanWallets scans multiple rows into a slice of Wallet.
func scanWallets(rows pgx.Rows) ([]*domain.Wallet, error) {
	var wallets []*domain.Wallet

	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}

	return wallets, nil
}
