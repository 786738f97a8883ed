package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	id, token_address, token_symbol, chain, strategy_used, source_wallet,
	entry_price, amount, entry_value_usd, peak_price, status, entry_time,
	exit_price, exit_value_usd, pnl, pnl_percentage, exit_time, exit_reason, notes
`

// Open inserts a new open trade and assigns its ID. The peak starts at the
// entry price.
func (s *TradeStore) Open(ctx context.Context, t *domain.PaperTrade) error {
	if t.TokenAddress == "" || !t.Chain.Valid() || t.StrategyUsed == "" {
		return storage.ErrInvalidInput
	}
	if t.EntryPrice <= 0 || t.Amount <= 0 || t.EntryTime <= 0 {
		return storage.ErrInvalidInput
	}
	t.Status = domain.TradeStatusOpen
	t.EntryValueUSD = t.EntryPrice * t.Amount
	if t.PeakPrice < t.EntryPrice {
		t.PeakPrice = t.EntryPrice
	}

	query := `
		INSERT INTO paper_trades (
			token_address, token_symbol, chain, strategy_used, source_wallet,
			entry_price, amount, entry_value_usd, peak_price, status, entry_time, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		t.TokenAddress, t.TokenSymbol, t.Chain, t.StrategyUsed, t.SourceWallet,
		t.EntryPrice, t.Amount, t.EntryValueUSD, t.PeakPrice, t.Status, t.EntryTime, t.Notes,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("open paper trade: %w", err)
	}
	return nil
}

// Get retrieves a trade by id. Returns ErrNotFound if not exists.
func (s *TradeStore) Get(ctx context.Context, id int64) (*domain.PaperTrade, error) {
	query := `SELECT ` + tradeColumns + ` FROM paper_trades WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get paper trade: %w", err)
	}
	return t, nil
}

// ListOpen retrieves open trades ordered by entry_time ASC.
func (s *TradeStore) ListOpen(ctx context.Context) ([]*domain.PaperTrade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM paper_trades
		WHERE status = $1
		ORDER BY entry_time ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.TradeStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("list open trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// ListClosed retrieves closed trades matching the filter, newest first.
func (s *TradeStore) ListClosed(ctx context.Context, f storage.TradeFilter) ([]*domain.PaperTrade, error) {
	query := `SELECT ` + tradeColumns + ` FROM paper_trades WHERE status = $1`
	args := []any{domain.TradeStatusClosed}

	if f.SourceWallet != "" {
		args = append(args, f.SourceWallet)
		query += fmt.Sprintf(" AND source_wallet = $%d", len(args))
	}
	if f.Strategy != "" {
		args = append(args, f.Strategy)
		query += fmt.Sprintf(" AND strategy_used = $%d", len(args))
	}
	if f.Chain != "" {
		args = append(args, f.Chain)
		query += fmt.Sprintf(" AND chain = $%d", len(args))
	}
	if f.Since > 0 {
		args = append(args, f.Since)
		query += fmt.Sprintf(" AND exit_time >= $%d", len(args))
	}

	query += " ORDER BY exit_time DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list closed trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// UpdatePeakPrice raises peak_price when higher; closed trades are a no-op.
func (s *TradeStore) UpdatePeakPrice(ctx context.Context, id int64, peak float64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE paper_trades SET peak_price = GREATEST(peak_price, $2) WHERE id = $1 AND status = $3`,
		id, peak, domain.TradeStatusOpen,
	)
	if err != nil {
		return fmt.Errorf("update peak price: %w", err)
	}
	return nil
}

// ReduceAmount shrinks an open trade to the remaining token units.
func (s *TradeStore) ReduceAmount(ctx context.Context, id int64, remaining float64) error {
	if remaining <= 0 {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE paper_trades SET amount = $2, entry_value_usd = entry_price * $2 WHERE id = $1 AND status = $3`,
		id, remaining, domain.TradeStatusOpen,
	)
	if err != nil {
		return fmt.Errorf("reduce trade amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.openMissReason(ctx, id)
	}
	return nil
}

// AppendNote appends marker to the trade's notes journal.
func (s *TradeStore) AppendNote(ctx context.Context, id int64, marker string) error {
	if marker == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE paper_trades
		SET notes = CASE WHEN notes = '' THEN $2 ELSE notes || ',' || $2 END
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, marker)
	if err != nil {
		return fmt.Errorf("append trade note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Close finalizes an open trade, computing the close fields from exitPrice
// and the remaining amount in one statement.
func (s *TradeStore) Close(ctx context.Context, id int64, exitPrice float64, exitTime int64, reason string) error {
	if exitPrice <= 0 || exitTime <= 0 || reason == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE paper_trades SET
			status = $5,
			exit_price = $2,
			exit_value_usd = amount * $2,
			pnl = ($2 - entry_price) * amount,
			pnl_percentage = ($2 - entry_price) / entry_price * 100,
			exit_time = $3,
			exit_reason = $4
		WHERE id = $1 AND status = $6
	`

	tag, err := s.pool.Exec(ctx, query,
		id, exitPrice, exitTime, reason, domain.TradeStatusClosed, domain.TradeStatusOpen,
	)
	if err != nil {
		return fmt.Errorf("close paper trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.openMissReason(ctx, id)
	}
	return nil
}

// openMissReason distinguishes "no such trade" from "trade already closed"
// after a guarded update matched zero rows.
func (s *TradeStore) openMissReason(ctx context.Context, id int64) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM paper_trades WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("check trade status: %w", err)
	}
	if status != domain.TradeStatusOpen {
		return storage.ErrTradeClosed
	}
	return storage.ErrNotFound
}

// scanTrade scans a single row into a PaperTrade.
func scanTrade(row pgx.Row) (*domain.PaperTrade, error) {
	var t domain.PaperTrade

	err := row.Scan(
		&t.ID, &t.TokenAddress, &t.TokenSymbol, &t.Chain, &t.StrategyUsed, &t.SourceWallet,
		&t.EntryPrice, &t.Amount, &t.EntryValueUSD, &t.PeakPrice, &t.Status, &t.EntryTime,
		&t.ExitPrice, &t.ExitValueUSD, &t.PnL, &t.PnLPercent, &t.ExitTime, &t.ExitReason, &t.Notes,
	)
	if err != nil {
		return nil, err
	}

	// Rows created before the peak_price migration carry a zero peak.
	if t.PeakPrice < t.EntryPrice {
		t.PeakPrice = t.EntryPrice
	}

	return &t, nil
}

// scanTrades scans multiple rows into a slice of PaperTrade.
func scanTrades(rows pgx.Rows) ([]*domain.PaperTrade, error) {
	var trades []*domain.PaperTrade

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
