package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// TransferStore implements storage.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *Pool
}

// NewTransferStore creates a new TransferStore.
func NewTransferStore(pool *Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransferStore = (*TransferStore)(nil)

const transferColumns = `
	id, wallet_address, chain, tx_hash, token_address, token_symbol,
	action, amount, price_usd, total_value_usd, timestamp, block_number, created_at
`

// Insert adds one observed transfer. Returns ErrDuplicateKey when
// (wallet_address, tx_hash, chain) exists; ErrInvalidInput on missing fields.
func (s *TransferStore) Insert(ctx context.Context, t *domain.Transfer) error {
	if t.WalletAddress == "" || t.TxHash == "" || t.TokenAddress == "" || !t.Chain.Valid() {
		return storage.ErrInvalidInput
	}
	if t.Action != domain.ActionBuy && t.Action != domain.ActionSell {
		return storage.ErrInvalidInput
	}
	if t.Amount < 0 || t.Timestamp <= 0 {
		return storage.ErrInvalidInput
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().UnixMilli()
	}

	query := `
		INSERT INTO transfers (
			wallet_address, chain, tx_hash, token_address, token_symbol,
			action, amount, price_usd, total_value_usd, timestamp, block_number, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		t.WalletAddress, t.Chain, t.TxHash, t.TokenAddress, t.TokenSymbol,
		t.Action, t.Amount, t.PriceUSD, t.TotalValueUSD, t.Timestamp, t.BlockNumber, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// ListByWallet retrieves a wallet's transfers, newest first.
func (s *TransferStore) ListByWallet(ctx context.Context, address string, chain domain.Chain, limit int) ([]*domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE wallet_address = $1 AND chain = $2
		ORDER BY timestamp DESC, id DESC
	`
	args := []any{address, chain}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers by wallet: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// ListByToken retrieves transfers touching a token within [start, end] (ms).
func (s *TransferStore) ListByToken(ctx context.Context, token string, chain domain.Chain, start, end int64) ([]*domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE token_address = $1 AND chain = $2 AND timestamp >= $3 AND timestamp <= $4
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, token, chain, start, end)
	if err != nil {
		return nil, fmt.Errorf("list transfers by token: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// ListSince retrieves all transfers with timestamp >= since, oldest first.
func (s *TransferStore) ListSince(ctx context.Context, since int64) ([]*domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE timestamp >= $1
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("list transfers since: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// CountForWallet returns the number of stored transfers for a wallet.
func (s *TransferStore) CountForWallet(ctx context.Context, address string, chain domain.Chain) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transfers WHERE wallet_address = $1 AND chain = $2`,
		address, chain,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transfers: %w", err)
	}
	return count, nil
}

// scanTransfers scans multiple rows into a slice of Transfer.
func scanTransfers(rows pgx.Rows) ([]*domain.Transfer, error) {
	var transfers []*domain.Transfer

	for rows.Next() {
		var t domain.Transfer

		err := rows.Scan(
			&t.ID, &t.WalletAddress, &t.Chain, &t.TxHash, &t.TokenAddress, &t.TokenSymbol,
			&t.Action, &t.Amount, &t.PriceUSD, &t.TotalValueUSD, &t.Timestamp, &t.BlockNumber, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}

		transfers = append(transfers, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer rows: %w", err)
	}

	return transfers, nil
}
