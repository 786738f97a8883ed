package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// DiscoveryStore implements storage.DiscoveryStore using PostgreSQL.
type DiscoveryStore struct {
	pool *Pool
}

// NewDiscoveryStore creates a new DiscoveryStore.
func NewDiscoveryStore(pool *Pool) *DiscoveryStore {
	return &DiscoveryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DiscoveryStore = (*DiscoveryStore)(nil)

const discoveredColumns = `
	address, chain, first_seen, profitability_score, estimated_win_rate,
	tracked_trades, successful_tracked_trades, promoted, promoted_date,
	discovery_method, rejection_reason
`

// Insert adds a candidate. Returns ErrDuplicateKey when already discovered.
func (s *DiscoveryStore) Insert(ctx context.Context, d *domain.DiscoveredWallet) error {
	if d.Address == "" || !d.Chain.Valid() || d.FirstSeen <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO discovered_wallets (` + discoveredColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		d.Address, d.Chain, d.FirstSeen, d.ProfitabilityScore, d.EstimatedWinRate,
		d.TrackedTrades, d.SuccessfulTrackedTrades, d.Promoted, d.PromotedDate,
		d.DiscoveryMethod, d.RejectionReason,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert discovered wallet: %w", err)
	}
	return nil
}

// Get retrieves a candidate. Returns ErrNotFound if not exists.
func (s *DiscoveryStore) Get(ctx context.Context, address string, chain domain.Chain) (*domain.DiscoveredWallet, error) {
	query := `SELECT ` + discoveredColumns + ` FROM discovered_wallets WHERE address = $1 AND chain = $2`

	row := s.pool.QueryRow(ctx, query, address, chain)
	d, err := scanDiscovered(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get discovered wallet: %w", err)
	}
	return d, nil
}

// List retrieves candidates, best score first.
func (s *DiscoveryStore) List(ctx context.Context, promoted *bool) ([]*domain.DiscoveredWallet, error) {
	query := `SELECT ` + discoveredColumns + ` FROM discovered_wallets`
	args := []any{}
	if promoted != nil {
		query += ` WHERE promoted = $1`
		args = append(args, *promoted)
	}
	query += ` ORDER BY profitability_score DESC, address ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list discovered wallets: %w", err)
	}
	defer rows.Close()

	var out []*domain.DiscoveredWallet
	for rows.Next() {
		d, err := scanDiscovered(rows)
		if err != nil {
			return nil, fmt.Errorf("scan discovered wallet row: %w", err)
		}
		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discovered wallet rows: %w", err)
	}

	return out, nil
}

// Promote marks the candidate promoted at ts. A second promotion returns
// ErrDuplicateKey so the caller can report it without re-materializing.
func (s *DiscoveryStore) Promote(ctx context.Context, address string, chain domain.Chain, ts int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE discovered_wallets SET promoted = TRUE, promoted_date = $3 WHERE address = $1 AND chain = $2 AND promoted = FALSE`,
		address, chain, ts,
	)
	if err != nil {
		return fmt.Errorf("promote discovered wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, address, chain); err != nil {
			return err
		}
		return storage.ErrDuplicateKey
	}
	return nil
}

// Reject records an operator rejection reason.
func (s *DiscoveryStore) Reject(ctx context.Context, address string, chain domain.Chain, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE discovered_wallets SET rejection_reason = $3 WHERE address = $1 AND chain = $2`,
		address, chain, reason,
	)
	if err != nil {
		return fmt.Errorf("reject discovered wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CountInsertedSince counts candidates first seen at or after since (ms).
func (s *DiscoveryStore) CountInsertedSince(ctx context.Context, since int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM discovered_wallets WHERE first_seen >= $1`,
		since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count discovered wallets: %w", err)
	}
	return count, nil
}

// scanDiscovered scans a single row into a DiscoveredWallet.
func scanDiscovered(row pgx.Row) (*domain.DiscoveredWallet, error) {
	var d domain.DiscoveredWallet

	err := row.Scan(
		&d.Address, &d.Chain, &d.FirstSeen, &d.ProfitabilityScore, &d.EstimatedWinRate,
		&d.TrackedTrades, &d.SuccessfulTrackedTrades, &d.Promoted, &d.PromotedDate,
		&d.DiscoveryMethod, &d.RejectionReason,
	)
	if err != nil {
		return nil, err
	}

	return &d, nil
}
