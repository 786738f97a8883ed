package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `
	address, chain, symbol, decimals, first_seen, creation_time,
	current_price_usd, max_price_usd, market_cap_usd, last_updated
`

// AddOrUpdate upserts the token. max_price_usd is raised with GREATEST in
// the same statement so concurrent writers cannot lose the peak; a zero
// incoming price never clobbers a known current price.
func (s *TokenStore) AddOrUpdate(ctx context.Context, t *domain.Token) error {
	if t.Address == "" || !t.Chain.Valid() {
		return storage.ErrInvalidInput
	}
	if t.FirstSeen == 0 {
		t.FirstSeen = time.Now().UnixMilli()
	}
	if t.LastUpdated == 0 {
		t.LastUpdated = time.Now().UnixMilli()
	}

	query := `
		INSERT INTO tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, GREATEST($7, $8), $9, $10)
		ON CONFLICT (address, chain) DO UPDATE SET
			symbol = CASE WHEN EXCLUDED.symbol <> '' THEN EXCLUDED.symbol ELSE tokens.symbol END,
			decimals = CASE WHEN EXCLUDED.decimals > 0 THEN EXCLUDED.decimals ELSE tokens.decimals END,
			creation_time = COALESCE(tokens.creation_time, EXCLUDED.creation_time),
			current_price_usd = CASE WHEN EXCLUDED.current_price_usd > 0 THEN EXCLUDED.current_price_usd ELSE tokens.current_price_usd END,
			max_price_usd = GREATEST(tokens.max_price_usd, EXCLUDED.current_price_usd),
			market_cap_usd = CASE WHEN EXCLUDED.market_cap_usd > 0 THEN EXCLUDED.market_cap_usd ELSE tokens.market_cap_usd END,
			last_updated = EXCLUDED.last_updated
	`

	_, err := s.pool.Exec(ctx, query,
		t.Address, t.Chain, t.Symbol, t.Decimals, t.FirstSeen, t.CreationTime,
		t.CurrentPriceUSD, t.MaxPriceUSD, t.MarketCapUSD, t.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// Get retrieves a token. Returns ErrNotFound if never observed.
func (s *TokenStore) Get(ctx context.Context, address string, chain domain.Chain) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE address = $1 AND chain = $2`

	row := s.pool.QueryRow(ctx, query, address, chain)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

// ListPumpCandidates retrieves recently seen tokens whose peak-to-current
// ratio is at least ratio. Written multiplication-side so a zero current
// price can never divide.
func (s *TokenStore) ListPumpCandidates(ctx context.Context, since int64, ratio float64) ([]*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE first_seen >= $1
		  AND current_price_usd > 0
		  AND max_price_usd >= current_price_usd * $2
		ORDER BY max_price_usd / current_price_usd DESC, address ASC
	`

	rows, err := s.pool.Query(ctx, query, since, ratio)
	if err != nil {
		return nil, fmt.Errorf("list pump candidates: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}

	return tokens, nil
}

// scanToken scans a single row into a Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token

	err := row.Scan(
		&t.Address, &t.Chain, &t.Symbol, &t.Decimals, &t.FirstSeen, &t.CreationTime,
		&t.CurrentPriceUSD, &t.MaxPriceUSD, &t.MarketCapUSD, &t.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
