package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// StateStore implements storage.StateStore using PostgreSQL.
type StateStore struct {
	pool *Pool
}

// NewStateStore creates a new StateStore.
func NewStateStore(pool *Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StateStore = (*StateStore)(nil)

// Get retrieves a value. Returns ErrNotFound for unknown keys.
func (s *StateStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM system_state WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if isNotFoundError(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get system state: %w", err)
	}
	return value, nil
}

// Set stores a value, creating or replacing the key.
func (s *StateStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO system_state (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := s.pool.Exec(ctx, query, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("set system state: %w", err)
	}
	return nil
}

// GetFloat retrieves a value parsed as float64.
func (s *StateStore) GetFloat(ctx context.Context, key string) (float64, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, storage.ErrInvalidInput
	}
	return f, nil
}

// SetFloat stores a float64 value.
func (s *StateStore) SetFloat(ctx context.Context, key string, value float64) error {
	return s.Set(ctx, key, strconv.FormatFloat(value, 'f', -1, 64))
}

// Delete removes a key. Unknown keys are a no-op.
func (s *StateStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM system_state WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete system state: %w", err)
	}
	return nil
}
