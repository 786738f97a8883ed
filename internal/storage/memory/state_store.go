package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// StateStore is an in-memory implementation of storage.StateStore.
// Safe for concurrent use.
type StateStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStateStore creates a new in-memory StateStore.
func NewStateStore() *StateStore {
	return &StateStore{values: make(map[string]string)}
}

// Compile-time interface check.
var _ storage.StateStore = (*StateStore)(nil)

// Get retrieves a value. Returns ErrNotFound for unknown keys.
func (s *StateStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return value, nil
}

// Set stores a value, creating or replacing the key.
func (s *StateStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
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
func (s *StateStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
