// Package ingestion schedules wallet polling and funnels observed transfers
// into storage. Chain clients live in their own packages and satisfy the
// Source interface; this package owns rotation, batching and dedup cursors.
package ingestion

import "sync"

// Cursors is a bounded per-wallet cursor map shared by the chain clients
// (last block number for EVM, last signature for Solana). When the map grows
// past its capacity the oldest entries are evicted; a Put refreshes recency.
// Safe for concurrent use.
type Cursors[V any] struct {
	mu      sync.Mutex
	maxSize int
	values  map[string]V
	order   []string
}

// NewCursors creates a cursor map holding at most maxSize entries.
func NewCursors[V any](maxSize int) *Cursors[V] {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Cursors[V]{
		maxSize: maxSize,
		values:  make(map[string]V),
	}
}

// Get returns the cursor for key, if any.
func (c *Cursors[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// Put stores the cursor for key, evicting the oldest entries when over
// capacity.
func (c *Cursors[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.values[key]; exists {
		c.touchLocked(key)
	} else {
		c.order = append(c.order, key)
	}
	c.values[key] = value

	for len(c.values) > c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.values, oldest)
	}
}

// touchLocked moves key to the back of the eviction order.
func (c *Cursors[V]) touchLocked(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}

// Len reports the number of tracked cursors.
func (c *Cursors[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}
