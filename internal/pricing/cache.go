package pricing

import (
	"sort"
	"sync"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

type cacheEntry struct {
	price    *Price
	storedAt time.Time
}

// priceCache is a bounded TTL cache keyed by (chain, token).
// When the cache grows past maxSize it first drops every expired entry;
// if still over, it drops the oldest quarter.
type priceCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

func newPriceCache(maxSize int, ttl time.Duration) *priceCache {
	return &priceCache{
		entries: make(map[string]cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(chain domain.Chain, token string) string {
	return string(chain) + ":" + token
}

func (c *priceCache) get(chain domain.Chain, token string) (*Price, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cacheKey(chain, token)]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, cacheKey(chain, token))
		return nil, false
	}
	p := *e.price
	return &p, true
}

func (c *priceCache) put(chain domain.Chain, token string, p *Price) {
	if p == nil || p.PriceUSD <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *p
	c.entries[cacheKey(chain, token)] = cacheEntry{price: &cp, storedAt: c.now()}

	if len(c.entries) > c.maxSize {
		c.evictLocked()
	}
}

// evictLocked drops expired entries, then the oldest 25% if the cache is
// still over capacity.
func (c *priceCache) evictLocked() {
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	if len(c.entries) <= c.maxSize {
		return
	}

	type aged struct {
		key      string
		storedAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{key: k, storedAt: e.storedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].storedAt.Before(all[j].storedAt) })

	drop := len(all) / 4
	if drop < 1 {
		drop = 1
	}
	for _, a := range all[:drop] {
		delete(c.entries, a.key)
	}
}

func (c *priceCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
