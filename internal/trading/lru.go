package trading

import (
	"container/list"
	"sync"
	"time"
)

// Default dedup tunables.
const (
	DefaultDedupeCap  = 10_000
	DefaultDedupeAge  = time.Hour
	DefaultSweepEvery = 5 * time.Minute
)

type dedupeEntry struct {
	key    string
	seenAt time.Time
}

// dedupeLRU remembers recently processed transfer keys so retried polls do
// not re-run the strategy pass. It is a bound on wasted work, not the
// durable guard; that is the transfers table's unique constraint.
type dedupeLRU struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently seen
	capacity int
	maxAge   time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newDedupeLRU(capacity int, maxAge, sweepEvery time.Duration, now func() time.Time) *dedupeLRU {
	if capacity <= 0 {
		capacity = DefaultDedupeCap
	}
	if maxAge <= 0 {
		maxAge = DefaultDedupeAge
	}
	if now == nil {
		now = time.Now
	}
	l := &dedupeLRU{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		maxAge:   maxAge,
		now:      now,
		stopCh:   make(chan struct{}),
	}
	if sweepEvery > 0 {
		go l.sweepLoop(sweepEvery)
	}
	return l
}

// Seen records key and reports whether it was already present. Hits are
// refreshed so a key that keeps arriving never ages out mid-retry.
func (l *dedupeLRU) Seen(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.entries[key]; ok {
		el.Value.(*dedupeEntry).seenAt = l.now()
		l.order.MoveToFront(el)
		return true
	}

	l.entries[key] = l.order.PushFront(&dedupeEntry{key: key, seenAt: l.now()})
	for l.order.Len() > l.capacity {
		l.dropOldestLocked()
	}
	return false
}

func (l *dedupeLRU) dropOldestLocked() {
	back := l.order.Back()
	if back == nil {
		return
	}
	l.order.Remove(back)
	delete(l.entries, back.Value.(*dedupeEntry).key)
}

// sweep drops entries older than maxAge, oldest first.
func (l *dedupeLRU) sweep() {
	cutoff := l.now().Add(-l.maxAge)

	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		back := l.order.Back()
		if back == nil || back.Value.(*dedupeEntry).seenAt.After(cutoff) {
			return
		}
		l.order.Remove(back)
		delete(l.entries, back.Value.(*dedupeEntry).key)
	}
}

func (l *dedupeLRU) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case <-t.C:
			l.sweep()
		}
	}
}

// stop terminates the sweeper goroutine. Idempotent.
func (l *dedupeLRU) stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *dedupeLRU) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
