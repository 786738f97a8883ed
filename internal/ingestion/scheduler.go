package ingestion

import (
	"sort"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// MaxBatchSize caps how many wallets one tick polls regardless of roster size.
const MaxBatchSize = 6

// Scheduler rotates polling over the active wallet roster. With N wallets and
// batch size B = min(6, ceil(N/5)), every wallet is visited exactly once per
// ceil(N/B) ticks. The slice index derives from wall-clock time so restarts
// resume the rotation instead of always starting at slice zero.
type Scheduler struct {
	tick time.Duration
}

// NewScheduler creates a scheduler keyed to the ingest tick interval.
func NewScheduler(tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Scheduler{tick: tick}
}

// BatchSize returns B for a roster of n wallets.
func BatchSize(n int) int {
	if n == 0 {
		return 0
	}
	b := (n + 4) / 5
	if b > MaxBatchSize {
		b = MaxBatchSize
	}
	return b
}

// NextSlice returns the wallets to poll for the tick containing now. The
// roster is ordered by (address, chain) so the rotation is stable across
// calls and processes. Always returns a slice, never nil.
func (s *Scheduler) NextSlice(now time.Time, active []*domain.Wallet) []*domain.Wallet {
	n := len(active)
	if n == 0 {
		return []*domain.Wallet{}
	}

	sorted := make([]*domain.Wallet, n)
	copy(sorted, active)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Address != sorted[j].Address {
			return sorted[i].Address < sorted[j].Address
		}
		return sorted[i].Chain < sorted[j].Chain
	})

	b := BatchSize(n)
	rotation := (n + b - 1) / b
	idx := int((now.UnixNano() / int64(s.tick)) % int64(rotation))

	start := idx * b
	end := start + b
	if end > n {
		end = n
	}
	return sorted[start:end]
}
