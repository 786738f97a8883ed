package trading

import (
	"fmt"
	"testing"
	"time"
)

func TestDedupeLRU_SeenAndRefresh(t *testing.T) {
	now := testNow
	l := newDedupeLRU(10, time.Hour, 0, func() time.Time { return now })

	if l.Seen("w:tx1") {
		t.Error("first sighting reported as seen")
	}
	if !l.Seen("w:tx1") {
		t.Error("second sighting not reported as seen")
	}
	if l.len() != 1 {
		t.Errorf("len = %d, want 1", l.len())
	}

	// A key that keeps arriving is refreshed and survives a sweep that
	// drops its colder neighbour.
	l.Seen("w:tx2")
	now = now.Add(45 * time.Minute)
	l.Seen("w:tx1")
	now = now.Add(30 * time.Minute) // tx2 is 75m old, tx1 only 30m
	l.sweep()

	if !l.Seen("w:tx1") {
		t.Error("refreshed key swept")
	}
	if l.Seen("w:tx2") {
		t.Error("stale key survived the sweep")
	}
}

func TestDedupeLRU_CapacityEviction(t *testing.T) {
	now := testNow
	l := newDedupeLRU(3, time.Hour, 0, func() time.Time { return now })

	for i := 1; i <= 3; i++ {
		l.Seen(fmt.Sprintf("w:tx%d", i))
	}
	l.Seen("w:tx1") // refresh: tx2 is now the oldest
	l.Seen("w:tx4") // over capacity

	if l.len() != 3 {
		t.Fatalf("len = %d, want capacity 3", l.len())
	}
	if l.Seen("w:tx2") {
		t.Error("oldest key survived capacity eviction")
	}
	if got := l.len(); got != 3 {
		t.Errorf("len after re-insert = %d, want 3", got)
	}
}

func TestDedupeLRU_SweepDropsExpired(t *testing.T) {
	now := testNow
	l := newDedupeLRU(10, time.Hour, 0, func() time.Time { return now })

	l.Seen("w:tx1")
	now = now.Add(30 * time.Minute)
	l.Seen("w:tx2")

	now = now.Add(31 * time.Minute) // tx1 is 61m old, tx2 31m
	l.sweep()

	if l.len() != 1 {
		t.Fatalf("len = %d, want the young entry only", l.len())
	}
	if !l.Seen("w:tx2") {
		t.Error("young entry swept")
	}

	// The Seen call above refreshed tx2. Exactly at the age limit counts
	// as expired.
	now = now.Add(time.Hour)
	l.sweep()
	if l.len() != 0 {
		t.Errorf("len = %d, want 0 after the boundary sweep", l.len())
	}
}

func TestDedupeLRU_StopIsIdempotent(t *testing.T) {
	l := newDedupeLRU(10, time.Hour, time.Millisecond, nil)
	l.Seen("w:tx1")
	l.stop()
	l.stop()
}
