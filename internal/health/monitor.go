// Package health probes the external providers the system depends on and
// caches their status for the boundary API. Probes are cheap single
// requests; an optional provider failing while its group's critical
// provider is healthy is demoted to a warning.
package health

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Provider tiers. Critical failures mean a whole capability is down;
// optional failures degrade quality but the cascade covers for them.
const (
	TierCritical = "critical"
	TierOptional = "optional"
)

// Severity levels reported per provider.
const (
	SeverityOK      = "ok"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Default monitor tunables.
const (
	DefaultMinInterval  = time.Minute
	DefaultProbeTimeout = 10 * time.Second
)

// Probe describes one provider check.
type Probe struct {
	Provider string
	Tier     string // TierCritical or TierOptional
	Group    string // demotion group, e.g. "pricing", "solana", "evm"
	Check    func(ctx context.Context) error
}

// Status is the cached result of a provider's last probe.
type Status struct {
	Provider    string    `json:"provider"`
	Tier        string    `json:"tier"`
	Group       string    `json:"group"`
	OK          bool      `json:"ok"`
	Severity    string    `json:"severity"`
	LatencyMS   int64     `json:"latency_ms"`
	LastOK      time.Time `json:"last_ok"`
	LastChecked time.Time `json:"last_checked"`
	Detail      string    `json:"detail,omitempty"`
}

// Monitor runs the probe set at most once per interval and caches results.
// Safe for concurrent use.
type Monitor struct {
	probes      []Probe
	minInterval time.Duration
	timeout     time.Duration
	logger      *log.Logger
	now         func() time.Time

	mu       sync.Mutex
	statuses map[string]*Status
	lastRun  time.Time
}

// Options contains configuration for creating a Monitor.
type Options struct {
	Probes []Probe
	// MinInterval throttles repeated Probe calls. Defaults to 1 minute.
	MinInterval time.Duration
	// Timeout bounds each individual check. Defaults to 10s.
	Timeout time.Duration
	Logger  *log.Logger
	// Now supplies the clock. Nil means time.Now.
	Now func() time.Time
}

// NewMonitor creates a Monitor.
func NewMonitor(opts Options) *Monitor {
	minInterval := opts.MinInterval
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		probes:      opts.Probes,
		minInterval: minInterval,
		timeout:     timeout,
		logger:      logger,
		now:         now,
		statuses:    make(map[string]*Status),
	}
}

// Probe runs every check once, unless the last sweep is fresher than the
// minimum interval, in which case the cached results stand.
func (m *Monitor) Probe(ctx context.Context) {
	now := m.now()

	m.mu.Lock()
	if !m.lastRun.IsZero() && now.Sub(m.lastRun) < m.minInterval {
		m.mu.Unlock()
		return
	}
	m.lastRun = now
	m.mu.Unlock()

	results := make(map[string]*Status, len(m.probes))
	for _, p := range m.probes {
		results[p.Provider] = m.runProbe(ctx, p, now)
	}
	m.applyDemotions(results)

	m.mu.Lock()
	for name, st := range results {
		if prev, ok := m.statuses[name]; ok && st.LastOK.IsZero() {
			st.LastOK = prev.LastOK
		}
		m.statuses[name] = st
	}
	m.mu.Unlock()

	for _, p := range m.probes {
		st := results[p.Provider]
		if !st.OK {
			m.logger.Printf("provider %s %s: %s", p.Provider, st.Severity, st.Detail)
		}
	}
}

func (m *Monitor) runProbe(ctx context.Context, p Probe, now time.Time) *Status {
	st := &Status{
		Provider:    p.Provider,
		Tier:        p.Tier,
		Group:       p.Group,
		LastChecked: now,
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := p.Check(probeCtx)
	st.LatencyMS = time.Since(start).Milliseconds()

	if err != nil {
		st.Severity = SeverityError
		st.Detail = err.Error()
		return st
	}
	st.OK = true
	st.Severity = SeverityOK
	st.LastOK = now
	return st
}

// applyDemotions downgrades optional failures to warnings when the same
// group's critical provider answered.
func (m *Monitor) applyDemotions(results map[string]*Status) {
	groupHealthy := make(map[string]bool)
	for _, st := range results {
		if st.Tier == TierCritical && st.OK {
			groupHealthy[st.Group] = true
		}
	}
	for _, st := range results {
		if !st.OK && st.Tier == TierOptional && groupHealthy[st.Group] {
			st.Severity = SeverityWarning
		}
	}
}

// Snapshot returns the cached provider statuses, sorted by name.
func (m *Monitor) Snapshot() []Status {
	m.mu.Lock()
	out := make([]Status, 0, len(m.statuses))
	for _, st := range m.statuses {
		out = append(out, *st)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// Healthy reports whether every critical provider's last probe succeeded.
// True when nothing has been probed yet.
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.statuses {
		if st.Tier == TierCritical && !st.OK {
			return false
		}
	}
	return true
}

// HTTPCheck builds a probe check that issues one GET and requires a 2xx.
func HTTPCheck(url string) func(ctx context.Context) error {
	client := resty.New().SetTimeout(DefaultProbeTimeout)
	return func(ctx context.Context) error {
		resp, err := client.R().SetContext(ctx).Get(url)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("status %d", resp.StatusCode())
		}
		return nil
	}
}

// AlwaysUp is the check used for stubbed providers in mock mode.
func AlwaysUp(context.Context) error { return nil }
