// Package risk is the admission gate between strategy selection and the
// paper book. Check is a pure test of one candidate against the current
// portfolio snapshot; the manager also owns the trailing equity peak, the
// global pause and the per-strategy/per-wallet auto-pause reviews.
package risk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// System state keys. Pause state and the equity peak survive restarts.
const (
	keyPeakEquity     = domain.StatePeakEquity
	keyGlobalPause    = domain.StateTradingPaused
	keyStrategyPaused = "strategy_paused:"
)

// Limits collects every admission threshold. Percentages are fractions.
type Limits struct {
	MaxDrawdownPct   float64 // drawdown from peak equity that pauses all trading
	MaxDailyLossPct  float64 // rolling 24h realized loss, fraction of capital
	MaxWeeklyLossPct float64 // rolling 7d realized loss, fraction of capital
	MaxOpenPositions int
	MaxPositionPct   float64 // single position, fraction of total capital
	MaxCorrelatedPct float64 // same token or same source wallet, fraction of total capital

	StrategyPausePnL   float64       // pause a strategy below -this rolling pnl/volume
	StrategyWindow     time.Duration // rolling window for strategy review
	WalletPausePnL     float64       // pause a wallet below -this pnl/basis
	WalletReviewTrades int           // closed trades per wallet review
}

// DefaultLimits returns the documented defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxDrawdownPct:   0.20,
		MaxDailyLossPct:  0.03,
		MaxWeeklyLossPct: 0.08,
		MaxOpenPositions: 40,
		MaxPositionPct:   0.12,
		MaxCorrelatedPct: 0.25,

		StrategyPausePnL:   0.15,
		StrategyWindow:     7 * 24 * time.Hour,
		WalletPausePnL:     0.12,
		WalletReviewTrades: 10,
	}
}

// Candidate describes one proposed paper trade.
type Candidate struct {
	Strategy     string
	Wallet       *domain.Wallet // source wallet, already loaded
	TokenAddress string
	Chain        domain.Chain
	SizeUSD      float64
}

// Snapshot is the portfolio state the admission test runs against. The
// trading engine assembles it inside its critical section so the numbers
// are consistent with the capital pool.
type Snapshot struct {
	TotalCapital float64
	Equity       float64 // mark-to-market: available + open value
	OpenTrades   []*domain.PaperTrade
	PnL24hUSD    float64 // realized, negative when losing
	PnL7dUSD     float64
}

// Verdict is the outcome of one admission test.
type Verdict struct {
	Approved bool
	Reason   string
}

func reject(reason string) Verdict {
	return Verdict{Reason: reason}
}

// ManagerOptions configures a Manager. Zero values get defaults.
type ManagerOptions struct {
	Limits  Limits // zero value means DefaultLimits
	State   storage.StateStore
	Trades  storage.TradeStore
	Perf    storage.StrategyPerfStore
	Wallets storage.WalletStore
	Logger  *log.Logger
}

// Manager owns pause state and the equity peak. Safe for concurrent use.
type Manager struct {
	limits  Limits
	state   storage.StateStore
	trades  storage.TradeStore
	perf    storage.StrategyPerfStore
	wallets storage.WalletStore
	logger  *log.Logger

	mu           sync.Mutex
	peakEquity   float64
	globalPause  bool
	globalReason string
	paused       map[string]string // strategy name -> reason
}

// NewManager creates a Manager. Call Restore before first use to reload
// persisted pause state.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Manager{
		limits:  opts.Limits,
		state:   opts.State,
		trades:  opts.Trades,
		perf:    opts.Perf,
		wallets: opts.Wallets,
		logger:  opts.Logger,
		paused:  make(map[string]string),
	}
}

// Restore reloads the equity peak and pause state persisted in system
// state. strategies lists the names whose pause keys to probe; the
// key/value store cannot enumerate by prefix.
func (m *Manager) Restore(ctx context.Context, strategies []string) error {
	peak, err := m.state.GetFloat(ctx, keyPeakEquity)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("restore peak equity: %w", err)
	}

	globalReason, err := m.state.Get(ctx, keyGlobalPause)
	globalPause := err == nil
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("restore pause state: %w", err)
	}

	paused := make(map[string]string)
	for _, name := range strategies {
		reason, err := m.state.Get(ctx, keyStrategyPaused+name)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("restore pause state for %s: %w", name, err)
		}
		paused[name] = reason
	}

	m.mu.Lock()
	m.peakEquity = peak
	m.globalPause = globalPause
	m.globalReason = globalReason
	m.paused = paused
	m.mu.Unlock()

	if globalPause {
		m.logger.Printf("restored global pause: %s", globalReason)
	}
	return nil
}

// Check runs the admission test. Rules apply in a fixed order so the
// reported reason is deterministic for a given state.
func (m *Manager) Check(c Candidate, s Snapshot) Verdict {
	m.mu.Lock()
	globalPause, globalReason := m.globalPause, m.globalReason
	strategyReason, strategyPaused := m.paused[c.Strategy]
	peak := m.peakEquity
	m.mu.Unlock()

	if globalPause {
		return reject("trading paused: " + globalReason)
	}
	if peak > 0 && s.Equity > 0 {
		if dd := (peak - s.Equity) / peak; dd > m.limits.MaxDrawdownPct {
			return reject(fmt.Sprintf("drawdown %.1f%% from peak exceeds %.0f%% limit",
				dd*100, m.limits.MaxDrawdownPct*100))
		}
	}
	if s.TotalCapital > 0 {
		if loss := -s.PnL24hUSD; loss > m.limits.MaxDailyLossPct*s.TotalCapital {
			return reject(fmt.Sprintf("24h loss $%.2f exceeds %.0f%% of capital",
				loss, m.limits.MaxDailyLossPct*100))
		}
		if loss := -s.PnL7dUSD; loss > m.limits.MaxWeeklyLossPct*s.TotalCapital {
			return reject(fmt.Sprintf("7d loss $%.2f exceeds %.0f%% of capital",
				loss, m.limits.MaxWeeklyLossPct*100))
		}
	}
	if len(s.OpenTrades) >= m.limits.MaxOpenPositions {
		return reject(fmt.Sprintf("open positions at limit (%d)", m.limits.MaxOpenPositions))
	}
	if s.TotalCapital > 0 && c.SizeUSD > m.limits.MaxPositionPct*s.TotalCapital {
		return reject(fmt.Sprintf("position $%.2f exceeds %.0f%% of capital",
			c.SizeUSD, m.limits.MaxPositionPct*100))
	}
	if s.TotalCapital > 0 {
		correlated := c.SizeUSD
		for _, t := range s.OpenTrades {
			if (t.TokenAddress == c.TokenAddress && t.Chain == c.Chain) ||
				(c.Wallet != nil && t.SourceWallet == c.Wallet.Address) {
				correlated += t.EntryValueUSD
			}
		}
		if correlated > m.limits.MaxCorrelatedPct*s.TotalCapital {
			return reject(fmt.Sprintf("correlated exposure $%.2f exceeds %.0f%% of capital",
				correlated, m.limits.MaxCorrelatedPct*100))
		}
	}
	if c.Wallet == nil || !c.Wallet.IsActive() {
		return reject("source wallet not active")
	}
	if strategyPaused {
		return reject(fmt.Sprintf("strategy %s paused: %s", c.Strategy, strategyReason))
	}
	return Verdict{Approved: true}
}

// ObserveEquity folds one mark-to-market equity observation into the
// trailing peak and flips the global pause when the drawdown limit is
// breached. The peak is persisted so restarts keep the high-water mark.
func (m *Manager) ObserveEquity(ctx context.Context, equity float64) error {
	if equity <= 0 {
		return nil
	}

	m.mu.Lock()
	if equity > m.peakEquity {
		m.peakEquity = equity
		m.mu.Unlock()
		return m.state.SetFloat(ctx, keyPeakEquity, equity)
	}
	peak := m.peakEquity
	alreadyPaused := m.globalPause
	m.mu.Unlock()

	if alreadyPaused || peak <= 0 {
		return nil
	}
	if dd := (peak - equity) / peak; dd > m.limits.MaxDrawdownPct {
		return m.PauseAll(ctx, fmt.Sprintf("drawdown %.1f%% from peak $%.2f", dd*100, peak))
	}
	return nil
}

// PauseAll engages the global pause. Idempotent; the first reason wins
// until Resume.
func (m *Manager) PauseAll(ctx context.Context, reason string) error {
	m.mu.Lock()
	if m.globalPause {
		m.mu.Unlock()
		return nil
	}
	m.globalPause = true
	m.globalReason = reason
	m.mu.Unlock()

	m.logger.Printf("trading paused: %s", reason)
	return m.state.Set(ctx, keyGlobalPause, reason)
}

// Resume clears the global pause. Manual operator action.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	m.globalPause = false
	m.globalReason = ""
	m.mu.Unlock()

	m.logger.Printf("trading resumed")
	return m.state.Delete(ctx, keyGlobalPause)
}

// GloballyPaused reports the global pause state and its reason.
func (m *Manager) GloballyPaused() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.globalPause, m.globalReason
}

// PeakEquity returns the trailing peak.
func (m *Manager) PeakEquity() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peakEquity
}

// StrategyPaused reports whether one strategy is paused.
func (m *Manager) StrategyPaused(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.paused[name]
	return ok
}

// PausedStrategies returns a copy of the paused set with reasons.
func (m *Manager) PausedStrategies() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.paused))
	for k, v := range m.paused {
		out[k] = v
	}
	return out
}

// PauseStrategy pauses one strategy. Idempotent.
func (m *Manager) PauseStrategy(ctx context.Context, name, reason string) error {
	m.mu.Lock()
	if _, ok := m.paused[name]; ok {
		m.mu.Unlock()
		return nil
	}
	m.paused[name] = reason
	m.mu.Unlock()

	m.logger.Printf("strategy %s paused: %s", name, reason)
	return m.state.Set(ctx, keyStrategyPaused+name, reason)
}

// UnpauseStrategy clears one strategy's pause. Manual operator action.
func (m *Manager) UnpauseStrategy(ctx context.Context, name string) error {
	m.mu.Lock()
	delete(m.paused, name)
	m.mu.Unlock()

	m.logger.Printf("strategy %s unpaused", name)
	return m.state.Delete(ctx, keyStrategyPaused+name)
}

// ReviewStrategies recomputes each strategy's rolling realized pnl over
// the review window and pauses those below the threshold. The ratio is
// pnl over deployed volume, so a strategy that loses 15% of what it
// deploys goes quiet until an operator unpauses it.
func (m *Manager) ReviewStrategies(ctx context.Context, now time.Time) error {
	since := domain.DateOf(now.Add(-m.limits.StrategyWindow).UnixMilli())
	rows, err := m.perf.ListSince(ctx, since)
	if err != nil {
		return fmt.Errorf("strategy review: %w", err)
	}

	type agg struct{ pnl, volume float64 }
	totals := make(map[string]*agg)
	for _, r := range rows {
		a, ok := totals[r.StrategyType]
		if !ok {
			a = &agg{}
			totals[r.StrategyType] = a
		}
		a.pnl += r.PnLUSD
		a.volume += r.VolumeUSD
	}

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		a := totals[name]
		if a.volume <= 0 {
			continue
		}
		if ratio := a.pnl / a.volume; ratio < -m.limits.StrategyPausePnL {
			reason := fmt.Sprintf("rolling pnl %.1f%% over $%.0f volume", ratio*100, a.volume)
			if err := m.PauseStrategy(ctx, name, reason); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReviewWallets pauses wallets whose last N closed copies lost more than
// the threshold relative to their entry basis. Wallets with fewer than N
// closed trades are left alone; the sample is too small to judge.
func (m *Manager) ReviewWallets(ctx context.Context, now time.Time) error {
	ws, err := m.wallets.List(ctx)
	if err != nil {
		return fmt.Errorf("wallet review: %w", err)
	}

	for _, w := range ws {
		if !w.IsActive() {
			continue
		}
		closed, err := m.trades.ListClosed(ctx, storage.TradeFilter{
			SourceWallet: w.Address,
			Chain:        w.Chain,
			Limit:        m.limits.WalletReviewTrades,
		})
		if err != nil {
			return fmt.Errorf("wallet review %s: %w", w.Address, err)
		}
		if len(closed) < m.limits.WalletReviewTrades {
			continue
		}

		var pnl, basis float64
		for _, t := range closed {
			if t.PnL != nil {
				pnl += *t.PnL
			}
			basis += t.EntryValueUSD
		}
		if basis <= 0 {
			continue
		}
		if ratio := pnl / basis; ratio < -m.limits.WalletPausePnL {
			if err := m.wallets.SetStatus(ctx, w.Address, w.Chain, domain.WalletStatusPaused); err != nil {
				return fmt.Errorf("pause wallet %s: %w", w.Address, err)
			}
			m.logger.Printf("wallet %s paused: rolling pnl %.1f%% over last %d trades",
				w.Address, ratio*100, len(closed))
		}
	}
	return nil
}
