// Package trading turns observed transfers into paper positions and manages
// them to exit. The engine scores every enabled strategy's copy decision,
// admits the winner through the risk gate, and keeps the virtual capital
// pool balanced: every debit and credit happens in the same critical section
// as the trade state transition that caused it.
package trading

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/ingestion"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/risk"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/strategy"
)

// DefaultStartingCapitalUSD seeds the pool on a fresh deployment.
const DefaultStartingCapitalUSD = 10_000

// Capital pool state keys.
const (
	keyTotalCapital     = domain.StateTotalCapital
	keyAvailableCapital = domain.StateAvailableCapital
)

// Entry defaults when no price can be resolved for a transfer. The opened
// position is halved so a guessed entry cannot dominate the book.
const (
	defaultEntryPriceEVM    = 0.01
	defaultEntryPriceSolana = 0.0001
)

// Affinity multipliers bias selection toward the specialist that claimed
// the signal. copyTrade is deliberately the fallback and carries a penalty
// so it cannot shadow the narrower strategies.
const (
	affinityWhale      = 1.5
	affinityBreakout   = 1.3
	affinityMemeSolana = 1.4
	affinityCopyTrade  = 0.8
)

// Engine consumes observed transfers and runs the paper book.
// Safe for concurrent use; capital and trade transitions are serialized.
type Engine struct {
	strategies []strategy.Strategy
	byName     map[string]strategy.Strategy
	params     strategy.Params
	risk       *risk.Manager
	oracle     strategy.PriceLookup
	trades     storage.TradeStore
	wallets    storage.WalletStore
	transfers  storage.TransferStore
	tokens     storage.TokenStore
	perf       storage.StrategyPerfStore
	state      storage.StateStore
	events     EventSink
	logger     *log.Logger
	now        func() time.Time
	starting   float64

	seen     *dedupeLRU
	managing atomic.Bool

	mu        sync.Mutex
	total     float64
	available float64
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	// Strategies is the enabled set, in stable order. Required.
	Strategies []strategy.Strategy
	// Params holds the catalogue thresholds the engine shares with its
	// strategies (MaxHold, whale threshold). Zero value means defaults.
	Params strategy.Params
	// Risk is the admission gate. Required.
	Risk *risk.Manager

	Oracle    strategy.PriceLookup
	Trades    storage.TradeStore
	Wallets   storage.WalletStore
	Transfers storage.TransferStore
	Tokens    storage.TokenStore
	Perf      storage.StrategyPerfStore
	State     storage.StateStore

	// Events receives trade lifecycle events. Optional.
	Events EventSink

	// StartingCapitalUSD seeds total_capital when the state store has no
	// record of it. Defaults to DefaultStartingCapitalUSD.
	StartingCapitalUSD float64

	// Dedup LRU tunables; zero values get defaults. SweepEvery <= 0
	// disables the background sweeper.
	DedupeCap  int
	DedupeAge  time.Duration
	SweepEvery time.Duration

	Logger *log.Logger
	// Now supplies the clock. Nil means time.Now.
	Now func() time.Time
}

// NewEngine creates an Engine. Call Restore before first use to load the
// capital pool.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Params == (strategy.Params{}) {
		opts.Params = strategy.DefaultParams()
	}
	if opts.StartingCapitalUSD <= 0 {
		opts.StartingCapitalUSD = DefaultStartingCapitalUSD
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	byName := make(map[string]strategy.Strategy, len(opts.Strategies))
	for _, st := range opts.Strategies {
		byName[st.Name()] = st
	}

	return &Engine{
		strategies: opts.Strategies,
		byName:     byName,
		params:     opts.Params,
		risk:       opts.Risk,
		oracle:     opts.Oracle,
		trades:     opts.Trades,
		wallets:    opts.Wallets,
		transfers:  opts.Transfers,
		tokens:     opts.Tokens,
		perf:       opts.Perf,
		state:      opts.State,
		events:     opts.Events,
		logger:     opts.Logger,
		now:        opts.Now,
		starting:   opts.StartingCapitalUSD,
		seen:       newDedupeLRU(opts.DedupeCap, opts.DedupeAge, opts.SweepEvery, opts.Now),
	}
}

// Compile-time interface check.
var _ ingestion.TransferSink = (*Engine)(nil)

// Restore loads the capital pool from system state. available_capital is
// always recomputed as total minus the open book, never read back, so the
// books cannot drift across a crash.
func (e *Engine) Restore(ctx context.Context) error {
	total, err := e.state.GetFloat(ctx, keyTotalCapital)
	if errors.Is(err, storage.ErrNotFound) {
		total = e.starting
	} else if err != nil {
		return fmt.Errorf("restore total capital: %w", err)
	}

	open, err := e.trades.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("restore open book: %w", err)
	}
	var committed float64
	for _, t := range open {
		committed += t.EntryValueUSD
	}

	e.mu.Lock()
	e.total = total
	e.available = total - committed
	e.persistCapitalLocked(ctx)
	e.mu.Unlock()

	e.logger.Printf("capital restored: total $%.2f, available $%.2f, %d open positions",
		total, total-committed, len(open))
	return nil
}

// Capital returns the current pool.
func (e *Engine) Capital() (total, available float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total, e.available
}

// DedupeLen reports the size of the processed-transfer LRU.
func (e *Engine) DedupeLen() int {
	return e.seen.len()
}

// Shutdown stops the dedup sweeper. Safe to call more than once.
func (e *Engine) Shutdown() {
	e.seen.stop()
}

// Process evaluates one stored transfer and possibly opens a paper trade.
// It satisfies ingestion.TransferSink. Declines and risk rejections are not
// errors; only storage failures surface.
func (e *Engine) Process(ctx context.Context, tx *domain.Transfer) error {
	if tx == nil || tx.WalletAddress == "" || tx.TxHash == "" {
		return nil
	}
	if e.seen.Seen(tx.Key()) {
		return nil
	}

	w, err := e.wallets.Get(ctx, tx.WalletAddress, tx.Chain)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load wallet %s: %w", tx.WalletAddress, err)
	}
	if !w.IsActive() {
		return nil
	}

	winner, decision := e.selectStrategy(ctx, tx, w)
	if winner == nil {
		return nil
	}

	price, degraded := e.resolveEntryPrice(ctx, tx)
	size := decision.SizeUSD
	if degraded {
		size /= 2
	}
	if price <= 0 || size <= 0 {
		return nil
	}

	return e.open(ctx, tx, w, winner.Name(), decision, price, size)
}

// selectStrategy runs every enabled strategy and scores the copy decisions.
// Scoring all candidates keeps the broad fallback from eating trades a
// specialist recognized; first-match selection would hand nearly everything
// to copyTrade.
func (e *Engine) selectStrategy(ctx context.Context, tx *domain.Transfer, w *domain.Wallet) (strategy.Strategy, strategy.Decision) {
	env := e.env()

	var (
		winner    strategy.Strategy
		best      strategy.Decision
		bestScore float64
	)
	for _, st := range e.strategies {
		// Paused strategies sit out selection so the runner-up can win;
		// the risk gate remains the backstop.
		if e.risk.StrategyPaused(st.Name()) {
			continue
		}
		d, err := st.Evaluate(ctx, tx, w, env)
		if err != nil {
			e.logger.Printf("%s evaluate %s: %v", st.Name(), tx.TxHash, err)
			continue
		}
		if !d.Copy || d.SizeUSD <= 0 {
			continue
		}

		score := d.SizeUSD * e.affinity(st.Name(), tx)
		switch {
		case winner == nil:
		case score > bestScore:
		case score == bestScore &&
			strategy.ConfidenceRank(d.Confidence) > strategy.ConfidenceRank(best.Confidence):
		case score == bestScore &&
			strategy.ConfidenceRank(d.Confidence) == strategy.ConfidenceRank(best.Confidence) &&
			st.Name() < winner.Name():
		default:
			continue
		}
		winner, best, bestScore = st, d, score
	}
	return winner, best
}

func (e *Engine) affinity(name string, tx *domain.Transfer) float64 {
	switch name {
	case strategy.NameSmartMoney:
		if tx.TotalValueUSD >= e.params.WhaleThresholdUSD {
			return affinityWhale
		}
	case strategy.NameVolumeBreakout:
		return affinityBreakout
	case strategy.NameMemecoin:
		if tx.Chain == domain.ChainSolana {
			return affinityMemeSolana
		}
	case strategy.NameCopyTrade:
		return affinityCopyTrade
	}
	return 1
}

// resolveEntryPrice walks the ladder: the transfer's own price, the oracle,
// value/amount when both are positive and the ratio is finite, and finally
// a chain-specific conservative default that degrades the position.
func (e *Engine) resolveEntryPrice(ctx context.Context, tx *domain.Transfer) (price float64, degraded bool) {
	if tx.PriceUSD > 0 {
		return tx.PriceUSD, false
	}
	if e.oracle != nil {
		if p := e.oracle.GetPrice(ctx, tx.TokenAddress, tx.Chain); p != nil && p.PriceUSD > 0 {
			return p.PriceUSD, false
		}
	}
	if tx.TotalValueUSD > 0 && tx.Amount > 0 {
		if r := tx.TotalValueUSD / tx.Amount; r > 0 && !math.IsInf(r, 0) && !math.IsNaN(r) {
			return r, false
		}
	}
	if tx.Chain == domain.ChainSolana {
		return defaultEntryPriceSolana, true
	}
	return defaultEntryPriceEVM, true
}

// open admits the winner through the risk gate and books the position.
// The snapshot, the admission test, the insert and the capital debit all
// happen under one lock so the pool and the book cannot diverge.
func (e *Engine) open(ctx context.Context, tx *domain.Transfer, w *domain.Wallet, name string, d strategy.Decision, price, size float64) error {
	now := e.now()

	e.mu.Lock()
	snap, err := e.snapshotLocked(ctx, now)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	verdict := e.risk.Check(risk.Candidate{
		Strategy:     name,
		Wallet:       w,
		TokenAddress: tx.TokenAddress,
		Chain:        tx.Chain,
		SizeUSD:      size,
	}, snap)
	if !verdict.Approved {
		e.mu.Unlock()
		e.logger.Printf("rejected %s %s/%s: %s", name, tx.Chain, tx.TokenSymbol, verdict.Reason)
		return nil
	}
	if size > e.available {
		e.mu.Unlock()
		e.logger.Printf("rejected %s %s/%s: $%.2f exceeds available $%.2f",
			name, tx.Chain, tx.TokenSymbol, size, e.available)
		return nil
	}

	t := &domain.PaperTrade{
		TokenAddress: tx.TokenAddress,
		TokenSymbol:  tx.TokenSymbol,
		Chain:        tx.Chain,
		StrategyUsed: name,
		SourceWallet: tx.WalletAddress,
		EntryPrice:   price,
		Amount:       size / price,
		PeakPrice:    price,
		EntryTime:    now.UnixMilli(),
		Notes:        d.Note,
	}
	if err := e.trades.Open(ctx, t); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("open trade: %w", err)
	}
	e.available -= t.EntryValueUSD
	e.persistCapitalLocked(ctx)
	e.mu.Unlock()

	if err := e.perf.RecordOpen(ctx, name, domain.DateOf(t.EntryTime), t.EntryValueUSD); err != nil {
		e.logger.Printf("record open perf: %v", err)
	}
	e.publish(EventTradeOpened, &TradeEvent{
		ID:           t.ID,
		TokenAddress: t.TokenAddress,
		TokenSymbol:  t.TokenSymbol,
		Chain:        string(t.Chain),
		Strategy:     name,
		SourceWallet: t.SourceWallet,
		Price:        price,
		SizeUSD:      t.EntryValueUSD,
		Confidence:   d.Confidence,
		Reason:       d.Reason,
	})
	e.logger.Printf("opened #%d %s %s/%s $%.2f @ %.8f (%s): %s",
		t.ID, name, t.Chain, t.TokenSymbol, t.EntryValueUSD, price, d.Confidence, d.Reason)
	return nil
}

// snapshotLocked assembles the portfolio view the admission test runs
// against. Equity here is book equity; the manage pass observes
// mark-to-market equity separately.
func (e *Engine) snapshotLocked(ctx context.Context, now time.Time) (risk.Snapshot, error) {
	open, err := e.trades.ListOpen(ctx)
	if err != nil {
		return risk.Snapshot{}, fmt.Errorf("list open trades: %w", err)
	}
	pnl24, err := e.realizedSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return risk.Snapshot{}, err
	}
	pnl7, err := e.realizedSince(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		return risk.Snapshot{}, err
	}
	return risk.Snapshot{
		TotalCapital: e.total,
		Equity:       e.total,
		OpenTrades:   open,
		PnL24hUSD:    pnl24,
		PnL7dUSD:     pnl7,
	}, nil
}

// realizedSince sums the final-leg pnl of trades closed in the window.
// Partial legs in the catalogue are always profit tiers, so leaving them
// out only makes the loss estimate more conservative.
func (e *Engine) realizedSince(ctx context.Context, since time.Time) (float64, error) {
	closed, err := e.trades.ListClosed(ctx, storage.TradeFilter{Since: since.UnixMilli()})
	if err != nil {
		return 0, fmt.Errorf("list closed trades: %w", err)
	}
	var pnl float64
	for _, t := range closed {
		if t.PnL != nil {
			pnl += *t.PnL
		}
	}
	return pnl, nil
}

// ManageResult summarizes one manage pass.
type ManageResult struct {
	Checked     int
	Closed      int
	Reduced     int
	PriceMisses int
	EquityUSD   float64
}

// ManageOpenPositions walks the open book once: refresh the peak, ask the
// owning strategy for an exit, enforce the engine's position age limit,
// and settle any close or reduction against the capital pool. The pass
// ends with an equity observation and the auto-pause reviews. A pass that
// arrives while the previous one is still running is skipped.
func (e *Engine) ManageOpenPositions(ctx context.Context) (*ManageResult, error) {
	res := &ManageResult{}

	if !e.managing.CompareAndSwap(false, true) {
		e.logger.Printf("manage pass skipped: previous pass still running")
		return res, nil
	}
	defer e.managing.Store(false)

	open, err := e.trades.ListOpen(ctx)
	if err != nil {
		return res, fmt.Errorf("list open trades: %w", err)
	}
	now := e.now()
	env := e.env()

	var openValue float64
	for _, t := range open {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++

		p := e.oracle.GetPrice(ctx, t.TokenAddress, t.Chain)
		if p == nil || p.PriceUSD <= 0 {
			res.PriceMisses++
			// Carry at book value until a price comes back.
			openValue += t.EntryValueUSD
			continue
		}
		price := p.PriceUSD

		if price > t.PeakPrice {
			if err := e.trades.UpdatePeakPrice(ctx, t.ID, price); err != nil {
				e.logger.Printf("update peak #%d: %v", t.ID, err)
			} else {
				t.PeakPrice = price
			}
		}

		d := e.exitDecision(ctx, t, price, now, env)
		switch {
		case !d.Exit:
			openValue += t.Amount * price
		case d.Fraction >= 1:
			if err := e.close(ctx, t, price, now, d.Reason); err != nil {
				e.logger.Printf("close #%d: %v", t.ID, err)
				openValue += t.Amount * price
				continue
			}
			res.Closed++
		default:
			remaining, err := e.reduce(ctx, t, price, now, d)
			if err != nil {
				e.logger.Printf("reduce #%d: %v", t.ID, err)
				openValue += t.Amount * price
				continue
			}
			openValue += remaining * price
			res.Reduced++
		}
	}

	_, available := e.Capital()
	res.EquityUSD = available + openValue
	if err := e.risk.ObserveEquity(ctx, res.EquityUSD); err != nil {
		e.logger.Printf("observe equity: %v", err)
	}
	if err := e.risk.ReviewStrategies(ctx, now); err != nil {
		e.logger.Printf("strategy review: %v", err)
	}
	if err := e.risk.ReviewWallets(ctx, now); err != nil {
		e.logger.Printf("wallet review: %v", err)
	}
	return res, nil
}

// exitDecision asks the owning strategy, then enforces the engine-level
// age limit for positions whose strategy carries no clock of its own.
func (e *Engine) exitDecision(ctx context.Context, t *domain.PaperTrade, price float64, now time.Time, env *strategy.Env) strategy.ExitDecision {
	var d strategy.ExitDecision
	if st := e.byName[t.StrategyUsed]; st != nil {
		var err error
		d, err = st.Exit(ctx, t, price, env)
		if err != nil {
			e.logger.Printf("%s exit #%d: %v", t.StrategyUsed, t.ID, err)
			d = strategy.ExitDecision{}
		}
	}
	if !d.Exit && e.params.MaxHold > 0 &&
		now.Sub(time.UnixMilli(t.EntryTime)) >= e.params.MaxHold {
		d = strategy.ExitDecision{Exit: true, Fraction: 1, Reason: domain.ExitReasonTimeStop}
	}
	return d
}

// close realizes the final leg: the entry basis and the realized pnl go
// back to the pool in the same critical section as the status flip.
func (e *Engine) close(ctx context.Context, t *domain.PaperTrade, price float64, now time.Time, reason string) error {
	pnl := (price - t.EntryPrice) * t.Amount

	e.mu.Lock()
	if err := e.trades.Close(ctx, t.ID, price, now.UnixMilli(), reason); err != nil {
		e.mu.Unlock()
		return err
	}
	e.available += t.EntryValueUSD + pnl
	e.total += pnl
	e.persistCapitalLocked(ctx)
	e.mu.Unlock()

	date := domain.DateOf(now.UnixMilli())
	if err := e.perf.RecordClose(ctx, t.StrategyUsed, date, pnl, true); err != nil {
		e.logger.Printf("record close perf: %v", err)
	}
	if err := e.wallets.RecordTradeOutcome(ctx, t.SourceWallet, t.Chain, t.EntryValueUSD, pnl); err != nil && !errors.Is(err, storage.ErrNotFound) {
		e.logger.Printf("record wallet outcome %s: %v", t.SourceWallet, err)
	}

	e.publish(EventTradeClosed, &TradeEvent{
		ID:           t.ID,
		TokenAddress: t.TokenAddress,
		TokenSymbol:  t.TokenSymbol,
		Chain:        string(t.Chain),
		Strategy:     t.StrategyUsed,
		Price:        price,
		Reason:       reason,
		PnLUSD:       pnl,
	})
	e.logger.Printf("closed #%d %s %s/%s: %s, pnl $%.2f",
		t.ID, t.StrategyUsed, t.Chain, t.TokenSymbol, reason, pnl)
	return nil
}

// reduce sells a fraction of the position, realizes that leg's pnl, and
// leaves the trade open with the entry basis shrunk accordingly.
func (e *Engine) reduce(ctx context.Context, t *domain.PaperTrade, price float64, now time.Time, d strategy.ExitDecision) (float64, error) {
	if d.Fraction <= 0 || d.Fraction >= 1 {
		return t.Amount, fmt.Errorf("sell fraction %v out of range", d.Fraction)
	}
	sold := t.Amount * d.Fraction
	remaining := t.Amount - sold
	legBasis := t.EntryPrice * sold
	legPnL := (price - t.EntryPrice) * sold

	e.mu.Lock()
	if err := e.trades.ReduceAmount(ctx, t.ID, remaining); err != nil {
		e.mu.Unlock()
		return t.Amount, err
	}
	if d.Note != "" {
		if err := e.trades.AppendNote(ctx, t.ID, d.Note); err != nil {
			e.logger.Printf("append note #%d: %v", t.ID, err)
		}
	}
	e.available += legBasis + legPnL
	e.total += legPnL
	e.persistCapitalLocked(ctx)
	e.mu.Unlock()

	if err := e.perf.RecordClose(ctx, t.StrategyUsed, domain.DateOf(now.UnixMilli()), legPnL, false); err != nil {
		e.logger.Printf("record partial perf: %v", err)
	}

	t.Amount = remaining
	t.EntryValueUSD = t.EntryPrice * remaining
	e.publish(EventTradeReduced, &TradeEvent{
		ID:              t.ID,
		TokenAddress:    t.TokenAddress,
		TokenSymbol:     t.TokenSymbol,
		Chain:           string(t.Chain),
		Strategy:        t.StrategyUsed,
		Price:           price,
		Reason:          d.Reason,
		PnLUSD:          legPnL,
		RemainingAmount: remaining,
	})
	e.logger.Printf("reduced #%d %s %s/%s by %.0f%% (%s), leg pnl $%.2f",
		t.ID, t.StrategyUsed, t.Chain, t.TokenSymbol, d.Fraction*100, d.Note, legPnL)
	return remaining, nil
}

// env assembles the read-only world strategies see. IsPaused threads the
// risk manager's pause set into adaptive delegation.
func (e *Engine) env() *strategy.Env {
	return &strategy.Env{
		Transfers: e.transfers,
		Tokens:    e.tokens,
		Perf:      e.perf,
		Oracle:    e.oracle,
		IsPaused:  e.risk.StrategyPaused,
		Now:       e.now,
	}
}

func (e *Engine) persistCapitalLocked(ctx context.Context) {
	if err := e.state.SetFloat(ctx, keyTotalCapital, e.total); err != nil {
		e.logger.Printf("persist total capital: %v", err)
	}
	if err := e.state.SetFloat(ctx, keyAvailableCapital, e.available); err != nil {
		e.logger.Printf("persist available capital: %v", err)
	}
}

func (e *Engine) publish(event string, data any) {
	if e.events != nil {
		e.events.Publish(event, data)
	}
}
