package strategy

import (
	"context"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/pricing"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// Canonical strategy names. These appear in paper_trades.strategy_used,
// strategy_performance rows and the boundary API, so they never change.
const (
	NameCopyTrade      = "copyTrade"
	NameSmartMoney     = "smartMoney"
	NameVolumeBreakout = "volumeBreakout"
	NameMemecoin       = "memecoin"
	NameArbitrage      = "arbitrage"
	NameEarlyGem       = "earlyGem"
	NameAdaptive       = "adaptive"
)

// Confidence labels attached to copy decisions.
const (
	ConfidenceLow  = "low"
	ConfidenceMed  = "med"
	ConfidenceHigh = "high"
)

// ConfidenceRank orders confidence labels for tie-breaking during
// candidate selection. Unknown labels rank below low.
func ConfidenceRank(c string) int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMed:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// Strategy evaluates observed transfers into copy decisions and open
// positions into exit decisions. Implementations must be synchronous:
// both methods return their verdict on the calling goroutine and never
// spawn background work whose result would be dropped.
type Strategy interface {
	// Name returns the canonical strategy name.
	Name() string

	// Evaluate decides whether to copy an observed buy. A zero Decision
	// means "do not copy". Errors are treated as a decline by callers.
	Evaluate(ctx context.Context, tx *domain.Transfer, w *domain.Wallet, env *Env) (Decision, error)

	// Exit decides whether an open position should be reduced or closed
	// at the current price. A zero ExitDecision means "hold".
	Exit(ctx context.Context, t *domain.PaperTrade, price float64, env *Env) (ExitDecision, error)
}

// Decision is the outcome of one Evaluate call.
type Decision struct {
	Copy       bool    // open a position
	SizeUSD    float64 // proposed position size
	Confidence string  // low | med | high
	Reason     string  // human-readable justification
	Note       string  // optional marker appended to the trade's notes journal
}

// ExitDecision is the outcome of one Exit call. Fraction is the share of
// the current amount to sell, in (0, 1]; a fraction below 1 is a partial
// exit and leaves the trade open.
type ExitDecision struct {
	Exit     bool
	Fraction float64
	Reason   string // exit reason code written on close
	Note     string // optional marker appended to the trade's notes journal
}

// PriceLookup resolves a current token price. *pricing.Oracle satisfies it.
type PriceLookup interface {
	GetPrice(ctx context.Context, token string, chain domain.Chain) *pricing.Price
}

// Env bundles the read-only context available to strategies. Stores must
// only be queried, never written; all writes belong to the trading engine.
type Env struct {
	Transfers storage.TransferStore
	Tokens    storage.TokenStore
	Perf      storage.StrategyPerfStore
	Oracle    PriceLookup

	// IsPaused reports whether a strategy is currently paused by risk
	// review. Nil means nothing is paused.
	IsPaused func(name string) bool

	// Now supplies the clock. Nil means time.Now.
	Now func() time.Time
}

func (e *Env) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) pausedStrategy(name string) bool {
	if e == nil || e.IsPaused == nil {
		return false
	}
	return e.IsPaused(name)
}
