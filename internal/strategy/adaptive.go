package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// viaNotePrefix marks which child an adaptive trade was delegated to, so
// Exit routes back to the same child for the life of the position.
const viaNotePrefix = "via_"

// AdaptiveStrategy delegates to whichever child currently has the best
// rolling realized pnl. Children are ranked on their own directly-won
// trades; outcomes of delegated trades accrue to adaptive itself. A child
// paused by risk review is never picked, and with no child history at all
// adaptive stays silent.
type AdaptiveStrategy struct {
	Window   time.Duration
	children []Strategy
}

// NewAdaptiveStrategy creates an AdaptiveStrategy delegating to children.
func NewAdaptiveStrategy(p Params, children []Strategy) *AdaptiveStrategy {
	return &AdaptiveStrategy{Window: p.AdaptiveWindow, children: children}
}

// Name returns the canonical strategy name.
func (s *AdaptiveStrategy) Name() string { return NameAdaptive }

// Evaluate picks the current best child and forwards the call. The copy
// decision carries a via_<child> note so the position's exits delegate to
// the same child.
func (s *AdaptiveStrategy) Evaluate(ctx context.Context, tx *domain.Transfer, w *domain.Wallet, env *Env) (Decision, error) {
	child, err := s.pick(ctx, env)
	if err != nil || child == nil {
		return Decision{}, err
	}

	d, err := child.Evaluate(ctx, tx, w, env)
	if err != nil || !d.Copy {
		return Decision{}, err
	}
	d.Note = viaNotePrefix + child.Name()
	d.Reason = fmt.Sprintf("delegated to %s: %s", child.Name(), d.Reason)
	return d, nil
}

// Exit routes to the child named in the trade's via_ note. A trade
// without one holds; the engine's time stop still bounds it.
func (s *AdaptiveStrategy) Exit(ctx context.Context, t *domain.PaperTrade, price float64, env *Env) (ExitDecision, error) {
	name, ok := t.NoteValue(viaNotePrefix)
	if !ok {
		return ExitDecision{}, nil
	}
	for _, c := range s.children {
		if c.Name() == name {
			return c.Exit(ctx, t, price, env)
		}
	}
	return ExitDecision{}, nil
}

// pick ranks children by realized pnl over the rolling window. Only
// children with at least one perf row qualify; ties break by name so the
// choice is deterministic.
func (s *AdaptiveStrategy) pick(ctx context.Context, env *Env) (Strategy, error) {
	since := domain.DateOf(env.now().Add(-s.Window).UnixMilli())
	rows, err := env.Perf.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("perf lookup: %w", err)
	}

	pnl := make(map[string]float64, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		pnl[r.StrategyType] += r.PnLUSD
		seen[r.StrategyType] = true
	}

	var best Strategy
	var bestPnL float64
	for _, c := range s.children {
		name := c.Name()
		if !seen[name] || env.pausedStrategy(name) {
			continue
		}
		switch {
		case best == nil, pnl[name] > bestPnL, pnl[name] == bestPnL && name < best.Name():
			best = c
			bestPnL = pnl[name]
		}
	}
	return best, nil
}

// Ensure AdaptiveStrategy implements Strategy
var _ Strategy = (*AdaptiveStrategy)(nil)
