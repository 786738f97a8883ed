package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// highConfWinRate promotes a copy decision to high confidence when the
// source wallet's closed history clears it.
const highConfWinRate = 0.60

// CopyTradeStrategy copies qualifying buys from any tracked wallet. It is
// deliberately the lowest bar in the catalogue and acts as the fallback
// when nothing more specific fires; candidate selection penalizes it so it
// cannot eat trades the specialists want.
type CopyTradeStrategy struct {
	MinTradeUSD    float64 // smallest source buy worth copying
	MinWinRate     float64 // applied only when the wallet has history
	CopyPct        float64 // fraction of the source trade copied
	MaxUSD         float64 // per-trade cap
	StopLoss       float64
	TakeProfit     float64
	TrailArm       float64 // gain that arms the trailing stop
	TrailGive      float64 // giveback from peak once armed
	MinPositionUSD float64
	MaxHold        time.Duration
}

// NewCopyTradeStrategy creates a CopyTradeStrategy from shared params.
func NewCopyTradeStrategy(p Params) *CopyTradeStrategy {
	return &CopyTradeStrategy{
		MinTradeUSD:    p.CopyMinTradeUSD,
		MinWinRate:     p.CopyMinWinRate,
		CopyPct:        p.CopyPct,
		MaxUSD:         p.CopyMaxUSD,
		StopLoss:       p.CopyStopLoss,
		TakeProfit:     p.CopyTakeProfit,
		TrailArm:       p.CopyTrailArm,
		TrailGive:      p.CopyTrailGive,
		MinPositionUSD: p.MinPositionUSD,
		MaxHold:        p.MaxHold,
	}
}

// Name returns the canonical strategy name.
func (s *CopyTradeStrategy) Name() string { return NameCopyTrade }

// Evaluate copies buys at or above the minimum size from wallets that
// either have no history yet or clear the win-rate floor. When the
// observed value is unresolved the buy is judged by amount alone and
// copied at the floor size with low confidence.
func (s *CopyTradeStrategy) Evaluate(_ context.Context, tx *domain.Transfer, w *domain.Wallet, _ *Env) (Decision, error) {
	if tx.Action != domain.ActionBuy {
		return Decision{}, nil
	}

	value := tx.TotalValueUSD
	if value <= 0 {
		if tx.Amount <= 0 {
			return Decision{}, nil
		}
		return Decision{
			Copy:       true,
			SizeUSD:    s.MinPositionUSD,
			Confidence: ConfidenceLow,
			Reason:     "value unresolved, copied at floor size",
		}, nil
	}
	if value < s.MinTradeUSD {
		return Decision{}, nil
	}

	conf := ConfidenceMed
	if wr, known := w.KnownWinRate(); known {
		if wr < s.MinWinRate {
			return Decision{}, nil
		}
		if wr >= highConfWinRate {
			conf = ConfidenceHigh
		}
	} else {
		conf = downgraded(conf)
	}

	return Decision{
		Copy:       true,
		SizeUSD:    clampSize(value, s.CopyPct, s.MaxUSD, s.MinPositionUSD),
		Confidence: conf,
		Reason:     fmt.Sprintf("copying $%.2f buy", value),
	}, nil
}

// Exit applies the copy-trade bracket: stop-loss, then the trailing stop
// once armed, then take-profit, then the time stop. The trailing check
// runs before take-profit so a position that ran past the arm threshold
// and retraced reports the trail, not a stale profit target.
func (s *CopyTradeStrategy) Exit(_ context.Context, t *domain.PaperTrade, price float64, env *Env) (ExitDecision, error) {
	gain := gainFrom(t.EntryPrice, price)
	if gain <= -s.StopLoss {
		return ExitDecision{Exit: true, Fraction: 1, Reason: domain.ExitReasonStopLoss}, nil
	}
	if t.PeakPrice >= t.EntryPrice*(1+s.TrailArm) && price <= t.PeakPrice*(1-s.TrailGive) {
		return ExitDecision{Exit: true, Fraction: 1, Reason: domain.ExitReasonTrailingStop}, nil
	}
	if gain >= s.TakeProfit {
		return ExitDecision{Exit: true, Fraction: 1, Reason: domain.ExitReasonTakeProfit}, nil
	}
	if holdExpired(t, s.MaxHold, env.now()) {
		return ExitDecision{Exit: true, Fraction: 1, Reason: domain.ExitReasonTimeStop}, nil
	}
	return ExitDecision{}, nil
}

// Ensure CopyTradeStrategy implements Strategy
var _ Strategy = (*CopyTradeStrategy)(nil)
