package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// VolumeBreakoutStrategy fires when buy volume over a token breaches a
// multiple of the token's own baseline with enough distinct buyers behind
// it. The baseline is the token's average hourly buy volume over the span
// preceding the inspection window, so a token with no prior history never
// fires: a breakout needs a baseline to break out of.
type VolumeBreakoutStrategy struct {
	Window         time.Duration // recent window inspected for the breakout
	Baseline       time.Duration // total span used to compute the baseline
	Multiplier     float64       // window volume must reach Multiplier x hourly baseline
	MinBuyerCount  int
	Pct            float64
	MaxUSD         float64
	StopLoss       float64
	TakeProfit     float64
	MinPositionUSD float64
	MaxHold        time.Duration
}

// NewVolumeBreakoutStrategy creates a VolumeBreakoutStrategy from shared params.
func NewVolumeBreakoutStrategy(p Params) *VolumeBreakoutStrategy {
	return &VolumeBreakoutStrategy{
		Window:         p.VolumeWindow,
		Baseline:       p.VolumeBaseline,
		Multiplier:     p.VolumeMultiplier,
		MinBuyerCount:  p.MinBuyerCount,
		Pct:            p.VolumePct,
		MaxUSD:         p.VolumeMaxUSD,
		StopLoss:       p.VolumeStopLoss,
		TakeProfit:     p.VolumeTakeProfit,
		MinPositionUSD: p.MinPositionUSD,
		MaxHold:        p.MaxHold,
	}
}

// Name returns the canonical strategy name.
func (s *VolumeBreakoutStrategy) Name() string { return NameVolumeBreakout }

// Evaluate inspects stored transfers over the token across all tracked
// wallets. The triggering transfer is already stored when evaluation runs,
// so it counts toward the window itself.
func (s *VolumeBreakoutStrategy) Evaluate(ctx context.Context, tx *domain.Transfer, w *domain.Wallet, env *Env) (Decision, error) {
	if tx.Action != domain.ActionBuy {
		return Decision{}, nil
	}

	now := env.now().UnixMilli()
	rows, err := env.Transfers.ListByToken(ctx, tx.TokenAddress, tx.Chain, now-s.Baseline.Milliseconds(), now)
	if err != nil {
		return Decision{}, fmt.Errorf("volume lookup for %s: %w", tx.TokenAddress, err)
	}

	cut := now - s.Window.Milliseconds()
	var recent, prior []*domain.Transfer
	for _, r := range rows {
		if r.Timestamp >= cut {
			recent = append(recent, r)
		} else {
			prior = append(prior, r)
		}
	}

	priorHours := (s.Baseline - s.Window).Hours()
	if priorHours <= 0 {
		return Decision{}, nil
	}
	baselineHourly := buyVolumeUSD(prior) / priorHours
	if baselineHourly <= 0 {
		return Decision{}, nil
	}

	windowUSD := buyVolumeUSD(recent)
	buyers := distinctBuyers(recent)
	if windowUSD < s.Multiplier*baselineHourly || buyers < s.MinBuyerCount {
		return Decision{}, nil
	}

	reason := fmt.Sprintf("volume %.1fx hourly baseline, %d buyers", windowUSD/baselineHourly, buyers)

	value := tx.TotalValueUSD
	if value <= 0 {
		// The breakout evidence comes from the stored window, so an
		// unresolved trigger value still copies at the floor size.
		return Decision{Copy: true, SizeUSD: s.MinPositionUSD, Confidence: ConfidenceLow, Reason: reason}, nil
	}

	conf := ConfidenceMed
	if windowUSD >= 2*s.Multiplier*baselineHourly {
		conf = ConfidenceHigh
	}
	if _, known := w.KnownWinRate(); !known {
		conf = downgraded(conf)
	}

	return Decision{
		Copy:       true,
		SizeUSD:    clampSize(value, s.Pct, s.MaxUSD, s.MinPositionUSD),
		Confidence: conf,
		Reason:     reason,
	}, nil
}

// Exit applies a plain bracket plus the mandatory time stop. The verdict
// is computed synchronously from the given price; no volume re-check runs
// here, so it can never be dropped.
func (s *VolumeBreakoutStrategy) Exit(_ context.Context, t *domain.PaperTrade, price float64, env *Env) (ExitDecision, error) {
	return bracketExit(t, price, s.StopLoss, s.TakeProfit, s.MaxHold, env.now()), nil
}

// Ensure VolumeBreakoutStrategy implements Strategy
var _ Strategy = (*VolumeBreakoutStrategy)(nil)
