package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// SmartMoneyStrategy follows whale-sized buys. It requires a resolved
// price and a trade value at or above the whale threshold, sizes larger
// than copyTrade and runs a tighter bracket.
type SmartMoneyStrategy struct {
	WhaleThresholdUSD float64
	Pct               float64
	MaxUSD            float64
	StopLoss          float64
	TakeProfit        float64
	MinPositionUSD    float64
}

// NewSmartMoneyStrategy creates a SmartMoneyStrategy from shared params.
func NewSmartMoneyStrategy(p Params) *SmartMoneyStrategy {
	return &SmartMoneyStrategy{
		WhaleThresholdUSD: p.WhaleThresholdUSD,
		Pct:               p.SmartPct,
		MaxUSD:            p.SmartMaxUSD,
		StopLoss:          p.SmartStopLoss,
		TakeProfit:        p.SmartTakeProfit,
		MinPositionUSD:    p.MinPositionUSD,
	}
}

// Name returns the canonical strategy name.
func (s *SmartMoneyStrategy) Name() string { return NameSmartMoney }

// Evaluate fires only on buys with a known price and a value at or above
// the whale threshold. There is no defensive amount fallback here: an
// unresolved value cannot prove whale size.
func (s *SmartMoneyStrategy) Evaluate(_ context.Context, tx *domain.Transfer, w *domain.Wallet, _ *Env) (Decision, error) {
	if tx.Action != domain.ActionBuy || tx.PriceUSD <= 0 {
		return Decision{}, nil
	}
	if tx.TotalValueUSD < s.WhaleThresholdUSD {
		return Decision{}, nil
	}

	conf := ConfidenceMed
	if tx.TotalValueUSD >= 5*s.WhaleThresholdUSD {
		conf = ConfidenceHigh
	}
	if _, known := w.KnownWinRate(); !known {
		conf = downgraded(conf)
	}

	return Decision{
		Copy:       true,
		SizeUSD:    clampSize(tx.TotalValueUSD, s.Pct, s.MaxUSD, s.MinPositionUSD),
		Confidence: conf,
		Reason:     fmt.Sprintf("whale buy $%.0f", tx.TotalValueUSD),
	}, nil
}

// Exit applies the smart-money bracket. The position age limit is
// enforced by the trading engine.
func (s *SmartMoneyStrategy) Exit(_ context.Context, t *domain.PaperTrade, price float64, _ *Env) (ExitDecision, error) {
	return bracketExit(t, price, s.StopLoss, s.TakeProfit, 0, time.Time{}), nil
}

// Ensure SmartMoneyStrategy implements Strategy
var _ Strategy = (*SmartMoneyStrategy)(nil)
