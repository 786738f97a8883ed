package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// ArbitrageStrategy follows the EVM DeFi arb signature: a sizeable buy on
// an EVM chain from a wallet that trades in volume. It runs the tightest
// bracket in the catalogue because arb positions are not meant to ride.
type ArbitrageStrategy struct {
	MinTradeUSD    float64
	Pct            float64
	MaxUSD         float64
	StopLoss       float64
	TakeProfit     float64
	MinPositionUSD float64
}

// NewArbitrageStrategy creates an ArbitrageStrategy from shared params.
func NewArbitrageStrategy(p Params) *ArbitrageStrategy {
	return &ArbitrageStrategy{
		MinTradeUSD:    p.ArbMinTradeUSD,
		Pct:            p.ArbPct,
		MaxUSD:         p.ArbMaxUSD,
		StopLoss:       p.ArbStopLoss,
		TakeProfit:     p.ArbTakeProfit,
		MinPositionUSD: p.MinPositionUSD,
	}
}

// Name returns the canonical strategy name.
func (s *ArbitrageStrategy) Name() string { return NameArbitrage }

// Evaluate fires on EVM buys at or above the entry threshold. The
// threshold is on USD value, so an unresolved value never qualifies.
func (s *ArbitrageStrategy) Evaluate(_ context.Context, tx *domain.Transfer, w *domain.Wallet, _ *Env) (Decision, error) {
	if tx.Action != domain.ActionBuy || !tx.Chain.IsEVM() {
		return Decision{}, nil
	}
	if tx.TotalValueUSD < s.MinTradeUSD {
		return Decision{}, nil
	}

	conf := ConfidenceMed
	if tx.TotalValueUSD >= 10*s.MinTradeUSD {
		conf = ConfidenceHigh
	}
	if _, known := w.KnownWinRate(); !known {
		conf = downgraded(conf)
	}

	return Decision{
		Copy:       true,
		SizeUSD:    clampSize(tx.TotalValueUSD, s.Pct, s.MaxUSD, s.MinPositionUSD),
		Confidence: conf,
		Reason:     fmt.Sprintf("evm arb entry $%.0f on %s", tx.TotalValueUSD, tx.Chain),
	}, nil
}

// Exit applies the tight arb bracket. The position age limit is enforced
// by the trading engine.
func (s *ArbitrageStrategy) Exit(_ context.Context, t *domain.PaperTrade, price float64, _ *Env) (ExitDecision, error) {
	return bracketExit(t, price, s.StopLoss, s.TakeProfit, 0, time.Time{}), nil
}

// Ensure ArbitrageStrategy implements Strategy
var _ Strategy = (*ArbitrageStrategy)(nil)
