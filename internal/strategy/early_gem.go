package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// EarlyGemStrategy buys young tokens with proven liquidity, but only on
// the signal of wallets with an established win rate. Unlike the rest of
// the catalogue a missing win rate is a hard decline here: the whole edge
// is a good picker finding a token early.
type EarlyGemStrategy struct {
	MaxTokenAge    time.Duration
	MinLiquidity   float64
	MinWinRate     float64
	Pct            float64
	MaxUSD         float64
	StopLoss       float64
	TakeProfit     float64 // multiple of entry price
	MinPositionUSD float64
}

// NewEarlyGemStrategy creates an EarlyGemStrategy from shared params.
func NewEarlyGemStrategy(p Params) *EarlyGemStrategy {
	return &EarlyGemStrategy{
		MaxTokenAge:    p.GemMaxTokenAge,
		MinLiquidity:   p.GemMinLiquidity,
		MinWinRate:     p.GemMinWinRate,
		Pct:            p.GemPct,
		MaxUSD:         p.GemMaxUSD,
		StopLoss:       p.GemStopLoss,
		TakeProfit:     p.GemTakeProfit,
		MinPositionUSD: p.MinPositionUSD,
	}
}

// Name returns the canonical strategy name.
func (s *EarlyGemStrategy) Name() string { return NameEarlyGem }

// Evaluate gates on token age, current liquidity and the wallet's win
// rate. A token we have never stored has no age evidence and declines;
// so does one whose liquidity the oracle cannot prove.
func (s *EarlyGemStrategy) Evaluate(ctx context.Context, tx *domain.Transfer, w *domain.Wallet, env *Env) (Decision, error) {
	if tx.Action != domain.ActionBuy {
		return Decision{}, nil
	}

	wr, known := w.KnownWinRate()
	if !known || wr < s.MinWinRate {
		return Decision{}, nil
	}

	tok, err := env.Tokens.Get(ctx, tx.TokenAddress, tx.Chain)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Decision{}, nil
		}
		return Decision{}, fmt.Errorf("token lookup for %s: %w", tx.TokenAddress, err)
	}
	born := tok.FirstSeen
	if tok.CreationTime != nil {
		born = *tok.CreationTime
	}
	if env.now().UnixMilli()-born > s.MaxTokenAge.Milliseconds() {
		return Decision{}, nil
	}

	price := env.Oracle.GetPrice(ctx, tx.TokenAddress, tx.Chain)
	if price == nil || price.LiquidityUSD < s.MinLiquidity {
		return Decision{}, nil
	}

	conf := ConfidenceMed
	if wr >= highConfWinRate {
		conf = ConfidenceHigh
	}

	size := s.MinPositionUSD
	if tx.TotalValueUSD > 0 {
		size = clampSize(tx.TotalValueUSD, s.Pct, s.MaxUSD, s.MinPositionUSD)
	} else if tx.Amount <= 0 {
		return Decision{}, nil
	}

	return Decision{
		Copy:       true,
		SizeUSD:    size,
		Confidence: conf,
		Reason:     fmt.Sprintf("young token, $%.0f liquidity, %.0f%% win rate", price.LiquidityUSD, wr*100),
	}, nil
}

// Exit stops out at the wide gem stop or takes profit at the target
// multiple of entry. The position age limit is enforced by the trading
// engine.
func (s *EarlyGemStrategy) Exit(_ context.Context, t *domain.PaperTrade, price float64, _ *Env) (ExitDecision, error) {
	if gainFrom(t.EntryPrice, price) <= -s.StopLoss {
		return ExitDecision{Exit: true, Fraction: 1, Reason: domain.ExitReasonStopLoss}, nil
	}
	if t.EntryPrice > 0 && price >= t.EntryPrice*s.TakeProfit {
		return ExitDecision{Exit: true, Fraction: 1, Reason: domain.ExitReasonTakeProfit}, nil
	}
	return ExitDecision{}, nil
}

// Ensure EarlyGemStrategy implements Strategy
var _ Strategy = (*EarlyGemStrategy)(nil)
