package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// tierEpsilon absorbs float rounding so a price of exactly N x entry
// reliably clears the N x tier.
const tierEpsilon = 1e-9

// memeTiers is the tiered take-profit schedule, highest multiple first.
// Fractions apply to the *current* amount and each tier fires at most
// once per trade, keyed by its note marker.
var memeTiers = []struct {
	Multiple float64
	Fraction float64
	Note     string
}{
	{10, 0.10, "tier_10"},
	{5, 0.30, "tier_5"},
	{2, 0.60, "tier_2"},
}

// MemecoinStrategy rides herd behavior: it fires when enough distinct
// tracked wallets bought the same token inside the lookback window. It is
// Solana-biased in confidence and takes profit in tiers rather than at a
// single target.
type MemecoinStrategy struct {
	MinWallets     int           // distinct buyers required inside the window
	Window         time.Duration // lookback for the wallet-count gate
	Pct            float64
	MaxUSD         float64
	StopLoss       float64
	MinPositionUSD float64
	MaxHold        time.Duration
}

// NewMemecoinStrategy creates a MemecoinStrategy from shared params.
func NewMemecoinStrategy(p Params) *MemecoinStrategy {
	return &MemecoinStrategy{
		MinWallets:     p.MemeMinWallets,
		Window:         p.MemeWindow,
		Pct:            p.MemePct,
		MaxUSD:         p.MemeMaxUSD,
		StopLoss:       p.MemeStopLoss,
		MinPositionUSD: p.MinPositionUSD,
		MaxHold:        p.MaxHold,
	}
}

// Name returns the canonical strategy name.
func (s *MemecoinStrategy) Name() string { return NameMemecoin }

// Evaluate fires when at least MinWallets distinct wallets bought the
// token within the window. The triggering transfer is already stored, so
// its wallet counts toward the gate.
func (s *MemecoinStrategy) Evaluate(ctx context.Context, tx *domain.Transfer, w *domain.Wallet, env *Env) (Decision, error) {
	if tx.Action != domain.ActionBuy {
		return Decision{}, nil
	}

	now := env.now().UnixMilli()
	rows, err := env.Transfers.ListByToken(ctx, tx.TokenAddress, tx.Chain, now-s.Window.Milliseconds(), now)
	if err != nil {
		return Decision{}, fmt.Errorf("copy-count lookup for %s: %w", tx.TokenAddress, err)
	}
	buyers := distinctBuyers(rows)
	if buyers < s.MinWallets {
		return Decision{}, nil
	}

	size := s.MinPositionUSD
	if tx.TotalValueUSD > 0 {
		size = clampSize(tx.TotalValueUSD, s.Pct, s.MaxUSD, s.MinPositionUSD)
	} else if tx.Amount <= 0 {
		return Decision{}, nil
	}

	conf := ConfidenceLow
	if tx.Chain == domain.ChainSolana {
		conf = ConfidenceMed
		if buyers >= 2*s.MinWallets {
			conf = ConfidenceHigh
		}
	}
	if _, known := w.KnownWinRate(); !known {
		conf = downgraded(conf)
	}

	return Decision{
		Copy:       true,
		SizeUSD:    size,
		Confidence: conf,
		Reason:     fmt.Sprintf("%d wallets bought within window", buyers),
	}, nil
}

// Exit checks the stop first, then fires the highest reached tier that
// has not fired yet, then the time stop. The notes journal keeps each
// tier idempotent. Tier fractions multiply against the current amount, so
// a gapped price converges to the same residual whatever the firing order.
func (s *MemecoinStrategy) Exit(_ context.Context, t *domain.PaperTrade, price float64, env *Env) (ExitDecision, error) {
	gain := gainFrom(t.EntryPrice, price)
	if gain <= -s.StopLoss {
		return ExitDecision{Exit: true, Fraction: 1, Reason: domain.ExitReasonStopLoss}, nil
	}

	if t.EntryPrice > 0 {
		mult := price / t.EntryPrice
		for _, tier := range memeTiers {
			if mult >= tier.Multiple-tierEpsilon && !t.HasNote(tier.Note) {
				return ExitDecision{
					Exit:     true,
					Fraction: tier.Fraction,
					Reason:   domain.ExitReasonTakeProfit,
					Note:     tier.Note,
				}, nil
			}
		}
	}

	if holdExpired(t, s.MaxHold, env.now()) {
		return ExitDecision{Exit: true, Fraction: 1, Reason: domain.ExitReasonTimeStop}, nil
	}
	return ExitDecision{}, nil
}

// Ensure MemecoinStrategy implements Strategy
var _ Strategy = (*MemecoinStrategy)(nil)
