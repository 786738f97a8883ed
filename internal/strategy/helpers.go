package strategy

import (
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// clampSize applies the catalogue sizing formula min(max, pct*value) and
// floors the result at min so a qualifying source trade never produces an
// unobservably small position.
func clampSize(value, pct, max, min float64) float64 {
	size := pct * value
	if size > max {
		size = max
	}
	if size < min {
		size = min
	}
	return size
}

// downgraded lowers a confidence label one notch. Used when the source
// wallet has no closed history yet.
func downgraded(c string) string {
	if c == ConfidenceHigh {
		return ConfidenceMed
	}
	return ConfidenceLow
}

// gainFrom returns the fractional price change from entry.
func gainFrom(entry, price float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (price - entry) / entry
}

// holdExpired reports whether an open position has reached its age limit.
func holdExpired(t *domain.PaperTrade, maxHold time.Duration, now time.Time) bool {
	if maxHold <= 0 {
		return false
	}
	return now.UnixMilli()-t.EntryTime >= maxHold.Milliseconds()
}

// bracketExit applies a plain stop-loss / take-profit / time-stop bracket.
// Price checks run before the age check so a stopped-out position reports
// the price reason even when it is also overdue.
func bracketExit(t *domain.PaperTrade, price, stopLoss, takeProfit float64, maxHold time.Duration, now time.Time) ExitDecision {
	gain := gainFrom(t.EntryPrice, price)
	if gain <= -stopLoss {
		return ExitDecision{Exit: true, Fraction: 1, Reason: domain.ExitReasonStopLoss}
	}
	if takeProfit > 0 && gain >= takeProfit {
		return ExitDecision{Exit: true, Fraction: 1, Reason: domain.ExitReasonTakeProfit}
	}
	if holdExpired(t, maxHold, now) {
		return ExitDecision{Exit: true, Fraction: 1, Reason: domain.ExitReasonTimeStop}
	}
	return ExitDecision{}
}

// distinctBuyers counts unique wallets that bought in rows.
func distinctBuyers(rows []*domain.Transfer) int {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r.Action == domain.ActionBuy {
			seen[r.WalletAddress] = struct{}{}
		}
	}
	return len(seen)
}

// buyVolumeUSD sums the resolved USD value of buys in rows. Rows with an
// unresolved value contribute nothing.
func buyVolumeUSD(rows []*domain.Transfer) float64 {
	var total float64
	for _, r := range rows {
		if r.Action == domain.ActionBuy {
			total += r.TotalValueUSD
		}
	}
	return total
}
