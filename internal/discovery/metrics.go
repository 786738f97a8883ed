package discovery

import (
	"math"
	"sort"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// tradePair is one realized buy→sell round trip matched FIFO.
type tradePair struct {
	returnPct float64 // (sell - buy) / buy
	profitUSD float64 // (sell - buy) * matched amount
}

// walletMetrics summarizes a candidate wallet's realized history.
type walletMetrics struct {
	Pairs       int
	Wins        int
	WinRate     float64
	ProfitUSD   float64
	Consistency float64 // 1/(1+stddev of per-pair returns), in (0,1]
	RiskScore   float64 // 1 - worst drawdown fraction of the cumulative curve
}

// fifoLot is an open buy lot awaiting matching sells.
type fifoLot struct {
	amount float64
	price  float64
}

// matchTransfers folds a wallet's transfer history into realized pairs.
// Buys queue per token; each sell consumes the oldest lots first. Sells
// with nothing queued (inventory acquired before tracking) are dropped,
// as are legs without a resolved price.
func matchTransfers(transfers []*domain.Transfer) []tradePair {
	lots := make(map[string][]fifoLot)
	var pairs []tradePair

	for _, tr := range transfers {
		if tr.PriceUSD <= 0 || tr.Amount <= 0 {
			continue
		}
		key := string(tr.Chain) + ":" + tr.TokenAddress

		switch tr.Action {
		case domain.ActionBuy:
			lots[key] = append(lots[key], fifoLot{amount: tr.Amount, price: tr.PriceUSD})
		case domain.ActionSell:
			remaining := tr.Amount
			queue := lots[key]
			for remaining > 0 && len(queue) > 0 {
				lot := &queue[0]
				matched := math.Min(remaining, lot.amount)
				pairs = append(pairs, tradePair{
					returnPct: (tr.PriceUSD - lot.price) / lot.price,
					profitUSD: (tr.PriceUSD - lot.price) * matched,
				})
				lot.amount -= matched
				remaining -= matched
				if lot.amount <= 0 {
					queue = queue[1:]
				}
			}
			lots[key] = queue
		}
	}
	return pairs
}

// computeMetrics derives the gate and scoring inputs from matched pairs.
func computeMetrics(pairs []tradePair) walletMetrics {
	m := walletMetrics{Pairs: len(pairs)}
	if len(pairs) == 0 {
		return m
	}

	returns := make([]float64, 0, len(pairs))
	var cumulative, peak, worstDrawdown float64
	for _, p := range pairs {
		if p.profitUSD > 0 {
			m.Wins++
		}
		m.ProfitUSD += p.profitUSD
		returns = append(returns, p.returnPct)

		cumulative += p.profitUSD
		if cumulative > peak {
			peak = cumulative
		}
		if peak > 0 {
			if dd := (peak - cumulative) / peak; dd > worstDrawdown {
				worstDrawdown = dd
			}
		}
	}
	m.WinRate = float64(m.Wins) / float64(m.Pairs)
	m.Consistency = 1 / (1 + stddev(returns))
	m.RiskScore = 1 - math.Min(1, worstDrawdown)
	return m
}

// score maps metrics onto [0,100]: win rate 40%, profitability 30%,
// consistency 15%, risk management 15%. Profitability saturates at 10x
// the entry gate so one lucky trade cannot dominate the composite.
func (m walletMetrics) score(minProfitUSD float64) float64 {
	profitScale := minProfitUSD * 10
	if profitScale <= 0 {
		profitScale = 30_000
	}
	profit := math.Min(1, m.ProfitUSD/profitScale)
	if profit < 0 {
		profit = 0
	}
	s := 40*m.WinRate + 30*profit + 15*m.Consistency + 15*m.RiskScore
	return math.Min(100, math.Max(0, s))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	return math.Sqrt(variance / float64(len(xs)-1))
}

// priceRange returns the min and max resolved transfer prices for a token.
// ok is false when fewer than two priced transfers exist; a single point
// has no range to judge "early" against.
func priceRange(transfers []*domain.Transfer) (lo, hi float64, ok bool) {
	prices := make([]float64, 0, len(transfers))
	for _, tr := range transfers {
		if tr.PriceUSD > 0 {
			prices = append(prices, tr.PriceUSD)
		}
	}
	if len(prices) < 2 {
		return 0, 0, false
	}
	sort.Float64s(prices)
	return prices[0], prices[len(prices)-1], true
}
