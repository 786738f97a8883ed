package domain

// Token tracks per-token price state across observations.
// Corresponds to tokens table in PostgreSQL. MaxPriceUSD is monotone
// non-decreasing and is the basis of pump detection.
type Token struct {
	Address         string  `json:"address"`   // token contract / mint
	Chain           Chain   `json:"chain"`     // network
	Symbol          string  `json:"symbol"`    // last reported symbol
	Decimals        int     `json:"decimals"`  // token decimals, 0 when unknown
	FirstSeen       int64   `json:"first_seen"` // first observation timestamp (ms)
	CreationTime    *int64  `json:"creation_time,omitempty"` // on-chain creation time (ms)
	CurrentPriceUSD float64 `json:"current_price_usd"`       // last resolved unit price
	MaxPriceUSD     float64 `json:"max_price_usd"`           // running max of resolved prices
	MarketCapUSD    float64 `json:"market_cap_usd"`          // last resolved market cap, 0 when unknown
	LastUpdated     int64   `json:"last_updated"`            // last price write timestamp (ms)
}

// PumpRatio returns max/current price, or 0 when the current price is
// unknown. A ratio well above 1 means the token has retraced from a peak.
func (t *Token) PumpRatio() float64 {
	if t.CurrentPriceUSD <= 0 {
		return 0
	}
	return t.MaxPriceUSD / t.CurrentPriceUSD
}
