package domain

import "time"

// StrategyPerformance aggregates one strategy's daily counters.
// Corresponds to strategy_performance table; (strategy_type, date) is unique.
type StrategyPerformance struct {
	StrategyType string  `json:"strategy_type"` // strategy name
	Date         string  `json:"date"`          // UTC day key, "2006-01-02"
	TradesOpened int     `json:"trades_opened"` // opens recorded on the day
	TradesClosed int     `json:"trades_closed"` // final closes recorded on the day
	Wins         int     `json:"wins"`          // closes with pnl > 0
	Losses       int     `json:"losses"`        // closes with pnl <= 0
	PnLUSD       float64 `json:"pnl_usd"`       // realized pnl, including partial-exit legs
	VolumeUSD    float64 `json:"volume_usd"`    // entry value opened on the day
}

// DateOf returns the UTC day key for a Unix-millisecond timestamp.
func DateOf(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}
