package domain

// System state keys persisted in the system_state table. Values are strings;
// numeric keys go through the store's float helpers.
const (
	StateTotalCapital     = "total_capital"
	StateAvailableCapital = "available_capital"
	StatePeakEquity       = "peak_equity"
	StateDiscoveryCount   = "discovery_count_today"
	StateLastDiscoveryRun = "last_discovery_run"
	StateTradingPaused    = "trading_paused"
)
