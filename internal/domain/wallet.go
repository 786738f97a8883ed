package domain

// Wallet represents a tracked on-chain address.
// Corresponds to wallets table in PostgreSQL.
type Wallet struct {
	Address          string   `json:"address"`           // chain-native address (lowercased for EVM)
	Chain            Chain    `json:"chain"`             // network the address lives on
	StrategyType     string   `json:"strategy_type"`     // default categorization assigned at add time
	WinRate          *float64 `json:"win_rate"`          // successful/total over closed copies, nil = no history
	TotalTrades      int      `json:"total_trades"`      // closed copy trades attributed to this wallet
	SuccessfulTrades int      `json:"successful_trades"` // closed copies with positive pnl
	TotalPnLUSD      float64  `json:"total_pnl_usd"`     // realized pnl across closed copies
	AvgTradeSizeUSD  float64  `json:"avg_trade_size_usd"`
	BiggestWinUSD    float64  `json:"biggest_win_usd"`
	BiggestLossUSD   float64  `json:"biggest_loss_usd"` // largest single realized loss (negative)
	Status           string   `json:"status"`           // "active" | "paused" | "demoted"
	DateAdded        int64    `json:"date_added"`       // Unix timestamp in milliseconds
	LastChecked      int64    `json:"last_checked"`     // last ingest poll (ms), 0 = never
	Notes            string   `json:"notes,omitempty"`  // free-form operator notes
}

// Wallet status constants
const (
	WalletStatusActive  = "active"
	WalletStatusPaused  = "paused"
	WalletStatusDemoted = "demoted"
)

// IsActive reports whether the wallet is eligible for polling and copying.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// KnownWinRate returns the win rate and whether any closed history exists.
func (w *Wallet) KnownWinRate() (float64, bool) {
	if w.WinRate == nil {
		return 0, false
	}
	return *w.WinRate, true
}
