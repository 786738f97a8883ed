package domain

// DiscoveredWallet represents a candidate address produced by discovery,
// awaiting operator promotion or rejection.
// Corresponds to discovered_wallets table in PostgreSQL.
type DiscoveredWallet struct {
	Address                 string  `json:"address"`              // candidate address
	Chain                   Chain   `json:"chain"`                // network
	FirstSeen               int64   `json:"first_seen"`           // discovery timestamp (ms)
	ProfitabilityScore      float64 `json:"profitability_score"`  // composite score in [0,100]
	EstimatedWinRate        float64 `json:"estimated_win_rate"`   // win rate over FIFO-matched pairs
	TrackedTrades           int     `json:"tracked_trades"`       // matched pairs observed
	SuccessfulTrackedTrades int     `json:"successful_tracked_trades"`
	Promoted                bool    `json:"promoted"`                        // materialized into a Wallet row
	PromotedDate            *int64  `json:"promoted_date,omitempty"`         // promotion timestamp (ms)
	DiscoveryMethod         string  `json:"discovery_method"`                // how the candidate was found
	RejectionReason         *string `json:"rejection_reason,omitempty"`      // operator rejection note
}

// Discovery method constants
const (
	DiscoveryMethodTokenPump = "token_pump_analysis"
)
