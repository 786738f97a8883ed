package domain

import "strings"

// PaperTrade represents a simulated position opened against the virtual
// capital pool. Corresponds to paper_trades table in PostgreSQL.
type PaperTrade struct {
	ID            int64    `json:"id"`             // BIGSERIAL primary key
	TokenAddress  string   `json:"token_address"`  // token contract / mint
	TokenSymbol   string   `json:"token_symbol"`   // symbol at open
	Chain         Chain    `json:"chain"`          // network
	StrategyUsed  string   `json:"strategy_used"`  // strategy that won selection, not the wallet default
	SourceWallet  string   `json:"source_wallet"`  // wallet whose transfer triggered the open
	EntryPrice    float64  `json:"entry_price"`    // unit price at open, never mutated
	Amount        float64  `json:"amount"`         // token units, shrinks on partial exits
	EntryValueUSD float64  `json:"entry_value_usd"` // entry_price * amount, maintained as amount shrinks
	PeakPrice     float64  `json:"peak_price"`     // max price observed while open, seeded with entry
	Status        string   `json:"status"`         // "open" | "closed"
	EntryTime     int64    `json:"entry_time"`     // open timestamp (ms)
	ExitPrice     *float64 `json:"exit_price,omitempty"`
	ExitValueUSD  *float64 `json:"exit_value_usd,omitempty"` // exit_price * remaining amount
	PnL           *float64 `json:"pnl,omitempty"`            // realized pnl of the final close leg
	PnLPercent    *float64 `json:"pnl_percent,omitempty"`    // (exit-entry)/entry * 100
	ExitTime      *int64   `json:"exit_time,omitempty"`      // close timestamp (ms)
	ExitReason    *string  `json:"exit_reason,omitempty"`    // reason code
	Notes         string   `json:"notes,omitempty"`          // append-only comma-separated event markers
}

// Trade status constants
const (
	TradeStatusOpen   = "open"
	TradeStatusClosed = "closed"
)

// Exit reason codes
const (
	ExitReasonStopLoss     = "stop_loss"
	ExitReasonTakeProfit   = "take_profit"
	ExitReasonTrailingStop = "trailing_stop"
	ExitReasonTimeStop     = "time_stop"
	ExitReasonManual       = "manual"
)

// IsOpen reports whether the trade is still open.
func (p *PaperTrade) IsOpen() bool {
	return p.Status == TradeStatusOpen
}

// HasNote reports whether marker was already appended to the notes journal.
// Markers are exact comma-separated tokens, so tier_2 never matches tier_20.
func (p *PaperTrade) HasNote(marker string) bool {
	if p.Notes == "" {
		return false
	}
	for _, n := range strings.Split(p.Notes, ",") {
		if strings.TrimSpace(n) == marker {
			return true
		}
	}
	return false
}

// NoteValue returns the suffix of the first marker with the given prefix,
// e.g. NoteValue("via_") on "via_smartMoney,tier_2" returns "smartMoney".
func (p *PaperTrade) NoteValue(prefix string) (string, bool) {
	for _, n := range strings.Split(p.Notes, ",") {
		n = strings.TrimSpace(n)
		if strings.HasPrefix(n, prefix) {
			return strings.TrimPrefix(n, prefix), true
		}
	}
	return "", false
}
