package trading

// Event names published on the stream hub.
const (
	EventTradeOpened  = "trade_opened"
	EventTradeClosed  = "trade_closed"
	EventTradeReduced = "trade_reduced"
)

// EventSink receives trade lifecycle events. The websocket hub in the API
// layer satisfies this; a nil sink drops events.
type EventSink interface {
	Publish(event string, data any)
}

// TradeEvent is the payload attached to every trade lifecycle event.
// Fields that only apply to one lifecycle stage are omitted elsewhere.
type TradeEvent struct {
	ID              int64   `json:"id"`
	TokenAddress    string  `json:"token_address"`
	TokenSymbol     string  `json:"token_symbol"`
	Chain           string  `json:"chain"`
	Strategy        string  `json:"strategy"`
	SourceWallet    string  `json:"source_wallet,omitempty"`
	Price           float64 `json:"price"`
	SizeUSD         float64 `json:"size_usd,omitempty"`
	Confidence      string  `json:"confidence,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	PnLUSD          float64 `json:"pnl_usd,omitempty"`
	RemainingAmount float64 `json:"remaining_amount,omitempty"`
}
