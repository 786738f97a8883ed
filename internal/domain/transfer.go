package domain

// Transfer represents one observed token transfer by a tracked wallet.
// Corresponds to transfers table in PostgreSQL;
// (wallet_address, tx_hash, chain) is globally unique.
type Transfer struct {
	ID            int64   `json:"id"`             // BIGSERIAL primary key
	WalletAddress string  `json:"wallet_address"` // tracked wallet that moved the token
	Chain         Chain   `json:"chain"`          // network the transfer happened on
	TxHash        string  `json:"tx_hash"`        // transaction hash (EVM) or signature (Solana)
	TokenAddress  string  `json:"token_address"`  // token contract / mint
	TokenSymbol   string  `json:"token_symbol"`   // as reported by the source
	Action        string  `json:"action"`         // "buy" | "sell"
	Amount        float64 `json:"amount"`         // token units, >= 0
	PriceUSD      float64 `json:"price_usd"`      // unit price, 0 when unresolved
	TotalValueUSD float64 `json:"total_value_usd"`
	Timestamp     int64   `json:"timestamp"`              // on-chain timestamp in milliseconds
	BlockNumber   *int64  `json:"block_number,omitempty"` // block (EVM) or slot (Solana), nullable
	CreatedAt     int64   `json:"created_at"`             // record creation timestamp (ms)
}

// Transfer action constants
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// Key returns the dedup identity used by the processed-transfer LRU.
func (t *Transfer) Key() string {
	return t.WalletAddress + ":" + t.TxHash
}
