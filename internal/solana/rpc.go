package solana

import "context"

// RPCClient defines Solana RPC HTTP interface.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature with SPL token
	// balance metadata. Returns (nil, nil) when the signature is unknown.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetSlot retrieves the current slot. Used as a liveness probe.
	GetSlot(ctx context.Context) (int64, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
}

// TransactionMeta contains transaction metadata. The pre/post token balance
// snapshots are what transfer classification works from.
type TransactionMeta struct {
	Err               interface{}
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// TokenBalance is one SPL token account snapshot inside a transaction.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	UIAmount     float64
	Decimals     int
}
