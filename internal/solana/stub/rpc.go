// Package stub provides an in-memory solana.RPCClient for tests and mock runs.
package stub

import (
	"context"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/solana"
)

// RPCClient implements solana.RPCClient from in-memory fixtures. Signatures
// are stored newest first, matching RPC ordering.
type RPCClient struct {
	Transactions map[string]*solana.Transaction
	Signatures   map[string][]solana.SignatureInfo
	Slot         int64

	// TxErrs injects per-signature fetch failures.
	TxErrs map[string]error
	// SigErr fails every GetSignaturesForAddress call when set.
	SigErr error
}

// NewRPCClient creates an empty stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*solana.Transaction),
		Signatures:   make(map[string][]solana.SignatureInfo),
		TxErrs:       make(map[string]error),
	}
}

var _ solana.RPCClient = (*RPCClient)(nil)

// GetTransaction returns the stored transaction, or (nil, nil) for an
// unknown signature, matching the HTTP client's not-found behavior.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	if err, ok := c.TxErrs[signature]; ok {
		return nil, err
	}
	return c.Transactions[signature], nil
}

// GetSignaturesForAddress returns stored signatures newest first, honoring
// Before (exclusive start), Until (exclusive stop) and Limit.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	if c.SigErr != nil {
		return nil, c.SigErr
	}

	var out []solana.SignatureInfo
	collecting := opts == nil || opts.Before == ""
	for _, s := range c.Signatures[address] {
		if !collecting {
			if s.Signature == opts.Before {
				collecting = true
			}
			continue
		}
		if opts != nil && opts.Until != "" && s.Signature == opts.Until {
			break
		}
		out = append(out, s)
		if opts != nil && opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	return c.Slot, nil
}

// AddTransaction stores a transaction keyed by its signature.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.Transactions[tx.Signature] = tx
}

// AddSignatures stores signatures for an address, newest first.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.Signatures[address] = sigs
}
