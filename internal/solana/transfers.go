package solana

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/ingestion"
)

// Default transfer-fetch configuration.
const (
	DefaultSignatureLimit = 20
	DefaultConcurrency    = 4
	DefaultCursorLimit    = 100

	// maxSignaturePages bounds backward paging within one tick, so a
	// hyperactive wallet cannot starve the rest of the batch.
	maxSignaturePages = 5

	// balanceEpsilon absorbs float noise when summing UI amounts; a diff
	// below it is treated as no movement.
	balanceEpsilon = 1e-9
)

// Client turns raw RPC transaction data into classified token transfers for
// tracked wallets. Signature listing and detail fetches run in parallel per
// wallet; classification and the returned slice are serial and deterministic.
type Client struct {
	rpc         RPCClient
	sigLimit    int
	concurrency int
	logger      *log.Logger
	cursors     *ingestion.Cursors[string]
}

// ClientOptions contains configuration for creating a Client.
type ClientOptions struct {
	// RPC is required.
	RPC RPCClient
	// SignatureLimit caps signatures listed per wallet per tick. Defaults to 20.
	SignatureLimit int
	// Concurrency bounds parallel getTransaction fetches. Defaults to 4.
	Concurrency int
	Logger      *log.Logger
}

// NewClient creates a transfer client over an RPC client.
func NewClient(opts ClientOptions) *Client {
	sigLimit := opts.SignatureLimit
	if sigLimit <= 0 {
		sigLimit = DefaultSignatureLimit
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		rpc:         opts.RPC,
		sigLimit:    sigLimit,
		concurrency: concurrency,
		logger:      logger,
		cursors:     ingestion.NewCursors[string](DefaultCursorLimit),
	}
}

// Supports reports whether the client can serve the given chain.
func (c *Client) Supports(chain domain.Chain) bool {
	return chain == domain.ChainSolana
}

// GetRecentTokenTransfers lists new signatures for the wallet since the last
// seen one, fetches their details concurrently, and classifies SPL balance
// movements into buy/sell transfers re-serialized in chain order
// (oldest-first). The cursor advances to the newest signature only when
// every detail fetch succeeded, so a failed tick retries the same range.
func (c *Client) GetRecentTokenTransfers(ctx context.Context, address string, chain domain.Chain) ([]*domain.Transfer, error) {
	if chain != domain.ChainSolana {
		return nil, fmt.Errorf("unsupported chain %q", chain)
	}
	// A malformed address would burn an RPC round trip on a guaranteed miss.
	if err := ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("wallet %s: %w", address, err)
	}

	sigs, err := c.listNewSignatures(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, nil
	}

	// Fetch details in parallel; the indexed slice keeps newest-first
	// signature order for the serial classification pass.
	txs := make([]*Transaction, len(sigs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, sig := range sigs {
		if sig.Err != nil {
			continue // failed on-chain, nothing moved
		}
		g.Go(func() error {
			tx, err := c.rpc.GetTransaction(gctx, sig.Signature)
			if err != nil {
				return fmt.Errorf("transaction %s: %w", sig.Signature, err)
			}
			txs[i] = tx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Signatures arrive newest-first; classify from the tail so transfers
	// reach the store and the trading sink in chain order.
	var transfers []*domain.Transfer
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		if tx == nil || tx.Meta == nil || tx.Meta.Err != nil {
			continue
		}
		transfers = append(transfers, classifyTransaction(tx, address, sigs[i])...)
	}

	c.cursors.Put(address, sigs[0].Signature)
	c.logger.Printf("solana: wallet %s: %d signatures, %d transfers", address, len(sigs), len(transfers))
	return transfers, nil
}

// listNewSignatures returns the wallet's signatures since its cursor,
// newest-first. With a cursor set it pages backwards until the cursor is
// reached, so a burst larger than one page keeps its middle; the page cap
// bounds one wallet to maxSignaturePages * limit signatures per tick and
// anything older than that is dropped with the cursor advance. Without a
// cursor there is no lower bound to page toward, so the seeding tick takes
// a single page.
func (c *Client) listNewSignatures(ctx context.Context, address string) ([]SignatureInfo, error) {
	opts := &SignaturesOpts{Limit: c.sigLimit}
	until, hasCursor := c.cursors.Get(address)
	if hasCursor {
		opts.Until = until
	}

	var sigs []SignatureInfo
	for page := 0; page < maxSignaturePages; page++ {
		batch, err := c.rpc.GetSignaturesForAddress(ctx, address, opts)
		if err != nil {
			return nil, fmt.Errorf("signatures for %s: %w", address, err)
		}
		sigs = append(sigs, batch...)
		if !hasCursor || len(batch) < c.sigLimit {
			break
		}
		opts.Before = batch[len(batch)-1].Signature
	}
	return sigs, nil
}

// CursorLen reports the number of tracked wallet cursors.
func (c *Client) CursorLen() int {
	return c.cursors.Len()
}

// classifyTransaction sums post-minus-pre SPL balance diffs for the wallet's
// token accounts per mint. A positive diff is a buy, a negative one a sell;
// a swap therefore yields one row per leg. Mints are emitted in sorted order
// so repeated runs over the same transaction produce identical rows.
func classifyTransaction(tx *Transaction, wallet string, sig SignatureInfo) []*domain.Transfer {
	diffs := make(map[string]float64)
	for _, b := range tx.Meta.PreTokenBalances {
		if b.Owner == wallet {
			diffs[b.Mint] -= b.UIAmount
		}
	}
	for _, b := range tx.Meta.PostTokenBalances {
		if b.Owner == wallet {
			diffs[b.Mint] += b.UIAmount
		}
	}
	if len(diffs) == 0 {
		return nil
	}

	mints := make([]string, 0, len(diffs))
	for mint := range diffs {
		mints = append(mints, mint)
	}
	sort.Strings(mints)

	ts := tx.BlockTime
	if ts == 0 && sig.BlockTime != nil {
		ts = *sig.BlockTime
	}

	var out []*domain.Transfer
	for _, mint := range mints {
		diff := diffs[mint]
		if math.Abs(diff) < balanceEpsilon {
			continue
		}
		action := domain.ActionBuy
		if diff < 0 {
			action = domain.ActionSell
		}
		slot := tx.Slot
		out = append(out, &domain.Transfer{
			WalletAddress: wallet,
			Chain:         domain.ChainSolana,
			TxHash:        tx.Signature,
			TokenAddress:  mint,
			Action:        action,
			Amount:        math.Abs(diff),
			Timestamp:     ts * 1000,
			BlockNumber:   &slot,
		})
	}
	return out
}
