// Package evm fetches ERC-20 transfer activity through the unified
// multi-chain explorer V2 API. One API key serves every supported EVM chain;
// the chain is selected per request via its chainid.
package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/ingestion"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.etherscan.io/v2/api"
	DefaultSpacing     = 200 * time.Millisecond
	DefaultPageSize    = 50
	DefaultCursorLimit = 100
)

// Explorer chain ids per supported chain.
var chainIDs = map[domain.Chain]int{
	domain.ChainEthereum: 1,
	domain.ChainBase:     8453,
	domain.ChainArbitrum: 42161,
	domain.ChainOptimism: 10,
	domain.ChainPolygon:  137,
}

// Client fetches token transfers for tracked wallets. All requests across
// all chains share one global spacing gate, because the explorer rate limit
// is per key, not per chain.
type Client struct {
	http     *resty.Client
	apiKey   string
	pageSize int
	logger   *log.Logger

	// spacing gate: the mutex is held through the sleep so concurrent
	// callers serialize and each departure reserves the next slot.
	mu       sync.Mutex
	nextSlot time.Time
	spacing  time.Duration

	cursors *ingestion.Cursors[int64]
}

// ClientOptions contains configuration for creating a Client.
type ClientOptions struct {
	// BaseURL defaults to the public explorer V2 endpoint.
	BaseURL string
	// APIKey is required for live use.
	APIKey string
	// Spacing is the minimum gap between any two requests. Defaults to 200ms.
	Spacing time.Duration
	// PageSize caps transfers fetched per wallet per tick. Defaults to 50.
	PageSize int
	Logger   *log.Logger
}

// NewClient creates an explorer client.
func NewClient(opts ClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	spacing := opts.Spacing
	if spacing <= 0 {
		spacing = DefaultSpacing
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(15 * time.Second).
			SetHeader("Accept", "application/json"),
		apiKey:   opts.APIKey,
		pageSize: pageSize,
		spacing:  spacing,
		logger:   logger,
		cursors:  ingestion.NewCursors[int64](DefaultCursorLimit),
	}
}

// Supports reports whether chain is served by the explorer endpoint.
func (c *Client) Supports(chain domain.Chain) bool {
	_, ok := chainIDs[chain]
	return ok
}

// tokenTx is one row of the explorer's account/tokentx action. The explorer
// returns every numeric field as a string.
type tokenTx struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	ContractAddress string `json:"contractAddress"`
	Value           string `json:"value"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
}

type explorerResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// GetRecentTokenTransfers fetches transfers for a wallet newer than its
// cursor and classifies each as buy or sell. Rows are requested oldest-first
// so the output is in chain order and, when a burst exceeds the page size,
// the page holds the oldest rows — the cursor then advances only past blocks
// that were actually fetched and the remainder arrives on later ticks. The
// cursor advances only after a successful fetch, so a failed wallet is
// retried from the same block on the next tick.
func (c *Client) GetRecentTokenTransfers(ctx context.Context, address string, chain domain.Chain) ([]*domain.Transfer, error) {
	chainID, ok := chainIDs[chain]
	if !ok {
		return nil, fmt.Errorf("unsupported chain %q", chain)
	}
	wallet := strings.ToLower(address)

	startBlock := int64(0)
	if last, ok := c.cursors.Get(cursorKey(wallet, chain)); ok {
		startBlock = last + 1
	}

	if err := c.waitSlot(ctx); err != nil {
		return nil, err
	}

	var result explorerResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"chainid":    strconv.Itoa(chainID),
			"module":     "account",
			"action":     "tokentx",
			"address":    wallet,
			"startblock": strconv.FormatInt(startBlock, 10),
			"endblock":   "999999999",
			"page":       "1",
			"offset":     strconv.Itoa(c.pageSize),
			"sort":       "asc",
			"apikey":     c.apiKey,
		}).
		SetResult(&result).
		Get("")
	if err != nil {
		return nil, fmt.Errorf("explorer request: %w", err)
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return nil, fmt.Errorf("explorer rate limited (429)")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("explorer status %d", resp.StatusCode())
	}

	txs, err := decodeTokenTxs(&result)
	if err != nil {
		return nil, err
	}

	transfers := make([]*domain.Transfer, 0, len(txs))
	maxBlock := startBlock - 1
	for _, tx := range txs {
		// Every fetched row moves the cursor, including rows classification
		// rejects; only classified rows are returned.
		if block, err := strconv.ParseInt(tx.BlockNumber, 10, 64); err == nil && block > maxBlock {
			maxBlock = block
		}
		if t := classifyTokenTx(tx, wallet, chain); t != nil {
			transfers = append(transfers, t)
		}
	}

	next := maxBlock
	if len(txs) == c.pageSize {
		// A full page may have been cut mid-block; back off one block so the
		// next tick refetches the boundary. The store's unique key drops the
		// resulting duplicates.
		next = maxBlock - 1
	}
	if next >= startBlock {
		c.cursors.Put(cursorKey(wallet, chain), next)
	}

	return transfers, nil
}

// decodeTokenTxs unpacks the polymorphic result field: an array of rows on
// success, a bare string on errors like "Max rate limit reached", and an
// empty array when the wallet has no new activity.
func decodeTokenTxs(r *explorerResponse) ([]tokenTx, error) {
	var txs []tokenTx
	if err := json.Unmarshal(r.Result, &txs); err == nil {
		return txs, nil
	}

	var detail string
	if err := json.Unmarshal(r.Result, &detail); err == nil {
		if strings.Contains(strings.ToLower(detail), "no transactions") {
			return nil, nil
		}
		return nil, fmt.Errorf("explorer error: %s: %s", r.Message, detail)
	}
	return nil, fmt.Errorf("explorer error: %s", r.Message)
}

// classifyTokenTx maps one explorer row to a Transfer, or nil when the row
// does not involve the wallet directly.
func classifyTokenTx(tx tokenTx, wallet string, chain domain.Chain) *domain.Transfer {
	var action string
	switch {
	case strings.EqualFold(tx.To, wallet):
		action = domain.ActionBuy
	case strings.EqualFold(tx.From, wallet):
		action = domain.ActionSell
	default:
		return nil
	}

	decimals, err := strconv.Atoi(tx.TokenDecimal)
	if err != nil || decimals <= 0 {
		decimals = 18
	}
	rawValue, err := strconv.ParseFloat(tx.Value, 64)
	if err != nil {
		return nil
	}
	amount := rawValue / math.Pow10(decimals)

	tsSeconds, err := strconv.ParseInt(tx.TimeStamp, 10, 64)
	if err != nil {
		return nil
	}

	t := &domain.Transfer{
		WalletAddress: wallet,
		Chain:         chain,
		TxHash:        tx.Hash,
		TokenAddress:  strings.ToLower(tx.ContractAddress),
		TokenSymbol:   tx.TokenSymbol,
		Action:        action,
		Amount:        amount,
		Timestamp:     tsSeconds * 1000,
	}
	if block, err := strconv.ParseInt(tx.BlockNumber, 10, 64); err == nil {
		t.BlockNumber = &block
	}
	return t
}

// waitSlot enforces the global request spacing. Sequence matters: compute
// the wait, sleep, and only then publish the next slot. Publishing first
// would let a second caller depart inside the current gap.
func (c *Client) waitSlot(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wait := time.Until(c.nextSlot); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	c.nextSlot = time.Now().Add(c.spacing)
	return nil
}

// CursorLen reports the number of tracked wallet cursors.
func (c *Client) CursorLen() int {
	return c.cursors.Len()
}

func cursorKey(wallet string, chain domain.Chain) string {
	return wallet + "|" + string(chain)
}
