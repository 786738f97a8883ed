package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

// Default manager tunables.
const (
	DefaultSettlingDelay = 2 * time.Second
	DefaultConcurrency   = 6
)

// Manager runs one polling cycle: pick the rotation slice, fetch transfers
// per chain, resolve prices, store, and hand new rows to the trading engine.
// Fetches within a chain are concurrent; all writes are serialized so
// downstream consumers see transfers in a deterministic order.
type Manager struct {
	scheduler *Scheduler
	sources   []Source
	wallets   storage.WalletStore
	transfers storage.TransferStore
	tokens    storage.TokenStore
	oracle    PriceLookup
	sink      TransferSink

	settling    time.Duration
	concurrency int
	logger      *log.Logger
	running     atomic.Bool
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	Scheduler     *Scheduler
	Sources       []Source
	WalletStore   storage.WalletStore
	TransferStore storage.TransferStore
	TokenStore    storage.TokenStore
	// Oracle resolves prices for transfers whose source reported none.
	// Optional; unresolved transfers are stored with zero price.
	Oracle PriceLookup
	// Sink receives each newly inserted transfer. Optional.
	Sink TransferSink
	// SettlingDelay is the pause between chains within one tick. Defaults
	// to 2s; set negative to disable.
	SettlingDelay time.Duration
	// Concurrency bounds parallel wallet fetches within a chain. Defaults to 6.
	Concurrency int
	Logger      *log.Logger
}

// NewManager creates a new ingestion manager.
func NewManager(opts ManagerOptions) *Manager {
	settling := opts.SettlingDelay
	if settling == 0 {
		settling = DefaultSettlingDelay
	}
	if settling < 0 {
		settling = 0
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Manager{
		scheduler:   opts.Scheduler,
		sources:     opts.Sources,
		wallets:     opts.WalletStore,
		transfers:   opts.TransferStore,
		tokens:      opts.TokenStore,
		oracle:      opts.Oracle,
		sink:        opts.Sink,
		settling:    settling,
		concurrency: concurrency,
		logger:      logger,
	}
}

// TickResult summarizes one polling cycle.
type TickResult struct {
	WalletsPolled int
	Inserted      int
	Duplicates    int
	FailedWallets []string
	ByChain       map[domain.Chain]int
}

// RunTick executes one polling cycle for the slice owned by now. A tick that
// arrives while the previous one is still running is rejected with a warning
// and an empty result.
func (m *Manager) RunTick(ctx context.Context, now time.Time) (*TickResult, error) {
	res := &TickResult{ByChain: make(map[domain.Chain]int)}

	if !m.running.CompareAndSwap(false, true) {
		m.logger.Printf("ingest tick skipped: previous tick still running")
		return res, nil
	}
	defer m.running.Store(false)

	active, err := m.wallets.ListActive(ctx)
	if err != nil {
		return res, fmt.Errorf("list active wallets: %w", err)
	}

	slice := m.scheduler.NextSlice(now, active)
	if len(slice) == 0 {
		return res, nil
	}
	res.WalletsPolled = len(slice)

	byChain := make(map[domain.Chain][]*domain.Wallet)
	for _, w := range slice {
		byChain[w.Chain] = append(byChain[w.Chain], w)
	}
	chains := make([]domain.Chain, 0, len(byChain))
	for chain := range byChain {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })

	for i, chain := range chains {
		// Settle between chains, never after the last one.
		if i > 0 && m.settling > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(m.settling):
			}
		}
		m.pollChain(ctx, now, chain, byChain[chain], res)
	}

	return res, nil
}

// pollChain fetches every wallet in the group concurrently, then runs the
// serial write pass in stable wallet order.
func (m *Manager) pollChain(ctx context.Context, now time.Time, chain domain.Chain, wallets []*domain.Wallet, res *TickResult) {
	src := m.sourceFor(chain)
	if src == nil {
		m.logger.Printf("no source for chain %s, skipping %d wallets", chain, len(wallets))
		return
	}

	fetched := make([][]*domain.Transfer, len(wallets))
	failed := make([]bool, len(wallets))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, w := range wallets {
		g.Go(func() error {
			transfers, err := src.GetRecentTokenTransfers(ctx, w.Address, chain)
			if err != nil {
				m.logger.Printf("poll %s on %s: %v", w.Address, chain, err)
				failed[i] = true
				return nil
			}
			fetched[i] = transfers
			return nil
		})
	}
	// Goroutines report failures through the failed slice, never an error.
	_ = g.Wait()

	for i, w := range wallets {
		if failed[i] {
			res.FailedWallets = append(res.FailedWallets, w.Address)
			continue
		}

		inserted, dups := m.storeTransfers(ctx, fetched[i])
		res.Inserted += inserted
		res.Duplicates += dups
		res.ByChain[chain] += inserted

		if err := m.wallets.TouchLastChecked(ctx, w.Address, chain, now.UnixMilli()); err != nil {
			m.logger.Printf("touch last_checked %s on %s: %v", w.Address, chain, err)
		}
	}
}

// storeTransfers resolves prices, inserts rows and forwards new ones to the
// sink. Duplicates are counted, not errors.
func (m *Manager) storeTransfers(ctx context.Context, transfers []*domain.Transfer) (inserted, dups int) {
	for _, tr := range transfers {
		var marketCap float64
		if tr.PriceUSD == 0 && m.oracle != nil {
			if p := m.oracle.GetPrice(ctx, tr.TokenAddress, tr.Chain); p != nil {
				tr.PriceUSD = p.PriceUSD
				tr.TotalValueUSD = tr.Amount * p.PriceUSD
				marketCap = p.MarketCapUSD
			}
		}

		if err := m.transfers.Insert(ctx, tr); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				dups++
				continue
			}
			m.logger.Printf("store transfer %s: %v", tr.TxHash, err)
			continue
		}
		inserted++

		m.recordToken(ctx, tr, marketCap)

		if m.sink != nil {
			if err := m.sink.Process(ctx, tr); err != nil {
				m.logger.Printf("process transfer %s: %v", tr.TxHash, err)
			}
		}
	}
	return inserted, dups
}

// recordToken upserts the token row behind a transfer so pump detection and
// price history accumulate even for tokens we never trade.
func (m *Manager) recordToken(ctx context.Context, tr *domain.Transfer, marketCap float64) {
	if m.tokens == nil {
		return
	}
	token := &domain.Token{
		Address:         tr.TokenAddress,
		Chain:           tr.Chain,
		Symbol:          tr.TokenSymbol,
		FirstSeen:       tr.Timestamp,
		CurrentPriceUSD: tr.PriceUSD,
		MarketCapUSD:    marketCap,
		LastUpdated:     tr.Timestamp,
	}
	if err := m.tokens.AddOrUpdate(ctx, token); err != nil {
		m.logger.Printf("record token %s: %v", tr.TokenAddress, err)
	}
}

func (m *Manager) sourceFor(chain domain.Chain) Source {
	for _, src := range m.sources {
		if src != nil && src.Supports(chain) {
			return src
		}
	}
	return nil
}
