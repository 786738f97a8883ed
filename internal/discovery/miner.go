// Package discovery mines the stored token and transfer history for new
// candidate wallets. Tokens that pumped and retraced mark where the money
// was made; wallets that bought near the bottom of those moves, with enough
// realized history to judge, become candidates for operator promotion.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/strategy"
)

// Default pipeline tunables.
const (
	DefaultPumpWindow       = 10 * 24 * time.Hour
	DefaultPumpRatio        = 2.5
	DefaultEarlyBuyFraction = 0.25
	DefaultMinPairs         = 15
	DefaultMinWinRate       = 0.55
	DefaultMinProfitUSD     = 3_000
	DefaultDailyLimit       = 15
)

// Promotion strategy assignment. High scorers copy like whales, the rest
// get the fallback.
const promoteSmartMoneyScore = 75

// Config collects the discovery thresholds.
type Config struct {
	PumpWindow       time.Duration // how far back first_seen may be
	PumpRatio        float64       // max/current price ratio that marks a pump
	EarlyBuyFraction float64       // lowest fraction of the price range that counts as early
	MinPairs         int           // realized pairs required to judge a wallet
	MinWinRate       float64
	MinProfitUSD     float64
	DailyLimit       int // candidate insertions per UTC day
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		PumpWindow:       DefaultPumpWindow,
		PumpRatio:        DefaultPumpRatio,
		EarlyBuyFraction: DefaultEarlyBuyFraction,
		MinPairs:         DefaultMinPairs,
		MinWinRate:       DefaultMinWinRate,
		MinProfitUSD:     DefaultMinProfitUSD,
		DailyLimit:       DefaultDailyLimit,
	}
}

// Miner runs the discovery pipeline against the stores.
type Miner struct {
	cfg        Config
	tokens     storage.TokenStore
	transfers  storage.TransferStore
	wallets    storage.WalletStore
	discovered storage.DiscoveryStore
	state      storage.StateStore
	logger     *log.Logger
	now        func() time.Time
	running    atomic.Bool
}

// MinerOptions contains configuration for creating a Miner.
type MinerOptions struct {
	Config     Config // zero value means DefaultConfig
	Tokens     storage.TokenStore
	Transfers  storage.TransferStore
	Wallets    storage.WalletStore
	Discovered storage.DiscoveryStore
	State      storage.StateStore
	Logger     *log.Logger
	// Now supplies the clock. Nil means time.Now.
	Now func() time.Time
}

// NewMiner creates a Miner.
func NewMiner(opts MinerOptions) *Miner {
	if opts.Config == (Config{}) {
		opts.Config = DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Miner{
		cfg:        opts.Config,
		tokens:     opts.Tokens,
		transfers:  opts.Transfers,
		wallets:    opts.Wallets,
		discovered: opts.Discovered,
		state:      opts.State,
		logger:     opts.Logger,
		now:        opts.Now,
	}
}

// RunResult summarizes one discovery pass.
type RunResult struct {
	PumpTokens     int
	Examined       int // candidate wallets whose history was scored
	Inserted       int
	BudgetRemained int // daily budget left after the pass
}

// candidate pairs a scored wallet with its metrics for ranking.
type candidate struct {
	address string
	chain   domain.Chain
	metrics walletMetrics
	score   float64
}

// Run executes one discovery pass. The daily insertion budget is enforced
// across re-runs within the same UTC day regardless of how often Run is
// invoked; a pass that arrives while the previous one is still running is
// skipped.
func (m *Miner) Run(ctx context.Context) (*RunResult, error) {
	res := &RunResult{}

	if !m.running.CompareAndSwap(false, true) {
		m.logger.Printf("discovery skipped: previous run still in progress")
		return res, nil
	}
	defer m.running.Store(false)

	now := m.now()
	budget, err := m.remainingBudget(ctx, now)
	if err != nil {
		return res, err
	}
	res.BudgetRemained = budget
	if budget <= 0 {
		m.logger.Printf("discovery skipped: daily limit of %d reached", m.cfg.DailyLimit)
		return res, nil
	}

	since := now.Add(-m.cfg.PumpWindow).UnixMilli()
	pumped, err := m.tokens.ListPumpCandidates(ctx, since, m.cfg.PumpRatio)
	if err != nil {
		return res, fmt.Errorf("list pump candidates: %w", err)
	}
	res.PumpTokens = len(pumped)

	seen := make(map[string]bool)
	var candidates []candidate
	for _, token := range pumped {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		buyers, err := m.earlyBuyers(ctx, token, now)
		if err != nil {
			m.logger.Printf("early buyers for %s/%s: %v", token.Chain, token.Address, err)
			continue
		}
		for _, addr := range buyers {
			key := string(token.Chain) + ":" + addr
			if seen[key] {
				continue
			}
			seen[key] = true

			tracked, err := m.alreadyKnown(ctx, addr, token.Chain)
			if err != nil {
				m.logger.Printf("check candidate %s: %v", addr, err)
				continue
			}
			if tracked {
				continue
			}

			c, ok, err := m.scoreWallet(ctx, addr, token.Chain)
			if err != nil {
				m.logger.Printf("score candidate %s: %v", addr, err)
				continue
			}
			res.Examined++
			if ok {
				candidates = append(candidates, c)
			}
		}
	}

	// Best first; ties break by address for a deterministic insertion set.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].address < candidates[j].address
	})

	for _, c := range candidates {
		if res.Inserted >= budget {
			break
		}
		d := &domain.DiscoveredWallet{
			Address:                 c.address,
			Chain:                   c.chain,
			FirstSeen:               now.UnixMilli(),
			ProfitabilityScore:      c.score,
			EstimatedWinRate:        c.metrics.WinRate,
			TrackedTrades:           c.metrics.Pairs,
			SuccessfulTrackedTrades: c.metrics.Wins,
			DiscoveryMethod:         domain.DiscoveryMethodTokenPump,
		}
		if err := m.discovered.Insert(ctx, d); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			return res, fmt.Errorf("insert candidate %s: %w", c.address, err)
		}
		res.Inserted++
	}

	if res.Inserted > 0 {
		if err := m.spendBudget(ctx, now, res.Inserted); err != nil {
			return res, err
		}
		res.BudgetRemained = budget - res.Inserted
	}

	m.logger.Printf("discovery pass: %d pumped tokens, %d wallets examined, %d inserted, %d budget left",
		res.PumpTokens, res.Examined, res.Inserted, res.BudgetRemained)
	return res, nil
}

// earlyBuyers returns wallets that bought the token while its price sat in
// the lowest configured fraction of the observed range.
func (m *Miner) earlyBuyers(ctx context.Context, token *domain.Token, now time.Time) ([]string, error) {
	history, err := m.transfers.ListByToken(ctx, token.Address, token.Chain, 0, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	lo, hi, ok := priceRange(history)
	if !ok || hi <= lo {
		return nil, nil
	}
	cutoff := lo + m.cfg.EarlyBuyFraction*(hi-lo)

	var buyers []string
	dedup := make(map[string]bool)
	for _, tr := range history {
		if tr.Action != domain.ActionBuy || tr.PriceUSD <= 0 || tr.PriceUSD > cutoff {
			continue
		}
		if dedup[tr.WalletAddress] {
			continue
		}
		dedup[tr.WalletAddress] = true
		buyers = append(buyers, tr.WalletAddress)
	}
	return buyers, nil
}

// alreadyKnown reports whether the address is tracked or already discovered.
func (m *Miner) alreadyKnown(ctx context.Context, address string, chain domain.Chain) (bool, error) {
	if _, err := m.wallets.Get(ctx, address, chain); err == nil {
		return true, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	if _, err := m.discovered.Get(ctx, address, chain); err == nil {
		return true, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	return false, nil
}

// scoreWallet computes realized metrics from the wallet's transfer history
// and applies the candidate gates.
func (m *Miner) scoreWallet(ctx context.Context, address string, chain domain.Chain) (candidate, bool, error) {
	history, err := m.transfers.ListByWallet(ctx, address, chain, 0)
	if err != nil {
		return candidate{}, false, err
	}
	// ListByWallet is newest first; FIFO matching needs chronological order.
	chronological := make([]*domain.Transfer, len(history))
	for i, tr := range history {
		chronological[len(history)-1-i] = tr
	}

	metrics := computeMetrics(matchTransfers(chronological))
	if metrics.Pairs < m.cfg.MinPairs ||
		metrics.WinRate < m.cfg.MinWinRate ||
		metrics.ProfitUSD < m.cfg.MinProfitUSD {
		return candidate{}, false, nil
	}
	return candidate{
		address: address,
		chain:   chain,
		metrics: metrics,
		score:   metrics.score(m.cfg.MinProfitUSD),
	}, true, nil
}

// remainingBudget returns how many insertions the current UTC day still
// allows. The counter and its day key live in system state so restarts and
// re-runs share one budget.
func (m *Miner) remainingBudget(ctx context.Context, now time.Time) (int, error) {
	today := domain.DateOf(now.UnixMilli())

	lastRun, err := m.state.Get(ctx, domain.StateLastDiscoveryRun)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("read last discovery run: %w", err)
	}
	if lastRun != today {
		return m.cfg.DailyLimit, nil
	}

	count, err := m.state.GetFloat(ctx, domain.StateDiscoveryCount)
	if errors.Is(err, storage.ErrNotFound) {
		count = 0
	} else if err != nil {
		return 0, fmt.Errorf("read discovery count: %w", err)
	}
	remaining := m.cfg.DailyLimit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// spendBudget records inserted candidates against today's budget.
func (m *Miner) spendBudget(ctx context.Context, now time.Time, inserted int) error {
	today := domain.DateOf(now.UnixMilli())

	lastRun, err := m.state.Get(ctx, domain.StateLastDiscoveryRun)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("read last discovery run: %w", err)
	}
	var count float64
	if lastRun == today {
		count, err = m.state.GetFloat(ctx, domain.StateDiscoveryCount)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("read discovery count: %w", err)
		}
	}

	if err := m.state.Set(ctx, domain.StateLastDiscoveryRun, today); err != nil {
		return fmt.Errorf("record discovery run: %w", err)
	}
	if err := m.state.SetFloat(ctx, domain.StateDiscoveryCount, count+float64(inserted)); err != nil {
		return fmt.Errorf("record discovery count: %w", err)
	}
	return nil
}

// Promote materializes a discovered wallet into a tracked Wallet row and
// flips the candidate's promoted flag. Operator action.
func (m *Miner) Promote(ctx context.Context, address string, chain domain.Chain) (*domain.Wallet, error) {
	d, err := m.discovered.Get(ctx, address, chain)
	if err != nil {
		return nil, fmt.Errorf("load candidate %s: %w", address, err)
	}
	if d.Promoted {
		return nil, fmt.Errorf("candidate %s: %w", address, storage.ErrDuplicateKey)
	}

	strategyType := strategy.NameCopyTrade
	if d.ProfitabilityScore >= promoteSmartMoneyScore {
		strategyType = strategy.NameSmartMoney
	}

	now := m.now().UnixMilli()
	w := &domain.Wallet{
		Address:      address,
		Chain:        chain,
		StrategyType: strategyType,
		Status:       domain.WalletStatusActive,
		DateAdded:    now,
		Notes: fmt.Sprintf("promoted from discovery, score %.1f, method %s",
			d.ProfitabilityScore, d.DiscoveryMethod),
	}
	if err := m.wallets.Upsert(ctx, w); err != nil {
		return nil, fmt.Errorf("materialize wallet %s: %w", address, err)
	}
	if err := m.discovered.Promote(ctx, address, chain, now); err != nil {
		return nil, fmt.Errorf("mark promoted %s: %w", address, err)
	}

	m.logger.Printf("promoted %s on %s as %s (score %.1f)", address, chain, strategyType, d.ProfitabilityScore)
	return w, nil
}
