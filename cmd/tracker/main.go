// Package main runs the wallet tracker: multi-chain transfer ingestion,
// the paper-trading engine, position management, wallet discovery and the
// boundary API, driven by a job supervisor.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/api"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/config"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/discovery"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/evm"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/health"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/ingestion"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/ingestion/stub"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/observability"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/pricing"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/risk"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/solana"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage/memory"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage/migrations"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage/postgres"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/strategy"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/supervisor"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/trading"
)

const shutdownTimeout = 15 * time.Second

func main() {
	port := flag.Int("port", 0, "listen port (overrides PORT)")
	mock := flag.Bool("mock", false, "force mock mode (synthetic sources, no network)")
	flag.Parse()

	logger := log.New(os.Stdout, "[main] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *mock {
		cfg.MockMode = true
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.LogLevel == "error" || cfg.LogLevel == "quiet" {
		componentSink = io.Discard
	}

	db, cleanup, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	oracle := pricing.NewOracle(pricing.OracleOptions{
		Sources: priceSources(cfg),
		Logger:  componentLogger("oracle"),
	})

	names := cfg.EnabledStrategies
	if len(names) == 0 {
		names = strategy.AllNames
	}
	strategies, err := strategy.FromNames(names, strategy.DefaultParams())
	if err != nil {
		return fmt.Errorf("strategies: %w", err)
	}
	logger.Printf("enabled strategies: %v", names)

	riskMgr := risk.NewManager(risk.ManagerOptions{
		State:   db.state,
		Trades:  db.trades,
		Perf:    db.perf,
		Wallets: db.wallets,
		Logger:  componentLogger("risk"),
	})
	if err := riskMgr.Restore(ctx, names); err != nil {
		return fmt.Errorf("restore risk state: %w", err)
	}

	hub := api.NewHub(componentLogger("ws"))
	metrics := observability.NewMetrics()

	engine := trading.NewEngine(trading.EngineOptions{
		Strategies:         strategies,
		Risk:               riskMgr,
		Oracle:             oracle,
		Trades:             db.trades,
		Wallets:            db.wallets,
		Transfers:          db.transfers,
		Tokens:             db.tokens,
		Perf:               db.perf,
		State:              db.state,
		Events:             &eventTap{hub: hub, metrics: metrics},
		StartingCapitalUSD: cfg.TotalCapitalUSD,
		Logger:             componentLogger("engine"),
	})
	if err := engine.Restore(ctx); err != nil {
		return fmt.Errorf("restore engine: %w", err)
	}

	sources, solanaRPC := chainSources(cfg, logger)
	ingest := ingestion.NewManager(ingestion.ManagerOptions{
		Scheduler:     ingestion.NewScheduler(cfg.TrackingInterval),
		Sources:       sources,
		WalletStore:   db.wallets,
		TransferStore: db.transfers,
		TokenStore:    db.tokens,
		Oracle:        oracle,
		Sink:          engine,
		Logger:        componentLogger("ingest"),
	})

	miner := discovery.NewMiner(discovery.MinerOptions{
		Tokens:     db.tokens,
		Transfers:  db.transfers,
		Wallets:    db.wallets,
		Discovered: db.discovered,
		State:      db.state,
		Logger:     componentLogger("discovery"),
	})

	monitor := health.NewMonitor(health.Options{
		Probes: buildProbes(cfg, solanaRPC),
		Logger: componentLogger("health"),
	})

	super := supervisor.New(supervisor.Options{Logger: componentLogger("jobs")})
	if err := addJobs(super, cfg, ingest, engine, riskMgr, miner, monitor, oracle, metrics, logger); err != nil {
		return err
	}
	super.OnStop(func() { engine.Shutdown() })

	server := api.NewServer(api.Options{
		Wallets:    db.wallets,
		Transfers:  db.transfers,
		Trades:     db.trades,
		Discovered: db.discovered,
		Perf:       db.perf,
		Engine:     engine,
		Risk:       riskMgr,
		Miner:      miner,
		Ingest:     ingest,
		Monitor:    monitor,
		Supervisor: super,
		Hub:        hub,
		Metrics:    metrics,
		Oracle:     oracle,
		APIKey:     cfg.APIKey,
		CORSOrigin: cfg.CORSOrigin,
		RateWindow: cfg.RateLimitWindow,
		RateMax:    cfg.RateLimitMax,
		MockMode:   cfg.MockMode,
		Logger:     componentLogger("api"),
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		super.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Printf("listening on :%d (mock=%v, backend=%s)", cfg.Port, cfg.MockMode, db.backend)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// dbStores bundles one backend's store set.
type dbStores struct {
	backend    string
	wallets    storage.WalletStore
	transfers  storage.TransferStore
	tokens     storage.TokenStore
	trades     storage.TradeStore
	discovered storage.DiscoveryStore
	perf       storage.StrategyPerfStore
	state      storage.StateStore
}

// openStores selects Postgres when DATABASE_URL is set, in-memory otherwise.
func openStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (*dbStores, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Println("DATABASE_URL unset, using in-memory storage")
		return &dbStores{
			backend:    "memory",
			wallets:    memory.NewWalletStore(),
			transfers:  memory.NewTransferStore(),
			tokens:     memory.NewTokenStore(),
			trades:     memory.NewTradeStore(),
			discovered: memory.NewDiscoveryStore(),
			perf:       memory.NewStrategyPerfStore(),
			state:      memory.NewStateStore(),
		}, func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return &dbStores{
		backend:    "postgres",
		wallets:    postgres.NewWalletStore(pool),
		transfers:  postgres.NewTransferStore(pool),
		tokens:     postgres.NewTokenStore(pool),
		trades:     postgres.NewTradeStore(pool),
		discovered: postgres.NewDiscoveryStore(pool),
		perf:       postgres.NewStrategyPerfStore(pool),
		state:      postgres.NewStateStore(pool),
	}, pool.Close, nil
}

// priceSources builds the oracle cascade in priority order.
func priceSources(cfg *config.Config) []pricing.Source {
	if cfg.MockMode {
		return []pricing.Source{stub.NewPriceSource()}
	}
	var out []pricing.Source
	if cfg.CoinGeckoKey != "" {
		out = append(out, pricing.NewCoinGecko("", cfg.CoinGeckoKey))
	}
	if cfg.CoinMarketCapKey != "" {
		out = append(out, pricing.NewCoinMarketCap("", cfg.CoinMarketCapKey))
	}
	out = append(out, pricing.NewDexScreener(""), pricing.NewJupiter(""))
	return out
}

// chainSources builds the transfer sources. The Solana RPC client is also
// returned for the health probe; nil in mock mode.
func chainSources(cfg *config.Config, logger *log.Logger) ([]ingestion.Source, *solana.HTTPClient) {
	if cfg.MockMode {
		return []ingestion.Source{stub.NewSource()}, nil
	}

	var sources []ingestion.Source
	if cfg.EVMExplorerKey != "" {
		var src ingestion.Source = evm.NewClient(evm.ClientOptions{
			APIKey: cfg.EVMExplorerKey,
			Logger: componentLogger("evm"),
		})
		if len(cfg.EVMChains) > 0 {
			src = restrictChains(src, cfg.EVMChains)
		}
		sources = append(sources, src)
	} else {
		logger.Println("EVM_EXPLORER_KEY unset, EVM ingestion disabled")
	}

	rpc := solana.NewHTTPClient(cfg.SolanaRPCURL())
	sources = append(sources, solana.NewClient(solana.ClientOptions{
		RPC:    rpc,
		Logger: componentLogger("solana"),
	}))
	return sources, rpc
}

// chainSubset narrows a source to an allowlist of chains.
type chainSubset struct {
	ingestion.Source
	allowed map[domain.Chain]bool
}

func restrictChains(src ingestion.Source, chains []string) ingestion.Source {
	allowed := make(map[domain.Chain]bool, len(chains))
	for _, c := range chains {
		allowed[domain.Chain(c)] = true
	}
	return chainSubset{Source: src, allowed: allowed}
}

func (c chainSubset) Supports(chain domain.Chain) bool {
	return c.allowed[chain] && c.Source.Supports(chain)
}

// buildProbes wires the provider health checks the deployment actually uses.
func buildProbes(cfg *config.Config, solanaRPC *solana.HTTPClient) []health.Probe {
	if cfg.MockMode {
		return []health.Probe{
			{Provider: "mock-source", Tier: health.TierCritical, Group: "mock", Check: health.AlwaysUp},
		}
	}

	probes := []health.Probe{
		{Provider: "dexscreener", Tier: health.TierCritical, Group: "pricing",
			Check: health.HTTPCheck("https://api.dexscreener.com/latest/dex/search?q=SOL")},
		{Provider: "jupiter", Tier: health.TierOptional, Group: "pricing",
			Check: health.HTTPCheck("https://api.jup.ag")},
	}
	if cfg.CoinGeckoKey != "" {
		probes = append(probes, health.Probe{
			Provider: "coingecko", Tier: health.TierOptional, Group: "pricing",
			Check: health.HTTPCheck("https://api.coingecko.com/api/v3/ping"),
		})
	}
	if cfg.EVMExplorerKey != "" {
		probes = append(probes, health.Probe{
			Provider: "evm-explorer", Tier: health.TierCritical, Group: "evm",
			Check: health.HTTPCheck(evm.DefaultBaseURL),
		})
	}
	if solanaRPC != nil {
		probes = append(probes, health.Probe{
			Provider: "solana-rpc", Tier: health.TierCritical, Group: "solana",
			Check: func(ctx context.Context) error {
				_, err := solanaRPC.GetSlot(ctx)
				return err
			},
		})
	}
	return probes
}

// addJobs registers the recurring work on the supervisor.
func addJobs(
	super *supervisor.Supervisor,
	cfg *config.Config,
	ingest *ingestion.Manager,
	engine *trading.Engine,
	riskMgr *risk.Manager,
	miner *discovery.Miner,
	monitor *health.Monitor,
	oracle *pricing.Oracle,
	metrics *observability.Metrics,
	logger *log.Logger,
) error {
	jobs := []supervisor.Job{
		{Name: "ingest", Every: cfg.TrackingInterval, Fn: func(ctx context.Context) error {
			res, err := ingest.RunTick(ctx, time.Now())
			metrics.ObserveJob("ingest", err != nil)
			if res != nil {
				byChain := make(map[string]int, len(res.ByChain))
				for chain, n := range res.ByChain {
					byChain[string(chain)] = n
				}
				metrics.ObserveIngest(byChain, res.Duplicates, res.WalletsPolled, len(res.FailedWallets))
			}
			return err
		}},
		{Name: "manage", Every: cfg.ManageInterval, Fn: func(ctx context.Context) error {
			res, err := engine.ManageOpenPositions(ctx)
			metrics.ObserveJob("manage", err != nil)
			if res != nil {
				total, available := engine.Capital()
				metrics.OpenTrades.Set(float64(res.Checked - res.Closed))
				metrics.CapitalTotal.Set(total)
				metrics.CapitalFree.Set(available)
				metrics.EquityUSD.Set(res.EquityUSD)
				metrics.OracleCacheSize.Set(float64(oracle.CacheLen()))
			}
			return err
		}},
		{Name: "metrics", Every: cfg.MetricsInterval, Fn: func(ctx context.Context) error {
			now := time.Now()
			if err := riskMgr.ReviewStrategies(ctx, now); err != nil {
				metrics.ObserveJob("metrics", true)
				return err
			}
			err := riskMgr.ReviewWallets(ctx, now)
			metrics.ObserveJob("metrics", err != nil)
			return err
		}},
		{Name: "discover", Every: cfg.DiscoverInterval, Fn: func(ctx context.Context) error {
			res, err := miner.Run(ctx)
			metrics.ObserveJob("discover", err != nil)
			if res != nil {
				metrics.DiscoveryCandidates.Add(float64(res.Inserted))
			}
			return err
		}},
		{Name: "status", Every: cfg.StatusInterval, Fn: func(ctx context.Context) error {
			monitor.Probe(ctx)
			for _, st := range monitor.Snapshot() {
				up := 0.0
				if st.OK {
					up = 1
				}
				metrics.ProviderUp.WithLabelValues(st.Provider).Set(up)
			}
			total, available := engine.Capital()
			paused, _ := riskMgr.GloballyPaused()
			logger.Printf("capital %.2f/%.2f, paused=%v, providers_healthy=%v",
				available, total, paused, monitor.Healthy())
			metrics.ObserveJob("status", false)
			return nil
		}},
	}
	for _, j := range jobs {
		if err := super.Add(j); err != nil {
			return fmt.Errorf("register job %s: %w", j.Name, err)
		}
	}
	return nil
}

// eventTap forwards trade lifecycle events to the websocket hub and folds
// them into the trade counters.
type eventTap struct {
	hub     *api.Hub
	metrics *observability.Metrics
}

func (t *eventTap) Publish(event string, data any) {
	t.hub.Publish(event, data)
	ev, ok := data.(*trading.TradeEvent)
	if !ok {
		return
	}
	switch event {
	case trading.EventTradeOpened:
		t.metrics.TradesOpened.WithLabelValues(ev.Strategy).Inc()
	case trading.EventTradeClosed:
		t.metrics.TradesClosed.WithLabelValues(ev.Strategy, ev.Reason).Inc()
	case trading.EventTradeReduced:
		t.metrics.TradesReduced.WithLabelValues(ev.Strategy).Inc()
	}
}

// componentSink is where per-component loggers write; LOG_LEVEL=error
// silences them, leaving only [main] output.
var componentSink io.Writer = os.Stdout

func componentLogger(name string) *log.Logger {
	return log.New(componentSink, "["+name+"] ", log.LstdFlags)
}
