// Package api is the HTTP boundary: the dashboard surface, operator
// actions and the live event stream. Handlers stay thin; every decision
// of consequence lives in the core packages, the API only reads state and
// forwards operator intent.
package api

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/discovery"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/health"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/ingestion"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/observability"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/pricing"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/risk"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/supervisor"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/trading"
)

// Default boundary rate limit.
const (
	DefaultRateWindow = 15 * time.Minute
	DefaultRateMax    = 100
)

// PriceLookup is the slice of the price oracle the dashboard needs to mark
// open positions to market.
type PriceLookup interface {
	GetPrice(ctx context.Context, token string, chain domain.Chain) *pricing.Price
}

// Server hosts the boundary API.
type Server struct {
	router *mux.Router
	cors   *cors.Cors

	wallets    storage.WalletStore
	transfers  storage.TransferStore
	trades     storage.TradeStore
	discovered storage.DiscoveryStore
	perf       storage.StrategyPerfStore

	engine  *trading.Engine
	risk    *risk.Manager
	miner   *discovery.Miner
	ingest  *ingestion.Manager
	monitor *health.Monitor
	super   *supervisor.Supervisor
	hub     *Hub
	metrics *observability.Metrics
	oracle  PriceLookup

	apiKey   string
	mockMode bool
	started  time.Time
	logger   *log.Logger
	now      func() time.Time

	generalLimit   *rate.Limiter
	mutatingLimit  *rate.Limiter
	discoveryLimit *rate.Limiter
}

// Options contains configuration for creating a Server.
type Options struct {
	Wallets    storage.WalletStore
	Transfers  storage.TransferStore
	Trades     storage.TradeStore
	Discovered storage.DiscoveryStore
	Perf       storage.StrategyPerfStore

	Engine     *trading.Engine
	Risk       *risk.Manager
	Miner      *discovery.Miner
	Ingest     *ingestion.Manager
	Monitor    *health.Monitor
	Supervisor *supervisor.Supervisor
	Hub        *Hub
	Metrics    *observability.Metrics
	// Oracle marks open dashboard positions to market. Optional.
	Oracle PriceLookup

	// APIKey guards state-mutating routes when non-empty.
	APIKey string
	// CORSOrigin restricts browsers; empty allows any origin.
	CORSOrigin string
	// RateWindow and RateMax shape the general bucket. Zero values get
	// the documented defaults.
	RateWindow time.Duration
	RateMax    int

	MockMode bool
	Logger   *log.Logger
	// Now supplies the clock. Nil means time.Now.
	Now func() time.Time
}

// NewServer creates a Server with all routes registered.
func NewServer(opts Options) *Server {
	window := opts.RateWindow
	if window <= 0 {
		window = DefaultRateWindow
	}
	max := opts.RateMax
	if max <= 0 {
		max = DefaultRateMax
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	origins := []string{"*"}
	if opts.CORSOrigin != "" {
		origins = []string{opts.CORSOrigin}
	}

	s := &Server{
		router: mux.NewRouter(),
		cors: cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-API-Key"},
		}),
		wallets:    opts.Wallets,
		transfers:  opts.Transfers,
		trades:     opts.Trades,
		discovered: opts.Discovered,
		perf:       opts.Perf,
		engine:     opts.Engine,
		risk:       opts.Risk,
		miner:      opts.Miner,
		ingest:     opts.Ingest,
		monitor:    opts.Monitor,
		super:      opts.Supervisor,
		hub:        opts.Hub,
		metrics:    opts.Metrics,
		oracle:     opts.Oracle,
		apiKey:     opts.APIKey,
		mockMode:   opts.MockMode,
		started:    now(),
		logger:     logger,
		now:        now,

		generalLimit:   rate.NewLimiter(rate.Every(window/time.Duration(max)), max),
		mutatingLimit:  rate.NewLimiter(rate.Every(window/mutatingPerWindow), mutatingPerWindow),
		discoveryLimit: rate.NewLimiter(rate.Every(time.Hour/discoveryPerHour), discoveryPerHour),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Handle("/api/health", s.readonly("health", s.handleHealth)).Methods(http.MethodGet)
	r.Handle("/api/dashboard", s.readonly("dashboard", s.handleDashboard)).Methods(http.MethodGet)

	// Fixed paths register before the {address} variable so mux does not
	// swallow them.
	r.Handle("/api/wallets/activity", s.readonly("wallets_activity", s.handleWalletActivity)).Methods(http.MethodGet)
	r.Handle("/api/wallets", s.readonly("wallets", s.handleWallets)).Methods(http.MethodGet)
	r.Handle("/api/wallets/{address}", s.readonly("wallet_detail", s.handleWalletDetail)).Methods(http.MethodGet)
	r.Handle("/api/wallets/{address}/status", s.mutating("wallet_status", s.handleWalletStatus)).Methods(http.MethodPost)

	r.Handle("/api/trades", s.readonly("trades", s.handleTrades)).Methods(http.MethodGet)

	r.Handle("/api/discovered", s.readonly("discovered", s.handleDiscovered)).Methods(http.MethodGet)
	r.Handle("/api/discovered/{address}/promote", s.mutating("promote", s.handlePromote)).Methods(http.MethodPost)
	r.Handle("/api/discover", s.countRequests("discover",
		s.limit(s.discoveryLimit, s.requireKey(http.HandlerFunc(s.handleDiscover))))).Methods(http.MethodPost)

	r.Handle("/api/track", s.mutating("track", s.handleTrack)).Methods(http.MethodPost)
	r.Handle("/api/trading/resume", s.mutating("trading_resume", s.handleResume)).Methods(http.MethodPost)
	r.Handle("/api/strategies/{name}/unpause", s.mutating("strategy_unpause", s.handleUnpauseStrategy)).Methods(http.MethodPost)

	r.Handle("/api/system/status", s.readonly("system_status", s.handleSystemStatus)).Methods(http.MethodGet)
	r.Handle("/api/connections/status", s.readonly("connections_status", s.handleConnections)).Methods(http.MethodGet)

	if s.hub != nil {
		r.HandleFunc("/api/ws", s.hub.ServeWS)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "unknown route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(s.router)
}
