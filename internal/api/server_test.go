package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/discovery"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/health"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/ingestion"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/ingestion/stub"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/risk"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage/memory"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/trading"
)

const testKey = "test-key"

type fixture struct {
	server     *Server
	wallets    *memory.WalletStore
	transfers  *memory.TransferStore
	trades     *memory.TradeStore
	discovered *memory.DiscoveryStore
}

func newFixture(t *testing.T, tweak func(*Options)) *fixture {
	t.Helper()

	wallets := memory.NewWalletStore()
	transfers := memory.NewTransferStore()
	tokens := memory.NewTokenStore()
	trades := memory.NewTradeStore()
	discovered := memory.NewDiscoveryStore()
	perf := memory.NewStrategyPerfStore()
	state := memory.NewStateStore()

	riskMgr := risk.NewManager(risk.ManagerOptions{
		State:   state,
		Trades:  trades,
		Perf:    perf,
		Wallets: wallets,
	})
	engine := trading.NewEngine(trading.EngineOptions{
		Risk:      riskMgr,
		Trades:    trades,
		Wallets:   wallets,
		Transfers: transfers,
		Tokens:    tokens,
		Perf:      perf,
		State:     state,
	})
	if err := engine.Restore(context.Background()); err != nil {
		t.Fatalf("restore engine: %v", err)
	}
	miner := discovery.NewMiner(discovery.MinerOptions{
		Tokens:     tokens,
		Transfers:  transfers,
		Wallets:    wallets,
		Discovered: discovered,
		State:      state,
	})
	ingest := ingestion.NewManager(ingestion.ManagerOptions{
		Scheduler:     ingestion.NewScheduler(time.Minute),
		Sources:       []ingestion.Source{stub.NewSource()},
		WalletStore:   wallets,
		TransferStore: transfers,
		TokenStore:    tokens,
		SettlingDelay: -1,
	})
	monitor := health.NewMonitor(health.Options{
		Probes: []health.Probe{
			{Provider: "stub", Tier: health.TierCritical, Group: "pricing", Check: health.AlwaysUp},
		},
	})

	opts := Options{
		Wallets:    wallets,
		Transfers:  transfers,
		Trades:     trades,
		Discovered: discovered,
		Perf:       perf,
		Engine:     engine,
		Risk:       riskMgr,
		Miner:      miner,
		Ingest:     ingest,
		Monitor:    monitor,
		APIKey:     testKey,
		MockMode:   true,
	}
	if tweak != nil {
		tweak(&opts)
	}

	return &fixture{
		server:     NewServer(opts),
		wallets:    wallets,
		transfers:  transfers,
		trades:     trades,
		discovered: discovered,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, key string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["mock_mode"] != true {
		t.Errorf("mock_mode = %v, want true", body["mock_mode"])
	}
}

func TestMutatingRequiresKey(t *testing.T) {
	f := newFixture(t, nil)
	payload := map[string]string{"chain": "ethereum", "status": "paused"}

	rec := f.do(t, http.MethodPost, "/api/wallets/0xabc/status", payload, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d, want 401", rec.Code)
	}
	if body := decode(t, rec); body["error"] != "unauthorized" {
		t.Errorf("error = %v, want unauthorized", body["error"])
	}

	rec = f.do(t, http.MethodPost, "/api/wallets/0xabc/status", payload, "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d, want 401", rec.Code)
	}
}

func TestWalletStatusUpdate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.wallets.Upsert(ctx, &domain.Wallet{
		Address: "0xabc", Chain: domain.ChainEthereum, Status: domain.WalletStatusActive,
	})
	if err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/api/wallets/0xabc/status",
		map[string]string{"chain": "ethereum", "status": "paused"}, testKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	w, err := f.wallets.Get(ctx, "0xabc", domain.ChainEthereum)
	if err != nil {
		t.Fatalf("reload wallet: %v", err)
	}
	if w.Status != domain.WalletStatusPaused {
		t.Errorf("wallet status = %q, want paused", w.Status)
	}

	rec = f.do(t, http.MethodPost, "/api/wallets/0xmissing/status",
		map[string]string{"chain": "ethereum", "status": "paused"}, testKey)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown wallet: status = %d, want 404", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/wallets/0xabc/status",
		map[string]string{"chain": "dogechain", "status": "paused"}, testKey)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad chain: status = %d, want 400", rec.Code)
	}
}

func TestWalletDetail(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.wallets.Upsert(ctx, &domain.Wallet{
		Address: "0xdef", Chain: domain.ChainBase, Status: domain.WalletStatusActive,
	})
	if err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/api/wallets/0xdef?chain=base", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Without the chain hint the address scan still resolves it.
	rec = f.do(t, http.MethodGet, "/api/wallets/0xDEF", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("case-insensitive lookup: status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/wallets/0xnope", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown: status = %d, want 404", rec.Code)
	}
}

func TestTradesFilter(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	open := &domain.PaperTrade{
		TokenAddress: "0xtok", Chain: domain.ChainEthereum, StrategyUsed: "copyTrade",
		EntryPrice: 1, Amount: 100, EntryValueUSD: 100, PeakPrice: 1,
		Status: domain.TradeStatusOpen, EntryTime: now,
	}
	if err := f.trades.Open(ctx, open); err != nil {
		t.Fatalf("open trade: %v", err)
	}
	closed := &domain.PaperTrade{
		TokenAddress: "0xtok2", Chain: domain.ChainEthereum, StrategyUsed: "smartMoney",
		EntryPrice: 2, Amount: 50, EntryValueUSD: 100, PeakPrice: 2,
		Status: domain.TradeStatusOpen, EntryTime: now,
	}
	if err := f.trades.Open(ctx, closed); err != nil {
		t.Fatalf("open second trade: %v", err)
	}
	if err := f.trades.Close(ctx, closed.ID, 3, now, domain.ExitReasonTakeProfit); err != nil {
		t.Fatalf("close trade: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/api/trades", nil, "")
	body := decode(t, rec)
	if _, ok := body["open"]; !ok {
		t.Error("default response missing open trades")
	}
	if _, ok := body["closed"]; !ok {
		t.Error("default response missing closed trades")
	}

	rec = f.do(t, http.MethodGet, "/api/trades?status=open&strategy=smartMoney", nil, "")
	body = decode(t, rec)
	if _, ok := body["closed"]; ok {
		t.Error("status=open response includes closed trades")
	}
	if got := body["open"].([]any); len(got) != 0 {
		t.Errorf("smartMoney open trades = %d, want 0", len(got))
	}

	rec = f.do(t, http.MethodGet, "/api/trades?status=bogus", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus status: code = %d, want 400", rec.Code)
	}
}

func TestDiscoveredPromotedFilter(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	for _, d := range []*domain.DiscoveredWallet{
		{Address: "walletA", Chain: domain.ChainSolana, FirstSeen: now, ProfitabilityScore: 80, DiscoveryMethod: domain.DiscoveryMethodTokenPump},
		{Address: "walletB", Chain: domain.ChainSolana, FirstSeen: now, ProfitabilityScore: 60, DiscoveryMethod: domain.DiscoveryMethodTokenPump},
	} {
		if err := f.discovered.Insert(ctx, d); err != nil {
			t.Fatalf("insert candidate: %v", err)
		}
	}
	if err := f.discovered.Promote(ctx, "walletA", domain.ChainSolana, now); err != nil {
		t.Fatalf("promote: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/api/discovered?promoted=false", nil, "")
	body := decode(t, rec)
	if got := body["count"].(float64); got != 1 {
		t.Errorf("unpromoted count = %v, want 1", got)
	}

	rec = f.do(t, http.MethodGet, "/api/discovered?promoted=maybe", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad bool: code = %d, want 400", rec.Code)
	}
}

func TestPromoteCandidate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	err := f.discovered.Insert(ctx, &domain.DiscoveredWallet{
		Address: "walletC", Chain: domain.ChainSolana, FirstSeen: now,
		ProfitabilityScore: 90, EstimatedWinRate: 0.7,
		DiscoveryMethod: domain.DiscoveryMethodTokenPump,
	})
	if err != nil {
		t.Fatalf("insert candidate: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/api/discovered/walletC/promote",
		map[string]string{"chain": "solana"}, testKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("promote: code = %d, body %s", rec.Code, rec.Body.String())
	}
	if _, err := f.wallets.Get(ctx, "walletC", domain.ChainSolana); err != nil {
		t.Errorf("promoted wallet not tracked: %v", err)
	}

	rec = f.do(t, http.MethodPost, "/api/discovered/walletC/promote",
		map[string]string{"chain": "solana"}, testKey)
	if rec.Code != http.StatusConflict {
		t.Errorf("double promote: code = %d, want 409", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/discovered/ghost/promote",
		map[string]string{"chain": "solana"}, testKey)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown candidate: code = %d, want 404", rec.Code)
	}
}

func TestWalletActivityRollup(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	seed := []*domain.Transfer{
		{WalletAddress: "0xaaa", Chain: domain.ChainEthereum, TxHash: "tx1", TokenAddress: "0xt", Action: domain.ActionBuy, Amount: 10, PriceUSD: 2, TotalValueUSD: 20, Timestamp: now},
		{WalletAddress: "0xaaa", Chain: domain.ChainEthereum, TxHash: "tx2", TokenAddress: "0xt", Action: domain.ActionSell, Amount: 5, PriceUSD: 3, TotalValueUSD: 15, Timestamp: now},
		{WalletAddress: "0xbbb", Chain: domain.ChainBase, TxHash: "tx3", TokenAddress: "0xt", Action: domain.ActionBuy, Amount: 1, PriceUSD: 1, TotalValueUSD: 1, Timestamp: now - 48*3600*1000},
	}
	for _, tr := range seed {
		if err := f.transfers.Insert(ctx, tr); err != nil {
			t.Fatalf("insert transfer: %v", err)
		}
	}

	rec := f.do(t, http.MethodGet, "/api/wallets/activity", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	body := decode(t, rec)
	activity := body["activity"].([]any)
	if len(activity) != 1 {
		t.Fatalf("wallets in rollup = %d, want 1 (stale transfer excluded)", len(activity))
	}
	row := activity[0].(map[string]any)
	if row["transfers"].(float64) != 2 || row["buys"].(float64) != 1 || row["sells"].(float64) != 1 {
		t.Errorf("rollup = %v", row)
	}
	if row["volume_usd"].(float64) != 35 {
		t.Errorf("volume = %v, want 35", row["volume_usd"])
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/dashboard", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	capital := body["capital"].(map[string]any)
	if capital["total_usd"].(float64) != trading.DefaultStartingCapitalUSD {
		t.Errorf("total capital = %v, want %v", capital["total_usd"], trading.DefaultStartingCapitalUSD)
	}
	if body["trading_paused"] != false {
		t.Errorf("trading_paused = %v, want false", body["trading_paused"])
	}
}

func TestSystemAndConnectionsStatus(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/system/status", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("system status: code = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["initialized"] != true {
		t.Errorf("initialized = %v", body["initialized"])
	}

	rec = f.do(t, http.MethodGet, "/api/connections/status", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("connections: code = %d", rec.Code)
	}
	body = decode(t, rec)
	providers := body["providers"].([]any)
	if len(providers) != 1 {
		t.Fatalf("providers = %d, want 1", len(providers))
	}
	p := providers[0].(map[string]any)
	if p["provider"] != "stub" || p["ok"] != true {
		t.Errorf("probe result = %v", p)
	}
}

func TestTrackRunsIngestTick(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.wallets.Upsert(ctx, &domain.Wallet{
		Address: "0xaaa", Chain: domain.ChainEthereum, Status: domain.WalletStatusActive,
	})
	if err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/api/track", nil, testKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("track: code = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestGeneralRateLimit(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.RateWindow = time.Hour
		o.RateMax = 2
	})

	for i := 0; i < 2; i++ {
		if rec := f.do(t, http.MethodGet, "/api/health", nil, ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: code = %d", i, rec.Code)
		}
	}
	rec := f.do(t, http.MethodGet, "/api/health", nil, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("over limit: code = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After")
	}
	if body := decode(t, rec); body["error"] != "rate_limited" {
		t.Errorf("error = %v, want rate_limited", body["error"])
	}
}

func TestUnknownRouteIsJSON(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/nope", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rec.Code)
	}
	if body := decode(t, rec); body["error"] != "not_found" {
		t.Errorf("error = %v, want not_found", body["error"])
	}
}
