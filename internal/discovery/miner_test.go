package discovery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage/memory"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/strategy"
)

type minerFixture struct {
	tokens     *memory.TokenStore
	transfers  *memory.TransferStore
	wallets    *memory.WalletStore
	discovered *memory.DiscoveryStore
	state      *memory.StateStore
}

func newFixture() *minerFixture {
	return &minerFixture{
		tokens:     memory.NewTokenStore(),
		transfers:  memory.NewTransferStore(),
		wallets:    memory.NewWalletStore(),
		discovered: memory.NewDiscoveryStore(),
		state:      memory.NewStateStore(),
	}
}

func (f *minerFixture) miner(cfg Config, now time.Time) *Miner {
	return NewMiner(MinerOptions{
		Config:     cfg,
		Tokens:     f.tokens,
		Transfers:  f.transfers,
		Wallets:    f.wallets,
		Discovered: f.discovered,
		State:      f.state,
		Now:        func() time.Time { return now },
	})
}

// seedPumpToken stores a token that peaked at 5.0 and retraced to 1.0,
// with a whale establishing the top of the price range.
func (f *minerFixture) seedPumpToken(t *testing.T, token string, now time.Time) {
	t.Helper()
	ctx := context.Background()
	firstSeen := now.Add(-48 * time.Hour).UnixMilli()

	for _, price := range []float64{5.0, 1.0} {
		err := f.tokens.AddOrUpdate(ctx, &domain.Token{
			Address:         token,
			Chain:           domain.ChainSolana,
			Symbol:          "PUMP",
			FirstSeen:       firstSeen,
			CurrentPriceUSD: price,
			LastUpdated:     now.UnixMilli(),
		})
		if err != nil {
			t.Fatalf("seed token: %v", err)
		}
	}

	// A late buyer at the top anchors the range high.
	err := f.transfers.Insert(ctx, &domain.Transfer{
		WalletAddress: "whale-at-top",
		Chain:         domain.ChainSolana,
		TxHash:        "top-" + token,
		TokenAddress:  token,
		Action:        domain.ActionBuy,
		Amount:        10,
		PriceUSD:      5.0,
		Timestamp:     now.Add(-24 * time.Hour).UnixMilli(),
	})
	if err != nil {
		t.Fatalf("seed top buy: %v", err)
	}
}

// seedProfitableHistory gives wallet sixteen winning round trips on token,
// buying at 1.0 (the bottom of the range) and selling at 2.0.
func (f *minerFixture) seedProfitableHistory(t *testing.T, wallet, token string, now time.Time) {
	t.Helper()
	ctx := context.Background()
	base := now.Add(-40 * time.Hour)

	for i := 0; i < 16; i++ {
		buy := &domain.Transfer{
			WalletAddress: wallet,
			Chain:         domain.ChainSolana,
			TxHash:        fmt.Sprintf("%s-buy-%d", wallet, i),
			TokenAddress:  token,
			Action:        domain.ActionBuy,
			Amount:        300,
			PriceUSD:      1.0,
			Timestamp:     base.Add(time.Duration(2*i) * time.Minute).UnixMilli(),
		}
		sell := &domain.Transfer{
			WalletAddress: wallet,
			Chain:         domain.ChainSolana,
			TxHash:        fmt.Sprintf("%s-sell-%d", wallet, i),
			TokenAddress:  token,
			Action:        domain.ActionSell,
			Amount:        300,
			PriceUSD:      2.0,
			Timestamp:     base.Add(time.Duration(2*i+1) * time.Minute).UnixMilli(),
		}
		if err := f.transfers.Insert(ctx, buy); err != nil {
			t.Fatalf("seed buy %d: %v", i, err)
		}
		if err := f.transfers.Insert(ctx, sell); err != nil {
			t.Fatalf("seed sell %d: %v", i, err)
		}
	}
}

func TestMiner_Run_FindsEarlyProfitableBuyer(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	f := newFixture()
	f.seedPumpToken(t, "mint-pump", now)
	f.seedProfitableHistory(t, "earlybird", "mint-pump", now)

	res, err := f.miner(DefaultConfig(), now).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.PumpTokens != 1 {
		t.Errorf("pump tokens = %d, want 1", res.PumpTokens)
	}
	if res.Inserted != 1 {
		t.Fatalf("inserted = %d, want 1", res.Inserted)
	}

	d, err := f.discovered.Get(context.Background(), "earlybird", domain.ChainSolana)
	if err != nil {
		t.Fatalf("candidate not stored: %v", err)
	}
	if d.DiscoveryMethod != domain.DiscoveryMethodTokenPump {
		t.Errorf("method = %q, want %q", d.DiscoveryMethod, domain.DiscoveryMethodTokenPump)
	}
	if d.EstimatedWinRate != 1.0 {
		t.Errorf("win rate = %v, want 1.0", d.EstimatedWinRate)
	}
	if d.TrackedTrades != 16 || d.SuccessfulTrackedTrades != 16 {
		t.Errorf("pairs = %d/%d, want 16/16", d.SuccessfulTrackedTrades, d.TrackedTrades)
	}
	if d.ProfitabilityScore <= 0 || d.ProfitabilityScore > 100 {
		t.Errorf("score = %v, want (0,100]", d.ProfitabilityScore)
	}
	if d.Promoted {
		t.Error("fresh candidate must not be promoted")
	}
}

func TestMiner_Run_SkipsTrackedAndLateWallets(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	f := newFixture()
	f.seedPumpToken(t, "mint-pump", now)

	// Qualifying history, but the wallet is already tracked.
	f.seedProfitableHistory(t, "tracked", "mint-pump", now)
	err := f.wallets.Upsert(context.Background(), &domain.Wallet{
		Address: "tracked", Chain: domain.ChainSolana,
		StrategyType: strategy.NameCopyTrade, Status: domain.WalletStatusActive,
		DateAdded: now.UnixMilli(),
	})
	if err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	res, err := f.miner(DefaultConfig(), now).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Inserted != 0 {
		t.Errorf("inserted = %d, want 0; whale-at-top bought outside the early band and tracked is excluded", res.Inserted)
	}
}

func TestMiner_Run_DailyLimitAcrossReruns(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	f := newFixture()
	f.seedPumpToken(t, "mint-a", now)
	f.seedPumpToken(t, "mint-b", now)
	f.seedProfitableHistory(t, "alpha", "mint-a", now)
	f.seedProfitableHistory(t, "bravo", "mint-b", now)

	cfg := DefaultConfig()
	cfg.DailyLimit = 1
	ctx := context.Background()

	res1, err := f.miner(cfg, now).Run(ctx)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if res1.Inserted != 1 {
		t.Fatalf("first run inserted = %d, want 1", res1.Inserted)
	}

	// Same day: the budget is spent regardless of how often Run fires.
	res2, err := f.miner(cfg, now.Add(time.Hour)).Run(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if res2.Inserted != 0 {
		t.Errorf("second run inserted = %d, want 0", res2.Inserted)
	}

	// Next UTC day: budget resets and the remaining candidate lands.
	res3, err := f.miner(cfg, now.Add(24*time.Hour)).Run(ctx)
	if err != nil {
		t.Fatalf("third run failed: %v", err)
	}
	if res3.Inserted != 1 {
		t.Errorf("third run inserted = %d, want 1", res3.Inserted)
	}

	all, err := f.discovered.List(ctx, nil)
	if err != nil {
		t.Fatalf("list discovered: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("discovered rows = %d, want 2", len(all))
	}
}

func TestMiner_Run_BelowGatesRejected(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	f := newFixture()
	f.seedPumpToken(t, "mint-pump", now)

	// Five round trips only; under the trade-count gate.
	ctx := context.Background()
	base := now.Add(-40 * time.Hour)
	for i := 0; i < 5; i++ {
		for j, leg := range []string{domain.ActionBuy, domain.ActionSell} {
			price := 1.0
			if leg == domain.ActionSell {
				price = 2.0
			}
			err := f.transfers.Insert(ctx, &domain.Transfer{
				WalletAddress: "smallfry",
				Chain:         domain.ChainSolana,
				TxHash:        fmt.Sprintf("small-%d-%d", i, j),
				TokenAddress:  "mint-pump",
				Action:        leg,
				Amount:        300,
				PriceUSD:      price,
				Timestamp:     base.Add(time.Duration(2*i+j) * time.Minute).UnixMilli(),
			})
			if err != nil {
				t.Fatalf("seed transfer: %v", err)
			}
		}
	}

	res, err := f.miner(DefaultConfig(), now).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Examined != 1 {
		t.Errorf("examined = %d, want 1", res.Examined)
	}
	if res.Inserted != 0 {
		t.Errorf("inserted = %d, want 0", res.Inserted)
	}
}

func TestMiner_Promote(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	f := newFixture()
	ctx := context.Background()

	err := f.discovered.Insert(ctx, &domain.DiscoveredWallet{
		Address:            "hotshot",
		Chain:              domain.ChainSolana,
		FirstSeen:          now.UnixMilli(),
		ProfitabilityScore: 82,
		DiscoveryMethod:    domain.DiscoveryMethodTokenPump,
	})
	if err != nil {
		t.Fatalf("seed candidate: %v", err)
	}

	m := f.miner(DefaultConfig(), now)
	w, err := m.Promote(ctx, "hotshot", domain.ChainSolana)
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	if w.StrategyType != strategy.NameSmartMoney {
		t.Errorf("strategy = %q, want %q for a score of 82", w.StrategyType, strategy.NameSmartMoney)
	}
	if w.Status != domain.WalletStatusActive {
		t.Errorf("status = %q, want active", w.Status)
	}

	d, err := f.discovered.Get(ctx, "hotshot", domain.ChainSolana)
	if err != nil {
		t.Fatalf("reload candidate: %v", err)
	}
	if !d.Promoted || d.PromotedDate == nil {
		t.Error("candidate must carry the promotion flag and date")
	}

	if _, err := m.Promote(ctx, "hotshot", domain.ChainSolana); err == nil {
		t.Error("second promotion must fail")
	}
}

func TestMiner_Promote_LowScoreGetsFallbackStrategy(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	f := newFixture()
	ctx := context.Background()

	err := f.discovered.Insert(ctx, &domain.DiscoveredWallet{
		Address:            "steady",
		Chain:              domain.ChainEthereum,
		FirstSeen:          now.UnixMilli(),
		ProfitabilityScore: 61,
		DiscoveryMethod:    domain.DiscoveryMethodTokenPump,
	})
	if err != nil {
		t.Fatalf("seed candidate: %v", err)
	}

	w, err := f.miner(DefaultConfig(), now).Promote(ctx, "steady", domain.ChainEthereum)
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	if w.StrategyType != strategy.NameCopyTrade {
		t.Errorf("strategy = %q, want %q for a score of 61", w.StrategyType, strategy.NameCopyTrade)
	}
}
