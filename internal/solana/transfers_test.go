package solana_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/solana"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/solana/stub"
)

// Tracked wallet under test; a real keypair-derived address so it passes
// the on-curve check.
const testWallet = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func ptr[T any](v T) *T { return &v }

func bal(mint, owner string, amount float64) solana.TokenBalance {
	return solana.TokenBalance{Mint: mint, Owner: owner, UIAmount: amount, Decimals: 6}
}

func tokenTx(sig string, slot, blockTime int64, pre, post []solana.TokenBalance) *solana.Transaction {
	return &solana.Transaction{
		Slot:      slot,
		Signature: sig,
		BlockTime: blockTime,
		Meta: &solana.TransactionMeta{
			PreTokenBalances:  pre,
			PostTokenBalances: post,
		},
	}
}

func sigInfo(sig string, slot int64) solana.SignatureInfo {
	return solana.SignatureInfo{Signature: sig, Slot: slot, BlockTime: ptr(int64(1700000000))}
}

func TestClient_ClassifiesSwapLegs(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddSignatures(testWallet, []solana.SignatureInfo{sigInfo("sig1", 500)})
	rpc.AddTransaction(tokenTx("sig1", 500, 1700000000,
		[]solana.TokenBalance{
			bal("usdcMint", testWallet, 100),
			bal("bonkMint", "someoneElse", 5),
		},
		[]solana.TokenBalance{
			bal("usdcMint", testWallet, 40),
			bal("bonkMint", testWallet, 1000),
			bal("bonkMint", "someoneElse", 2),
		},
	))

	client := solana.NewClient(solana.ClientOptions{RPC: rpc})
	transfers, err := client.GetRecentTokenTransfers(context.Background(), testWallet, domain.ChainSolana)
	if err != nil {
		t.Fatalf("GetRecentTokenTransfers: %v", err)
	}

	if len(transfers) != 2 {
		t.Fatalf("expected one transfer per swap leg, got %d", len(transfers))
	}

	// Mints are emitted sorted, so the bonk leg comes first.
	buy := transfers[0]
	if buy.TokenAddress != "bonkMint" || buy.Action != domain.ActionBuy {
		t.Errorf("expected bonk buy first, got %s %s", buy.Action, buy.TokenAddress)
	}
	if buy.Amount != 1000 {
		t.Errorf("expected buy amount 1000, got %v", buy.Amount)
	}

	sell := transfers[1]
	if sell.TokenAddress != "usdcMint" || sell.Action != domain.ActionSell {
		t.Errorf("expected usdc sell second, got %s %s", sell.Action, sell.TokenAddress)
	}
	if sell.Amount != 60 {
		t.Errorf("expected sell amount 60, got %v", sell.Amount)
	}

	for _, tr := range transfers {
		if tr.WalletAddress != testWallet {
			t.Errorf("unexpected wallet %s", tr.WalletAddress)
		}
		if tr.Chain != domain.ChainSolana {
			t.Errorf("unexpected chain %s", tr.Chain)
		}
		if tr.TxHash != "sig1" {
			t.Errorf("unexpected tx hash %s", tr.TxHash)
		}
		if tr.Timestamp != 1700000000000 {
			t.Errorf("expected ms timestamp, got %d", tr.Timestamp)
		}
		if tr.BlockNumber == nil || *tr.BlockNumber != 500 {
			t.Errorf("expected slot 500 as block number, got %v", tr.BlockNumber)
		}
	}
}

func TestClient_TransfersInChainOrder(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddSignatures(testWallet, []solana.SignatureInfo{sigInfo("s2", 502), sigInfo("s1", 501)})
	rpc.AddTransaction(tokenTx("s1", 501, 1700000000,
		nil, []solana.TokenBalance{bal("mintA", testWallet, 10)}))
	rpc.AddTransaction(tokenTx("s2", 502, 1700000100,
		nil, []solana.TokenBalance{bal("mintB", testWallet, 20)}))

	client := solana.NewClient(solana.ClientOptions{RPC: rpc})
	transfers, err := client.GetRecentTokenTransfers(context.Background(), testWallet, domain.ChainSolana)
	if err != nil {
		t.Fatalf("GetRecentTokenTransfers: %v", err)
	}
	if len(transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(transfers))
	}

	// The RPC lists signatures newest-first; the store and the trading sink
	// must still see transfers oldest-first.
	if transfers[0].TxHash != "s1" || transfers[1].TxHash != "s2" {
		t.Errorf("expected chain order s1,s2, got %s,%s", transfers[0].TxHash, transfers[1].TxHash)
	}
	if transfers[0].Timestamp > transfers[1].Timestamp {
		t.Errorf("timestamps out of order: %d then %d", transfers[0].Timestamp, transfers[1].Timestamp)
	}
}

func TestClient_PagesThroughBurst(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddSignatures(testWallet, []solana.SignatureInfo{sigInfo("s0", 500)})
	rpc.AddTransaction(tokenTx("s0", 500, 1700000000,
		nil, []solana.TokenBalance{bal("mintA", testWallet, 1)}))

	client := solana.NewClient(solana.ClientOptions{RPC: rpc, SignatureLimit: 2})
	ctx := context.Background()
	if _, err := client.GetRecentTokenTransfers(ctx, testWallet, domain.ChainSolana); err != nil {
		t.Fatalf("seeding fetch: %v", err)
	}

	// Five transactions land between ticks, more than twice the page size.
	// Paging with before must walk back to the cursor instead of keeping
	// only the newest page.
	rpc.AddSignatures(testWallet, []solana.SignatureInfo{
		sigInfo("s5", 505), sigInfo("s4", 504), sigInfo("s3", 503),
		sigInfo("s2", 502), sigInfo("s1", 501), sigInfo("s0", 500),
	})
	for i := int64(1); i <= 5; i++ {
		rpc.AddTransaction(tokenTx(fmt.Sprintf("s%d", i), 500+i, 1700000000+i*60,
			nil, []solana.TokenBalance{bal("mintA", testWallet, float64(i))}))
	}

	transfers, err := client.GetRecentTokenTransfers(ctx, testWallet, domain.ChainSolana)
	if err != nil {
		t.Fatalf("burst fetch: %v", err)
	}
	if len(transfers) != 5 {
		t.Fatalf("expected the whole burst, got %d transfers", len(transfers))
	}
	for i, tr := range transfers {
		if want := fmt.Sprintf("s%d", i+1); tr.TxHash != want {
			t.Errorf("transfer %d: expected %s, got %s", i, want, tr.TxHash)
		}
	}

	// Cursor sits at the newest signature; the next tick is quiet.
	transfers, err = client.GetRecentTokenTransfers(ctx, testWallet, domain.ChainSolana)
	if err != nil {
		t.Fatalf("follow-up fetch: %v", err)
	}
	if len(transfers) != 0 {
		t.Errorf("expected no transfers after the burst drained, got %d", len(transfers))
	}
}

func TestClient_CursorAdvancesOnSuccess(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddSignatures(testWallet, []solana.SignatureInfo{sigInfo("s2", 502), sigInfo("s1", 501)})
	rpc.AddTransaction(tokenTx("s1", 501, 1700000000,
		nil, []solana.TokenBalance{bal("mintA", testWallet, 10)}))
	rpc.AddTransaction(tokenTx("s2", 502, 1700000100,
		nil, []solana.TokenBalance{bal("mintB", testWallet, 20)}))

	client := solana.NewClient(solana.ClientOptions{RPC: rpc})
	ctx := context.Background()

	transfers, err := client.GetRecentTokenTransfers(ctx, testWallet, domain.ChainSolana)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if len(transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(transfers))
	}
	if client.CursorLen() != 1 {
		t.Errorf("expected 1 cursor, got %d", client.CursorLen())
	}

	// The stub stops at until=s2, so an advanced cursor yields nothing new.
	transfers, err = client.GetRecentTokenTransfers(ctx, testWallet, domain.ChainSolana)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(transfers) != 0 {
		t.Errorf("expected no transfers after cursor advance, got %d", len(transfers))
	}
}

func TestClient_CursorHeldOnFetchError(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddSignatures(testWallet, []solana.SignatureInfo{sigInfo("s2", 502), sigInfo("s1", 501)})
	rpc.AddTransaction(tokenTx("s1", 501, 1700000000,
		nil, []solana.TokenBalance{bal("mintA", testWallet, 10)}))
	rpc.AddTransaction(tokenTx("s2", 502, 1700000100,
		nil, []solana.TokenBalance{bal("mintB", testWallet, 20)}))
	rpc.TxErrs["s1"] = errors.New("rpc unavailable")

	client := solana.NewClient(solana.ClientOptions{RPC: rpc})
	ctx := context.Background()

	if _, err := client.GetRecentTokenTransfers(ctx, testWallet, domain.ChainSolana); err == nil {
		t.Fatal("expected error when a detail fetch fails")
	}

	// The failed tick must not have advanced the cursor: the retry sees the
	// full range again.
	delete(rpc.TxErrs, "s1")
	transfers, err := client.GetRecentTokenTransfers(ctx, testWallet, domain.ChainSolana)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(transfers) != 2 {
		t.Errorf("expected retry to see both transactions, got %d", len(transfers))
	}
}

func TestClient_SkipsFailedSignatures(t *testing.T) {
	rpc := stub.NewRPCClient()
	failed := sigInfo("s2", 502)
	failed.Err = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}
	rpc.AddSignatures(testWallet, []solana.SignatureInfo{failed, sigInfo("s1", 501)})
	rpc.AddTransaction(tokenTx("s1", 501, 1700000000,
		nil, []solana.TokenBalance{bal("mintA", testWallet, 10)}))

	client := solana.NewClient(solana.ClientOptions{RPC: rpc})
	transfers, err := client.GetRecentTokenTransfers(context.Background(), testWallet, domain.ChainSolana)
	if err != nil {
		t.Fatalf("GetRecentTokenTransfers: %v", err)
	}

	if len(transfers) != 1 {
		t.Fatalf("expected failed signature to be skipped, got %d transfers", len(transfers))
	}
	if transfers[0].TxHash != "s1" {
		t.Errorf("expected transfer from s1, got %s", transfers[0].TxHash)
	}
}

func TestClient_SkipsFailedTransactionMeta(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddSignatures(testWallet, []solana.SignatureInfo{sigInfo("s1", 501)})
	tx := tokenTx("s1", 501, 1700000000,
		nil, []solana.TokenBalance{bal("mintA", testWallet, 10)})
	tx.Meta.Err = map[string]interface{}{"InstructionError": []interface{}{1, "Custom"}}
	rpc.AddTransaction(tx)

	client := solana.NewClient(solana.ClientOptions{RPC: rpc})
	transfers, err := client.GetRecentTokenTransfers(context.Background(), testWallet, domain.ChainSolana)
	if err != nil {
		t.Fatalf("GetRecentTokenTransfers: %v", err)
	}
	if len(transfers) != 0 {
		t.Errorf("expected no transfers from a failed transaction, got %d", len(transfers))
	}
}

func TestClient_IgnoresDustDiffs(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddSignatures(testWallet, []solana.SignatureInfo{sigInfo("s1", 501)})
	rpc.AddTransaction(tokenTx("s1", 501, 1700000000,
		[]solana.TokenBalance{bal("mintA", testWallet, 5)},
		[]solana.TokenBalance{bal("mintA", testWallet, 5+1e-12)},
	))

	client := solana.NewClient(solana.ClientOptions{RPC: rpc})
	transfers, err := client.GetRecentTokenTransfers(context.Background(), testWallet, domain.ChainSolana)
	if err != nil {
		t.Fatalf("GetRecentTokenTransfers: %v", err)
	}
	if len(transfers) != 0 {
		t.Errorf("expected float noise below epsilon to be dropped, got %d transfers", len(transfers))
	}
}

func TestClient_NoNewSignatures(t *testing.T) {
	rpc := stub.NewRPCClient()
	client := solana.NewClient(solana.ClientOptions{RPC: rpc})

	transfers, err := client.GetRecentTokenTransfers(context.Background(), testWallet, domain.ChainSolana)
	if err != nil {
		t.Fatalf("GetRecentTokenTransfers: %v", err)
	}
	if len(transfers) != 0 {
		t.Errorf("expected no transfers, got %d", len(transfers))
	}
	if client.CursorLen() != 0 {
		t.Errorf("empty result must not create a cursor, got %d", client.CursorLen())
	}
}

func TestClient_UnsupportedChain(t *testing.T) {
	client := solana.NewClient(solana.ClientOptions{RPC: stub.NewRPCClient()})

	if _, err := client.GetRecentTokenTransfers(context.Background(), testWallet, domain.ChainEthereum); err == nil {
		t.Fatal("expected error for non-solana chain")
	}
	if client.Supports(domain.ChainEthereum) {
		t.Error("Supports must reject EVM chains")
	}
	if !client.Supports(domain.ChainSolana) {
		t.Error("Supports must accept solana")
	}
}
