package stub

import (
	"context"
	"math"
	"testing"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

func TestSource_DeterministicStream(t *testing.T) {
	ctx := context.Background()
	a := NewSource()
	b := NewSource()

	for tick := 0; tick < 5; tick++ {
		fromA, err := a.GetRecentTokenTransfers(ctx, "walletX", domain.ChainSolana)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		fromB, err := b.GetRecentTokenTransfers(ctx, "walletX", domain.ChainSolana)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}

		if len(fromA) != len(fromB) {
			t.Fatalf("tick %d: stream diverged, %d vs %d transfers", tick, len(fromA), len(fromB))
		}
		for i := range fromA {
			if fromA[i].TxHash != fromB[i].TxHash {
				t.Errorf("tick %d: tx hash diverged: %s vs %s", tick, fromA[i].TxHash, fromB[i].TxHash)
			}
			if fromA[i].Amount != fromB[i].Amount {
				t.Errorf("tick %d: amount diverged: %v vs %v", tick, fromA[i].Amount, fromB[i].Amount)
			}
		}
	}
}

func TestSource_TransfersAreWellFormed(t *testing.T) {
	ctx := context.Background()
	s := NewSource()

	seen := 0
	for tick := 0; tick < 20 && seen == 0; tick++ {
		transfers, err := s.GetRecentTokenTransfers(ctx, "walletY", domain.ChainSolana)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		for _, tr := range transfers {
			seen++
			if tr.WalletAddress != "walletY" || tr.Chain != domain.ChainSolana {
				t.Errorf("bad identity: %+v", tr)
			}
			if tr.Action != domain.ActionBuy && tr.Action != domain.ActionSell {
				t.Errorf("bad action %q", tr.Action)
			}
			if tr.PriceUSD <= 0 || tr.Amount <= 0 {
				t.Errorf("mock transfers must carry a resolved price, got %+v", tr)
			}
			if math.Abs(tr.TotalValueUSD-tr.Amount*tr.PriceUSD) > 1e-6 {
				t.Errorf("total %v != amount*price %v", tr.TotalValueUSD, tr.Amount*tr.PriceUSD)
			}
			if tr.TxHash == "" || tr.BlockNumber == nil {
				t.Errorf("missing hash or block: %+v", tr)
			}
		}
	}
	if seen == 0 {
		t.Fatal("expected at least one synthetic transfer in 20 ticks")
	}
}

func TestSource_SupportedChains(t *testing.T) {
	s := NewSource()

	if !s.Supports(domain.ChainSolana) || !s.Supports(domain.ChainEthereum) {
		t.Error("expected solana and ethereum to be supported")
	}
	if s.Supports(domain.ChainOptimism) {
		t.Error("optimism has no mock token set")
	}
	if _, err := s.GetRecentTokenTransfers(context.Background(), "w", domain.ChainOptimism); err == nil {
		t.Error("expected error for unsupported chain")
	}
}
