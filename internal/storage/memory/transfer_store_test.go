package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

func validTransfer() *domain.Transfer {
	return &domain.Transfer{
		WalletAddress: "0xwallet",
		Chain:         domain.ChainEthereum,
		TxHash:        "0xhash1",
		TokenAddress:  "0xtoken",
		TokenSymbol:   "TKN",
		Action:        domain.ActionBuy,
		Amount:        100,
		PriceUSD:      2,
		TotalValueUSD: 200,
		Timestamp:     1704067200000,
	}
}

func TestTransferStore_InsertAndList(t *testing.T) {
	store := NewTransferStore()
	ctx := context.Background()

	tr := validTransfer()
	if err := store.Insert(ctx, tr); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if tr.ID == 0 {
		t.Errorf("Insert did not assign an ID")
	}

	result, err := store.ListByWallet(ctx, "0xwallet", domain.ChainEthereum, 0)
	if err != nil {
		t.Fatalf("ListByWallet failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Expected 1 transfer, got %d", len(result))
	}
	if result[0].TotalValueUSD != 200 {
		t.Errorf("TotalValueUSD mismatch: got %f, want 200", result[0].TotalValueUSD)
	}
}

func TestTransferStore_DuplicateIsSingleRow(t *testing.T) {
	store := NewTransferStore()
	ctx := context.Background()

	if err := store.Insert(ctx, validTransfer()); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, validTransfer())
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	count, err := store.CountForWallet(ctx, "0xwallet", domain.ChainEthereum)
	if err != nil {
		t.Fatalf("CountForWallet failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 row after duplicate insert, got %d", count)
	}
}

func TestTransferStore_SameHashDifferentChain(t *testing.T) {
	store := NewTransferStore()
	ctx := context.Background()

	a := validTransfer()
	b := validTransfer()
	b.Chain = domain.ChainBase

	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert a failed: %v", err)
	}
	if err := store.Insert(ctx, b); err != nil {
		t.Errorf("Insert on a different chain should not collide: %v", err)
	}
}

func TestTransferStore_InsertValidation(t *testing.T) {
	store := NewTransferStore()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*domain.Transfer)
	}{
		{"missing wallet", func(tr *domain.Transfer) { tr.WalletAddress = "" }},
		{"missing hash", func(tr *domain.Transfer) { tr.TxHash = "" }},
		{"missing token", func(tr *domain.Transfer) { tr.TokenAddress = "" }},
		{"bad chain", func(tr *domain.Transfer) { tr.Chain = "dogecoin" }},
		{"bad action", func(tr *domain.Transfer) { tr.Action = "hold" }},
		{"negative amount", func(tr *domain.Transfer) { tr.Amount = -1 }},
		{"zero timestamp", func(tr *domain.Transfer) { tr.Timestamp = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := validTransfer()
			tt.mutate(tr)
			err := store.Insert(ctx, tr)
			if !errors.Is(err, storage.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestTransferStore_ListByTokenWindow(t *testing.T) {
	store := NewTransferStore()
	ctx := context.Background()

	times := []int64{1000, 2000, 3000}
	for i, ts := range times {
		tr := validTransfer()
		tr.TxHash = tr.TxHash + string(rune('a'+i))
		tr.Timestamp = ts
		if err := store.Insert(ctx, tr); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.ListByToken(ctx, "0xtoken", domain.ChainEthereum, 1500, 2500)
	if err != nil {
		t.Fatalf("ListByToken failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Expected 1 transfer in window, got %d", len(result))
	}
	if result[0].Timestamp != 2000 {
		t.Errorf("Expected timestamp 2000, got %d", result[0].Timestamp)
	}
}

func TestTransferStore_ListByWalletNewestFirst(t *testing.T) {
	store := NewTransferStore()
	ctx := context.Background()

	for i, ts := range []int64{3000, 1000, 2000} {
		tr := validTransfer()
		tr.TxHash = tr.TxHash + string(rune('a'+i))
		tr.Timestamp = ts
		if err := store.Insert(ctx, tr); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, _ := store.ListByWallet(ctx, "0xwallet", domain.ChainEthereum, 2)
	if len(result) != 2 {
		t.Fatalf("Expected limit of 2, got %d", len(result))
	}
	if result[0].Timestamp != 3000 || result[1].Timestamp != 2000 {
		t.Errorf("Expected newest first (3000, 2000), got (%d, %d)", result[0].Timestamp, result[1].Timestamp)
	}
}
