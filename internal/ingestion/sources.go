package ingestion

import (
	"context"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/pricing"
)

// Source fetches recent token transfers for one wallet. Implementations keep
// their own per-wallet cursors so repeated calls only return new activity.
type Source interface {
	// Supports reports whether the source can serve the given chain.
	Supports(chain domain.Chain) bool

	// GetRecentTokenTransfers returns new transfers for the wallet since the
	// source's cursor, which advances only on full success.
	GetRecentTokenTransfers(ctx context.Context, address string, chain domain.Chain) ([]*domain.Transfer, error)
}

// TransferSink receives each newly stored transfer, in source order. The
// trading engine satisfies this; Manager treats a nil sink as a no-op.
type TransferSink interface {
	Process(ctx context.Context, t *domain.Transfer) error
}

// PriceLookup is the slice of the price oracle the manager needs to resolve
// transfers whose source reported no price.
type PriceLookup interface {
	GetPrice(ctx context.Context, tokenAddress string, chain domain.Chain) *pricing.Price
}
