package storage

import (
	"context"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
)

// WalletStore provides access to wallets storage.
type WalletStore interface {
	// Upsert inserts or replaces the wallet identified by (address, chain).
	Upsert(ctx context.Context, w *domain.Wallet) error

	// Get retrieves a wallet. Returns ErrNotFound if not tracked.
	Get(ctx context.Context, address string, chain domain.Chain) (*domain.Wallet, error)

	// List retrieves all wallets ordered by (chain, address).
	List(ctx context.Context) ([]*domain.Wallet, error)

	// ListActive retrieves wallets with status=active ordered by (chain, address).
	ListActive(ctx context.Context) ([]*domain.Wallet, error)

	// SetStatus updates the lifecycle status. Returns ErrNotFound if not tracked
	// and ErrInvalidInput for an unknown status.
	SetStatus(ctx context.Context, address string, chain domain.Chain, status string) error

	// TouchLastChecked records a completed poll at ts.
	TouchLastChecked(ctx context.Context, address string, chain domain.Chain, ts int64) error

	// RecordTradeOutcome folds one realized close into the wallet's rolling
	// aggregates: trade counts, win rate, total pnl, average size, extremes.
	RecordTradeOutcome(ctx context.Context, address string, chain domain.Chain, entryValueUSD, pnlUSD float64) error
}

// TransferStore provides access to transfers storage.
type TransferStore interface {
	// Insert adds one observed transfer. Returns ErrDuplicateKey when
	// (wallet_address, tx_hash, chain) already exists and ErrInvalidInput
	// when required fields are missing.
	Insert(ctx context.Context, t *domain.Transfer) error

	// ListByWallet retrieves a wallet's transfers, newest first, bounded by
	// limit when limit > 0.
	ListByWallet(ctx context.Context, address string, chain domain.Chain, limit int) ([]*domain.Transfer, error)

	// ListByToken retrieves transfers touching a token within [start, end]
	// (inclusive, ms), ordered by timestamp ASC.
	ListByToken(ctx context.Context, token string, chain domain.Chain, start, end int64) ([]*domain.Transfer, error)

	// ListSince retrieves all transfers with timestamp >= since, ordered by
	// timestamp ASC. Used by the activity rollup.
	ListSince(ctx context.Context, since int64) ([]*domain.Transfer, error)

	// CountForWallet returns the number of stored transfers for a wallet.
	CountForWallet(ctx context.Context, address string, chain domain.Chain) (int, error)
}

// TokenStore provides access to tokens storage.
type TokenStore interface {
	// AddOrUpdate upserts the token. The stored max_price_usd is updated
	// atomically to GREATEST(existing, incoming current price) so concurrent
	// writers cannot lose the peak.
	AddOrUpdate(ctx context.Context, t *domain.Token) error

	// Get retrieves a token. Returns ErrNotFound if never observed.
	Get(ctx context.Context, address string, chain domain.Chain) (*domain.Token, error)

	// ListPumpCandidates retrieves tokens first seen at or after since (ms)
	// whose max/current price ratio is at least ratio. Tokens with an
	// unresolved current price are excluded.
	ListPumpCandidates(ctx context.Context, since int64, ratio float64) ([]*domain.Token, error)
}

// TradeFilter narrows closed-trade queries. Zero values mean "any".
type TradeFilter struct {
	SourceWallet string       // filter by source wallet address
	Strategy     string       // filter by strategy_used
	Chain        domain.Chain // filter by chain
	Since        int64        // exit_time >= Since (ms) when > 0
	Limit        int          // max rows when > 0
}

// TradeStore provides access to paper_trades storage.
type TradeStore interface {
	// Open inserts a new open trade and assigns its ID.
	Open(ctx context.Context, t *domain.PaperTrade) error

	// Get retrieves a trade by id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id int64) (*domain.PaperTrade, error)

	// ListOpen retrieves open trades ordered by entry_time ASC.
	ListOpen(ctx context.Context) ([]*domain.PaperTrade, error)

	// ListClosed retrieves closed trades matching the filter, newest first.
	ListClosed(ctx context.Context, f TradeFilter) ([]*domain.PaperTrade, error)

	// UpdatePeakPrice raises peak_price to peak when higher; never lowers it.
	UpdatePeakPrice(ctx context.Context, id int64, peak float64) error

	// ReduceAmount shrinks an open trade to the remaining token units and
	// keeps entry_value_usd = entry_price * amount. Returns ErrTradeClosed
	// when the trade is not open and ErrInvalidInput for amounts <= 0.
	ReduceAmount(ctx context.Context, id int64, remaining float64) error

	// AppendNote appends marker to the trade's notes journal.
	AppendNote(ctx context.Context, id int64, marker string) error

	// Close finalizes an open trade, computing exit value, pnl and pnl
	// percentage from exitPrice and the remaining amount. Validates
	// exitPrice > 0 (ErrInvalidInput) and refuses to close a trade that is
	// not open (ErrTradeClosed).
	Close(ctx context.Context, id int64, exitPrice float64, exitTime int64, reason string) error
}

// DiscoveryStore provides access to discovered_wallets storage.
type DiscoveryStore interface {
	// Insert adds a candidate. Returns ErrDuplicateKey when (address, chain)
	// was already discovered.
	Insert(ctx context.Context, d *domain.DiscoveredWallet) error

	// Get retrieves a candidate. Returns ErrNotFound if not exists.
	Get(ctx context.Context, address string, chain domain.Chain) (*domain.DiscoveredWallet, error)

	// List retrieves candidates, best score first. promoted filters by
	// promotion state when non-nil.
	List(ctx context.Context, promoted *bool) ([]*domain.DiscoveredWallet, error)

	// Promote marks the candidate promoted at ts. Returns ErrNotFound.
	Promote(ctx context.Context, address string, chain domain.Chain, ts int64) error

	// Reject records an operator rejection reason. Returns ErrNotFound.
	Reject(ctx context.Context, address string, chain domain.Chain, reason string) error

	// CountInsertedSince counts candidates first seen at or after since (ms).
	CountInsertedSince(ctx context.Context, since int64) (int, error)
}

// StrategyPerfStore provides access to strategy_performance storage.
type StrategyPerfStore interface {
	// RecordOpen folds one trade open into the (strategy, date) row.
	RecordOpen(ctx context.Context, strategy, date string, entryValueUSD float64) error

	// RecordClose folds one realized exit leg into the (strategy, date) row.
	// final marks the leg that closes the trade; only final legs count toward
	// trades_closed and the win/loss tallies.
	RecordClose(ctx context.Context, strategy, date string, pnlUSD float64, final bool) error

	// ListSince retrieves rows with date >= since ("2006-01-02"), newest first.
	ListSince(ctx context.Context, since string) ([]*domain.StrategyPerformance, error)
}

// StateStore provides access to the system_state key/value table.
type StateStore interface {
	// Get retrieves a value. Returns ErrNotFound for unknown keys.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value, creating or replacing the key.
	Set(ctx context.Context, key, value string) error

	// GetFloat retrieves a value parsed as float64. Returns ErrNotFound for
	// unknown keys and ErrInvalidInput for unparseable values.
	GetFloat(ctx context.Context, key string) (float64, error)

	// SetFloat stores a float64 value.
	SetFloat(ctx context.Context, key string, value float64) error

	// Delete removes a key. Unknown keys are a no-op.
	Delete(ctx context.Context, key string) error
}
