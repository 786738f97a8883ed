package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/domain"
	"github.com/Mathew-Harvey/MoneyMachine-sub000/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"initialized":    true,
		"mock_mode":      s.mockMode,
		"uptime_seconds": int64(s.now().Sub(s.started).Seconds()),
	})
}

// openTradeView is an open position marked to market for the dashboard.
// Zero current price means the oracle missed.
type openTradeView struct {
	*domain.PaperTrade
	CurrentPrice         float64 `json:"current_price,omitempty"`
	UnrealizedPnLUSD     float64 `json:"unrealized_pnl_usd"`
	UnrealizedPnLPercent float64 `json:"unrealized_pnl_percent"`
}

// strategyDay is one row of the dashboard's per-strategy breakdown.
type strategyDay struct {
	Strategy     string  `json:"strategy"`
	TradesOpened int     `json:"trades_opened"`
	TradesClosed int     `json:"trades_closed"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	PnLUSD       float64 `json:"pnl_usd"`
	VolumeUSD    float64 `json:"volume_usd"`
	Paused       bool    `json:"paused"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.now()

	total, available := s.engine.Capital()

	open, err := s.trades.ListOpen(ctx)
	if err != nil {
		s.internalError(w, "list open trades", err)
		return
	}
	var committed float64
	openViews := make([]openTradeView, 0, len(open))
	for _, t := range open {
		committed += t.EntryValueUSD
		v := openTradeView{PaperTrade: t}
		if s.oracle != nil {
			if p := s.oracle.GetPrice(ctx, t.TokenAddress, t.Chain); p != nil {
				v.CurrentPrice = p.PriceUSD
				v.UnrealizedPnLUSD = (p.PriceUSD - t.EntryPrice) * t.Amount
				v.UnrealizedPnLPercent = (p.PriceUSD - t.EntryPrice) / t.EntryPrice * 100
			}
		}
		openViews = append(openViews, v)
	}

	pnl24, err := s.realizedSince(r, now.Add(-24*time.Hour))
	if err != nil {
		s.internalError(w, "realized 24h", err)
		return
	}
	pnl7, err := s.realizedSince(r, now.Add(-7*24*time.Hour))
	if err != nil {
		s.internalError(w, "realized 7d", err)
		return
	}

	rows, err := s.perf.ListSince(ctx, domain.DateOf(now.Add(-7*24*time.Hour).UnixMilli()))
	if err != nil {
		s.internalError(w, "strategy performance", err)
		return
	}
	paused := s.risk.PausedStrategies()
	byStrategy := make(map[string]*strategyDay)
	for _, row := range rows {
		agg, ok := byStrategy[row.StrategyType]
		if !ok {
			_, isPaused := paused[row.StrategyType]
			agg = &strategyDay{Strategy: row.StrategyType, Paused: isPaused}
			byStrategy[row.StrategyType] = agg
		}
		agg.TradesOpened += row.TradesOpened
		agg.TradesClosed += row.TradesClosed
		agg.Wins += row.Wins
		agg.Losses += row.Losses
		agg.PnLUSD += row.PnLUSD
		agg.VolumeUSD += row.VolumeUSD
	}
	breakdown := make([]*strategyDay, 0, len(byStrategy))
	for _, agg := range byStrategy {
		breakdown = append(breakdown, agg)
	}

	globalPause, pauseReason := s.risk.GloballyPaused()
	writeJSON(w, http.StatusOK, map[string]any{
		"capital": map[string]float64{
			"total_usd":     total,
			"available_usd": available,
			"committed_usd": committed,
		},
		"peak_equity_usd":  s.risk.PeakEquity(),
		"realized_24h_usd": pnl24,
		"realized_7d_usd":  pnl7,
		"open_trades":      openViews,
		"strategies":       breakdown,
		"trading_paused":   globalPause,
		"pause_reason":     pauseReason,
	})
}

func (s *Server) realizedSince(r *http.Request, since time.Time) (float64, error) {
	closed, err := s.trades.ListClosed(r.Context(), storage.TradeFilter{Since: since.UnixMilli()})
	if err != nil {
		return 0, err
	}
	var pnl float64
	for _, t := range closed {
		if t.PnL != nil {
			pnl += *t.PnL
		}
	}
	return pnl, nil
}

func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	ws, err := s.wallets.List(r.Context())
	if err != nil {
		s.internalError(w, "list wallets", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallets": ws, "count": len(ws)})
}

// walletActivity is one wallet's 24h rollup.
type walletActivity struct {
	Address   string       `json:"address"`
	Chain     domain.Chain `json:"chain"`
	Transfers int          `json:"transfers"`
	Buys      int          `json:"buys"`
	Sells     int          `json:"sells"`
	VolumeUSD float64      `json:"volume_usd"`
	LastSeen  int64        `json:"last_seen"`
}

func (s *Server) handleWalletActivity(w http.ResponseWriter, r *http.Request) {
	since := s.now().Add(-24 * time.Hour).UnixMilli()
	transfers, err := s.transfers.ListSince(r.Context(), since)
	if err != nil {
		s.internalError(w, "list transfers", err)
		return
	}

	byWallet := make(map[string]*walletActivity)
	for _, tr := range transfers {
		key := string(tr.Chain) + ":" + tr.WalletAddress
		a, ok := byWallet[key]
		if !ok {
			a = &walletActivity{Address: tr.WalletAddress, Chain: tr.Chain}
			byWallet[key] = a
		}
		a.Transfers++
		if tr.Action == domain.ActionBuy {
			a.Buys++
		} else {
			a.Sells++
		}
		a.VolumeUSD += tr.TotalValueUSD
		if tr.Timestamp > a.LastSeen {
			a.LastSeen = tr.Timestamp
		}
	}
	out := make([]*walletActivity, 0, len(byWallet))
	for _, a := range byWallet {
		out = append(out, a)
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": out, "since": since})
}

func (s *Server) handleWalletDetail(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	wallet, ok := s.findWallet(w, r, address)
	if !ok {
		return
	}

	transfers, err := s.transfers.ListByWallet(r.Context(), wallet.Address, wallet.Chain, 50)
	if err != nil {
		s.internalError(w, "list transfers", err)
		return
	}
	closed, err := s.trades.ListClosed(r.Context(), storage.TradeFilter{
		SourceWallet: wallet.Address,
		Chain:        wallet.Chain,
		Limit:        50,
	})
	if err != nil {
		s.internalError(w, "list closed trades", err)
		return
	}
	open, err := s.trades.ListOpen(r.Context())
	if err != nil {
		s.internalError(w, "list open trades", err)
		return
	}
	var openForWallet []*domain.PaperTrade
	for _, t := range open {
		if t.SourceWallet == wallet.Address && t.Chain == wallet.Chain {
			openForWallet = append(openForWallet, t)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":        wallet,
		"transfers":     transfers,
		"open_trades":   openForWallet,
		"closed_trades": closed,
	})
}

func (s *Server) handleWalletStatus(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	var body struct {
		Chain  string `json:"chain"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	chain, ok := parseChain(body.Chain)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "unknown chain")
		return
	}

	err := s.wallets.SetStatus(r.Context(), address, chain, body.Status)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "wallet not tracked")
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "bad_request", "status must be active, paused or demoted")
	case err != nil:
		s.internalError(w, "set wallet status", err)
	default:
		s.logger.Printf("wallet %s on %s set %s", address, chain, body.Status)
		writeJSON(w, http.StatusOK, map[string]any{"address": address, "chain": chain, "status": body.Status})
	}
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	strategyFilter := r.URL.Query().Get("strategy")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	out := map[string]any{}

	if status == "" || status == domain.TradeStatusOpen {
		open, err := s.trades.ListOpen(r.Context())
		if err != nil {
			s.internalError(w, "list open trades", err)
			return
		}
		if strategyFilter != "" {
			filtered := open[:0]
			for _, t := range open {
				if t.StrategyUsed == strategyFilter {
					filtered = append(filtered, t)
				}
			}
			open = filtered
		}
		out["open"] = open
	}
	if status == "" || status == domain.TradeStatusClosed {
		closed, err := s.trades.ListClosed(r.Context(), storage.TradeFilter{
			Strategy: strategyFilter,
			Limit:    limit,
		})
		if err != nil {
			s.internalError(w, "list closed trades", err)
			return
		}
		out["closed"] = closed
	}
	if len(out) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "status must be open or closed")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDiscovered(w http.ResponseWriter, r *http.Request) {
	var promoted *bool
	if v := r.URL.Query().Get("promoted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "promoted must be a boolean")
			return
		}
		promoted = &b
	}
	list, err := s.discovered.List(r.Context(), promoted)
	if err != nil {
		s.internalError(w, "list discovered", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"discovered": list, "count": len(list)})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	res, err := s.miner.Run(r.Context())
	if err != nil {
		s.internalError(w, "discovery run", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	var body struct {
		Chain string `json:"chain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	chain, ok := parseChain(body.Chain)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "unknown chain")
		return
	}

	wallet, err := s.miner.Promote(r.Context(), address, chain)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "candidate not found")
	case errors.Is(err, storage.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "conflict", "candidate already promoted")
	case err != nil:
		s.internalError(w, "promote candidate", err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"wallet": wallet})
	}
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	res, err := s.ingest.RunTick(r.Context(), s.now())
	if err != nil {
		s.internalError(w, "ingest tick", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.risk.Resume(r.Context()); err != nil {
		s.internalError(w, "resume trading", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trading_paused": false})
}

func (s *Server) handleUnpauseStrategy(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.risk.UnpauseStrategy(r.Context(), name); err != nil {
		s.internalError(w, "unpause strategy", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategy": name, "paused": false})
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	total, available := s.engine.Capital()
	globalPause, pauseReason := s.risk.GloballyPaused()

	status := map[string]any{
		"initialized": true,
		"mock_mode":   s.mockMode,
		"uptime_seconds": int64(s.now().Sub(s.started).Seconds()),
		"capital": map[string]float64{
			"total_usd":     total,
			"available_usd": available,
		},
		"trading_paused":    globalPause,
		"pause_reason":      pauseReason,
		"paused_strategies": s.risk.PausedStrategies(),
		"dedupe_entries":    s.engine.DedupeLen(),
	}
	if s.super != nil {
		status["jobs"] = s.super.Status()
	}
	if s.monitor != nil {
		status["providers_healthy"] = s.monitor.Healthy()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	// Probe throttles itself to one sweep per interval; a burst of
	// requests serves cached results.
	s.monitor.Probe(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.monitor.Snapshot()})
}

// findWallet resolves an address to a tracked wallet, honoring an optional
// ?chain= narrowing. Writes the error response on failure.
func (s *Server) findWallet(w http.ResponseWriter, r *http.Request, address string) (*domain.Wallet, bool) {
	if v := r.URL.Query().Get("chain"); v != "" {
		chain, ok := parseChain(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "bad_request", "unknown chain")
			return nil, false
		}
		wallet, err := s.wallets.Get(r.Context(), address, chain)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "wallet not tracked")
			return nil, false
		}
		if err != nil {
			s.internalError(w, "load wallet", err)
			return nil, false
		}
		return wallet, true
	}

	all, err := s.wallets.List(r.Context())
	if err != nil {
		s.internalError(w, "list wallets", err)
		return nil, false
	}
	for _, wallet := range all {
		if strings.EqualFold(wallet.Address, address) {
			return wallet, true
		}
	}
	writeError(w, http.StatusNotFound, "not_found", "wallet not tracked")
	return nil, false
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Printf("%s: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal", "internal error")
}

func parseChain(v string) (domain.Chain, bool) {
	c := domain.Chain(strings.ToLower(strings.TrimSpace(v)))
	if !c.Valid() {
		return "", false
	}
	return c, true
}
