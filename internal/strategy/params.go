package strategy

import "time"

// Params collects every tunable threshold of the strategy catalogue.
// Constructors copy the slice of Params they need, so one Params value
// configures the whole enabled set.
type Params struct {
	// Shared.
	MinPositionUSD float64       // sizing floor, also used when a value is unresolved
	MaxHold        time.Duration // hard position age limit

	// copyTrade.
	CopyMinTradeUSD float64 // smallest source buy worth copying
	CopyMinWinRate  float64 // floor applied only when the wallet has history
	CopyPct         float64 // fraction of the source trade copied
	CopyMaxUSD      float64 // per-trade cap
	CopyStopLoss    float64 // fractional loss from entry that stops out
	CopyTakeProfit  float64 // fractional gain from entry that takes profit
	CopyTrailArm    float64 // gain that arms the trailing stop
	CopyTrailGive   float64 // giveback from peak once armed

	// smartMoney.
	WhaleThresholdUSD float64
	SmartPct          float64
	SmartMaxUSD       float64
	SmartStopLoss     float64
	SmartTakeProfit   float64

	// volumeBreakout.
	VolumeWindow     time.Duration // recent window inspected for a breakout
	VolumeBaseline   time.Duration // span the per-token baseline is computed over
	VolumeMultiplier float64       // window volume must reach multiplier x hourly baseline
	MinBuyerCount    int           // distinct buyers required inside the window
	VolumePct        float64
	VolumeMaxUSD     float64
	VolumeStopLoss   float64
	VolumeTakeProfit float64

	// memecoin.
	MemeMinWallets int           // distinct wallets that must have bought the token
	MemeWindow     time.Duration // lookback for the wallet-count gate
	MemePct        float64
	MemeMaxUSD     float64
	MemeStopLoss   float64

	// arbitrage.
	ArbMinTradeUSD float64
	ArbPct         float64
	ArbMaxUSD      float64
	ArbStopLoss    float64
	ArbTakeProfit  float64

	// earlyGem.
	GemMaxTokenAge  time.Duration
	GemMinLiquidity float64
	GemMinWinRate   float64
	GemPct          float64
	GemMaxUSD       float64
	GemStopLoss     float64
	GemTakeProfit   float64 // multiple of entry price, not a fractional gain

	// adaptive.
	AdaptiveWindow time.Duration // rolling realized-pnl ranking window
}

// DefaultParams returns the catalogue defaults.
func DefaultParams() Params {
	return Params{
		MinPositionUSD: 25,
		MaxHold:        48 * time.Hour,

		CopyMinTradeUSD: 50,
		CopyMinWinRate:  0.45,
		CopyPct:         0.05,
		CopyMaxUSD:      300,
		CopyStopLoss:    0.12,
		CopyTakeProfit:  0.40,
		CopyTrailArm:    0.30,
		CopyTrailGive:   0.10,

		WhaleThresholdUSD: 2000,
		SmartPct:          0.10,
		SmartMaxUSD:       500,
		SmartStopLoss:     0.10,
		SmartTakeProfit:   0.35,

		VolumeWindow:     time.Hour,
		VolumeBaseline:   24 * time.Hour,
		VolumeMultiplier: 2.5,
		MinBuyerCount:    3,
		VolumePct:        0.08,
		VolumeMaxUSD:     400,
		VolumeStopLoss:   0.15,
		VolumeTakeProfit: 0.50,

		MemeMinWallets: 3,
		MemeWindow:     time.Hour,
		MemePct:        0.06,
		MemeMaxUSD:     250,
		MemeStopLoss:   0.40,

		ArbMinTradeUSD: 250,
		ArbPct:         0.08,
		ArbMaxUSD:      400,
		ArbStopLoss:    0.08,
		ArbTakeProfit:  0.20,

		GemMaxTokenAge:  72 * time.Hour,
		GemMinLiquidity: 10000,
		GemMinWinRate:   0.50,
		GemPct:          0.05,
		GemMaxUSD:       200,
		GemStopLoss:     0.25,
		GemTakeProfit:   2.5,

		AdaptiveWindow: 7 * 24 * time.Hour,
	}
}
