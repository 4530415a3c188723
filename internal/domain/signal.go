package domain

import "time"

// Quote is the shape the core expects from the price feed: the latest price
// plus an RSI-like indicator and a coarse trend label.
type Quote struct {
	Symbol    string
	Price     float64
	RSI       float64
	Trend     Trend
	Timestamp time.Time
}

// SymbolParams holds the per-symbol trade parameters derived from backtesting:
// level fractions relative to the entry price, leverage, and the
// support/resistance bands the signal generator keys off.
type SymbolParams struct {
	DCAFractions [2]float64 // adverse distance of DCA levels, nearest first (e.g. 0.005, 0.010)
	TPFractions  [2]float64 // favorable distance of take-profit levels, nearest first
	SLFraction   float64    // adverse distance of the stop-loss
	Leverage     int
	Support      []float64
	Resistance   []float64
}

// TradeIntent is a fully priced trade proposal produced by the signal
// generator. The ledger validates level consistency before opening.
type TradeIntent struct {
	Symbol      string
	Direction   Direction
	EntryPrice  float64
	TakeProfit1 float64
	TakeProfit2 float64
	StopLoss    float64
	DCAPrices   [2]float64 // nearest-to-entry first
	Leverage    int
	Confidence  Confidence
	Reason      string
	RSI         float64
	Trend       Trend
	CreatedAt   time.Time
}

// RiskSnapshot is a read-only view of the portfolio risk state.
type RiskSnapshot struct {
	Capital              float64 `json:"capital"`
	InitialCapital       float64 `json:"initialCapital"`
	DrawdownPct          float64 `json:"drawdownPct"`
	WinRate              float64 `json:"winRate"`
	ConsecutiveLosses    int     `json:"consecutiveLosses"`
	ConsecutiveLossLimit int     `json:"consecutiveLossLimit"`
	MaxDrawdown          float64 `json:"maxDrawdown"`
	TotalClosed          int     `json:"totalClosed"`
	TotalWins            int     `json:"totalWins"`
}
