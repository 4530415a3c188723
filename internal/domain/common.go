package domain

// Direction represents the side of a position (LONG or SHORT).
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Sign returns +1 for long positions and -1 for short positions,
// used when computing direction-relative profit.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// Trend is the coarse market direction label reported by the price feed.
type Trend string

const (
	TrendUp   Trend = "UP"
	TrendDown Trend = "DOWN"
	TrendFlat Trend = "FLAT"
)

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonTP1      CloseReason = "TP1"
	CloseReasonTP2      CloseReason = "TP2"
	CloseReasonStopLoss CloseReason = "SL"
	CloseReasonTimeout  CloseReason = "TIMEOUT"
)

// Confidence grades how strongly a signal's conditions were met.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
)
