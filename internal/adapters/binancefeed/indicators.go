package binancefeed

import (
	"fmt"

	"fxSignalBot/internal/domain"
)

// calculateRSI calculates the Relative Strength Index (RSI) using Wilder's smoothing method.
func calculateRSI(closes []float64, period int) (float64, error) {
	if len(closes) <= period {
		return 0, fmt.Errorf("not enough data (%d) to calculate RSI for period %d", len(closes), period)
	}

	// Calculate price changes
	changes := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		changes = append(changes, closes[i]-closes[i-1])
	}

	// Calculate initial average gain and loss
	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss -= changes[i]
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Calculate smoothed average gain and loss using Wilder's smoothing
	for i := period; i < len(changes); i++ {
		if changes[i] > 0 {
			avgGain = (avgGain*float64(period-1) + changes[i]) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) - changes[i]) / float64(period)
		}
	}

	// Handle edge cases
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil // Neutral if no change
		}
		return 100, nil // Max RSI if only gains
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))

	if rsi > 100 {
		rsi = 100
	} else if rsi < 0 {
		rsi = 0
	}

	return rsi, nil
}

// calculateMovingAverage calculates the Simple Moving Average (SMA) over the
// most recent period closes.
func calculateMovingAverage(closes []float64, period int) (float64, error) {
	if len(closes) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate MA for period %d", len(closes), period)
	}

	total := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		total += closes[i]
	}
	return total / float64(period), nil
}

// deriveTrend classifies the trend from the ordering of the short and long
// moving averages.
func deriveTrend(closes []float64, shortPeriod, longPeriod int) (domain.Trend, error) {
	shortMA, err := calculateMovingAverage(closes, shortPeriod)
	if err != nil {
		return domain.TrendFlat, err
	}
	longMA, err := calculateMovingAverage(closes, longPeriod)
	if err != nil {
		return domain.TrendFlat, err
	}

	switch {
	case shortMA > longMA:
		return domain.TrendUp, nil
	case shortMA < longMA:
		return domain.TrendDown, nil
	default:
		return domain.TrendFlat, nil
	}
}
