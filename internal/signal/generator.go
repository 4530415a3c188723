package signal

import (
	"context"
	"fmt"
	"math"

	"fxSignalBot/internal/domain"
	"fxSignalBot/internal/ports"
)

// Config holds the thresholds of the support/resistance entry heuristic.
type Config struct {
	ZoneProximity       float64 // max distance from a S/R level to count as "in the zone"
	RSIOversoldStrong   float64 // long with trend confirmation
	RSIOversold         float64 // long without trend confirmation
	RSIOverboughtStrong float64 // short with trend confirmation
	RSIOverbought       float64 // short without trend confirmation
}

// DefaultConfig returns the backtested thresholds.
func DefaultConfig() Config {
	return Config{
		ZoneProximity:       0.002,
		RSIOversoldStrong:   32.0,
		RSIOversold:         35.0,
		RSIOverboughtStrong: 68.0,
		RSIOverbought:       65.0,
	}
}

// Generator implements the support/resistance entry heuristic: long on
// support bounces with an oversold RSI, short on resistance rejections with an
// overbought RSI, nothing in the neutral zone between.
type Generator struct {
	cfg    Config
	logger ports.Logger
}

// New creates a new Generator instance.
func New(cfg Config, logger ports.Logger) (*Generator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for signal generator")
	}
	if cfg.ZoneProximity <= 0 {
		return nil, fmt.Errorf("zone proximity must be positive")
	}
	if cfg.RSIOversoldStrong > cfg.RSIOversold || cfg.RSIOverboughtStrong < cfg.RSIOverbought {
		return nil, fmt.Errorf("strong RSI thresholds must be stricter than secondary ones")
	}
	return &Generator{cfg: cfg, logger: logger}, nil
}

// Evaluate returns a priced trade intent when the quote sits in an optimal
// support or resistance zone, or nil when conditions are not met.
func (g *Generator) Evaluate(ctx context.Context, quote *domain.Quote, params domain.SymbolParams) *domain.TradeIntent {
	if quote == nil || quote.Price <= 0 {
		return nil
	}

	distSupport := nearestDistance(quote.Price, params.Support)
	distResistance := nearestDistance(quote.Price, params.Resistance)

	var (
		direction  domain.Direction
		confidence domain.Confidence
		reason     string
	)

	switch {
	case distSupport < g.cfg.ZoneProximity && distSupport <= distResistance:
		// Support bounce: buy the oversold dip.
		if quote.RSI < g.cfg.RSIOversoldStrong && quote.Trend == domain.TrendUp {
			direction, confidence = domain.Long, domain.ConfidenceHigh
			reason = "support bounce: oversold RSI with up-trend"
		} else if quote.RSI < g.cfg.RSIOversold {
			direction, confidence = domain.Long, domain.ConfidenceMedium
			reason = "approaching support with low RSI"
		}
	case distResistance < g.cfg.ZoneProximity && distResistance < distSupport:
		// Resistance rejection: sell the overbought rally.
		if quote.RSI > g.cfg.RSIOverboughtStrong && quote.Trend == domain.TrendDown {
			direction, confidence = domain.Short, domain.ConfidenceHigh
			reason = "resistance rejection: overbought RSI with down-trend"
		} else if quote.RSI > g.cfg.RSIOverbought {
			direction, confidence = domain.Short, domain.ConfidenceMedium
			reason = "approaching resistance with high RSI"
		}
	}

	if direction == "" {
		g.logger.Debug(ctx, "no signal", map[string]interface{}{
			"symbol":         quote.Symbol,
			"price":          quote.Price,
			"rsi":            quote.RSI,
			"trend":          quote.Trend,
			"distSupport":    distSupport,
			"distResistance": distResistance,
		})
		return nil
	}

	intent := buildIntent(quote, params, direction)
	intent.Confidence = confidence
	intent.Reason = reason

	g.logger.Info(ctx, "signal confirmed", map[string]interface{}{
		"symbol":     quote.Symbol,
		"direction":  direction,
		"confidence": confidence,
		"price":      quote.Price,
		"rsi":        quote.RSI,
		"reason":     reason,
	})
	return intent
}

// buildIntent prices the TP/SL/DCA levels multiplicatively from the entry
// price using the symbol's backtested fractions.
func buildIntent(quote *domain.Quote, params domain.SymbolParams, direction domain.Direction) *domain.TradeIntent {
	p := quote.Price
	intent := &domain.TradeIntent{
		Symbol:     quote.Symbol,
		Direction:  direction,
		EntryPrice: round5(p),
		Leverage:   params.Leverage,
		RSI:        quote.RSI,
		Trend:      quote.Trend,
		CreatedAt:  quote.Timestamp,
	}
	if direction == domain.Long {
		intent.TakeProfit1 = round5(p * (1 + params.TPFractions[0]))
		intent.TakeProfit2 = round5(p * (1 + params.TPFractions[1]))
		intent.StopLoss = round5(p * (1 - params.SLFraction))
		intent.DCAPrices = [2]float64{
			round5(p * (1 - params.DCAFractions[0])),
			round5(p * (1 - params.DCAFractions[1])),
		}
	} else {
		intent.TakeProfit1 = round5(p * (1 - params.TPFractions[0]))
		intent.TakeProfit2 = round5(p * (1 - params.TPFractions[1]))
		intent.StopLoss = round5(p * (1 + params.SLFraction))
		intent.DCAPrices = [2]float64{
			round5(p * (1 + params.DCAFractions[0])),
			round5(p * (1 + params.DCAFractions[1])),
		}
	}
	return intent
}

// nearestDistance returns the absolute distance from price to the closest
// level, or +Inf when no levels are configured.
func nearestDistance(price float64, levels []float64) float64 {
	best := math.Inf(1)
	for _, lvl := range levels {
		if d := math.Abs(price - lvl); d < best {
			best = d
		}
	}
	return best
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
