package risk

import (
	"context"
	"fmt"
	"sync"

	"fxSignalBot/internal/domain"
	"fxSignalBot/internal/ports"
)

// Config holds the portfolio-level risk limits.
type Config struct {
	InitialCapital       float64
	MaxDrawdown          float64 // fraction of initial capital, e.g. 0.50
	ConsecutiveLossLimit int
}

// Governor is the portfolio-level gate for new positions. It tracks a dollar
// capital figure and a consecutive-loss streak, and blocks admission when
// either limit is breached. All mutation is serialized behind one mutex.
//
// Record adds the leveraged percent profit of a closed position directly to
// the dollar capital figure without unit conversion. That mirrors the original
// strategy's accounting and is preserved for compatibility; do not "fix" it.
//
// A ConsecutiveLossLimit of zero makes Admit permanently false, and a
// MaxDrawdown of zero blocks after the first losing close. Both are treated as
// deliberate maximum conservatism rather than configuration errors.
type Governor struct {
	cfg    Config
	logger ports.Logger

	mu                sync.Mutex
	capital           float64
	consecutiveLosses int
	totalClosed       int
	totalWins         int
}

// New creates a risk governor starting at the configured initial capital.
func New(cfg Config, logger ports.Logger) (*Governor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for risk governor")
	}
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("%w: initial capital must be positive", ports.ErrConfigurationError)
	}
	if cfg.MaxDrawdown < 0 || cfg.MaxDrawdown > 1 {
		return nil, fmt.Errorf("%w: max drawdown must be a fraction between 0 and 1", ports.ErrConfigurationError)
	}
	if cfg.ConsecutiveLossLimit < 0 {
		return nil, fmt.Errorf("%w: consecutive loss limit cannot be negative", ports.ErrConfigurationError)
	}
	return &Governor{cfg: cfg, logger: logger, capital: cfg.InitialCapital}, nil
}

// Admit reports whether a new position may be opened. The answer is advisory:
// state can change between this check and the actual open, so callers re-check
// immediately before opening.
func (g *Governor) Admit(symbol string) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	floor := g.cfg.InitialCapital * (1 - g.cfg.MaxDrawdown)
	if g.capital < floor {
		return false, fmt.Sprintf("drawdown limit reached: capital %.2f below floor %.2f", g.capital, floor)
	}
	if g.consecutiveLosses >= g.cfg.ConsecutiveLossLimit {
		return false, fmt.Sprintf("consecutive loss limit reached (%d/%d)", g.consecutiveLosses, g.cfg.ConsecutiveLossLimit)
	}
	_ = symbol // portfolio-level gate; symbol is informational only
	return true, ""
}

// Record applies a closed position's leveraged percent profit to the
// portfolio counters. Profit above zero counts as a win and resets the loss
// streak; anything else extends it.
func (g *Governor) Record(ctx context.Context, profitPct float64) {
	g.mu.Lock()
	g.capital += profitPct
	g.totalClosed++
	if profitPct > 0 {
		g.totalWins++
		g.consecutiveLosses = 0
	} else {
		g.consecutiveLosses++
	}
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.logger.Info(ctx, "risk state updated", map[string]interface{}{
		"profitPct":         profitPct,
		"capital":           snap.Capital,
		"consecutiveLosses": snap.ConsecutiveLosses,
		"totalClosed":       snap.TotalClosed,
		"winRate":           snap.WinRate,
	})
}

// Snapshot returns a read-only view of the current risk state.
func (g *Governor) Snapshot() domain.RiskSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// Reset restores capital to its initial value and zeroes all counters.
// Explicit operator action, never automatic.
func (g *Governor) Reset(ctx context.Context) {
	g.mu.Lock()
	g.capital = g.cfg.InitialCapital
	g.consecutiveLosses = 0
	g.totalClosed = 0
	g.totalWins = 0
	g.mu.Unlock()

	g.logger.Info(ctx, "risk counters reset", map[string]interface{}{"capital": g.cfg.InitialCapital})
}

func (g *Governor) snapshotLocked() domain.RiskSnapshot {
	winRate := 0.0
	if g.totalClosed > 0 {
		winRate = float64(g.totalWins) / float64(g.totalClosed) * 100
	}
	return domain.RiskSnapshot{
		Capital:              g.capital,
		InitialCapital:       g.cfg.InitialCapital,
		DrawdownPct:          (g.cfg.InitialCapital - g.capital) / g.cfg.InitialCapital * 100,
		WinRate:              winRate,
		ConsecutiveLosses:    g.consecutiveLosses,
		ConsecutiveLossLimit: g.cfg.ConsecutiveLossLimit,
		MaxDrawdown:          g.cfg.MaxDrawdown,
		TotalClosed:          g.totalClosed,
		TotalWins:            g.totalWins,
	}
}
