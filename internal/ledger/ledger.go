package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"fxSignalBot/internal/domain"
	"fxSignalBot/internal/ports"
)

// Ledger owns every open and closed position. All mutation goes through its
// mutex; callers never receive live Position pointers, only copies, so
// follow-up tasks cannot mutate state behind the ledger's back.
type Ledger struct {
	logger ports.Logger

	mu      sync.Mutex
	open    map[string]*domain.Position
	history []*domain.Position

	now func() time.Time // overridable in tests
}

// New creates a position ledger.
func New(logger ports.Logger) (*Ledger, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for ledger")
	}
	return &Ledger{
		logger: logger,
		open:   make(map[string]*domain.Position),
		now:    time.Now,
	}, nil
}

// Open constructs a position from a validated trade intent and adds it to the
// open set. Returns the new position's id, or ErrInvalidIntent when the
// levels are inconsistent with the direction.
func (l *Ledger) Open(ctx context.Context, intent *domain.TradeIntent) (string, error) {
	op := "Open"
	if err := validateIntent(intent); err != nil {
		symbol := ""
		if intent != nil {
			symbol = intent.Symbol
		}
		l.logger.Warn(ctx, op+": rejected trade intent", map[string]interface{}{"symbol": symbol, "reason": err.Error()})
		return "", err
	}

	openedAt := l.now().UTC()
	pos := &domain.Position{
		ID:           fmt.Sprintf("%s_%d", intent.Symbol, openedAt.UnixNano()),
		Symbol:       intent.Symbol,
		Direction:    intent.Direction,
		EntryPrice:   intent.EntryPrice,
		CurrentPrice: intent.EntryPrice,
		AveragePrice: intent.EntryPrice,
		DCALevels: []domain.DCALevel{
			{Level: 1, TriggerPrice: intent.DCAPrices[0]},
			{Level: 2, TriggerPrice: intent.DCAPrices[1]},
		},
		TakeProfit1: intent.TakeProfit1,
		TakeProfit2: intent.TakeProfit2,
		StopLoss:    intent.StopLoss,
		Leverage:    intent.Leverage,
		Status:      domain.StatusOpen,
		OpenedAt:    openedAt,
	}
	pos.Events = append(pos.Events, fmt.Sprintf("opened %s %s at %.5f (tp1=%.5f tp2=%.5f sl=%.5f)",
		pos.Direction, pos.Symbol, pos.EntryPrice, pos.TakeProfit1, pos.TakeProfit2, pos.StopLoss))

	l.mu.Lock()
	l.open[pos.ID] = pos
	l.mu.Unlock()

	l.logger.Info(ctx, op+": position opened", map[string]interface{}{
		"positionID": pos.ID,
		"symbol":     pos.Symbol,
		"direction":  pos.Direction,
		"entryPrice": pos.EntryPrice,
	})
	return pos.ID, nil
}

// Update applies a new price to an open position: it marks any DCA levels the
// price has crossed (recomputing the average entry price), then evaluates exit
// conditions in priority order TP2 > TP1 > SL. Returns ErrUnknownPosition if
// the id is not in the open set; callers must stop polling once closed.
func (l *Ledger) Update(ctx context.Context, id string, newPrice float64) (domain.UpdateResult, error) {
	op := "Update"
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.open[id]
	if !ok {
		return domain.UpdateResult{}, fmt.Errorf("%s: %w: %s", op, ports.ErrUnknownPosition, id)
	}

	pos.CurrentPrice = newPrice

	// DCA levels fire strictly in order: level 2 can only trigger once level 1
	// has. A single large adverse move may fire both in one update.
	result := domain.UpdateResult{}
	for i := range pos.DCALevels {
		lvl := &pos.DCALevels[i]
		if lvl.Triggered {
			continue
		}
		if i > 0 && !pos.DCALevels[i-1].Triggered {
			break
		}
		if !crossedAdverse(pos.Direction, newPrice, lvl.TriggerPrice) {
			break
		}
		lvl.Triggered = true
		result.DCATriggered = true
		pos.AveragePrice = recomputeAverage(pos)
		pos.Events = append(pos.Events, fmt.Sprintf("DCA level %d triggered at %.5f, average price now %.5f",
			lvl.Level, lvl.TriggerPrice, pos.AveragePrice))
		l.logger.Info(ctx, op+": DCA level triggered", map[string]interface{}{
			"positionID":   pos.ID,
			"level":        lvl.Level,
			"triggerPrice": lvl.TriggerPrice,
			"averagePrice": pos.AveragePrice,
		})
	}

	if reason, matched := exitReason(pos, newPrice); matched {
		l.closeLocked(ctx, pos, newPrice, reason)
		result.Closed = true
		result.CloseReason = reason
		result.ProfitPct = pos.ProfitPct
	}

	result.Position = copyPosition(pos)
	return result, nil
}

// CloseByTimeout forces closure with CloseReasonTimeout using the last price
// the follow-up task observed. It is a silent no-op when the position already
// closed concurrently via Update; the returned bool reports whether the
// timeout closure actually happened.
func (l *Ledger) CloseByTimeout(ctx context.Context, id string, lastKnownPrice float64) (*domain.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.open[id]
	if !ok {
		return nil, false
	}
	if lastKnownPrice <= 0 {
		lastKnownPrice = pos.CurrentPrice
	}
	pos.CurrentPrice = lastKnownPrice
	l.closeLocked(ctx, pos, lastKnownPrice, domain.CloseReasonTimeout)
	return copyPosition(pos), true
}

// OpenPositions returns a snapshot of every open position.
func (l *Ledger) OpenPositions() []*domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*domain.Position, 0, len(l.open))
	for _, pos := range l.open {
		out = append(out, copyPosition(pos))
	}
	return out
}

// History returns a snapshot of all closed positions, oldest first.
func (l *Ledger) History() []*domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*domain.Position, 0, len(l.history))
	for _, pos := range l.history {
		out = append(out, copyPosition(pos))
	}
	return out
}

// OpenCount returns the number of currently open positions.
func (l *Ledger) OpenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open)
}

// closeLocked finalizes a position and moves it from the open set to history.
// Caller must hold l.mu.
func (l *Ledger) closeLocked(ctx context.Context, pos *domain.Position, closePrice float64, reason domain.CloseReason) {
	profit := pos.Direction.Sign() * (closePrice - pos.AveragePrice) / pos.AveragePrice * 100 * float64(pos.Leverage)
	pos.ProfitPct = math.Round(profit*100) / 100
	pos.Status = domain.StatusClosed
	pos.CloseReason = reason
	pos.ClosedAt = l.now().UTC()
	pos.Events = append(pos.Events, fmt.Sprintf("closed %s at %.5f, profit %+.2f%%", reason, closePrice, pos.ProfitPct))

	delete(l.open, pos.ID)
	l.history = append(l.history, pos)

	l.logger.Info(ctx, "position closed", map[string]interface{}{
		"positionID": pos.ID,
		"symbol":     pos.Symbol,
		"reason":     reason,
		"closePrice": closePrice,
		"profitPct":  pos.ProfitPct,
	})
}

// crossedAdverse reports whether price has moved past a trigger level in the
// adverse direction for the position's side.
func crossedAdverse(dir domain.Direction, price, trigger float64) bool {
	if dir == domain.Long {
		return price <= trigger
	}
	return price >= trigger
}

// recomputeAverage returns the simple mean of the entry price and all
// triggered DCA trigger prices. Deliberately unweighted to match the original
// strategy's accounting; not a cost-basis average.
func recomputeAverage(pos *domain.Position) float64 {
	sum := pos.EntryPrice
	n := 1
	for _, lvl := range pos.DCALevels {
		if lvl.Triggered {
			sum += lvl.TriggerPrice
			n++
		}
	}
	return sum / float64(n)
}

// exitReason evaluates exit conditions in fixed priority order: the far
// target beats the near target beats the stop-loss.
func exitReason(pos *domain.Position, price float64) (domain.CloseReason, bool) {
	if pos.Direction == domain.Long {
		switch {
		case price >= pos.TakeProfit2:
			return domain.CloseReasonTP2, true
		case price >= pos.TakeProfit1:
			return domain.CloseReasonTP1, true
		case price <= pos.StopLoss:
			return domain.CloseReasonStopLoss, true
		}
		return "", false
	}
	switch {
	case price <= pos.TakeProfit2:
		return domain.CloseReasonTP2, true
	case price <= pos.TakeProfit1:
		return domain.CloseReasonTP1, true
	case price >= pos.StopLoss:
		return domain.CloseReasonStopLoss, true
	}
	return "", false
}

// validateIntent checks that entry price, direction and all levels are
// mutually consistent before a position may be opened.
func validateIntent(intent *domain.TradeIntent) error {
	if intent == nil {
		return fmt.Errorf("%w: nil intent", ports.ErrInvalidIntent)
	}
	if intent.EntryPrice <= 0 {
		return fmt.Errorf("%w: entry price must be positive", ports.ErrInvalidIntent)
	}
	if intent.Direction != domain.Long && intent.Direction != domain.Short {
		return fmt.Errorf("%w: direction must be LONG or SHORT", ports.ErrInvalidIntent)
	}
	if intent.Leverage <= 0 {
		return fmt.Errorf("%w: leverage must be positive", ports.ErrInvalidIntent)
	}

	e := intent.EntryPrice
	tp1, tp2, sl := intent.TakeProfit1, intent.TakeProfit2, intent.StopLoss
	dca1, dca2 := intent.DCAPrices[0], intent.DCAPrices[1]

	if intent.Direction == domain.Long {
		if !(tp1 > e && tp2 > tp1) {
			return fmt.Errorf("%w: long targets must satisfy entry < tp1 < tp2", ports.ErrInvalidIntent)
		}
		if !(dca1 < e && dca2 < dca1) {
			return fmt.Errorf("%w: long DCA levels must satisfy dca2 < dca1 < entry", ports.ErrInvalidIntent)
		}
		if !(sl < e && sl > 0) {
			return fmt.Errorf("%w: long stop-loss must be below entry", ports.ErrInvalidIntent)
		}
		return nil
	}
	if !(tp1 < e && tp2 < tp1 && tp2 > 0) {
		return fmt.Errorf("%w: short targets must satisfy tp2 < tp1 < entry", ports.ErrInvalidIntent)
	}
	if !(dca1 > e && dca2 > dca1) {
		return fmt.Errorf("%w: short DCA levels must satisfy entry < dca1 < dca2", ports.ErrInvalidIntent)
	}
	if !(sl > e) {
		return fmt.Errorf("%w: short stop-loss must be above entry", ports.ErrInvalidIntent)
	}
	return nil
}

// copyPosition returns a deep copy safe to hand outside the ledger.
func copyPosition(pos *domain.Position) *domain.Position {
	cp := *pos
	cp.DCALevels = append([]domain.DCALevel(nil), pos.DCALevels...)
	cp.Events = append([]string(nil), pos.Events...)
	return &cp
}
