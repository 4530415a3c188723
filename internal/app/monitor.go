package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fxSignalBot/internal/domain"
	"fxSignalBot/internal/ledger"
	"fxSignalBot/internal/ports"
	"fxSignalBot/internal/risk"
)

// Config holds the monitor's orchestration parameters.
type Config struct {
	Symbols        []string
	SymbolParams   map[string]domain.SymbolParams
	ScanInterval   time.Duration // pause between full symbol scans
	PollInterval   time.Duration // pause between follow-up price polls
	SignalCooldown time.Duration // minimum gap between accepted signals per symbol
	MaxPolls       int           // follow-up polls before a timeout close
}

// Monitor drives the trading loop: it scans symbols for entry signals on a
// fixed cadence, opens admitted positions in the ledger and spawns a follow-up
// task per position that polls prices until the position closes.
//
// Follow-up tasks deliberately run on context.Background(): stopping the
// monitor stops new scans, but positions already open keep being tracked to
// their natural close.
type Monitor struct {
	cfg      Config
	logger   ports.Logger
	feed     ports.PriceFeed
	signals  ports.SignalGenerator
	governor *risk.Governor
	ledger   *ledger.Ledger
	notifier ports.NotificationSink

	mu           sync.Mutex
	isRunning    bool
	stopChan     chan struct{}
	lastSignalAt map[string]time.Time
	followUps    map[string]chan struct{} // positionID -> closed when the follow-up exits

	wg  sync.WaitGroup
	now func() time.Time
}

// NewMonitor creates the monitor.
func NewMonitor(
	cfg Config,
	logger ports.Logger,
	feed ports.PriceFeed,
	signals ports.SignalGenerator,
	governor *risk.Governor,
	ldg *ledger.Ledger,
	notifier ports.NotificationSink,
) (*Monitor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for monitor")
	}
	if feed == nil || signals == nil || governor == nil || ldg == nil {
		return nil, fmt.Errorf("%w: feed, signal generator, governor and ledger are all required", ports.ErrConfigurationError)
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol is required", ports.ErrConfigurationError)
	}
	if cfg.ScanInterval <= 0 || cfg.PollInterval <= 0 || cfg.MaxPolls <= 0 {
		return nil, fmt.Errorf("%w: scan interval, poll interval and max polls must be positive", ports.ErrConfigurationError)
	}
	return &Monitor{
		cfg:          cfg,
		logger:       logger,
		feed:         feed,
		signals:      signals,
		governor:     governor,
		ledger:       ldg,
		notifier:     notifier,
		lastSignalAt: make(map[string]time.Time),
		followUps:    make(map[string]chan struct{}),
		now:          time.Now,
	}, nil
}

// Start launches the scan loop. Returns an error if already running.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return fmt.Errorf("monitor is already running")
	}
	m.isRunning = true
	m.stopChan = make(chan struct{})
	stopChan := m.stopChan
	m.mu.Unlock()

	m.logger.Info(ctx, "monitor started", map[string]interface{}{
		"symbols":      m.cfg.Symbols,
		"scanInterval": m.cfg.ScanInterval.String(),
	})
	m.notify(ctx, fmt.Sprintf("Monitor started, scanning %d symbols every %s", len(m.cfg.Symbols), m.cfg.ScanInterval))

	m.wg.Add(1)
	go m.scanLoop(ctx, stopChan)
	return nil
}

// Stop halts the scan loop. Follow-ups for open positions keep running.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = false
	close(m.stopChan)
	m.mu.Unlock()

	m.logger.Info(context.Background(), "monitor stopped")
}

// IsRunning reports whether the scan loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}

func (m *Monitor) scanLoop(ctx context.Context, stopChan chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ScanInterval)
	defer ticker.Stop()

	// First scan runs immediately rather than after one full interval.
	m.scanAll(ctx)
	for {
		select {
		case <-stopChan:
			return
		case <-ctx.Done():
			m.Stop()
			return
		case <-ticker.C:
			m.scanAll(ctx)
		}
	}
}

func (m *Monitor) scanAll(ctx context.Context) {
	for _, symbol := range m.cfg.Symbols {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := m.ScanSymbol(ctx, symbol); err != nil {
			m.logger.Warn(ctx, "symbol scan failed", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		}
	}
}

// ScanSymbol runs one full evaluate-admit-open cycle for a symbol. It is also
// the entry point for operator-forced analysis, which bypasses the scan
// schedule but not the cooldown or risk checks.
func (m *Monitor) ScanSymbol(ctx context.Context, symbol string) error {
	op := "ScanSymbol"

	params, ok := m.cfg.SymbolParams[symbol]
	if !ok {
		return fmt.Errorf("%s: %w: no parameters for symbol %s", op, ports.ErrInvalidRequest, symbol)
	}

	quote, err := m.feed.Fetch(ctx, symbol)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	intent := m.signals.Evaluate(ctx, quote, params)
	if intent == nil {
		return nil
	}

	if !m.cooldownElapsed(symbol) {
		m.logger.Debug(ctx, op+": signal suppressed by cooldown", map[string]interface{}{"symbol": symbol})
		return nil
	}

	// Advisory admission check before doing any work; re-checked below because
	// follow-ups may record closes in between.
	if ok, reason := m.governor.Admit(symbol); !ok {
		m.logger.Info(ctx, op+": signal blocked by risk limits", map[string]interface{}{"symbol": symbol, "reason": reason})
		return nil
	}

	if ok, reason := m.governor.Admit(symbol); !ok {
		m.logger.Info(ctx, op+": admission revoked before open", map[string]interface{}{"symbol": symbol, "reason": reason})
		return nil
	}
	positionID, err := m.ledger.Open(ctx, intent)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	m.lastSignalAt[symbol] = m.now()
	doneCh := make(chan struct{})
	m.followUps[positionID] = doneCh
	m.mu.Unlock()

	m.notify(ctx, fmt.Sprintf("Opened %s %s at %.5f (%s confidence)\nTP1 %.5f | TP2 %.5f | SL %.5f\n%s",
		intent.Direction, intent.Symbol, intent.EntryPrice, intent.Confidence,
		intent.TakeProfit1, intent.TakeProfit2, intent.StopLoss, intent.Reason))

	m.wg.Add(1)
	go m.followPosition(positionID, symbol, intent.EntryPrice, doneCh)
	return nil
}

// followPosition polls prices for one open position until it closes or the
// poll budget runs out. It runs on a background context so a monitor stop
// never abandons an open position mid-flight.
func (m *Monitor) followPosition(positionID, symbol string, lastPrice float64, doneCh chan struct{}) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.followUps, positionID)
		m.mu.Unlock()
		close(doneCh)
	}()

	ctx := context.Background()
	op := "followPosition"

	for poll := 0; poll < m.cfg.MaxPolls; poll++ {
		time.Sleep(m.cfg.PollInterval)

		quote, err := m.feed.Fetch(ctx, symbol)
		if err != nil {
			// A failed fetch still consumes one poll from the budget.
			m.logger.Warn(ctx, op+": price fetch failed", map[string]interface{}{
				"positionID": positionID,
				"poll":       poll + 1,
				"error":      err.Error(),
			})
			continue
		}
		lastPrice = quote.Price

		result, err := m.ledger.Update(ctx, positionID, quote.Price)
		if err != nil {
			if errors.Is(err, ports.ErrUnknownPosition) {
				// Closed elsewhere; nothing left to track.
				return
			}
			m.logger.Error(ctx, err, op+": position update failed", map[string]interface{}{"positionID": positionID})
			continue
		}

		if result.DCATriggered {
			m.notify(ctx, fmt.Sprintf("DCA triggered on %s at %.5f, average price now %.5f",
				symbol, quote.Price, result.Position.AveragePrice))
		}
		if result.Closed {
			m.governor.Record(ctx, result.ProfitPct)
			m.notifyClose(ctx, result.Position)
			return
		}
	}

	// Poll budget exhausted: force closure at the last observed price.
	pos, closed := m.ledger.CloseByTimeout(ctx, positionID, lastPrice)
	if !closed {
		return
	}
	m.governor.Record(ctx, pos.ProfitPct)
	m.notifyClose(ctx, pos)
}

func (m *Monitor) notifyClose(ctx context.Context, pos *domain.Position) {
	m.notify(ctx, fmt.Sprintf("Closed %s %s via %s at %.5f, profit %+.2f%%",
		pos.Direction, pos.Symbol, pos.CloseReason, pos.CurrentPrice, pos.ProfitPct))
}

// notify sends best-effort: delivery failures are logged, never propagated.
func (m *Monitor) notify(ctx context.Context, text string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Send(ctx, text); err != nil {
		m.logger.Warn(ctx, "notification delivery failed", map[string]interface{}{"error": err.Error()})
	}
}

func (m *Monitor) cooldownElapsed(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.lastSignalAt[symbol]
	if !ok {
		return true
	}
	return m.now().Sub(last) >= m.cfg.SignalCooldown
}

// FollowUpDone returns a channel closed when the follow-up for the given
// position exits, or nil if no follow-up is registered.
func (m *Monitor) FollowUpDone(positionID string) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.followUps[positionID]
}

// Wait blocks until the scan loop and every follow-up task have exited.
func (m *Monitor) Wait() {
	m.wg.Wait()
}
