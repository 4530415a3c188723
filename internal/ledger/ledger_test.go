package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxSignalBot/internal/domain"
	"fxSignalBot/internal/ports"
)

// --- Mock Logger ---

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(&mockLogger{})
	require.NoError(t, err)
	return l
}

func longIntent() *domain.TradeIntent {
	return &domain.TradeIntent{
		Symbol:      "EURUSD",
		Direction:   domain.Long,
		EntryPrice:  1.0,
		TakeProfit1: 1.010,
		TakeProfit2: 1.020,
		StopLoss:    0.985,
		DCAPrices:   [2]float64{0.995, 0.990},
		Leverage:    20,
		Confidence:  domain.ConfidenceHigh,
		CreatedAt:   time.Now(),
	}
}

func shortIntent() *domain.TradeIntent {
	return &domain.TradeIntent{
		Symbol:      "USDCAD",
		Direction:   domain.Short,
		EntryPrice:  1.0,
		TakeProfit1: 0.990,
		TakeProfit2: 0.980,
		StopLoss:    1.015,
		DCAPrices:   [2]float64{1.005, 1.010},
		Leverage:    20,
		Confidence:  domain.ConfidenceMedium,
		CreatedAt:   time.Now(),
	}
}

func TestOpenAndLifecycle(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	id, err := l.Open(ctx, longIntent())
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, l.OpenCount())

	// Price above all DCA triggers: nothing happens.
	res, err := l.Update(ctx, id, 0.996)
	require.NoError(t, err)
	assert.False(t, res.DCATriggered)
	assert.False(t, res.Closed)
	assert.Equal(t, 1.0, res.Position.AveragePrice)

	// Crossing the first DCA trigger averages entry and trigger price.
	res, err = l.Update(ctx, id, 0.994)
	require.NoError(t, err)
	assert.True(t, res.DCATriggered)
	assert.False(t, res.Closed)
	assert.InDelta(t, 0.9975, res.Position.AveragePrice, 1e-9)
	assert.True(t, res.Position.DCALevels[0].Triggered)
	assert.False(t, res.Position.DCALevels[1].Triggered)

	// Hitting TP1 closes the position; profit is measured from the average.
	res, err = l.Update(ctx, id, 1.011)
	require.NoError(t, err)
	assert.True(t, res.Closed)
	assert.Equal(t, domain.CloseReasonTP1, res.CloseReason)
	// (1.011 - 0.9975) / 0.9975 * 100 * 20 = 27.07 (rounded)
	assert.InDelta(t, 27.07, res.ProfitPct, 0.01)

	assert.Equal(t, 0, l.OpenCount())
	history := l.History()
	require.Len(t, history, 1)
	assert.Equal(t, domain.StatusClosed, history[0].Status)
	assert.False(t, history[0].ClosedAt.IsZero())
}

func TestTakeProfit2Priority(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	intent := longIntent()
	id, err := l.Open(ctx, intent)
	require.NoError(t, err)

	// A price beyond both targets must report the far target, not the near one.
	res, err := l.Update(ctx, id, 1.025)
	require.NoError(t, err)
	require.True(t, res.Closed)
	assert.Equal(t, domain.CloseReasonTP2, res.CloseReason)
}

func TestDoubleDCAOnOneUpdate(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	id, err := l.Open(ctx, longIntent())
	require.NoError(t, err)

	// One large drop crosses both triggers in a single update.
	res, err := l.Update(ctx, id, 0.989)
	require.NoError(t, err)
	assert.True(t, res.DCATriggered)
	assert.True(t, res.Position.DCALevels[0].Triggered)
	assert.True(t, res.Position.DCALevels[1].Triggered)
	// Mean of 1.0, 0.995, 0.990.
	assert.InDelta(t, 0.995, res.Position.AveragePrice, 1e-9)
}

func TestSecondDCARequiresFirst(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	id, err := l.Open(ctx, longIntent())
	require.NoError(t, err)

	// A price between the two triggers fires level 1 only.
	res, err := l.Update(ctx, id, 0.993)
	require.NoError(t, err)
	assert.True(t, res.Position.DCALevels[0].Triggered)
	assert.False(t, res.Position.DCALevels[1].Triggered)

	// The next adverse move picks up level 2.
	res, err = l.Update(ctx, id, 0.9895)
	require.NoError(t, err)
	assert.True(t, res.DCATriggered)
	assert.True(t, res.Position.DCALevels[1].Triggered)
	assert.InDelta(t, 0.995, res.Position.AveragePrice, 1e-9)
}

func TestStopLossLong(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	id, err := l.Open(ctx, longIntent())
	require.NoError(t, err)

	res, err := l.Update(ctx, id, 0.984)
	require.NoError(t, err)
	require.True(t, res.Closed)
	assert.Equal(t, domain.CloseReasonStopLoss, res.CloseReason)
	assert.Less(t, res.ProfitPct, 0.0)
}

func TestShortMirror(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	id, err := l.Open(ctx, shortIntent())
	require.NoError(t, err)

	// Adverse move for a short is upward: crossing the first DCA trigger.
	res, err := l.Update(ctx, id, 1.006)
	require.NoError(t, err)
	assert.True(t, res.DCATriggered)
	assert.InDelta(t, 1.0025, res.Position.AveragePrice, 1e-9)

	// Favourable move down to TP2 territory closes at the far target.
	res, err = l.Update(ctx, id, 0.979)
	require.NoError(t, err)
	require.True(t, res.Closed)
	assert.Equal(t, domain.CloseReasonTP2, res.CloseReason)
	// Short profit: -1 * (0.979 - 1.0025)/1.0025 * 100 * 20 = 46.88
	assert.InDelta(t, 46.88, res.ProfitPct, 0.01)

	// Short stop-loss fires on a move above the stop.
	id2, err := l.Open(ctx, shortIntent())
	require.NoError(t, err)
	res, err = l.Update(ctx, id2, 1.016)
	require.NoError(t, err)
	require.True(t, res.Closed)
	assert.Equal(t, domain.CloseReasonStopLoss, res.CloseReason)
}

func TestUpdateUnknownPosition(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.Update(ctx, "EURUSD_123", 1.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrUnknownPosition)

	// Updating after a close behaves the same way.
	id, err := l.Open(ctx, longIntent())
	require.NoError(t, err)
	res, err := l.Update(ctx, id, 1.025)
	require.NoError(t, err)
	require.True(t, res.Closed)

	_, err = l.Update(ctx, id, 1.030)
	assert.ErrorIs(t, err, ports.ErrUnknownPosition)
}

func TestCloseByTimeout(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	id, err := l.Open(ctx, longIntent())
	require.NoError(t, err)

	pos, closed := l.CloseByTimeout(ctx, id, 1.002)
	require.True(t, closed)
	assert.Equal(t, domain.CloseReasonTimeout, pos.CloseReason)
	// (1.002 - 1.0) / 1.0 * 100 * 20 = 4.00
	assert.InDelta(t, 4.0, pos.ProfitPct, 0.01)

	// Second attempt is a silent no-op.
	_, closed = l.CloseByTimeout(ctx, id, 1.002)
	assert.False(t, closed)

	// Zero price falls back to the last known current price.
	id2, err := l.Open(ctx, longIntent())
	require.NoError(t, err)
	_, err = l.Update(ctx, id2, 1.004)
	require.NoError(t, err)
	pos, closed = l.CloseByTimeout(ctx, id2, 0)
	require.True(t, closed)
	assert.InDelta(t, 8.0, pos.ProfitPct, 0.01)
}

func TestOpenRejectsInvalidIntent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	cases := []struct {
		name   string
		mutate func(i *domain.TradeIntent)
	}{
		{"zero entry price", func(i *domain.TradeIntent) { i.EntryPrice = 0 }},
		{"bad direction", func(i *domain.TradeIntent) { i.Direction = "SIDEWAYS" }},
		{"zero leverage", func(i *domain.TradeIntent) { i.Leverage = 0 }},
		{"tp1 below entry for long", func(i *domain.TradeIntent) { i.TakeProfit1 = 0.99 }},
		{"tp2 below tp1 for long", func(i *domain.TradeIntent) { i.TakeProfit2 = 1.005 }},
		{"stop above entry for long", func(i *domain.TradeIntent) { i.StopLoss = 1.05 }},
		{"dca above entry for long", func(i *domain.TradeIntent) { i.DCAPrices = [2]float64{1.005, 0.990} }},
		{"dca levels out of order", func(i *domain.TradeIntent) { i.DCAPrices = [2]float64{0.990, 0.995} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			intent := longIntent()
			tc.mutate(intent)
			_, err := l.Open(ctx, intent)
			require.Error(t, err)
			assert.ErrorIs(t, err, ports.ErrInvalidIntent)
		})
	}
	assert.Equal(t, 0, l.OpenCount())

	_, err := l.Open(ctx, nil)
	assert.ErrorIs(t, err, ports.ErrInvalidIntent)
}

func TestSnapshotsAreCopies(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	id, err := l.Open(ctx, longIntent())
	require.NoError(t, err)

	open := l.OpenPositions()
	require.Len(t, open, 1)
	open[0].EntryPrice = 999
	open[0].DCALevels[0].Triggered = true

	res, err := l.Update(ctx, id, 0.996)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Position.EntryPrice)
	assert.False(t, res.Position.DCALevels[0].Triggered)
}
