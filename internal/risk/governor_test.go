package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxSignalBot/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newGovernor(t *testing.T, cfg Config) *Governor {
	t.Helper()
	g, err := New(cfg, &mockLogger{})
	require.NoError(t, err)
	return g
}

func TestNewValidation(t *testing.T) {
	logger := &mockLogger{}

	_, err := New(Config{InitialCapital: 0, MaxDrawdown: 0.5, ConsecutiveLossLimit: 5}, logger)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{InitialCapital: 1000, MaxDrawdown: 1.5, ConsecutiveLossLimit: 5}, logger)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{InitialCapital: 1000, MaxDrawdown: 0.5, ConsecutiveLossLimit: -1}, logger)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{InitialCapital: 1000, MaxDrawdown: 0.5, ConsecutiveLossLimit: 5}, nil)
	assert.Error(t, err)
}

func TestDrawdownGate(t *testing.T) {
	ctx := context.Background()
	g := newGovernor(t, Config{InitialCapital: 1000, MaxDrawdown: 0.5, ConsecutiveLossLimit: 100})

	ok, reason := g.Admit("EURUSD")
	assert.True(t, ok)
	assert.Empty(t, reason)

	// Capital 400 is below the 500 floor.
	g.Record(ctx, -600)
	ok, reason = g.Admit("EURUSD")
	assert.False(t, ok)
	assert.Contains(t, reason, "drawdown")

	g.Reset(ctx)
	ok, _ = g.Admit("EURUSD")
	assert.True(t, ok)
	assert.Equal(t, 1000.0, g.Snapshot().Capital)
}

func TestConsecutiveLossGate(t *testing.T) {
	ctx := context.Background()
	g := newGovernor(t, Config{InitialCapital: 1000, MaxDrawdown: 0.99, ConsecutiveLossLimit: 3})

	g.Record(ctx, -1)
	g.Record(ctx, -1)
	ok, _ := g.Admit("EURUSD")
	assert.True(t, ok)

	g.Record(ctx, -1)
	ok, reason := g.Admit("EURUSD")
	assert.False(t, ok)
	assert.Contains(t, reason, "consecutive loss")

	// A single win resets the streak.
	g.Record(ctx, 2)
	ok, _ = g.Admit("EURUSD")
	assert.True(t, ok)
}

func TestZeroProfitCountsAsLoss(t *testing.T) {
	ctx := context.Background()
	g := newGovernor(t, Config{InitialCapital: 1000, MaxDrawdown: 0.99, ConsecutiveLossLimit: 2})

	g.Record(ctx, 0)
	g.Record(ctx, 0)
	ok, _ := g.Admit("EURUSD")
	assert.False(t, ok)
	assert.Equal(t, 0, g.Snapshot().TotalWins)
}

func TestZeroLossLimitBlocksPermanently(t *testing.T) {
	// A zero limit means the streak check fails immediately, even with a
	// pristine account. Deliberate maximum conservatism.
	g := newGovernor(t, Config{InitialCapital: 1000, MaxDrawdown: 0.5, ConsecutiveLossLimit: 0})

	ok, reason := g.Admit("EURUSD")
	assert.False(t, ok)
	assert.Contains(t, reason, "consecutive loss")
}

func TestSnapshotCounters(t *testing.T) {
	ctx := context.Background()
	g := newGovernor(t, Config{InitialCapital: 1000, MaxDrawdown: 0.5, ConsecutiveLossLimit: 5})

	g.Record(ctx, 10)
	g.Record(ctx, -4)
	g.Record(ctx, 6)
	g.Record(ctx, 8)

	snap := g.Snapshot()
	assert.Equal(t, 4, snap.TotalClosed)
	assert.Equal(t, 3, snap.TotalWins)
	assert.InDelta(t, 75.0, snap.WinRate, 1e-9)
	assert.InDelta(t, 1020.0, snap.Capital, 1e-9)
	assert.InDelta(t, -2.0, snap.DrawdownPct, 1e-9)
	assert.Equal(t, 0, snap.ConsecutiveLosses)
}
