package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxSignalBot/internal/app"
	"fxSignalBot/internal/domain"
	"fxSignalBot/internal/ledger"
	"fxSignalBot/internal/risk"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockFeed struct {
	mu    sync.Mutex
	quote domain.Quote
}

func (f *mockFeed) Fetch(ctx context.Context, symbol string) (*domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.quote
	q.Symbol = symbol
	q.Timestamp = time.Now()
	return &q, nil
}

type mockSignals struct {
	intent *domain.TradeIntent
}

func (s *mockSignals) Evaluate(ctx context.Context, quote *domain.Quote, params domain.SymbolParams) *domain.TradeIntent {
	return s.intent
}

type fixture struct {
	server   *Server
	ledger   *ledger.Ledger
	governor *risk.Governor
	monitor  *app.Monitor
	signals  *mockSignals
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := &mockLogger{}

	ldg, err := ledger.New(logger)
	require.NoError(t, err)
	governor, err := risk.New(risk.Config{InitialCapital: 1000, MaxDrawdown: 0.5, ConsecutiveLossLimit: 5}, logger)
	require.NoError(t, err)

	signals := &mockSignals{}
	monitor, err := app.NewMonitor(app.Config{
		Symbols: []string{"EURUSD"},
		SymbolParams: map[string]domain.SymbolParams{
			"EURUSD": {TPFractions: [2]float64{0.015, 0.025}, SLFraction: 0.012, DCAFractions: [2]float64{0.005, 0.010}, Leverage: 20},
		},
		ScanInterval: time.Hour,
		PollInterval: 5 * time.Millisecond,
		MaxPolls:     2,
	}, logger, &mockFeed{quote: domain.Quote{Price: 1.0, RSI: 50, Trend: domain.TrendFlat}}, signals, governor, ldg, nil)
	require.NoError(t, err)

	server, err := NewServer(logger, monitor, ldg, governor)
	require.NoError(t, err)
	return &fixture{server: server, ledger: ldg, governor: governor, monitor: monitor, signals: signals}
}

func (f *fixture) request(t *testing.T, method, path string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	f.server.echo.ServeHTTP(rec, req)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthAndRoot(t *testing.T) {
	f := newFixture(t)

	rec, body := f.request(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body.Status)

	rec, body = f.request(t, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	data, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, data["monitorRunning"])
}

func TestStatusReflectsState(t *testing.T) {
	f := newFixture(t)

	rec, body := f.request(t, http.MethodGet, "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	data := body.Data.(map[string]interface{})
	assert.Equal(t, float64(0), data["openPositions"])
	assert.NotNil(t, data["risk"])
}

func TestPositionsAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Open(ctx, &domain.TradeIntent{
		Symbol:      "EURUSD",
		Direction:   domain.Long,
		EntryPrice:  1.0,
		TakeProfit1: 1.010,
		TakeProfit2: 1.020,
		StopLoss:    0.985,
		DCAPrices:   [2]float64{0.995, 0.990},
		Leverage:    20,
	})
	require.NoError(t, err)

	rec, body := f.request(t, http.MethodGet, "/positions")
	assert.Equal(t, http.StatusOK, rec.Code)
	positions, ok := body.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, positions, 1)

	rec, body = f.request(t, http.MethodGet, "/history")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body.Data)
}

func TestMonitorLifecycleRoutes(t *testing.T) {
	f := newFixture(t)

	// Stop before start conflicts.
	rec, _ := f.request(t, http.MethodPost, "/monitor/stop")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = f.request(t, http.MethodPost, "/monitor/start")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.monitor.IsRunning())

	// Double start conflicts.
	rec, _ = f.request(t, http.MethodPost, "/monitor/start")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = f.request(t, http.MethodPost, "/monitor/stop")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.monitor.IsRunning())
}

func TestRiskRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.governor.Record(ctx, -100)

	rec, body := f.request(t, http.MethodGet, "/risk")
	assert.Equal(t, http.StatusOK, rec.Code)
	data := body.Data.(map[string]interface{})
	assert.Equal(t, float64(900), data["capital"])

	rec, body = f.request(t, http.MethodPost, "/risk/reset")
	assert.Equal(t, http.StatusOK, rec.Code)
	data = body.Data.(map[string]interface{})
	assert.Equal(t, float64(1000), data["capital"])
}

func TestAnalyzeRoute(t *testing.T) {
	f := newFixture(t)

	// No signal: scan succeeds with nothing opened.
	rec, _ := f.request(t, http.MethodPost, "/analyze/eurusd")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.ledger.OpenCount())

	// Unknown symbol maps to a bad request.
	rec, body := f.request(t, http.MethodPost, "/analyze/GBPJPY")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", body.Status)
}
