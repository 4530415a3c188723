package binancefeed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fxSignalBot/internal/domain"
	"fxSignalBot/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// Client implements the ports.PriceFeed interface using the go-binance library.
// Each Fetch pulls a window of recent klines and derives the latest price, an
// RSI value and a moving-average trend from the closes.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger

	klineInterval string
	klineLimit    int
	rsiPeriod     int
	shortMAPeriod int
	longMAPeriod  int

	now func() time.Time
}

// Config holds configuration specific to the Binance feed adapter.
type Config struct {
	APIKey        string
	SecretKey     string
	UseTestnet    bool
	Logger        ports.Logger
	KlineInterval string // e.g. "5m"
	KlineLimit    int    // candles per fetch; must cover indicator warm-up
	RSIPeriod     int    // defaults to 14
	ShortMAPeriod int    // defaults to 7
	LongMAPeriod  int    // defaults to 25
}

// New creates a new Binance feed adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance feed")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Feed will only use public endpoints.")
	}
	if cfg.KlineInterval == "" {
		cfg.KlineInterval = "5m"
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = 14
	}
	if cfg.ShortMAPeriod <= 0 {
		cfg.ShortMAPeriod = 7
	}
	if cfg.LongMAPeriod <= 0 {
		cfg.LongMAPeriod = 25
	}
	minLimit := cfg.LongMAPeriod
	if cfg.RSIPeriod+1 > minLimit {
		minLimit = cfg.RSIPeriod + 1
	}
	if cfg.KlineLimit < minLimit {
		cfg.KlineLimit = minLimit
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance feed configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance feed configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		klineInterval: cfg.KlineInterval,
		klineLimit:    cfg.KlineLimit,
		rsiPeriod:     cfg.RSIPeriod,
		shortMAPeriod: cfg.ShortMAPeriod,
		longMAPeriod:  cfg.LongMAPeriod,
		now:           time.Now,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1120, -1121: // Parameter/request format errors
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrFeedUnavailable
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrFeedUnavailable, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Fetch retrieves recent klines for the symbol and derives a quote from them.
func (c *Client) Fetch(ctx context.Context, symbol string) (*domain.Quote, error) {
	op := "Fetch"
	klines, err := c.futuresClient.NewKlinesService().
		Symbol(symbol).
		Interval(c.klineInterval).
		Limit(c.klineLimit).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if len(klines) == 0 {
		return nil, c.handleError(ctx, fmt.Errorf("no kline data returned for symbol %s", symbol), op)
	}

	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		close, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			parseErr := fmt.Errorf("could not parse close '%s': %w", k.Close, err)
			return nil, c.handleError(ctx, parseErr, op)
		}
		closes = append(closes, close)
	}

	rsi, err := calculateRSI(closes, c.rsiPeriod)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	trend, err := deriveTrend(closes, c.shortMAPeriod, c.longMAPeriod)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	quote := &domain.Quote{
		Symbol:    symbol,
		Price:     closes[len(closes)-1],
		RSI:       rsi,
		Trend:     trend,
		Timestamp: c.now().UTC(),
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{
		"symbol": symbol,
		"price":  quote.Price,
		"rsi":    quote.RSI,
		"trend":  quote.Trend,
	})
	return quote, nil
}
