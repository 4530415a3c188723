package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fxSignalBot/internal/adapters/logger" // Import the logger package for LogLevel
	"fxSignalBot/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Binance API (public kline endpoints work without keys)
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Tracked symbols and their per-symbol trade parameters
	Symbols      []string
	SymbolParams map[string]domain.SymbolParams

	// Risk Management
	InitialCapital       float64 // starting dollar capital for the risk governor
	MaxDrawdown          float64 // fraction of initial capital (e.g. 0.50 for 50%)
	ConsecutiveLossLimit int     // losing closes in a row before new trades pause

	// Monitor Timing
	ScanInterval   time.Duration // pause between full symbol scans
	PollInterval   time.Duration // pause between follow-up price polls
	MaxPolls       int           // follow-up polls before a timeout close
	SignalCooldown time.Duration // minimum gap between accepted signals per symbol

	// Feed Parameters
	KlineInterval string // candle interval used to derive RSI/trend
	KlineLimit    int    // candles fetched per quote

	// Telegram
	TelegramToken  string
	TelegramChatID string

	// HTTP
	HTTPPort int

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
}

// defaultSymbolParams returns the backtested per-symbol parameter table.
// Fractions are relative distances from the entry price; support/resistance
// bands feed the signal generator's zone detection.
func defaultSymbolParams() map[string]domain.SymbolParams {
	return map[string]domain.SymbolParams{
		"EURUSD": {
			DCAFractions: [2]float64{0.005, 0.010},
			TPFractions:  [2]float64{0.015, 0.025},
			SLFraction:   0.012,
			Leverage:     20,
			Support:      []float64{1.0780, 1.0820},
			Resistance:   []float64{1.0920, 1.0950},
		},
		"USDCAD": {
			DCAFractions: [2]float64{0.006, 0.012},
			TPFractions:  [2]float64{0.018, 0.030},
			SLFraction:   0.015,
			Leverage:     20,
			Support:      []float64{1.3380, 1.3420},
			Resistance:   []float64{1.3520, 1.3560},
		},
		"EURCHF": {
			DCAFractions: [2]float64{0.008, 0.016},
			TPFractions:  [2]float64{0.012, 0.020},
			SLFraction:   0.018,
			Leverage:     15, // more conservative leverage for the weaker backtest
			Support:      []float64{0.9480, 0.9520},
			Resistance:   []float64{0.9620, 0.9660},
		},
		"EURAUD": {
			DCAFractions: [2]float64{0.004, 0.008},
			TPFractions:  [2]float64{0.020, 0.035},
			SLFraction:   0.010,
			Leverage:     20,
			Support:      []float64{1.6280, 1.6320},
			Resistance:   []float64{1.6450, 1.6480},
		},
	}
}

// fallbackParams is used for symbols without a tuned entry in the table.
func fallbackParams() domain.SymbolParams {
	return domain.SymbolParams{
		DCAFractions: [2]float64{0.005, 0.010},
		TPFractions:  [2]float64{0.015, 0.025},
		SLFraction:   0.012,
		Leverage:     20,
		Support:      []float64{1.0000, 1.0050},
		Resistance:   []float64{1.0100, 1.0150},
	}
}

// ParamsFor returns the trade parameters for a symbol, falling back to the
// generic set when the symbol has no tuned entry.
func (c *Config) ParamsFor(symbol string) domain.SymbolParams {
	if p, ok := c.SymbolParams[symbol]; ok {
		return p
	}
	return fallbackParams()
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	// Tracked symbols
	symbolsStr := getEnv("SYMBOLS", "EURUSD,USDCAD,EURCHF,EURAUD")
	for _, s := range strings.Split(symbolsStr, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			cfg.Symbols = append(cfg.Symbols, strings.ToUpper(s))
		}
	}
	if len(cfg.Symbols) == 0 {
		errs = append(errs, "SYMBOLS must name at least one symbol")
	}
	cfg.SymbolParams = defaultSymbolParams()

	// Risk Management
	cfg.InitialCapital, err = getEnvAsFloatRequired("INITIAL_CAPITAL", 1000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_CAPITAL: %v", err))
	} else if cfg.InitialCapital <= 0 {
		errs = append(errs, "INITIAL_CAPITAL must be positive")
	}

	cfg.MaxDrawdown, err = getEnvAsFloatRequired("MAX_DRAWDOWN", 0.50)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DRAWDOWN: %v", err))
	} else if cfg.MaxDrawdown < 0 || cfg.MaxDrawdown > 1.0 {
		errs = append(errs, "MAX_DRAWDOWN must be between 0.0 and 1.0")
	}

	// A zero limit pauses trading permanently; allowed but deliberately strict.
	cfg.ConsecutiveLossLimit, err = getEnvAsIntRequired("CONSECUTIVE_LOSS_LIMIT", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CONSECUTIVE_LOSS_LIMIT: %v", err))
	} else if cfg.ConsecutiveLossLimit < 0 {
		errs = append(errs, "CONSECUTIVE_LOSS_LIMIT cannot be negative")
	}

	// Monitor Timing
	cfg.ScanInterval = getEnvAsDuration("SCAN_INTERVAL", 2*time.Minute)
	if cfg.ScanInterval <= 0 {
		errs = append(errs, "SCAN_INTERVAL must be positive")
	}
	cfg.PollInterval = getEnvAsDuration("POLL_INTERVAL", 30*time.Second)
	if cfg.PollInterval <= 0 {
		errs = append(errs, "POLL_INTERVAL must be positive")
	}
	cfg.MaxPolls = getEnvAsInt("MAX_POLLS", 30)
	if cfg.MaxPolls <= 0 {
		errs = append(errs, "MAX_POLLS must be positive")
	}
	cfg.SignalCooldown = getEnvAsDuration("SIGNAL_COOLDOWN", 2*time.Hour)
	if cfg.SignalCooldown < 0 {
		errs = append(errs, "SIGNAL_COOLDOWN cannot be negative")
	}

	// Feed Parameters
	cfg.KlineInterval = getEnv("KLINE_INTERVAL", "5m")
	cfg.KlineLimit = getEnvAsInt("KLINE_LIMIT", 50)
	if cfg.KlineLimit < 20 {
		errs = append(errs, "KLINE_LIMIT must be at least 20 for indicator warm-up")
	}

	// Telegram (optional; notifications are disabled when unset)
	cfg.TelegramToken = getEnv("TELEGRAM_TOKEN", "")
	cfg.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")

	// HTTP
	cfg.HTTPPort = getEnvAsInt("HTTP_PORT", 10000)
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		errs = append(errs, "HTTP_PORT must be a valid port number")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
