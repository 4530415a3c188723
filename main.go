package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"fxSignalBot/config"
	"fxSignalBot/internal/adapters/binancefeed"
	"fxSignalBot/internal/adapters/logger"
	"fxSignalBot/internal/adapters/telegram"
	"fxSignalBot/internal/api"
	"fxSignalBot/internal/app"
	"fxSignalBot/internal/domain"
	"fxSignalBot/internal/ledger"
	"fxSignalBot/internal/risk"
	sig "fxSignalBot/internal/signal"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Price Feed (Binance Adapter)
	feed, err := binancefeed.New(binancefeed.Config{
		APIKey:        cfg.APIKey,
		SecretKey:     cfg.SecretKey,
		UseTestnet:    cfg.IsTestnet,
		Logger:        appLogger,
		KlineInterval: cfg.KlineInterval,
		KlineLimit:    cfg.KlineLimit,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance feed")
		log.Fatalf("FATAL: Failed to initialize Binance feed: %v", err)
	}
	appLogger.Info(context.Background(), "Binance feed initialized")

	// 4. Initialize Signal Generator
	signals, err := sig.New(sig.DefaultConfig(), appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize signal generator")
		log.Fatalf("FATAL: Failed to initialize signal generator: %v", err)
	}
	appLogger.Info(context.Background(), "Signal generator initialized")

	// 5. Initialize Risk Governor and Position Ledger
	governor, err := risk.New(risk.Config{
		InitialCapital:       cfg.InitialCapital,
		MaxDrawdown:          cfg.MaxDrawdown,
		ConsecutiveLossLimit: cfg.ConsecutiveLossLimit,
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize risk governor")
		log.Fatalf("FATAL: Failed to initialize risk governor: %v", err)
	}
	ldg, err := ledger.New(appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize position ledger")
		log.Fatalf("FATAL: Failed to initialize position ledger: %v", err)
	}
	appLogger.Info(context.Background(), "Risk governor and ledger initialized")

	// 6. Initialize Telegram Notifier (no-op when credentials are absent)
	notifier, err := telegram.New(telegram.Config{
		Token:  cfg.TelegramToken,
		ChatID: cfg.TelegramChatID,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize telegram notifier")
		log.Fatalf("FATAL: Failed to initialize telegram notifier: %v", err)
	}

	// 7. Initialize Monitor
	monitor, err := app.NewMonitor(app.Config{
		Symbols:        cfg.Symbols,
		SymbolParams:   buildSymbolParams(cfg),
		ScanInterval:   cfg.ScanInterval,
		PollInterval:   cfg.PollInterval,
		SignalCooldown: cfg.SignalCooldown,
		MaxPolls:       cfg.MaxPolls,
	}, appLogger, feed, signals, governor, ldg, notifier)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize monitor")
		log.Fatalf("FATAL: Failed to initialize monitor: %v", err)
	}
	appLogger.Info(context.Background(), "Monitor initialized")

	// 8. Initialize HTTP Server
	server, err := api.NewServer(appLogger, monitor, ldg, governor)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize http server")
		log.Fatalf("FATAL: Failed to initialize http server: %v", err)
	}

	// 9. Start monitor and server
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := monitor.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to start monitor")
		log.Fatalf("FATAL: Failed to start monitor: %v", err)
	}

	go func() {
		if err := server.Start(cfg.HTTPPort); err != nil {
			appLogger.Error(ctx, err, "http server exited with error")
			cancel()
		}
	}()

	// 10. Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		appLogger.Info(ctx, "Shutdown signal received", map[string]interface{}{"signal": sig.String()})
	case <-ctx.Done():
	}

	monitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, err, "Error during http server shutdown")
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}

// buildSymbolParams resolves the trade parameters for every tracked symbol,
// applying the fallback set where no tuned entry exists.
func buildSymbolParams(cfg *config.Config) map[string]domain.SymbolParams {
	params := make(map[string]domain.SymbolParams, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		params[symbol] = cfg.ParamsFor(symbol)
	}
	return params
}
