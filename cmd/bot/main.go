package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"signaltrader/internal/api"
	"signaltrader/internal/bot"
	"signaltrader/internal/config"
	"signaltrader/internal/exchange"
	"signaltrader/internal/models"
	"signaltrader/internal/repository"
	sigparse "signaltrader/internal/signal"
	"signaltrader/internal/symbols"
	"signaltrader/internal/telegram"
	"signaltrader/pkg/crypto"
	"signaltrader/pkg/utils"
)

func main() {
	// .env необязателен: в контейнере всё приходит из окружения
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(utils.LoggerOptions{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	apiKey, secretKey, err := resolveCredentials(cfg)
	if err != nil {
		logger.Fatal("Failed to resolve API credentials", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ============ БИРЖА ============

	bybit := exchange.NewBybit(cfg.Bybit.Testnet, logger)
	if err := bybit.Connect(ctx, apiKey, secretKey); err != nil {
		logger.Fatal("Failed to connect to exchange", zap.Error(err))
	}
	defer bybit.Close()
	defer exchange.CloseGlobalClient()

	// ============ КОМПОНЕНТЫ ============

	mapper, err := symbols.NewMapper(cfg.Trading.SymbolMapFile, logger)
	if err != nil {
		logger.Fatal("Failed to load symbol mappings", zap.Error(err))
	}

	risk := bot.NewRiskManager(cfg.Risk.RiskPercent, cfg.Risk.MaxLeverage, logger)
	engine := bot.NewPositionEngine(bybit, risk, logger)

	ledger := bot.NewTradeLedger(cfg.Trading.LedgerDir, logger)
	tradeRepo, dbClose := initDatabase(cfg, logger)
	if dbClose != nil {
		defer dbClose()
	}
	engine.SetTradeRecorder(func(rec *models.TradeRecord) {
		if err := ledger.Record(rec); err != nil {
			logger.Error("Failed to write trade ledger", zap.Error(err))
		}
		if tradeRepo != nil {
			if err := tradeRepo.Create(rec); err != nil {
				logger.Error("Failed to persist trade", zap.Error(err))
			}
		}
	})

	transport, err := telegram.NewTransport(
		cfg.Telegram.BotToken,
		cfg.Telegram.SourceChannelID,
		cfg.Telegram.TargetChannelID,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to create telegram transport", zap.Error(err))
	}

	parser := sigparse.NewParser(logger)
	formatter := sigparse.NewFormatter(cfg.Notify.EntryNotifications)
	tradingBot := bot.NewBot(parser, formatter, mapper, engine, transport, cfg, logger)
	transport.SetHandler(tradingBot.HandleMessage)

	// ============ ВОССТАНОВЛЕНИЕ ============

	recovery := bot.NewRecoveryManager(engine, bybit,
		cfg.Trading.MonitorInterval, cfg.Trading.RecoveryTimeout, logger)
	recovery.SetNotificationChannel(tradingBot.NotificationChannel())

	// Сверка с биржей до приёма сигналов: позиции, открытые до
	// перезапуска, должны быть под наблюдением
	reconcileCtx, reconcileCancel := context.WithTimeout(ctx, cfg.Trading.RecoveryTimeout)
	result, err := recovery.Reconcile(reconcileCtx)
	reconcileCancel()
	if err != nil {
		logger.Fatal("Startup reconciliation failed", zap.Error(err))
	}
	logger.Info("Startup reconciliation complete",
		zap.Int("live", result.Live),
		zap.Int("adopted", result.Adopted),
		zap.Int("dropped", result.Dropped))
	go recovery.Start(ctx)

	// ============ HTTP СЕРВЕР ============

	httpServer := api.NewServer(cfg.Server, engine, logger)
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// ============ ЗАПУСК ============

	go tradingBot.Run(ctx)
	go func() {
		if err := transport.Run(ctx); err != nil {
			logger.Error("Telegram transport stopped", zap.Error(err))
			cancel()
		}
	}()

	logger.Info("Signal trader started",
		zap.Bool("testnet", cfg.Bybit.Testnet),
		zap.Int64("source_channel", cfg.Telegram.SourceChannelID))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	// ============ ОСТАНОВКА ============

	cancel()
	recovery.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("Signal trader stopped")
}

// resolveCredentials возвращает ключи API, расшифровывая их при
// заданном ENCRYPTION_KEY
func resolveCredentials(cfg *config.Config) (string, string, error) {
	if cfg.Bybit.EncryptionKey == "" {
		return cfg.Bybit.APIKey, cfg.Bybit.SecretKey, nil
	}

	key := []byte(cfg.Bybit.EncryptionKey)
	apiKey, err := crypto.Decrypt(cfg.Bybit.APIKey, key)
	if err != nil {
		return "", "", err
	}
	secretKey, err := crypto.Decrypt(cfg.Bybit.SecretKey, key)
	if err != nil {
		return "", "", err
	}
	return apiKey, secretKey, nil
}

// initDatabase подключает опциональный PostgreSQL журнал сделок.
// Пустой DSN отключает БД, остаётся только CSV журнал.
func initDatabase(cfg *config.Config, logger *zap.Logger) (*repository.TradeRepository, func()) {
	if cfg.Database.DSN == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}

	logger.Info("Database connected")
	return repository.NewTradeRepository(db), func() { db.Close() }
}
