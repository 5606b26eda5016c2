package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
//
// Значение неизменяемое: строится один раз при старте из переменных
// окружения и передаётся в компоненты при конструировании. Никакого
// глобального мутабельного состояния.
type Config struct {
	Telegram Telegram
	Bybit    Bybit
	Risk     RiskConfig
	Trading  Trading
	Notify   Notify
	Database Database
	Server   ServerConfig
	Logging  Logging
}

// Telegram - настройки транспорта сообщений
type Telegram struct {
	BotToken        string
	SourceChannelID int64 // канал с алертами
	TargetChannelID int64 // канал для ретрансляции
}

// Bybit - настройки биржи
type Bybit struct {
	APIKey    string
	SecretKey string
	Testnet   bool

	// EncryptionKey - если задан (32 байта), APIKey/SecretKey в окружении
	// хранятся зашифрованными AES-256-GCM (base64) и расшифровываются
	// при старте
	EncryptionKey string
}

// RiskConfig - параметры риск-менеджмента
type RiskConfig struct {
	RiskPercent float64 // доля баланса на сделку, в процентах
	MaxLeverage int
}

// Trading - параметры исполнения и мониторинга
type Trading struct {
	OrderTimeout    time.Duration // таймаут одной операции с биржей
	MonitorInterval time.Duration // период сверки позиций с биржей
	RecoveryTimeout time.Duration // таймаут стартовой сверки
	SymbolMapFile   string        // путь к JSON с маппингом символов
	LedgerDir       string        // каталог CSV журнала сделок
}

// Notify - какие события ретранслировать в целевой канал
type Notify struct {
	EntryNotifications   bool
	ProfitNotifications  bool
	FailureNotifications bool
}

// Database - опциональный журнал сделок в Postgres
type Database struct {
	DSN string // пусто = журнал в БД выключен
}

// ServerConfig - настройки сервисного HTTP эндпоинта (health/metrics)
type ServerConfig struct {
	Host         string
	Port         int
	PasswordHash string // bcrypt-хеш пароля для /positions, пусто = без авторизации
}

// Logging - настройки логирования
type Logging struct {
	Level  string
	Format string // json, console
	File   string // пусто = только stdout
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Telegram: Telegram{
			BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
			SourceChannelID: getEnvAsInt64("SOURCE_CHANNEL_ID", 0),
			TargetChannelID: getEnvAsInt64("TARGET_CHANNEL_ID", 0),
		},
		Bybit: Bybit{
			APIKey:        getEnv("BYBIT_API_KEY", ""),
			SecretKey:     getEnv("BYBIT_API_SECRET_KEY", ""),
			Testnet:       getEnvAsBool("BYBIT_TESTNET", false),
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
		Risk: RiskConfig{
			RiskPercent: getEnvAsFloat("DEFAULT_RISK_PERCENT", 2.0),
			MaxLeverage: getEnvAsInt("MAX_LEVERAGE", 20),
		},
		Trading: Trading{
			OrderTimeout:    getEnvAsDuration("ORDER_TIMEOUT", 10*time.Second),
			MonitorInterval: getEnvAsDuration("POSITION_MONITOR_INTERVAL", 30*time.Second),
			RecoveryTimeout: getEnvAsDuration("RECOVERY_TIMEOUT", 30*time.Second),
			SymbolMapFile:   getEnv("SYMBOL_MAP_FILE", "symbol_mappings.json"),
			LedgerDir:       getEnv("TRADE_LEDGER_DIR", "logs/trades"),
		},
		Notify: Notify{
			EntryNotifications:   getEnvAsBool("ENABLE_ENTRY_NOTIFICATIONS", true),
			ProfitNotifications:  getEnvAsBool("ENABLE_PROFIT_NOTIFICATIONS", true),
			FailureNotifications: getEnvAsBool("ENABLE_FAILURE_NOTIFICATIONS", true),
		},
		Database: Database{
			DSN: getEnv("DB_DSN", ""),
		},
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			PasswordHash: getEnv("STATUS_PASSWORD_HASH", ""),
		},
		Logging: Logging{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", "logs/signaltrader.log"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate проверяет обязательные параметры и числовые диапазоны
func (c *Config) validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.Telegram.SourceChannelID == 0 {
		return fmt.Errorf("SOURCE_CHANNEL_ID is required")
	}
	if c.Telegram.TargetChannelID == 0 {
		return fmt.Errorf("TARGET_CHANNEL_ID is required")
	}

	if c.Bybit.APIKey == "" {
		return fmt.Errorf("BYBIT_API_KEY is required")
	}
	if c.Bybit.SecretKey == "" {
		return fmt.Errorf("BYBIT_API_SECRET_KEY is required")
	}
	if c.Bybit.EncryptionKey != "" && len(c.Bybit.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256, got %d", len(c.Bybit.EncryptionKey))
	}

	if c.Risk.RiskPercent <= 0 || c.Risk.RiskPercent > 10 {
		return fmt.Errorf("DEFAULT_RISK_PERCENT must be in (0, 10], got %v", c.Risk.RiskPercent)
	}
	if c.Risk.MaxLeverage < 1 || c.Risk.MaxLeverage > 125 {
		return fmt.Errorf("MAX_LEVERAGE must be between 1 and 125, got %d", c.Risk.MaxLeverage)
	}

	if c.Trading.OrderTimeout <= 0 {
		return fmt.Errorf("ORDER_TIMEOUT must be positive, got %v", c.Trading.OrderTimeout)
	}
	if c.Trading.MonitorInterval <= 0 {
		return fmt.Errorf("POSITION_MONITOR_INTERVAL must be positive, got %v", c.Trading.MonitorInterval)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
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
