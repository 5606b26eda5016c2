package utils

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logger.go - настройка структурированного логирования
//
// Функции:
// - InitLogger: создать и настроить zap logger
//   * Выбор формата (json, console)
//   * Уровни: debug, info, warn, error
//   * Ротация лог-файла через lumberjack (10 MB, 5 бэкапов)

// LoggerOptions - параметры инициализации логгера
type LoggerOptions struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	File   string // путь к лог-файлу, пусто = только stdout
}

// InitLogger создаёт сконфигурированный zap logger
//
// Логи всегда идут в stdout; при заданном File дополнительно пишутся
// в файл с ротацией. Вызывающий отвечает за logger.Sync() при завершении.
func InitLogger(opts LoggerOptions) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch opts.Format {
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	case "json", "":
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q (expected json or console)", opts.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}

	if opts.File != "" {
		fileSink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // MB
			MaxBackups: 5,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(encoder, fileSink, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}
