// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Steinwealth/UltimaBot/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "ultimabot", "logs", "ultimabot.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithTradeID adds a trade ID to the logger context.
func WithTradeID(logger zerolog.Logger, tradeID string) zerolog.Logger {
	return logger.With().Str("trade_id", tradeID).Logger()
}

// WithComponent adds a component name to the logger context.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// LogTradeOpened logs a trade entry.
func LogTradeOpened(logger zerolog.Logger, t *models.Trade) {
	logger.Info().
		Str("event", string(models.EventTradeOpened)).
		Str("trade_id", t.TradeID).
		Str("symbol", t.Symbol).
		Str("broker", t.BrokerID).
		Str("side", string(t.Side)).
		Float64("entry_price", t.EntryPrice).
		Float64("size", t.Size).
		Float64("tp", t.TakeProfit).
		Float64("sl", t.StopLoss).
		Float64("confidence", t.InitialConfidence).
		Str("mode", t.Mode).
		Msg("Trade opened")
}

// LogTradeClosed logs a trade exit.
func LogTradeClosed(logger zerolog.Logger, r models.CloseRecord) {
	logger.Info().
		Str("event", string(models.EventTradeClosed)).
		Str("trade_id", r.TradeID).
		Str("symbol", r.Symbol).
		Str("reason", string(r.Reason)).
		Float64("exit_price", r.ExitPrice).
		Float64("gain_pct", r.GainPct).
		Float64("gain_usd", r.GainUSD).
		Msg("Trade closed")
}

// LogOutcome logs an execution outcome for a candidate symbol.
func LogOutcome(logger zerolog.Logger, symbol, outcome string, confidence float64) {
	logger.Debug().
		Str("event", "execution").
		Str("symbol", symbol).
		Str("outcome", outcome).
		Float64("confidence", confidence).
		Msg("Execution outcome")
}

// LogAPICall logs a broker API call.
func LogAPICall(logger zerolog.Logger, broker, method string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("broker", broker).
		Str("method", method).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("API call failed")
	} else {
		event.Msg("API call completed")
	}
}
