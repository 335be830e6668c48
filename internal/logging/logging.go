// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/natefinch/lumberjack.v2"

	"stock-tracker/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "stock-tracker", "logs", "tracker.log"),
		MaxSize:    50,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a logger with the default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig builds a logger that writes to stderr, a rotating file,
// or both. Without any sink it falls back to stderr.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	if w := rotatingFile(cfg); w != nil {
		sinks = append(sinks, w)
	}

	var out io.Writer = os.Stderr
	if len(sinks) == 1 {
		out = sinks[0]
	} else if len(sinks) > 1 {
		out = zerolog.MultiLevelWriter(sinks...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	return zerolog.New(out).With().Timestamp().Logger()
}

// rotatingFile returns nil when file logging is off or the directory cannot
// be created.
func rotatingFile(cfg LogConfig) io.Writer {
	if !cfg.File || cfg.FilePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}
}

// parseLevel accepts zerolog level names and defaults to info.
func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// SetDebugLevel lowers the global level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// WithComponent adds a component name to the logger context.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// LogTick logs one evaluated sample at debug level.
func LogTick(logger zerolog.Logger, sample models.PriceSample, change decimal.NullDecimal) {
	event := logger.Debug().
		Str("event", "sample").
		Str("symbol", sample.Symbol).
		Str("price", sample.Price.StringFixed(2)).
		Time("as_of", sample.AsOf)
	if change.Valid {
		event = event.Str("change_pct", change.Decimal.StringFixed(2))
	}
	event.Msg("Price sampled")
}

// LogAlert logs an alert trigger.
func LogAlert(logger zerolog.Logger, eventID, symbol, condition string, price decimal.Decimal) {
	logger.Info().
		Str("event", "alert").
		Str("alert_id", eventID).
		Str("symbol", symbol).
		Str("condition", condition).
		Str("price", price.StringFixed(2)).
		Msg("Alert triggered")
}

// LogReport logs a generated report.
func LogReport(logger zerolog.Logger, eventID string, symbols int, date time.Time) {
	logger.Info().
		Str("event", "daily_report").
		Str("report_id", eventID).
		Int("symbols", symbols).
		Str("date", date.Format("2006-01-02")).
		Msg("Daily report generated")
}

// LogAPICall logs a provider call; failures at warn.
func LogAPICall(logger zerolog.Logger, provider, operation string, duration time.Duration, err error) {
	event := logger.Debug()
	if err != nil {
		event = logger.Warn().Err(err)
	}
	event.Str("event", "api_call").
		Str("provider", provider).
		Str("operation", operation).
		Dur("duration", duration).
		Msg("Provider call")
}
