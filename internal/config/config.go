// Package config provides configuration management for the stock tracker.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	apperrors "stock-tracker/internal/errors"
	"stock-tracker/internal/logging"
	"stock-tracker/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Monitor       MonitorConfig      `mapstructure:"monitor"`
	Symbols       []SymbolEntry      `mapstructure:"symbols"`
	Chart         ChartConfig        `mapstructure:"chart"`
	Data          DataConfig         `mapstructure:"data"`
	Store         StoreConfig        `mapstructure:"store"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Bot           BotConfig          `mapstructure:"bot"`
	Logging       logging.LogConfig  `mapstructure:"logging"`
	Credentials   Credentials        `mapstructure:"-" json:"-"` // Loaded separately
}

// MonitorConfig holds the alert loop configuration.
type MonitorConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	DailyReportTime string        `mapstructure:"daily_report_time"` // HH:MM, local to Timezone
	Timezone        string        `mapstructure:"timezone"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	Concurrency     int           `mapstructure:"concurrency"`
	EventBuffer     int           `mapstructure:"event_buffer"`
}

// SymbolEntry is the on-disk form of a tracked symbol.
type SymbolEntry struct {
	Symbol     string  `mapstructure:"symbol"`
	Upper      float64 `mapstructure:"upper"`
	Lower      float64 `mapstructure:"lower"`
	PctTrigger float64 `mapstructure:"pct_trigger"`
}

// ChartConfig holds chart defaults.
type ChartConfig struct {
	Period    string `mapstructure:"period"`
	Interval  string `mapstructure:"interval"`
	MAWindows []int  `mapstructure:"ma_windows"`
}

// DataConfig selects the market data provider.
type DataConfig struct {
	Provider string `mapstructure:"provider"` // yahoo, kite, polygon
	Cache    bool   `mapstructure:"cache"`
	Exchange string `mapstructure:"exchange"` // kite only, e.g. NSE
}

// StoreConfig holds opt-in persistence settings.
type StoreConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	JournalAlerts bool   `mapstructure:"journal_alerts"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Level    string         `mapstructure:"level"`   // all, alerts_only, reports_only
	Console  bool           `mapstructure:"console"` // colored alert lines on stdout
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token" json:"-"`
	ChatID   string `mapstructure:"chat_id"`
}

// BotConfig holds the chat command poller settings.
type BotConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// Credentials holds provider API credentials.
type Credentials struct {
	Kite     KiteCredentials     `mapstructure:"kite"`
	Polygon  PolygonCredentials  `mapstructure:"polygon"`
	Telegram TelegramCredentials `mapstructure:"telegram"`
}

// KiteCredentials holds Zerodha Kite Connect credentials.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
}

// PolygonCredentials holds Polygon.io credentials.
type PolygonCredentials struct {
	APIKey string `mapstructure:"api_key"`
}

// TelegramCredentials holds the bot token when it is kept out of config.toml.
type TelegramCredentials struct {
	BotToken string `mapstructure:"bot_token"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stock-tracker"
	}
	return filepath.Join(home, ".config", "stock-tracker")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env files only fill variables that are not already set
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	_ = godotenv.Load()

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	if cfg.Notifications.Telegram.BotToken == "" {
		cfg.Notifications.Telegram.BotToken = cfg.Credentials.Telegram.BotToken
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("monitor.interval", "300s")
	v.SetDefault("monitor.daily_report_time", "17:00")
	v.SetDefault("monitor.timezone", "Local")
	v.SetDefault("monitor.call_timeout", "10s")
	v.SetDefault("monitor.concurrency", 1)
	v.SetDefault("monitor.event_buffer", 64)

	v.SetDefault("chart.period", "6mo")
	v.SetDefault("chart.interval", "1d")
	v.SetDefault("chart.ma_windows", []int{20, 50})

	v.SetDefault("data.provider", "yahoo")
	v.SetDefault("data.cache", false)
	v.SetDefault("data.exchange", "NSE")

	v.SetDefault("store.enabled", false)
	v.SetDefault("store.path", filepath.Join(DefaultConfigDir(), "tracker.db"))
	v.SetDefault("store.journal_alerts", false)

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.level", "all")
	v.SetDefault("notifications.console", false)

	v.SetDefault("bot.enabled", true)
	v.SetDefault("bot.poll_timeout", "30s")

	def := logging.DefaultLogConfig()
	v.SetDefault("logging.level", def.Level)
	v.SetDefault("logging.console", def.Console)
	v.SetDefault("logging.file", def.File)
	v.SetDefault("logging.file_path", def.FilePath)
	v.SetDefault("logging.max_size", def.MaxSize)
	v.SetDefault("logging.max_backups", def.MaxBackups)
	v.SetDefault("logging.max_age", def.MaxAge)
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, write the template and read it back
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Kite.AccessToken = v
	}
	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		cfg.Credentials.Polygon.APIKey = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.Data.Provider = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return apperrors.NewValidationError("monitor.interval", c.Monitor.Interval, "must be positive")
	}
	if c.Monitor.CallTimeout <= 0 {
		return apperrors.NewValidationError("monitor.call_timeout", c.Monitor.CallTimeout, "must be positive")
	}
	if _, _, err := c.Monitor.ReportClock(); err != nil {
		return err
	}
	if _, err := c.Monitor.Location(); err != nil {
		return apperrors.NewValidationError("monitor.timezone", c.Monitor.Timezone, err.Error())
	}

	switch c.Data.Provider {
	case "yahoo", "kite", "polygon":
	default:
		return apperrors.NewValidationError("data.provider", c.Data.Provider, "must be one of yahoo, kite, polygon")
	}

	switch c.Notifications.Level {
	case "", "all", "alerts_only", "reports_only":
	default:
		return apperrors.NewValidationError("notifications.level", c.Notifications.Level, "must be one of all, alerts_only, reports_only")
	}

	for _, w := range c.Chart.MAWindows {
		if w <= 0 {
			return apperrors.NewValidationError("chart.ma_windows", w, "windows must be positive")
		}
	}

	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		sym := models.NormalizeSymbol(s.Symbol)
		if sym == "" {
			return apperrors.NewValidationError("symbols.symbol", s.Symbol, "symbol is required")
		}
		if seen[sym] {
			return apperrors.NewValidationError("symbols.symbol", sym, "duplicate symbol")
		}
		seen[sym] = true
		if s.Lower >= s.Upper {
			return apperrors.NewValidationError("symbols.lower", s.Lower, fmt.Sprintf("must be below upper (%v) for %s", s.Upper, sym))
		}
		if s.PctTrigger <= 0 {
			return apperrors.NewValidationError("symbols.pct_trigger", s.PctTrigger, "must be positive for "+sym)
		}
	}

	return nil
}

// ReportClock parses DailyReportTime into hour and minute.
func (m MonitorConfig) ReportClock() (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(m.DailyReportTime))
	if err != nil {
		return 0, 0, apperrors.NewValidationError("monitor.daily_report_time", m.DailyReportTime, "expected HH:MM")
	}
	return t.Hour(), t.Minute(), nil
}

// Location resolves the configured timezone.
func (m MonitorConfig) Location() (*time.Location, error) {
	if m.Timezone == "" || m.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(m.Timezone)
}

// SymbolConfigs returns the tracked symbols in configuration order.
func (c *Config) SymbolConfigs() []models.SymbolConfig {
	out := make([]models.SymbolConfig, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		out = append(out, models.SymbolConfig{
			Symbol:     models.NormalizeSymbol(s.Symbol),
			Upper:      decimal.NewFromFloat(s.Upper),
			Lower:      decimal.NewFromFloat(s.Lower),
			PctTrigger: decimal.NewFromFloat(s.PctTrigger),
		})
	}
	return out
}

// SymbolNames returns the tracked symbol names in configuration order.
func (c *Config) SymbolNames() []string {
	out := make([]string, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		out = append(out, models.NormalizeSymbol(s.Symbol))
	}
	return out
}
