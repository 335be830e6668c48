// Package cli provides the command-line interface for the stock tracker.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stock-tracker/internal/analysis"
	"stock-tracker/internal/chart"
	"stock-tracker/internal/config"
	apperrors "stock-tracker/internal/errors"
	"stock-tracker/internal/logging"
	"stock-tracker/internal/marketdata"
	"stock-tracker/internal/store"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2024-06-17"
)

// App holds the application dependencies. Fields left nil are built from
// Config on first use.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Store   store.DataStore
	Gateway marketdata.Gateway

	configDir   string
	storeOpened bool
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stocktracker",
		Short: "Stock price monitor with threshold alerts and daily reports",
		Long: `Stock Tracker watches a configured list of symbols, sends alerts when
prices cross their thresholds or move sharply against the previous close,
and delivers a daily multi-horizon report.

Use 'stocktracker run' to start monitoring and the Telegram command bot.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.init(cmd); err != nil {
				return err
			}
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.configDir, "config", "", "config directory (default: ~/.config/stock-tracker)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newReportCmd(app))
	rootCmd.AddCommand(newChartCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newAlertsCmd(app))

	return rootCmd
}

func (app *App) init(cmd *cobra.Command) error {
	if app.Config != nil {
		return nil
	}
	cfg, err := config.Load(app.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	app.Config = cfg
	app.Logger = logging.NewLoggerWithConfig(cfg.Logging)
	return nil
}

// ConfigDir returns the directory configuration was loaded from.
func (app *App) ConfigDir() string {
	if app.configDir != "" {
		return app.configDir
	}
	return config.DefaultConfigDir()
}

// OpenStore returns the SQLite store, or nil when persistence is disabled.
func (app *App) OpenStore() (store.DataStore, error) {
	if app.Store != nil || app.storeOpened || !app.Config.Store.Enabled {
		return app.Store, nil
	}
	app.storeOpened = true
	st, err := store.NewSQLiteStore(app.Config.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", app.Config.Store.Path, err)
	}
	app.Store = st
	app.Logger.Debug().Str("path", app.Config.Store.Path).Msg("SQLite store initialized")
	return st, nil
}

// MarketData returns the guarded gateway for the configured provider.
func (app *App) MarketData() (marketdata.Gateway, error) {
	if app.Gateway != nil {
		return app.Gateway, nil
	}
	cfg := app.Config

	opts := marketdata.Options{
		Provider:        cfg.Data.Provider,
		KiteAPIKey:      cfg.Credentials.Kite.APIKey,
		KiteAccessToken: cfg.Credentials.Kite.AccessToken,
		KiteExchange:    cfg.Data.Exchange,
		PolygonAPIKey:   cfg.Credentials.Polygon.APIKey,
		CallTimeout:     cfg.Monitor.CallTimeout,
	}
	if cfg.Data.Cache {
		st, err := app.OpenStore()
		if err != nil {
			return nil, err
		}
		if st == nil {
			app.Logger.Warn().Msg("data.cache needs store.enabled; history caching is off")
		} else {
			opts.Cache = st
		}
	}

	gw, err := marketdata.New(opts, app.Logger)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotConfigured) {
			return nil, fmt.Errorf("%s credentials missing (see %s/credentials.toml): %w", cfg.Data.Provider, app.ConfigDir(), err)
		}
		return nil, err
	}
	app.Gateway = gw
	app.Logger.Debug().Str("provider", cfg.Data.Provider).Msg("Market data gateway initialized")
	return gw, nil
}

// Location returns the configured report timezone.
func (app *App) Location() *time.Location {
	loc, err := app.Config.Monitor.Location()
	if err != nil {
		return time.Local
	}
	return loc
}

// Reports returns a report builder over the gateway.
func (app *App) Reports() (*analysis.ReportBuilder, error) {
	gw, err := app.MarketData()
	if err != nil {
		return nil, err
	}
	return analysis.NewReportBuilder(gw, app.Logger, analysis.WithLocation(app.Location())), nil
}

// Charts returns a chart service over the gateway.
func (app *App) Charts() (*chart.Service, error) {
	gw, err := app.MarketData()
	if err != nil {
		return nil, err
	}
	return chart.NewService(gw, app.chartDefaults(), app.Location(), app.Logger), nil
}

func (app *App) chartDefaults() chart.Options {
	opts := chart.DefaultOptions()
	c := app.Config.Chart
	if c.Period != "" {
		opts.Period = c.Period
	}
	if c.Interval != "" {
		opts.Interval = c.Interval
	}
	if len(c.MAWindows) > 0 {
		opts.MAWindows = c.MAWindows
	}
	return opts
}

// Close releases the store.
func (app *App) Close() error {
	if app.Store == nil {
		return nil
	}
	err := app.Store.Close()
	app.Store = nil
	app.storeOpened = false
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Stock Tracker v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.ConfigDir()})
			} else {
				output.Println(app.ConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid (%d symbols)", len(app.Config.Symbols))
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Monitor")
	output.Printf("  Interval:        %s\n", cfg.Monitor.Interval)
	output.Printf("  Daily report:    %s (%s)\n", cfg.Monitor.DailyReportTime, cfg.Monitor.Timezone)
	output.Printf("  Call timeout:    %s\n", cfg.Monitor.CallTimeout)
	output.Printf("  Concurrency:     %d\n", cfg.Monitor.Concurrency)
	output.Println()

	output.Bold("Symbols")
	t := output.Table("Symbol", "Lower", "Upper", "Move %")
	for _, s := range cfg.Symbols {
		t.Append([]string{
			s.Symbol,
			fmt.Sprintf("%.2f", s.Lower),
			fmt.Sprintf("%.2f", s.Upper),
			fmt.Sprintf("%.2f", s.PctTrigger),
		})
	}
	t.Render()
	output.Println()

	output.Bold("Data")
	output.Printf("  Provider:        %s\n", cfg.Data.Provider)
	output.Printf("  Cache:           %v\n", cfg.Data.Cache)
	output.Printf("  Store:           %v (%s)\n", cfg.Store.Enabled, cfg.Store.Path)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:         %v\n", cfg.Notifications.Enabled)
	output.Printf("  Level:           %s\n", cfg.Notifications.Level)
	output.Printf("  Console:         %v\n", cfg.Notifications.Console)
	output.Printf("  Webhook:         %v\n", cfg.Notifications.Webhook.Enabled)
	output.Printf("  Telegram:        %v\n", cfg.Notifications.Telegram.Enabled)
	output.Printf("  Command bot:     %v\n", cfg.Bot.Enabled)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
