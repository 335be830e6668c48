package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"stock-tracker/internal/bot"
	"stock-tracker/internal/marketdata"
	"stock-tracker/internal/monitor"
	"stock-tracker/internal/notify"
	"stock-tracker/internal/stream"
)

func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Monitor prices and answer chat commands",
		Long: `Start the alert engine. Every interval each configured symbol is sampled,
threshold and momentum alerts are sent when a condition starts, and the daily
report is sent once after the configured time. When Telegram is configured the
command bot answers /report and /chart in the same chat.

Stop with Ctrl+C; queued notifications are delivered before exit.`,
		Example: `  stocktracker run
  stocktracker run --once --console
  stocktracker run --no-bot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			once, _ := cmd.Flags().GetBool("once")
			noBot, _ := cmd.Flags().GetBool("no-bot")
			console, _ := cmd.Flags().GetBool("console")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runMonitor(ctx, app, runOptions{
				once:    once,
				noBot:   noBot,
				console: console,
				out:     cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().Bool("once", false, "run a single tick and exit")
	cmd.Flags().Bool("no-bot", false, "do not start the Telegram command bot")
	cmd.Flags().Bool("console", false, "also print alerts to the terminal")

	return cmd
}

type runOptions struct {
	once    bool
	noBot   bool
	console bool
	out     io.Writer
}

func runMonitor(ctx context.Context, app *App, opts runOptions) error {
	cfg := app.Config
	logger := app.Logger

	if len(cfg.Symbols) == 0 {
		return fmt.Errorf("no symbols configured in %s/config.toml", app.ConfigDir())
	}

	gw, err := app.MarketData()
	if err != nil {
		return err
	}
	st, err := app.OpenStore()
	if err != nil {
		return err
	}
	reports, err := app.Reports()
	if err != nil {
		return err
	}

	notifCfg := cfg.Notifications
	if opts.console {
		notifCfg.Enabled, notifCfg.Console = true, true
	}
	notifier := notify.NewFromConfig(notifCfg, opts.out)
	if len(notifier.Channels()) == 0 {
		logger.Warn().Msg("No notification channels enabled; alerts are only logged")
	}

	hub := stream.NewHubWithConfig(stream.HubConfig{BufferSize: cfg.Monitor.EventBuffer}, logger)
	hub.RegisterConsumer(notify.NewDispatcher(notifier, logger))

	var engineOpts []monitor.Option
	if st != nil {
		engineOpts = append(engineOpts, monitor.WithMarkerStore(st))
		if cfg.Store.JournalAlerts {
			hub.RegisterConsumer(stream.NewJournalConsumer(st))
		}
	}

	hour, minute, err := cfg.Monitor.ReportClock()
	if err != nil {
		return err
	}
	settings := monitor.Settings{
		Symbols:      cfg.SymbolConfigs(),
		Interval:     cfg.Monitor.Interval,
		ReportHour:   hour,
		ReportMinute: minute,
		Location:     app.Location(),
		Concurrency:  cfg.Monitor.Concurrency,
	}
	engine, err := monitor.New(settings, gw, reports, hub, logger, engineOpts...)
	if err != nil {
		return err
	}

	hub.Start(ctx)
	defer func() {
		hub.Stop()
		m := hub.GetMetrics()
		logger.Info().
			Uint64("published", m.Published).
			Uint64("rejected", m.Rejected).
			Uint64("failures", m.Failures).
			Msg("Event hub stopped")
		logTrippedBreakers(logger, gw)
	}()

	if opts.once {
		engine.Tick(ctx)
		return nil
	}

	var wg conc.WaitGroup

	if cfg.Bot.Enabled && !opts.noBot {
		if tg, ok := notifier.Telegram(); ok {
			charts, err := app.Charts()
			if err != nil {
				return err
			}
			b := bot.New(tg.Client(), reports, charts, bot.Config{
				AllowedChatID: tg.ChatID(),
				PollTimeout:   cfg.Bot.PollTimeout,
				Symbols:       engine.Symbols(),
			}, logger)
			wg.Go(func() { b.Run(ctx) })
		} else {
			logger.Info().Msg("Command bot disabled: Telegram is not configured")
		}
	}

	wg.Go(func() { engine.Run(ctx) })

	if r := wg.WaitAndRecover(); r != nil {
		return r.AsError()
	}
	return nil
}

func logTrippedBreakers(logger zerolog.Logger, gw marketdata.Gateway) {
	guarded, ok := gw.(*marketdata.GuardedGateway)
	if !ok {
		return
	}
	for _, st := range guarded.Breakers().Tripped() {
		logger.Warn().
			Str("breaker", st.Key).
			Stringer("state", st.State).
			Int64("failures", st.Failures).
			Int64("rejected", st.Rejected).
			Time("opened_at", st.OpenedAt).
			Msg("Provider circuit still tripped")
	}
}
