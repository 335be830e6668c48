// Package bot answers chat commands (/report, /chart, /help) over the
// Telegram long-poll API.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stock-tracker/internal/chart"
	apperrors "stock-tracker/internal/errors"
	"stock-tracker/internal/logging"
	"stock-tracker/internal/models"
	"stock-tracker/internal/notify"
	"stock-tracker/pkg/utils"
)

const (
	ChartUsage = "Usage: /chart SYMBOL [period] [interval]\nExample: /chart NVDA\nPeriods: 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, ytd\nIntervals: 1d, 1wk, 1mo"
	HelpText   = "📈 *Stock Tracker*\n\n" +
		"/report - price changes for every tracked symbol\n" +
		"/chart SYMBOL [period] [interval] - price chart with moving averages\n" +
		"/help - this message"
)

// API is the subset of the Bot API the poller uses.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]notify.Update, error)
	SendMessage(ctx context.Context, chatID, text string, markdown bool) error
	SendPhoto(ctx context.Context, chatID, filename string, png []byte, caption string) error
}

// ReportSource builds the on-demand report.
type ReportSource interface {
	BuildFullReport(ctx context.Context, symbols []string) models.Report
}

// ChartSource renders on-demand charts.
type ChartSource interface {
	Chart(ctx context.Context, symbol string, opts chart.Options) (*chart.Chart, error)
}

// Config holds poller settings.
type Config struct {
	// AllowedChatID restricts replies to one chat when set.
	AllowedChatID string
	PollTimeout   time.Duration
	Symbols       []string
}

// Bot polls for commands and replies in the originating chat.
type Bot struct {
	api     API
	reports ReportSource
	charts  ChartSource
	cfg     Config
	logger  zerolog.Logger
	offset  int64
}

// New creates a Bot.
func New(api API, reports ReportSource, charts ChartSource, cfg Config, logger zerolog.Logger) *Bot {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	return &Bot{
		api:     api,
		reports: reports,
		charts:  charts,
		cfg:     cfg,
		logger:  logging.WithComponent(logger, "bot"),
	}
}

// Run polls until ctx is cancelled. Poll failures back off and retry.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info().Dur("poll_timeout", b.cfg.PollTimeout).Msg("Command bot started")

	failures := 0
	for {
		if ctx.Err() != nil {
			b.logger.Info().Msg("Command bot stopped")
			return nil
		}

		updates, err := b.api.GetUpdates(ctx, b.offset, b.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			delay := utils.CalculateBackoff(failures, time.Second, time.Minute, 2)
			failures++
			b.logger.Warn().Err(err).Dur("retry_in", delay).Msg("Polling updates failed")
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
			continue
		}
		failures = 0

		for _, u := range updates {
			b.HandleUpdate(ctx, u)
		}
	}
}

// HandleUpdate dispatches one update and advances the poll offset past it.
func (b *Bot) HandleUpdate(ctx context.Context, u notify.Update) {
	if u.UpdateID >= b.offset {
		b.offset = u.UpdateID + 1
	}
	if u.Message == nil || u.Message.Text == "" {
		return
	}

	chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
	if b.cfg.AllowedChatID != "" && chatID != b.cfg.AllowedChatID {
		b.logger.Warn().Str("chat_id", chatID).Msg("Ignoring command from unauthorized chat")
		return
	}

	cmd, args, ok := parseCommand(u.Message.Text)
	if !ok {
		return
	}

	logger := logging.WithOperation(b.logger, cmd).With().Str("chat_id", chatID).Logger()
	logger.Info().Strs("args", args).Msg("Command received")

	var err error
	switch cmd {
	case "start", "help":
		err = b.api.SendMessage(ctx, chatID, HelpText, true)
	case "report":
		err = b.handleReport(ctx, chatID)
	case "chart":
		err = b.handleChart(ctx, logger, chatID, args)
	default:
		err = b.api.SendMessage(ctx, chatID, "Unknown command. Send /help for the list.", false)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Reply failed")
	}
}

// Offset returns the next update id to request.
func (b *Bot) Offset() int64 {
	return b.offset
}

func (b *Bot) handleReport(ctx context.Context, chatID string) error {
	if len(b.cfg.Symbols) == 0 {
		return b.api.SendMessage(ctx, chatID, "No symbols are configured.", false)
	}
	report := b.reports.BuildFullReport(ctx, b.cfg.Symbols)
	return b.api.SendMessage(ctx, chatID, notify.FormatReport(report), true)
}

func (b *Bot) handleChart(ctx context.Context, logger zerolog.Logger, chatID string, args []string) error {
	if len(args) == 0 || len(args) > 3 {
		return b.api.SendMessage(ctx, chatID, ChartUsage, false)
	}

	symbol := models.NormalizeSymbol(args[0])
	var opts chart.Options
	if len(args) > 1 {
		opts.Period = strings.ToLower(args[1])
	}
	if len(args) > 2 {
		opts.Interval = strings.ToLower(args[2])
	}

	c, err := b.charts.Chart(ctx, symbol, opts)
	switch {
	case err == nil:
		return b.api.SendPhoto(ctx, chatID, c.Filename(), c.PNG, "")
	case errors.Is(err, apperrors.ErrInvalidSymbol), errors.Is(err, apperrors.ErrConfigInvalid):
		return b.api.SendMessage(ctx, chatID, fmt.Sprintf("⚠️ %v\n\n%s", err, ChartUsage), false)
	case errors.Is(err, apperrors.ErrNoData):
		return b.api.SendMessage(ctx, chatID, fmt.Sprintf("⚠️ No data found for %s", symbol), false)
	default:
		logger.Warn().Err(err).Str("symbol", symbol).Msg("Chart unavailable")
		return b.api.SendMessage(ctx, chatID, fmt.Sprintf("⚠️ No data available for %s right now", symbol), false)
	}
}

// parseCommand splits "/chart@SomeBot nvda 1y" into ("chart", ["nvda", "1y"]).
func parseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:], cmd != ""
}
