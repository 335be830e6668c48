// Package notify delivers alert events, report text and chart images to the
// configured channels.
package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"stock-tracker/internal/config"
	"stock-tracker/internal/models"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	SendEvent(ctx context.Context, ev models.AlertEvent) error
	SendText(ctx context.Context, text string) error
	SendPhoto(ctx context.Context, filename string, png []byte, caption string) error
}

// Channel is a Notifier that can be switched off.
type Channel interface {
	Notifier
	Name() string
	IsEnabled() bool
}

// Level filters which events reach the channels.
type Level string

const (
	LevelAll         Level = "all"
	LevelAlertsOnly  Level = "alerts_only"
	LevelReportsOnly Level = "reports_only"
)

// MultiNotifier sends notifications to multiple channels.
type MultiNotifier struct {
	channels []Channel
	level    Level
	mu       sync.RWMutex
}

// NewMultiNotifier creates a MultiNotifier with no channels.
func NewMultiNotifier(level Level) *MultiNotifier {
	if level == "" {
		level = LevelAll
	}
	return &MultiNotifier{level: level}
}

// NewFromConfig builds the channels enabled in cfg. Console output goes to
// out. Disabled notifications yield a notifier with no channels.
func NewFromConfig(cfg config.NotificationConfig, out io.Writer) *MultiNotifier {
	mn := NewMultiNotifier(Level(cfg.Level))
	if !cfg.Enabled {
		return mn
	}

	if cfg.Console {
		mn.AddChannel(NewConsoleNotifier(out))
	}
	if cfg.Webhook.Enabled {
		mn.AddChannel(NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Telegram.Enabled {
		mn.AddChannel(NewTelegramNotifier(cfg.Telegram))
	}

	return mn
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch Channel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Channels returns the registered channels.
func (mn *MultiNotifier) Channels() []Channel {
	mn.mu.RLock()
	defer mn.mu.RUnlock()
	return append([]Channel(nil), mn.channels...)
}

// Telegram returns the first Telegram channel, if any.
func (mn *MultiNotifier) Telegram() (*TelegramNotifier, bool) {
	for _, ch := range mn.Channels() {
		if t, ok := ch.(*TelegramNotifier); ok && t.IsEnabled() {
			return t, true
		}
	}
	return nil, false
}

func (mn *MultiNotifier) shouldSend(kind models.EventKind) bool {
	switch mn.level {
	case LevelAlertsOnly:
		return kind != models.EventDailyReport
	case LevelReportsOnly:
		return kind == models.EventDailyReport
	default:
		return true
	}
}

// each calls fn on every enabled channel and joins the failures.
func (mn *MultiNotifier) each(fn func(ch Channel) error) error {
	var errs []string
	for _, ch := range mn.Channels() {
		if !ch.IsEnabled() {
			continue
		}
		if err := fn(ch); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendEvent sends ev to all enabled channels.
func (mn *MultiNotifier) SendEvent(ctx context.Context, ev models.AlertEvent) error {
	if !mn.shouldSend(ev.Kind()) {
		return nil
	}
	return mn.each(func(ch Channel) error { return ch.SendEvent(ctx, ev) })
}

// SendText sends text to all enabled channels.
func (mn *MultiNotifier) SendText(ctx context.Context, text string) error {
	return mn.each(func(ch Channel) error { return ch.SendText(ctx, text) })
}

// SendPhoto sends an image to all enabled channels.
func (mn *MultiNotifier) SendPhoto(ctx context.Context, filename string, png []byte, caption string) error {
	return mn.each(func(ch Channel) error { return ch.SendPhoto(ctx, filename, png, caption) })
}

// NoOpNotifier is a notifier that does nothing (for testing or disabled notifications).
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// SendEvent does nothing.
func (n *NoOpNotifier) SendEvent(ctx context.Context, ev models.AlertEvent) error {
	return nil
}

// SendText does nothing.
func (n *NoOpNotifier) SendText(ctx context.Context, text string) error {
	return nil
}

// SendPhoto does nothing.
func (n *NoOpNotifier) SendPhoto(ctx context.Context, filename string, png []byte, caption string) error {
	return nil
}
