package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"stock-tracker/internal/models"
	"stock-tracker/pkg/utils"
)

// ConsoleNotifier prints one colored line per event.
type ConsoleNotifier struct {
	out         io.Writer
	mu          sync.Mutex
	bellEnabled bool
	now         func() time.Time
}

// NewConsoleNotifier writes to out, or stdout when out is nil.
func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleNotifier{out: out, now: time.Now}
}

// SetBellEnabled rings the terminal bell on threshold crossings.
func (c *ConsoleNotifier) SetBellEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bellEnabled = enabled
}

// Name returns the name of the notifier.
func (c *ConsoleNotifier) Name() string {
	return "console"
}

// IsEnabled returns whether the notifier is enabled.
func (c *ConsoleNotifier) IsEnabled() bool {
	return true
}

// SendEvent prints ev.
func (c *ConsoleNotifier) SendEvent(ctx context.Context, ev models.AlertEvent) error {
	_, isThreshold := ev.(models.ThresholdCrossed)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bellEnabled && isThreshold {
		fmt.Fprint(c.out, "\a")
	}
	_, err := fmt.Fprintln(c.out, FormatConsoleLine(ev, ev.Meta().At))
	return err
}

// SendText prints text without Markdown markers.
func (c *ConsoleNotifier) SendText(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, stripMarkdown(text))
	return err
}

// SendPhoto prints a placeholder line; images are not rendered.
func (c *ConsoleNotifier) SendPhoto(ctx context.Context, filename string, png []byte, caption string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] chart %s (%d bytes) %s\n", c.now().Format("15:04:05"), filename, len(png), caption)
	return err
}

// FormatConsoleLine formats ev for terminal display.
func FormatConsoleLine(ev models.AlertEvent, at time.Time) string {
	timestamp := at.Format("15:04:05")

	switch e := ev.(type) {
	case models.ThresholdCrossed:
		paint, indicator := color.New(color.FgGreen, color.Bold), "▲ UPPER"
		if e.Direction == models.ThresholdLower {
			paint, indicator = color.New(color.FgRed, color.Bold), "▼ LOWER"
		}
		return fmt.Sprintf("%s | %s | price %s | threshold %s",
			paint.Sprintf("[%s] %s", timestamp, indicator), e.Symbol,
			utils.FormatPrice(e.Price), utils.FormatPrice(e.Threshold))
	case models.MomentumMove:
		paint := color.New(color.FgCyan)
		if e.Direction == models.MoveDown {
			paint = color.New(color.FgYellow)
		}
		return fmt.Sprintf("%s | %s | %s since previous close | price %s",
			paint.Sprintf("[%s] MOVE %s", timestamp, strings.ToUpper(string(e.Direction))), e.Symbol,
			utils.FormatPercent(e.PctChange), utils.FormatPrice(e.Price))
	case models.DailyReport:
		return color.New(color.FgMagenta).Sprintf("[%s] REPORT", timestamp) + "\n" + stripMarkdown(FormatReport(e.Report))
	default:
		return fmt.Sprintf("[%s] %s", timestamp, ev.Kind())
	}
}

func stripMarkdown(s string) string {
	return strings.ReplaceAll(s, "*", "")
}
