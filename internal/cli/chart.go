package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stock-tracker/internal/chart"
	"stock-tracker/internal/notify"
)

func newChartCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart <symbol>",
		Short: "Render a price chart with moving averages",
		Long: `Render a close-price chart as PNG. Moving-average overlays are drawn when
the window has enough data. Without --output the file is written as
SYMBOL.png in the current directory.`,
		Example: `  stocktracker chart NVDA
  stocktracker chart AAPL --period 1y --interval 1wk --ma 10,30
  stocktracker chart TSLA --send`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			period, _ := cmd.Flags().GetString("period")
			interval, _ := cmd.Flags().GetString("interval")
			ma, _ := cmd.Flags().GetString("ma")
			path, _ := cmd.Flags().GetString("output")
			send, _ := cmd.Flags().GetBool("send")

			opts := chart.Options{Period: period, Interval: interval}
			if ma != "" {
				windows, err := parseWindows(ma)
				if err != nil {
					output.Error("%v", err)
					return err
				}
				opts.MAWindows = windows
			}

			charts, err := app.Charts()
			if err != nil {
				output.Error("%v", err)
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			c, err := charts.Chart(ctx, args[0], opts)
			if err != nil {
				output.Error("⚠️ %v", err)
				return err
			}

			if path == "" {
				path = c.Filename()
			}
			if err := os.WriteFile(path, c.PNG, 0644); err != nil {
				return fmt.Errorf("writing chart: %w", err)
			}

			if send {
				tg := notify.NewTelegramNotifier(app.Config.Notifications.Telegram)
				if !tg.IsEnabled() {
					output.Warning("Telegram is not configured; chart not sent")
				} else if err := tg.SendPhoto(ctx, c.Filename(), c.PNG, ""); err != nil {
					output.Error("Failed to send chart: %v", err)
					return err
				}
			}

			if output.IsJSON() {
				labels := make([]string, len(c.Overlays))
				for i, o := range c.Overlays {
					labels[i] = o.Label
				}
				return output.JSON(map[string]any{
					"symbol":   c.Symbol,
					"file":     path,
					"points":   c.Points,
					"overlays": labels,
					"sent":     send,
				})
			}

			output.Success("✓ %s chart written to %s", c.Symbol, path)
			output.Dim("  %d points, %d overlays", c.Points, len(c.Overlays))
			return nil
		},
	}

	cmd.Flags().StringP("period", "p", "", "lookback period: 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, ytd (default from config)")
	cmd.Flags().StringP("interval", "i", "", "bar interval: 1d, 1wk, 1mo (default from config)")
	cmd.Flags().String("ma", "", "comma separated moving-average windows, e.g. 20,50")
	cmd.Flags().StringP("output", "o", "", "output file (default SYMBOL.png)")
	cmd.Flags().Bool("send", false, "also send the chart to the Telegram chat")

	return cmd
}

func parseWindows(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	windows := make([]int, 0, len(parts))
	for _, p := range parts {
		w, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || w <= 0 {
			return nil, fmt.Errorf("invalid moving-average window %q", p)
		}
		windows = append(windows, w)
	}
	return windows, nil
}
