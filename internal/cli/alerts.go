package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stock-tracker/internal/models"
	"stock-tracker/internal/store"
)

func newAlertsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List journaled alert events",
		Long: `List alert events recorded by 'run' when store.enabled and
store.journal_alerts are set. Newest first.`,
		Example: `  stocktracker alerts
  stocktracker alerts --symbol NVDA --since 72h
  stocktracker alerts --kind daily_report --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol, _ := cmd.Flags().GetString("symbol")
			kind, _ := cmd.Flags().GetString("kind")
			since, _ := cmd.Flags().GetDuration("since")
			limit, _ := cmd.Flags().GetInt("limit")

			st, err := app.OpenStore()
			if err != nil {
				output.Error("%v", err)
				return err
			}
			if st == nil {
				output.Warning("Alert journal is disabled. Set store.enabled and store.journal_alerts in config.toml")
				return nil
			}

			filter := store.AlertFilter{
				Symbol: models.NormalizeSymbol(symbol),
				Kind:   models.EventKind(kind),
				Limit:  limit,
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			records, err := st.GetAlerts(ctx, filter)
			if err != nil {
				output.Error("Failed to read journal: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Info("No alerts recorded")
				return nil
			}

			t := output.Table("Time", "Kind", "Symbol", "Direction", "Price", "Detail")
			for _, r := range records {
				t.Append([]string{
					FormatDateTime(r.CreatedAt.In(app.Location())),
					string(r.Kind),
					r.Symbol,
					r.Direction,
					r.Price,
					TruncateString(r.Detail, 40),
				})
			}
			t.Render()
			output.Dim("%d events, oldest %s ago", len(records), FormatDuration(time.Since(records[len(records)-1].CreatedAt)))
			return nil
		},
	}

	cmd.Flags().StringP("symbol", "s", "", "only this symbol")
	cmd.Flags().StringP("kind", "k", "", fmt.Sprintf("only this kind: %s, %s, %s",
		models.EventThresholdCrossed, models.EventMomentumMove, models.EventDailyReport))
	cmd.Flags().Duration("since", 0, "only events newer than this, e.g. 24h")
	cmd.Flags().IntP("limit", "n", 50, "maximum events to show")

	return cmd
}
