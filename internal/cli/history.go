package cli

import (
	"context"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"stock-tracker/internal/analysis"
	"stock-tracker/internal/marketdata"
	"stock-tracker/internal/models"
	"stock-tracker/pkg/utils"
)

// historyRow is one exported bar.
type historyRow struct {
	Date      string `csv:"date" json:"date"`
	Symbol    string `csv:"symbol" json:"symbol"`
	Close     string `csv:"close" json:"close"`
	ChangePct string `csv:"change_pct" json:"change_pct"`
}

func historyRows(series models.PriceSeries) []historyRow {
	rows := make([]historyRow, len(series.Points))
	for i, p := range series.Points {
		change := ""
		if i > 0 {
			if c := analysis.PercentChangeOf(p.Close, series.Points[i-1].Close); c.Valid {
				change = c.Decimal.StringFixed(2)
			}
		}
		rows[i] = historyRow{
			Date:      FormatDate(p.Date),
			Symbol:    series.Symbol,
			Close:     p.Close.StringFixed(2),
			ChangePct: change,
		}
	}
	return rows
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <symbol>",
		Short: "Show or export close-price history",
		Example: `  stocktracker history NVDA
  stocktracker history AAPL --period 1y --interval 1wk
  stocktracker history SPY --period 5y --csv > spy.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			period, _ := cmd.Flags().GetString("period")
			intervalFlag, _ := cmd.Flags().GetString("interval")
			asCSV, _ := cmd.Flags().GetBool("csv")

			symbol, err := marketdata.ValidateSymbol(args[0])
			if err != nil {
				output.Error("%v", err)
				return err
			}
			interval, err := marketdata.ParseInterval(intervalFlag)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			end := analysis.DateOf(time.Now(), app.Location()).AddDate(0, 0, 1)
			start, err := marketdata.PeriodStart(period, end)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			gw, err := app.MarketData()
			if err != nil {
				output.Error("%v", err)
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			series, err := gw.History(ctx, marketdata.HistoryRequest{
				Symbol:   symbol,
				Start:    start,
				End:      end,
				Interval: interval,
			})
			if err != nil {
				output.Error("Failed to fetch history: %v", err)
				return err
			}
			series.Symbol = symbol
			rows := historyRows(series)

			switch {
			case asCSV:
				return gocsv.Marshal(rows, output.Writer())
			case output.IsJSON():
				return output.JSON(rows)
			}

			if series.IsEmpty() {
				output.Warning("No data for %s", symbol)
				return nil
			}

			output.Bold("%s %s history (%s)", symbol, interval, period)
			t := output.Table("Date", "Close", "Change")
			for i, r := range rows {
				change := utils.NotAvailable
				if r.ChangePct != "" {
					change = output.Change(analysis.PercentChangeOf(series.Points[i].Close, series.Points[i-1].Close), r.ChangePct+"%")
				}
				t.Append([]string{r.Date, utils.FormatPrice(series.Points[i].Close), change})
			}
			t.Render()
			output.Dim("%d bars", len(rows))
			return nil
		},
	}

	cmd.Flags().StringP("period", "p", "1mo", "lookback period: 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, ytd")
	cmd.Flags().StringP("interval", "i", "1d", "bar interval: 1d, 1wk, 1mo")
	cmd.Flags().Bool("csv", false, "write CSV to stdout")

	return cmd
}
