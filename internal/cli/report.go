package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"stock-tracker/internal/marketdata"
	"stock-tracker/internal/models"
	"stock-tracker/internal/notify"
	"stock-tracker/pkg/utils"
)

func newReportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [symbol...]",
		Short: "Show today's price and 1D/1W/1M/1Y changes",
		Long: `Build the multi-horizon report for the given symbols, or for every
configured symbol when none are given. Symbols without data show N/A.`,
		Example: `  stocktracker report
  stocktracker report NVDA AAPL
  stocktracker report --markdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			markdown, _ := cmd.Flags().GetBool("markdown")

			symbols := app.Config.SymbolNames()
			if len(args) > 0 {
				symbols = make([]string, 0, len(args))
				for _, a := range args {
					s, err := marketdata.ValidateSymbol(a)
					if err != nil {
						output.Error("%v", err)
						return err
					}
					symbols = append(symbols, s)
				}
			}
			if len(symbols) == 0 {
				output.Warning("No symbols configured. Add [[symbols]] to %s/config.toml", app.ConfigDir())
				return nil
			}

			reports, err := app.Reports()
			if err != nil {
				output.Error("%v", err)
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			report := reports.BuildFullReport(ctx, symbols)

			switch {
			case output.IsJSON():
				return output.JSON(report)
			case markdown:
				output.Println(notify.FormatReport(report))
			default:
				displayReport(output, report)
			}
			return nil
		},
	}

	cmd.Flags().Bool("markdown", false, "print the message exactly as sent to Telegram")

	return cmd
}

func displayReport(output *Output, report models.Report) {
	output.Bold("📊 Daily Stock Report (%s)", report.Date.Format(notify.ReportDateFormat))
	output.Println()

	t := output.Table("Symbol", "Today", "1D", "1W", "1M", "1Y")
	for _, e := range report.Entries {
		t.Append([]string{
			e.Symbol,
			utils.FormatNullPrice(e.TodayPrice),
			output.Change(e.Change1D, utils.FormatNullPercent(e.Change1D)),
			output.Change(e.Change1W, utils.FormatNullPercent(e.Change1W)),
			output.Change(e.Change1M, utils.FormatNullPercent(e.Change1M)),
			output.Change(e.Change1Y, utils.FormatNullPercent(e.Change1Y)),
		})
	}
	t.Render()
}
