package notify

import (
	"fmt"
	"strings"

	"stock-tracker/internal/models"
	"stock-tracker/pkg/utils"
)

// ReportDateFormat is the date layout used in the report header.
const ReportDateFormat = "02 Jan 2006"

// FormatEvent renders ev as a Telegram Markdown message.
func FormatEvent(ev models.AlertEvent) string {
	switch e := ev.(type) {
	case models.ThresholdCrossed:
		return FormatThreshold(e)
	case models.MomentumMove:
		return FormatMomentum(e)
	case models.DailyReport:
		return FormatReport(e.Report)
	default:
		return fmt.Sprintf("%s event %s", ev.Kind(), ev.Meta().ID)
	}
}

// FormatThreshold renders a threshold crossing.
func FormatThreshold(e models.ThresholdCrossed) string {
	if e.Direction == models.ThresholdUpper {
		return fmt.Sprintf("🚀 *%s* crossed upper threshold!\nCurrent: %s", e.Symbol, utils.FormatPrice(e.Price))
	}
	return fmt.Sprintf("⚠️ *%s* dropped below threshold!\nCurrent: %s", e.Symbol, utils.FormatPrice(e.Price))
}

// FormatMomentum renders a momentum move.
func FormatMomentum(e models.MomentumMove) string {
	icon := "📈"
	if e.Direction == models.MoveDown {
		icon = "📉"
	}
	return fmt.Sprintf("%s *%s* moved %s by %s since yesterday.\nCurrent: %s",
		icon, e.Symbol, e.Direction, utils.FormatPercent(e.PctChange), utils.FormatPrice(e.Price))
}

// FormatReportEntry renders one symbol's block of the daily report.
func FormatReportEntry(e models.ReportEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*\n", e.Symbol)
	fmt.Fprintf(&sb, "💰 Today: %s\n", utils.FormatNullPrice(e.TodayPrice))
	fmt.Fprintf(&sb, "🕐 1D: %s\n", utils.FormatNullPercent(e.Change1D))
	fmt.Fprintf(&sb, "📅 1W: %s\n", utils.FormatNullPercent(e.Change1W))
	fmt.Fprintf(&sb, "🗓️ 1M: %s\n", utils.FormatNullPercent(e.Change1M))
	fmt.Fprintf(&sb, "📆 1Y: %s", utils.FormatNullPercent(e.Change1Y))
	return sb.String()
}

// FormatReport renders the full multi-symbol report.
func FormatReport(r models.Report) string {
	blocks := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		blocks[i] = FormatReportEntry(e)
	}
	return fmt.Sprintf("📊 *Daily Stock Report* (%s)\n\n", r.Date.Format(ReportDateFormat)) +
		strings.Join(blocks, "\n\n")
}
