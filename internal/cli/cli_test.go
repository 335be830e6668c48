package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-tracker/internal/analysis"
	"stock-tracker/internal/config"
	"stock-tracker/internal/marketdata"
	"stock-tracker/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Monitor: config.MonitorConfig{
			Interval:        time.Minute,
			DailyReportTime: "17:00",
			Timezone:        "UTC",
			CallTimeout:     time.Second,
			Concurrency:     1,
			EventBuffer:     16,
		},
		Symbols: []config.SymbolEntry{
			{Symbol: "NVDA", Upper: 130, Lower: 110, PctTrigger: 2},
			{Symbol: "AAPL", Upper: 200, Lower: 160, PctTrigger: 2},
		},
		Chart:         config.ChartConfig{Period: "6mo", Interval: "1d", MAWindows: []int{20, 50}},
		Data:          config.DataConfig{Provider: "yahoo"},
		Notifications: config.NotificationConfig{Level: "all"},
	}
}

func num(v float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}

// dailySeries returns n daily closes ending today (UTC), starting at base and
// rising by one per day.
func dailySeries(symbol string, n int, base float64) models.PriceSeries {
	today := analysis.DateOf(time.Now(), time.UTC)
	points := make([]models.PricePoint, n)
	for i := 0; i < n; i++ {
		points[i] = models.PricePoint{
			Date:  today.AddDate(0, 0, i-n+1),
			Close: decimal.NewFromFloat(base + float64(i)),
		}
	}
	return models.PriceSeries{Symbol: symbol, Points: points}
}

func execute(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(app)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newTestApp() (*App, *marketdata.FakeGateway) {
	gw := marketdata.NewFakeGateway()
	return &App{Config: testConfig(), Logger: zerolog.Nop(), Gateway: gw}, gw
}

func TestVersionCmd(t *testing.T) {
	app, _ := newTestApp()
	out, err := execute(t, app, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Stock Tracker v"+Version)
}

func TestConfigValidateCmd(t *testing.T) {
	app, _ := newTestApp()
	out, err := execute(t, app, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid (2 symbols)")

	app.Config.Symbols[1].Lower = 500
	_, err = execute(t, app, "config", "validate")
	assert.Error(t, err)
}

func TestConfigShowJSONHidesSecrets(t *testing.T) {
	app, _ := newTestApp()
	app.Config.Notifications.Telegram.BotToken = "secret-token"
	app.Config.Credentials.Polygon.APIKey = "secret-key"

	out, err := execute(t, app, "config", "show", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"Provider": "yahoo"`)
	assert.NotContains(t, out, "secret-token")
	assert.NotContains(t, out, "secret-key")
}

func TestReportCmd_Markdown(t *testing.T) {
	app, gw := newTestApp()
	gw.SetSeries(dailySeries("NVDA", 10, 100))

	out, err := execute(t, app, "report", "--markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "📊 *Daily Stock Report*")
	assert.Contains(t, out, "*NVDA*\n💰 Today: $109.00\n🕐 1D: +0.93%")
	assert.Contains(t, out, "*AAPL*\n💰 Today: N/A")
}

func TestReportCmd_RejectsBadSymbol(t *testing.T) {
	app, _ := newTestApp()
	_, err := execute(t, app, "report", "NV$DA")
	assert.Error(t, err)
}

func TestHistoryCmd_CSV(t *testing.T) {
	app, gw := newTestApp()
	gw.SetSeries(dailySeries("NVDA", 3, 100))

	out, err := execute(t, app, "history", "nvda", "--period", "5d", "--csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "date,symbol,close,change_pct", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",NVDA,100.00,"))
	assert.True(t, strings.HasSuffix(lines[2], ",NVDA,101.00,1.00"))
}

func TestHistoryCmd_BadInterval(t *testing.T) {
	app, _ := newTestApp()
	_, err := execute(t, app, "history", "NVDA", "--interval", "1h")
	assert.Error(t, err)
}

func TestChartCmd_WritesPNG(t *testing.T) {
	app, gw := newTestApp()
	gw.SetSeries(dailySeries("NVDA", 60, 100))
	path := filepath.Join(t.TempDir(), "nvda.png")

	out, err := execute(t, app, "chart", "NVDA", "--period", "3mo", "--ma", "20", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "NVDA chart written to")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestChartCmd_NoData(t *testing.T) {
	app, _ := newTestApp()
	_, err := execute(t, app, "chart", "ZZZZ", "-o", filepath.Join(t.TempDir(), "z.png"))
	assert.Error(t, err)
}

func TestParseWindows(t *testing.T) {
	w, err := parseWindows("20, 50")
	require.NoError(t, err)
	assert.Equal(t, []int{20, 50}, w)

	_, err = parseWindows("20,x")
	assert.Error(t, err)
	_, err = parseWindows("0")
	assert.Error(t, err)
}

func TestRunCmd_OnceWithConsole(t *testing.T) {
	app, gw := newTestApp()
	gw.QueuePrices("NVDA", num(131))
	gw.SetPreviousClose("NVDA", num(130))
	gw.QueuePrices("AAPL", num(150))
	gw.SetPreviousClose("AAPL", num(180))

	out, err := execute(t, app, "run", "--once", "--console")
	require.NoError(t, err)
	assert.Contains(t, out, "▲ UPPER")
	assert.Contains(t, out, "NVDA | price $131.00")
	assert.Contains(t, out, "▼ LOWER")
	assert.Contains(t, out, "MOVE DOWN")
}

func TestRunCmd_RequiresSymbols(t *testing.T) {
	app, _ := newTestApp()
	app.Config.Symbols = nil
	_, err := execute(t, app, "run", "--once")
	assert.Error(t, err)
}

func TestAlertsCmd_StoreDisabled(t *testing.T) {
	app, _ := newTestApp()
	out, err := execute(t, app, "alerts")
	require.NoError(t, err)
	assert.Contains(t, out, "Alert journal is disabled")
}

func TestAlertsCmd_ListsJournal(t *testing.T) {
	app, gw := newTestApp()
	app.Config.Store = config.StoreConfig{
		Enabled:       true,
		Path:          filepath.Join(t.TempDir(), "tracker.db"),
		JournalAlerts: true,
	}
	gw.QueuePrices("NVDA", num(131))
	gw.SetPreviousClose("NVDA", num(130))
	gw.QueuePrices("AAPL", num(170))
	gw.SetPreviousClose("AAPL", num(170))

	_, err := execute(t, app, "run", "--once")
	require.NoError(t, err)

	out, err := execute(t, app, "alerts", "--symbol", "nvda", "--kind", "threshold_crossed")
	require.NoError(t, err)
	assert.Contains(t, out, "threshold_crossed")
	assert.Contains(t, out, "NVDA")
	assert.Contains(t, out, "upper")
}
