package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-tracker/internal/marketdata"
	"stock-tracker/internal/models"
)

func date(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func TestBuildReport_OnlyTodaysClose(t *testing.T) {
	today := date(2024, 6, 14)
	s := models.PriceSeries{Symbol: "AAPL", Points: []models.PricePoint{{Date: today, Close: d(200)}}}

	e := BuildReport("AAPL", s, today)
	require.True(t, e.TodayPrice.Valid)
	assert.True(t, e.TodayPrice.Decimal.Equal(d(200)))
	assert.False(t, e.Change1D.Valid)
	assert.False(t, e.Change1W.Valid)
	assert.False(t, e.Change1M.Valid)
	assert.False(t, e.Change1Y.Valid)
}

func TestBuildReport_Horizons(t *testing.T) {
	today := date(2024, 6, 17) // Monday
	s := models.PriceSeries{Symbol: "SPY", Points: []models.PricePoint{
		{Date: date(2023, 6, 16), Close: d(400)}, // 1Y target Jun 18 2023 is a Sunday
		{Date: date(2024, 5, 17), Close: d(500)},
		{Date: date(2024, 6, 10), Close: d(520)},
		{Date: date(2024, 6, 14), Close: d(525)}, // Friday before: 1D falls back over the weekend
		{Date: today, Close: d(550)},
	}}

	e := BuildReport("SPY", s, today)
	require.True(t, e.HasData())
	assert.Equal(t, "4.76", e.Change1D.Decimal.StringFixed(2))
	assert.Equal(t, "5.77", e.Change1W.Decimal.StringFixed(2))
	assert.Equal(t, "10.00", e.Change1M.Decimal.StringFixed(2))
	assert.Equal(t, "37.50", e.Change1Y.Decimal.StringFixed(2))
}

func TestCloseOn_OutsideLookbackIsAbsent(t *testing.T) {
	s := models.PriceSeries{Points: []models.PricePoint{{Date: date(2024, 6, 1), Close: d(10)}}}
	assert.False(t, CloseOn(s, date(2024, 6, 10), DefaultLookbackDays).Valid)
	assert.True(t, CloseOn(s, date(2024, 6, 4), DefaultLookbackDays).Valid)
}

func TestReportBuilder_KeepsOrderAndSurvivesFailures(t *testing.T) {
	now := time.Date(2024, 6, 14, 17, 30, 0, 0, time.UTC)
	fake := marketdata.NewFakeGateway()
	fake.SetSeries(models.PriceSeries{Symbol: "AAPL", Points: []models.PricePoint{
		{Date: date(2024, 6, 13), Close: d(100)},
		{Date: date(2024, 6, 14), Close: d(102)},
	}})
	fake.SetError("TSLA", errors.New("rate limited"))

	b := NewReportBuilder(fake, zerolog.Nop(), WithClock(func() time.Time { return now }), WithLocation(time.UTC))
	report := b.BuildFullReport(context.Background(), []string{"TSLA", "AAPL", "NONE"})

	assert.Equal(t, []string{"TSLA", "AAPL", "NONE"}, report.Symbols())
	assert.True(t, report.Date.Equal(date(2024, 6, 14)))

	tsla, _ := report.Entry("TSLA")
	assert.False(t, tsla.HasData())

	aapl, _ := report.Entry("AAPL")
	require.True(t, aapl.Change1D.Valid)
	assert.True(t, aapl.Change1D.Decimal.Equal(decimal.NewFromInt(2)))

	none, _ := report.Entry("NONE")
	assert.False(t, none.HasData())

	assert.Equal(t, 1, fake.Calls("AAPL"), "one history fetch per symbol")
}
