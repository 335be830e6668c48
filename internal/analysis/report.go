package analysis

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stock-tracker/internal/logging"
	"stock-tracker/internal/marketdata"
	"stock-tracker/internal/models"
)

// DefaultLookbackDays tolerates weekends and holidays when picking the
// close for a horizon.
const DefaultLookbackDays = 3

// Horizons lists the non-today report horizons in display order.
var Horizons = []models.Horizon{models.Horizon1D, models.Horizon1W, models.Horizon1M, models.Horizon1Y}

// DateOf truncates t to its calendar date in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// CloseOn returns the most recent close dated within
// [target-lookbackDays, target]. target must be a calendar date.
func CloseOn(series models.PriceSeries, target time.Time, lookbackDays int) decimal.NullDecimal {
	loc := target.Location()
	from := target.AddDate(0, 0, -lookbackDays)
	for i := len(series.Points) - 1; i >= 0; i-- {
		d := DateOf(series.Points[i].Date, loc)
		if d.After(target) {
			continue
		}
		if d.Before(from) {
			break
		}
		return decimal.NewNullDecimal(series.Points[i].Close)
	}
	return decimal.NullDecimal{}
}

// BuildReport derives every horizon for one symbol from a single series.
func BuildReport(symbol string, series models.PriceSeries, today time.Time) models.ReportEntry {
	return buildReport(symbol, series, today, DefaultLookbackDays)
}

func buildReport(symbol string, series models.PriceSeries, today time.Time, lookback int) models.ReportEntry {
	today = DateOf(today, today.Location())
	priceAgo := func(h models.Horizon) decimal.NullDecimal {
		return CloseOn(series, today.AddDate(0, 0, -h.Days), lookback)
	}

	now := priceAgo(models.HorizonToday)
	return models.ReportEntry{
		Symbol:     symbol,
		TodayPrice: now,
		Change1D:   PercentChange(now, priceAgo(models.Horizon1D)),
		Change1W:   PercentChange(now, priceAgo(models.Horizon1W)),
		Change1M:   PercentChange(now, priceAgo(models.Horizon1M)),
		Change1Y:   PercentChange(now, priceAgo(models.Horizon1Y)),
	}
}

// HistorySource supplies price history; marketdata.Gateway satisfies it.
type HistorySource interface {
	History(ctx context.Context, req marketdata.HistoryRequest) (models.PriceSeries, error)
}

// ReportBuilder composes multi-symbol reports.
type ReportBuilder struct {
	source   HistorySource
	logger   zerolog.Logger
	loc      *time.Location
	lookback int
	now      func() time.Time
}

// ReportOption customizes a ReportBuilder.
type ReportOption func(*ReportBuilder)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) ReportOption {
	return func(b *ReportBuilder) { b.now = now }
}

// WithLocation sets the calendar used to decide "today".
func WithLocation(loc *time.Location) ReportOption {
	return func(b *ReportBuilder) { b.loc = loc }
}

// NewReportBuilder creates a ReportBuilder.
func NewReportBuilder(source HistorySource, logger zerolog.Logger, opts ...ReportOption) *ReportBuilder {
	b := &ReportBuilder{
		source:   source,
		logger:   logging.WithComponent(logger, "report"),
		loc:      time.Local,
		lookback: DefaultLookbackDays,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Today returns the current calendar date in the builder's location.
func (b *ReportBuilder) Today() time.Time {
	return DateOf(b.now(), b.loc)
}

// BuildSymbolReport fetches one series covering the longest horizon and
// derives the entry from it. The error is returned alongside an all-absent
// entry so callers can surface it.
func (b *ReportBuilder) BuildSymbolReport(ctx context.Context, symbol string, today time.Time) (models.ReportEntry, error) {
	longest := models.Horizon1Y.Days + b.lookback
	series, err := b.source.History(ctx, marketdata.HistoryRequest{
		Symbol:   symbol,
		Start:    today.AddDate(0, 0, -longest),
		End:      today.AddDate(0, 0, 1),
		Interval: marketdata.IntervalDaily,
	})
	if err != nil {
		return models.ReportEntry{Symbol: symbol}, err
	}
	return buildReport(symbol, series, today, b.lookback), nil
}

// BuildFullReport builds entries for symbols in the given order. A symbol
// whose history cannot be fetched keeps an entry with every field absent.
func (b *ReportBuilder) BuildFullReport(ctx context.Context, symbols []string) models.Report {
	today := b.Today()
	report := models.Report{
		Date:    today,
		Entries: make([]models.ReportEntry, 0, len(symbols)),
	}

	for _, symbol := range symbols {
		entry, err := b.BuildSymbolReport(ctx, symbol, today)
		if err != nil {
			logger := logging.WithSymbol(b.logger, symbol)
			logger.Warn().Err(err).Msg("Report data unavailable")
		}
		report.Entries = append(report.Entries, entry)
	}

	return report
}
