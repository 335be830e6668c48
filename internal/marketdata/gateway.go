// Package marketdata provides the market data gateway interface and its
// provider implementations.
package marketdata

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "stock-tracker/internal/errors"
	"stock-tracker/internal/models"
)

// Gateway supplies prices for a symbol. Absent values and empty series mean
// "no data" and are not errors; provider failures are returned as
// *errors.ProviderError.
type Gateway interface {
	Name() string
	CurrentPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error)
	PreviousClose(ctx context.Context, symbol string) (decimal.NullDecimal, error)
	History(ctx context.Context, req HistoryRequest) (models.PriceSeries, error)
}

// Interval is the bar size of a history request.
type Interval string

const (
	IntervalDaily   Interval = "1d"
	IntervalWeekly  Interval = "1wk"
	IntervalMonthly Interval = "1mo"
)

// ParseInterval validates an interval string.
func ParseInterval(s string) (Interval, error) {
	switch Interval(strings.ToLower(strings.TrimSpace(s))) {
	case "", IntervalDaily:
		return IntervalDaily, nil
	case IntervalWeekly:
		return IntervalWeekly, nil
	case IntervalMonthly:
		return IntervalMonthly, nil
	}
	return "", apperrors.NewValidationError("interval", s, "expected 1d, 1wk or 1mo")
}

// HistoryRequest describes a history query. End is exclusive.
type HistoryRequest struct {
	Symbol   string
	Start    time.Time
	End      time.Time
	Interval Interval
}

func (r HistoryRequest) String() string {
	return fmt.Sprintf("%s %s %s..%s", r.Symbol, r.Interval, r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
}

var periodRe = regexp.MustCompile(`^(\d+)(d|wk|mo|y)$`)

// PeriodStart resolves a lookback period such as "6mo" relative to end.
// Supported units are d, wk, mo and y, plus "ytd".
func PeriodStart(period string, end time.Time) (time.Time, error) {
	p := strings.ToLower(strings.TrimSpace(period))
	if p == "ytd" {
		return time.Date(end.Year(), 1, 1, 0, 0, 0, 0, end.Location()), nil
	}

	m := periodRe.FindStringSubmatch(p)
	if m == nil {
		return time.Time{}, apperrors.NewValidationError("period", period, "expected e.g. 5d, 1mo, 6mo, 1y, ytd")
	}
	n, _ := strconv.Atoi(m[1])
	if n <= 0 {
		return time.Time{}, apperrors.NewValidationError("period", period, "must be positive")
	}

	switch m[2] {
	case "d":
		return end.AddDate(0, 0, -n), nil
	case "wk":
		return end.AddDate(0, 0, -7*n), nil
	case "mo":
		return end.AddDate(0, -n, 0), nil
	default:
		return end.AddDate(-n, 0, 0), nil
	}
}

var symbolRe = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-^=:&]{0,19}$`)

// ValidateSymbol normalizes symbol and rejects empty or malformed input
// with errors.ErrInvalidSymbol.
func ValidateSymbol(symbol string) (string, error) {
	s := models.NormalizeSymbol(symbol)
	if s == "" {
		return "", fmt.Errorf("%w: symbol is required", apperrors.ErrInvalidSymbol)
	}
	if !symbolRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidSymbol, symbol)
	}
	return s, nil
}

// newSeries builds an ascending series from points, dropping points outside
// [start, end) and keeping the last close for duplicate timestamps.
func newSeries(symbol string, points []models.PricePoint, start, end time.Time) models.PriceSeries {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	out := make([]models.PricePoint, 0, len(points))
	for _, p := range points {
		if !start.IsZero() && p.Date.Before(start) {
			continue
		}
		if !end.IsZero() && !p.Date.Before(end) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return models.PriceSeries{Symbol: symbol, Points: out}
}

// Resample reduces a daily series to one close per week or month, keeping
// the last close of each bucket. Daily input is returned unchanged.
func Resample(series models.PriceSeries, interval Interval) models.PriceSeries {
	if interval != IntervalWeekly && interval != IntervalMonthly {
		return series
	}

	bucket := func(t time.Time) string {
		if interval == IntervalWeekly {
			y, w := t.ISOWeek()
			return fmt.Sprintf("%d-W%02d", y, w)
		}
		return t.Format("2006-01")
	}

	out := make([]models.PricePoint, 0, len(series.Points)/5+1)
	last := ""
	for _, p := range series.Points {
		b := bucket(p.Date)
		if n := len(out); n > 0 && b == last {
			out[n-1] = p
			continue
		}
		last = b
		out = append(out, p)
	}
	return models.PriceSeries{Symbol: series.Symbol, Points: out}
}
