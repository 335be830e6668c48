package chart

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stock-tracker/internal/analysis"
	apperrors "stock-tracker/internal/errors"
	"stock-tracker/internal/logging"
	"stock-tracker/internal/marketdata"
)

// Service fetches history and renders charts on demand.
type Service struct {
	source   analysis.HistorySource
	defaults Options
	logger   zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewService creates a chart Service. Empty fields in a request's Options
// fall back to defaults.
func NewService(source analysis.HistorySource, defaults Options, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		source:   source,
		defaults: defaults,
		logger:   logging.WithComponent(logger, "chart"),
		loc:      loc,
		now:      time.Now,
	}
}

// Defaults returns the configured default options.
func (s *Service) Defaults() Options {
	return s.defaults
}

// Resolve fills empty option fields from the defaults and validates them.
func (s *Service) Resolve(opts Options) (Options, marketdata.Interval, error) {
	if opts.Period == "" {
		opts.Period = s.defaults.Period
	}
	if opts.Interval == "" {
		opts.Interval = s.defaults.Interval
	}
	if opts.MAWindows == nil {
		opts.MAWindows = s.defaults.MAWindows
	}

	interval, err := marketdata.ParseInterval(opts.Interval)
	if err != nil {
		return opts, "", err
	}
	if _, err := marketdata.PeriodStart(opts.Period, s.now()); err != nil {
		return opts, "", err
	}
	return opts, interval, nil
}

// Chart validates symbol, fetches the requested window and renders it.
// A symbol with no data yields errors.ErrNoData.
func (s *Service) Chart(ctx context.Context, symbol string, opts Options) (*Chart, error) {
	symbol, err := marketdata.ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	opts, interval, err := s.Resolve(opts)
	if err != nil {
		return nil, err
	}

	end := analysis.DateOf(s.now(), s.loc).AddDate(0, 0, 1)
	start, _ := marketdata.PeriodStart(opts.Period, end)

	series, err := s.source.History(ctx, marketdata.HistoryRequest{
		Symbol:   symbol,
		Start:    start,
		End:      end,
		Interval: interval,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s history: %w", symbol, err)
	}
	series.Symbol = symbol

	c, err := BuildChart(series, opts)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("symbol", symbol).
		Str("period", opts.Period).
		Str("interval", opts.Interval).
		Int("points", c.Points).
		Int("overlays", len(c.Overlays)).
		Msg("Chart rendered")

	if len(c.Overlays) < len(opts.MAWindows) {
		s.logger.Debug().Err(apperrors.ErrInsufficientSeries).Str("symbol", symbol).Msg("Some overlays skipped")
	}

	return c, nil
}
