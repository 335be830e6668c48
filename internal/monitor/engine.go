// Package monitor implements the alert engine: the periodic sampling loop,
// edge-triggered threshold and momentum detection, and the once-per-day
// report schedule.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"stock-tracker/internal/analysis"
	apperrors "stock-tracker/internal/errors"
	"stock-tracker/internal/logging"
	"stock-tracker/internal/marketdata"
	"stock-tracker/internal/models"
	"stock-tracker/internal/store"
)

// Settings is the immutable engine configuration.
type Settings struct {
	Symbols      []models.SymbolConfig
	Interval     time.Duration
	ReportHour   int
	ReportMinute int
	Location     *time.Location
	// Concurrency is the number of symbols evaluated at once; values below
	// 2 evaluate sequentially.
	Concurrency int
}

// DefaultSettings returns a 5 minute tick with a 17:00 local report.
func DefaultSettings(symbols []models.SymbolConfig) Settings {
	return Settings{
		Symbols:      symbols,
		Interval:     5 * time.Minute,
		ReportHour:   17,
		ReportMinute: 0,
		Location:     time.Local,
		Concurrency:  1,
	}
}

// Publisher accepts events for delivery. A non-nil error means the event
// was not queued.
type Publisher interface {
	Publish(ev models.AlertEvent) error
}

// ReportSource builds the daily report.
type ReportSource interface {
	BuildFullReport(ctx context.Context, symbols []string) models.Report
}

type symbolState struct {
	mu    sync.Mutex
	cfg   models.SymbolConfig
	state models.AlertState
}

// Engine evaluates every configured symbol once per tick.
type Engine struct {
	settings Settings
	gateway  marketdata.Gateway
	reports  ReportSource
	events   Publisher
	markers  store.MarkerStore
	logger   zerolog.Logger
	now      func() time.Time

	order   []string
	symbols map[string]*symbolState

	reportMu   sync.Mutex
	lastReport time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMarkerStore persists the daily report marker across restarts.
func WithMarkerStore(m store.MarkerStore) Option {
	return func(e *Engine) { e.markers = m }
}

// New creates an Engine.
func New(settings Settings, gateway marketdata.Gateway, reports ReportSource, events Publisher, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	if settings.Interval <= 0 {
		return nil, apperrors.NewValidationError("interval", settings.Interval, "must be positive")
	}
	if settings.Location == nil {
		settings.Location = time.Local
	}

	e := &Engine{
		settings: settings,
		gateway:  gateway,
		reports:  reports,
		events:   events,
		logger:   logging.WithComponent(logger, "monitor"),
		now:      time.Now,
		order:    make([]string, 0, len(settings.Symbols)),
		symbols:  make(map[string]*symbolState, len(settings.Symbols)),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, cfg := range settings.Symbols {
		if _, dup := e.symbols[cfg.Symbol]; dup {
			return nil, apperrors.NewValidationError("symbol", cfg.Symbol, "duplicate symbol")
		}
		if !cfg.Lower.LessThan(cfg.Upper) {
			e.logger.Warn().Str("symbol", cfg.Symbol).Msg("Lower threshold is not below upper; both alerts may fire")
		}
		e.order = append(e.order, cfg.Symbol)
		e.symbols[cfg.Symbol] = &symbolState{cfg: cfg}
	}

	return e, nil
}

// Run ticks immediately and then every interval until ctx is cancelled. A
// tick in progress when ctx is cancelled runs to completion.
func (e *Engine) Run(ctx context.Context) error {
	e.restoreMarker(ctx)

	e.logger.Info().
		Int("symbols", len(e.order)).
		Dur("interval", e.settings.Interval).
		Str("report_time", fmt.Sprintf("%02d:%02d", e.settings.ReportHour, e.settings.ReportMinute)).
		Msg("Monitor started")

	ticker := time.NewTicker(e.settings.Interval)
	defer ticker.Stop()

	for {
		e.Tick(context.WithoutCancel(ctx))

		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick evaluates every symbol, then checks the daily report schedule.
func (e *Engine) Tick(ctx context.Context) {
	if e.settings.Concurrency > 1 && len(e.order) > 1 {
		p := pool.New().WithMaxGoroutines(e.settings.Concurrency)
		for _, sym := range e.order {
			st := e.symbols[sym]
			p.Go(func() { e.safeEvaluate(ctx, st) })
		}
		p.Wait()
	} else {
		for _, sym := range e.order {
			e.safeEvaluate(ctx, e.symbols[sym])
		}
	}

	e.checkDailyReport(ctx)
}

// safeEvaluate keeps a panic in one symbol from ending the tick.
func (e *Engine) safeEvaluate(ctx context.Context, st *symbolState) {
	var pc panics.Catcher
	pc.Try(func() { e.evaluate(ctx, st) })
	if r := pc.Recovered(); r != nil {
		logger := logging.WithSymbol(e.logger, st.cfg.Symbol)
		logger.Error().Err(r.AsError()).Msg("Symbol evaluation panicked")
	}
}

func (e *Engine) evaluate(ctx context.Context, st *symbolState) {
	cfg := st.cfg
	logger := logging.WithSymbol(e.logger, cfg.Symbol)

	price, ok := e.fetch(ctx, logger, "current price", e.gateway.CurrentPrice, cfg.Symbol)
	if !ok {
		return
	}
	prev, ok := e.fetch(ctx, logger, "previous close", e.gateway.PreviousClose, cfg.Symbol)
	if !ok {
		return
	}

	now := e.now()
	change := analysis.PercentChange(decimal.NewNullDecimal(price), decimal.NewNullDecimal(prev))
	logging.LogTick(logger, models.PriceSample{Symbol: cfg.Symbol, Price: price, AsOf: now}, change)

	st.mu.Lock()
	defer st.mu.Unlock()

	s := &st.state

	if price.GreaterThanOrEqual(cfg.Upper) {
		if !s.AboveUpper {
			s.AboveUpper = e.emit(logger, models.ThresholdCrossed{
				EventMeta: models.NewEventMeta(now),
				Symbol:    cfg.Symbol,
				Direction: models.ThresholdUpper,
				Price:     price,
				Threshold: cfg.Upper,
			}, "above_upper", price)
		}
	} else {
		s.AboveUpper = false
	}

	if price.LessThanOrEqual(cfg.Lower) {
		if !s.BelowLower {
			s.BelowLower = e.emit(logger, models.ThresholdCrossed{
				EventMeta: models.NewEventMeta(now),
				Symbol:    cfg.Symbol,
				Direction: models.ThresholdLower,
				Price:     price,
				Threshold: cfg.Lower,
			}, "below_lower", price)
		}
	} else {
		s.BelowLower = false
	}

	if change.Valid {
		if change.Decimal.Abs().GreaterThanOrEqual(cfg.PctTrigger) {
			if !s.PctBreached {
				dir := models.MoveDown
				if change.Decimal.IsPositive() {
					dir = models.MoveUp
				}
				s.PctBreached = e.emit(logger, models.MomentumMove{
					EventMeta: models.NewEventMeta(now),
					Symbol:    cfg.Symbol,
					Direction: dir,
					PctChange: change.Decimal,
					Price:     price,
				}, "momentum_"+string(dir), price)
			}
		} else {
			s.PctBreached = false
		}
	}

	s.LastPrice = price
	s.LastChange = change
	s.UpdatedAt = now
}

// fetch returns ok=false when the value is unavailable or the call failed.
func (e *Engine) fetch(ctx context.Context, logger zerolog.Logger, what string,
	get func(context.Context, string) (decimal.NullDecimal, error), symbol string) (decimal.Decimal, bool) {
	v, err := get(ctx, symbol)
	if err != nil {
		logger.Warn().Err(err).Bool("recoverable", apperrors.IsRecoverable(err)).Msgf("Skipping symbol: %s failed", what)
		return decimal.Decimal{}, false
	}
	if !v.Valid {
		logger.Info().Err(apperrors.ErrDataUnavailable).Msgf("Skipping symbol: no %s", what)
		return decimal.Decimal{}, false
	}
	return v.Decimal, true
}

// emit reports whether ev was queued. Flags are only set on success so a
// refused event is retried on the next tick.
func (e *Engine) emit(logger zerolog.Logger, ev models.AlertEvent, condition string, price decimal.Decimal) bool {
	if err := e.events.Publish(ev); err != nil {
		logger.Error().Err(err).Str("condition", condition).Msg("Alert not queued; will retry next tick")
		return false
	}
	logging.LogAlert(logger, ev.Meta().ID, models.EventSymbol(ev), condition, price)
	return true
}

func (e *Engine) checkDailyReport(ctx context.Context) {
	loc := e.settings.Location
	now := e.now().In(loc)
	today := analysis.DateOf(now, loc)
	trigger := time.Date(now.Year(), now.Month(), now.Day(), e.settings.ReportHour, e.settings.ReportMinute, 0, 0, loc)
	if now.Before(trigger) {
		return
	}

	e.reportMu.Lock()
	defer e.reportMu.Unlock()

	if sameDate(e.lastReport, today) {
		return
	}

	report := e.reports.BuildFullReport(ctx, e.order)
	ev := models.DailyReport{EventMeta: models.NewEventMeta(now), Report: report}
	if err := e.events.Publish(ev); err != nil {
		e.logger.Error().Err(err).Msg("Daily report not queued; will retry next tick")
		return
	}

	e.lastReport = today
	logging.LogReport(e.logger, ev.ID, len(report.Entries), today)

	if e.markers != nil {
		if err := e.markers.SetLastReportDate(ctx, today); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to persist report marker")
		}
	}
}

func (e *Engine) restoreMarker(ctx context.Context) {
	if e.markers == nil {
		return
	}
	d, ok, err := e.markers.GetLastReportDate(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to load report marker")
		return
	}
	if !ok {
		return
	}
	loc := e.settings.Location
	e.reportMu.Lock()
	e.lastReport = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	e.reportMu.Unlock()
}

func sameDate(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// States returns a snapshot of every symbol's alert state.
func (e *Engine) States() map[string]models.AlertState {
	out := make(map[string]models.AlertState, len(e.symbols))
	for sym, st := range e.symbols {
		st.mu.Lock()
		out[sym] = st.state
		st.mu.Unlock()
	}
	return out
}

// LastReportDate returns the date of the last queued daily report.
func (e *Engine) LastReportDate() (time.Time, bool) {
	e.reportMu.Lock()
	defer e.reportMu.Unlock()
	return e.lastReport, !e.lastReport.IsZero()
}

// Symbols returns the tracked symbols in configuration order.
func (e *Engine) Symbols() []string {
	return append([]string(nil), e.order...)
}
