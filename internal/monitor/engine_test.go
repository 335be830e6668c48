package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stock-tracker/internal/errors"
	"stock-tracker/internal/marketdata"
	"stock-tracker/internal/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.AlertEvent
	fail   int // refuse the next n publishes
}

func (p *recordingPublisher) Publish(ev models.AlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 {
		p.fail--
		return apperrors.ErrQueueFull
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count(kind models.EventKind, symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Kind() == kind && (symbol == "" || models.EventSymbol(ev) == symbol) {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) thresholds(symbol string, dir models.ThresholdDirection) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if tc, ok := ev.(models.ThresholdCrossed); ok && tc.Symbol == symbol && tc.Direction == dir {
			n++
		}
	}
	return n
}

type stubReports struct {
	mu    sync.Mutex
	calls int
}

func (s *stubReports) BuildFullReport(ctx context.Context, symbols []string) models.Report {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	entries := make([]models.ReportEntry, len(symbols))
	for i, sym := range symbols {
		entries[i] = models.ReportEntry{Symbol: sym}
	}
	return models.Report{Entries: entries}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func num(v float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}

func symbolCfg(sym string, lower, upper, pct float64) models.SymbolConfig {
	return models.SymbolConfig{
		Symbol:     sym,
		Upper:      decimal.NewFromFloat(upper),
		Lower:      decimal.NewFromFloat(lower),
		PctTrigger: decimal.NewFromFloat(pct),
	}
}

type harness struct {
	engine  *Engine
	gateway *marketdata.FakeGateway
	events  *recordingPublisher
	reports *stubReports
	clock   *clock
}

// newHarness starts the clock in the morning so no report fires unless a
// test moves it.
func newHarness(t *testing.T, concurrency int, symbols ...models.SymbolConfig) *harness {
	t.Helper()
	h := &harness{
		gateway: marketdata.NewFakeGateway(),
		events:  &recordingPublisher{},
		reports: &stubReports{},
		clock:   &clock{t: time.Date(2024, 6, 14, 10, 0, 0, 0, time.UTC)},
	}
	settings := DefaultSettings(symbols)
	settings.Location = time.UTC
	settings.Concurrency = concurrency

	e, err := New(settings, h.gateway, h.reports, h.events, zerolog.Nop(), WithClock(h.clock.now))
	require.NoError(t, err)
	h.engine = e
	return h
}

func TestEngine_UpperThresholdIsEdgeTriggered(t *testing.T) {
	h := newHarness(t, 1, symbolCfg("NVDA", 110, 130, 50))
	h.gateway.SetPreviousClose("NVDA", num(120))
	h.gateway.QueuePrices("NVDA", num(125), num(131), num(135), num(129), num(130))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		h.engine.Tick(ctx)
	}

	assert.Equal(t, 2, h.events.thresholds("NVDA", models.ThresholdUpper))
	assert.True(t, h.engine.States()["NVDA"].AboveUpper)
}

func TestEngine_LowerThresholdIsEdgeTriggered(t *testing.T) {
	h := newHarness(t, 1, symbolCfg("TSLA", 220, 300, 50))
	h.gateway.SetPreviousClose("TSLA", num(230))
	h.gateway.QueuePrices("TSLA", num(220), num(210), num(221), num(219))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		h.engine.Tick(ctx)
	}

	assert.Equal(t, 2, h.events.thresholds("TSLA", models.ThresholdLower))
	assert.Equal(t, 0, h.events.thresholds("TSLA", models.ThresholdUpper))
}

func TestEngine_MomentumFiresOncePerBreach(t *testing.T) {
	h := newHarness(t, 1, symbolCfg("AAPL", 100, 300, 2))
	h.gateway.SetPreviousClose("AAPL", num(200))
	// +2.5%, +3%, +1% (clears), -2% (fires down)
	h.gateway.QueuePrices("AAPL", num(205), num(206), num(202), num(196))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		h.engine.Tick(ctx)
	}

	require.Equal(t, 2, h.events.count(models.EventMomentumMove, "AAPL"))
	var dirs []models.MoveDirection
	for _, ev := range h.events.events {
		if m, ok := ev.(models.MomentumMove); ok {
			dirs = append(dirs, m.Direction)
		}
	}
	assert.Equal(t, []models.MoveDirection{models.MoveUp, models.MoveDown}, dirs)
}

func TestEngine_DataGapLeavesFlagsUnchanged(t *testing.T) {
	h := newHarness(t, 1, symbolCfg("SPY", 520, 550, 1.5))
	h.gateway.SetPreviousClose("SPY", num(540))
	h.gateway.QueuePrices("SPY", num(555), decimal.NullDecimal{}, num(556))
	ctx := context.Background()

	h.engine.Tick(ctx)
	require.True(t, h.engine.States()["SPY"].AboveUpper)

	h.engine.Tick(ctx) // absent price
	assert.True(t, h.engine.States()["SPY"].AboveUpper)
	assert.True(t, h.engine.States()["SPY"].LastPrice.Equal(decimal.NewFromInt(555)))

	h.engine.Tick(ctx)
	assert.Equal(t, 1, h.events.thresholds("SPY", models.ThresholdUpper))
}

func TestEngine_ProviderErrorDoesNotBlockOtherSymbols(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		h := newHarness(t, concurrency,
			symbolCfg("BAD", 10, 20, 5),
			symbolCfg("AMZN", 160, 190, 2.5),
		)
		h.gateway.SetError("BAD", errors.New("connection reset"))
		h.gateway.SetPreviousClose("AMZN", num(185))
		h.gateway.QueuePrices("AMZN", num(195))

		h.engine.Tick(context.Background())

		assert.Equal(t, 1, h.events.thresholds("AMZN", models.ThresholdUpper), "concurrency %d", concurrency)
		assert.Equal(t, 1, h.events.count(models.EventMomentumMove, "AMZN"), "concurrency %d", concurrency)
		assert.Equal(t, models.AlertState{}, h.engine.States()["BAD"])
	}
}

type panickingGateway struct {
	*marketdata.FakeGateway
	symbol string
}

func (g panickingGateway) CurrentPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	if symbol == g.symbol {
		panic("malformed quote")
	}
	return g.FakeGateway.CurrentPrice(ctx, symbol)
}

func TestEngine_PanicInOneSymbolIsContained(t *testing.T) {
	fake := marketdata.NewFakeGateway()
	fake.SetPreviousClose("NVDA", num(120))
	fake.QueuePrices("NVDA", num(131))
	events := &recordingPublisher{}
	c := &clock{t: time.Date(2024, 6, 14, 10, 0, 0, 0, time.UTC)}

	settings := DefaultSettings([]models.SymbolConfig{
		symbolCfg("BOOM", 10, 20, 5),
		symbolCfg("NVDA", 110, 130, 50),
	})
	settings.Location = time.UTC

	e, err := New(settings, panickingGateway{FakeGateway: fake, symbol: "BOOM"}, &stubReports{}, events, zerolog.Nop(), WithClock(c.now))
	require.NoError(t, err)

	assert.NotPanics(t, func() { e.Tick(context.Background()) })
	assert.Equal(t, 1, events.thresholds("NVDA", models.ThresholdUpper))
}

func TestEngine_RefusedEventIsRetried(t *testing.T) {
	h := newHarness(t, 1, symbolCfg("NVDA", 110, 130, 50))
	h.gateway.SetPreviousClose("NVDA", num(125))
	h.gateway.QueuePrices("NVDA", num(131))
	h.events.fail = 1
	ctx := context.Background()

	h.engine.Tick(ctx)
	assert.False(t, h.engine.States()["NVDA"].AboveUpper, "flag must not flip without a queued event")
	assert.Equal(t, 0, h.events.thresholds("NVDA", models.ThresholdUpper))

	h.engine.Tick(ctx)
	assert.True(t, h.engine.States()["NVDA"].AboveUpper)
	assert.Equal(t, 1, h.events.thresholds("NVDA", models.ThresholdUpper))
}

func TestEngine_DailyReportOncePerDay(t *testing.T) {
	h := newHarness(t, 1, symbolCfg("SPY", 520, 550, 1.5))
	h.clock.t = time.Date(2024, 6, 14, 16, 55, 0, 0, time.UTC)
	ctx := context.Background()

	for !h.clock.now().After(time.Date(2024, 6, 14, 18, 0, 0, 0, time.UTC)) {
		h.engine.Tick(ctx)
		h.clock.advance(5 * time.Minute)
	}

	assert.Equal(t, 1, h.events.count(models.EventDailyReport, ""))
	assert.Equal(t, 1, h.reports.calls)
	last, ok := h.engine.LastReportDate()
	require.True(t, ok)
	assert.Equal(t, "2024-06-14", last.Format("2006-01-02"))

	// Next day before the trigger: nothing. After: one more.
	h.clock.t = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	h.engine.Tick(ctx)
	assert.Equal(t, 1, h.events.count(models.EventDailyReport, ""))
	h.clock.t = time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC)
	h.engine.Tick(ctx)
	assert.Equal(t, 2, h.events.count(models.EventDailyReport, ""))
}

func TestEngine_DailyReportUsesWallClockOnDSTDays(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	tests := []struct {
		name   string
		before time.Time
		after  time.Time
	}{
		{"spring forward", time.Date(2024, 3, 10, 16, 55, 0, 0, loc), time.Date(2024, 3, 10, 17, 30, 0, 0, loc)},
		{"fall back", time.Date(2024, 11, 3, 16, 30, 0, 0, loc), time.Date(2024, 11, 3, 17, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &clock{t: tt.before}
			events := &recordingPublisher{}
			settings := DefaultSettings([]models.SymbolConfig{symbolCfg("SPY", 520, 550, 1.5)})
			settings.Location = loc

			e, err := New(settings, marketdata.NewFakeGateway(), &stubReports{}, events, zerolog.Nop(), WithClock(c.now))
			require.NoError(t, err)
			ctx := context.Background()

			e.Tick(ctx)
			assert.Equal(t, 0, events.count(models.EventDailyReport, ""), "before 17:00 local")

			c.t = tt.after
			e.Tick(ctx)
			assert.Equal(t, 1, events.count(models.EventDailyReport, ""), "at or after 17:00 local")
		})
	}
}

func TestEngine_DailyReportRetriedWhenRefused(t *testing.T) {
	h := newHarness(t, 1, symbolCfg("SPY", 520, 550, 1.5))
	h.clock.t = time.Date(2024, 6, 14, 17, 0, 0, 0, time.UTC)
	h.events.fail = 1
	ctx := context.Background()

	h.engine.Tick(ctx)
	_, ok := h.engine.LastReportDate()
	assert.False(t, ok)

	h.engine.Tick(ctx)
	assert.Equal(t, 1, h.events.count(models.EventDailyReport, ""))
}

type memMarker struct {
	date time.Time
	set  bool
}

func (m *memMarker) GetLastReportDate(ctx context.Context) (time.Time, bool, error) {
	return m.date, m.set, nil
}

func (m *memMarker) SetLastReportDate(ctx context.Context, d time.Time) error {
	m.date, m.set = d, true
	return nil
}

func TestEngine_RestoredMarkerSuppressesSecondReport(t *testing.T) {
	gw := marketdata.NewFakeGateway()
	events := &recordingPublisher{}
	marker := &memMarker{date: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), set: true}
	now := time.Date(2024, 6, 14, 18, 0, 0, 0, time.UTC)

	settings := DefaultSettings([]models.SymbolConfig{symbolCfg("SPY", 520, 550, 1.5)})
	settings.Location = time.UTC
	settings.Interval = time.Hour
	e, err := New(settings, gw, &stubReports{}, events, zerolog.Nop(),
		WithClock(func() time.Time { return now }), WithMarkerStore(marker))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx))

	assert.Equal(t, 0, events.count(models.EventDailyReport, ""))
}

func TestNew_RejectsDuplicateSymbols(t *testing.T) {
	settings := DefaultSettings([]models.SymbolConfig{symbolCfg("A", 1, 2, 1), symbolCfg("A", 1, 2, 1)})
	_, err := New(settings, marketdata.NewFakeGateway(), &stubReports{}, &recordingPublisher{}, zerolog.Nop())
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}

// Property: for any price sequence, upper-threshold events equal the number
// of contiguous runs at or above the threshold.
func TestProperty_ThresholdFiresOncePerContiguousBreach(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("one event per run", prop.ForAll(
		func(prices []int) bool {
			h := newHarness(t, 1, symbolCfg("X", 0.5, 100, 1000))
			h.gateway.SetPreviousClose("X", num(100))
			for _, p := range prices {
				h.gateway.QueuePrices("X", num(float64(p)))
			}

			runs, above := 0, false
			for _, p := range prices {
				if p >= 100 && !above {
					runs++
				}
				above = p >= 100
			}

			for range prices {
				h.engine.Tick(context.Background())
			}
			return h.events.thresholds("X", models.ThresholdUpper) == runs
		},
		gen.SliceOf(gen.IntRange(90, 110)),
	))

	properties.TestingRun(t)
}
