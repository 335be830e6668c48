package marketdata

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	apperrors "stock-tracker/internal/errors"
	"stock-tracker/internal/models"
)

// FakeGateway is an in-memory Gateway with scripted answers, for tests and
// offline runs.
type FakeGateway struct {
	mu     sync.Mutex
	prices map[string][]decimal.NullDecimal
	prev   map[string]decimal.NullDecimal
	series map[string]models.PriceSeries
	errs   map[string]error
	calls  map[string]int
}

// NewFakeGateway creates an empty FakeGateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		prices: make(map[string][]decimal.NullDecimal),
		prev:   make(map[string]decimal.NullDecimal),
		series: make(map[string]models.PriceSeries),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// Name returns "fake".
func (f *FakeGateway) Name() string {
	return "fake"
}

// QueuePrices appends current prices for symbol. Each CurrentPrice call
// consumes one; the last one repeats.
func (f *FakeGateway) QueuePrices(symbol string, prices ...decimal.NullDecimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = append(f.prices[symbol], prices...)
}

// SetPreviousClose sets the previous close for symbol.
func (f *FakeGateway) SetPreviousClose(symbol string, v decimal.NullDecimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prev[symbol] = v
}

// SetSeries sets the history returned for symbol.
func (f *FakeGateway) SetSeries(series models.PriceSeries) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.series[series.Symbol] = series
}

// SetError makes every call for symbol fail with a ProviderError wrapping
// err. A nil err clears it.
func (f *FakeGateway) SetError(symbol string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, symbol)
		return
	}
	f.errs[symbol] = err
}

// Calls returns how many gateway calls were made for symbol.
func (f *FakeGateway) Calls(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

func (f *FakeGateway) begin(ctx context.Context, symbol, op string) error {
	f.calls[symbol]++
	if err := ctx.Err(); err != nil {
		return apperrors.NewProviderError(f.Name(), op, symbol, err)
	}
	if err, ok := f.errs[symbol]; ok {
		return apperrors.NewProviderError(f.Name(), op, symbol, err)
	}
	return nil
}

// CurrentPrice implements Gateway.
func (f *FakeGateway) CurrentPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, symbol, "current_price"); err != nil {
		return decimal.NullDecimal{}, err
	}
	queue := f.prices[symbol]
	if len(queue) == 0 {
		return decimal.NullDecimal{}, nil
	}
	v := queue[0]
	if len(queue) > 1 {
		f.prices[symbol] = queue[1:]
	}
	return v, nil
}

// PreviousClose implements Gateway.
func (f *FakeGateway) PreviousClose(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, symbol, "previous_close"); err != nil {
		return decimal.NullDecimal{}, err
	}
	return f.prev[symbol], nil
}

// History implements Gateway.
func (f *FakeGateway) History(ctx context.Context, req HistoryRequest) (models.PriceSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, req.Symbol, "history"); err != nil {
		return models.PriceSeries{Symbol: req.Symbol}, err
	}
	s, ok := f.series[req.Symbol]
	if !ok {
		return models.PriceSeries{Symbol: req.Symbol}, nil
	}
	points := append([]models.PricePoint(nil), s.Points...)
	return Resample(newSeries(req.Symbol, points, req.Start, req.End), req.Interval), nil
}
