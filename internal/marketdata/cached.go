package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stock-tracker/internal/logging"
	"stock-tracker/internal/models"
	"stock-tracker/internal/store"
)

// DefaultCacheMaxAge is how long a cached history stays fresh.
const DefaultCacheMaxAge = 15 * time.Minute

// CachedGateway serves History from a candle store when a fresh fetch covered
// the requested range, and falls back to a stale copy when the provider fails. Current
// prices always go to the provider.
type CachedGateway struct {
	inner  Gateway
	store  store.CandleStore
	maxAge time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewCachedGateway wraps inner with a history cache.
func NewCachedGateway(inner Gateway, candles store.CandleStore, maxAge time.Duration, logger zerolog.Logger) *CachedGateway {
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	return &CachedGateway{
		inner:  inner,
		store:  candles,
		maxAge: maxAge,
		logger: logging.WithComponent(logger, "cache"),
		now:    time.Now,
	}
}

// Name returns the wrapped provider's name.
func (c *CachedGateway) Name() string {
	return c.inner.Name()
}

// CurrentPrice implements Gateway.
func (c *CachedGateway) CurrentPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	return c.inner.CurrentPrice(ctx, symbol)
}

// PreviousClose implements Gateway.
func (c *CachedGateway) PreviousClose(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	return c.inner.PreviousClose(ctx, symbol)
}

// History implements Gateway.
func (c *CachedGateway) History(ctx context.Context, req HistoryRequest) (models.PriceSeries, error) {
	logger := logging.WithSymbol(c.logger, req.Symbol)
	interval := string(req.Interval)

	cached, err := c.store.GetCandles(ctx, req.Symbol, interval, req.Start, req.End)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read cached history")
		cached = nil
	}

	if len(cached) > 0 {
		fetched, err := c.store.GetCandlesFreshness(ctx, req.Symbol, interval, req.Start, req.End)
		if err == nil && c.now().Sub(fetched) < c.maxAge {
			return newSeries(req.Symbol, cached, req.Start, req.End), nil
		}
	}

	series, err := c.inner.History(ctx, req)
	if err != nil {
		if len(cached) > 0 {
			logger.Warn().Err(err).Int("points", len(cached)).Msg("Provider failed, serving stale history")
			return newSeries(req.Symbol, cached, req.Start, req.End), nil
		}
		return series, err
	}

	if err := c.store.SaveCandles(ctx, req.Symbol, interval, req.Start, req.End, series.Points); err != nil {
		logger.Warn().Err(err).Msg("Failed to cache history")
	}

	return series, nil
}
