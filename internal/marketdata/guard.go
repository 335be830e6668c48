package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "stock-tracker/internal/errors"
	"stock-tracker/internal/logging"
	"stock-tracker/internal/models"
	"stock-tracker/internal/resilience"
)

// GuardedGateway bounds every call with a timeout and a per-symbol circuit
// breaker, so one failing symbol never stalls the others.
type GuardedGateway struct {
	inner    Gateway
	timeout  time.Duration
	breakers *resilience.Breakers
	logger   zerolog.Logger
}

// NewGuardedGateway wraps inner.
func NewGuardedGateway(inner Gateway, timeout time.Duration, breakers *resilience.Breakers, logger zerolog.Logger) *GuardedGateway {
	if breakers == nil {
		breakers = resilience.NewBreakers(resilience.DefaultConfig())
	}
	return &GuardedGateway{
		inner:    inner,
		timeout:  timeout,
		breakers: breakers,
		logger:   logging.WithComponent(logger, "marketdata"),
	}
}

// Name returns the wrapped provider's name.
func (g *GuardedGateway) Name() string {
	return g.inner.Name()
}

// Breakers exposes the per-symbol breakers for status reporting.
func (g *GuardedGateway) Breakers() *resilience.Breakers {
	return g.breakers
}

// CurrentPrice implements Gateway.
func (g *GuardedGateway) CurrentPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	return guard(g, ctx, symbol, "current_price", func(ctx context.Context) (decimal.NullDecimal, error) {
		return g.inner.CurrentPrice(ctx, symbol)
	})
}

// PreviousClose implements Gateway.
func (g *GuardedGateway) PreviousClose(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	return guard(g, ctx, symbol, "previous_close", func(ctx context.Context) (decimal.NullDecimal, error) {
		return g.inner.PreviousClose(ctx, symbol)
	})
}

// History implements Gateway.
func (g *GuardedGateway) History(ctx context.Context, req HistoryRequest) (models.PriceSeries, error) {
	series, err := guard(g, ctx, req.Symbol, "history", func(ctx context.Context) (models.PriceSeries, error) {
		return g.inner.History(ctx, req)
	})
	if err != nil {
		return models.PriceSeries{Symbol: req.Symbol}, err
	}
	return series, nil
}

func guard[T any](g *GuardedGateway, ctx context.Context, symbol, op string, fn func(context.Context) (T, error)) (T, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	v, err := resilience.Call(ctx, g.breakers.For(g.inner.Name()+":"+symbol), fn)
	logging.LogAPICall(logging.WithSymbol(g.logger, symbol), g.inner.Name(), op, time.Since(start), err)

	if err == nil {
		return v, nil
	}
	if errors.Is(err, apperrors.ErrProviderError) {
		return v, err
	}

	// Timeouts and open circuits surface as provider failures.
	if errors.Is(err, context.DeadlineExceeded) {
		err = errors.Join(apperrors.ErrTimeout, err)
	}
	return v, apperrors.NewProviderError(g.inner.Name(), op, symbol, err)
}
