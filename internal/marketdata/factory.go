package marketdata

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stock-tracker/internal/resilience"
	"stock-tracker/internal/store"
)

// Options configures the gateway stack built by New.
type Options struct {
	Provider string // yahoo, kite, polygon

	KiteAPIKey      string
	KiteAccessToken string
	KiteExchange    string
	PolygonAPIKey   string

	CallTimeout time.Duration
	Breaker     resilience.Config

	// Cache is nil when history caching is disabled.
	Cache       store.CandleStore
	CacheMaxAge time.Duration
}

// New builds the provider gateway for opts.Provider, wrapped with the
// history cache (when configured) and the timeout and breaker guard.
func New(opts Options, logger zerolog.Logger) (*GuardedGateway, error) {
	var (
		gw  Gateway
		err error
	)

	switch opts.Provider {
	case "", "yahoo":
		gw = NewYahooGateway(YahooConfig{Timeout: opts.CallTimeout})
	case "kite":
		gw, err = NewKiteGateway(KiteConfig{
			APIKey:      opts.KiteAPIKey,
			AccessToken: opts.KiteAccessToken,
			Exchange:    opts.KiteExchange,
		})
	case "polygon":
		gw, err = NewPolygonGateway(opts.PolygonAPIKey)
	default:
		return nil, fmt.Errorf("unknown market data provider %q", opts.Provider)
	}
	if err != nil {
		return nil, err
	}

	if opts.Cache != nil {
		gw = NewCachedGateway(gw, opts.Cache, opts.CacheMaxAge, logger)
	}

	breaker := opts.Breaker
	if breaker.FailureThreshold == 0 {
		breaker = resilience.DefaultConfig()
	}

	return NewGuardedGateway(gw, opts.CallTimeout, resilience.NewBreakers(breaker), logger), nil
}
