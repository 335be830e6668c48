package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	apperrors "stock-tracker/internal/errors"
	"stock-tracker/internal/models"
)

// kiteClient is the subset of the Kite Connect client used here.
type kiteClient interface {
	GetQuote(instruments ...string) (kiteconnect.Quote, error)
	GetInstruments() (kiteconnect.Instruments, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

// KiteGateway reads prices from Zerodha Kite Connect.
type KiteGateway struct {
	client   kiteClient
	exchange string

	mu     sync.RWMutex
	tokens map[string]int
}

// KiteConfig holds configuration for KiteGateway.
type KiteConfig struct {
	APIKey      string
	AccessToken string
	Exchange    string
}

// NewKiteGateway creates a KiteGateway. Both credentials are required.
func NewKiteGateway(cfg KiteConfig) (*KiteGateway, error) {
	if cfg.APIKey == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("kite api_key and access_token: %w", apperrors.ErrNotConfigured)
	}
	client := kiteconnect.New(cfg.APIKey)
	client.SetAccessToken(cfg.AccessToken)
	return newKiteGateway(client, cfg.Exchange), nil
}

func newKiteGateway(client kiteClient, exchange string) *KiteGateway {
	if exchange == "" {
		exchange = "NSE"
	}
	return &KiteGateway{
		client:   client,
		exchange: exchange,
		tokens:   make(map[string]int),
	}
}

// Name returns the provider name.
func (k *KiteGateway) Name() string {
	return "kite"
}

func (k *KiteGateway) key(symbol string) string {
	return fmt.Sprintf("%s:%s", k.exchange, symbol)
}

// quote returns ok=false when the exchange has no quote for symbol.
func (k *KiteGateway) quote(symbol, op string) (lastPrice, prevClose float64, ok bool, err error) {
	key := k.key(symbol)
	quotes, err := k.client.GetQuote(key)
	if err != nil {
		return 0, 0, false, apperrors.NewProviderError(k.Name(), op, symbol, err)
	}
	q, found := quotes[key]
	if !found {
		return 0, 0, false, nil
	}
	return q.LastPrice, q.OHLC.Close, true, nil
}

// CurrentPrice returns the last traded price.
func (k *KiteGateway) CurrentPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.NullDecimal{}, apperrors.NewProviderError(k.Name(), "current_price", symbol, err)
	}
	ltp, _, ok, err := k.quote(symbol, "current_price")
	if err != nil || !ok {
		return decimal.NullDecimal{}, err
	}
	return nullFromFloat(&ltp), nil
}

// PreviousClose returns the previous session close reported with the quote.
func (k *KiteGateway) PreviousClose(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.NullDecimal{}, apperrors.NewProviderError(k.Name(), "previous_close", symbol, err)
	}
	_, prev, ok, err := k.quote(symbol, "previous_close")
	if err != nil || !ok {
		return decimal.NullDecimal{}, err
	}
	return nullFromFloat(&prev), nil
}

// History returns daily candles, resampled for weekly and monthly
// intervals since Kite only serves minute through day bars.
func (k *KiteGateway) History(ctx context.Context, req HistoryRequest) (models.PriceSeries, error) {
	empty := models.PriceSeries{Symbol: req.Symbol}
	if err := ctx.Err(); err != nil {
		return empty, apperrors.NewProviderError(k.Name(), "history", req.Symbol, err)
	}

	token, ok, err := k.instrumentToken(req.Symbol)
	if err != nil {
		return empty, apperrors.NewProviderError(k.Name(), "history", req.Symbol, err)
	}
	if !ok {
		return empty, nil
	}

	// toDate is inclusive on Kite's side
	data, err := k.client.GetHistoricalData(token, "day", req.Start, req.End.Add(-time.Second), false, false)
	if err != nil {
		return empty, apperrors.NewProviderError(k.Name(), "history", req.Symbol, err)
	}

	points := make([]models.PricePoint, 0, len(data))
	for _, d := range data {
		if d.Close <= 0 {
			continue
		}
		points = append(points, models.PricePoint{
			Date:  d.Date.Time,
			Close: decimal.NewFromFloat(d.Close),
		})
	}

	series := newSeries(req.Symbol, points, req.Start, req.End)
	return Resample(series, req.Interval), nil
}

// instrumentToken resolves and caches the instrument token for symbol.
func (k *KiteGateway) instrumentToken(symbol string) (int, bool, error) {
	key := k.key(symbol)

	k.mu.RLock()
	token, ok := k.tokens[key]
	k.mu.RUnlock()
	if ok {
		return token, true, nil
	}

	instruments, err := k.client.GetInstruments()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get instruments: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for _, inst := range instruments {
		if inst.Exchange != k.exchange {
			continue
		}
		k.tokens[fmt.Sprintf("%s:%s", inst.Exchange, inst.Tradingsymbol)] = int(inst.InstrumentToken)
	}

	token, ok = k.tokens[key]
	return token, ok, nil
}
