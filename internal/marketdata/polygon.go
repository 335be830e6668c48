package marketdata

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	pmodels "github.com/polygon-io/client-go/rest/models"
	"github.com/shopspring/decimal"

	apperrors "stock-tracker/internal/errors"
	"stock-tracker/internal/models"
)

// PolygonGateway reads US equity prices from Polygon.io.
type PolygonGateway struct {
	client *polygon.Client
}

// NewPolygonGateway creates a PolygonGateway.
func NewPolygonGateway(apiKey string) (*PolygonGateway, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("polygon api_key: %w", apperrors.ErrNotConfigured)
	}
	return &PolygonGateway{client: polygon.New(apiKey)}, nil
}

// Name returns the provider name.
func (p *PolygonGateway) Name() string {
	return "polygon"
}

// CurrentPrice returns the last trade price.
func (p *PolygonGateway) CurrentPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	res, err := p.client.GetLastTrade(ctx, &pmodels.GetLastTradeParams{Ticker: symbol})
	if err != nil {
		return decimal.NullDecimal{}, apperrors.NewProviderError(p.Name(), "current_price", symbol, err)
	}
	price := res.Results.Price
	return nullFromFloat(&price), nil
}

// PreviousClose returns the previous day's adjusted close.
func (p *PolygonGateway) PreviousClose(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	params := pmodels.GetPreviousCloseAggParams{Ticker: symbol}.WithAdjusted(true)
	res, err := p.client.GetPreviousCloseAgg(ctx, params)
	if err != nil {
		return decimal.NullDecimal{}, apperrors.NewProviderError(p.Name(), "previous_close", symbol, err)
	}
	if len(res.Results) == 0 {
		return decimal.NullDecimal{}, nil
	}
	c := res.Results[0].Close
	return nullFromFloat(&c), nil
}

// History returns aggregate bars for [req.Start, req.End).
func (p *PolygonGateway) History(ctx context.Context, req HistoryRequest) (models.PriceSeries, error) {
	params := pmodels.ListAggsParams{
		Ticker:     req.Symbol,
		Multiplier: 1,
		Timespan:   polygonTimespan(req.Interval),
		From:       pmodels.Millis(req.Start),
		To:         pmodels.Millis(req.End.Add(-time.Millisecond)),
	}.WithOrder(pmodels.Asc).WithAdjusted(true)

	iter := p.client.ListAggs(ctx, params)

	var points []models.PricePoint
	for iter.Next() {
		agg := iter.Item()
		if agg.Close <= 0 {
			continue
		}
		points = append(points, models.PricePoint{
			Date:  time.Time(agg.Timestamp),
			Close: decimal.NewFromFloat(agg.Close),
		})
	}
	if err := iter.Err(); err != nil {
		return models.PriceSeries{Symbol: req.Symbol}, apperrors.NewProviderError(p.Name(), "history", req.Symbol, err)
	}

	return newSeries(req.Symbol, points, req.Start, req.End), nil
}

func polygonTimespan(interval Interval) pmodels.Timespan {
	switch interval {
	case IntervalWeekly:
		return pmodels.Week
	case IntervalMonthly:
		return pmodels.Month
	default:
		return pmodels.Day
	}
}
