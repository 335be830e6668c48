package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	apperrors "stock-tracker/internal/errors"
	"stock-tracker/internal/models"
	"stock-tracker/pkg/utils"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// YahooGateway reads the public Yahoo Finance chart API.
type YahooGateway struct {
	baseURL string
	client  *http.Client
	retry   utils.RetryConfig
}

// YahooConfig holds configuration for YahooGateway.
type YahooConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewYahooGateway creates a new YahooGateway.
func NewYahooGateway(cfg YahooConfig) *YahooGateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultYahooBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	retry := utils.DefaultRetryConfig()
	retry.Retryable = isRetryableHTTP
	return &YahooGateway{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		retry:   retry,
	}
}

// Name returns the provider name.
func (y *YahooGateway) Name() string {
	return "yahoo"
}

type yahooChartResponse struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooChartResult struct {
	Meta struct {
		Symbol             string   `json:"symbol"`
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
		PreviousClose      *float64 `json:"previousClose"`
		ChartPreviousClose *float64 `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}

func isRetryableHTTP(err error) bool {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// fetch returns nil when the symbol has no data.
func (y *YahooGateway) fetch(ctx context.Context, symbol string, params url.Values) (*yahooChartResult, error) {
	endpoint := y.baseURL + url.PathEscape(symbol) + "?" + params.Encode()

	return utils.RetryWithResult(ctx, y.retry, func() (*yahooChartResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", errors.Join(err, utils.ErrPermanent))
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; stock-tracker/1.0)")
		req.Header.Set("Accept", "application/json")

		resp, err := y.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		// Yahoo answers 404 with a JSON error body for unknown symbols
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
			return nil, &httpStatusError{status: resp.StatusCode}
		}

		var body yahooChartResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("decoding chart response: %w", err)
		}
		if body.Chart.Error != nil && body.Chart.Error.Code == "Not Found" {
			return nil, nil
		}
		if body.Chart.Error != nil {
			return nil, fmt.Errorf("%s: %s: %w", body.Chart.Error.Code, body.Chart.Error.Description, utils.ErrPermanent)
		}
		if len(body.Chart.Result) == 0 {
			return nil, nil
		}
		return &body.Chart.Result[0], nil
	})
}

func (y *YahooGateway) quoteMeta(ctx context.Context, symbol, op string) (*yahooChartResult, error) {
	res, err := y.fetch(ctx, symbol, url.Values{
		"range":          {"1d"},
		"interval":       {"1d"},
		"includePrePost": {"false"},
	})
	if err != nil {
		return nil, apperrors.NewProviderError(y.Name(), op, symbol, err)
	}
	return res, nil
}

// CurrentPrice returns the latest regular-market price.
func (y *YahooGateway) CurrentPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	res, err := y.quoteMeta(ctx, symbol, "current_price")
	if err != nil || res == nil {
		return decimal.NullDecimal{}, err
	}
	return nullFromFloat(res.Meta.RegularMarketPrice), nil
}

// PreviousClose returns the previous trading day's close.
func (y *YahooGateway) PreviousClose(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	res, err := y.quoteMeta(ctx, symbol, "previous_close")
	if err != nil || res == nil {
		return decimal.NullDecimal{}, err
	}
	if v := nullFromFloat(res.Meta.PreviousClose); v.Valid {
		return v, nil
	}
	return nullFromFloat(res.Meta.ChartPreviousClose), nil
}

// History returns closes for [req.Start, req.End).
func (y *YahooGateway) History(ctx context.Context, req HistoryRequest) (models.PriceSeries, error) {
	interval := req.Interval
	if interval == "" {
		interval = IntervalDaily
	}

	res, err := y.fetch(ctx, req.Symbol, url.Values{
		"period1":  {strconv.FormatInt(req.Start.Unix(), 10)},
		"period2":  {strconv.FormatInt(req.End.Unix(), 10)},
		"interval": {string(interval)},
		"events":   {"history"},
	})
	if err != nil {
		return models.PriceSeries{Symbol: req.Symbol}, apperrors.NewProviderError(y.Name(), "history", req.Symbol, err)
	}
	if res == nil || len(res.Indicators.Quote) == 0 {
		return models.PriceSeries{Symbol: req.Symbol}, nil
	}

	closes := res.Indicators.Quote[0].Close
	points := make([]models.PricePoint, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, models.PricePoint{
			Date:  time.Unix(ts, 0).UTC(),
			Close: decimal.NewFromFloat(*closes[i]),
		})
	}

	return newSeries(req.Symbol, points, req.Start, req.End), nil
}

func nullFromFloat(v *float64) decimal.NullDecimal {
	if v == nil || *v <= 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v))
}
