package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stock-tracker/internal/errors"
	"stock-tracker/pkg/utils"
)

const chartBody = `{"chart":{"result":[{"meta":{"symbol":"AAPL","regularMarketPrice":190.5,"previousClose":187.25},
"timestamp":[1717372800,1717459200,1717545600],
"indicators":{"quote":[{"close":[180.0,null,182.5]}]}}],"error":null}}`

func newYahooTest(t *testing.T, handler http.HandlerFunc) *YahooGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gw := NewYahooGateway(YahooConfig{BaseURL: srv.URL + "/", Timeout: time.Second})
	gw.retry.InitialDelay = time.Millisecond
	return gw
}

func TestYahooGateway_Quote(t *testing.T) {
	gw := newYahooTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/AAPL"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(chartBody))
	})

	price, err := gw.CurrentPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	require.True(t, price.Valid)
	assert.Equal(t, "190.5", price.Decimal.String())

	prev, err := gw.PreviousClose(context.Background(), "AAPL")
	require.NoError(t, err)
	require.True(t, prev.Valid)
	assert.Equal(t, "187.25", prev.Decimal.String())
}

func TestYahooGateway_HistorySkipsNullCloses(t *testing.T) {
	gw := newYahooTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		w.Write([]byte(chartBody))
	})

	series, err := gw.History(context.Background(), HistoryRequest{
		Symbol:   "AAPL",
		Start:    time.Unix(1717372800, 0),
		End:      time.Unix(1717545600+1, 0),
		Interval: IntervalDaily,
	})
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())
	assert.Equal(t, "180", series.Points[0].Close.String())
	assert.Equal(t, "182.5", series.Points[1].Close.String())
}

func TestYahooGateway_UnknownSymbolIsNoData(t *testing.T) {
	gw := newYahooTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	})

	price, err := gw.CurrentPrice(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.False(t, price.Valid)

	series, err := gw.History(context.Background(), HistoryRequest{Symbol: "NOPE", Start: time.Now().AddDate(0, 0, -5), End: time.Now()})
	require.NoError(t, err)
	assert.True(t, series.IsEmpty())
}

func TestYahooGateway_ServerErrorRetriesThenFails(t *testing.T) {
	var hits int32
	gw := newYahooTest(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := gw.CurrentPrice(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrProviderError))

	var pe *apperrors.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "yahoo", pe.Provider)
	assert.Equal(t, "current_price", pe.Operation)
	assert.Equal(t, int32(gw.retry.MaxAttempts), atomic.LoadInt32(&hits))
}

func TestYahooGateway_BadBaseURLKeepsCause(t *testing.T) {
	gw := NewYahooGateway(YahooConfig{BaseURL: "http://bad\x7fhost/", Timeout: time.Second})

	_, err := gw.CurrentPrice(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrProviderError))
	assert.True(t, errors.Is(err, utils.ErrPermanent))
	assert.Contains(t, err.Error(), "invalid control character")
}
