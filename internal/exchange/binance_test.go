package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBinanceServer(t *testing.T, handler http.HandlerFunc) *BinanceClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewBinanceClientWithURL(server.URL)
}

func TestBinanceClient_GetTicker(t *testing.T) {
	client := newBinanceServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"BTCUSDT","lastPrice":"97123.45","volume":"812.5","closeTime":1700000000000}`))
	})

	ticker, err := client.GetTicker(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", ticker.Symbol)
	assert.Equal(t, 97123.45, ticker.Price)
	assert.Equal(t, 812.5, ticker.Volume)
	assert.Equal(t, int64(1700000000000), ticker.Timestamp.UnixMilli())
}

func TestBinanceClient_GetTickerErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		client := newBinanceServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := client.GetTicker(context.Background(), "BTCUSDT")
		require.Error(t, err)

		var statusErr *HTTPStatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
		assert.True(t, statusErr.Retryable())
	})

	t.Run("zero price", func(t *testing.T) {
		client := newBinanceServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"symbol":"BTCUSDT","lastPrice":"0","volume":"1","closeTime":1}`))
		})
		_, err := client.GetTicker(context.Background(), "BTCUSDT")
		assert.ErrorContains(t, err, "invalid last price")
	})

	t.Run("garbage", func(t *testing.T) {
		client := newBinanceServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		})
		_, err := client.GetTicker(context.Background(), "BTCUSDT")
		assert.ErrorContains(t, err, "failed to decode")
	})
}

func TestBinanceClient_GetKlines(t *testing.T) {
	client := newBinanceServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		w.Write([]byte(`[
			[1700000000000,"100","102","99","101","12",1700003599999,"0",1,"0","0","0"],
			[1700003600000,"101","103","100","102","11",1700007199999,"0",1,"0","0","0"],
			[1700007200000,"102","104"],
			[1700010800000,"102","104","101","0","10",1700014399999,"0",1,"0","0","0"]
		]`))
	})

	candles, err := client.GetKlines(context.Background(), "BTCUSDT", "1h", 5000)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 101.0, candles[0].Close)
	assert.Equal(t, 102.0, candles[1].Close)
	assert.Equal(t, 103.0, candles[1].High)
	assert.Equal(t, int64(1700003600000), candles[1].Timestamp.UnixMilli())
}

func TestBinanceClient_Ping(t *testing.T) {
	client := newBinanceServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"serverTime":1700000000000}`))
	})

	serverTime, err := client.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1700000000000), serverTime)
}

func TestBinanceClient_ContextCancelled(t *testing.T) {
	client := newBinanceServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetTicker(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBinanceInterval(t *testing.T) {
	tests := map[string]string{
		"1":   "1m",
		"15":  "15m",
		"60":  "1h",
		"240": "4h",
		"720": "12h",
		"D":   "1d",
	}
	for code, want := range tests {
		got, err := BinanceInterval(code)
		require.NoError(t, err, code)
		assert.Equal(t, want, got)
	}

	_, err := BinanceInterval("7")
	assert.Error(t, err)
}
