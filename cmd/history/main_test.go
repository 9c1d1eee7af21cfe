package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/exchange"
	"github.com/ducminhle1904/binary-edge-bot/internal/logger"
	"github.com/ducminhle1904/binary-edge-bot/pkg/data"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeed struct {
	candles  []types.OHLCV
	err      error
	lookback time.Duration
}

func (f *stubFeed) GetName() string { return "stub" }
func (f *stubFeed) Interval() time.Duration { return time.Hour }
func (f *stubFeed) LatestPrice(ctx context.Context) (types.Ticker, error) {
	return types.Ticker{}, nil
}

func (f *stubFeed) PriceHistory(ctx context.Context, lookback time.Duration) ([]types.OHLCV, error) {
	f.lookback = lookback
	return f.candles, f.err
}

// useFeed swaps the feed factory for the duration of a test
func useFeed(t *testing.T, feed *stubFeed) *exchange.FeedConfig {
	t.Helper()
	var seen exchange.FeedConfig
	orig := newFeed
	newFeed = func(config exchange.FeedConfig, log *logger.Logger) (exchange.SpotFeed, error) {
		seen = config
		return feed, nil
	}
	t.Cleanup(func() { newFeed = orig })
	return &seen
}

// newestFirst returns hourly candles in the order exchanges page them
func newestFirst(n int) []types.OHLCV {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.OHLCV, n)
	for i := range out {
		price := 100.0 + float64(i%2)
		out[n-1-i] = types.OHLCV{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      price, High: price + 1, Low: price - 1, Close: price, Volume: 2,
		}
	}
	return out
}

func TestRun_SavesSortedHistory(t *testing.T) {
	feed := &stubFeed{candles: newestFirst(6)}
	seen := useFeed(t, feed)

	path := filepath.Join(t.TempDir(), "out", "eth.csv")
	var stdout, stderr bytes.Buffer
	err := run([]string{"-symbol", "ethusdt", "-exchange", "Binance", "-lookback", "5h", "-output", path}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", seen.Symbol)
	assert.Equal(t, "binance", seen.Name)
	assert.Equal(t, 5*time.Hour, feed.lookback)

	loaded, err := data.NewCSVProvider().LoadData(path)
	require.NoError(t, err)
	require.Len(t, loaded, 6)
	assert.NoError(t, data.NewDefaultDataFilter().ValidateTimeSequence(loaded))

	assert.Contains(t, stdout.String(), "ETHUSDT HISTORY (stub)")
}

func TestRun_JSONSummary(t *testing.T) {
	useFeed(t, &stubFeed{candles: newestFirst(4)})

	var stdout, stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "btc.csv")
	require.NoError(t, run([]string{"-json", "-output", path}, &stdout, &stderr))

	var decoded struct {
		Candles            int     `json:"candles"`
		High               float64 `json:"high"`
		RealizedVolatility float64 `json:"realized_volatility"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	assert.Equal(t, 4, decoded.Candles)
	assert.Equal(t, 102.0, decoded.High)
	assert.Greater(t, decoded.RealizedVolatility, 0.0)
}

func TestRun_FeedError(t *testing.T) {
	useFeed(t, &stubFeed{err: fmt.Errorf("connection refused")})

	var stdout, stderr bytes.Buffer
	err := run([]string{"-output", filepath.Join(t.TempDir(), "x.csv")}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to download")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRun_Validation(t *testing.T) {
	useFeed(t, &stubFeed{})

	var stdout, stderr bytes.Buffer
	err := run([]string{"-timeout", "0s"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout must be positive")

	err = run([]string{"-exchange", "kraken"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")

	err = run([]string{"-interval", "7"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported kline interval")
}
