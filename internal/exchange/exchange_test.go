package exchange

import (
	"context"
	"testing"
	"time"

	boterrors "github.com/ducminhle1904/binary-edge-bot/internal/errors"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandlesFor(t *testing.T) {
	tests := []struct {
		name     string
		lookback time.Duration
		interval time.Duration
		want     int
	}{
		{"exact hours", 24 * time.Hour, time.Hour, 25},
		{"partial candle rounds up", 90 * time.Minute, time.Hour, 3},
		{"tiny lookback", time.Second, time.Hour, 2},
		{"capped", 2000 * time.Hour, time.Hour, 1000},
		{"no interval", time.Hour, 0, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CandlesFor(tt.lookback, tt.interval, 1000))
		})
	}
}

func TestFeedConfig_Validate(t *testing.T) {
	valid := FeedConfig{Name: "Bybit", Symbol: "BTCUSDT", KlineInterval: "60"}
	require.NoError(t, valid.Validate())
	assert.Equal(t, "bybit", valid.NormalizedName())
	assert.Equal(t, time.Hour, valid.IntervalDuration())

	tests := []struct {
		name   string
		mutate func(*FeedConfig)
	}{
		{"missing name", func(c *FeedConfig) { c.Name = "" }},
		{"unknown exchange", func(c *FeedConfig) { c.Name = "kraken" }},
		{"missing symbol", func(c *FeedConfig) { c.Symbol = "" }},
		{"bad interval", func(c *FeedConfig) { c.KlineInterval = "2h" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)

			botErr, ok := boterrors.AsBotError(err)
			require.True(t, ok)
			assert.Equal(t, boterrors.ErrorCategoryConfiguration, botErr.Category)
		})
	}
}

func TestStaticQuoteSource(t *testing.T) {
	quotes := []types.MarketQuote{
		{ID: "btc-100k", Strike: 100000, YesPrice: 0.4, NoPrice: 0.6},
	}
	source := NewStaticQuoteSource(quotes)

	// caller mutations do not leak in
	quotes[0].YesPrice = 0.9

	got, err := source.Quotes(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.4, got[0].YesPrice)

	// nor do mutations of returned slices
	got[0].YesPrice = 0.1
	again, _ := source.Quotes(context.Background())
	assert.Equal(t, 0.4, again[0].YesPrice)

	source.Replace([]types.MarketQuote{{ID: "a"}, {ID: "b"}})
	got, _ = source.Quotes(context.Background())
	assert.Len(t, got, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = source.Quotes(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
