package adapters

import (
	"context"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/errors"
	"github.com/ducminhle1904/binary-edge-bot/internal/exchange"
	"github.com/ducminhle1904/binary-edge-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
)

// bybitMarket is the part of bybit.Client the feed uses
type bybitMarket interface {
	GetTicker(ctx context.Context, category, symbol string) (*bybit.Ticker, error)
	GetKlines(ctx context.Context, params bybit.KlineParams) ([]bybit.Kline, error)
	GetEnvironment() string
}

// BybitAdapter implements exchange.SpotFeed over Bybit market data
type BybitAdapter struct {
	client   bybitMarket
	symbol   string
	category string
	interval bybit.KlineInterval
}

var _ exchange.SpotFeed = (*BybitAdapter)(nil)

// NewBybitAdapter creates a new Bybit adapter instance
func NewBybitAdapter(config exchange.FeedConfig) (*BybitAdapter, error) {
	client := bybit.NewClient(bybit.Config{
		APIKey:    config.APIKey,
		APISecret: config.APISecret,
		Testnet:   config.Testnet,
		Demo:      config.Demo,
	})
	return newBybitAdapter(client, config)
}

func newBybitAdapter(client bybitMarket, config exchange.FeedConfig) (*BybitAdapter, error) {
	interval, err := bybit.ParseKlineInterval(config.KlineInterval)
	if err != nil {
		return nil, errors.NewConfigurationError("bybit", "new_adapter", err.Error())
	}

	category := config.Category
	if category == "" {
		category = "spot"
	}

	return &BybitAdapter{
		client:   client,
		symbol:   config.Symbol,
		category: category,
		interval: interval,
	}, nil
}

// GetName returns the exchange name
func (b *BybitAdapter) GetName() string {
	return "Bybit"
}

// GetEnvironment returns the current environment string
func (b *BybitAdapter) GetEnvironment() string {
	return b.client.GetEnvironment()
}

// Interval returns the candle length used for price history
func (b *BybitAdapter) Interval() time.Duration {
	return b.interval.Duration()
}

// LatestPrice retrieves the latest traded price of the configured symbol
func (b *BybitAdapter) LatestPrice(ctx context.Context) (types.Ticker, error) {
	ticker, err := b.client.GetTicker(ctx, b.category, b.symbol)
	if err != nil {
		return types.Ticker{}, convertError(err, "bybit", "latest_price")
	}

	return types.Ticker{
		Symbol:    ticker.Symbol,
		Price:     ticker.LastPrice,
		Volume:    ticker.Volume24h,
		Timestamp: ticker.Time,
	}, nil
}

// PriceHistory retrieves enough candles to cover lookback, oldest first
func (b *BybitAdapter) PriceHistory(ctx context.Context, lookback time.Duration) ([]types.OHLCV, error) {
	limit := exchange.CandlesFor(lookback, b.Interval(), 1000)

	klines, err := b.client.GetKlines(ctx, bybit.KlineParams{
		Category: b.category,
		Symbol:   b.symbol,
		Interval: b.interval,
		Limit:    limit,
	})
	if err != nil {
		return nil, convertError(err, "bybit", "price_history")
	}

	candles := make([]types.OHLCV, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, types.OHLCV{
			Open:      k.OpenPrice,
			High:      k.HighPrice,
			Low:       k.LowPrice,
			Close:     k.ClosePrice,
			Volume:    k.Volume,
			Timestamp: k.StartTime,
		})
	}
	return candles, nil
}

// convertError maps exchange errors onto bot error categories. Anything
// not recognised as a transport or rate-limit failure is market data.
func convertError(err error, component, operation string) error {
	if err == nil {
		return nil
	}

	if bybit.IsRateLimitError(err) {
		return errors.WrapError(err, errors.ErrorCategoryRateLimit, component, operation)
	}

	botErr := errors.CategorizeError(err, component, operation)
	if botErr.Category == errors.ErrorCategoryTemporary || botErr.Category == errors.ErrorCategoryValidation {
		return errors.NewMarketDataError(component, operation, err)
	}
	return botErr
}
