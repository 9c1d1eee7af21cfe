package adapters

import (
	"context"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/exchange"
	"github.com/ducminhle1904/binary-edge-bot/internal/logger"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
)

// binanceREST is the part of exchange.BinanceClient the feed uses
type binanceREST interface {
	GetTicker(ctx context.Context, symbol string) (*types.Ticker, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error)
}

// priceStream supplies streamed trades
type priceStream interface {
	Latest() (types.Ticker, bool)
	Run(ctx context.Context) error
}

// BinanceAdapter implements exchange.SpotFeed over Binance. Streamed trades
// are preferred while fresh, REST is the fallback.
type BinanceAdapter struct {
	rest         binanceREST
	stream       priceStream
	symbol       string
	intervalCode string
	interval     time.Duration
	maxStaleness time.Duration
	now          func() time.Time
}

var (
	_ exchange.SpotFeed = (*BinanceAdapter)(nil)
	_ exchange.Runner   = (*BinanceAdapter)(nil)
)

// NewBinanceAdapter creates the REST client and the trade stream
func NewBinanceAdapter(config exchange.FeedConfig, log *logger.Logger) (*BinanceAdapter, error) {
	rest := exchange.NewBinanceClient(config.Testnet)
	stream := exchange.NewTradeStream(
		exchange.BinanceTradeStreamURL(config.Symbol, config.Testnet),
		config.ReconnectInterval,
		log,
	)
	return newBinanceAdapter(rest, stream, config)
}

func newBinanceAdapter(rest binanceREST, stream priceStream, config exchange.FeedConfig) (*BinanceAdapter, error) {
	code, err := exchange.BinanceInterval(config.KlineInterval)
	if err != nil {
		return nil, convertConfigError(err)
	}

	interval := config.IntervalDuration()
	staleness := 2 * config.ReconnectInterval
	if staleness < 10*time.Second {
		staleness = 10 * time.Second
	}

	return &BinanceAdapter{
		rest:         rest,
		stream:       stream,
		symbol:       config.Symbol,
		intervalCode: code,
		interval:     interval,
		maxStaleness: staleness,
		now:          time.Now,
	}, nil
}

// GetName returns the exchange name
func (b *BinanceAdapter) GetName() string {
	return "Binance"
}

// Interval returns the candle length used for price history
func (b *BinanceAdapter) Interval() time.Duration {
	return b.interval
}

// Run drives the trade stream until ctx is cancelled
func (b *BinanceAdapter) Run(ctx context.Context) error {
	if b.stream == nil {
		<-ctx.Done()
		return nil
	}
	return b.stream.Run(ctx)
}

// LatestPrice returns the streamed price if recent enough, otherwise the
// REST ticker
func (b *BinanceAdapter) LatestPrice(ctx context.Context) (types.Ticker, error) {
	if b.stream != nil {
		if trade, ok := b.stream.Latest(); ok && b.now().Sub(trade.Timestamp) <= b.maxStaleness {
			return trade, nil
		}
	}

	ticker, err := b.rest.GetTicker(ctx, b.symbol)
	if err != nil {
		return types.Ticker{}, convertError(err, "binance", "latest_price")
	}
	return *ticker, nil
}

// PriceHistory retrieves enough candles to cover lookback, oldest first
func (b *BinanceAdapter) PriceHistory(ctx context.Context, lookback time.Duration) ([]types.OHLCV, error) {
	limit := exchange.CandlesFor(lookback, b.interval, 1000)

	candles, err := b.rest.GetKlines(ctx, b.symbol, b.intervalCode, limit)
	if err != nil {
		return nil, convertError(err, "binance", "price_history")
	}
	return candles, nil
}
