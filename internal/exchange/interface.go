package exchange

import (
	"context"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
)

// SpotFeed provides the underlying's spot price and recent history
type SpotFeed interface {
	GetName() string

	// LatestPrice returns the most recent traded price
	LatestPrice(ctx context.Context) (types.Ticker, error)

	// PriceHistory returns candles covering at least lookback, oldest first
	PriceHistory(ctx context.Context, lookback time.Duration) ([]types.OHLCV, error)

	// Interval is the candle length returned by PriceHistory
	Interval() time.Duration
}

// Runner is implemented by feeds with background work, such as a stream
type Runner interface {
	Run(ctx context.Context) error
}

// QuoteSource provides the current prices of binary markets
type QuoteSource interface {
	Quotes(ctx context.Context) ([]types.MarketQuote, error)
}

// CandlesFor returns how many candles of the given interval cover lookback,
// plus one so that the first return spans the whole window
func CandlesFor(lookback, interval time.Duration, max int) int {
	if interval <= 0 {
		return max
	}

	n := int((lookback+interval-1)/interval) + 1
	if n < 2 {
		n = 2
	}
	if n > max {
		n = max
	}
	return n
}
