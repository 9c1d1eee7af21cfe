package bybit

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// KlineInterval represents the time interval for kline data
type KlineInterval string

const (
	Interval1m  KlineInterval = "1"
	Interval3m  KlineInterval = "3"
	Interval5m  KlineInterval = "5"
	Interval15m KlineInterval = "15"
	Interval30m KlineInterval = "30"
	Interval1h  KlineInterval = "60"
	Interval2h  KlineInterval = "120"
	Interval4h  KlineInterval = "240"
	Interval6h  KlineInterval = "360"
	Interval12h KlineInterval = "720"
	Interval1d  KlineInterval = "D"
	Interval1w  KlineInterval = "W"
)

var intervalDurations = map[KlineInterval]time.Duration{
	Interval1m:  time.Minute,
	Interval3m:  3 * time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval2h:  2 * time.Hour,
	Interval4h:  4 * time.Hour,
	Interval6h:  6 * time.Hour,
	Interval12h: 12 * time.Hour,
	Interval1d:  24 * time.Hour,
	Interval1w:  7 * 24 * time.Hour,
}

// Duration returns the candle length, or 0 for an unknown interval
func (i KlineInterval) Duration() time.Duration {
	return intervalDurations[i]
}

// ParseKlineInterval validates a Bybit interval code
func ParseKlineInterval(s string) (KlineInterval, error) {
	interval := KlineInterval(s)
	if interval.Duration() == 0 {
		return "", fmt.Errorf("unsupported kline interval %q", s)
	}
	return interval, nil
}

const maxKlineLimit = 1000

// Kline represents a single kline/candlestick data point
type Kline struct {
	StartTime  time.Time
	OpenPrice  float64
	HighPrice  float64
	LowPrice   float64
	ClosePrice float64
	Volume     float64
	Turnover   float64
}

// KlineParams holds parameters for fetching kline data
type KlineParams struct {
	Category string        // "spot", "linear", "inverse"
	Symbol   string        // Trading pair symbol (e.g., "BTCUSDT")
	Interval KlineInterval // Time interval
	Start    *time.Time    // Start time (optional)
	End      *time.Time    // End time (optional)
	Limit    int           // Number of records to return (max 1000, default 200)
}

// Ticker is the latest trade summary for a symbol
type Ticker struct {
	Symbol    string
	LastPrice float64
	BidPrice  float64
	AskPrice  float64
	Volume24h float64
	Time      time.Time
}

// GetKlines fetches candles from Bybit in ascending time order
func (c *Client) GetKlines(ctx context.Context, params KlineParams) ([]Kline, error) {
	if params.Category == "" {
		params.Category = "spot"
	}
	if params.Limit == 0 {
		params.Limit = 200
	}
	if params.Limit > maxKlineLimit {
		params.Limit = maxKlineLimit
	}

	reqParams := map[string]interface{}{
		"category": params.Category,
		"symbol":   params.Symbol,
		"interval": string(params.Interval),
		"limit":    params.Limit,
	}

	// Add optional time filters
	if params.Start != nil {
		reqParams["start"] = params.Start.UnixMilli()
	}
	if params.End != nil {
		reqParams["end"] = params.End.UnixMilli()
	}

	var klines []Kline
	err := c.Retry(ctx, func() error {
		result, err := c.market.GetMarketKline(ctx, reqParams)
		if err != nil {
			return fmt.Errorf("failed to get klines: %w", err)
		}

		klines, err = parseKlineResponse(result)
		return err
	})
	if err != nil {
		return nil, WrapAPIError("get klines", err)
	}

	return klines, nil
}

// GetTicker fetches the latest ticker for a symbol
func (c *Client) GetTicker(ctx context.Context, category, symbol string) (*Ticker, error) {
	if category == "" {
		category = "spot"
	}

	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	var ticker *Ticker
	err := c.Retry(ctx, func() error {
		result, err := c.market.GetMarketTickers(ctx, params)
		if err != nil {
			return fmt.Errorf("failed to get ticker: %w", err)
		}

		ticker, err = parseTickerResponse(result)
		return err
	})
	if err != nil {
		return nil, WrapAPIError("get ticker", err)
	}

	return ticker, nil
}

// GetLatestPrice gets the latest price for a symbol
func (c *Client) GetLatestPrice(ctx context.Context, category, symbol string) (float64, error) {
	ticker, err := c.GetTicker(ctx, category, symbol)
	if err != nil {
		return 0, err
	}
	return ticker.LastPrice, nil
}

// parseKlineResponse parses the API response into Kline structs, oldest first
func parseKlineResponse(response interface{}) ([]Kline, error) {
	var result klineResult
	if err := decodeResult(response, &result); err != nil {
		return nil, err
	}

	klines := make([]Kline, 0, len(result.List))
	for _, item := range result.List {
		if len(item) < 7 {
			continue // Skip incomplete data
		}

		// Bybit kline format: [startTime, openPrice, highPrice, lowPrice, closePrice, volume, turnover]
		klines = append(klines, Kline{
			StartTime:  parseTimestamp(item[0]),
			OpenPrice:  parseFloat64(item[1]),
			HighPrice:  parseFloat64(item[2]),
			LowPrice:   parseFloat64(item[3]),
			ClosePrice: parseFloat64(item[4]),
			Volume:     parseFloat64(item[5]),
			Turnover:   parseFloat64(item[6]),
		})
	}

	// Bybit returns newest first
	sort.SliceStable(klines, func(i, j int) bool {
		return klines[i].StartTime.Before(klines[j].StartTime)
	})

	return klines, nil
}

// parseTickerResponse extracts the first ticker from the response
func parseTickerResponse(response interface{}) (*Ticker, error) {
	var result tickerResult
	if err := decodeResult(response, &result); err != nil {
		return nil, err
	}

	if len(result.List) == 0 {
		return nil, fmt.Errorf("no ticker data found")
	}

	t := result.List[0]
	price := parseFloat64(t.LastPrice)
	if price <= 0 {
		return nil, fmt.Errorf("invalid last price %q for %s", t.LastPrice, t.Symbol)
	}

	return &Ticker{
		Symbol:    t.Symbol,
		LastPrice: price,
		BidPrice:  parseFloat64(t.Bid1Price),
		AskPrice:  parseFloat64(t.Ask1Price),
		Volume24h: parseFloat64(t.Volume24h),
		Time:      time.Now(),
	}, nil
}
