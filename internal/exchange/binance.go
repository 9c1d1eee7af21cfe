package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
)

const (
	BinanceMainnetURL = "https://api.binance.com"
	BinanceTestnetURL = "https://testnet.binance.vision"

	binanceMaxKlines = 1000
)

// BinanceClient is a read-only client for the Binance spot REST API
type BinanceClient struct {
	client  *http.Client
	baseURL string
}

// NewBinanceClient creates a client against mainnet or the spot testnet
func NewBinanceClient(testnet bool) *BinanceClient {
	baseURL := BinanceMainnetURL
	if testnet {
		baseURL = BinanceTestnetURL
	}
	return NewBinanceClientWithURL(baseURL)
}

// NewBinanceClientWithURL creates a client against an arbitrary base URL
func NewBinanceClientWithURL(baseURL string) *BinanceClient {
	return &BinanceClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
	}
}

func (b *BinanceClient) GetName() string {
	return "Binance"
}

// BinanceInterval converts a kline interval code in minutes ("1", "60", "D")
// to Binance notation ("1m", "1h", "1d")
func BinanceInterval(code string) (string, error) {
	switch code {
	case "1", "3", "5", "15", "30":
		return code + "m", nil
	case "60", "120", "240", "360", "720":
		minutes, _ := strconv.Atoi(code)
		return strconv.Itoa(minutes/60) + "h", nil
	case "D":
		return "1d", nil
	case "W":
		return "1w", nil
	}
	return "", fmt.Errorf("unsupported kline interval %q", code)
}

// GetTicker returns the 24h ticker for symbol
func (b *BinanceClient) GetTicker(ctx context.Context, symbol string) (*types.Ticker, error) {
	query := url.Values{"symbol": {symbol}}

	var tickerData struct {
		Symbol    string `json:"symbol"`
		Price     string `json:"lastPrice"`
		Volume    string `json:"volume"`
		Timestamp int64  `json:"closeTime"`
	}
	if err := b.get(ctx, "/api/v3/ticker/24hr", query, &tickerData); err != nil {
		return nil, fmt.Errorf("failed to get ticker: %w", err)
	}

	price, err := strconv.ParseFloat(tickerData.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("invalid last price %q for %s", tickerData.Price, symbol)
	}

	volume, err := strconv.ParseFloat(tickerData.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse volume: %w", err)
	}

	return &types.Ticker{
		Symbol:    tickerData.Symbol,
		Price:     price,
		Volume:    volume,
		Timestamp: time.UnixMilli(tickerData.Timestamp),
	}, nil
}

// GetKlines returns up to limit candles, oldest first
func (b *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	if limit <= 0 || limit > binanceMaxKlines {
		limit = binanceMaxKlines
	}

	query := url.Values{
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}

	var klinesData [][]interface{}
	if err := b.get(ctx, "/api/v3/klines", query, &klinesData); err != nil {
		return nil, fmt.Errorf("failed to get klines: %w", err)
	}

	klines := make([]types.OHLCV, 0, len(klinesData))
	for _, kline := range klinesData {
		if len(kline) < 6 {
			continue
		}

		openTime, ok := kline[0].(float64)
		if !ok {
			continue
		}

		candle := types.OHLCV{
			Open:      parseBinanceFloat(kline[1]),
			High:      parseBinanceFloat(kline[2]),
			Low:       parseBinanceFloat(kline[3]),
			Close:     parseBinanceFloat(kline[4]),
			Volume:    parseBinanceFloat(kline[5]),
			Timestamp: time.UnixMilli(int64(openTime)),
		}
		if candle.Close <= 0 {
			continue
		}
		klines = append(klines, candle)
	}

	return klines, nil
}

// Ping checks connectivity using the server time endpoint
func (b *BinanceClient) Ping(ctx context.Context) (time.Time, error) {
	var timeData struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := b.get(ctx, "/api/v3/time", nil, &timeData); err != nil {
		return time.Time{}, fmt.Errorf("failed to connect to Binance: %w", err)
	}
	return time.UnixMilli(timeData.ServerTime), nil
}

func (b *BinanceClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := b.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HTTPStatusError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// HTTPStatusError reports a non-200 response
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("API returned status %d", e.StatusCode)
}

// Retryable reports whether the status is worth retrying
func (e *HTTPStatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func parseBinanceFloat(v interface{}) float64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
