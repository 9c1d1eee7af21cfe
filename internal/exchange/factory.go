package exchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/errors"
)

// FeedConfig holds configuration for creating a spot feed
type FeedConfig struct {
	Name              string        `json:"name"` // bybit or binance
	Symbol            string        `json:"symbol"`
	Category          string        `json:"category"`       // Bybit category
	KlineInterval     string        `json:"kline_interval"` // Bybit interval code, minutes
	APIKey            string        `json:"api_key"`
	APISecret         string        `json:"api_secret"`
	Testnet           bool          `json:"testnet"` // Use testnet infrastructure
	Demo              bool          `json:"demo"`    // Use demo trading (paper trading)
	ReconnectInterval time.Duration `json:"reconnect_interval"`
}

// SupportedExchanges returns the names accepted in FeedConfig.Name
func SupportedExchanges() []string {
	return []string{"bybit", "binance"}
}

// NormalizedName returns the lower-cased exchange name
func (c FeedConfig) NormalizedName() string {
	return strings.ToLower(strings.TrimSpace(c.Name))
}

// Validate validates the feed configuration
func (c FeedConfig) Validate() error {
	if c.Name == "" {
		return errors.NewConfigurationError("exchange", "validate", "exchange name is required")
	}

	supported := false
	for _, name := range SupportedExchanges() {
		if c.NormalizedName() == name {
			supported = true
		}
	}
	if !supported {
		return errors.NewConfigurationError("exchange", "validate",
			fmt.Sprintf("exchange '%s' is not supported, supported exchanges: %v", c.Name, SupportedExchanges()))
	}

	if c.Symbol == "" {
		return errors.NewConfigurationError("exchange", "validate", "symbol is required")
	}

	if _, ok := klineMinutes[c.KlineInterval]; !ok {
		return errors.NewConfigurationError("exchange", "validate",
			fmt.Sprintf("unsupported kline interval %q", c.KlineInterval))
	}

	return nil
}

// klineMinutes maps the shared interval codes to minutes
var klineMinutes = map[string]int{
	"1": 1, "3": 3, "5": 5, "15": 15, "30": 30,
	"60": 60, "120": 120, "240": 240, "360": 360, "720": 720,
	"D": 1440,
}

// IntervalDuration returns the configured candle length
func (c FeedConfig) IntervalDuration() time.Duration {
	return time.Duration(klineMinutes[c.KlineInterval]) * time.Minute
}
