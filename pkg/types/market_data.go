package types

import "time"

type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Side is the outcome a binary market order buys
type Side string

const (
	SideYes  Side = "YES"
	SideNo   Side = "NO"
	SideNone Side = "NONE"
)

// MarketQuote is a snapshot of a binary "spot above strike at expiry" market
type MarketQuote struct {
	ID       string    `json:"id" mapstructure:"id"`
	Question string    `json:"question" mapstructure:"question"`
	Strike   float64   `json:"strike" mapstructure:"strike"`
	Expiry   time.Time `json:"expiry" mapstructure:"expiry"`
	YesPrice float64   `json:"yes_price" mapstructure:"yes_price"`
	NoPrice  float64   `json:"no_price" mapstructure:"no_price"`
}

// ClosePrices extracts close prices in candle order
func ClosePrices(candles []OHLCV) []float64 {
	prices := make([]float64, 0, len(candles))
	for _, c := range candles {
		prices = append(prices, c.Close)
	}
	return prices
}
