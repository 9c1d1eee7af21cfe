package risk

import (
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"github.com/shopspring/decimal"
)

// Order represents an order for one outcome of a binary market
type Order struct {
	MarketID string
	Side     types.Side
	Amount   decimal.Decimal // Notional in USD
	Price    float64         // Contract price in (0, 1)
}

// Portfolio represents the current portfolio state
type Portfolio struct {
	Balance       float64
	PeakBalance   float64
	DailyPnL      float64
	OpenPositions int
}

// Drawdown returns the fractional decline from the peak balance
func (p *Portfolio) Drawdown() float64 {
	if p.PeakBalance <= 0 || p.Balance >= p.PeakBalance {
		return 0
	}
	return (p.PeakBalance - p.Balance) / p.PeakBalance
}

// Signal is a sized trading opportunity on a binary market
type Signal struct {
	MarketID string
	Side     types.Side
	Fraction float64 // Kelly fraction of bankroll
	Price    float64
}

// Limits holds the position and loss limits enforced by the risk manager
type Limits struct {
	MaxPositionSizeUSD float64
	MinTradeSizeUSD    float64
	MaxDailyLossUSD    float64
	MaxDrawdownPercent float64
	MaxOpenPositions   int
}

// DefaultLimits returns conservative default limits
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSizeUSD: 1000.0,
		MinTradeSizeUSD:    10.0,
		MaxDailyLossUSD:    5000.0,
		MaxDrawdownPercent: 0.10,
		MaxOpenPositions:   10,
	}
}
