package strategy

import (
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/pricing"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"github.com/shopspring/decimal"
)

// Strategy turns a market snapshot into a trading decision
type Strategy interface {
	// Evaluate prices one binary market and decides whether to take a side
	Evaluate(in EvaluationInput) (*Decision, error)

	// GetName returns the name of the strategy
	GetName() string
}

// EvaluationInput is everything needed to evaluate one market
type EvaluationInput struct {
	Quote    types.MarketQuote
	Spot     float64
	Now      time.Time
	History  []types.OHLCV // Recent candles for realized volatility, oldest first
	Interval time.Duration // Candle length of History
	Balance  float64       // Bankroll to size against; 0 uses the configured bankroll
}

// VolatilitySource records where the volatility used for pricing came from
type VolatilitySource string

const (
	VolatilityRealized VolatilitySource = "realized"
	VolatilityDefault  VolatilitySource = "default"
)

// Decision represents a trading decision for one binary market
type Decision struct {
	MarketID  string
	Action    TradeAction
	Side      types.Side
	Reason    string
	Timestamp time.Time

	Spot         float64
	Strike       float64
	TimeToExpiry float64 // Years

	Volatility         float64
	VolatilitySource   VolatilitySource
	RealizedVolatility float64
	Pricing            pricing.PricingResult

	YesPrice float64
	NoPrice  float64
	YesEdge  float64
	NoEdge   float64

	// Set when a side clears the edge threshold
	Edge          float64
	MarketPrice   float64 // Price of the chosen side
	KellyFraction float64
	Amount        decimal.Decimal

	// Diagnostics at the chosen fraction
	ExpectedGrowth      float64
	CertaintyEquivalent float64
	DrawdownProbability float64
}

// FairValue returns the model price of the YES contract
func (d *Decision) FairValue() float64 {
	return d.Pricing.FairValue
}

// ShouldTrade reports whether the decision is to buy a side
func (d *Decision) ShouldTrade() bool {
	return d.Action == ActionBuy && d.Amount.IsPositive()
}

// TradeAction represents the type of trading action
type TradeAction int

const (
	ActionHold TradeAction = iota
	ActionBuy
)

func (ta TradeAction) String() string {
	switch ta {
	case ActionHold:
		return "HOLD"
	case ActionBuy:
		return "BUY"
	default:
		return "UNKNOWN"
	}
}
