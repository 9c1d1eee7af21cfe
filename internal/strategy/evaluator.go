package strategy

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/ducminhle1904/binary-edge-bot/internal/errors"
	"github.com/ducminhle1904/binary-edge-bot/internal/pricing"
	"github.com/ducminhle1904/binary-edge-bot/internal/risk"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"github.com/shopspring/decimal"
)

const component = "strategy"

// EvaluatorConfig holds the decision thresholds and model inputs
type EvaluatorConfig struct {
	MinEdgeThreshold  float64 // Minimum edge, in probability points, to take a side
	RiskFreeRate      float64
	DefaultVolatility float64 // Used when no usable volatility estimate exists
	RiskAversion      float64 // For the certainty equivalent diagnostic
	DrawdownThreshold float64 // For the drawdown probability diagnostic
	BankrollUSD       float64 // Sizing bankroll when the input carries none
}

// DefaultEvaluatorConfig returns the default decision settings
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		MinEdgeThreshold:  0.02,
		RiskFreeRate:      0.05,
		DefaultVolatility: 0.6,
		RiskAversion:      1.0,
		DrawdownThreshold: 0.5,
		BankrollUSD:       1000.0,
	}
}

// Evaluator prices binary markets and sizes the side with the larger edge.
// The Kelly criterion can be swapped at runtime; everything else is fixed,
// so Evaluate is safe for concurrent use.
type Evaluator struct {
	pricer *pricing.BinaryOptionPricer
	sizer  risk.RiskManager
	config EvaluatorConfig
	kelly  atomic.Pointer[risk.KellyCriterion]
}

var _ Strategy = (*Evaluator)(nil)

// NewEvaluator creates an evaluator. A nil kelly uses quarter Kelly.
func NewEvaluator(pricer *pricing.BinaryOptionPricer, kelly *risk.KellyCriterion, sizer risk.RiskManager, config EvaluatorConfig) *Evaluator {
	if kelly == nil {
		kelly = risk.DefaultKellyCriterion()
	}

	e := &Evaluator{
		pricer: pricer,
		sizer:  sizer,
		config: config,
	}
	e.kelly.Store(kelly)
	return e
}

// GetName returns the name of the strategy
func (e *Evaluator) GetName() string {
	return "Binary Edge"
}

// Config returns the evaluator configuration
func (e *Evaluator) Config() EvaluatorConfig {
	return e.config
}

// Kelly returns the Kelly criterion currently in use
func (e *Evaluator) Kelly() *risk.KellyCriterion {
	return e.kelly.Load()
}

// SetKelly atomically replaces the Kelly criterion. Evaluations in flight
// finish with the one they loaded.
func (e *Evaluator) SetKelly(kelly *risk.KellyCriterion) {
	if kelly == nil {
		return
	}
	e.kelly.Store(kelly)
}

// Evaluate prices the market in, compares both sides against their quotes
// and sizes a position on the better one when its edge clears the threshold.
func (e *Evaluator) Evaluate(in EvaluationInput) (*Decision, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	kelly := e.kelly.Load()
	q := in.Quote

	d := &Decision{
		MarketID:     q.ID,
		Action:       ActionHold,
		Side:         types.SideNone,
		Timestamp:    in.Now,
		Spot:         in.Spot,
		Strike:       q.Strike,
		TimeToExpiry: pricing.YearsUntil(q.Expiry, in.Now),
		YesPrice:     q.YesPrice,
		NoPrice:      q.NoPrice,
	}

	d.RealizedVolatility = pricing.RealizedVolatilityFromCandles(in.History, in.Interval)
	d.Volatility, d.VolatilitySource = e.fallbackVolatility(d.RealizedVolatility)

	// The implied volatility of the quote reprices that quote exactly, so it
	// is reported next to the model price and never used to compute edge.
	d.Pricing = e.pricer.PriceWithGreeks(in.Spot, q.Strike, d.TimeToExpiry, d.Volatility, e.config.RiskFreeRate)
	if e.pricer.Config().UseImpliedVolatility && d.TimeToExpiry > 0 {
		if iv, ok := e.pricer.CalculateImpliedVolatility(q.YesPrice, in.Spot, q.Strike, d.TimeToExpiry, e.config.RiskFreeRate); ok {
			d.Pricing = d.Pricing.WithImpliedVolatility(iv)
		}
	}

	fair := d.Pricing.FairValue
	d.YesEdge = fair - q.YesPrice
	d.NoEdge = (1 - fair) - q.NoPrice

	if d.TimeToExpiry <= 0 {
		d.Reason = "market expired"
		return d, nil
	}

	side, edge, price := types.SideYes, d.YesEdge, q.YesPrice
	if d.NoEdge > d.YesEdge {
		side, edge, price = types.SideNo, d.NoEdge, q.NoPrice
	}

	if edge <= e.config.MinEdgeThreshold {
		d.Reason = fmt.Sprintf("best edge %.4f below threshold %.4f", edge, e.config.MinEdgeThreshold)
		return d, nil
	}

	d.Side = side
	d.Edge = edge
	d.MarketPrice = price
	d.KellyFraction = kelly.CalculateFraction(edge, price)

	balance := in.Balance
	if balance <= 0 {
		balance = e.config.BankrollUSD
	}
	d.Amount = e.sizer.CalculatePositionSize(risk.Signal{
		MarketID: q.ID,
		Side:     side,
		Fraction: d.KellyFraction,
		Price:    price,
	}, balance)

	winProbability := price + edge
	odds := risk.DecimalOddsFromPrice(price)
	d.ExpectedGrowth = kelly.ExpectedGrowthRate(winProbability, odds, d.KellyFraction)
	d.CertaintyEquivalent = kelly.CertaintyEquivalent(winProbability, odds, d.KellyFraction, e.config.RiskAversion)
	d.DrawdownProbability = kelly.DrawdownProbability(winProbability, odds, d.KellyFraction, e.config.DrawdownThreshold)

	if d.Amount.LessThanOrEqual(decimal.Zero) {
		d.Reason = fmt.Sprintf("%s edge %.4f but size below minimum trade", side, edge)
		return d, nil
	}

	d.Action = ActionBuy
	d.Reason = fmt.Sprintf("%s edge %.4f, kelly %.4f", side, edge, d.KellyFraction)
	return d, nil
}

func (e *Evaluator) fallbackVolatility(realized float64) (float64, VolatilitySource) {
	if realized > 0 && !math.IsNaN(realized) && !math.IsInf(realized, 0) {
		return realized, VolatilityRealized
	}
	return e.config.DefaultVolatility, VolatilityDefault
}

func validateInput(in EvaluationInput) error {
	q := in.Quote
	switch {
	case in.Spot <= 0 || math.IsNaN(in.Spot):
		return errors.NewPricingError(component, "evaluate", fmt.Sprintf("invalid spot price %v", in.Spot)).
			WithContext("market_id", q.ID)
	case q.Strike <= 0:
		return errors.NewPricingError(component, "evaluate", fmt.Sprintf("invalid strike %v", q.Strike)).
			WithContext("market_id", q.ID)
	case q.YesPrice <= 0 || q.YesPrice >= 1 || q.NoPrice <= 0 || q.NoPrice >= 1:
		return errors.NewValidationError(component, "evaluate",
			fmt.Sprintf("quote prices %.4f/%.4f outside (0, 1)", q.YesPrice, q.NoPrice)).
			WithContext("market_id", q.ID)
	}
	return nil
}
