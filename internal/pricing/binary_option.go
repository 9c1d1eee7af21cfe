package pricing

import (
	"math"
	"time"
)

const (
	// Implied volatility solver settings
	ivInitialGuess  = 0.5
	ivMaxIterations = 100
	ivTolerance     = 1e-6
	ivMinVega       = 1e-10
	ivMinVolatility = 0.001
	ivMaxVolatility = 5.0
)

// PricerConfig holds pricing defaults. Lookback and update cadence are used by
// callers to decide how much history to feed into the volatility estimator.
type PricerConfig struct {
	UseImpliedVolatility     bool          `json:"use_implied_volatility"`
	VolatilityLookbackHours  int           `json:"volatility_lookback_hours"`
	VolatilityUpdateInterval time.Duration `json:"volatility_update_interval"`
}

// DefaultPricerConfig returns the default pricing configuration
func DefaultPricerConfig() PricerConfig {
	return PricerConfig{
		UseImpliedVolatility:     true,
		VolatilityLookbackHours:  24,
		VolatilityUpdateInterval: time.Minute,
	}
}

// Lookback returns the volatility lookback window as a duration
func (c PricerConfig) Lookback() time.Duration {
	return time.Duration(c.VolatilityLookbackHours) * time.Hour
}

// PricingInputs groups the market parameters of a single evaluation
type PricingInputs struct {
	Spot         float64 // Spot price of the underlying
	Strike       float64 // Strike price
	TimeToExpiry float64 // Years until expiry, 0 at or after expiry
	Volatility   float64 // Annualized volatility (sigma)
	RiskFreeRate float64 // Annualized risk-free rate
}

// Greeks holds the sensitivities of a binary option's fair value
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// PricingResult is the fair value of a binary option plus its Greeks.
// ImpliedVolatility is nil unless it was solved from a market price.
type PricingResult struct {
	FairValue         float64  `json:"fair_value"`
	Greeks            Greeks   `json:"greeks"`
	ImpliedVolatility *float64 `json:"implied_volatility,omitempty"`
}

// IV returns the implied volatility and whether it is present
func (r PricingResult) IV() (float64, bool) {
	if r.ImpliedVolatility == nil {
		return 0, false
	}
	return *r.ImpliedVolatility, true
}

// WithImpliedVolatility returns a copy of the result carrying iv
func (r PricingResult) WithImpliedVolatility(iv float64) PricingResult {
	r.ImpliedVolatility = &iv
	return r
}

// BinaryOptionPricer prices cash-or-nothing binary calls with a
// Black-Scholes closed form. It is immutable and safe for concurrent use.
type BinaryOptionPricer struct {
	config PricerConfig
}

// NewBinaryOptionPricer creates a new pricer
func NewBinaryOptionPricer(config PricerConfig) *BinaryOptionPricer {
	return &BinaryOptionPricer{config: config}
}

// Config returns the pricer configuration
func (p *BinaryOptionPricer) Config() PricerConfig {
	return p.config
}

// PriceBinaryOption returns the probability, in [0, 1], that a binary call
// settles in the money.
func (p *BinaryOptionPricer) PriceBinaryOption(spot, strike, timeToExpiry, volatility, riskFreeRate float64) float64 {
	// At expiry the payoff is known
	if timeToExpiry <= 0 {
		if spot >= strike {
			return 1.0
		}
		return 0.0
	}

	d1 := calculateD1(spot, strike, timeToExpiry, volatility, riskFreeRate)
	d2 := d1 - volatility*math.Sqrt(timeToExpiry)

	fairValue := normCDF(d2) * math.Exp(-riskFreeRate*timeToExpiry)

	return clamp(fairValue, 0.0, 1.0)
}

// PriceWithGreeks returns the fair value together with all five Greeks
func (p *BinaryOptionPricer) PriceWithGreeks(spot, strike, timeToExpiry, volatility, riskFreeRate float64) PricingResult {
	return PricingResult{
		FairValue: p.PriceBinaryOption(spot, strike, timeToExpiry, volatility, riskFreeRate),
		Greeks:    calculateGreeks(spot, strike, timeToExpiry, volatility, riskFreeRate),
	}
}

// Price is PriceWithGreeks over a PricingInputs value
func (p *BinaryOptionPricer) Price(in PricingInputs) PricingResult {
	return p.PriceWithGreeks(in.Spot, in.Strike, in.TimeToExpiry, in.Volatility, in.RiskFreeRate)
}

// CalculateImpliedVolatility backs the volatility out of an observed market
// price with Newton-Raphson. The boolean is false when the solver gave up,
// in which case the caller picks its own fallback volatility.
func (p *BinaryOptionPricer) CalculateImpliedVolatility(marketPrice, spot, strike, timeToExpiry, riskFreeRate float64) (float64, bool) {
	vol := ivInitialGuess

	for i := 0; i < ivMaxIterations; i++ {
		price := p.PriceBinaryOption(spot, strike, timeToExpiry, vol, riskFreeRate)
		vega := calculateVega(spot, strike, timeToExpiry, vol, riskFreeRate)

		if math.Abs(vega) < ivMinVega {
			return 0, false
		}

		diff := price - marketPrice
		if math.Abs(diff) < ivTolerance {
			return vol, true
		}

		vol -= diff / vega
		vol = clamp(vol, ivMinVolatility, ivMaxVolatility)
	}

	return 0, false
}

// calculateD1 returns the Black-Scholes d1 term, defined as 0 when
// volatility*sqrt(T) is zero.
func calculateD1(spot, strike, timeToExpiry, volatility, riskFreeRate float64) float64 {
	volSqrtT := volatility * math.Sqrt(timeToExpiry)
	if volSqrtT == 0 {
		return 0
	}

	return (math.Log(spot/strike) + (riskFreeRate+0.5*volatility*volatility)*timeToExpiry) / volSqrtT
}

// greeksDefined reports whether the Greek formulas are finite for these inputs
func greeksDefined(timeToExpiry, volatility float64) bool {
	return timeToExpiry > 0 && volatility > 0
}

// calculateGreeks computes the binary call Greeks. Outside the defined region
// every Greek is 0.
func calculateGreeks(spot, strike, timeToExpiry, volatility, riskFreeRate float64) Greeks {
	if !greeksDefined(timeToExpiry, volatility) {
		return Greeks{}
	}

	d1 := calculateD1(spot, strike, timeToExpiry, volatility, riskFreeRate)
	sqrtT := math.Sqrt(timeToExpiry)
	d2 := d1 - volatility*sqrtT

	nd2 := normCDF(d2)
	nPrimeD1 := normPDF(d1)
	discount := math.Exp(-riskFreeRate * timeToExpiry)

	var delta, gamma float64
	if spot > 0 {
		delta = nPrimeD1 / (spot * volatility * sqrtT)
		gamma = -nPrimeD1 * d1 / (spot * spot * volatility * volatility * timeToExpiry)
	}

	theta := discount*nPrimeD1*(d1/(2*timeToExpiry)-riskFreeRate/(volatility*sqrtT)) -
		riskFreeRate*nd2*discount

	return Greeks{
		Delta: delta,
		Gamma: gamma,
		Theta: theta,
		Vega:  calculateVega(spot, strike, timeToExpiry, volatility, riskFreeRate),
		Rho:   -timeToExpiry * nd2 * discount,
	}
}

// calculateVega returns the sensitivity used by the implied volatility solver
func calculateVega(spot, strike, timeToExpiry, volatility, riskFreeRate float64) float64 {
	if !greeksDefined(timeToExpiry, volatility) {
		return 0
	}

	d1 := calculateD1(spot, strike, timeToExpiry, volatility, riskFreeRate)
	sqrtT := math.Sqrt(timeToExpiry)
	discount := math.Exp(-riskFreeRate * timeToExpiry)

	return -normPDF(d1) * sqrtT * discount / volatility
}
