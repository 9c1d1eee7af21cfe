package risk

import "math"

const (
	minFractionalKelly     = 0.01
	maxFractionalKelly     = 1.0
	defaultFractionalKelly = 0.25 // Quarter Kelly
)

// KellyCriterion sizes bets with the Kelly formula f* = (bp - q) / b, scaled
// by a fractional multiplier. The multiplier is fixed at construction, so a
// KellyCriterion can be shared freely between goroutines; to change it build
// a new one and swap the reference.
type KellyCriterion struct {
	fractionalKelly float64
}

// NewKellyCriterion creates a Kelly calculator. The multiplier is clamped to
// [0.01, 1.0].
func NewKellyCriterion(fractionalKelly float64) *KellyCriterion {
	return &KellyCriterion{
		fractionalKelly: clamp(fractionalKelly, minFractionalKelly, maxFractionalKelly),
	}
}

// DefaultKellyCriterion returns a quarter-Kelly calculator
func DefaultKellyCriterion() *KellyCriterion {
	return NewKellyCriterion(defaultFractionalKelly)
}

// FractionalKelly returns the configured multiplier
func (k *KellyCriterion) FractionalKelly() float64 {
	return k.fractionalKelly
}

// CalculateFraction returns the bankroll fraction for a binary outcome bought
// at marketPrice when we believe it wins with probability marketPrice + edge.
// Unusable inputs return 0.
func (k *KellyCriterion) CalculateFraction(edge, marketPrice float64) float64 {
	if edge <= 0 || marketPrice <= 0 || marketPrice >= 1 {
		return 0.0
	}

	q := marketPrice
	p := q + edge
	if p <= 0 || p >= 1 {
		return 0.0
	}

	// Net odds of a contract paying 1 bought at marketPrice
	b := (1 - marketPrice) / marketPrice

	fullKelly := (b*p - q) / b

	return clamp(fullKelly*k.fractionalKelly, 0.0, 1.0)
}

// CalculateFromOdds returns the bankroll fraction for a bet with the given
// win probability and decimal odds (2.0 is even money).
func (k *KellyCriterion) CalculateFromOdds(winProbability, decimalOdds float64) float64 {
	if winProbability <= 0 || winProbability >= 1 || decimalOdds <= 1 {
		return 0.0
	}

	b := decimalOdds - 1
	p := winProbability
	q := 1 - p

	fullKelly := (b*p - q) / b

	return clamp(fullKelly*k.fractionalKelly, 0.0, 1.0)
}

// ExpectedGrowthRate returns G(f) = p*ln(1 + b*f) + q*ln(1 - f), the expected
// log growth per bet when staking betFraction of the bankroll.
func (k *KellyCriterion) ExpectedGrowthRate(winProbability, decimalOdds, betFraction float64) float64 {
	if betFraction <= 0 || betFraction >= 1 {
		return 0.0
	}

	b := decimalOdds - 1
	p := winProbability
	q := 1 - p

	return p*math.Log(1+b*betFraction) + q*math.Log(1-betFraction)
}

// CertaintyEquivalent returns the guaranteed per-bet return equivalent to the
// risky bet for the given risk aversion. Risk aversion 1 gives exp(G) - 1.
func (k *KellyCriterion) CertaintyEquivalent(winProbability, decimalOdds, betFraction, riskAversion float64) float64 {
	growth := k.ExpectedGrowthRate(winProbability, decimalOdds, betFraction)

	return math.Pow(math.Exp(growth), 1/riskAversion) - 1
}

// DrawdownProbability approximates P(drawdown > threshold) as
// exp(-2 * G * ln(threshold) / V), where V is the variance of per-bet log
// growth. This is a heuristic and is not clamped to [0, 1].
func (k *KellyCriterion) DrawdownProbability(winProbability, decimalOdds, betFraction, drawdownThreshold float64) float64 {
	if drawdownThreshold <= 0 || drawdownThreshold >= 1 {
		return 0.0
	}

	b := decimalOdds - 1
	p := winProbability
	q := 1 - p
	f := betFraction

	winGrowth := math.Log(1 + b*f)
	loseGrowth := math.Log(1 - f)

	g := p*winGrowth + q*loseGrowth
	eGrowthSq := p*winGrowth*winGrowth + q*loseGrowth*loseGrowth
	v := eGrowthSq - g*g

	if v <= 0 {
		return 0.0
	}

	return math.Exp(-2 * g * math.Log(drawdownThreshold) / v)
}

// DecimalOddsFromPrice converts a binary contract price into decimal odds.
// Prices outside (0, 1) have no odds and return 0.
func DecimalOddsFromPrice(price float64) float64 {
	if price <= 0 || price >= 1 {
		return 0
	}
	return 1 / price
}

// BetParameters describes a bet either by edge over a market price or by an
// explicit win probability and decimal odds.
type BetParameters struct {
	Edge           float64
	MarketPrice    float64
	WinProbability float64
	DecimalOdds    float64
}

// EdgeBet builds BetParameters from an edge over a market price
func EdgeBet(edge, marketPrice float64) BetParameters {
	return BetParameters{Edge: edge, MarketPrice: marketPrice}
}

// OddsBet builds BetParameters from a win probability and decimal odds
func OddsBet(winProbability, decimalOdds float64) BetParameters {
	return BetParameters{WinProbability: winProbability, DecimalOdds: decimalOdds}
}

// IsOddsBased reports whether the bet is expressed as probability and odds
func (b BetParameters) IsOddsBased() bool {
	return b.DecimalOdds != 0
}

// Fraction sizes the bet with k
func (b BetParameters) Fraction(k *KellyCriterion) float64 {
	if b.IsOddsBased() {
		return k.CalculateFromOdds(b.WinProbability, b.DecimalOdds)
	}
	return k.CalculateFraction(b.Edge, b.MarketPrice)
}

// clamp bounds v to [lo, hi]. NaN collapses to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
