package reporting

import (
	"math"

	"github.com/ducminhle1904/binary-edge-bot/internal/pricing"
)

// StrikeGrid returns 2*steps+1 strikes spread evenly over spot*(1±width),
// rounded to whole units
func StrikeGrid(spot, width float64, steps int) []float64 {
	if spot <= 0 || width <= 0 || steps <= 0 {
		return []float64{spot}
	}

	strikes := make([]float64, 0, 2*steps+1)
	step := spot * width / float64(steps)
	for i := -steps; i <= steps; i++ {
		strike := math.Round(spot + float64(i)*step)
		if strike <= 0 {
			continue
		}
		if n := len(strikes); n > 0 && strikes[n-1] == strike {
			continue
		}
		strikes = append(strikes, strike)
	}
	return strikes
}

// BuildStrikeLadder prices in across strikes
func BuildStrikeLadder(p *pricing.BinaryOptionPricer, in pricing.PricingInputs, strikes []float64) []LadderRow {
	rows := make([]LadderRow, 0, len(strikes))
	for _, strike := range strikes {
		in.Strike = strike
		rows = append(rows, LadderRow{Strike: strike, Result: p.Price(in)})
	}
	return rows
}
