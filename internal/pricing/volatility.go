package pricing

import (
	"math"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
)

// Crypto markets trade around the clock
const tradingYear = 365 * 24 * time.Hour

// CalculateRealizedVolatility annualizes the sample standard deviation of
// consecutive log returns. At least two returns are needed for the
// Bessel-corrected variance; shorter series yield 0.
func CalculateRealizedVolatility(prices []float64, periodsPerYear float64) float64 {
	if len(prices) < 2 {
		return 0.0
	}

	logReturns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		logReturns = append(logReturns, math.Log(prices[i]/prices[i-1]))
	}

	if len(logReturns) < 2 {
		return 0.0
	}

	mean := 0.0
	for _, r := range logReturns {
		mean += r
	}
	mean /= float64(len(logReturns))

	variance := 0.0
	for _, r := range logReturns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(logReturns) - 1)

	return math.Sqrt(variance) * math.Sqrt(periodsPerYear)
}

// PeriodsPerYear returns how many sampling intervals fit in a trading year
func PeriodsPerYear(interval time.Duration) float64 {
	if interval <= 0 {
		return 0
	}
	return float64(tradingYear) / float64(interval)
}

// RealizedVolatilityFromCandles estimates annualized volatility from candle closes
func RealizedVolatilityFromCandles(candles []types.OHLCV, interval time.Duration) float64 {
	return CalculateRealizedVolatility(types.ClosePrices(candles), PeriodsPerYear(interval))
}

// YearsUntil converts the time remaining until expiry into years, floored at 0
func YearsUntil(expiry, now time.Time) float64 {
	remaining := expiry.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return float64(remaining) / float64(tradingYear)
}
