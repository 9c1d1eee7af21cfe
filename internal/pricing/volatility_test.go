package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestCalculateRealizedVolatility_InsufficientData(t *testing.T) {
	assert.Equal(t, 0.0, CalculateRealizedVolatility(nil, 252))
	assert.Equal(t, 0.0, CalculateRealizedVolatility([]float64{100}, 252))
	// A single return has no Bessel-corrected variance
	assert.Equal(t, 0.0, CalculateRealizedVolatility([]float64{100, 101}, 252))
}

func TestCalculateRealizedVolatility_FlatPrices(t *testing.T) {
	prices := []float64{100, 100, 100, 100, 100}
	assert.Equal(t, 0.0, CalculateRealizedVolatility(prices, 252))
}

func TestCalculateRealizedVolatility_MatchesManualCalculation(t *testing.T) {
	prices := []float64{100, 102, 99, 101, 105, 103}
	periodsPerYear := 365.0

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	sumSq := 0.0
	for _, r := range returns {
		sumSq += (r - mean) * (r - mean)
	}
	expected := math.Sqrt(sumSq/float64(len(returns)-1)) * math.Sqrt(periodsPerYear)

	assert.InDelta(t, expected, CalculateRealizedVolatility(prices, periodsPerYear), 1e-12)
}

func TestCalculateRealizedVolatility_UsesBesselCorrection(t *testing.T) {
	// Returns are +x, -x, +x, -x so the mean is zero
	prices := []float64{100, 110, 100, 110, 100}
	x := math.Log(1.1)

	// Sum of squares is 4x^2, divided by n-1 = 3
	expected := math.Sqrt(4 * x * x / 3)
	assert.InDelta(t, expected, CalculateRealizedVolatility(prices, 1), 1e-12)

	// An odd count of alternating returns has mean x/3
	odd := []float64{100, 110, 100, 110}
	m := x / 3
	sumSq := 2*(x-m)*(x-m) + (-x-m)*(-x-m)
	assert.InDelta(t, math.Sqrt(sumSq/2), CalculateRealizedVolatility(odd, 1), 1e-12)
}

func TestCalculateRealizedVolatility_ScalesWithSqrtPeriods(t *testing.T) {
	prices := []float64{100, 101, 99.5, 102, 100.7}

	daily := CalculateRealizedVolatility(prices, 1)
	annual := CalculateRealizedVolatility(prices, 365)
	assert.InDelta(t, daily*math.Sqrt(365), annual, 1e-12)
}

func TestPeriodsPerYear(t *testing.T) {
	tests := []struct {
		interval time.Duration
		expected float64
	}{
		{24 * time.Hour, 365},
		{time.Hour, 365 * 24},
		{time.Minute, 365 * 24 * 60},
		{0, 0},
		{-time.Hour, 0},
	}

	for _, tt := range tests {
		t.Run(tt.interval.String(), func(t *testing.T) {
			assert.InDelta(t, tt.expected, PeriodsPerYear(tt.interval), 1e-9)
		})
	}
}

func TestRealizedVolatilityFromCandles(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 101, 100.5, 102, 101}
	candles := make([]types.OHLCV, 0, len(closes))
	for i, c := range closes {
		candles = append(candles, types.OHLCV{Close: c, Timestamp: start.Add(time.Duration(i) * time.Hour)})
	}

	expected := CalculateRealizedVolatility(closes, 365*24)
	assert.InDelta(t, expected, RealizedVolatilityFromCandles(candles, time.Hour), 1e-12)
	assert.Greater(t, expected, 0.0)
}

func TestYearsUntil(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0.0, YearsUntil(now, now))
	assert.Equal(t, 0.0, YearsUntil(now.Add(-time.Hour), now))
	assert.InDelta(t, 1.0, YearsUntil(now.Add(365*24*time.Hour), now), 1e-12)
	assert.InDelta(t, 1.0/365, YearsUntil(now.Add(24*time.Hour), now), 1e-12)
}
