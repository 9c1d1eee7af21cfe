package reporting

import (
	"fmt"
	"math"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/pricing"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"github.com/jedib0t/go-pretty/v6/table"
)

// HistorySummary describes a downloaded candle series
type HistorySummary struct {
	Symbol             string        `json:"symbol"`
	Source             string        `json:"source"`
	Interval           time.Duration `json:"interval"`
	Candles            int           `json:"candles"`
	First              time.Time     `json:"first"`
	Last               time.Time     `json:"last"`
	High               float64       `json:"high"`
	Low                float64       `json:"low"`
	AverageVolume      float64       `json:"average_volume"`
	RealizedVolatility float64       `json:"realized_volatility"`
}

// SummarizeHistory computes the range, volume and realized volatility of
// candles, which must be oldest first
func SummarizeHistory(symbol, source string, candles []types.OHLCV, interval time.Duration) HistorySummary {
	s := HistorySummary{
		Symbol:   symbol,
		Source:   source,
		Interval: interval,
		Candles:  len(candles),
	}
	if len(candles) == 0 {
		return s
	}

	s.First = candles[0].Timestamp
	s.Last = candles[len(candles)-1].Timestamp
	s.Low = math.Inf(1)

	var volume float64
	for _, c := range candles {
		s.High = math.Max(s.High, c.High)
		s.Low = math.Min(s.Low, c.Low)
		volume += c.Volume
	}
	s.AverageVolume = volume / float64(len(candles))
	s.RealizedVolatility = pricing.RealizedVolatilityFromCandles(candles, interval)
	return s
}

// PrintHistory prints a downloaded candle series summary
func (r *DefaultConsoleReporter) PrintHistory(s HistorySummary) {
	t := r.newTable(fmt.Sprintf("%s HISTORY (%s)", s.Symbol, s.Source))

	t.AppendRows([]table.Row{
		{"Interval", s.Interval.String()},
		{"Candles", s.Candles},
	})
	if s.Candles > 0 {
		t.AppendRows([]table.Row{
			{"First", s.First.UTC().Format("2006-01-02 15:04:05")},
			{"Last", s.Last.UTC().Format("2006-01-02 15:04:05")},
			{"High", fmt.Sprintf("$%.2f", s.High)},
			{"Low", fmt.Sprintf("$%.2f", s.Low)},
			{"Avg volume", fmt.Sprintf("%.2f", s.AverageVolume)},
		})
		t.AppendSeparator()
		t.AppendRow(table.Row{"Realized vol", formatPercent(s.RealizedVolatility)})
	}

	t.Render()
}
