package data

import (
	"fmt"
	"sort"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
)

// DefaultDataFilter implements DataFilter for common filtering operations
type DefaultDataFilter struct{}

// NewDefaultDataFilter creates a new default data filter
func NewDefaultDataFilter() *DefaultDataFilter {
	return &DefaultDataFilter{}
}

// FilterByPeriod keeps the candles no older than period before the latest one
func (f *DefaultDataFilter) FilterByPeriod(data []types.OHLCV, period time.Duration) []types.OHLCV {
	if period <= 0 || len(data) == 0 {
		return data
	}

	cutoffTime := data[len(data)-1].Timestamp.Add(-period)

	startIdx := sort.Search(len(data), func(i int) bool {
		return !data[i].Timestamp.Before(cutoffTime)
	})

	return data[startIdx:]
}

// ValidateTimeSequence ensures data is strictly chronological
func (f *DefaultDataFilter) ValidateTimeSequence(data []types.OHLCV) error {
	for i := 1; i < len(data); i++ {
		if data[i].Timestamp.Before(data[i-1].Timestamp) {
			return fmt.Errorf("data not in chronological order at index %d: %s comes after %s",
				i, data[i].Timestamp.Format(time.RFC3339), data[i-1].Timestamp.Format(time.RFC3339))
		}

		if data[i].Timestamp.Equal(data[i-1].Timestamp) {
			return fmt.Errorf("duplicate timestamp at index %d: %s",
				i, data[i].Timestamp.Format(time.RFC3339))
		}
	}

	return nil
}

// SortByTimestamp returns a copy of data in ascending time order with
// duplicate timestamps removed, keeping the first occurrence
func (f *DefaultDataFilter) SortByTimestamp(data []types.OHLCV) []types.OHLCV {
	sorted := make([]types.OHLCV, len(data))
	copy(sorted, data)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := sorted[:0]
	for i, candle := range sorted {
		if i > 0 && candle.Timestamp.Equal(out[len(out)-1].Timestamp) {
			continue
		}
		out = append(out, candle)
	}
	return out
}

// InferInterval returns the most common spacing between consecutive candles,
// or 0 when there are fewer than two
func InferInterval(data []types.OHLCV) time.Duration {
	counts := make(map[time.Duration]int)
	var best time.Duration
	for i := 1; i < len(data); i++ {
		gap := data[i].Timestamp.Sub(data[i-1].Timestamp)
		if gap <= 0 {
			continue
		}
		counts[gap]++
		if counts[gap] > counts[best] || (counts[gap] == counts[best] && gap < best) {
			best = gap
		}
	}
	return best
}
