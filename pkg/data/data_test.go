package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const sampleCSV = `timestamp,open,high,low,close,volume
2025-01-01 00:00:00,100,102,99,101,10
2025-01-01 01:00:00,101,103,100,102,11
2025-01-01 02:00:00,102,101,100,100.5,12
2025-01-01 03:00:00,abc,103,100,102,11
not a date,101,103,100,102,11
2025-01-01 04:00:00,102,104,101,103
2025-01-01 05:00:00,103,105,102,104,13
`

func TestCSVProvider_Read(t *testing.T) {
	candles, skipped, err := NewCSVProvider().Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	// high below open, bad number, bad date, short row
	assert.Equal(t, 4, skipped)
	require.Len(t, candles, 3)
	assert.Equal(t, 101.0, candles[0].Close)
	assert.Equal(t, 104.0, candles[2].Close)
	assert.Equal(t, time.Date(2025, 1, 1, 5, 0, 0, 0, time.UTC), candles[2].Timestamp)
}

func TestCSVProvider_EpochMillis(t *testing.T) {
	in := "open_time,open,high,low,close,volume,close_time\n" +
		"1700000000000,100,102,99,101,10,1700003599999\n" +
		"1700003600000,101,103,100,102,11,1700007199999\n"

	candles, skipped, err := NewCSVProviderWithFormat(BinanceCSVFormat).Read(strings.NewReader(in))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1700003600000), candles[1].Timestamp.UnixMilli())
}

func TestCSVProvider_LoadData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "btc.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	core, logs := observer.New(zap.WarnLevel)
	provider := NewCSVProvider().WithLogger(zap.New(core))

	candles, err := provider.LoadData(path)
	require.NoError(t, err)
	assert.Len(t, candles, 3)
	require.NoError(t, provider.ValidateData(candles))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "skipped invalid rows", logs.All()[0].Message)

	_, err = provider.LoadData(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = provider.LoadData(empty)
	assert.ErrorContains(t, err, "empty CSV")
}

func TestCSVProvider_ValidateData(t *testing.T) {
	p := NewCSVProvider()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Error(t, p.ValidateData(nil))
	assert.Error(t, p.ValidateData([]types.OHLCV{{Open: 1, High: 0.5, Low: 1, Close: 1, Timestamp: t0}}))
	assert.Error(t, p.ValidateData([]types.OHLCV{
		{Open: 1, High: 1, Low: 1, Close: 1, Timestamp: t0.Add(time.Hour)},
		{Open: 1, High: 1, Low: 1, Close: 1, Timestamp: t0},
	}))
}

func hourly(n int) []types.OHLCV {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.OHLCV, n)
	for i := range out {
		out[i] = types.OHLCV{Close: float64(100 + i), Timestamp: t0.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func TestFilterByPeriod(t *testing.T) {
	f := NewDefaultDataFilter()
	data := hourly(48)

	last24 := f.FilterByPeriod(data, 24*time.Hour)
	require.Len(t, last24, 25)
	assert.Equal(t, data[23].Timestamp, last24[0].Timestamp)

	assert.Len(t, f.FilterByPeriod(data, 0), 48)
	assert.Len(t, f.FilterByPeriod(data, 1000*time.Hour), 48)
	assert.Empty(t, f.FilterByPeriod(nil, time.Hour))
}

func TestValidateTimeSequence(t *testing.T) {
	f := NewDefaultDataFilter()
	data := hourly(3)
	assert.NoError(t, f.ValidateTimeSequence(data))

	dup := append(hourly(2), hourly(2)[1])
	assert.ErrorContains(t, f.ValidateTimeSequence(dup), "duplicate")

	reversed := []types.OHLCV{data[2], data[0]}
	assert.ErrorContains(t, f.ValidateTimeSequence(reversed), "chronological")
}

func TestSortByTimestamp(t *testing.T) {
	f := NewDefaultDataFilter()
	data := hourly(4)
	shuffled := []types.OHLCV{data[2], data[0], data[3], data[0], data[1]}

	sorted := f.SortByTimestamp(shuffled)
	require.Len(t, sorted, 4)
	for i := range sorted {
		assert.Equal(t, data[i].Timestamp, sorted[i].Timestamp)
	}
	assert.NoError(t, f.ValidateTimeSequence(sorted))

	// input untouched
	assert.Equal(t, data[2].Timestamp, shuffled[0].Timestamp)
}

func TestInferInterval(t *testing.T) {
	data := hourly(10)
	assert.Equal(t, time.Hour, InferInterval(data))

	// a single gap does not change the mode
	gappy := append(hourly(5), types.OHLCV{Timestamp: data[4].Timestamp.Add(3 * time.Hour)})
	assert.Equal(t, time.Hour, InferInterval(gappy))

	assert.Zero(t, InferInterval(hourly(1)))
}

func TestSaveCSV_ReadsBack(t *testing.T) {
	candles := hourly(4)
	for i := range candles {
		c := candles[i].Close
		candles[i].Open, candles[i].High, candles[i].Low, candles[i].Volume = c, c+1, c-1, 5
	}
	candles[2].Close = 102.125

	path := filepath.Join(t.TempDir(), "nested", "candles.csv")
	require.NoError(t, SaveCSV(path, candles))

	loaded, err := NewCSVProvider().LoadData(path)
	require.NoError(t, err)
	require.Len(t, loaded, len(candles))
	for i := range candles {
		assert.True(t, candles[i].Timestamp.Equal(loaded[i].Timestamp), "row %d", i)
		assert.Equal(t, candles[i].Close, loaded[i].Close)
	}
}
