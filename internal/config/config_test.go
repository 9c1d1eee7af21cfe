package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	boterrors "github.com/ducminhle1904/binary-edge-bot/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
trading:
  min_edge_threshold: 0.03
  scan_interval: 2s
market_data:
  symbol: ETHUSDT
risk:
  kelly_fraction: 0.5
markets:
  - id: btc-100k-dec
    question: "Will BTC be above $100k on Dec 31?"
    strike: 100000
    expiry: "2026-12-31T23:59:59Z"
    yes_price: 0.42
    no_price: 0.60
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, s.Trading.ScanInterval)
	assert.Equal(t, 0.02, s.Trading.MinEdgeThreshold)
	assert.Equal(t, 10.0, s.Trading.MinTradeSizeUSD)
	assert.Equal(t, 0.05, s.Trading.RiskFreeRate)
	assert.Equal(t, 0.6, s.Trading.DefaultVolatility)
	assert.Equal(t, 10, s.Trading.MaxOpenPositions)
	assert.Equal(t, "state", s.Trading.StateDir)

	assert.Equal(t, "bybit", s.MarketData.Exchange)
	assert.Equal(t, "BTCUSDT", s.MarketData.Symbol)
	assert.Equal(t, "60", s.MarketData.KlineInterval)

	assert.True(t, s.Pricing.UseImpliedVolatility)
	assert.Equal(t, 24, s.Pricing.VolatilityLookbackHours)
	assert.Equal(t, time.Minute, s.Pricing.VolatilityUpdateInterval)

	assert.Equal(t, 0.25, s.Risk.KellyFraction)
	assert.Equal(t, 1000.0, s.Risk.MaxPositionSizeUSD)
	assert.Equal(t, 15*time.Minute, s.Risk.BreakerCooldown)

	assert.Equal(t, 8080, s.Monitoring.MetricsPort)
	assert.False(t, s.Monitoring.TelegramEnabled())
	assert.Empty(t, s.Markets)

	assert.NoError(t, s.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	s, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 0.03, s.Trading.MinEdgeThreshold)
	assert.Equal(t, 2*time.Second, s.Trading.ScanInterval)
	assert.Equal(t, "ETHUSDT", s.MarketData.Symbol)
	assert.Equal(t, 0.5, s.Risk.KellyFraction)

	// Untouched keys keep their defaults
	assert.Equal(t, 0.05, s.Trading.RiskFreeRate)

	require.Len(t, s.Markets, 1)
	m := s.Markets[0]
	assert.Equal(t, "btc-100k-dec", m.ID)
	assert.Equal(t, 100000.0, m.Strike)
	assert.Equal(t, 0.42, m.YesPrice)
	assert.True(t, m.Expiry.Equal(time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)))
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BOT_TRADING__MIN_EDGE_THRESHOLD", "0.07")
	t.Setenv("BOT_RISK__BANKROLL_USD", "2500")
	t.Setenv("BOT_PRICING__VOLATILITY_UPDATE_INTERVAL", "30s")
	t.Setenv("BOT_MONITORING__TELEGRAM_TOKEN", "123:abc")
	t.Setenv("BOT_MONITORING__TELEGRAM_CHAT_ID", "42")

	s, err := Load("")
	require.NoError(t, err)

	assert.True(t, s.Monitoring.TelegramEnabled())
	assert.Equal(t, "42", s.Monitoring.TelegramChatID)

	assert.Equal(t, 0.07, s.Trading.MinEdgeThreshold)
	assert.Equal(t, 2500.0, s.Risk.BankrollUSD)
	assert.Equal(t, 30*time.Second, s.Pricing.VolatilityUpdateInterval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	botErr, ok := boterrors.AsBotError(err)
	require.True(t, ok)
	assert.True(t, botErr.IsFatal())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"Zero edge threshold", func(s *Settings) { s.Trading.MinEdgeThreshold = 0 }},
		{"Tiny minimum trade", func(s *Settings) { s.Trading.MinTradeSizeUSD = 0.5 }},
		{"Kelly above one", func(s *Settings) { s.Risk.KellyFraction = 1.5 }},
		{"Kelly zero", func(s *Settings) { s.Risk.KellyFraction = 0 }},
		{"No position size", func(s *Settings) { s.Risk.MaxPositionSizeUSD = 0 }},
		{"Drawdown threshold of one", func(s *Settings) { s.Risk.DrawdownThreshold = 1 }},
		{"Empty symbol", func(s *Settings) { s.MarketData.Symbol = "" }},
		{"Unknown exchange", func(s *Settings) { s.MarketData.Exchange = "kraken" }},
		{"Bad kline interval", func(s *Settings) { s.MarketData.KlineInterval = "1h" }},
		{"Market without strike", func(s *Settings) {
			s.Markets[0].Strike = 0
		}},
		{"Market price of one", func(s *Settings) {
			s.Markets[0].YesPrice = 1
		}},
		{"Duplicate market", func(s *Settings) {
			s.Markets = append(s.Markets, s.Markets[0])
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load(writeConfig(t, sampleConfig))
			require.NoError(t, err)

			tt.mutate(s)

			err = s.Validate()
			require.Error(t, err)
			botErr, ok := boterrors.AsBotError(err)
			require.True(t, ok)
			assert.Equal(t, boterrors.ErrorCategoryConfiguration, botErr.Category)
		})
	}
}

func TestLoad_RejectsInvalidFile(t *testing.T) {
	_, err := Load(writeConfig(t, "risk:\n  kelly_fraction: 2.0\n"))
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	pc := s.PricerConfig()
	assert.True(t, pc.UseImpliedVolatility)
	assert.Equal(t, 24*time.Hour, pc.Lookback())

	limits := s.Limits()
	assert.Equal(t, 1000.0, limits.MaxPositionSizeUSD)
	assert.Equal(t, 10.0, limits.MinTradeSizeUSD)
	assert.Equal(t, 10, limits.MaxOpenPositions)

	oc := s.OverseerConfig()
	assert.Equal(t, 3.0, oc.VolatilitySpikeMultiplier)
	assert.Equal(t, 5, oc.MaxConsecutiveErrors)

	assert.Equal(t, 0.25, s.KellyCriterion().FractionalKelly())

	ec := s.EvaluatorConfig()
	assert.Equal(t, 0.02, ec.MinEdgeThreshold)
	assert.Equal(t, 0.6, ec.DefaultVolatility)
	assert.Equal(t, 1000.0, ec.BankrollUSD)

	fc := s.FeedConfig()
	assert.Equal(t, "bybit", fc.Name)
	assert.Equal(t, "BTCUSDT", fc.Symbol)
	assert.Equal(t, time.Hour, fc.IntervalDuration())
	assert.Equal(t, 5*time.Second, fc.ReconnectInterval)
	assert.NoError(t, fc.Validate())
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BOT_TEST_ENV_FILE_KEY=loaded\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("BOT_TEST_ENV_FILE_KEY") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv("BOT_TEST_ENV_FILE_KEY"))
}

func TestStore_Reload(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	store, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, store.Get().Risk.KellyFraction)

	require.NoError(t, os.WriteFile(path, []byte("risk:\n  kelly_fraction: 0.1\n"), 0644))
	reloaded, err := store.Reload()
	require.NoError(t, err)
	assert.Equal(t, 0.1, reloaded.Risk.KellyFraction)
	assert.Same(t, reloaded, store.Get())

	// A broken file leaves the previous settings active
	require.NoError(t, os.WriteFile(path, []byte("risk:\n  kelly_fraction: 3\n"), 0644))
	_, err = store.Reload()
	assert.Error(t, err)
	assert.Equal(t, 0.1, store.Get().Risk.KellyFraction)
}

func TestLoad_SampleConfig(t *testing.T) {
	s, err := Load(filepath.Join("..", "..", "configs", "btc_binary.yaml"))
	require.NoError(t, err)

	assert.Len(t, s.Markets, 2)
	assert.Equal(t, "state", s.Trading.StateDir)
	assert.Equal(t, 250.0, s.Risk.MaxPositionSizeUSD)
	assert.False(t, s.Monitoring.TelegramEnabled())
}
