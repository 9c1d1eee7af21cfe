package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/errors"
	"github.com/ducminhle1904/binary-edge-bot/internal/exchange"
	"github.com/ducminhle1904/binary-edge-bot/internal/pricing"
	"github.com/ducminhle1904/binary-edge-bot/internal/risk"
	"github.com/ducminhle1904/binary-edge-bot/internal/strategy"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	component = "config"

	// EnvPrefix is the prefix for environment overrides. Nested keys use a
	// double underscore: BOT_TRADING__MIN_EDGE_THRESHOLD.
	EnvPrefix = "BOT"
)

// Settings is the complete bot configuration
type Settings struct {
	Trading    TradingConfig       `mapstructure:"trading"`
	MarketData MarketDataConfig    `mapstructure:"market_data"`
	Pricing    PricingConfig       `mapstructure:"pricing"`
	Risk       RiskConfig          `mapstructure:"risk"`
	Monitoring MonitoringConfig    `mapstructure:"monitoring"`
	Markets    []types.MarketQuote `mapstructure:"markets"`
}

// TradingConfig holds the decision loop settings
type TradingConfig struct {
	ScanInterval      time.Duration `mapstructure:"scan_interval"`
	MinEdgeThreshold  float64       `mapstructure:"min_edge_threshold"`
	MinTradeSizeUSD   float64       `mapstructure:"min_trade_size_usd"`
	RiskFreeRate      float64       `mapstructure:"risk_free_rate"`
	DefaultVolatility float64       `mapstructure:"default_volatility"`
	MaxOpenPositions  int           `mapstructure:"max_open_positions"`
	DryRun            bool          `mapstructure:"dry_run"`
	StateDir          string        `mapstructure:"state_dir"` // Empty disables persistence
}

// MarketDataConfig selects the spot feed
type MarketDataConfig struct {
	Exchange          string        `mapstructure:"exchange"`
	Symbol            string        `mapstructure:"symbol"`
	Category          string        `mapstructure:"category"`
	KlineInterval     string        `mapstructure:"kline_interval"` // Bybit interval code, minutes
	Testnet           bool          `mapstructure:"testnet"`
	Demo              bool          `mapstructure:"demo"`
	APIKey            string        `mapstructure:"api_key"`
	APISecret         string        `mapstructure:"api_secret"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
}

// PricingConfig mirrors pricing.PricerConfig
type PricingConfig struct {
	UseImpliedVolatility     bool          `mapstructure:"use_implied_volatility"`
	VolatilityLookbackHours  int           `mapstructure:"volatility_lookback_hours"`
	VolatilityUpdateInterval time.Duration `mapstructure:"volatility_update_interval"`
}

// RiskConfig holds sizing, loss limits and circuit breaker settings
type RiskConfig struct {
	KellyFraction             float64       `mapstructure:"kelly_fraction"`
	MaxPositionSizeUSD        float64       `mapstructure:"max_position_size_usd"`
	MaxDailyLossUSD           float64       `mapstructure:"max_daily_loss_usd"`
	MaxDrawdownPercent        float64       `mapstructure:"max_drawdown_percent"`
	DrawdownThreshold         float64       `mapstructure:"drawdown_threshold"`
	RiskAversion              float64       `mapstructure:"risk_aversion"`
	BankrollUSD               float64       `mapstructure:"bankroll_usd"`
	VolatilitySpikeMultiplier float64       `mapstructure:"volatility_spike_multiplier"`
	MaxConsecutiveErrors      int           `mapstructure:"max_consecutive_errors"`
	BreakerCooldown           time.Duration `mapstructure:"breaker_cooldown"`
}

// MonitoringConfig holds the HTTP ports for metrics and health and the
// optional Telegram alert chat
type MonitoringConfig struct {
	MetricsPort    int    `mapstructure:"metrics_port"`
	HealthPort     int    `mapstructure:"health_port"`
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID string `mapstructure:"telegram_chat_id"`
}

// TelegramEnabled reports whether alerts should be sent
func (m MonitoringConfig) TelegramEnabled() bool {
	return m.TelegramToken != "" && m.TelegramChatID != ""
}

var defaults = map[string]interface{}{
	"trading.scan_interval":      "5s",
	"trading.min_edge_threshold": 0.02,
	"trading.min_trade_size_usd": 10.0,
	"trading.risk_free_rate":     0.05,
	"trading.default_volatility": 0.6,
	"trading.max_open_positions": 10,
	"trading.dry_run":            true,
	"trading.state_dir":          "state",

	"market_data.exchange":           "bybit",
	"market_data.symbol":             "BTCUSDT",
	"market_data.category":           "spot",
	"market_data.kline_interval":     "60",
	"market_data.testnet":            false,
	"market_data.demo":               false,
	"market_data.api_key":            "",
	"market_data.api_secret":         "",
	"market_data.reconnect_interval": "5s",

	"pricing.use_implied_volatility":     true,
	"pricing.volatility_lookback_hours":  24,
	"pricing.volatility_update_interval": "60s",

	"risk.kelly_fraction":              0.25, // Quarter Kelly
	"risk.max_position_size_usd":       1000.0,
	"risk.max_daily_loss_usd":          5000.0,
	"risk.max_drawdown_percent":        0.10,
	"risk.drawdown_threshold":          0.5,
	"risk.risk_aversion":               1.0,
	"risk.bankroll_usd":                1000.0,
	"risk.volatility_spike_multiplier": 3.0,
	"risk.max_consecutive_errors":      5,
	"risk.breaker_cooldown":            "15m",

	"monitoring.metrics_port":     8080,
	"monitoring.health_port":      8081,
	"monitoring.telegram_token":   "",
	"monitoring.telegram_chat_id": "",
}

// Default returns the built-in settings with no file or environment applied
func Default() (*Settings, error) {
	return load(newViper())
}

// Load builds settings from defaults, an optional config file and BOT_
// environment overrides, then validates them. An empty path skips the file.
func Load(path string) (*Settings, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapError(err, errors.ErrorCategoryConfiguration, component, "read_config").
				WithContext("path", path)
		}
	}

	settings, err := load(v)
	if err != nil {
		return nil, err
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

// LoadEnvFile loads a .env file into the process environment. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return errors.WrapError(err, errors.ErrorCategoryConfiguration, component, "load_env").
			WithContext("path", path)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	return v
}

func load(v *viper.Viper) (*Settings, error) {
	var settings Settings

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
	))

	if err := v.Unmarshal(&settings, hook); err != nil {
		return nil, errors.WrapError(err, errors.ErrorCategoryConfiguration, component, "unmarshal")
	}

	return &settings, nil
}

// Validate checks the settings for values the bot cannot run with
func (s *Settings) Validate() error {
	check := func(ok bool, format string, args ...interface{}) error {
		if ok {
			return nil
		}
		return errors.NewConfigurationError(component, "validate", fmt.Sprintf(format, args...))
	}

	checks := []error{
		check(s.Trading.ScanInterval > 0, "scan_interval must be positive"),
		check(s.Trading.MinEdgeThreshold > 0, "min_edge_threshold must be positive"),
		check(s.Trading.MinTradeSizeUSD >= 1, "min_trade_size_usd must be at least $1"),
		check(s.Trading.DefaultVolatility > 0, "default_volatility must be positive"),
		check(s.Trading.MaxOpenPositions >= 0, "max_open_positions cannot be negative"),
		check(s.MarketData.Symbol != "", "market_data.symbol is required"),
		s.FeedConfig().Validate(),
		check(s.Pricing.VolatilityLookbackHours > 0, "volatility_lookback_hours must be positive"),
		check(s.Risk.KellyFraction > 0 && s.Risk.KellyFraction <= 1, "kelly_fraction must be between 0 and 1"),
		check(s.Risk.MaxPositionSizeUSD > 0, "max_position_size_usd must be positive"),
		check(s.Risk.MaxDrawdownPercent > 0 && s.Risk.MaxDrawdownPercent <= 1, "max_drawdown_percent must be between 0 and 1"),
		check(s.Risk.DrawdownThreshold > 0 && s.Risk.DrawdownThreshold < 1, "drawdown_threshold must be between 0 and 1"),
		check(s.Risk.RiskAversion > 0, "risk_aversion must be positive"),
		check(s.Risk.BankrollUSD > 0, "bankroll_usd must be positive"),
	}

	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(s.Markets))
	for i, m := range s.Markets {
		if m.ID == "" {
			return check(false, "markets[%d]: id is required", i)
		}
		if seen[m.ID] {
			return check(false, "markets[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true

		if m.Strike <= 0 {
			return check(false, "market %s: strike must be positive", m.ID)
		}
		if m.Expiry.IsZero() {
			return check(false, "market %s: expiry is required", m.ID)
		}
		if m.YesPrice <= 0 || m.YesPrice >= 1 || m.NoPrice <= 0 || m.NoPrice >= 1 {
			return check(false, "market %s: prices must be inside (0, 1)", m.ID)
		}
	}

	return nil
}

// PricerConfig converts the pricing section for the pricer
func (s *Settings) PricerConfig() pricing.PricerConfig {
	return pricing.PricerConfig{
		UseImpliedVolatility:     s.Pricing.UseImpliedVolatility,
		VolatilityLookbackHours:  s.Pricing.VolatilityLookbackHours,
		VolatilityUpdateInterval: s.Pricing.VolatilityUpdateInterval,
	}
}

// Limits converts the risk section for the position sizer
func (s *Settings) Limits() risk.Limits {
	return risk.Limits{
		MaxPositionSizeUSD: s.Risk.MaxPositionSizeUSD,
		MinTradeSizeUSD:    s.Trading.MinTradeSizeUSD,
		MaxDailyLossUSD:    s.Risk.MaxDailyLossUSD,
		MaxDrawdownPercent: s.Risk.MaxDrawdownPercent,
		MaxOpenPositions:   s.Trading.MaxOpenPositions,
	}
}

// OverseerConfig converts the circuit breaker settings
func (s *Settings) OverseerConfig() risk.OverseerConfig {
	return risk.OverseerConfig{
		VolatilitySpikeMultiplier: s.Risk.VolatilitySpikeMultiplier,
		MaxConsecutiveErrors:      s.Risk.MaxConsecutiveErrors,
		CooldownPeriod:            s.Risk.BreakerCooldown,
	}
}

// KellyCriterion builds the Kelly calculator for the configured multiplier
func (s *Settings) KellyCriterion() *risk.KellyCriterion {
	return risk.NewKellyCriterion(s.Risk.KellyFraction)
}

// EvaluatorConfig converts the trading and risk sections for the evaluator
func (s *Settings) EvaluatorConfig() strategy.EvaluatorConfig {
	return strategy.EvaluatorConfig{
		MinEdgeThreshold:  s.Trading.MinEdgeThreshold,
		RiskFreeRate:      s.Trading.RiskFreeRate,
		DefaultVolatility: s.Trading.DefaultVolatility,
		RiskAversion:      s.Risk.RiskAversion,
		DrawdownThreshold: s.Risk.DrawdownThreshold,
		BankrollUSD:       s.Risk.BankrollUSD,
	}
}

// FeedConfig converts the market data section for the spot feed factory
func (s *Settings) FeedConfig() exchange.FeedConfig {
	return exchange.FeedConfig{
		Name:              s.MarketData.Exchange,
		Symbol:            s.MarketData.Symbol,
		Category:          s.MarketData.Category,
		KlineInterval:     s.MarketData.KlineInterval,
		APIKey:            s.MarketData.APIKey,
		APISecret:         s.MarketData.APISecret,
		Testnet:           s.MarketData.Testnet,
		Demo:              s.MarketData.Demo,
		ReconnectInterval: s.MarketData.ReconnectInterval,
	}
}
