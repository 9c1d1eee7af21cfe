package bot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	boterrors "github.com/ducminhle1904/binary-edge-bot/internal/errors"
	"github.com/ducminhle1904/binary-edge-bot/internal/exchange"
	"github.com/ducminhle1904/binary-edge-bot/internal/logger"
	"github.com/ducminhle1904/binary-edge-bot/internal/monitoring"
	"github.com/ducminhle1904/binary-edge-bot/internal/notifications"
	"github.com/ducminhle1904/binary-edge-bot/internal/pricing"
	"github.com/ducminhle1904/binary-edge-bot/internal/risk"
	"github.com/ducminhle1904/binary-edge-bot/internal/state"
	"github.com/ducminhle1904/binary-edge-bot/internal/strategy"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var botNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeFeed struct {
	mu           sync.Mutex
	price        float64
	err          error
	candles      []types.OHLCV
	historyCalls int
}

func (f *fakeFeed) GetName() string { return "Fake" }

func (f *fakeFeed) LatestPrice(ctx context.Context) (types.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return types.Ticker{}, f.err
	}
	return types.Ticker{Symbol: "BTCUSDT", Price: f.price, Timestamp: botNow}, nil
}

func (f *fakeFeed) PriceHistory(ctx context.Context, lookback time.Duration) ([]types.OHLCV, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	return f.candles, nil
}

func (f *fakeFeed) Interval() time.Duration { return time.Hour }

func (f *fakeFeed) set(price float64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price, f.err = price, err
}

type runnerFeed struct {
	*fakeFeed
	runs int32
}

func (r *runnerFeed) Run(ctx context.Context) error {
	atomic.AddInt32(&r.runs, 1)
	<-ctx.Done()
	return nil
}

type memoryJournal struct {
	mu        sync.Mutex
	decisions []*strategy.Decision
}

func (j *memoryJournal) Record(d *strategy.Decision) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.decisions = append(j.decisions, d)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	levels []notifications.Level
	alerts []string
}

func (n *recordingNotifier) SendAlert(ctx context.Context, level notifications.Level, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.levels = append(n.levels, level)
	n.alerts = append(n.alerts, message)
	return nil
}

func flatCandles(price float64, n int) []types.OHLCV {
	candles := make([]types.OHLCV, n)
	for i := range candles {
		candles[i] = types.OHLCV{
			Open: price, High: price, Low: price, Close: price,
			Timestamp: botNow.Add(time.Duration(i-n) * time.Hour),
		}
	}
	return candles
}

func choppyCandles(n int) []types.OHLCV {
	candles := make([]types.OHLCV, n)
	for i := range candles {
		price := 100000.0
		if i%2 == 1 {
			price = 110000.0
		}
		candles[i] = types.OHLCV{Close: price, Timestamp: botNow.Add(time.Duration(i-n) * time.Hour)}
	}
	return candles
}

func atmQuote(id string) types.MarketQuote {
	return types.MarketQuote{
		ID:       id,
		Strike:   100000,
		Expiry:   botNow.Add(30 * 24 * time.Hour),
		YesPrice: 0.40,
		NoPrice:  0.60,
	}
}

type testBot struct {
	bot      *LiveBot
	feed     *fakeFeed
	quotes   *exchange.StaticQuoteSource
	overseer *risk.Overseer
	health   *monitoring.HealthChecker
	journal  *memoryJournal
	clock    *time.Time
}

func newTestBot(t *testing.T, quotes ...types.MarketQuote) *testBot {
	t.Helper()

	pricerConfig := pricing.DefaultPricerConfig()
	pricerConfig.UseImpliedVolatility = false

	sizer := risk.NewPositionSizer(risk.DefaultLimits())
	evaluator := strategy.NewEvaluator(
		pricing.NewBinaryOptionPricer(pricerConfig),
		risk.DefaultKellyCriterion(),
		sizer,
		strategy.DefaultEvaluatorConfig(),
	)

	overseer := risk.NewOverseer(logger.NewNopLogger(), sizer, risk.OverseerConfig{
		VolatilitySpikeMultiplier: 3,
		MaxConsecutiveErrors:      3,
		CooldownPeriod:            15 * time.Minute,
	}, 1000)

	tb := &testBot{
		feed:     &fakeFeed{price: 100000, candles: flatCandles(100000, 25)},
		quotes:   exchange.NewStaticQuoteSource(quotes),
		overseer: overseer,
		health:   monitoring.NewHealthChecker(time.Minute),
		journal:  &memoryJournal{},
	}

	b, err := NewLiveBot(Dependencies{
		Feed:     tb.feed,
		Quotes:   tb.quotes,
		Strategy: evaluator,
		Overseer: overseer,
		Sizer:    sizer,
		Metrics:  monitoring.NewMetrics(),
		Health:   tb.health,
		Journal:  tb.journal,
	}, Options{
		Symbol:                   "BTCUSDT",
		ScanInterval:             time.Second,
		VolatilityLookback:       24 * time.Hour,
		VolatilityUpdateInterval: time.Minute,
		ReferenceVolatility:      0.6,
	})
	require.NoError(t, err)

	clock := botNow
	tb.clock = &clock
	b.now = func() time.Time { return *tb.clock }
	tb.bot = b
	return tb
}

func TestNewLiveBot_RequiresDependencies(t *testing.T) {
	feed := &fakeFeed{}
	quotes := exchange.NewStaticQuoteSource(nil)
	evaluator := strategy.NewEvaluator(pricing.NewBinaryOptionPricer(pricing.DefaultPricerConfig()), nil, nil, strategy.DefaultEvaluatorConfig())
	overseer := risk.NewOverseer(logger.NewNopLogger(), nil, risk.DefaultOverseerConfig(), 1000)
	opts := Options{ScanInterval: time.Second}

	tests := []struct {
		name string
		deps Dependencies
		opts Options
	}{
		{"No feed", Dependencies{Quotes: quotes, Strategy: evaluator, Overseer: overseer}, opts},
		{"No quotes", Dependencies{Feed: feed, Strategy: evaluator, Overseer: overseer}, opts},
		{"No strategy", Dependencies{Feed: feed, Quotes: quotes, Overseer: overseer}, opts},
		{"No overseer", Dependencies{Feed: feed, Quotes: quotes, Strategy: evaluator}, opts},
		{"No scan interval", Dependencies{Feed: feed, Quotes: quotes, Strategy: evaluator, Overseer: overseer}, Options{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLiveBot(tt.deps, tt.opts)
			require.Error(t, err)

			botErr, ok := boterrors.AsBotError(err)
			require.True(t, ok)
			assert.Equal(t, boterrors.ErrorCategoryConfiguration, botErr.Category)
		})
	}
}

func TestScanOnce_OpensPaperPosition(t *testing.T) {
	tb := newTestBot(t, atmQuote("btc-100k"))

	decisions, err := tb.bot.ScanOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, decisions, 1)

	d := decisions[0]
	assert.Equal(t, strategy.ActionBuy, d.Action)
	assert.Equal(t, types.SideYes, d.Side)
	assert.Equal(t, strategy.VolatilityDefault, d.VolatilitySource)
	assert.True(t, d.Amount.IsPositive())

	positions := tb.bot.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "btc-100k", positions[0].MarketID)
	assert.Equal(t, 0.40, positions[0].Price)
	assert.True(t, d.Amount.Equal(positions[0].Stake))

	portfolio := tb.overseer.Portfolio()
	assert.InDelta(t, 1000-d.Amount.InexactFloat64(), portfolio.Balance, 1e-9)
	assert.Equal(t, 1, portfolio.OpenPositions)

	assert.Len(t, tb.journal.decisions, 1)
	assert.Equal(t, 1, tb.feed.historyCalls)

	health, _ := tb.health.Status()
	assert.True(t, health.IsConnected)
	assert.Equal(t, 100000.0, health.LastPrice)
	assert.Equal(t, botNow, health.LastEvaluation)
}

func TestScanOnce_DoesNotDoubleUp(t *testing.T) {
	tb := newTestBot(t, atmQuote("btc-100k"))

	_, err := tb.bot.ScanOnce(context.Background())
	require.NoError(t, err)
	balance := tb.overseer.Portfolio().Balance

	*tb.clock = botNow.Add(10 * time.Second)
	decisions, err := tb.bot.ScanOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].ShouldTrade())

	assert.Len(t, tb.bot.Positions(), 1)
	assert.Equal(t, balance, tb.overseer.Portfolio().Balance)
	assert.Len(t, tb.journal.decisions, 2)

	// history is refreshed on its own interval, not every scan
	assert.Equal(t, 1, tb.feed.historyCalls)
}

func TestScanOnce_SettlesAtExpiry(t *testing.T) {
	tests := []struct {
		name string
		spot float64
		wins bool
	}{
		{"Finishes above strike", 110000, true},
		{"Finishes at strike", 100000, true},
		{"Finishes below strike", 90000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBot(t, atmQuote("btc-100k"))

			decisions, err := tb.bot.ScanOnce(context.Background())
			require.NoError(t, err)
			stake := decisions[0].Amount

			*tb.clock = botNow.Add(31 * 24 * time.Hour)
			tb.feed.set(tt.spot, nil)

			decisions, err = tb.bot.ScanOnce(context.Background())
			require.NoError(t, err)
			require.Len(t, decisions, 1)
			assert.Equal(t, strategy.ActionHold, decisions[0].Action)
			assert.Equal(t, "market expired", decisions[0].Reason)

			assert.Empty(t, tb.bot.Positions())

			expected := 1000 - stake.InexactFloat64()
			if tt.wins {
				expected += stake.Div(decimal.NewFromFloat(0.40)).RoundDown(2).InexactFloat64()
			}
			portfolio := tb.overseer.Portfolio()
			assert.InDelta(t, expected, portfolio.Balance, 1e-6)
			assert.Equal(t, 0, portfolio.OpenPositions)
		})
	}
}

func TestScanOnce_FeedErrorsTripBreaker(t *testing.T) {
	tb := newTestBot(t, atmQuote("btc-100k"))
	tb.feed.set(0, fmt.Errorf("dial tcp: connection refused"))

	for i := 0; i < 3; i++ {
		_, err := tb.bot.ScanOnce(context.Background())
		require.Error(t, err)

		botErr, ok := boterrors.AsBotError(err)
		require.True(t, ok)
		assert.Equal(t, boterrors.ErrorCategoryNetwork, botErr.Category)
	}

	ok, reason := tb.overseer.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, risk.BreakerFeedErrors)

	stats := tb.bot.ErrorStats()
	assert.Equal(t, 3, stats.TotalErrors)
	assert.Equal(t, 3, stats.ErrorsByCategory[boterrors.ErrorCategoryNetwork])

	// the feed recovers but the breaker is still cooling down
	tb.feed.set(100000, nil)
	decisions, err := tb.bot.ScanOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].ShouldTrade())
	assert.Empty(t, tb.bot.Positions())

	health, _ := tb.health.Status()
	assert.Contains(t, health.TradingHalted, risk.BreakerFeedErrors)
}

func TestScanOnce_VolatilitySpikeHaltsTrading(t *testing.T) {
	tb := newTestBot(t, atmQuote("btc-100k"))
	tb.feed.candles = choppyCandles(25)

	decisions, err := tb.bot.ScanOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, decisions, 1)

	assert.Equal(t, strategy.VolatilityRealized, decisions[0].VolatilitySource)
	assert.Greater(t, tb.bot.RealizedVolatility(), 1.8)

	ok, reason := tb.overseer.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, risk.BreakerVolatilitySpike)
	assert.Empty(t, tb.bot.Positions())
}

func TestScanOnce_SkipsInvalidQuotes(t *testing.T) {
	bad := atmQuote("broken")
	bad.YesPrice = 0
	tb := newTestBot(t, bad, atmQuote("btc-100k"))

	decisions, err := tb.bot.ScanOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "btc-100k", decisions[0].MarketID)

	stats := tb.bot.ErrorStats()
	assert.Equal(t, 1, stats.ErrorsByCategory[boterrors.ErrorCategoryValidation])

	// evaluation errors are not feed errors
	ok, _ := tb.overseer.CanTrade()
	assert.True(t, ok)
}

func TestRun_StartsFeedAndStopsOnCancel(t *testing.T) {
	tb := newTestBot(t, atmQuote("btc-100k"))
	feed := &runnerFeed{fakeFeed: tb.feed}
	tb.bot.deps.Feed = feed

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tb.bot.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(tb.bot.Positions()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&feed.runs))
}

func TestPaperPosition_Payout(t *testing.T) {
	tests := []struct {
		name   string
		side   types.Side
		spot   float64
		payout string
	}{
		{"YES above", types.SideYes, 101, "125"},
		{"YES below", types.SideYes, 99, "0"},
		{"NO below", types.SideNo, 99, "125"},
		{"NO at strike", types.SideNo, 100, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := PaperPosition{Side: tt.side, Strike: 100, Price: 0.4, Stake: decimal.NewFromInt(50)}
			assert.True(t, decimal.RequireFromString(tt.payout).Equal(pos.Payout(tt.spot)), "payout %s", pos.Payout(tt.spot))
		})
	}

	assert.True(t, (&PaperPosition{Stake: decimal.NewFromInt(10)}).Contracts().IsZero())
}

func TestScanOnce_PersistsAndRestores(t *testing.T) {
	dir := t.TempDir()

	tb := newTestBot(t, atmQuote("btc-100k"))
	tb.bot.deps.State = state.NewStatePersistence(nil, dir, "BTCUSDT")

	decisions, err := tb.bot.ScanOnce(context.Background())
	require.NoError(t, err)
	stake := decisions[0].Amount

	saved, err := state.NewStatePersistence(nil, dir, "BTCUSDT").LoadState()
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.Len(t, saved.Positions, 1)
	assert.True(t, stake.Equal(saved.Positions[0].Stake))
	assert.InDelta(t, 1000-stake.InexactFloat64(), saved.Portfolio.Balance, 1e-9)

	// a fresh bot picks up where the first one stopped
	restarted := newTestBot(t, atmQuote("btc-100k"))
	notifier := &recordingNotifier{}
	restarted.bot.deps.Notifier = notifier
	restarted.bot.deps.State = state.NewStatePersistence(nil, dir, "BTCUSDT")
	restarted.bot.Restore(saved)

	require.Len(t, restarted.bot.Positions(), 1)
	portfolio := restarted.overseer.Portfolio()
	assert.Equal(t, saved.Portfolio.Balance, portfolio.Balance)
	assert.Equal(t, 1, portfolio.OpenPositions)

	*restarted.clock = botNow.Add(31 * 24 * time.Hour)
	restarted.feed.set(110000, nil)
	_, err = restarted.bot.ScanOnce(context.Background())
	require.NoError(t, err)

	assert.Empty(t, restarted.bot.Positions())
	payout := stake.Div(decimal.NewFromFloat(0.40)).RoundDown(2)
	assert.InDelta(t, 1000-stake.InexactFloat64()+payout.InexactFloat64(), restarted.overseer.Portfolio().Balance, 1e-6)

	require.NotEmpty(t, notifier.alerts)
	assert.Equal(t, notifications.LevelSuccess, notifier.levels[0])
	assert.Contains(t, notifier.alerts[0], "Settled btc-100k YES: won")

	after, err := state.NewStatePersistence(nil, dir, "BTCUSDT").LoadState()
	require.NoError(t, err)
	assert.Empty(t, after.Positions)
}

func TestRestore_Nil(t *testing.T) {
	tb := newTestBot(t)
	tb.bot.Restore(nil)
	assert.Equal(t, 1000.0, tb.overseer.Portfolio().Balance)
}

func TestScanOnce_NotifiesBreakerAndFills(t *testing.T) {
	tb := newTestBot(t, atmQuote("btc-100k"))
	notifier := &recordingNotifier{}
	tb.bot.deps.Notifier = notifier

	_, err := tb.bot.ScanOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, notifications.LevelInfo, notifier.levels[0])
	assert.Contains(t, notifier.alerts[0], "Paper buy btc-100k YES")

	tb.feed.set(0, fmt.Errorf("dial tcp: connection refused"))
	for i := 0; i < 3; i++ {
		_, _ = tb.bot.ScanOnce(context.Background())
	}

	require.Len(t, notifier.alerts, 2)
	assert.Equal(t, notifications.LevelWarning, notifier.levels[1])
	assert.Contains(t, notifier.alerts[1], risk.BreakerFeedErrors)
}
