package risk

import (
	"fmt"
	"testing"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestOverseer(bankroll float64) (*Overseer, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	o := NewOverseer(logger.NewNopLogger(), NewPositionSizer(DefaultLimits()), DefaultOverseerConfig(), bankroll)
	o.now = clock.now
	o.lastResetDate = clock.t
	return o, clock
}

func TestOverseer_CanTradeInitially(t *testing.T) {
	o, _ := newTestOverseer(1000)

	ok, reason := o.CanTrade()
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestOverseer_VolatilityBreaker(t *testing.T) {
	o, clock := newTestOverseer(1000)

	assert.Nil(t, o.CheckVolatility(1.5, 0.6))

	alert := o.CheckVolatility(2.0, 0.6)
	require.NotNil(t, alert)
	assert.Equal(t, BreakerVolatilitySpike, alert.Name)

	// Already tripped, no second alert during cooldown
	assert.Nil(t, o.CheckVolatility(2.5, 0.6))

	ok, reason := o.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, BreakerVolatilitySpike)

	clock.t = clock.t.Add(16 * time.Minute)
	ok, _ = o.CanTrade()
	assert.True(t, ok)
}

func TestOverseer_VolatilityBreakerIgnoresMissingReference(t *testing.T) {
	o, _ := newTestOverseer(1000)
	assert.Nil(t, o.CheckVolatility(10, 0))
}

func TestOverseer_FeedErrorBreaker(t *testing.T) {
	o, _ := newTestOverseer(1000)

	for i := 0; i < 4; i++ {
		assert.Nil(t, o.RecordError(fmt.Errorf("timeout")))
	}
	o.RecordSuccess()

	for i := 0; i < 4; i++ {
		assert.Nil(t, o.RecordError(fmt.Errorf("timeout")))
	}
	alert := o.RecordError(fmt.Errorf("timeout"))
	require.NotNil(t, alert)
	assert.Equal(t, BreakerFeedErrors, alert.Name)

	status := o.GetRiskStatus()
	assert.Equal(t, []string{BreakerFeedErrors}, status.ActiveCircuitBreakers)
}

func TestOverseer_EmergencyStop(t *testing.T) {
	o, _ := newTestOverseer(1000)

	o.SetEmergencyStop(true)
	ok, reason := o.CanTrade()
	assert.False(t, ok)
	assert.Equal(t, "emergency stop", reason)
	assert.True(t, o.GetRiskStatus().EmergencyStop)

	o.SetEmergencyStop(false)
	ok, _ = o.CanTrade()
	assert.True(t, ok)
}

func TestOverseer_PaperPortfolio(t *testing.T) {
	o, _ := newTestOverseer(1000)

	o.RecordOrder(decimal.NewFromInt(100))
	p := o.Portfolio()
	assert.Equal(t, 900.0, p.Balance)
	assert.Equal(t, 1, p.OpenPositions)

	// 100 staked at 0.40 pays 250 on a win
	o.RecordSettlement(decimal.NewFromInt(100), decimal.NewFromInt(250))
	p = o.Portfolio()
	assert.Equal(t, 1150.0, p.Balance)
	assert.Equal(t, 1150.0, p.PeakBalance)
	assert.Equal(t, 150.0, p.DailyPnL)
	assert.Equal(t, 0, p.OpenPositions)
}

func TestOverseer_StopsOnDrawdown(t *testing.T) {
	o, _ := newTestOverseer(1000)

	o.RecordOrder(decimal.NewFromInt(150))
	o.RecordSettlement(decimal.NewFromInt(150), decimal.Zero)

	ok, reason := o.CanTrade()
	assert.False(t, ok)
	assert.Equal(t, "risk limits reached", reason)
	assert.InDelta(t, 0.15, o.GetRiskStatus().Drawdown, 1e-12)
}

func TestOverseer_DailyReset(t *testing.T) {
	o, clock := newTestOverseer(100000)

	o.RecordOrder(decimal.NewFromInt(100))
	o.RecordSettlement(decimal.NewFromInt(100), decimal.Zero)
	assert.Equal(t, -100.0, o.Portfolio().DailyPnL)

	clock.t = clock.t.Add(24 * time.Hour)
	_, _ = o.CanTrade()
	assert.Equal(t, 0.0, o.Portfolio().DailyPnL)
}

func TestOverseer_Restore(t *testing.T) {
	o, _ := newTestOverseer(1000)

	o.Restore(Portfolio{Balance: 960, PeakBalance: 1000, DailyPnL: -40, OpenPositions: 2})
	p := o.Portfolio()
	assert.Equal(t, 960.0, p.Balance)
	assert.Equal(t, 2, p.OpenPositions)
	assert.InDelta(t, 0.04, p.Drawdown(), 1e-12)

	// a peak below the balance is lifted to it
	o.Restore(Portfolio{Balance: 1200, PeakBalance: 1000})
	assert.Equal(t, 1200.0, o.Portfolio().PeakBalance)
}
