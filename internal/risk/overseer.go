package risk

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/logger"
	"github.com/shopspring/decimal"
)

const (
	BreakerVolatilitySpike = "volatility_spike"
	BreakerFeedErrors      = "feed_errors"
)

// OverseerConfig contains the circuit breaker settings
type OverseerConfig struct {
	VolatilitySpikeMultiplier float64       `json:"volatility_spike_multiplier"` // x reference volatility
	MaxConsecutiveErrors      int           `json:"max_consecutive_errors"`
	CooldownPeriod            time.Duration `json:"cooldown_period"`
}

// DefaultOverseerConfig returns default circuit breaker settings
func DefaultOverseerConfig() OverseerConfig {
	return OverseerConfig{
		VolatilitySpikeMultiplier: 3.0,
		MaxConsecutiveErrors:      5,
		CooldownPeriod:            15 * time.Minute,
	}
}

// CircuitBreaker pauses new entries for a cooldown period once tripped
type CircuitBreaker struct {
	Name            string        `json:"name"`
	Threshold       float64       `json:"threshold"`
	CooldownPeriod  time.Duration `json:"cooldown_period"`
	ActivationCount int           `json:"activation_count"`
	LastActivated   time.Time     `json:"last_activated"`
	IsActive        bool          `json:"is_active"`
}

func (cb *CircuitBreaker) active(now time.Time) bool {
	return cb.IsActive && now.Sub(cb.LastActivated) < cb.CooldownPeriod
}

// CircuitBreakerAlert is returned when a breaker trips
type CircuitBreakerAlert struct {
	Name      string    `json:"name"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// RiskStatus is a point-in-time snapshot of the overseer
type RiskStatus struct {
	Balance               float64   `json:"balance"`
	PeakBalance           float64   `json:"peak_balance"`
	DailyPnL              float64   `json:"daily_pnl"`
	Drawdown              float64   `json:"drawdown"`
	OpenPositions         int       `json:"open_positions"`
	EmergencyStop         bool      `json:"emergency_stop"`
	ActiveCircuitBreakers []string  `json:"active_circuit_breakers"`
	LastUpdate            time.Time `json:"last_update"`
}

// Overseer guards the trading loop: it keeps a paper portfolio, trips
// circuit breakers on volatility spikes and feed failures and honours a
// manual emergency stop
type Overseer struct {
	logger *logger.Logger
	sizer  RiskManager
	config OverseerConfig
	now    func() time.Time

	mutex             sync.RWMutex
	portfolio         Portfolio
	emergencyStop     bool
	consecutiveErrors int
	lastResetDate     time.Time
	circuitBreakers   map[string]*CircuitBreaker
}

// NewOverseer creates an overseer starting from the given bankroll
func NewOverseer(log *logger.Logger, sizer RiskManager, config OverseerConfig, bankroll float64) *Overseer {
	o := &Overseer{
		logger: log,
		sizer:  sizer,
		config: config,
		now:    time.Now,
		portfolio: Portfolio{
			Balance:     bankroll,
			PeakBalance: bankroll,
		},
		circuitBreakers: make(map[string]*CircuitBreaker),
	}
	o.lastResetDate = o.now().UTC()

	o.circuitBreakers[BreakerVolatilitySpike] = &CircuitBreaker{
		Name:           BreakerVolatilitySpike,
		Threshold:      config.VolatilitySpikeMultiplier,
		CooldownPeriod: config.CooldownPeriod,
	}
	o.circuitBreakers[BreakerFeedErrors] = &CircuitBreaker{
		Name:           BreakerFeedErrors,
		Threshold:      float64(config.MaxConsecutiveErrors),
		CooldownPeriod: config.CooldownPeriod,
	}

	return o
}

// CheckVolatility trips the volatility breaker when realized volatility runs
// above the multiplier times the reference volatility
func (o *Overseer) CheckVolatility(realized, reference float64) *CircuitBreakerAlert {
	if reference <= 0 || o.config.VolatilitySpikeMultiplier <= 0 {
		return nil
	}

	o.mutex.Lock()
	defer o.mutex.Unlock()

	if realized <= reference*o.config.VolatilitySpikeMultiplier {
		return nil
	}

	return o.triggerCircuitBreaker(BreakerVolatilitySpike,
		fmt.Sprintf("realized volatility %.2f is %.1fx reference %.2f", realized, realized/reference, reference))
}

// RecordError counts a market data failure
func (o *Overseer) RecordError(err error) *CircuitBreakerAlert {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.consecutiveErrors++
	if o.config.MaxConsecutiveErrors <= 0 || o.consecutiveErrors < o.config.MaxConsecutiveErrors {
		return nil
	}

	return o.triggerCircuitBreaker(BreakerFeedErrors,
		fmt.Sprintf("%d consecutive feed errors, last: %v", o.consecutiveErrors, err))
}

// RecordSuccess resets the consecutive error count
func (o *Overseer) RecordSuccess() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.consecutiveErrors = 0
}

// triggerCircuitBreaker activates a breaker unless it is already cooling down.
// Callers hold the mutex.
func (o *Overseer) triggerCircuitBreaker(name, reason string) *CircuitBreakerAlert {
	breaker := o.circuitBreakers[name]
	if breaker == nil {
		return nil
	}

	now := o.now()
	if breaker.active(now) {
		return nil
	}

	breaker.IsActive = true
	breaker.LastActivated = now
	breaker.ActivationCount++

	o.logger.LogWarning("Circuit Breaker Activated", "%s: %s", breaker.Name, reason)

	return &CircuitBreakerAlert{
		Name:      breaker.Name,
		Reason:    reason,
		Timestamp: now,
	}
}

// RecordOrder books a filled order against the paper portfolio
func (o *Overseer) RecordOrder(amount decimal.Decimal) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.resetDailyLimitsIfNeeded()

	o.portfolio.Balance -= amount.InexactFloat64()
	o.portfolio.OpenPositions++
}

// RecordSettlement books a resolved position: stake is what was paid and
// payout what the contracts returned (zero for a loss)
func (o *Overseer) RecordSettlement(stake, payout decimal.Decimal) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.resetDailyLimitsIfNeeded()

	o.portfolio.Balance += payout.InexactFloat64()
	o.portfolio.DailyPnL += payout.Sub(stake).InexactFloat64()
	if o.portfolio.OpenPositions > 0 {
		o.portfolio.OpenPositions--
	}
	if o.portfolio.Balance > o.portfolio.PeakBalance {
		o.portfolio.PeakBalance = o.portfolio.Balance
	}
}

// Restore replaces the paper portfolio with a saved one
func (o *Overseer) Restore(p Portfolio) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if p.PeakBalance < p.Balance {
		p.PeakBalance = p.Balance
	}
	o.portfolio = p
	o.logger.Info("Portfolio restored: balance %.2f, peak %.2f, %d open positions", p.Balance, p.PeakBalance, p.OpenPositions)
}

// Portfolio returns a copy of the paper portfolio
func (o *Overseer) Portfolio() Portfolio {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return o.portfolio
}

// CanTrade reports whether new entries are allowed and, if not, why
func (o *Overseer) CanTrade() (bool, string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.resetDailyLimitsIfNeeded()

	if o.emergencyStop {
		return false, "emergency stop"
	}

	if active := o.getActiveCircuitBreakers(); len(active) > 0 {
		return false, fmt.Sprintf("circuit breaker active: %v", active)
	}

	if o.sizer != nil && o.sizer.ShouldStopTrading(&o.portfolio) {
		return false, "risk limits reached"
	}

	return true, ""
}

func (o *Overseer) resetDailyLimitsIfNeeded() {
	now := o.now().UTC()
	if now.YearDay() != o.lastResetDate.YearDay() || now.Year() != o.lastResetDate.Year() {
		o.portfolio.DailyPnL = 0
		o.lastResetDate = now

		o.logger.Info("Daily risk limits reset")
	}
}

// SetEmergencyStop halts or resumes new entries
func (o *Overseer) SetEmergencyStop(stop bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.emergencyStop = stop
	if stop {
		o.logger.LogError("Emergency Stop Activated", fmt.Errorf("manual emergency stop activated"))
	} else {
		o.logger.Info("Emergency stop deactivated")
	}
}

// GetRiskStatus returns a snapshot of the overseer state
func (o *Overseer) GetRiskStatus() *RiskStatus {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return &RiskStatus{
		Balance:               o.portfolio.Balance,
		PeakBalance:           o.portfolio.PeakBalance,
		DailyPnL:              o.portfolio.DailyPnL,
		Drawdown:              o.portfolio.Drawdown(),
		OpenPositions:         o.portfolio.OpenPositions,
		EmergencyStop:         o.emergencyStop,
		ActiveCircuitBreakers: o.getActiveCircuitBreakers(),
		LastUpdate:            o.now(),
	}
}

func (o *Overseer) getActiveCircuitBreakers() []string {
	now := o.now()

	var active []string
	for name, breaker := range o.circuitBreakers {
		if breaker.active(now) {
			active = append(active, name)
		}
	}
	sort.Strings(active)
	return active
}
