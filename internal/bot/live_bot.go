package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/errors"
	"github.com/ducminhle1904/binary-edge-bot/internal/exchange"
	"github.com/ducminhle1904/binary-edge-bot/internal/logger"
	"github.com/ducminhle1904/binary-edge-bot/internal/monitoring"
	"github.com/ducminhle1904/binary-edge-bot/internal/notifications"
	"github.com/ducminhle1904/binary-edge-bot/internal/pricing"
	"github.com/ducminhle1904/binary-edge-bot/internal/risk"
	"github.com/ducminhle1904/binary-edge-bot/internal/state"
	"github.com/ducminhle1904/binary-edge-bot/internal/strategy"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"golang.org/x/sync/errgroup"
)

const component = "bot"

// DecisionRecorder persists every decision the bot makes
type DecisionRecorder interface {
	Record(d *strategy.Decision) error
}

// Options holds the loop timing and volatility reference
type Options struct {
	Symbol                   string
	ScanInterval             time.Duration
	VolatilityLookback       time.Duration
	VolatilityUpdateInterval time.Duration
	ReferenceVolatility      float64       // Baseline for the volatility spike breaker
	RequestTimeout           time.Duration // Per-scan market data deadline
}

// Dependencies are the collaborators of a LiveBot. Feed, Quotes, Strategy
// and Overseer are required.
type Dependencies struct {
	Feed     exchange.SpotFeed
	Quotes   exchange.QuoteSource
	Strategy strategy.Strategy
	Overseer *risk.Overseer
	Sizer    risk.RiskManager
	Metrics  *monitoring.Metrics
	Health   *monitoring.HealthChecker
	Journal  DecisionRecorder
	Notifier notifications.Notifier
	State    *state.StatePersistence
	Logger   *logger.Logger
}

// LiveBot scans the configured binary markets against the spot feed and
// paper-trades the ones with enough edge
type LiveBot struct {
	deps Dependencies
	opts Options
	now  func() time.Time

	mu          sync.Mutex
	history     []types.OHLCV
	realizedVol float64
	lastHistory time.Time
	lastSpot    float64
	positions   map[string]*PaperPosition
	errorStats  *errors.ErrorStats
}

// NewLiveBot creates a bot from its dependencies
func NewLiveBot(deps Dependencies, opts Options) (*LiveBot, error) {
	switch {
	case deps.Feed == nil:
		return nil, errors.NewConfigurationError(component, "new", "spot feed is required")
	case deps.Quotes == nil:
		return nil, errors.NewConfigurationError(component, "new", "quote source is required")
	case deps.Strategy == nil:
		return nil, errors.NewConfigurationError(component, "new", "strategy is required")
	case deps.Overseer == nil:
		return nil, errors.NewConfigurationError(component, "new", "overseer is required")
	case opts.ScanInterval <= 0:
		return nil, errors.NewConfigurationError(component, "new", "scan interval must be positive")
	}

	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.VolatilityUpdateInterval <= 0 {
		opts.VolatilityUpdateInterval = time.Minute
	}

	return &LiveBot{
		deps:       deps,
		opts:       opts,
		now:        time.Now,
		positions:  make(map[string]*PaperPosition),
		errorStats: errors.NewErrorStats(50),
	}, nil
}

// Run starts the feed's background work, if any, and the scan loop. It
// returns nil when ctx is cancelled and an error only for fatal failures.
func (b *LiveBot) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if runner, ok := b.deps.Feed.(exchange.Runner); ok {
		g.Go(func() error {
			return runner.Run(ctx)
		})
	}

	g.Go(func() error {
		return b.tradingLoop(ctx)
	})

	return g.Wait()
}

func (b *LiveBot) tradingLoop(ctx context.Context) error {
	b.deps.Logger.Info("Trading loop started: %s every %s on %s", b.opts.Symbol, b.opts.ScanInterval, b.deps.Feed.GetName())

	ticker := time.NewTicker(b.opts.ScanInterval)
	defer ticker.Stop()

	for {
		if _, err := b.ScanOnce(ctx); err != nil {
			if botErr, ok := errors.AsBotError(err); ok && botErr.GetRecoveryAction() == errors.RecoveryActionStop {
				return err
			}
		}

		select {
		case <-ctx.Done():
			b.deps.Logger.Info("Trading loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// ScanOnce runs one pass: refresh spot and history, settle expired
// positions, then evaluate every market. The decisions are returned in quote
// order.
func (b *LiveBot) ScanOnce(ctx context.Context) ([]*strategy.Decision, error) {
	if ctx.Err() != nil {
		return nil, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, b.opts.RequestTimeout)
	defer cancel()

	ticker, err := b.deps.Feed.LatestPrice(reqCtx)
	if err != nil {
		return nil, b.recordFailure("latest_price", err)
	}

	b.deps.Overseer.RecordSuccess()
	b.observePrice(ticker.Price)

	now := b.now()
	if b.historyDue(now) {
		if err := b.refreshHistory(reqCtx, now); err != nil {
			// Pricing falls back to the previous or default volatility
			b.recordFailure("price_history", err)
		}
	}

	b.settleExpired(ticker.Price, now)

	quotes, err := b.deps.Quotes.Quotes(reqCtx)
	if err != nil {
		return nil, b.recordFailure("quotes", err)
	}

	canTrade, haltReason := b.deps.Overseer.CanTrade()
	if b.deps.Health != nil {
		b.deps.Health.SetTradingHalted(haltReason)
	}

	history, interval := b.snapshotHistory()
	decisions := make([]*strategy.Decision, 0, len(quotes))

	for _, quote := range quotes {
		in := strategy.EvaluationInput{
			Quote:    quote,
			Spot:     ticker.Price,
			Now:      now,
			History:  history,
			Interval: interval,
			Balance:  b.deps.Overseer.Portfolio().Balance,
		}

		decision, err := b.deps.Strategy.Evaluate(in)
		if err != nil {
			b.recordEvaluationError(quote.ID, err)
			continue
		}

		b.recordDecision(decision)
		decisions = append(decisions, decision)

		if !decision.ShouldTrade() {
			continue
		}
		if !canTrade {
			b.deps.Logger.LogWarning("Trade skipped", "%s: %s", decision.MarketID, haltReason)
			continue
		}
		b.openPosition(decision, quote)
	}

	if b.deps.Health != nil {
		b.deps.Health.RecordEvaluation(now)
	}
	if b.deps.Metrics != nil {
		b.deps.Metrics.UpdateBankroll(b.deps.Overseer.Portfolio().Balance)
	}

	return decisions, nil
}

func (b *LiveBot) observePrice(price float64) {
	b.mu.Lock()
	b.lastSpot = price
	b.mu.Unlock()

	if b.deps.Health != nil {
		b.deps.Health.UpdatePrice(price)
	}
	if b.deps.Metrics != nil {
		b.deps.Metrics.UpdatePrice(b.opts.Symbol, price)
	}
}

func (b *LiveBot) historyDue(now time.Time) bool {
	if b.opts.VolatilityLookback <= 0 {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastHistory.IsZero() || now.Sub(b.lastHistory) >= b.opts.VolatilityUpdateInterval
}

func (b *LiveBot) refreshHistory(ctx context.Context, now time.Time) error {
	candles, err := b.deps.Feed.PriceHistory(ctx, b.opts.VolatilityLookback)
	if err != nil {
		return err
	}

	realized := pricing.RealizedVolatilityFromCandles(candles, b.deps.Feed.Interval())

	b.mu.Lock()
	b.history = candles
	b.realizedVol = realized
	b.lastHistory = now
	b.mu.Unlock()

	b.deps.Logger.Status("Realized volatility %.2f%% over %d candles", realized*100, len(candles))
	if b.deps.Metrics != nil {
		b.deps.Metrics.UpdateRealizedVolatility(b.opts.Symbol, realized)
	}

	if alert := b.deps.Overseer.CheckVolatility(realized, b.opts.ReferenceVolatility); alert != nil {
		b.onBreakerTrip(alert)
	}
	return nil
}

func (b *LiveBot) snapshotHistory() ([]types.OHLCV, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history, b.deps.Feed.Interval()
}

func (b *LiveBot) recordDecision(d *strategy.Decision) {
	side := string(d.Side)
	if d.Action != strategy.ActionBuy {
		side = string(types.SideNone)
	}

	b.deps.Logger.LogEvaluation(d.MarketID, side, d.Spot, d.FairValue(), d.MarketPrice, d.Edge, d.KellyFraction)

	if b.deps.Metrics != nil {
		b.deps.Metrics.RecordEvaluation(d.MarketID, side, d.FairValue(), d.YesEdge, d.NoEdge, d.KellyFraction, d.Pricing.ImpliedVolatility)
	}

	if b.deps.Journal != nil {
		if err := b.deps.Journal.Record(d); err != nil {
			b.deps.Logger.LogError("Failed to journal decision", err)
		}
	}
}

func (b *LiveBot) recordEvaluationError(marketID string, err error) {
	botErr := errors.CategorizeError(err, component, "evaluate").WithContext("market_id", marketID)

	b.mu.Lock()
	b.errorStats.RecordError(botErr)
	b.mu.Unlock()

	b.deps.Logger.LogError(fmt.Sprintf("Evaluation failed for %s", marketID), botErr)
	if b.deps.Metrics != nil {
		b.deps.Metrics.RecordError(string(botErr.Category))
	}
}

// recordFailure books a market data failure against the feed breaker and
// returns the categorized error
func (b *LiveBot) recordFailure(operation string, err error) error {
	botErr := errors.CategorizeError(err, component, operation)

	b.mu.Lock()
	b.errorStats.RecordError(botErr)
	b.mu.Unlock()

	b.deps.Logger.LogError(fmt.Sprintf("Market data failure (%s)", operation), botErr)
	if b.deps.Health != nil {
		b.deps.Health.RecordError(botErr.Error())
	}
	if b.deps.Metrics != nil {
		b.deps.Metrics.RecordError(string(botErr.Category))
	}

	if alert := b.deps.Overseer.RecordError(botErr); alert != nil {
		b.onBreakerTrip(alert)
	}
	return botErr
}

func (b *LiveBot) onBreakerTrip(alert *risk.CircuitBreakerAlert) {
	b.deps.Logger.Status("Circuit breaker %s tripped: %s", alert.Name, alert.Reason)
	if b.deps.Metrics != nil {
		b.deps.Metrics.RecordBreakerTrip(alert.Name)
	}
	if b.deps.Health != nil {
		b.deps.Health.SetTradingHalted(alert.Reason)
	}
	b.notify(notifications.LevelWarning, "Circuit breaker %s tripped: %s", alert.Name, alert.Reason)
}

// ErrorStats returns a copy of the error counters
func (b *LiveBot) ErrorStats() errors.ErrorStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := *b.errorStats
	stats.ErrorsByCategory = make(map[errors.ErrorCategory]int, len(b.errorStats.ErrorsByCategory))
	for k, v := range b.errorStats.ErrorsByCategory {
		stats.ErrorsByCategory[k] = v
	}
	stats.RecentErrors = append([]*errors.BotError(nil), b.errorStats.RecentErrors...)
	return stats
}

// RealizedVolatility returns the last realized volatility estimate
func (b *LiveBot) RealizedVolatility() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.realizedVol
}
