package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/notifications"
	"github.com/ducminhle1904/binary-edge-bot/internal/risk"
	"github.com/ducminhle1904/binary-edge-bot/internal/state"
)

const notifyTimeout = 10 * time.Second

// Restore reloads paper positions and the bankroll saved by a previous run.
// It must be called before Run.
func (b *LiveBot) Restore(s *state.SystemState) {
	if s == nil {
		return
	}

	b.mu.Lock()
	b.positions = make(map[string]*PaperPosition, len(s.Positions))
	for _, p := range s.Positions {
		b.positions[p.MarketID] = &PaperPosition{
			MarketID: p.MarketID,
			Side:     p.Side,
			Strike:   p.Strike,
			Expiry:   p.Expiry,
			Price:    p.Price,
			Stake:    p.Stake,
			OpenedAt: p.OpenedAt,
		}
	}
	open := len(b.positions)
	b.mu.Unlock()

	b.deps.Overseer.Restore(risk.Portfolio{
		Balance:       s.Portfolio.Balance,
		PeakBalance:   s.Portfolio.PeakBalance,
		DailyPnL:      s.Portfolio.DailyPnL,
		OpenPositions: open,
	})
}

// snapshot captures the state to persist
func (b *LiveBot) snapshot() state.SystemState {
	portfolio := b.deps.Overseer.Portfolio()

	s := state.SystemState{
		LastUpdated: b.now().UTC(),
		Portfolio: state.PortfolioState{
			Balance:     portfolio.Balance,
			PeakBalance: portfolio.PeakBalance,
			DailyPnL:    portfolio.DailyPnL,
		},
	}
	for _, p := range b.Positions() {
		s.Positions = append(s.Positions, state.PositionState{
			MarketID: p.MarketID,
			Side:     p.Side,
			Strike:   p.Strike,
			Expiry:   p.Expiry,
			Price:    p.Price,
			Stake:    p.Stake,
			OpenedAt: p.OpenedAt,
		})
	}
	return s
}

func (b *LiveBot) persist() {
	if b.deps.State == nil {
		return
	}
	if err := b.deps.State.SaveState(b.snapshot()); err != nil {
		b.deps.Logger.LogError("Failed to save state", err)
	}
}

// notify sends an alert if a notifier is configured. Failures are logged
// and never stop the loop.
func (b *LiveBot) notify(level notifications.Level, format string, args ...interface{}) {
	if b.deps.Notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := b.deps.Notifier.SendAlert(ctx, level, fmt.Sprintf(format, args...)); err != nil {
		b.deps.Logger.LogWarning("Notification failed", "%v", err)
	}
}
