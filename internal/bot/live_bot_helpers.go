package bot

import (
	"sort"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/notifications"
	"github.com/ducminhle1904/binary-edge-bot/internal/risk"
	"github.com/ducminhle1904/binary-edge-bot/internal/strategy"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"github.com/shopspring/decimal"
)

// PaperPosition is a simulated holding of one side of a binary market.
// Each contract pays $1 when its side settles in the money.
type PaperPosition struct {
	MarketID string
	Side     types.Side
	Strike   float64
	Expiry   time.Time
	Price    float64         // Entry price per contract
	Stake    decimal.Decimal // USD paid
	OpenedAt time.Time
}

// Contracts returns how many $1 contracts the stake bought
func (p *PaperPosition) Contracts() decimal.Decimal {
	if p.Price <= 0 {
		return decimal.Zero
	}
	return p.Stake.Div(decimal.NewFromFloat(p.Price))
}

// Wins reports whether the position settles in the money at spot. YES wins
// when spot finishes at or above the strike.
func (p *PaperPosition) Wins(spot float64) bool {
	above := spot >= p.Strike
	if p.Side == types.SideNo {
		return !above
	}
	return above
}

// Payout returns what the position pays at settlement, rounded down to cents
func (p *PaperPosition) Payout(spot float64) decimal.Decimal {
	if !p.Wins(spot) {
		return decimal.Zero
	}
	return p.Contracts().RoundDown(2)
}

// openPosition books a simulated fill. Order placement is not performed;
// the bot only paper-trades.
func (b *LiveBot) openPosition(d *strategy.Decision, quote types.MarketQuote) {
	b.mu.Lock()
	_, held := b.positions[d.MarketID]
	b.mu.Unlock()
	if held {
		return
	}

	order := &risk.Order{
		MarketID: d.MarketID,
		Side:     d.Side,
		Amount:   d.Amount,
		Price:    d.MarketPrice,
	}

	if b.deps.Sizer != nil {
		portfolio := b.deps.Overseer.Portfolio()
		if err := b.deps.Sizer.ValidateOrder(order, &portfolio); err != nil {
			b.deps.Logger.LogWarning("Order rejected", "%s: %v", d.MarketID, err)
			return
		}
	}

	pos := &PaperPosition{
		MarketID: d.MarketID,
		Side:     d.Side,
		Strike:   quote.Strike,
		Expiry:   quote.Expiry,
		Price:    order.Price,
		Stake:    order.Amount,
		OpenedAt: d.Timestamp,
	}

	b.mu.Lock()
	b.positions[d.MarketID] = pos
	b.mu.Unlock()

	b.deps.Overseer.RecordOrder(order.Amount)
	b.deps.Logger.LogTradeExecution(d.MarketID, string(d.Side), order.Amount.StringFixed(2), order.Price, true)
	if b.deps.Metrics != nil {
		b.deps.Metrics.RecordOrder(d.MarketID, order.Amount.InexactFloat64())
	}

	b.persist()
	b.notify(notifications.LevelInfo, "Paper buy %s %s: $%s at %.4f (fair %.4f, edge %.4f)",
		d.MarketID, d.Side, order.Amount.StringFixed(2), order.Price, d.FairValue(), d.Edge)
}

// settleExpired resolves every position whose market has expired against
// the current spot
func (b *LiveBot) settleExpired(spot float64, now time.Time) {
	b.mu.Lock()
	var expired []*PaperPosition
	for id, pos := range b.positions {
		if !now.Before(pos.Expiry) {
			expired = append(expired, pos)
			delete(b.positions, id)
		}
	}
	b.mu.Unlock()

	if len(expired) == 0 {
		return
	}

	sort.Slice(expired, func(i, j int) bool { return expired[i].MarketID < expired[j].MarketID })

	for _, pos := range expired {
		before := b.deps.Overseer.Portfolio().Balance
		payout := pos.Payout(spot)
		b.deps.Overseer.RecordSettlement(pos.Stake, payout)

		outcome := "lost"
		if pos.Wins(spot) {
			outcome = "won"
		}
		b.deps.Logger.Trade("Settled %s %s at spot %.2f vs strike %.2f: %s, stake $%s payout $%s",
			pos.MarketID, pos.Side, spot, pos.Strike, outcome, pos.Stake.StringFixed(2), payout.StringFixed(2))
		b.deps.Logger.LogBalanceSync(before, b.deps.Overseer.Portfolio().Balance)

		level := notifications.LevelWarning
		if pos.Wins(spot) {
			level = notifications.LevelSuccess
		}
		b.notify(level, "Settled %s %s: %s, stake $%s payout $%s",
			pos.MarketID, pos.Side, outcome, pos.Stake.StringFixed(2), payout.StringFixed(2))
	}

	b.persist()
}

// Positions returns the open paper positions sorted by market
func (b *LiveBot) Positions() []PaperPosition {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]PaperPosition, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out
}

// Status is a snapshot of the bot for status endpoints and shutdown summaries
type Status struct {
	Spot               float64
	RealizedVolatility float64
	LastHistoryUpdate  time.Time
	Positions          []PaperPosition
	Risk               *risk.RiskStatus
}

// Status returns a snapshot of the bot state
func (b *LiveBot) Status() Status {
	b.mu.Lock()
	spot, vol, last := b.lastSpot, b.realizedVol, b.lastHistory
	b.mu.Unlock()

	return Status{
		Spot:               spot,
		RealizedVolatility: vol,
		LastHistoryUpdate:  last,
		Positions:          b.Positions(),
		Risk:               b.deps.Overseer.GetRiskStatus(),
	}
}
