package risk

import (
	"fmt"

	"github.com/ducminhle1904/binary-edge-bot/internal/errors"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"github.com/shopspring/decimal"
)

const component = "risk"

// PositionSizer converts Kelly fractions into order notionals within limits
type PositionSizer struct {
	limits Limits
}

// NewPositionSizer creates a new position sizer
func NewPositionSizer(limits Limits) RiskManager {
	return &PositionSizer{limits: limits}
}

// Limits returns the configured limits
func (ps *PositionSizer) Limits() Limits {
	return ps.limits
}

// ValidateOrder validates if an order meets risk management criteria
func (ps *PositionSizer) ValidateOrder(order *Order, portfolio *Portfolio) error {
	if order.Side != types.SideYes && order.Side != types.SideNo {
		return errors.NewValidationError(component, "validate_order", fmt.Sprintf("invalid side %q", order.Side)).
			WithContext("market_id", order.MarketID)
	}

	if order.Price <= 0 || order.Price >= 1 {
		return errors.NewValidationError(component, "validate_order", fmt.Sprintf("contract price %.4f outside (0, 1)", order.Price)).
			WithContext("market_id", order.MarketID)
	}

	amount := order.Amount.InexactFloat64()

	// Check if we have sufficient balance
	if amount > portfolio.Balance {
		return errors.NewValidationError(component, "validate_order",
			fmt.Sprintf("insufficient balance: required %.2f, available %.2f", amount, portfolio.Balance))
	}

	// Check position size limits
	if amount > ps.limits.MaxPositionSizeUSD {
		return errors.NewValidationError(component, "validate_order",
			fmt.Sprintf("order amount %.2f exceeds maximum position size %.2f", amount, ps.limits.MaxPositionSizeUSD))
	}

	if amount < ps.limits.MinTradeSizeUSD {
		return errors.NewValidationError(component, "validate_order",
			fmt.Sprintf("order amount %.2f below minimum trade size %.2f", amount, ps.limits.MinTradeSizeUSD))
	}

	if ps.limits.MaxOpenPositions > 0 && portfolio.OpenPositions >= ps.limits.MaxOpenPositions {
		return errors.NewValidationError(component, "validate_order",
			fmt.Sprintf("open positions %d at limit %d", portfolio.OpenPositions, ps.limits.MaxOpenPositions))
	}

	return nil
}

// CalculatePositionSize sizes an order as signal.Fraction of balance, capped
// at the maximum position size and the balance and rounded down to cents.
// Sizes under the minimum trade size become zero.
func (ps *PositionSizer) CalculatePositionSize(signal Signal, balance float64) decimal.Decimal {
	if signal.Fraction <= 0 || balance <= 0 {
		return decimal.Zero
	}

	size := decimal.NewFromFloat(balance).Mul(decimal.NewFromFloat(signal.Fraction))

	// Ensure we don't exceed maximum position size
	if ps.limits.MaxPositionSizeUSD > 0 {
		size = decimal.Min(size, decimal.NewFromFloat(ps.limits.MaxPositionSizeUSD))
	}

	// Ensure we don't exceed available balance
	size = decimal.Min(size, decimal.NewFromFloat(balance)).RoundDown(2)

	if size.LessThan(decimal.NewFromFloat(ps.limits.MinTradeSizeUSD)) {
		return decimal.Zero
	}

	return size
}

// ShouldStopTrading determines if trading should be stopped based on portfolio state
func (ps *PositionSizer) ShouldStopTrading(portfolio *Portfolio) bool {
	if ps.limits.MaxDailyLossUSD > 0 && -portfolio.DailyPnL >= ps.limits.MaxDailyLossUSD {
		return true
	}

	if ps.limits.MaxDrawdownPercent > 0 && portfolio.Drawdown() >= ps.limits.MaxDrawdownPercent {
		return true
	}

	// Nothing left to size against
	return portfolio.Balance < ps.limits.MinTradeSizeUSD
}
