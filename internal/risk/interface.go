package risk

import "github.com/shopspring/decimal"

// RiskManager defines the interface for risk management
type RiskManager interface {
	// ValidateOrder validates if an order meets risk management criteria
	ValidateOrder(order *Order, portfolio *Portfolio) error

	// CalculatePositionSize turns a sized signal into an order notional in USD
	CalculatePositionSize(signal Signal, balance float64) decimal.Decimal

	// ShouldStopTrading determines if trading should be stopped based on portfolio state
	ShouldStopTrading(portfolio *Portfolio) bool
}
