package reporting

import (
	"github.com/ducminhle1904/binary-edge-bot/internal/pricing"
	"github.com/ducminhle1904/binary-edge-bot/internal/strategy"
)

// Package reporting renders pricing results and trading decisions

// ConsoleReporter defines interface for console output
type ConsoleReporter interface {
	PrintPricing(title string, in pricing.PricingInputs, result pricing.PricingResult)
	PrintDecision(d *strategy.Decision)
	PrintDecisions(decisions []*strategy.Decision)
	PrintKelly(summary KellySummary)
	PrintHistory(summary HistorySummary)
}

// FileReporter defines interface for file output
type FileReporter interface {
	WriteLadderXLSX(report LadderReport, path string) error
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle   int
	CurrencyStyle int
	PercentStyle  int
	DecimalStyle  int
	BaseStyle     int
	BuyStyle      int
	AtSpotStyle   int
}

// LadderRow is the pricing of one strike on the ladder
type LadderRow struct {
	Strike float64
	Result pricing.PricingResult
}

// LadderReport is the content of a strike ladder workbook
type LadderReport struct {
	Symbol    string
	Inputs    pricing.PricingInputs // Strike is ignored; each row has its own
	Rows      []LadderRow
	Decisions []*strategy.Decision // Optional
}

// KellySummary is a bet sized by the Kelly criterion with its risk diagnostics
type KellySummary struct {
	Multiplier          float64 `json:"multiplier"`
	WinProbability      float64 `json:"win_probability"`
	DecimalOdds         float64 `json:"decimal_odds"`
	Fraction            float64 `json:"fraction"`
	ExpectedGrowth      float64 `json:"expected_growth"`
	CertaintyEquivalent float64 `json:"certainty_equivalent"`
	RiskAversion        float64 `json:"risk_aversion"`
	DrawdownThreshold   float64 `json:"drawdown_threshold"`
	DrawdownProbability float64 `json:"drawdown_probability"`
}
