package reporting

import (
	"fmt"
	"math"

	"github.com/ducminhle1904/binary-edge-bot/internal/strategy"
	"github.com/xuri/excelize/v2"
)

const (
	ladderSheet    = "Ladder"
	inputsSheet    = "Inputs"
	decisionsSheet = "Decisions"
)

// DefaultExcelReporter implements Excel output functionality
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteLadderXLSX writes the strike ladder, its inputs and any decisions to
// a workbook at path
func (r *DefaultExcelReporter) WriteLadderXLSX(report LadderReport, path string) error {
	if err := NewDefaultPathManager().EnsureDirectoryExists(path); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	fx := excelize.NewFile()
	defer fx.Close()

	// Replace default sheet and create additional sheets
	if err := fx.SetSheetName(fx.GetSheetName(0), ladderSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(inputsSheet); err != nil {
		return err
	}
	if len(report.Decisions) > 0 {
		if _, err := fx.NewSheet(decisionsSheet); err != nil {
			return err
		}
	}

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeLadderSheet(fx, report, styles); err != nil {
		return err
	}
	if err := r.writeInputsSheet(fx, report, styles); err != nil {
		return err
	}
	if len(report.Decisions) > 0 {
		if err := r.writeDecisionsSheet(fx, report.Decisions, styles); err != nil {
			return err
		}
	}

	// Save workbook
	return fx.SaveAs(path)
}

func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	lightBorder := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}

	// Header style - Dark blue background with white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"}, // Dark slate gray
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7, // Currency format with $ symbol
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10, // 0.00%
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder,
	})
	if err != nil {
		return styles, err
	}

	decimalFmt := "0.000000"
	styles.DecimalStyle, err = fx.NewStyle(&excelize.Style{
		CustomNumFmt: &decimalFmt,
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		Border:       lightBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: lightBorder})
	if err != nil {
		return styles, err
	}

	// Light green background for markets we would buy
	styles.BuyStyle, err = fx.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"E6FFE6"},
			Pattern: 1,
		},
		Border: lightBorder,
	})
	if err != nil {
		return styles, err
	}

	// Light blue background for the strike nearest spot
	styles.AtSpotStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"E6F3FF"},
			Pattern: 1,
		},
		Border: lightBorder,
	})
	if err != nil {
		return styles, err
	}

	return styles, nil
}

func (r *DefaultExcelReporter) writeHeader(fx *excelize.File, sheet string, headers []string, styles ExcelStyles) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", last, styles.HeaderStyle); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	return fx.SetColWidth(sheet, "A", lastCol, 16)
}

func (r *DefaultExcelReporter) writeRow(fx *excelize.File, sheet string, row int, values []interface{}, colStyles []int) error {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if i < len(colStyles) {
			if err := fx.SetCellStyle(sheet, cell, cell, colStyles[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeLadderSheet(fx *excelize.File, report LadderReport, styles ExcelStyles) error {
	headers := []string{"Strike", "Fair Value", "Delta", "Gamma", "Theta", "Vega", "Rho"}
	if err := r.writeHeader(fx, ladderSheet, headers, styles); err != nil {
		return err
	}

	atSpot := nearestStrike(report.Rows, report.Inputs.Spot)
	for i, row := range report.Rows {
		g := row.Result.Greeks
		values := []interface{}{row.Strike, row.Result.FairValue, g.Delta, g.Gamma, g.Theta, g.Vega, g.Rho}

		strikeStyle := styles.BaseStyle
		if i == atSpot {
			strikeStyle = styles.AtSpotStyle
		}
		colStyles := []int{strikeStyle, styles.PercentStyle, styles.DecimalStyle, styles.DecimalStyle,
			styles.DecimalStyle, styles.DecimalStyle, styles.DecimalStyle}

		if err := r.writeRow(fx, ladderSheet, i+2, values, colStyles); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeInputsSheet(fx *excelize.File, report LadderReport, styles ExcelStyles) error {
	if err := r.writeHeader(fx, inputsSheet, []string{"Parameter", "Value"}, styles); err != nil {
		return err
	}

	in := report.Inputs
	rows := []struct {
		name  string
		value interface{}
		style int
	}{
		{"Symbol", report.Symbol, styles.BaseStyle},
		{"Spot", in.Spot, styles.CurrencyStyle},
		{"Time to expiry (years)", in.TimeToExpiry, styles.DecimalStyle},
		{"Volatility", in.Volatility, styles.PercentStyle},
		{"Risk-free rate", in.RiskFreeRate, styles.PercentStyle},
		{"Strikes", len(report.Rows), styles.BaseStyle},
	}

	for i, row := range rows {
		if err := r.writeRow(fx, inputsSheet, i+2, []interface{}{row.name, row.value}, []int{styles.BaseStyle, row.style}); err != nil {
			return err
		}
	}
	return fx.SetColWidth(inputsSheet, "A", "A", 24)
}

func (r *DefaultExcelReporter) writeDecisionsSheet(fx *excelize.File, decisions []*strategy.Decision, styles ExcelStyles) error {
	headers := []string{"Market", "Strike", "Fair Value", "YES", "NO", "YES Edge", "NO Edge",
		"Volatility", "Vol Source", "Action", "Side", "Kelly", "Amount", "Reason"}
	if err := r.writeHeader(fx, decisionsSheet, headers, styles); err != nil {
		return err
	}

	for i, d := range decisions {
		amount, _ := d.Amount.Float64()
		values := []interface{}{
			d.MarketID, d.Strike, d.FairValue(), d.YesPrice, d.NoPrice, d.YesEdge, d.NoEdge,
			d.Volatility, string(d.VolatilitySource), d.Action.String(), string(d.Side),
			d.KellyFraction, amount, d.Reason,
		}

		first := styles.BaseStyle
		if d.Action == strategy.ActionBuy {
			first = styles.BuyStyle
		}
		colStyles := []int{first, styles.BaseStyle, styles.PercentStyle, styles.PercentStyle, styles.PercentStyle,
			styles.PercentStyle, styles.PercentStyle, styles.PercentStyle, styles.BaseStyle, styles.BaseStyle,
			styles.BaseStyle, styles.PercentStyle, styles.CurrencyStyle, styles.BaseStyle}

		if err := r.writeRow(fx, decisionsSheet, i+2, values, colStyles); err != nil {
			return err
		}
	}
	return nil
}

// nearestStrike returns the index of the row whose strike is closest to spot
func nearestStrike(rows []LadderRow, spot float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, row := range rows {
		if dist := math.Abs(row.Strike - spot); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// Package-level convenience function
func WriteLadderXLSX(report LadderReport, path string) error {
	return NewDefaultExcelReporter().WriteLadderXLSX(report, path)
}
