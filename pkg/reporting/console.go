package reporting

import (
	"fmt"
	"io"

	"github.com/ducminhle1904/binary-edge-bot/internal/pricing"
	"github.com/ducminhle1904/binary-edge-bot/internal/strategy"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// DefaultConsoleReporter renders tables with go-pretty
type DefaultConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a console reporter writing to out
func NewConsoleReporter(out io.Writer) *DefaultConsoleReporter {
	return &DefaultConsoleReporter{out: out}
}

func (r *DefaultConsoleReporter) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// PrintPricing prints the inputs, fair value and Greeks of one option
func (r *DefaultConsoleReporter) PrintPricing(title string, in pricing.PricingInputs, result pricing.PricingResult) {
	t := r.newTable(title)

	t.AppendRows([]table.Row{
		{"Spot", fmt.Sprintf("%.2f", in.Spot)},
		{"Strike", fmt.Sprintf("%.2f", in.Strike)},
		{"Time to expiry", fmt.Sprintf("%.6f years", in.TimeToExpiry)},
		{"Volatility", formatPercent(in.Volatility)},
		{"Risk-free rate", formatPercent(in.RiskFreeRate)},
	})

	t.AppendSeparator()

	t.AppendRows([]table.Row{
		{"Fair value", fmt.Sprintf("%.4f", result.FairValue)},
	})
	if iv, ok := result.IV(); ok {
		t.AppendRow(table.Row{"Implied vol", formatPercent(iv)})
	}

	t.AppendSeparator()

	g := result.Greeks
	t.AppendRows([]table.Row{
		{"Delta", fmt.Sprintf("%.8f", g.Delta)},
		{"Gamma", fmt.Sprintf("%.10f", g.Gamma)},
		{"Theta", fmt.Sprintf("%.6f", g.Theta)},
		{"Vega", fmt.Sprintf("%.6f", g.Vega)},
		{"Rho", fmt.Sprintf("%.6f", g.Rho)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, WidthMax: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, WidthMax: 30, Align: text.AlignRight},
	})

	t.Render()
}

// PrintDecision prints the full breakdown of one decision
func (r *DefaultConsoleReporter) PrintDecision(d *strategy.Decision) {
	t := r.newTable(fmt.Sprintf("DECISION %s", d.MarketID))

	t.AppendRows([]table.Row{
		{"Spot / Strike", fmt.Sprintf("%.2f / %.2f", d.Spot, d.Strike)},
		{"Time to expiry", fmt.Sprintf("%.6f years", d.TimeToExpiry)},
		{"Volatility", fmt.Sprintf("%s (%s)", formatPercent(d.Volatility), d.VolatilitySource)},
		{"Realized vol", formatPercent(d.RealizedVolatility)},
		{"Fair value", fmt.Sprintf("%.4f", d.FairValue())},
	})

	t.AppendSeparator()

	t.AppendRows([]table.Row{
		{"YES price / edge", fmt.Sprintf("%.4f / %+.4f", d.YesPrice, d.YesEdge)},
		{"NO price / edge", fmt.Sprintf("%.4f / %+.4f", d.NoPrice, d.NoEdge)},
	})

	t.AppendSeparator()

	t.AppendRows([]table.Row{
		{"Action", fmt.Sprintf("%s %s", d.Action, d.Side)},
		{"Kelly fraction", formatPercent(d.KellyFraction)},
		{"Amount", "$" + d.Amount.StringFixed(2)},
		{"Expected growth", fmt.Sprintf("%.6f", d.ExpectedGrowth)},
		{"Certainty equiv.", fmt.Sprintf("%.6f", d.CertaintyEquivalent)},
		{"P(drawdown)", fmt.Sprintf("%.4f", d.DrawdownProbability)},
		{"Reason", d.Reason},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 50, Align: text.AlignLeft},
	})

	t.Render()
}

// PrintDecisions prints one summary row per decision
func (r *DefaultConsoleReporter) PrintDecisions(decisions []*strategy.Decision) {
	t := r.newTable("MARKET SCAN")
	t.AppendHeader(table.Row{"Market", "Strike", "Fair", "YES", "NO", "Edge", "Side", "Kelly", "Amount"})

	trades := 0
	for _, d := range decisions {
		side := "-"
		if d.Action == strategy.ActionBuy {
			side = string(d.Side)
			trades++
		}
		t.AppendRow(table.Row{
			d.MarketID,
			fmt.Sprintf("%.0f", d.Strike),
			fmt.Sprintf("%.4f", d.FairValue()),
			fmt.Sprintf("%.3f", d.YesPrice),
			fmt.Sprintf("%.3f", d.NoPrice),
			fmt.Sprintf("%+.4f", bestEdge(d)),
			side,
			formatPercent(d.KellyFraction),
			"$" + d.Amount.StringFixed(2),
		})
	}

	t.AppendFooter(table.Row{fmt.Sprintf("%d markets", len(decisions)), "", "", "", "", "", fmt.Sprintf("%d trades", trades), "", ""})
	t.Render()
}

// PrintKelly prints a Kelly sizing and its growth and drawdown diagnostics
func (r *DefaultConsoleReporter) PrintKelly(s KellySummary) {
	t := r.newTable(fmt.Sprintf("KELLY x%.2f", s.Multiplier))

	t.AppendRows([]table.Row{
		{"Win probability", formatPercent(s.WinProbability)},
		{"Decimal odds", fmt.Sprintf("%.4f", s.DecimalOdds)},
		{"Bet fraction", formatPercent(s.Fraction)},
	})

	t.AppendSeparator()

	t.AppendRows([]table.Row{
		{"Expected growth", fmt.Sprintf("%.6f", s.ExpectedGrowth)},
		{"Certainty equiv.", fmt.Sprintf("%.6f (aversion %.2f)", s.CertaintyEquivalent, s.RiskAversion)},
		{"P(drawdown)", fmt.Sprintf("%.4f (to %s)", s.DrawdownProbability, formatPercent(s.DrawdownThreshold))},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, WidthMax: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, WidthMax: 40, Align: text.AlignRight},
	})

	t.Render()
}

func bestEdge(d *strategy.Decision) float64 {
	if d.NoEdge > d.YesEdge {
		return d.NoEdge
	}
	return d.YesEdge
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
