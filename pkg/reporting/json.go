package reporting

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ducminhle1904/binary-edge-bot/internal/pricing"
	"github.com/ducminhle1904/binary-edge-bot/internal/strategy"
)

// DecisionJSON is the serialized form of a decision
type DecisionJSON struct {
	MarketID            string                `json:"market_id"`
	Timestamp           string                `json:"timestamp"`
	Action              string                `json:"action"`
	Side                string                `json:"side"`
	Reason              string                `json:"reason"`
	Spot                float64               `json:"spot"`
	Strike              float64               `json:"strike"`
	TimeToExpiry        float64               `json:"time_to_expiry"`
	Volatility          float64               `json:"volatility"`
	VolatilitySource    string                `json:"volatility_source"`
	Pricing             pricing.PricingResult `json:"pricing"`
	YesEdge             float64               `json:"yes_edge"`
	NoEdge              float64               `json:"no_edge"`
	KellyFraction       float64               `json:"kelly_fraction"`
	Amount              string                `json:"amount"`
	ExpectedGrowth      float64               `json:"expected_growth"`
	CertaintyEquivalent float64               `json:"certainty_equivalent"`
	DrawdownProbability float64               `json:"drawdown_probability"`
}

// NewDecisionJSON converts a decision for serialization
func NewDecisionJSON(d *strategy.Decision) DecisionJSON {
	return DecisionJSON{
		MarketID:            d.MarketID,
		Timestamp:           d.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Action:              d.Action.String(),
		Side:                string(d.Side),
		Reason:              d.Reason,
		Spot:                d.Spot,
		Strike:              d.Strike,
		TimeToExpiry:        d.TimeToExpiry,
		Volatility:          d.Volatility,
		VolatilitySource:    string(d.VolatilitySource),
		Pricing:             d.Pricing,
		YesEdge:             d.YesEdge,
		NoEdge:              d.NoEdge,
		KellyFraction:       d.KellyFraction,
		Amount:              d.Amount.StringFixed(2),
		ExpectedGrowth:      d.ExpectedGrowth,
		CertaintyEquivalent: d.CertaintyEquivalent,
		DrawdownProbability: d.DrawdownProbability,
	}
}

// PrintJSON writes v as indented JSON followed by a newline
func PrintJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
