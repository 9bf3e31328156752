package taxcalc

import "github.com/shopspring/decimal"

var (
	// AboveThresholdPercent is the lowest margin treated as AboveThreshold.
	AboveThresholdPercent = decimal.NewFromInt(20)
	// AtThresholdPercent is the lowest margin treated as AtThreshold.
	AtThresholdPercent = decimal.NewFromInt(10)
)

// ComputeMargin sums the deal costs and derives the gross margin against expected revenue.
// Bands are decided on the exact ratio; the reported percentage is rounded to two places.
func ComputeMargin(expectedRevenue decimal.Decimal, costs DealCosts) (MarginResult, error) {
	if !expectedRevenue.IsPositive() {
		return MarginResult{}, invalidf("expected_revenue", "must be greater than zero, got %s", expectedRevenue)
	}
	total := decimal.Zero
	for _, line := range costs.Lines() {
		if line.Amount.IsNegative() {
			return MarginResult{}, invalidf(line.Name, "must not be negative, got %s", line.Amount)
		}
		total = total.Add(line.Amount)
	}

	net := expectedRevenue.Sub(total)
	pct := net.Mul(hundred).Div(expectedRevenue)

	return MarginResult{
		TotalCost:          total,
		NetProfit:          net,
		GrossMarginPercent: pct.Round(2),
		MarginStatus:       classifyMargin(pct),
	}, nil
}

func classifyMargin(pct decimal.Decimal) MarginStatus {
	switch {
	case pct.GreaterThanOrEqual(AboveThresholdPercent):
		return MarginAboveThreshold
	case pct.GreaterThanOrEqual(AtThresholdPercent):
		return MarginAtThreshold
	default:
		return MarginBelowThreshold
	}
}
