package taxcalc

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ComputeTDS determines the withholding section, rate and amounts for a vendor payment.
//
// Below the section threshold no tax is withheld, even when the vendor has no PAN on
// file. Once a threshold is crossed a missing PAN lifts the rate to PANPenaltyRate.
// The withheld amount is rounded half-up to the nearest whole currency unit.
func ComputeTDS(vendor VendorFacts, payment PaymentFacts) (TDSResult, error) {
	vendor, err := canonicalVendor(vendor)
	if err != nil {
		return TDSResult{}, err
	}
	if payment.PaymentAmount.IsNegative() {
		return TDSResult{}, invalidf("payment_amount", "must not be negative, got %s", payment.PaymentAmount)
	}
	if payment.YearlyCumulativeTotal.IsNegative() {
		return TDSResult{}, invalidf("vendor_yearly_cumulative_total", "must not be negative, got %s", payment.YearlyCumulativeTotal)
	}

	result := TDSResult{
		Section:          SectionNone,
		RatePercent:      decimal.Zero,
		ComplianceStatus: StatusCompliant,
	}

	rule, ok := lookupRule(vendor.NatureOfService)
	if ok {
		result.Section = rule.Section
		if rule.exceeds(payment) {
			rate, found := rule.Rates[vendor.Category]
			if !found {
				return TDSResult{}, fmt.Errorf("%w: no %s rate for %s", ErrCalculationFailed, rule.Section, vendor.Category)
			}
			result.ThresholdExceeded = true
			result.RatePercent = rate
		}
	}

	if !vendor.PANProvided && result.ThresholdExceeded {
		result.RatePercent = decimal.Max(result.RatePercent, PANPenaltyRate)
		result.PANMissingPenaltyApplied = true
		result.ComplianceStatus = StatusPendingPAN
	}

	result.TDSAmount = payment.PaymentAmount.Mul(result.RatePercent).Div(hundred).Round(0)
	result.NetPayable = payment.PaymentAmount.Sub(result.TDSAmount)
	return result, nil
}

func canonicalVendor(v VendorFacts) (VendorFacts, error) {
	category, err := ParseVendorCategory(string(v.Category))
	if err != nil {
		return VendorFacts{}, err
	}
	nature, err := ParseServiceNature(string(v.NatureOfService))
	if err != nil {
		return VendorFacts{}, err
	}
	v.Category = category
	v.NatureOfService = nature
	return v, nil
}
