package taxcalc

import (
	"strings"

	"github.com/shopspring/decimal"
)

// VendorCategory is the legal form of a vendor.
type VendorCategory string

const (
	CategoryIndividual VendorCategory = "Individual"
	CategoryHUF        VendorCategory = "HUF"
	CategoryCompany    VendorCategory = "Company"
	CategoryFirm       VendorCategory = "Firm"
	CategoryLLP        VendorCategory = "LLP"
)

// ServiceNature classifies what a payment is for.
type ServiceNature string

const (
	NatureContractor           ServiceNature = "Contractor"
	NatureProfessionalServices ServiceNature = "ProfessionalServices"
	NatureTechnicalServices    ServiceNature = "TechnicalServices"
	NatureCallCentreServices   ServiceNature = "CallCentreServices"
	NatureOther                ServiceNature = "Other"
)

// Section is the Income Tax Act section a deduction is made under.
type Section string

const (
	Section194C Section = "194C"
	Section194J Section = "194J"
	SectionNone Section = "None"
)

// ComplianceStatus reports whether a payable is blocked on a missing PAN.
type ComplianceStatus string

const (
	StatusCompliant  ComplianceStatus = "Compliant"
	StatusPendingPAN ComplianceStatus = "PendingPAN"
)

// MarginStatus places a gross margin in one of three bands.
type MarginStatus string

const (
	MarginAboveThreshold MarginStatus = "AboveThreshold"
	MarginAtThreshold    MarginStatus = "AtThreshold"
	MarginBelowThreshold MarginStatus = "BelowThreshold"
)

// GSTType selects how GST is reported on an invoice.
type GSTType string

const (
	GSTIntegrated   GSTType = "IGST"
	GSTCentralState GSTType = "CGST_SGST"
	GSTNone         GSTType = "None"
)

// VendorFacts describes the vendor side of a payment.
type VendorFacts struct {
	Category        VendorCategory `json:"vendor_category"`
	PANProvided     bool           `json:"pan_provided"`
	NatureOfService ServiceNature  `json:"nature_of_service"`
}

// PaymentFacts describes a single payment. YearlyCumulativeTotal excludes the payment itself.
type PaymentFacts struct {
	PaymentAmount         decimal.Decimal `json:"payment_amount"`
	YearlyCumulativeTotal decimal.Decimal `json:"vendor_yearly_cumulative_total"`
}

// TDSResult is the outcome of ComputeTDS.
type TDSResult struct {
	Section                  Section          `json:"section"`
	RatePercent              decimal.Decimal  `json:"rate_percent"`
	ThresholdExceeded        bool             `json:"threshold_exceeded"`
	TDSAmount                decimal.Decimal  `json:"tds_amount"`
	NetPayable               decimal.Decimal  `json:"net_payable"`
	PANMissingPenaltyApplied bool             `json:"pan_missing_penalty_applied"`
	ComplianceStatus         ComplianceStatus `json:"compliance_status"`
}

// DealCosts itemises the direct cost of delivering a training deal.
type DealCosts struct {
	TrainerCost       decimal.Decimal `json:"trainer_cost"`
	LabCost           decimal.Decimal `json:"lab_cost"`
	LogisticsCost     decimal.Decimal `json:"logistics_cost"`
	ContentCost       decimal.Decimal `json:"content_cost"`
	ContingencyBuffer decimal.Decimal `json:"contingency_buffer"`
	TravelCost        decimal.Decimal `json:"travel_cost"`
	MarketingCost     decimal.Decimal `json:"marketing_cost"`
	OtherCost         decimal.Decimal `json:"other_cost"`
}

// Lines returns the cost fields keyed by their wire names, in declaration order.
func (c DealCosts) Lines() []CostLine {
	return []CostLine{
		{Name: "trainer_cost", Amount: c.TrainerCost},
		{Name: "lab_cost", Amount: c.LabCost},
		{Name: "logistics_cost", Amount: c.LogisticsCost},
		{Name: "content_cost", Amount: c.ContentCost},
		{Name: "contingency_buffer", Amount: c.ContingencyBuffer},
		{Name: "travel_cost", Amount: c.TravelCost},
		{Name: "marketing_cost", Amount: c.MarketingCost},
		{Name: "other_cost", Amount: c.OtherCost},
	}
}

// CostLine is one named deal cost.
type CostLine struct {
	Name   string
	Amount decimal.Decimal
}

// MarginResult is the outcome of ComputeMargin.
type MarginResult struct {
	TotalCost          decimal.Decimal `json:"total_cost"`
	NetProfit          decimal.Decimal `json:"net_profit"`
	GrossMarginPercent decimal.Decimal `json:"gross_margin_percent"`
	MarginStatus       MarginStatus    `json:"margin_status"`
}

// InvoiceFacts holds what is needed to total an invoice.
type InvoiceFacts struct {
	BaseAmount decimal.Decimal `json:"base_amount"`
	GSTType    GSTType         `json:"gst_type"`
	GSTPercent decimal.Decimal `json:"gst_percent"`
}

// InvoiceResult is the outcome of ComputeInvoiceTotals.
type InvoiceResult struct {
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// GSTSplit is the display breakdown of an invoice's tax amount.
type GSTSplit struct {
	IGST decimal.Decimal `json:"igst"`
	CGST decimal.Decimal `json:"cgst"`
	SGST decimal.Decimal `json:"sgst"`
}

var hundred = decimal.NewFromInt(100)

// ParseVendorCategory resolves a category name, ignoring case and separators.
func ParseVendorCategory(raw string) (VendorCategory, error) {
	for _, c := range []VendorCategory{CategoryIndividual, CategoryHUF, CategoryCompany, CategoryFirm, CategoryLLP} {
		if normalize(string(c)) == normalize(raw) {
			return c, nil
		}
	}
	return "", invalidf("vendor_category", "%q is not recognised", raw)
}

// ParseServiceNature resolves a nature-of-service name, ignoring case and separators.
func ParseServiceNature(raw string) (ServiceNature, error) {
	for _, n := range []ServiceNature{NatureContractor, NatureProfessionalServices, NatureTechnicalServices, NatureCallCentreServices, NatureOther} {
		if normalize(string(n)) == normalize(raw) {
			return n, nil
		}
	}
	return "", invalidf("nature_of_service", "%q is not recognised", raw)
}

// ParseGSTType resolves a GST type name, ignoring case and separators.
func ParseGSTType(raw string) (GSTType, error) {
	for _, g := range []GSTType{GSTIntegrated, GSTCentralState, GSTNone} {
		if normalize(string(g)) == normalize(raw) {
			return g, nil
		}
	}
	return "", invalidf("gst_type", "%q is not recognised", raw)
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "", "+", "").Replace(s)
}
