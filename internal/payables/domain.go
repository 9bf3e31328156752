package payables

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trainops/trainops-erp/internal/platform/httpx"
	"github.com/trainops/trainops-erp/internal/taxcalc"
)

var (
	ErrVendorNotFound     = fmt.Errorf("vendor %w", httpx.ErrNotFound)
	ErrDuplicateReference = fmt.Errorf("payable reference %w", httpx.ErrDuplicate)
	ErrInvalidPAN         = fmt.Errorf("%w: pan must look like ABCDE1234F", httpx.ErrValidation)
	ErrVendorNameRequired = fmt.Errorf("%w: vendor name is required", httpx.ErrValidation)
	ErrInvalidFiscalYear  = fmt.Errorf("%w: fiscal year must look like 2024-25", httpx.ErrValidation)
)

// Vendor is a payee whose payments are subject to TDS.
type Vendor struct {
	ID              int64                  `json:"id"`
	Name            string                 `json:"name"`
	Category        taxcalc.VendorCategory `json:"vendor_category"`
	NatureOfService taxcalc.ServiceNature  `json:"nature_of_service"`
	PAN             string                 `json:"pan,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// PANProvided reports whether a PAN is on file.
func (v Vendor) PANProvided() bool {
	return v.PAN != ""
}

// Facts returns the calculator view of the vendor.
func (v Vendor) Facts() taxcalc.VendorFacts {
	return taxcalc.VendorFacts{
		Category:        v.Category,
		PANProvided:     v.PANProvided(),
		NatureOfService: v.NatureOfService,
	}
}

// Payable records one vendor payment with the TDS applied to it.
type Payable struct {
	ID                int64                    `json:"id"`
	VendorID          int64                    `json:"vendor_id"`
	Reference         string                   `json:"reference"`
	FiscalYear        string                   `json:"fiscal_year"`
	PaymentAmount     decimal.Decimal          `json:"payment_amount"`
	CumulativeBefore  decimal.Decimal          `json:"cumulative_before"`
	Section           taxcalc.Section          `json:"section"`
	RatePercent       decimal.Decimal          `json:"rate_percent"`
	ThresholdExceeded bool                     `json:"threshold_exceeded"`
	TDSAmount         decimal.Decimal          `json:"tds_amount"`
	NetPayable        decimal.Decimal          `json:"net_payable"`
	PANPenaltyApplied bool                     `json:"pan_penalty_applied"`
	ComplianceStatus  taxcalc.ComplianceStatus `json:"compliance_status"`
	PaidAt            time.Time                `json:"paid_at"`
	CreatedAt         time.Time                `json:"created_at"`
}

// Preview is a TDS computation for a prospective payment.
type Preview struct {
	VendorID         int64             `json:"vendor_id"`
	FiscalYear       string            `json:"fiscal_year"`
	CumulativeBefore decimal.Decimal   `json:"cumulative_before"`
	Result           taxcalc.TDSResult `json:"result"`
}

// SectionSummary aggregates payables of one fiscal year by section.
type SectionSummary struct {
	Section    taxcalc.Section `json:"section"`
	Payables   int             `json:"payables"`
	Gross      decimal.Decimal `json:"gross"`
	TDS        decimal.Decimal `json:"tds"`
	PendingPAN int             `json:"pending_pan"`
}

// CreateVendorInput for registering a vendor.
type CreateVendorInput struct {
	Name            string
	Category        string
	NatureOfService string
	PAN             string
}

// RecordPayableInput for booking a vendor payment.
type RecordPayableInput struct {
	VendorID  int64
	Reference string
	Amount    decimal.Decimal
	PaidAt    time.Time
}

// ListPayablesRequest filters payables.
type ListPayablesRequest struct {
	VendorID   int64
	FiscalYear string
	Limit      int
	Offset     int
}
