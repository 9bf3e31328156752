package invoicing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trainops/trainops-erp/internal/platform/httpx"
	"github.com/trainops/trainops-erp/internal/taxcalc"
)

var (
	ErrInvoiceNotFound  = fmt.Errorf("invoice %w", httpx.ErrNotFound)
	ErrDuplicateNumber  = fmt.Errorf("invoice number %w", httpx.ErrDuplicate)
	ErrBaseAmountNeeded = fmt.Errorf("%w: base_amount is required when no deal is referenced", httpx.ErrValidation)
)

// DefaultGSTPercent is charged when a request does not name a rate.
var DefaultGSTPercent = decimal.NewFromInt(18)

// Invoice is an issued customer invoice with its GST applied.
type Invoice struct {
	ID           int64            `json:"id"`
	Number       string           `json:"number"`
	DealID       *int64           `json:"deal_id,omitempty"`
	CustomerName string           `json:"customer_name"`
	BaseAmount   decimal.Decimal  `json:"base_amount"`
	GSTType      taxcalc.GSTType  `json:"gst_type"`
	GSTPercent   decimal.Decimal  `json:"gst_percent"`
	TaxAmount    decimal.Decimal  `json:"tax_amount"`
	TotalAmount  decimal.Decimal  `json:"total_amount"`
	Breakdown    taxcalc.GSTSplit `json:"breakdown"`
	IssuedAt     time.Time        `json:"issued_at"`
}

// CreateInvoiceInput for issuing an invoice. A zero BaseAmount with a DealID bills the
// deal's expected revenue; a nil GSTPercent uses DefaultGSTPercent.
type CreateInvoiceInput struct {
	Number       string
	DealID       *int64
	CustomerName string
	BaseAmount   decimal.Decimal
	GSTType      string
	GSTPercent   *decimal.Decimal
	IssuedAt     time.Time
}

// NumberFor formats the invoice number for a period and sequence, e.g. INV-202407-00012.
func NumberFor(issuedAt time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%05d", issuedAt.Format("200601"), seq)
}
