package taxcalc

import "github.com/shopspring/decimal"

// ComputeInvoiceTotals applies GST to an invoice's base amount. The tax is rounded
// half-up to two decimal places; the GST type never changes the totals.
func ComputeInvoiceTotals(invoice InvoiceFacts) (InvoiceResult, error) {
	if _, err := ParseGSTType(string(invoice.GSTType)); err != nil {
		return InvoiceResult{}, err
	}
	if invoice.BaseAmount.IsNegative() {
		return InvoiceResult{}, invalidf("base_amount", "must not be negative, got %s", invoice.BaseAmount)
	}
	if invoice.GSTPercent.IsNegative() || invoice.GSTPercent.GreaterThan(hundred) {
		return InvoiceResult{}, invalidf("gst_percent", "must be between 0 and 100, got %s", invoice.GSTPercent)
	}
	tax := invoice.BaseAmount.Mul(invoice.GSTPercent).Div(hundred).Round(2)
	return InvoiceResult{
		TaxAmount:   tax,
		TotalAmount: invoice.BaseAmount.Add(tax),
	}, nil
}

// GSTBreakdown splits a tax amount for display. CGST takes the rounded half and SGST
// the remainder, so the parts always add back to taxAmount.
func GSTBreakdown(gstType GSTType, taxAmount decimal.Decimal) (GSTSplit, error) {
	kind, err := ParseGSTType(string(gstType))
	if err != nil {
		return GSTSplit{}, err
	}
	split := GSTSplit{IGST: decimal.Zero, CGST: decimal.Zero, SGST: decimal.Zero}
	switch kind {
	case GSTIntegrated:
		split.IGST = taxAmount
	case GSTCentralState:
		split.CGST = taxAmount.Div(decimal.NewFromInt(2)).Round(2)
		split.SGST = taxAmount.Sub(split.CGST)
	}
	return split, nil
}
