package taxcalc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestComputeInvoiceTotals(t *testing.T) {
	for _, kind := range []GSTType{GSTIntegrated, GSTCentralState, GSTNone} {
		t.Run(string(kind), func(t *testing.T) {
			res, err := ComputeInvoiceTotals(InvoiceFacts{BaseAmount: amt(500000), GSTType: kind, GSTPercent: amt(18)})
			require.NoError(t, err)
			require.Equal(t, "90000", res.TaxAmount.String())
			require.Equal(t, "590000", res.TotalAmount.String())
		})
	}
}

func TestComputeInvoiceTotalsRoundsToPaise(t *testing.T) {
	res, err := ComputeInvoiceTotals(InvoiceFacts{
		BaseAmount: decimal.RequireFromString("1234.55"),
		GSTType:    GSTIntegrated,
		GSTPercent: amt(18),
	})
	require.NoError(t, err)
	// 222.219 rounds to 222.22
	require.Equal(t, "222.22", res.TaxAmount.String())
	require.Equal(t, "1456.77", res.TotalAmount.String())

	res, err = ComputeInvoiceTotals(InvoiceFacts{
		BaseAmount: decimal.RequireFromString("0.25"),
		GSTType:    GSTIntegrated,
		GSTPercent: amt(18),
	})
	require.NoError(t, err)
	// 0.045 rounds half-up to 0.05
	require.Equal(t, "0.05", res.TaxAmount.String())
}

func TestComputeInvoiceTotalsRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name  string
		facts InvoiceFacts
	}{
		{"percent above range", InvoiceFacts{BaseAmount: amt(100), GSTType: GSTIntegrated, GSTPercent: amt(150)}},
		{"negative percent", InvoiceFacts{BaseAmount: amt(100), GSTType: GSTIntegrated, GSTPercent: amt(-1)}},
		{"negative base", InvoiceFacts{BaseAmount: amt(-100), GSTType: GSTIntegrated, GSTPercent: amt(18)}},
		{"unknown type", InvoiceFacts{BaseAmount: amt(100), GSTType: "VAT", GSTPercent: amt(18)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeInvoiceTotals(tc.facts)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestGSTBreakdown(t *testing.T) {
	split, err := GSTBreakdown(GSTCentralState, decimal.RequireFromString("90000"))
	require.NoError(t, err)
	require.Equal(t, "45000", split.CGST.String())
	require.Equal(t, "45000", split.SGST.String())
	require.True(t, split.IGST.IsZero())

	split, err = GSTBreakdown(GSTCentralState, decimal.RequireFromString("0.05"))
	require.NoError(t, err)
	require.Equal(t, "0.03", split.CGST.String())
	require.Equal(t, "0.02", split.SGST.String())

	split, err = GSTBreakdown(GSTIntegrated, amt(18))
	require.NoError(t, err)
	require.Equal(t, "18", split.IGST.String())
	require.True(t, split.CGST.IsZero())

	split, err = GSTBreakdown(GSTNone, amt(18))
	require.NoError(t, err)
	require.True(t, split.IGST.IsZero())
	require.True(t, split.SGST.IsZero())

	_, err = GSTBreakdown("VAT", amt(1))
	require.ErrorIs(t, err, ErrInvalidInput)
}
