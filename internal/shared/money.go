package shared

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/trainops/trainops-erp/internal/platform/httpx"
)

// ErrAmountPrecision rejects amounts the NUMERIC(18,2) columns would round on insert.
var ErrAmountPrecision = fmt.Errorf("%w: amount has more than two decimal places", httpx.ErrValidation)

// RequireCents fails with ErrAmountPrecision when amount has significant digits past
// the second decimal place. Trailing zeros ("10.500") are accepted.
func RequireCents(field string, amount decimal.Decimal) error {
	if amount.Equal(amount.Round(2)) {
		return nil
	}
	return fmt.Errorf("%s: %w", field, ErrAmountPrecision)
}
