package taxcalc

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput rejects negative amounts, out-of-range percentages and unknown enum values.
	ErrInvalidInput = errors.New("taxcalc: invalid input")
	// ErrCalculationFailed indicates the rule table could not classify otherwise valid facts.
	ErrCalculationFailed = errors.New("taxcalc: calculation failed")
)

func invalidf(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidInput, field, fmt.Sprintf(format, args...))
}
