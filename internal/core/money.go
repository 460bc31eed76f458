// AngelaMos | 2026
// money.go

package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is the display suffix used in user-facing money messages.
const Currency = "Kz"

// FormatAmount renders d without trailing zeros, e.g. 350 or 12.5.
func FormatAmount(d decimal.Decimal) string {
	return d.String()
}

func FormatMoney(d decimal.Decimal) string {
	return fmt.Sprintf("%s %s", FormatAmount(d), Currency)
}

// PositiveAmount rejects zero, negative and sub-cent amounts.
func PositiveAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("amount must be greater than zero: %w", ErrInvalidInput)
	}
	if !d.Equal(d.Round(2)) {
		return fmt.Errorf("amount has more than two decimal places: %w", ErrInvalidInput)
	}
	return nil
}
