package models

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places every stored amount keeps.
const MoneyPlaces = 2

// FormatMoney renders an amount as $x.xx.
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(MoneyPlaces)
}

// ValidMoney reports whether d fits in MoneyPlaces decimal places.
// Trailing zeros beyond that are fine.
func ValidMoney(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyPlaces))
}

func moneyError(field string) *ValidationError {
	return NewValidationError(field, "must have at most %d decimal places", MoneyPlaces)
}
