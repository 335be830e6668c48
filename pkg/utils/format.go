// Package utils provides shared utility functions.
package utils

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NotAvailable is rendered for absent values.
const NotAvailable = "N/A"

var printer = message.NewPrinter(language.English)

// FormatPrice formats a price as "$1,234.56".
func FormatPrice(price decimal.Decimal) string {
	f, _ := price.Round(2).Float64()
	if f < 0 {
		return printer.Sprintf("-$%.2f", -f)
	}
	return printer.Sprintf("$%.2f", f)
}

// FormatNullPrice formats an optional price, "N/A" when absent.
func FormatNullPrice(price decimal.NullDecimal) string {
	if !price.Valid {
		return NotAvailable
	}
	return FormatPrice(price.Decimal)
}

// FormatPercent formats a percentage with sign, e.g. "+2.00%".
func FormatPercent(value decimal.Decimal) string {
	r := value.Round(2)
	sign := ""
	if !r.IsNegative() {
		sign = "+"
	}
	return sign + r.StringFixed(2) + "%"
}

// FormatNullPercent formats an optional percentage, "N/A" when absent.
func FormatNullPercent(value decimal.NullDecimal) string {
	if !value.Valid {
		return NotAvailable
	}
	return FormatPercent(value.Decimal)
}
