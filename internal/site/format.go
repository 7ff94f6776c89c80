package site

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money formats an amount in minor units, e.g. 360 → "$3.60".
func Money(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return sign + currencySymbol(currency) + decimal.New(amount, -2).StringFixed(2)
}

func currencySymbol(code string) string {
	switch strings.ToUpper(code) {
	case "USD", "":
		return "$"
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	case "JPY":
		return "¥"
	default:
		return strings.ToUpper(code) + " "
	}
}
