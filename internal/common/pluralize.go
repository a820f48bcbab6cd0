// Package common: pluralize.go содержит форматирование чисел и сумм
// для сообщений бота.
package common

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}

// FormatAmount форматирует денежную величину: разделители тысяч,
// дробная часть только если она есть (до двух знаков).
//
// Примеры:
//
//	FormatAmount(12500)   → "12 500"
//	FormatAmount(1234.5)  → "1 234.50"
//	FormatAmount(0.125)   → "0.13"
func FormatAmount(d decimal.Decimal) string {
	d = d.Round(2)
	intPart := d.Truncate(0)
	frac := d.Sub(intPart).Abs()

	sign := ""
	if d.IsNegative() {
		sign = "-"
		intPart = intPart.Abs()
	}

	out := sign + FormatNumber(intPart.IntPart())
	if !frac.IsZero() {
		// frac = 0.xx → "xx"
		out += "." + strings.TrimPrefix(frac.StringFixed(2), "0.")
	}
	return out
}

// FormatSigned добавляет знак: "+150" или "-20".
func FormatSigned(d decimal.Decimal) string {
	if d.IsNegative() {
		return FormatAmount(d)
	}
	return "+" + FormatAmount(d)
}
