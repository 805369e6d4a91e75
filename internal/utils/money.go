package utils

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FormatMoney keeps consistent two-digit formatting for fare fields.
func FormatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// FormatTaka renders an amount for tickets, e.g. "Tk 1,250.00".
func FormatTaka(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	whole := amount.Truncate(0)
	frac := amount.Sub(whole).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if frac == 100 {
		whole = whole.Add(decimal.NewFromInt(1))
		frac = 0
	}
	return fmt.Sprintf("%sTk %s.%02d", sign, formatThousand(whole.IntPart()), frac)
}

func formatThousand(n int64) string {
	if n == 0 {
		return "0"
	}
	str := fmt.Sprint(n)
	out := make([]byte, 0, len(str)+len(str)/3)
	for i := 0; i < len(str); i++ {
		if i != 0 && (len(str)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, str[i])
	}
	return string(out)
}
