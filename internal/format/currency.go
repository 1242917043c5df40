package format

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency renders d with two decimals, "." thousands and "," decimal
// separators: "$ 1.234,56", "-$ 20,00".
func Currency(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	fixed := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	return sign + "$ " + group(intPart) + "," + frac
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// ParseCurrency reads back a value rendered by Currency.
func ParseCurrency(s string) (decimal.Decimal, error) {
	v := strings.TrimSpace(s)
	negative := strings.HasPrefix(v, "-")
	v = strings.TrimPrefix(v, "-")
	v = strings.TrimSpace(strings.TrimPrefix(v, "$"))
	v = strings.ReplaceAll(v, ".", "")
	v = strings.Replace(v, ",", ".", 1)

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ParseCurrency: %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}
