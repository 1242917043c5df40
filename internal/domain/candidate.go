package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// UndefinedAccount is the sentinel the model uses when no account was named.
const UndefinedAccount = "No definido"

// Numeric holds a number exactly as the model sent it. JSON numbers and
// numeric strings are both accepted; parsing happens during validation so a
// malformed value becomes a rejection reason instead of a decode failure.
type Numeric string

// IsSet reports whether a value was received.
func (n Numeric) IsSet() bool {
	return strings.TrimSpace(string(n)) != ""
}

// Decimal parses the value. Comma decimal separators are accepted.
func (n Numeric) Decimal() (decimal.Decimal, error) {
	s := strings.TrimSpace(string(n))
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %q", string(n))
	}
	return d, nil
}

// Int parses the value as a whole number; "3" and "3.0" are accepted, "3.5" is not.
func (n Numeric) Int() (int, error) {
	d, err := n.Decimal()
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("not an integer: %q", string(n))
	}
	if !d.BigInt().IsInt64() {
		return 0, fmt.Errorf("out of range: %q", string(n))
	}
	return int(d.IntPart()), nil
}

// UnmarshalJSON accepts numbers, strings and null.
func (n *Numeric) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*n = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*n = Numeric(strings.TrimSpace(str))
	default:
		*n = Numeric(s)
	}
	return nil
}

// NumericFromFloat is a convenience for tests and callers holding floats.
func NumericFromFloat(f float64) Numeric {
	return Numeric(strconv.FormatFloat(f, 'f', -1, 64))
}

// Candidate is one movement as extracted from a chat message, before and
// after validation. JSON names follow the extraction prompt.
type Candidate struct {
	Kind           Kind    `json:"type"`
	Amount         Numeric `json:"amount"`
	Description    string  `json:"description"`
	Category       string  `json:"category,omitempty"`
	Subcategory    string  `json:"subcategory,omitempty"`
	Account        string  `json:"account"`
	CounterAccount string  `json:"second_account,omitempty"`
	Asset          string  `json:"asset,omitempty"`
	Quantity       Numeric `json:"quantity,omitempty"`
	UnitPrice      Numeric `json:"unit_price,omitempty"`
	Date           string  `json:"date,omitempty"`
	Installments   Numeric `json:"installments,omitempty"`
}

// Magnitude is the absolute amount, or zero if the amount does not parse.
func (c Candidate) Magnitude() decimal.Decimal {
	d, err := c.Amount.Decimal()
	if err != nil {
		return decimal.Zero
	}
	return d.Abs()
}

// InstallmentCount returns the number of installments, or 0 when absent or malformed.
func (c Candidate) InstallmentCount() int {
	if !c.Installments.IsSet() {
		return 0
	}
	n, err := c.Installments.Int()
	if err != nil {
		return 0
	}
	return n
}

// QuantityValue returns the parsed quantity or zero.
func (c Candidate) QuantityValue() decimal.Decimal {
	d, _ := c.Quantity.Decimal()
	return d
}

// UnitPriceValue returns the parsed unit price or zero.
func (c Candidate) UnitPriceValue() decimal.Decimal {
	d, _ := c.UnitPrice.Decimal()
	return d
}

// SplitInstallments divides total into n shares rounded to cents. The last
// share absorbs the rounding so the shares add up to total exactly.
func SplitInstallments(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	share := total.DivRound(decimal.NewFromInt(int64(n)), 2)
	shares := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		shares[i] = share
	}
	shares[n-1] = total.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))
	return shares
}
