package domain

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// DateLayout is the dd/MM/yyyy format used in messages and in the ledger.
const DateLayout = "02/01/2006"

// Currency is the only currency the ledger records.
const Currency = "ARS"

// MovementType is the ledger's type column.
type MovementType string

const (
	MovementExpense    MovementType = "Gastos"
	MovementIncome     MovementType = "Ingresos"
	MovementTransfer   MovementType = "Transferencias"
	MovementInvestment MovementType = "Inversiones"
)

// LedgerRow is one persisted line of the append-only ledger.
type LedgerRow struct {
	Date         civil.Date
	Amount       decimal.Decimal // signed
	Account      string
	Category     string
	Subcategory  string
	Description  string
	MovementType MovementType
	Currency     string

	// Investment rows only.
	Asset     string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// ParseDate parses a dd/MM/yyyy string into a calendar date, rejecting
// impossible dates such as 30/02/2024.
func ParseDate(s string) (civil.Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return civil.DateOf(t), nil
}

// FormatDate renders d as dd/MM/yyyy.
func FormatDate(d civil.Date) string {
	return d.In(time.UTC).Format(DateLayout)
}

// AddMonths moves d forward n calendar months. Days past the end of the
// target month roll over into the next one (31/01 + 1 -> 02/03 or 03/03).
func AddMonths(d civil.Date, n int) civil.Date {
	return civil.DateOf(time.Date(d.Year, d.Month+time.Month(n), d.Day, 0, 0, 0, 0, time.UTC))
}
