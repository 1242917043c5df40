package ledger

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/shopspring/decimal"
)

// BuildRows expands an accepted record into ledger rows dated from date.
// Transfers produce two opposite rows, expenses with more than one
// installment produce one row per month, everything else a single row.
// Non-transfer accounts found in associations are replaced by their
// associated account.
func BuildRows(record domain.Candidate, associations map[string]string, date civil.Date) []domain.LedgerRow {
	magnitude := record.Magnitude()
	description := record.Description

	switch record.Kind {
	case domain.KindTransfer:
		base := domain.LedgerRow{
			Date:         date,
			MovementType: domain.MovementTransfer,
			Currency:     domain.Currency,
		}
		out := base
		out.Amount = magnitude.Neg()
		out.Account = record.Account
		out.Description = "Transferencia a " + record.CounterAccount

		in := base
		in.Amount = magnitude
		in.Account = record.CounterAccount
		in.Description = "Transferencia de " + record.Account
		return []domain.LedgerRow{out, in}

	case domain.KindExpense, domain.KindIncome, domain.KindInvestmentBuy, domain.KindInvestmentSell:
		base := domain.LedgerRow{
			Date:         date,
			Amount:       magnitude.Mul(decimal.NewFromInt(int64(record.Kind.Sign()))),
			Account:      resolveAccount(record.Account, associations),
			Category:     record.Category,
			Subcategory:  record.Subcategory,
			Description:  description,
			MovementType: record.Kind.MovementType(),
			Currency:     domain.Currency,
		}
		if record.Kind.IsInvestment() {
			base.Asset = record.Asset
			base.Quantity = record.QuantityValue()
			base.UnitPrice = record.UnitPriceValue()
		}

		n := record.InstallmentCount()
		if record.Kind != domain.KindExpense || n <= 1 {
			return []domain.LedgerRow{base}
		}

		rows := make([]domain.LedgerRow, 0, n)
		for i, share := range domain.SplitInstallments(magnitude, n) {
			row := base
			row.Date = domain.AddMonths(date, i)
			row.Amount = share.Neg()
			row.Description = fmt.Sprintf("%s (Cuota %d/%d)", description, i+1, n)
			rows = append(rows, row)
		}
		return rows

	default:
		panic(fmt.Sprintf("ledger: unhandled kind %q", string(record.Kind)))
	}
}

func resolveAccount(account string, associations map[string]string) string {
	if assoc, ok := associations[account]; ok && assoc != "" {
		return assoc
	}
	return account
}
