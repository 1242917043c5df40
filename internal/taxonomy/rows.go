package taxonomy

import (
	"fmt"
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
)

// Values of the configuration table's type column.
const (
	typeExpense    = "Gastos"
	typeIncome     = "Ingresos"
	typeInvestment = "Inversiones"
)

// Column positions in the configuration table.
const (
	colType = iota
	colCategory
	colSubcategory
	colAccount
	colAssociatedAccount
)

// ParseConfigRows builds a taxonomy from the configuration table, header row
// included. Columns: type, category, subcategory, account, associated account.
// Account columns are independent of the category columns on the same row.
func ParseConfigRows(rows [][]interface{}) (*Taxonomy, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: configuration table has no data rows", domain.ErrConfig)
	}

	t := &Taxonomy{AccountAssociations: make(map[string]string)}
	seen := make(map[string]bool)

	for _, row := range rows[1:] {
		kind := cell(row, colType)
		category := cell(row, colCategory)
		subcategory := cell(row, colSubcategory)

		switch kind {
		case typeExpense:
			t.ExpenseCategories.add(category, subcategory)
		case typeIncome:
			t.IncomeCategories.add(category, subcategory)
		case typeInvestment:
			t.InvestmentCategories.add(category, subcategory)
		}

		account := cell(row, colAccount)
		if account == "" {
			continue
		}
		if !seen[account] {
			seen[account] = true
			t.Accounts = append(t.Accounts, account)
		}
		if assoc := cell(row, colAssociatedAccount); assoc != "" && assoc != account {
			t.AccountAssociations[account] = assoc
		}
	}

	if len(t.Accounts) == 0 {
		return nil, fmt.Errorf("%w: configuration table lists no accounts", domain.ErrConfig)
	}
	return t, nil
}

func cell(row []interface{}, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}
