package ledger

import (
	"sort"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/shopspring/decimal"
)

// Balance is the sum of all signed amounts of one account.
type Balance struct {
	Account string
	Amount  decimal.Decimal
}

// Balances sums rows per account, sorted by account name. Rows without an
// account are ignored.
func Balances(rows []domain.LedgerRow) []Balance {
	totals := make(map[string]decimal.Decimal)
	for _, r := range rows {
		if r.Account == "" {
			continue
		}
		totals[r.Account] = totals[r.Account].Add(r.Amount)
	}

	out := make([]Balance, 0, len(totals))
	for account, amount := range totals {
		out = append(out, Balance{Account: account, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}
