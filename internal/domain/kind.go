package domain

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind is the closed set of movement kinds the bot understands.
// Every component that branches on Kind does so with a switch whose default
// panics, and its tests iterate Kinds, so a new kind fails loudly everywhere.
type Kind string

const (
	KindExpense        Kind = "gasto"
	KindIncome         Kind = "ingreso"
	KindTransfer       Kind = "transferencia"
	KindInvestmentBuy  Kind = "inversion"
	KindInvestmentSell Kind = "venta_inversion"
)

// Kinds lists every recognized kind in display order.
var Kinds = []Kind{KindExpense, KindIncome, KindTransfer, KindInvestmentBuy, KindInvestmentSell}

// ParseKind maps the model's wording ("Gasto", "inversión", "venta inversión")
// onto a Kind. Unknown values return false.
func ParseKind(s string) (Kind, bool) {
	key := strings.ToLower(FoldAccents(strings.TrimSpace(s)))
	key = strings.Join(strings.Fields(key), "_")
	for _, k := range Kinds {
		if string(k) == key {
			return k, true
		}
	}
	return "", false
}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// IsInvestment reports whether k is a buy or sell of an asset.
func (k Kind) IsInvestment() bool {
	return k == KindInvestmentBuy || k == KindInvestmentSell
}

// MovementType is the value written to the ledger's type column.
func (k Kind) MovementType() MovementType {
	switch k {
	case KindExpense:
		return MovementExpense
	case KindIncome:
		return MovementIncome
	case KindTransfer:
		return MovementTransfer
	case KindInvestmentBuy, KindInvestmentSell:
		return MovementInvestment
	default:
		panic(fmt.Sprintf("domain: unhandled kind %q", string(k)))
	}
}

// Sign is the ledger sign of a single-row movement of this kind.
// Transfers post one row of each sign and report -1 for the origin leg.
func (k Kind) Sign() int {
	switch k {
	case KindExpense, KindInvestmentBuy, KindTransfer:
		return -1
	case KindIncome, KindInvestmentSell:
		return 1
	default:
		panic(fmt.Sprintf("domain: unhandled kind %q", string(k)))
	}
}

// FoldAccents strips combining marks: "Categorías" -> "Categorias".
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
