// Package format renders records as the HTML messages shown in the chat.
package format

import (
	"fmt"
	"html"
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
)

var headers = map[domain.Kind]string{
	domain.KindExpense:        "💸 <b>Gasto</b>",
	domain.KindIncome:         "💰 <b>Ingreso</b>",
	domain.KindTransfer:       "🔄 <b>Transferencia</b>",
	domain.KindInvestmentBuy:  "📈 <b>Inversión</b>",
	domain.KindInvestmentSell: "📉 <b>Venta de inversión</b>",
}

// Record renders record for display. dateStr is the dd/MM/yyyy date the
// record will be posted with; the date line is omitted when it is empty.
// A non-empty prefix replaces the per-kind header.
func Record(record domain.Candidate, dateStr, prefix string) string {
	header := prefix
	if header == "" {
		header = headers[record.Kind]
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")

	if dateStr != "" {
		line(&b, "📅", "Fecha", html.EscapeString(dateStr))
	}

	amount := Currency(record.Magnitude())
	if n := record.InstallmentCount(); record.Kind == domain.KindExpense && n > 1 {
		shares := domain.SplitInstallments(record.Magnitude(), n)
		if first, last := shares[0], shares[n-1]; first.Equal(last) {
			amount += fmt.Sprintf(" (%d cuotas de %s c/u)", n, Currency(first))
		} else {
			amount += fmt.Sprintf(" (%d cuotas: %d de %s y la última de %s)", n, n-1, Currency(first), Currency(last))
		}
	}
	line(&b, "💵", "Monto", amount)
	line(&b, "📝", "Descripción", html.EscapeString(record.Description))

	switch record.Kind {
	case domain.KindTransfer:
		line(&b, "🏦", "Origen", html.EscapeString(record.Account))
		line(&b, "🏦", "Destino", html.EscapeString(record.CounterAccount))
	default:
		line(&b, "🏷️", "Categoría", html.EscapeString(record.Category))
		line(&b, "📂", "Subcategoría", html.EscapeString(record.Subcategory))
		line(&b, "💳", "Cuenta", html.EscapeString(record.Account))
		if record.Kind.IsInvestment() {
			line(&b, "📊", "Activo", html.EscapeString(record.Asset))
			line(&b, "🔢", "Cantidad", record.QuantityValue().String())
			line(&b, "💲", "Precio unitario", Currency(record.UnitPriceValue()))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func line(b *strings.Builder, icon, label, value string) {
	fmt.Fprintf(b, "%s <b>%s:</b> %s\n", icon, label, value)
}
