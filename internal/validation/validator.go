// Package validation decides whether an extracted candidate may be offered
// for confirmation.
package validation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/errorsink"
	"github.com/dvloznov/finance-bot/internal/taxonomy"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Installment bounds.
const (
	MinInstallments = 1
	MaxInstallments = 60
)

// AmountTolerance is the allowed gap between amount and quantity*unit price.
var AmountTolerance = decimal.RequireFromString("0.01")

var dateFormat = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// Result is the outcome of Validate. Reason is set only when Valid is false
// and is meant to be shown to the user as is.
type Result struct {
	Valid  bool
	Reason string
}

func accept() Result { return Result{Valid: true} }

// Validator applies the business rules in a fixed order and stops at the
// first failure. Every rejection is logged and recorded in the error sink.
type Validator struct {
	log  zerolog.Logger
	sink errorsink.Sink
}

// NewValidator creates a validator. A nil sink only logs.
func NewValidator(log zerolog.Logger, sink errorsink.Sink) *Validator {
	if sink == nil {
		sink = errorsink.LogSink{}
	}
	return &Validator{log: log, sink: sink}
}

// rejection carries the diagnostic context of a failed rule.
type rejection struct {
	rule   string
	field  string
	value  interface{}
	valid  interface{}
	reason string
}

// Validate checks c against t.
func (v *Validator) Validate(ctx context.Context, c domain.Candidate, t *taxonomy.Taxonomy) Result {
	rej := check(c, t)
	if rej == nil {
		return accept()
	}

	v.log.Warn().
		Str("rule", rej.rule).
		Str("field", rej.field).
		Interface("value", rej.value).
		Interface("valid", rej.valid).
		Str("type", string(c.Kind)).
		Msg(rej.reason)

	v.sink.Record(ctx, "Validator.Validate", errors.New(rej.reason), map[string]interface{}{
		"rule":      rej.rule,
		"field":     rej.field,
		"value":     rej.value,
		"valid":     rej.valid,
		"candidate": c,
	})

	return Result{Reason: rej.reason}
}

func check(c domain.Candidate, t *taxonomy.Taxonomy) *rejection {
	checks := []func(domain.Candidate, *taxonomy.Taxonomy) *rejection{
		checkRequired,
		checkKind,
		checkAmount,
		checkDescription,
		checkByKind,
		checkDate,
		checkInstallments,
	}
	for _, fn := range checks {
		if rej := fn(c, t); rej != nil {
			return rej
		}
	}
	return nil
}

// RequiredFields lists the fields that must be present for kind. Unknown
// kinds get the common set so the kind check can report them.
func RequiredFields(kind domain.Kind) []string {
	base := []string{"type", "amount", "description", "account"}
	if !kind.Valid() {
		return base
	}
	switch kind {
	case domain.KindTransfer:
		return base
	case domain.KindExpense, domain.KindIncome:
		return append(base, "category", "subcategory")
	case domain.KindInvestmentBuy, domain.KindInvestmentSell:
		return append(base, "category", "subcategory", "asset", "quantity", "unit_price")
	default:
		panic(fmt.Sprintf("validation: unhandled kind %q", string(kind)))
	}
}

func present(c domain.Candidate, field string) bool {
	switch field {
	case "type":
		return c.Kind != ""
	case "amount":
		return c.Amount.IsSet()
	case "description":
		return c.Description != ""
	case "account":
		return c.Account != ""
	case "category":
		return c.Category != ""
	case "subcategory":
		return c.Subcategory != ""
	case "asset":
		return c.Asset != ""
	case "quantity":
		return c.Quantity.IsSet()
	case "unit_price":
		return c.UnitPrice.IsSet()
	}
	return false
}

func checkRequired(c domain.Candidate, _ *taxonomy.Taxonomy) *rejection {
	required := RequiredFields(c.Kind)
	var missing []string
	for _, f := range required {
		if !present(c, f) {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &rejection{
		rule:   "required",
		field:  strings.Join(missing, ","),
		valid:  required,
		reason: "Faltan campos requeridos: " + strings.Join(missing, ", "),
	}
}

func checkKind(c domain.Candidate, _ *taxonomy.Taxonomy) *rejection {
	if c.Kind.Valid() {
		return nil
	}
	return &rejection{
		rule:   "kind",
		field:  "type",
		value:  c.Kind,
		valid:  domain.Kinds,
		reason: fmt.Sprintf("Tipo de registro inválido: %q", string(c.Kind)),
	}
}

func checkAmount(c domain.Candidate, _ *taxonomy.Taxonomy) *rejection {
	if d, err := c.Amount.Decimal(); err == nil && d.IsPositive() {
		return nil
	}
	return &rejection{
		rule:   "amount",
		field:  "amount",
		value:  c.Amount,
		reason: "Monto inválido - debe ser un número positivo",
	}
}

func checkDescription(c domain.Candidate, _ *taxonomy.Taxonomy) *rejection {
	if strings.TrimSpace(c.Description) != "" {
		return nil
	}
	return &rejection{
		rule:   "description",
		field:  "description",
		value:  c.Description,
		reason: "Descripción vacía",
	}
}

func checkByKind(c domain.Candidate, t *taxonomy.Taxonomy) *rejection {
	switch c.Kind {
	case domain.KindTransfer:
		return checkTransfer(c, t)
	case domain.KindInvestmentBuy, domain.KindInvestmentSell:
		return checkInvestment(c, t)
	case domain.KindExpense, domain.KindIncome:
		return checkCategorized(c, t)
	default:
		panic(fmt.Sprintf("validation: unhandled kind %q", string(c.Kind)))
	}
}

func checkTransfer(c domain.Candidate, t *taxonomy.Taxonomy) *rejection {
	if c.CounterAccount == "" {
		return &rejection{
			rule:   "transfer",
			field:  "second_account",
			reason: "Transferencia debe incluir cuenta destino (second_account)",
		}
	}
	if rej := checkAccount(c.Account, "account", "Cuenta origen inválida", t); rej != nil {
		return rej
	}
	if rej := checkAccount(c.CounterAccount, "second_account", "Cuenta destino inválida", t); rej != nil {
		return rej
	}
	if c.Account == c.CounterAccount {
		return &rejection{
			rule:   "transfer",
			field:  "second_account",
			value:  c.CounterAccount,
			reason: "Las cuentas origen y destino deben ser diferentes",
		}
	}
	return nil
}

func checkInvestment(c domain.Candidate, t *taxonomy.Taxonomy) *rejection {
	if rej := checkCategories(c, t); rej != nil {
		return rej
	}
	if strings.TrimSpace(c.Asset) == "" {
		return &rejection{rule: "investment", field: "asset", value: c.Asset, reason: "Activo vacío"}
	}

	qty, err := c.Quantity.Decimal()
	if err != nil || !qty.IsPositive() {
		return &rejection{
			rule:   "investment",
			field:  "quantity",
			value:  c.Quantity,
			reason: "Cantidad inválida - debe ser un número positivo",
		}
	}
	price, err := c.UnitPrice.Decimal()
	if err != nil || !price.IsPositive() {
		return &rejection{
			rule:   "investment",
			field:  "unit_price",
			value:  c.UnitPrice,
			reason: "Precio unitario inválido - debe ser un número positivo",
		}
	}

	expected := qty.Mul(price)
	if c.Magnitude().Sub(expected).Abs().GreaterThan(AmountTolerance) {
		return &rejection{
			rule:   "investment",
			field:  "amount",
			value:  c.Amount,
			valid:  expected.String(),
			reason: fmt.Sprintf("El monto no coincide con cantidad × precio unitario (esperado %s)", expected.StringFixed(2)),
		}
	}

	return checkAccount(c.Account, "account", "Cuenta inválida", t)
}

func checkCategorized(c domain.Candidate, t *taxonomy.Taxonomy) *rejection {
	if rej := checkCategories(c, t); rej != nil {
		return rej
	}
	return checkAccount(c.Account, "account", "Cuenta inválida", t)
}

// checkCategories validates category, subcategory membership and the
// "<category> > <leaf>" format against the tree for c.Kind.
func checkCategories(c domain.Candidate, t *taxonomy.Taxonomy) *rejection {
	cats, _ := t.CategoriesFor(c.Kind)
	label := categoryLabel(c.Kind)

	if !cats.Has(c.Category) {
		return &rejection{
			rule:   "category",
			field:  "category",
			value:  c.Category,
			valid:  cats.Names(),
			reason: fmt.Sprintf("Categoría inválida para %s: %s", label, c.Category),
		}
	}
	if !cats.HasSubcategory(c.Category, c.Subcategory) {
		return &rejection{
			rule:   "subcategory",
			field:  "subcategory",
			value:  c.Subcategory,
			valid:  cats.Subcategories(c.Category),
			reason: fmt.Sprintf("Subcategoría inválida para la categoría seleccionada en %s: %s", label, c.Subcategory),
		}
	}
	if !SubcategoryMatches(c.Category, c.Subcategory) {
		return &rejection{
			rule:   "subcategory_format",
			field:  "subcategory",
			value:  c.Subcategory,
			valid:  c.Category + taxonomy.SubcategorySeparator + "[subcategoría]",
			reason: fmt.Sprintf(`Formato de subcategoría inválido - debe ser "%s > [subcategoría]"`, c.Category),
		}
	}
	return nil
}

// SubcategoryMatches reports whether subcategory is "<category> > <leaf>"
// with a prefix equal to category after trimming.
func SubcategoryMatches(category, subcategory string) bool {
	parts := strings.Split(subcategory, taxonomy.SubcategorySeparator)
	if len(parts) != 2 {
		return false
	}
	return strings.TrimSpace(parts[0]) == strings.TrimSpace(category)
}

func categoryLabel(kind domain.Kind) string {
	switch kind {
	case domain.KindExpense:
		return "gastos"
	case domain.KindIncome:
		return "ingresos"
	default:
		return "inversiones"
	}
}

func checkAccount(name, field, reason string, t *taxonomy.Taxonomy) *rejection {
	if name == domain.UndefinedAccount || t.HasAccount(name) {
		return nil
	}
	return &rejection{
		rule:   "account",
		field:  field,
		value:  name,
		valid:  t.Accounts,
		reason: reason + ": " + name,
	}
}

func checkDate(c domain.Candidate, _ *taxonomy.Taxonomy) *rejection {
	if c.Date == "" {
		return nil
	}
	if !dateFormat.MatchString(c.Date) {
		return &rejection{
			rule:   "date",
			field:  "date",
			value:  c.Date,
			valid:  "dd/MM/yyyy",
			reason: "Formato de fecha inválido - debe ser dd/MM/yyyy",
		}
	}
	if _, err := domain.ParseDate(c.Date); err != nil {
		return &rejection{
			rule:   "date",
			field:  "date",
			value:  c.Date,
			reason: "Fecha inválida: " + c.Date,
		}
	}
	return nil
}

func checkInstallments(c domain.Candidate, _ *taxonomy.Taxonomy) *rejection {
	if !c.Installments.IsSet() {
		return nil
	}
	n, err := c.Installments.Int()
	if err != nil || n < MinInstallments || n > MaxInstallments {
		return &rejection{
			rule:   "installments",
			field:  "installments",
			value:  c.Installments,
			valid:  fmt.Sprintf("%d-%d", MinInstallments, MaxInstallments),
			reason: fmt.Sprintf("Número de cuotas inválido - debe ser un número entero entre %d y %d", MinInstallments, MaxInstallments),
		}
	}
	if c.Kind != domain.KindExpense {
		return &rejection{
			rule:   "installments",
			field:  "installments",
			value:  c.Installments,
			reason: "Las cuotas solo se aplican a gastos",
		}
	}
	if n == 1 {
		return &rejection{
			rule:   "installments",
			field:  "installments",
			value:  c.Installments,
			reason: "Para una sola cuota, no incluir el campo installments",
		}
	}
	return nil
}
