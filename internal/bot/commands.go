package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/format"
	"github.com/dvloznov/finance-bot/internal/ledger"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/taxonomy"
)

const helpText = `🤖 Comandos disponibles:

/categorias_gastos - Ver categorías de gastos
/categorias_ingresos - Ver categorías de ingresos
/categorias_inversiones - Ver categorías de inversiones
/subcategorias [categoría] - Ver subcategorías de una categoría
/cuentas - Ver cuentas disponibles
/saldos - Ver saldo por cuenta
/cancelar - Salir de la edición en curso
/ayuda - Ver esta ayuda

Para registrar un movimiento enviá un mensaje de texto o de voz, por ejemplo "gasté 1500 en nafta con la visa".`

const lsPrefix = "/ls_"

func (s *Service) handleCommand(ctx context.Context, msg Message) error {
	name, arg := splitCommand(msg.Text)
	lg := logger.FromContext(ctx)
	lg.Debug().Str("command", name).Msg("Handling command")

	var (
		text string
		err  error
	)
	switch {
	case name == "/start" || name == "/ayuda":
		text = helpText
	case name == "/cuentas":
		text, err = s.accountsText(ctx)
	case name == "/categorias_gastos":
		text, err = s.categoriesText(ctx, "gastos", func(t *taxonomy.Taxonomy) taxonomy.Categories { return t.ExpenseCategories })
	case name == "/categorias_ingresos":
		text, err = s.categoriesText(ctx, "ingresos", func(t *taxonomy.Taxonomy) taxonomy.Categories { return t.IncomeCategories })
	case name == "/categorias_inversiones":
		text, err = s.categoriesText(ctx, "inversiones", func(t *taxonomy.Taxonomy) taxonomy.Categories { return t.InvestmentCategories })
	case name == "/subcategorias":
		text, err = s.subcategoriesText(ctx, arg)
	case strings.HasPrefix(name, lsPrefix):
		text, err = s.subcategoriesText(ctx, strings.ReplaceAll(strings.TrimPrefix(name, lsPrefix), "_", " "))
	case name == "/saldos":
		text, err = s.balancesText(ctx)
	case name == "/cancelar":
		return s.cancelEdit(ctx, msg.ChatID)
	default:
		text = "Comando no reconocido. Usá /ayuda para ver los comandos disponibles."
	}
	if err != nil {
		return fmt.Errorf("handleCommand %s: %w", name, err)
	}

	return s.transport.SendText(ctx, msg.ChatID, text)
}

// splitCommand separates "/cmd@bot arg words" into "/cmd" and "arg words".
func splitCommand(text string) (name, arg string) {
	name, arg, _ = strings.Cut(strings.TrimSpace(text), " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

func (s *Service) accountsText(ctx context.Context) (string, error) {
	t, err := s.taxonomy.Load(ctx)
	if err != nil {
		return "", err
	}
	return "💳 <b>Cuentas disponibles:</b>\n\n" + bullets(t.Accounts, false), nil
}

func (s *Service) categoriesText(ctx context.Context, label string, pick func(*taxonomy.Taxonomy) taxonomy.Categories) (string, error) {
	t, err := s.taxonomy.Load(ctx)
	if err != nil {
		return "", err
	}
	return "<b>Categorías de " + label + ":</b>\n" + bullets(pick(t).Names(), true), nil
}

func (s *Service) subcategoriesText(ctx context.Context, category string) (string, error) {
	t, err := s.taxonomy.Load(ctx)
	if err != nil {
		return "", err
	}
	all := t.AllCategories()

	if category == "" {
		cmds := make([]string, 0, all.Len())
		for _, name := range all.Names() {
			cmds = append(cmds, CategoryCommand(name))
		}
		return "📋 <b>Categorías disponibles:</b>\n\n" + bullets(cmds, false) +
			"\n\n<i>Seleccione una categoría tocando en la opción deseada</i>", nil
	}

	match, ok := all.Find(category)
	if !ok {
		return fmt.Sprintf("❌ Categoría \"%s\" no encontrada.\n\nCategorías disponibles:\n%s",
			html.EscapeString(category), bullets(all.Names(), false)), nil
	}
	return "📋 <b>Subcategorías de " + html.EscapeString(match) + ":</b>\n\n" + bullets(all.Subcategories(match), false), nil
}

// CategoryCommand returns the clickable /ls_ command listing category's
// subcategories: accents dropped, spaces replaced by underscores.
func CategoryCommand(category string) string {
	return lsPrefix + strings.Join(strings.Fields(domain.FoldAccents(category)), "_")
}

func (s *Service) balancesText(ctx context.Context) (string, error) {
	rows, err := s.ledger.Rows(ctx)
	if err != nil {
		return "", err
	}
	balances := ledger.Balances(rows)
	if len(balances) == 0 {
		return "No hay movimientos registrados.", nil
	}

	var b strings.Builder
	b.WriteString("💼 <b>Saldos por cuenta:</b>\n")
	for _, bal := range balances {
		fmt.Fprintf(&b, "\n• <b>%s</b>: %s", html.EscapeString(bal.Account), format.Currency(bal.Amount))
	}
	return b.String(), nil
}

// cancelEdit leaves edit mode and prompts again for the untouched entry.
func (s *Service) cancelEdit(ctx context.Context, chatID int64) error {
	marker, editing, err := s.registry.EditMode(ctx, chatID)
	if err != nil {
		return fmt.Errorf("cancelEdit: %w", err)
	}
	if !editing {
		return s.transport.SendText(ctx, chatID, "No hay ninguna edición en curso.")
	}
	if err := s.registry.LeaveEditMode(ctx, chatID); err != nil {
		return fmt.Errorf("cancelEdit: %w", err)
	}

	entry, err := s.registry.Entry(ctx, marker.EntryID)
	if errors.Is(err, domain.ErrStaleReference) {
		return s.transport.SendText(ctx, chatID, "Edición cancelada.\n\n"+unavailableText)
	}
	if err != nil {
		return fmt.Errorf("cancelEdit: %w", err)
	}
	if err := s.transport.SendText(ctx, chatID, "Edición cancelada."); err != nil {
		return fmt.Errorf("cancelEdit: %w", err)
	}
	return s.prompt(ctx, entry)
}

func bullets(items []string, bold bool) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		it = html.EscapeString(it)
		if bold {
			it = "<b>" + it + "</b>"
		}
		lines = append(lines, "• "+it)
	}
	return strings.Join(lines, "\n")
}
