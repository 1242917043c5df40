package extraction

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/taxonomy"
)

// DefaultPrompt builds the instructions for a new message. The message
// itself (text or audio) is sent as a separate part after the prompt.
func DefaultPrompt(t *taxonomy.Taxonomy, today string, audio bool) string {
	var b strings.Builder

	if audio {
		b.WriteString("### TAREA:\n")
		b.WriteString("1. Transcribe el audio completo con máxima precisión\n")
		b.WriteString("2. Extrae información financiera de la transcripción\n\n")
	}

	b.WriteString("### CONTEXTO:\n")
	b.WriteString("Hoy es " + today + ". Analiza el mensaje para extraer información de un registro financiero.\n\n")

	b.WriteString("### TIPOS DE REGISTRO:\n")
	b.WriteString("- **gasto**: dinero que sale de una cuenta\n")
	b.WriteString("- **ingreso**: dinero que entra a una cuenta\n")
	b.WriteString("- **transferencia**: dinero que se mueve entre cuentas propias\n")
	b.WriteString("- **inversion**: compra de un activo (acciones, CEDEARs, bonos, cripto)\n")
	b.WriteString("- **venta_inversion**: venta de un activo\n\n")

	writeFields(&b)
	writeDateRules(&b)
	writeTaxonomy(&b, t)

	b.WriteString("### VALIDACIONES:\n")
	b.WriteString("- El monto debe ser un número positivo\n")
	b.WriteString("- La subcategoría debe existir en las listas proporcionadas\n")
	b.WriteString("- La fecha debe estar en formato dd/MM/yyyy\n")
	b.WriteString("- Para transferencias incluir account y second_account\n")
	b.WriteString("- Para inversiones amount debe ser igual a quantity × unit_price\n")
	b.WriteString("- Las cuotas deben ser un número entero mayor a 1 y solo para gastos\n\n")

	writeResponseRules(&b)
	return b.String()
}

// EditPrompt builds the instructions for an edit turn. The user's
// instruction is sent as a separate part; the model must answer with the
// complete record, changing only what the instruction asks for.
func EditPrompt(t *taxonomy.Taxonomy, today string, current domain.Candidate) string {
	var b strings.Builder

	b.WriteString("### CONTEXTO:\n")
	b.WriteString("Hoy es " + today + ". El usuario quiere corregir un registro financiero que todavía no confirmó.\n\n")

	b.WriteString("### REGISTRO ACTUAL:\n")
	b.WriteString(candidateJSON(current) + "\n\n")

	b.WriteString("### TAREA:\n")
	b.WriteString("- Aplica la instrucción del usuario al registro actual.\n")
	b.WriteString("- Devuelve el registro COMPLETO con todos sus campos.\n")
	b.WriteString("- Los campos que la instrucción no menciona deben quedar EXACTAMENTE iguales.\n")
	b.WriteString("- Si cambia la categoría, elige una subcategoría válida de la nueva categoría.\n\n")

	writeFields(&b)
	writeDateRules(&b)
	writeTaxonomy(&b, t)
	writeResponseRules(&b)
	return b.String()
}

func writeFields(b *strings.Builder) {
	b.WriteString("### CAMPOS:\n")
	b.WriteString("- **type**: \"gasto\", \"ingreso\", \"transferencia\", \"inversion\" o \"venta_inversion\"\n")
	b.WriteString("- **amount**: número positivo (sin símbolos de moneda)\n")
	b.WriteString("- **description**: descripción clara del movimiento\n")
	b.WriteString("- **category**: categoría principal (no aplica a transferencias)\n")
	b.WriteString("- **subcategory**: subcategoría en formato \"Categoría > Subcategoría\" (no aplica a transferencias)\n")
	b.WriteString("- **account**: cuenta principal del movimiento\n")
	b.WriteString("- **second_account**: (solo transferencias) cuenta destino\n")
	b.WriteString("- **asset**: (solo inversiones) ticker o nombre del activo\n")
	b.WriteString("- **quantity**: (solo inversiones) cantidad de unidades\n")
	b.WriteString("- **unit_price**: (solo inversiones) precio por unidad\n")
	b.WriteString("- **date**: formato dd/MM/yyyy (solo si se menciona)\n")
	b.WriteString("- **installments**: número de cuotas (solo si se menciona)\n\n")
}

func writeDateRules(b *strings.Builder) {
	b.WriteString("### REGLAS DE FECHA:\n")
	b.WriteString("- Si menciona \"ayer\", \"el lunes\", \"hace 3 días\", etc. calcula la fecha exacta a partir de hoy\n")
	b.WriteString("- Si NO menciona fecha, NO incluyas el campo \"date\"\n\n")
}

func writeTaxonomy(b *strings.Builder, t *taxonomy.Taxonomy) {
	b.WriteString("### CUENTAS DISPONIBLES:\n")
	b.WriteString(strings.Join(t.Accounts, ", ") + "\n")
	b.WriteString("- Si no especifica cuenta usa \"" + domain.UndefinedAccount + "\"\n\n")

	writeCategories(b, "### CATEGORÍAS DE GASTOS:\n", t.ExpenseCategories)
	writeCategories(b, "### CATEGORÍAS DE INGRESOS:\n", t.IncomeCategories)
	writeCategories(b, "### CATEGORÍAS DE INVERSIONES:\n", t.InvestmentCategories)

	b.WriteString("### FORMATO DE SUBCATEGORÍA:\n")
	b.WriteString("- La subcategoría debe devolverse en formato \"Categoría > Subcategoría\"\n")
	b.WriteString("- Ejemplo: si eliges \"Nafta\" de la categoría \"Auto\", devuelve \"Auto > Nafta\"\n\n")
}

func writeCategories(b *strings.Builder, title string, c taxonomy.Categories) {
	if c.Len() == 0 {
		return
	}
	b.WriteString(title)
	for _, name := range c.Names() {
		b.WriteString("**" + name + ":**\n")
		for _, sub := range c.Subcategories(name) {
			b.WriteString("  - " + taxonomy.Leaf(sub) + "\n")
		}
	}
	b.WriteString("\n")
}

func writeResponseRules(b *strings.Builder) {
	b.WriteString("### RESPUESTA:\n")
	b.WriteString("Devuelve ÚNICAMENTE un objeto JSON válido con los campos extraídos.\n")
	b.WriteString("No uses bloques de código ni Markdown.\n")
}

func candidateJSON(c domain.Candidate) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return "{}"
	}
	return strings.TrimSpace(buf.String())
}
