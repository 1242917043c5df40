package extraction

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	answer string
	err    error
	parts  []*genai.Part
}

func (f *fakeGenerator) Generate(_ context.Context, parts []*genai.Part) (string, error) {
	f.parts = parts
	return f.answer, f.err
}

type fakeProvider struct {
	t   *taxonomy.Taxonomy
	err error
}

func (f *fakeProvider) Load(context.Context) (*taxonomy.Taxonomy, error) { return f.t, f.err }

func testTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tx, err := taxonomy.ParseYAML([]byte(`
accounts:
  - name: Banco Galicia
  - name: Efectivo
expenses:
  - category: Auto
    subcategories: [Nafta]
income:
  - category: Sueldo
    subcategories: [Mensual]
`))
	require.NoError(t, err)
	return tx
}

func newTestExtractor(t *testing.T, gen Generator) *ModelExtractor {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)
	e := NewModelExtractor(gen, &fakeProvider{t: testTaxonomy(t)}, loc)
	// 02:00 UTC on the 16th is still the 15th in Buenos Aires.
	e.now = func() time.Time { return time.Date(2024, 1, 16, 2, 0, 0, 0, time.UTC) }
	return e
}

func TestExtract_Text(t *testing.T) {
	gen := &fakeGenerator{answer: "```json\n{\"type\":\"gasto\",\"amount\":1500,\"description\":\"Nafta\",\"category\":\"Auto\",\"subcategory\":\"Auto > Nafta\",\"account\":\"Efectivo\"}\n```"}
	e := newTestExtractor(t, gen)

	c, err := e.Extract(context.Background(), Content{Text: "1500 nafta efectivo"}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.KindExpense, c.Kind)
	assert.Equal(t, domain.Numeric("1500"), c.Amount)
	assert.Equal(t, "Auto > Nafta", c.Subcategory)

	require.Len(t, gen.parts, 2)
	prompt := gen.parts[0].Text
	assert.Contains(t, prompt, "Hoy es 15/01/2024")
	assert.Contains(t, prompt, "Banco Galicia, Efectivo")
	assert.Contains(t, prompt, "**Auto:**\n  - Nafta")
	assert.NotContains(t, prompt, "Transcribe")
	assert.Contains(t, gen.parts[1].Text, "1500 nafta efectivo")
}

func TestExtract_Audio(t *testing.T) {
	gen := &fakeGenerator{answer: `[{"type":"ingreso","amount":"1000"}]`}
	e := newTestExtractor(t, gen)

	c, err := e.Extract(context.Background(), Content{Audio: []byte("OggS"), AudioMIMEType: "audio/ogg"}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.KindIncome, c.Kind)

	require.Len(t, gen.parts, 2)
	assert.Contains(t, gen.parts[0].Text, "Transcribe el audio")
	require.NotNil(t, gen.parts[1].InlineData)
	assert.Equal(t, "audio/ogg", gen.parts[1].InlineData.MIMEType)
}

func TestExtract_PromptOverride(t *testing.T) {
	gen := &fakeGenerator{answer: `{"data":[{"type":"gasto","amount":1}]}`}
	provider := &fakeProvider{err: errors.New("must not be called")}
	e := NewModelExtractor(gen, provider, time.UTC)

	_, err := e.Extract(context.Background(), Content{Text: "cambia el monto"}, "PROMPT DE EDICION")
	require.NoError(t, err)
	assert.Equal(t, "PROMPT DE EDICION", gen.parts[0].Text)
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name  string
		gen   *fakeGenerator
		noRec bool
	}{
		{"model failure", &fakeGenerator{err: errors.New("503")}, false},
		{"malformed json", &fakeGenerator{answer: "{type: gasto"}, false},
		{"no record", &fakeGenerator{answer: `{"mensaje":"hola"}`}, true},
		{"bad field type", &fakeGenerator{answer: `{"type":"gasto","amount":{"v":1}}`}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtractor(t, tt.gen)
			_, err := e.Extract(context.Background(), Content{Text: "x"}, "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrExtraction))
			assert.Equal(t, tt.noRec, errors.Is(err, ErrNoRecord))
		})
	}
}

func TestExtract_TaxonomyError(t *testing.T) {
	e := NewModelExtractor(&fakeGenerator{}, &fakeProvider{err: domain.ErrConfig}, time.UTC)
	_, err := e.Extract(context.Background(), Content{Text: "x"}, "")
	assert.True(t, errors.Is(err, domain.ErrConfig))
}

func TestEditPrompt(t *testing.T) {
	e := newTestExtractor(t, &fakeGenerator{})
	current := domain.Candidate{
		Kind:        domain.KindExpense,
		Amount:      "1500",
		Description: "Nafta",
		Category:    "Auto",
		Subcategory: "Auto > Nafta",
		Account:     "Efectivo",
	}

	prompt, err := e.EditPrompt(context.Background(), current)
	require.NoError(t, err)
	assert.Contains(t, prompt, `"subcategory": "Auto > Nafta"`)
	assert.Contains(t, prompt, `"amount": "1500"`)
	assert.Contains(t, prompt, "EXACTAMENTE iguales")
	assert.Contains(t, prompt, "Hoy es 15/01/2024")
}

func TestGeminiGenerator(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"type\":\"gasto\"}"}]},"finishReason":"STOP"}]}`))
	}))
	defer ts.Close()

	client, err := NewGeminiClient(context.Background(), "test-key", ts.URL)
	require.NoError(t, err)

	text, err := NewGeminiGenerator(client, "").Generate(context.Background(), []*genai.Part{{Text: "hola"}})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"gasto"}`, text)
	assert.True(t, strings.HasSuffix(gotPath, "models/"+DefaultModelName+":generateContent"), gotPath)
}
