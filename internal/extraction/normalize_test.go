package extraction

import (
	"encoding/json"
	"testing"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain object", `{"type":"gasto"}`, `{"type":"gasto"}`},
		{"json fence", "```json\n{\"type\":\"gasto\"}\n```", `{"type":"gasto"}`},
		{"bare fence", "```\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"leading prose", "Aquí está:\n{\"type\":\"gasto\"}\nSaludos", `{"type":"gasto"}`},
		{"no json", "no entiendo", "no entiendo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestNormalize(t *testing.T) {
	record := map[string]interface{}{"type": "gasto", "amount": json.Number("10")}

	tests := []struct {
		name string
		raw  interface{}
		want map[string]interface{}
		ok   bool
	}{
		{"direct object", record, record, true},
		{"array", []interface{}{record, map[string]interface{}{"type": "ingreso"}}, record, true},
		{"data wrapper", map[string]interface{}{"data": []interface{}{record}}, record, true},
		{"empty data falls through to object check", map[string]interface{}{"data": []interface{}{}}, nil, false},
		{"empty array", []interface{}{}, nil, false},
		{"unrelated object", map[string]interface{}{"error": "x"}, nil, false},
		{"array of strings", []interface{}{"x"}, nil, false},
		{"scalar", "gasto", nil, false},
		{"nil", nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeCandidate(t *testing.T) {
	parsed, err := parseModelJSON("```json\n" + `{
		"type": "Inversión",
		"amount": 1000.50,
		"description": " Compra AAPL ",
		"category": "Acciones",
		"subcategory": "Acciones > CEDEAR",
		"account": "Broker",
		"asset": "AAPL",
		"quantity": "10",
		"unit_price": 100.05,
		"date": null,
		"installments": null
	}` + "\n```")
	require.NoError(t, err)

	rec, ok := Normalize(parsed)
	require.True(t, ok)

	c, err := DecodeCandidate(rec)
	require.NoError(t, err)
	assert.Equal(t, domain.KindInvestmentBuy, c.Kind)
	assert.Equal(t, domain.Numeric("1000.50"), c.Amount)
	assert.Equal(t, "Compra AAPL", c.Description)
	assert.Equal(t, domain.Numeric("10"), c.Quantity)
	assert.Equal(t, domain.Numeric("100.05"), c.UnitPrice)
	assert.Empty(t, c.Date)
	assert.False(t, c.Installments.IsSet())
}

func TestDecodeCandidate_UnknownKindKept(t *testing.T) {
	c, err := DecodeCandidate(map[string]interface{}{"type": "Préstamo", "amount": "5"})
	require.NoError(t, err)
	assert.Equal(t, domain.Kind("préstamo"), c.Kind)
	assert.False(t, c.Kind.Valid())
}

func TestDecodeCandidate_BadFieldType(t *testing.T) {
	_, err := DecodeCandidate(map[string]interface{}{"type": "gasto", "amount": map[string]interface{}{"value": 1}})
	assert.Error(t, err)

	_, err = DecodeCandidate(map[string]interface{}{"type": "gasto", "account": []interface{}{"a"}})
	assert.Error(t, err)
}
