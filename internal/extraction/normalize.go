package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
)

// candidateFields are the top-level keys a record may carry.
var candidateFields = []string{
	"type", "amount", "description", "category", "subcategory", "account",
	"second_account", "asset", "quantity", "unit_price", "date", "installments",
}

// parseModelJSON strips markdown fences and decodes the model output,
// keeping numbers as json.Number.
func parseModelJSON(raw string) (interface{}, error) {
	clean := cleanModelJSON(raw)
	dec := json.NewDecoder(strings.NewReader(clean))
	dec.UseNumber()

	var parsed interface{}
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parseModelJSON: unmarshal: %w", err)
	}
	return parsed, nil
}

// cleanModelJSON removes ```json fences and any text around the outermost
// JSON object or array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(strings.TrimPrefix(s, "```json"), "```")
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(s, closer); end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

// Normalize reduces the shapes the model answers with to a single record:
// a non-empty "data" array yields its first element, a non-empty array
// yields its first element, an object with any record field is used as is.
// Anything else yields false.
func Normalize(raw interface{}) (map[string]interface{}, bool) {
	switch v := raw.(type) {
	case map[string]interface{}:
		if data, ok := v["data"].([]interface{}); ok && len(data) > 0 {
			rec, ok := data[0].(map[string]interface{})
			return rec, ok
		}
		for _, f := range candidateFields {
			if _, ok := v[f]; ok {
				return v, true
			}
		}
	case []interface{}:
		if len(v) > 0 {
			rec, ok := v[0].(map[string]interface{})
			return rec, ok
		}
	}
	return nil, false
}

// DecodeCandidate converts a normalized record into a Candidate. Values are
// taken loosely: numbers may arrive as strings, strings as numbers. Only a
// field of an impossible type (object, array) is an error; semantic checks
// belong to validation.
func DecodeCandidate(m map[string]interface{}) (domain.Candidate, error) {
	var (
		c   domain.Candidate
		err error
	)

	strField := func(key string, dst *string) {
		if err == nil {
			*dst, err = getStringField(m, key)
		}
	}
	numField := func(key string, dst *domain.Numeric) {
		if err == nil {
			*dst, err = getNumericField(m, key)
		}
	}

	var kind string
	strField("type", &kind)
	numField("amount", &c.Amount)
	strField("description", &c.Description)
	strField("category", &c.Category)
	strField("subcategory", &c.Subcategory)
	strField("account", &c.Account)
	strField("second_account", &c.CounterAccount)
	strField("asset", &c.Asset)
	numField("quantity", &c.Quantity)
	numField("unit_price", &c.UnitPrice)
	strField("date", &c.Date)
	numField("installments", &c.Installments)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("DecodeCandidate: %w", err)
	}

	if k, ok := domain.ParseKind(kind); ok {
		c.Kind = k
	} else {
		c.Kind = domain.Kind(strings.ToLower(strings.TrimSpace(kind)))
	}
	return c, nil
}

func getStringField(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case json.Number:
		return val.String(), nil
	case float64, bool:
		return fmt.Sprint(val), nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getNumericField(m map[string]interface{}, key string) (domain.Numeric, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	switch val := v.(type) {
	case json.Number:
		return domain.Numeric(val.String()), nil
	case float64:
		return domain.NumericFromFloat(val), nil
	case string:
		return domain.Numeric(strings.TrimSpace(val)), nil
	default:
		return "", fmt.Errorf("field %q has type %T, want number", key, v)
	}
}
