package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sanitized(t *testing.T, in string) map[string]any {
	t.Helper()
	out, _, err := NormalizeAndSanitizeJSON([]byte(in), nil)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	return m
}

func TestNormalizeAndSanitizeJSON(t *testing.T) {
	t.Run("renames synonyms", func(t *testing.T) {
		m := sanitized(t, `{
			"contract_title": "MSA",
			"start_date": "2024-01-01",
			"end_date": "2025-01-01",
			"jurisdiction": "Delaware",
			"currency": "USD",
			"parties": ["Acme Corp", "Bob LLC"],
			"summary": "s"
		}`)

		assert.Equal(t, "MSA", m["title"])
		assert.Equal(t, "2024-01-01", m["effective_date"])
		assert.Equal(t, "2025-01-01", m["expiration_date"])
		assert.Equal(t, "Delaware", m["governing_law"])
		assert.Equal(t, "USD", m["currency_code"])
		assert.NotContains(t, m, "contract_title")
		assert.NotContains(t, m, "jurisdiction")
	})

	t.Run("rename does not overwrite existing key", func(t *testing.T) {
		m := sanitized(t, `{"title": "Real Title", "contract_title": "Synonym"}`)
		assert.Equal(t, "Real Title", m["title"])
	})

	t.Run("coerces contract_value", func(t *testing.T) {
		m := sanitized(t, `{"contract_value": 150000}`)
		assert.Equal(t, "150000.00", m["contract_value"])

		m = sanitized(t, `{"contract_value": "$1,500.50"}`)
		assert.Equal(t, "1500.50", m["contract_value"])

		m = sanitized(t, `{"contract_value": null}`)
		assert.NotContains(t, m, "contract_value")
	})

	t.Run("parties from a single string", func(t *testing.T) {
		m := sanitized(t, `{"parties": "Acme Corp and Bob LLC"}`)
		assert.Equal(t, []any{"Acme Corp", "Bob LLC"}, m["parties"])

		m = sanitized(t, `{"parties": "Acme Corp; Bob LLC; Carol Inc"}`)
		assert.Equal(t, []any{"Acme Corp", "Bob LLC", "Carol Inc"}, m["parties"])
	})

	t.Run("parties drops empty entries", func(t *testing.T) {
		m := sanitized(t, `{"parties": ["Acme Corp", "", "  "]}`)
		assert.Equal(t, []any{"Acme Corp"}, m["parties"])

		m = sanitized(t, `{"parties": []}`)
		assert.NotContains(t, m, "parties")
	})

	t.Run("notice_period_days coercion", func(t *testing.T) {
		m := sanitized(t, `{"notice_period_days": "30"}`)
		assert.Equal(t, float64(30), m["notice_period_days"])

		m = sanitized(t, `{"notice_period_days": 30.5}`)
		assert.NotContains(t, m, "notice_period_days")
	})

	t.Run("auto_renews coercion", func(t *testing.T) {
		m := sanitized(t, `{"auto_renews": "yes"}`)
		assert.Equal(t, true, m["auto_renews"])

		m = sanitized(t, `{"auto_renews": "no"}`)
		assert.Equal(t, false, m["auto_renews"])

		m = sanitized(t, `{"auto_renews": "maybe"}`)
		assert.NotContains(t, m, "auto_renews")
	})

	t.Run("removes unknown keys", func(t *testing.T) {
		m := sanitized(t, `{"title": "T", "clauses": ["x"], "note_to_reader": "hi"}`)
		assert.Contains(t, m, "title")
		assert.NotContains(t, m, "clauses")
		assert.NotContains(t, m, "note_to_reader")
	})

	t.Run("trims and drops empty strings", func(t *testing.T) {
		m := sanitized(t, `{"title": "  T  ", "governing_law": "   "}`)
		assert.Equal(t, "T", m["title"])
		assert.NotContains(t, m, "governing_law")
	})

	t.Run("reports what it dropped", func(t *testing.T) {
		_, dropped, err := NormalizeAndSanitizeJSON([]byte(`{"jurisdiction": "NY", "bogus": 1}`), nil)
		require.NoError(t, err)
		assert.Contains(t, dropped, "jurisdiction->governing_law")
		assert.Contains(t, dropped, "bogus(unknown)")
	})

	t.Run("invalid json errors", func(t *testing.T) {
		_, _, err := NormalizeAndSanitizeJSON([]byte(`not json`), nil)
		assert.Error(t, err)
	})
}
