package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strings"
)

// NormalizeAndSanitizeJSON
// - Renames known synonyms (contract_title -> title, jurisdiction -> governing_law, ...)
// - Drops null/empty optionals
// - Coerces numeric -> string for contract_value, string/list noise -> []string for parties
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to our schema
	renamed("contract_title", "title")
	renamed("document_title", "title")
	renamed("document_type", "doc_type")
	renamed("type", "doc_type")
	renamed("start_date", "effective_date")
	renamed("commencement_date", "effective_date")
	renamed("end_date", "expiration_date")
	renamed("termination_date", "expiration_date")
	renamed("expiry_date", "expiration_date")
	renamed("jurisdiction", "governing_law")
	renamed("value", "contract_value")
	renamed("total_value", "contract_value")
	renamed("currency", "currency_code")
	renamed("payment_term", "payment_terms")
	renamed("notice_period", "notice_period_days")
	renamed("auto_renewal", "auto_renews")
	renamed("auto_renew", "auto_renews")

	// 2) coerce contract_value to a decimal string; drop null / "" optionals
	if v, ok := m["contract_value"]; ok {
		switch t := v.(type) {
		case float64:
			m["contract_value"] = fmt.Sprintf("%.2f", t)
		case string:
			s := strings.TrimSpace(t)
			s = strings.Trim(s, "$€£ ")
			s = strings.ReplaceAll(s, ",", "")
			if s == "" {
				delete(m, "contract_value")
				dropped = append(dropped, "contract_value(empty)")
			} else {
				m["contract_value"] = s
			}
		case nil:
			delete(m, "contract_value")
			dropped = append(dropped, "contract_value(null)")
		default:
			delete(m, "contract_value")
			dropped = append(dropped, "contract_value(type)")
		}
	}

	// 3) parties must be an array of non-empty strings; accept a single string
	if v, ok := m["parties"]; ok {
		switch t := v.(type) {
		case string:
			if ps := splitParties(t); len(ps) > 0 {
				m["parties"] = ps
			} else {
				delete(m, "parties")
				dropped = append(dropped, "parties(empty)")
			}
		case []any:
			out := make([]any, 0, len(t))
			for _, e := range t {
				if s, ok := e.(string); ok {
					if s = strings.TrimSpace(s); s != "" {
						out = append(out, s)
					}
				}
			}
			if len(out) == 0 {
				delete(m, "parties")
				dropped = append(dropped, "parties(empty)")
			} else {
				m["parties"] = out
			}
		case nil:
			delete(m, "parties")
			dropped = append(dropped, "parties(null)")
		}
	}

	// 4) notice_period_days: coerce numeric strings, reject fractions
	if v, ok := m["notice_period_days"]; ok {
		switch t := v.(type) {
		case float64:
			if t != float64(int64(t)) || t < 0 {
				delete(m, "notice_period_days")
				dropped = append(dropped, "notice_period_days(fraction)")
			}
		case string:
			s := strings.TrimSpace(t)
			var n int
			if _, err := fmt.Sscanf(s, "%d", &n); err == nil && n >= 0 {
				m["notice_period_days"] = n
			} else {
				delete(m, "notice_period_days")
				dropped = append(dropped, "notice_period_days(string)")
			}
		case nil:
			delete(m, "notice_period_days")
			dropped = append(dropped, "notice_period_days(null)")
		}
	}

	// 5) auto_renews: accept bool-ish strings
	if v, ok := m["auto_renews"]; ok {
		switch t := v.(type) {
		case bool:
			// already fine
		case string:
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "true", "yes":
				m["auto_renews"] = true
			case "false", "no":
				m["auto_renews"] = false
			default:
				delete(m, "auto_renews")
				dropped = append(dropped, "auto_renews(string)")
			}
		case nil:
			delete(m, "auto_renews")
			dropped = append(dropped, "auto_renews(null)")
		default:
			delete(m, "auto_renews")
			dropped = append(dropped, "auto_renews(type)")
		}
	}

	// 6) remove unknown keys (everything not in the schema set below)
	allowed := map[string]struct{}{
		"doc_type": {}, "title": {}, "parties": {}, "effective_date": {}, "expiration_date": {},
		"governing_law": {}, "contract_value": {}, "currency_code": {}, "payment_terms": {},
		"notice_period_days": {}, "auto_renews": {}, "summary": {},
		"confidence": {}, // harmless if model added it; the validator allows it
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	// 7) trim obvious strings
	trimKeys := []string{"doc_type", "title", "effective_date", "expiration_date", "governing_law", "currency_code", "payment_terms", "summary"}
	for _, k := range trimKeys {
		if v, ok := m[k].(string); ok {
			s := strings.TrimSpace(v)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

// splitParties turns "Acme Corp and Bob LLC" or "Acme Corp; Bob LLC" into a list.
func splitParties(s string) []any {
	s = strings.TrimSpace(s)
	var raw []string
	switch {
	case strings.Contains(s, ";"):
		raw = strings.Split(s, ";")
	case strings.Contains(s, " and "):
		raw = strings.SplitN(s, " and ", 2)
	default:
		raw = []string{s}
	}
	out := make([]any, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
