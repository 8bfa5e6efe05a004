package llm

// BuildContractJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to the model as a structured output constraint and also use it locally
// to validate. We REQUIRE 'doc_type', 'title', 'parties', and 'summary'; when a taxonomy
// is provided, doc_type is restricted to the enum values.
func BuildContractJSONSchema(allowedDocTypes []string) map[string]any {
	props := map[string]any{
		"doc_type":           map[string]any{"type": "string", "minLength": 1},
		"title":              map[string]any{"type": "string", "minLength": 1},
		"parties":            map[string]any{"type": "array", "items": map[string]any{"type": "string", "minLength": 1}, "minItems": 1},
		"effective_date":     dateProp(),
		"expiration_date":    dateProp(),
		"governing_law":      map[string]any{"type": "string"},
		"contract_value":     decimalProp(),
		"currency_code":      map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
		"payment_terms":      map[string]any{"type": "string"},
		"notice_period_days": map[string]any{"type": "integer", "minimum": 0, "maximum": 3650},
		"auto_renews":        map[string]any{"type": "boolean"},
		"summary":            map[string]any{"type": "string", "minLength": 1},
		"confidence":         map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}

	// Constrain doc_type if a taxonomy is provided.
	if len(allowedDocTypes) > 0 {
		props["doc_type"] = map[string]any{
			"type": "string",
			"enum": allowedDocTypes,
		}
	}

	// Make doc_type REQUIRED so the model can't omit it.
	required := []string{"doc_type", "title", "parties", "summary"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

// BuildRiskFlagsJSONSchema constrains the model risk review pass to a flat flags array.
func BuildRiskFlagsJSONSchema(allowedCategories []string) map[string]any {
	category := map[string]any{"type": "string", "minLength": 1}
	if len(allowedCategories) > 0 {
		category = map[string]any{"type": "string", "enum": allowedCategories}
	}
	flag := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"category": category,
			"severity": map[string]any{"type": "string", "enum": []string{"low", "medium", "high", "critical"}},
			"score":    map[string]any{"type": "number", "minimum": 0.0, "maximum": 100.0},
			"title":    map[string]any{"type": "string", "minLength": 1},
			"detail":   map[string]any{"type": "string", "minLength": 1},
			"excerpt":  map[string]any{"type": "string"},
		},
		"required": []string{"category", "severity", "title", "detail"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"flags": map[string]any{"type": "array", "items": flag},
		},
		"required": []string{"flags"},
	}
}

// BuildDocTypeJSONSchema constrains the classify pass to a single labeled choice.
func BuildDocTypeJSONSchema(allowed []string) map[string]any {
	docType := map[string]any{"type": "string", "minLength": 1}
	if len(allowed) > 0 {
		docType = map[string]any{"type": "string", "enum": allowed}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"doc_type":   docType,
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
		"required": []string{"doc_type"},
	}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^-?\d+(\.\d{1,2})?$`,
	}
}

func dateProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^\d{4}-\d{2}-\d{2}$`,
	}
}
