package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reISODate  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reDecimal  = regexp.MustCompile(`^-?\d+(\.\d{1,2})?$`)
	reCurrency = regexp.MustCompile(`^[A-Z]{3}$`)
	optDates   = []string{"effective_date", "expiration_date"} // optional only
)

// date layouts the model falls back to when it ignores the ISO instruction
var looseDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// SanitizeOptionalFields removes or normalizes optional fields that don't meet our stricter schema,
// so the overall document can still validate. We only touch OPTIONALS.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string

	// dates: reformat loose values to YYYY-MM-DD, drop what won't parse
	for _, k := range optDates {
		if v, ok := m[k].(string); ok {
			s := strings.TrimSpace(v)
			if s == "" || strings.EqualFold(s, "null") {
				delete(m, k)
				dropped = append(dropped, k)
				continue
			}
			if reISODate.MatchString(s) {
				m[k] = s
				continue
			}
			if iso, ok := parseLooseDate(s); ok {
				m[k] = iso
			} else {
				delete(m, k)
				dropped = append(dropped, k)
			}
		}
	}

	// contract_value: accept numbers like "7", "7.0", "150000.00", strip symbols
	if v, ok := m["contract_value"]; ok {
		switch t := v.(type) {
		case nil:
			delete(m, "contract_value")
			dropped = append(dropped, "contract_value")
		case float64:
			m["contract_value"] = fmt.Sprintf("%.2f", t)
		case string:
			s := strings.Trim(strings.TrimSpace(t), "$€£ ")
			s = strings.ReplaceAll(s, ",", "")
			if s == "" || strings.EqualFold(s, "null") {
				delete(m, "contract_value")
				dropped = append(dropped, "contract_value")
			} else if !reDecimal.MatchString(s) {
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					m["contract_value"] = fmt.Sprintf("%.2f", f)
				} else {
					delete(m, "contract_value")
					dropped = append(dropped, "contract_value")
				}
			} else {
				m["contract_value"] = s
			}
		default:
			delete(m, "contract_value")
			dropped = append(dropped, "contract_value")
		}
	}

	// currency_code: normalize casing, drop anything that isn't a 3-letter code
	if v, ok := m["currency_code"].(string); ok {
		s := strings.ToUpper(strings.TrimSpace(v))
		if reCurrency.MatchString(s) {
			m["currency_code"] = s
		} else {
			delete(m, "currency_code")
			dropped = append(dropped, "currency_code")
		}
	}

	// notice_period_days: tolerate "30 days" style strings
	if v, ok := m["notice_period_days"].(string); ok {
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &n); err == nil && n >= 0 {
			m["notice_period_days"] = n
		} else {
			delete(m, "notice_period_days")
			dropped = append(dropped, "notice_period_days")
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}

func parseLooseDate(s string) (string, bool) {
	for _, layout := range looseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
