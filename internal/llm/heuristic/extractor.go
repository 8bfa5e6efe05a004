// Package heuristic extracts contract fields with regular expressions only.
// It is the fallback when the model extractor is unavailable or its output
// fails schema validation; everything it produces is marked for review.
package heuristic

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/clauselens/clauselens/internal/llm"
)

// Confidence is the fixed confidence reported for regex-extracted fields.
const Confidence float32 = 0.35

var (
	reParties   = regexp.MustCompile(`(?i)\b(?:by\s+and\s+)?between\s+([A-Z][^,;(\n]{2,70}?)\s*(?:\([^)]*\))?\s*,?\s+and\s+([A-Z][^,;(.\n]{2,70})`)
	reEffective = regexp.MustCompile(`(?i)effective\s+(?:as\s+of\s+|date[:\s]+|on\s+)?(` + datePattern + `)`)
	reExpires   = regexp.MustCompile(`(?i)(?:expires?|expiration\s+date|terminates?)\s*(?:[:\s]|on\s+)\s*(` + datePattern + `)`)
	reGoverning = regexp.MustCompile(`(?i)governed\s+by(?:\s+and\s+construed\s+in\s+accordance\s+with)?\s+the\s+laws?\s+of\s+(?:the\s+)?(?:state\s+of\s+|commonwealth\s+of\s+|province\s+of\s+)?([A-Z][A-Za-z ]{2,40}?)[,.;\n]`)
	reAmount    = regexp.MustCompile(`[$€£]\s?(\d[\d,]*(?:\.\d{2})?)`)
	reAutoRenew = regexp.MustCompile(`(?i)automatically\s+(?:renews?|extends?|be\s+renewed|be\s+extended)`)
	reNotice    = regexp.MustCompile(`(?i)(\d{1,3})\)?\s+(?:calendar\s+|business\s+)?days['’]?\s+(?:prior\s+)?(?:advance\s+)?(?:written\s+)?notice`)
)

const datePattern = `[A-Z][a-z]+\s+\d{1,2},\s+\d{4}|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}`

var dateLayouts = []string{"2006-01-02", "January 2, 2006", "Jan 2, 2006", "01/02/2006", "1/2/2006"}

type Extractor struct {
	log *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{log: logger}
}

var _ llm.FieldExtractor = (*Extractor)(nil)

// ExtractFields scans the document text for field patterns. It never fails on
// missing fields; absent values are simply omitted.
func (e *Extractor) ExtractFields(_ context.Context, req llm.ExtractRequest) (llm.ContractFields, []byte, error) {
	text := req.DocText
	out := llm.ContractFields{
		DocType:         strings.TrimSpace(req.DocTypeHint),
		Title:           guessTitle(text, req.FilenameHint),
		ModelConfidence: Confidence,
	}

	if m := reParties.FindStringSubmatch(text); m != nil {
		out.Parties = []string{cleanParty(m[1]), cleanParty(m[2])}
	}
	if m := reEffective.FindStringSubmatch(text); m != nil {
		out.EffectiveDate = normalizeDate(m[1])
	}
	if m := reExpires.FindStringSubmatch(text); m != nil {
		out.ExpirationDate = normalizeDate(m[1])
	}
	if m := reGoverning.FindStringSubmatch(text); m != nil {
		out.GoverningLaw = strings.TrimSpace(m[1])
	}
	if v, ok := maxAmount(text); ok {
		out.ContractValue = v
	}
	if reAutoRenew.MatchString(text) {
		t := true
		out.AutoRenews = &t
	}
	if m := reNotice.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			out.NoticePeriodDays = int32(n)
		}
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return llm.ContractFields{}, nil, err
	}

	e.log.Info("llm.extract.heuristic",
		"parties", len(out.Parties),
		"effective_date", out.EffectiveDate != "",
		"governing_law", out.GoverningLaw != "",
		"contract_value", out.ContractValue != "",
		"auto_renews", out.AutoRenews != nil,
		"notice_period_days", out.NoticePeriodDays,
	)
	return out, raw, nil
}

// guessTitle takes the first plausible heading line, falling back to the filename.
func guessTitle(text, filename string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 4 || len(line) > 120 {
			continue
		}
		// page markers and dates make poor titles
		if strings.HasPrefix(line, "Page ") || normalizeDate(line) != "" {
			continue
		}
		return line
	}
	f := strings.TrimSpace(filename)
	if i := strings.LastIndex(f, "."); i > 0 {
		f = f[:i]
	}
	return f
}

func cleanParty(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'“”`)
	// drop a trailing defined-term opener, e.g. `Acme Corp (the`
	if i := strings.Index(s, "("); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// maxAmount returns the largest currency amount in the text as a decimal string.
func maxAmount(text string) (string, bool) {
	var best float64
	found := false
	for _, m := range reAmount.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	if !found {
		return "", false
	}
	return strconv.FormatFloat(best, 'f', 2, 64), true
}
