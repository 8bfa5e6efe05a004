package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const defaultMaxTextChars = 12000

// BuildSystemPrompt composes the extraction system message with the doc-type enum,
// a selection rubric, and strict-but-practical formatting rules.
func BuildSystemPrompt(req ExtractRequest) string {
	var typeLine string
	if len(req.AllowedDocTypes) > 0 {
		typeLine = "You MUST include a 'doc_type' and it MUST be exactly one of the allowed enum. " +
			"If uncertain, choose 'Other'. Allowed types (enum): " + strings.Join(req.AllowedDocTypes, ", ") + ". "
	} else {
		typeLine = "You MUST include a 'doc_type' that is a short, sensible label. If uncertain, use 'Other'. "
	}
	rubric := buildDocTypeRubric(req.AllowedDocTypes)

	parts := []string{
		"You are a contract analyst. Return ONLY JSON that matches the provided JSON Schema.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Currency must be a 3-letter ISO 4217 code; omit it if no monetary value appears.",
		typeLine,
		"Document type rubric: " + rubric,

		// Parties guidance (legal names, no roles):
		"For 'parties', list the legal entity or person names exactly as written, one array element per party. Do not include role words like 'hereinafter' or '(the Client)'.",

		// Summary guidance (concise, plain language):
		"For 'summary', write 2-4 plain-language sentences covering what the agreement is for, who the parties are, and the key commercial terms. Avoid legalese.",

		// Field behavior:
		"If several monetary amounts appear, put the total contract value in 'contract_value' (digits only, e.g. '150000.00').",
		"If the document states a renewal mechanism, set 'auto_renews' to true only for automatic renewal, false for renewal requiring consent.",
		"'notice_period_days' is the termination notice period converted to days (e.g. 'thirty (30) days' -> 30).",
		"'payment_terms' is the stated schedule or net terms (e.g. 'Net 30', 'monthly in advance').",

		// Formatting hygiene:
		"Never output null. If a field is not present in the document, omit it. Never invent values.",
	}

	if hint := strings.TrimSpace(req.DocTypeHint); hint != "" {
		parts = append(parts, "A heuristic pre-pass suggests the type is '"+hint+"'; confirm or correct it from the text.")
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the filename hint and document text. When a page image is
// attached we intentionally DO NOT include the extracted text (low-confidence OCR text
// is unhelpful next to the image itself).
func BuildUserPrompt(req ExtractRequest, fileAttached bool) string {
	maxChars := req.MaxTextChars
	if maxChars <= 0 {
		maxChars = defaultMaxTextChars
	}

	var b strings.Builder
	if filename := strings.TrimSpace(req.FilenameHint); filename != "" {
		b.WriteString("Filename: ")
		b.WriteString(filename)
		b.WriteString("\n")
	}

	// Only include document text when no image is attached (useful for non-vision runs).
	if !fileAttached {
		b.WriteString(fmt.Sprintf("\nDocument text (first ~%dk chars):\n", maxChars/1000))
		b.WriteString(headText(req.DocText, maxChars))
	} else {
		b.WriteString("\nNote: A page image of the document is attached. Read the fields from the image and pick exactly one doc_type from the enum; if uncertain, choose 'Other'.\n")
	}

	return b.String()
}

// BuildRiskSystemPrompt frames the model risk review pass. The pattern rules run first;
// the model pass is asked for findings a keyword scan would miss.
func BuildRiskSystemPrompt(allowedCategories []string) string {
	parts := []string{
		"You are a contract risk reviewer. Return ONLY JSON that matches the provided JSON Schema.",
		"Identify clauses that expose the receiving party to unusual risk: uncapped liability, one-sided indemnification, silent auto-renewal, broad IP assignment, unilateral termination, and similar.",
		"Allowed categories (enum): " + strings.Join(allowedCategories, ", ") + ".",
		"For each finding set 'severity' (low, medium, high, critical) and a 'score' from 0 to 100 where 100 is the most severe.",
		"'excerpt' must be a verbatim quote of at most 300 characters from the document. Never paraphrase inside 'excerpt'.",
		"Report at most 10 findings. If the document is unremarkable, return an empty flags array.",
	}
	return strings.Join(parts, " ")
}

func BuildRiskUserPrompt(req RiskReviewRequest) string {
	maxChars := req.MaxTextChars
	if maxChars <= 0 {
		maxChars = defaultMaxTextChars
	}
	var b strings.Builder
	if dt := strings.TrimSpace(req.DocType); dt != "" {
		b.WriteString("Document type: ")
		b.WriteString(dt)
		b.WriteString("\n")
	}
	b.WriteString("\nDocument text:\n")
	b.WriteString(headText(req.DocText, maxChars))
	return b.String()
}

// BuildClassifyPrompts produces the system and user prompts for the doc-type pass.
func BuildClassifyPrompts(text, filename string, allowed []string) (string, string) {
	sys := "You label legal and business documents. Return ONLY JSON that matches the provided JSON Schema. " +
		"Allowed types (enum): " + strings.Join(allowed, ", ") + ". " +
		"Document type rubric: " + buildDocTypeRubric(allowed) + " " +
		"Set 'confidence' to your certainty in 0..1."

	var b strings.Builder
	if f := strings.TrimSpace(filename); f != "" {
		b.WriteString("Filename: ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("\nDocument text (first ~3k chars):\n")
	b.WriteString(headText(text, 3000))
	return sys, b.String()
}

// BuildAnswerSystemPrompt frames the grounded chat pass. Passages are numbered so the
// model can cite them as [1], [2], ...
func BuildAnswerSystemPrompt() string {
	parts := []string{
		"You answer questions about ONE uploaded document.",
		"Ground every statement in the numbered passages provided; cite them inline as [1], [2], and so on.",
		"If the passages do not contain the answer, say so plainly. Never invent clauses, dates, or amounts.",
		"Quote exact contract language when the question asks what the document says.",
		"Keep answers under 200 words unless the question demands more.",
	}
	return strings.Join(parts, " ")
}

func BuildAnswerUserPrompt(req AnswerRequest) string {
	var b strings.Builder
	if t := strings.TrimSpace(req.DocTitle); t != "" {
		b.WriteString("Document: ")
		b.WriteString(t)
		if dt := strings.TrimSpace(req.DocType); dt != "" {
			b.WriteString(" (")
			b.WriteString(dt)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}

	if len(req.Passages) > 0 {
		b.WriteString("\nPassages:\n")
		for i, p := range req.Passages {
			b.WriteString(fmt.Sprintf("[%d]", i+1))
			if h := strings.TrimSpace(p.Heading); h != "" {
				b.WriteString(" (")
				b.WriteString(h)
				b.WriteString(")")
			}
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(p.Text))
			b.WriteString("\n\n")
		}
	}

	if len(req.History) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range req.History {
			b.WriteString(t.Role)
			b.WriteString(": ")
			b.WriteString(t.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(req.Question))
	return b.String()
}

// buildDocTypeRubric emits short, high-precision rules only for types present in the enum.
// It includes tie-breakers to avoid oscillating between similar buckets.
func buildDocTypeRubric(allowed []string) string {
	if len(allowed) == 0 {
		// generic rubric
		return "Mutual secrecy obligations with no payment terms -> 'NDA'; property and rent -> 'Lease'; " +
			"salary/position/at-will language -> 'Employment'; ongoing services against fees -> 'Service Agreement'; " +
			"itemized amounts due -> 'Invoice'; any other binding agreement -> 'Contract'; otherwise -> 'Other'. " +
			"When torn between two, choose the narrower, more specific one; if still unsure, choose 'Other'."
	}

	// guidance for common types, include only those present in the enum
	defs := map[string]string{
		"Contract":         "A binding agreement that fits no narrower bucket (purchase, licensing, partnership).",
		"NDA":              "Confidentiality or non-disclosure terms are the document's main subject, usually without payment terms.",
		"Lease":            "Rights to occupy or use property/equipment against rent (premises, term, landlord/tenant).",
		"Employment":       "Hiring terms for an individual (position, salary, benefits, at-will or termination-for-cause language).",
		"ServiceAgreement": "Ongoing or project services against fees (SOW, deliverables, service levels, MSA).",
		"Invoice":          "A bill: itemized amounts due, invoice number, payment due date. Not a signed agreement.",
		"Other":            "Use only when nothing else applies unambiguously.",
	}

	var parts []string
	for _, t := range allowed {
		if d, ok := defs[t]; ok {
			parts = append(parts, t+": "+d)
		}
	}
	// crisp tie-breakers when similar buckets exist
	if hasAll(allowed, "Contract", "ServiceAgreement") {
		parts = append(parts, "Tie-breaker: recurring or scoped services -> 'ServiceAgreement'; one-off obligations -> 'Contract'.")
	}
	if hasAll(allowed, "NDA", "Employment") {
		parts = append(parts, "Tie-breaker: confidentiality terms inside a hiring document -> 'Employment'; standalone secrecy terms -> 'NDA'.")
	}

	if len(parts) == 0 {
		return "Pick the closest type from the enum; if uncertain, choose 'Other'."
	}
	return strings.Join(parts, " | ")
}

// headText returns the first max characters of s, cutting at a rune boundary and
// marking the truncation.
func headText(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	// don't split a multi-byte rune
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + "\n…(truncated)"
}

func hasAll(list []string, a, b string) bool {
	foundA, foundB := false, false
	for _, x := range list {
		if x == a {
			foundA = true
		} else if x == b {
			foundB = true
		}
	}
	return foundA && foundB
}
