package risk

import (
	"regexp"
	"strings"
)

// Clause is one addressable unit of a document for risk scanning and citation.
type Clause struct {
	Seq     int
	Heading string
	Text    string
}

// heading lines start a new clause: "1.", "2.3", "Section 4.", "ARTICLE IX", "(a)"-style
// subsections stay inside their parent.
var reHeading = regexp.MustCompile(`^\s*(?:(?:ARTICLE|Article|SECTION|Section)\s+[IVXLCivxlc\d]+|\d+(?:\.\d+)*)[.):\s]`)

// maxClauses caps segmentation for very large documents; anything past it is
// left unscanned rather than ballooning the per-rule scan.
const maxClauses = 500

// SegmentClauses splits document text into clauses along numbered headings.
// Text before the first heading becomes clause 1 with an empty heading. When a
// document has no headings at all, blank-line paragraphs are used instead.
func SegmentClauses(text string) []Clause {
	lines := strings.Split(text, "\n")

	var clauses []Clause
	var heading string
	var body []string

	flush := func() {
		if len(clauses) >= maxClauses {
			body = body[:0]
			return
		}
		t := strings.TrimSpace(strings.Join(body, "\n"))
		if t == "" && heading == "" {
			body = body[:0]
			return
		}
		clauses = append(clauses, Clause{Seq: len(clauses) + 1, Heading: heading, Text: t})
		body = body[:0]
	}

	sawHeading := false
	for _, line := range lines {
		if reHeading.MatchString(line) {
			flush()
			if len(clauses) >= maxClauses {
				break
			}
			heading = headingLabel(line)
			sawHeading = true
			body = append(body, strings.TrimSpace(line))
			continue
		}
		body = append(body, line)
	}
	flush()

	if !sawHeading {
		return segmentParagraphs(text)
	}
	return clauses
}

// headingLabel extracts a short label from a heading line: the number/article part
// plus the first few words ("7. Limitation of Liability" -> same, trimmed).
func headingLabel(line string) string {
	label := strings.TrimSpace(line)
	if len(label) > 80 {
		label = strings.TrimSpace(label[:80])
	}
	return label
}

// segmentParagraphs is the fallback for unnumbered documents: blank-line blocks,
// merging short fragments into their neighbor.
func segmentParagraphs(text string) []Clause {
	blocks := strings.Split(text, "\n\n")
	var clauses []Clause
	var pending string
	for _, b := range blocks {
		if len(clauses) >= maxClauses {
			pending = ""
			break
		}
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if pending != "" {
			b = pending + "\n\n" + b
			pending = ""
		}
		// fragments under 80 chars are usually headings or list stubs
		if len(b) < 80 {
			pending = b
			continue
		}
		clauses = append(clauses, Clause{Seq: len(clauses) + 1, Text: b})
	}
	if pending != "" {
		if len(clauses) > 0 {
			clauses[len(clauses)-1].Text += "\n\n" + pending
		} else {
			clauses = append(clauses, Clause{Seq: 1, Text: pending})
		}
	}
	return clauses
}
