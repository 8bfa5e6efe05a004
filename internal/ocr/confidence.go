package ocr

import (
	"regexp"
	"strings"
)

var (
	reDateish   = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\b|\b(19|20)\d{2}\b`)
	reLegalTerm = regexp.MustCompile(`\b(agreement|party|parties|shall|hereby|hereunder|whereas|terms?)\b`)
	reClauseNum = regexp.MustCompile(`(?m)^\s*\d+(\.\d+)*[.)\s]`)
)

func hasDatePattern(s string) bool      { return reDateish.MatchString(s) }
func hasLegalTermPattern(s string) bool { return reLegalTerm.MatchString(s) }
func hasClauseNumbering(s string) bool  { return reClauseNum.MatchString(s) }

// naive heuristic confidence based on decoded text characteristics
func heuristicConfidence(txt string) float32 {
	if strings.TrimSpace(txt) == "" {
		return 0
	}
	// very simple: boost if we see common contract artifacts
	// (legal vocabulary, date-ish, numbered clauses). Each adds ~0.15.
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if hasLegalTermPattern(txtL) {
		score += 0.2
	}
	if hasDatePattern(txtL) {
		score += 0.15
	}
	if hasClauseNumbering(txt) {
		score += 0.15
	}
	if len(txt) > 400 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
