// Package classify labels documents with a DocType from keyword and regex patterns.
// It is the cheap first pass; the model classifier only runs when no pattern is
// confident enough.
package classify

import (
	"regexp"
	"strings"

	"github.com/clauselens/clauselens/constants"
)

// Classifier performs classification based on title and boilerplate patterns.
type Classifier struct {
	patterns []docPattern
}

type docPattern struct {
	pattern  *regexp.Regexp
	keywords []string // simple keyword matching (faster than regex)
	docType  constants.DocType
	score    float32
	source   string
}

// Result carries a doc-type guess, its confidence, and the rule that fired.
type Result struct {
	DocType constants.DocType
	Score   float32
	Source  string
}

// NewClassifier creates a pattern classifier with the built-in rule table.
func NewClassifier() *Classifier {
	c := &Classifier{}
	c.initPatterns()
	return c
}

// headChars bounds how much document text the patterns scan. Type signals live
// in the title block and the opening recitals.
const headChars = 4000

// Classify scans the head of the document text plus the filename.
// Returns nil when nothing matched.
func (c *Classifier) Classify(text, filename string) *Result {
	hay := text
	if len(hay) > headChars {
		hay = hay[:headChars]
	}
	hay = strings.ToLower(hay + "\n" + filename)

	for _, p := range c.patterns {
		// Keyword matching (faster)
		if len(p.keywords) > 0 {
			matched := false
			for _, kw := range p.keywords {
				if strings.Contains(hay, kw) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}

		// Regex matching (more precise)
		if p.pattern != nil {
			if !p.pattern.MatchString(hay) {
				continue
			}
		}

		return &Result{DocType: p.docType, Score: p.score, Source: p.source}
	}

	return nil
}

func (c *Classifier) initPatterns() {
	c.patterns = []docPattern{
		// === Title patterns (strongest signal) ===
		{
			keywords: []string{"non-disclosure agreement", "nondisclosure agreement", "confidentiality agreement", "mutual nda"},
			docType:  constants.NDA,
			score:    0.92,
			source:   "nda-title",
		},
		{
			keywords: []string{"lease agreement", "rental agreement", "tenancy agreement", "residential lease", "commercial lease"},
			docType:  constants.Lease,
			score:    0.92,
			source:   "lease-title",
		},
		{
			keywords: []string{"employment agreement", "employment contract", "offer of employment", "offer letter"},
			docType:  constants.Employment,
			score:    0.92,
			source:   "employment-title",
		},
		{
			keywords: []string{"master services agreement", "master service agreement", "services agreement", "statement of work", "consulting agreement", "professional services"},
			docType:  constants.ServiceAgreement,
			score:    0.90,
			source:   "services-title",
		},
		{
			keywords: []string{"invoice number", "invoice #", "invoice no", "amount due", "remit to"},
			docType:  constants.Invoice,
			score:    0.90,
			source:   "invoice-fields",
		},
		{
			pattern: regexp.MustCompile(`\binvoice\b`),
			docType: constants.Invoice,
			score:   0.75,
			source:  "invoice-word",
		},

		// === Body patterns (weaker) ===
		{
			pattern: regexp.MustCompile(`(?s)landlord.*tenant|tenant.*landlord|lessor.*lessee`),
			docType: constants.Lease,
			score:   0.70,
			source:  "lease-parties",
		},
		{
			pattern: regexp.MustCompile(`(?s)(employee|employer).*(base salary|annual salary|at-will|at will employment)`),
			docType: constants.Employment,
			score:   0.70,
			source:  "employment-terms",
		},
		{
			pattern: regexp.MustCompile(`(?s)confidential information.*(disclosing party|receiving party)`),
			docType: constants.NDA,
			score:   0.70,
			source:  "nda-parties",
		},

		// === Generic contract boilerplate (last resort before the model) ===
		{
			keywords: []string{"this agreement", "in witness whereof", "hereinafter", "whereas"},
			docType:  constants.Contract,
			score:    0.60,
			source:   "contract-boilerplate",
		},
	}
}
