package risk

import (
	"regexp"

	"github.com/clauselens/clauselens/constants"
)

// Rule is one pattern-based risk check. Keywords gate cheaply, the regex decides,
// and an optional negative pattern suppresses the finding (e.g. a liability cap
// right next to broad liability language).
type Rule struct {
	ID       string
	Category constants.RiskCategory
	Severity constants.Severity
	Score    float32
	Title    string
	Detail   string

	pattern  *regexp.Regexp
	keywords []string
	negative *regexp.Regexp
}

// defaultRules is the built-in rule table. Scores are 0-100 and feed the
// document-level aggregate.
func defaultRules() []Rule {
	return []Rule{
		{
			ID:       "liability-uncapped",
			Category: constants.RiskLiability,
			Severity: constants.SeverityCritical,
			Score:    85,
			Title:    "Uncapped liability",
			Detail:   "Liability language with no monetary cap in the same clause.",
			keywords: []string{"liab"},
			pattern:  regexp.MustCompile(`(?is)(unlimited\s+liability|liability.{0,80}without\s+(?:any\s+)?limit|no\s+limit(?:ation)?\s+(?:of|on)\s+liability)`),
		},
		{
			ID:       "liability-no-cap-clause",
			Category: constants.RiskLiability,
			Severity: constants.SeverityHigh,
			Score:    70,
			Title:    "Broad liability for all damages",
			Detail:   "Responsibility for any and all damages or losses, with no cap language nearby.",
			keywords: []string{"damages", "losses"},
			pattern:  regexp.MustCompile(`(?is)(?:liable|responsible)\s+for\s+(?:any\s+and\s+all|all)\s+(?:damages|losses|claims)`),
			negative: regexp.MustCompile(`(?is)(shall\s+not\s+exceed|capped\s+at|up\s+to\s+the\s+amount|aggregate\s+liability)`),
		},
		{
			ID:       "liability-liquidated-damages",
			Category: constants.RiskLiability,
			Severity: constants.SeverityHigh,
			Score:    65,
			Title:    "Liquidated damages",
			Detail:   "Fixed damages owed on breach regardless of actual loss.",
			keywords: []string{"liquidated"},
			pattern:  regexp.MustCompile(`(?i)liquidated\s+damages`),
		},
		{
			ID:       "indemnification-one-sided",
			Category: constants.RiskIndemnification,
			Severity: constants.SeverityHigh,
			Score:    70,
			Title:    "One-sided indemnification",
			Detail:   "One party indemnifies, defends, and holds the other harmless without a mutual clause.",
			keywords: []string{"indemnif"},
			pattern:  regexp.MustCompile(`(?is)shall\s+indemnify(?:,?\s+defend)?,?\s+and\s+hold\s+(?:\w+\s+){0,4}harmless`),
			negative: regexp.MustCompile(`(?i)(each\s+party\s+shall\s+indemnify|mutual(?:ly)?\s+indemnif)`),
		},
		{
			ID:       "indemnification-broad",
			Category: constants.RiskIndemnification,
			Severity: constants.SeverityMedium,
			Score:    55,
			Title:    "Broad indemnity scope",
			Detail:   "Indemnity reaches any and all claims, including third-party and attorney fees.",
			keywords: []string{"indemnif"},
			pattern:  regexp.MustCompile(`(?is)(?:from\s+and\s+)?against\s+any\s+and\s+all\s+(?:claims|losses|liabilities|damages)`),
		},
		{
			ID:       "auto-renewal-silent",
			Category: constants.RiskAutoRenewal,
			Severity: constants.SeverityMedium,
			Score:    50,
			Title:    "Automatic renewal",
			Detail:   "The term renews automatically unless notice is given in a window that is easy to miss.",
			keywords: []string{"renew", "extend"},
			pattern:  regexp.MustCompile(`(?is)(?:automatically|shall)\s+(?:be\s+)?renew(?:s|ed)?\s+for\s+(?:successive|additional|further)`),
		},
		{
			ID:       "termination-for-convenience",
			Category: constants.RiskTermination,
			Severity: constants.SeverityMedium,
			Score:    55,
			Title:    "Termination for convenience",
			Detail:   "A party may terminate at any time without cause.",
			keywords: []string{"terminat"},
			pattern:  regexp.MustCompile(`(?is)terminate\s+(?:this\s+)?(?:\w+\s+){0,3}(?:at\s+any\s+time|for\s+any\s+reason|without\s+cause|for\s+convenience)`),
		},
		{
			ID:       "termination-immediate",
			Category: constants.RiskTermination,
			Severity: constants.SeverityMedium,
			Score:    45,
			Title:    "Immediate termination without cure",
			Detail:   "Termination effective immediately, with no cure period for breach.",
			keywords: []string{"terminat"},
			pattern:  regexp.MustCompile(`(?is)terminat\w+\s+(?:\w+\s+){0,6}(?:immediately|effective\s+immediately)`),
			negative: regexp.MustCompile(`(?i)(cure\s+period|opportunity\s+to\s+cure|fails?\s+to\s+cure)`),
		},
		{
			ID:       "confidentiality-perpetual",
			Category: constants.RiskConfidentiality,
			Severity: constants.SeverityMedium,
			Score:    45,
			Title:    "Perpetual confidentiality",
			Detail:   "Confidentiality obligations survive indefinitely.",
			keywords: []string{"confidential"},
			pattern:  regexp.MustCompile(`(?is)confidential\w*.{0,120}(?:in\s+perpetuity|perpetual|indefinitely|survive\s+(?:the\s+)?(?:termination|expiration)\s+(?:\w+\s+){0,4}indefinitely)`),
		},
		{
			ID:       "payment-immediate",
			Category: constants.RiskPayment,
			Severity: constants.SeverityLow,
			Score:    30,
			Title:    "Short payment window",
			Detail:   "Payment due immediately or within 15 days.",
			keywords: []string{"due", "payab"},
			pattern:  regexp.MustCompile(`(?i)(due\s+(?:upon|on)\s+receipt|net\s+(?:7|10|15)\b|payable\s+immediately)`),
		},
		{
			ID:       "payment-late-interest",
			Category: constants.RiskPayment,
			Severity: constants.SeverityLow,
			Score:    35,
			Title:    "Late payment interest",
			Detail:   "Interest or late fees accrue on overdue amounts.",
			keywords: []string{"late", "interest", "overdue"},
			pattern:  regexp.MustCompile(`(?is)(late\s+(?:fee|charge)|interest\s+(?:\w+\s+){0,8}(?:per\s+month|per\s+annum|%)|1\.5%\s+per\s+month)`),
		},
		{
			ID:       "ip-assignment",
			Category: constants.RiskIP,
			Severity: constants.SeverityHigh,
			Score:    70,
			Title:    "IP assignment",
			Detail:   "All right, title, and interest in work product is assigned, or work is made for hire.",
			keywords: []string{"right, title", "work made for hire", "work for hire", "assigns"},
			pattern:  regexp.MustCompile(`(?is)(assigns?\s+(?:\w+\s+){0,4}all\s+right,?\s+title,?\s+and\s+interest|work\s+(?:made\s+)?for\s+hire)`),
		},
		{
			ID:       "ip-perpetual-license",
			Category: constants.RiskIP,
			Severity: constants.SeverityMedium,
			Score:    50,
			Title:    "Perpetual irrevocable license",
			Detail:   "A perpetual, irrevocable, royalty-free license over deliverables or content.",
			keywords: []string{"license", "licence"},
			pattern:  regexp.MustCompile(`(?is)(?:perpetual|irrevocable),?\s+(?:\w+,?\s+){0,3}(?:royalty-free|irrevocable|perpetual)\s+licen[sc]e`),
		},
		{
			ID:       "dispute-arbitration",
			Category: constants.RiskDispute,
			Severity: constants.SeverityMedium,
			Score:    40,
			Title:    "Binding arbitration",
			Detail:   "Disputes go to binding arbitration instead of court.",
			keywords: []string{"arbitrat"},
			pattern:  regexp.MustCompile(`(?i)(binding\s+arbitration|settled\s+by\s+arbitration|resolved\s+(?:\w+\s+){0,3}arbitration)`),
		},
		{
			ID:       "dispute-jury-waiver",
			Category: constants.RiskDispute,
			Severity: constants.SeverityMedium,
			Score:    45,
			Title:    "Jury trial waiver",
			Detail:   "The parties waive the right to a jury trial or to class actions.",
			keywords: []string{"waive"},
			pattern:  regexp.MustCompile(`(?is)waives?\s+(?:\w+\s+){0,6}(?:jury\s+trial|trial\s+by\s+jury|class\s+action)`),
		},
		{
			ID:       "assignment-without-consent",
			Category: constants.RiskAssignment,
			Severity: constants.SeverityLow,
			Score:    35,
			Title:    "Assignment without consent",
			Detail:   "The counterparty may assign the agreement without approval.",
			keywords: []string{"assign"},
			pattern:  regexp.MustCompile(`(?is)may\s+assign\s+(?:\w+\s+){0,6}without\s+(?:\w+\s+){0,3}consent`),
		},
		{
			ID:       "compliance-audit-rights",
			Category: constants.RiskCompliance,
			Severity: constants.SeverityLow,
			Score:    30,
			Title:    "Audit rights",
			Detail:   "The counterparty may audit books, records, or systems.",
			keywords: []string{"audit"},
			pattern:  regexp.MustCompile(`(?is)right\s+to\s+(?:\w+\s+){0,3}audit|audit\s+(?:\w+\s+){0,3}(?:books|records|systems)`),
		},
		{
			ID:       "compliance-non-compete",
			Category: constants.RiskCompliance,
			Severity: constants.SeverityHigh,
			Score:    60,
			Title:    "Non-compete restriction",
			Detail:   "Competition or solicitation is restricted beyond the term of the agreement.",
			keywords: []string{"compete", "solicit"},
			pattern:  regexp.MustCompile(`(?is)(shall\s+not\s+(?:\w+\s+){0,4}compete|non-compet\w+|shall\s+not\s+(?:\w+\s+){0,3}solicit)`),
		},
		{
			ID:       "dispute-unilateral-amendment",
			Category: constants.RiskDispute,
			Severity: constants.SeverityHigh,
			Score:    60,
			Title:    "Unilateral changes",
			Detail:   "One party may modify terms at its sole discretion, without consent.",
			keywords: []string{"sole discretion", "modify", "amend"},
			pattern:  regexp.MustCompile(`(?is)(?:modify|amend|change)\s+(?:\w+\s+){0,6}(?:at\s+(?:its|their)\s+sole\s+discretion|without\s+(?:\w+\s+){0,2}consent)`),
		},
	}
}
