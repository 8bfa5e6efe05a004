// Package risk scans contract text for risky clauses. A pattern rule table runs
// over segmented clauses; model review findings can be merged in afterwards.
package risk

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/clauselens/clauselens/constants"
	"github.com/clauselens/clauselens/internal/entity"
	"github.com/clauselens/clauselens/internal/llm"
)

const excerptMax = 300

// Engine runs the rule table over segmented clauses.
type Engine struct {
	rules []Rule
	log   *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{rules: defaultRules(), log: logger}
}

// Rules exposes the active rule table (for listings and tests).
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Detect segments the text and scans every clause with every rule. A rule fires
// at most once per document; the first matching clause wins. DocumentID is left
// for the caller to set.
func (e *Engine) Detect(text string) []entity.RiskFlag {
	clauses := SegmentClauses(text)

	var flags []entity.RiskFlag
	for _, r := range e.rules {
		for _, cl := range clauses {
			if f, ok := r.apply(cl); ok {
				flags = append(flags, f)
				break
			}
		}
	}

	sortFlags(flags)
	e.log.Info("risk.detect", "clauses", len(clauses), "flags", len(flags))
	return flags
}

// apply checks one rule against one clause: keyword gate, regex, negative suppressor.
func (r Rule) apply(cl Clause) (entity.RiskFlag, bool) {
	if len(r.keywords) > 0 {
		lower := strings.ToLower(cl.Text)
		matched := false
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return entity.RiskFlag{}, false
		}
	}

	loc := r.pattern.FindStringIndex(cl.Text)
	if loc == nil {
		return entity.RiskFlag{}, false
	}
	if r.negative != nil && r.negative.MatchString(cl.Text) {
		return entity.RiskFlag{}, false
	}

	return entity.RiskFlag{
		RuleID:    r.ID,
		Category:  string(r.Category),
		Severity:  string(r.Severity),
		Score:     r.Score,
		Title:     r.Title,
		Detail:    r.Detail,
		Excerpt:   excerptAround(cl.Text, loc[0], loc[1]),
		ClauseSeq: cl.Seq,
		Source:    "pattern",
	}, true
}

// excerptAround returns a window of clause text centered on the match, expanded
// to whitespace boundaries and capped at excerptMax.
func excerptAround(text string, start, end int) string {
	lead := (excerptMax - (end - start)) / 2
	if lead < 0 {
		lead = 0
	}
	from := start - lead
	if from < 0 {
		from = 0
	}
	to := from + excerptMax
	if to > len(text) {
		to = len(text)
	}
	// snap to whitespace so the quote does not start or end mid-word
	if from > 0 {
		if i := strings.IndexAny(text[from:to], " \n\t"); i >= 0 && from+i < start {
			from += i + 1
		}
	}
	if to < len(text) {
		if i := strings.LastIndexAny(text[from:to], " \n\t"); i > end-from {
			to = from + i
		}
	}
	return strings.TrimSpace(text[from:to])
}

// Merge combines pattern and model findings, deduplicating on category plus the
// head of the normalized excerpt. On a collision the higher score wins; pattern
// flags win ties because they come first.
func Merge(pattern, model []entity.RiskFlag) []entity.RiskFlag {
	out := make([]entity.RiskFlag, 0, len(pattern)+len(model))
	seen := make(map[string]int, len(pattern)+len(model))

	for _, f := range append(append([]entity.RiskFlag{}, pattern...), model...) {
		k := dedupKey(f)
		if i, ok := seen[k]; ok {
			if f.Score > out[i].Score {
				out[i] = f
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, f)
	}

	sortFlags(out)
	return out
}

func dedupKey(f entity.RiskFlag) string {
	norm := strings.Join(strings.Fields(strings.ToLower(f.Excerpt)), " ")
	if norm == "" {
		norm = strings.Join(strings.Fields(strings.ToLower(f.Title)), " ")
	}
	if len(norm) > 64 {
		norm = norm[:64]
	}
	return f.Category + "|" + norm
}

func sortFlags(flags []entity.RiskFlag) {
	sort.SliceStable(flags, func(i, j int) bool {
		if flags[i].Score != flags[j].Score {
			return flags[i].Score > flags[j].Score
		}
		if flags[i].ClauseSeq != flags[j].ClauseSeq {
			return flags[i].ClauseSeq < flags[j].ClauseSeq
		}
		return flags[i].RuleID < flags[j].RuleID
	})
}

// Aggregate folds per-flag scores into one document score on 0-100. Soft-OR:
// independent findings saturate toward 100 instead of summing past it.
func Aggregate(flags []entity.RiskFlag) float32 {
	remain := 1.0
	for _, f := range flags {
		s := float64(f.Score) / 100
		if s < 0 {
			s = 0
		} else if s > 1 {
			s = 1
		}
		remain *= 1 - s
	}
	return float32(math.Round((1-remain)*1000) / 10)
}

// Assessment is the document-level risk summary derived from its flags.
type Assessment struct {
	Score            float32        `json:"score"`
	Level            string         `json:"level"`
	CountsBySeverity map[string]int `json:"counts_by_severity"`
}

// Assess rolls the flags up into a score, a level band, and per-severity counts.
func Assess(flags []entity.RiskFlag) Assessment {
	score := Aggregate(flags)
	counts := make(map[string]int, 4)
	for _, f := range flags {
		counts[f.Severity]++
	}
	return Assessment{
		Score:            score,
		Level:            string(constants.RiskLevel(score)),
		CountsBySeverity: counts,
	}
}

// FromModelFlags converts model review findings into risk flags. Unknown
// severities become medium; a missing score takes the severity default.
func FromModelFlags(in []llm.ModelFlag) []entity.RiskFlag {
	out := make([]entity.RiskFlag, 0, len(in))
	for _, f := range in {
		sev := f.Severity
		if constants.Severity(sev).Rank() == 0 {
			sev = string(constants.SeverityMedium)
		}
		score := f.Score
		if score <= 0 {
			score = defaultScore(constants.Severity(sev))
		}
		excerpt := f.Excerpt
		if len(excerpt) > excerptMax {
			excerpt = excerpt[:excerptMax]
		}
		out = append(out, entity.RiskFlag{
			RuleID:   "model-review",
			Category: f.Category,
			Severity: sev,
			Score:    score,
			Title:    f.Title,
			Detail:   f.Detail,
			Excerpt:  excerpt,
			Source:   "model",
		})
	}
	return out
}

func defaultScore(sev constants.Severity) float32 {
	switch sev {
	case constants.SeverityLow:
		return 25
	case constants.SeverityMedium:
		return 45
	case constants.SeverityHigh:
		return 70
	case constants.SeverityCritical:
		return 90
	default:
		return 45
	}
}
