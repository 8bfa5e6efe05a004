package entity

import (
	"time"

	"github.com/google/uuid"
)

// RiskFlag is one detected issue in a document, from the pattern rules or
// from the model review.
type RiskFlag struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	RuleID     string    `json:"rule_id"`
	Category   string    `json:"category"`
	Severity   string    `json:"severity"`
	Score      float32   `json:"score"`
	Title      string    `json:"title"`
	Detail     string    `json:"detail"`
	Excerpt    string    `json:"excerpt"`
	ClauseSeq  int       `json:"clause_seq"`
	Source     string    `json:"source"` // "pattern" | "model"
	CreatedAt  time.Time `json:"created_at"`
}
