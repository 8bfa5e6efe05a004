package llm

import "context"

// ContractFields is the normalized shape we want from the LLM.
type ContractFields struct {
	DocType          string   `json:"doc_type,omitempty"`        // must match AllowedDocTypes if provided
	Title            string   `json:"title"`                     // short document title
	Parties          []string `json:"parties"`                   // legal names, one per party
	EffectiveDate    string   `json:"effective_date,omitempty"`  // YYYY-MM-DD
	ExpirationDate   string   `json:"expiration_date,omitempty"` // YYYY-MM-DD
	GoverningLaw     string   `json:"governing_law,omitempty"`   // jurisdiction, e.g. "Delaware"
	ContractValue    string   `json:"contract_value,omitempty"`  // decimal
	Currency         string   `json:"currency_code,omitempty"`   // ISO 4217
	PaymentTerms     string   `json:"payment_terms,omitempty"`   // e.g. "Net 30"
	NoticePeriodDays int32    `json:"notice_period_days,omitempty"`
	AutoRenews       *bool    `json:"auto_renews,omitempty"`
	Summary          string   `json:"summary"`              // 2-4 sentence plain-language summary
	ModelConfidence  float32  `json:"confidence,omitempty"` // optional (0..1)
}

type ExtractRequest struct {
	DocText         string
	FilenameHint    string
	DocTypeHint     string
	AllowedDocTypes []string
	MaxTextChars    int

	PrepConfidence float32
	FilePath       string
	ContentHashHex string
}

// FieldExtractor is the interface our pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (ContractFields, []byte /*rawJSON*/, error)
}

// DocTypeClassifier labels a document with one of the allowed types.
// Returns the chosen type and a confidence in 0..1.
type DocTypeClassifier interface {
	ClassifyDocType(ctx context.Context, text, filename string, allowed []string) (string, float32, error)
}

// ModelFlag is a risk finding produced by the model review pass.
type ModelFlag struct {
	Category string  `json:"category"`
	Severity string  `json:"severity"` // low | medium | high | critical
	Score    float32 `json:"score"`    // 0..100
	Title    string  `json:"title"`
	Detail   string  `json:"detail"`
	Excerpt  string  `json:"excerpt,omitempty"`
}

type RiskReviewRequest struct {
	DocText      string
	DocType      string
	MaxTextChars int
}

// RiskReviewer asks the model for risk findings beyond the pattern rules.
type RiskReviewer interface {
	ReviewRisks(ctx context.Context, req RiskReviewRequest) ([]ModelFlag, error)
}

// Passage is a retrieved chunk handed to the model as grounding context.
type Passage struct {
	Seq     int
	Heading string
	Text    string
}

type ChatTurn struct {
	Role    string // "user" | "assistant"
	Content string
}

type AnswerRequest struct {
	Question string
	DocTitle string
	DocType  string
	Passages []Passage
	History  []ChatTurn
}

// Answerer produces a grounded answer for a question about one document.
type Answerer interface {
	AnswerQuestion(ctx context.Context, req AnswerRequest) (string, error)
}
