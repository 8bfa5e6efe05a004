package entity

import (
	"time"

	"github.com/google/uuid"
)

// Contract holds the normalized fields extracted from a document.
// One row per document; reprocessing upserts in place.
type Contract struct {
	ID               uuid.UUID `json:"id"`
	DocumentID       uuid.UUID `json:"document_id"`
	DocType          string    `json:"doc_type"`
	Title            string    `json:"title"`
	Parties          []string  `json:"parties"`
	EffectiveDate    *string   `json:"effective_date,omitempty"`
	ExpirationDate   *string   `json:"expiration_date,omitempty"`
	GoverningLaw     *string   `json:"governing_law,omitempty"`
	ContractValue    *string   `json:"contract_value,omitempty"`
	Currency         *string   `json:"currency,omitempty"`
	PaymentTerms     *string   `json:"payment_terms,omitempty"`
	NoticePeriodDays *int32    `json:"notice_period_days,omitempty"`
	AutoRenews       *bool     `json:"auto_renews,omitempty"`
	Summary          string    `json:"summary"`
	ExtractionSource string    `json:"extraction_source"`
	ModelConfidence  float32   `json:"model_confidence"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
