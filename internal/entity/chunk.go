package entity

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is a slice of document text with its embedding vector.
// Embedding is empty until the index stage has run.
type Chunk struct {
	ID         uuid.UUID  `json:"id"`
	DocumentID uuid.UUID  `json:"document_id"`
	Seq        int        `json:"seq"`
	Heading    string     `json:"heading,omitempty"`
	Text       string     `json:"text"`
	Embedding  []float32  `json:"-"`
	Dims       int        `json:"dims"`
	EmbeddedAt *time.Time `json:"embedded_at,omitempty"`
}
