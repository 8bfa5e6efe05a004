package entity

import (
	"time"

	"github.com/google/uuid"
)

// Citation points an answer back at a chunk it was grounded on.
type Citation struct {
	ChunkID uuid.UUID `json:"chunk_id"`
	Seq     int       `json:"seq"`
	Score   float32   `json:"score"`
}

// ChatMessage is one turn of a document-scoped conversation.
type ChatMessage struct {
	ID         uuid.UUID  `json:"id"`
	DocumentID uuid.UUID  `json:"document_id"`
	Role       string     `json:"role"` // "user" | "assistant"
	Content    string     `json:"content"`
	Citations  []Citation `json:"citations,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
