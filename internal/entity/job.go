package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AnalysisJob represents one processing run over a document.
type AnalysisJob struct {
	ID                uuid.UUID       `json:"id"`
	DocumentID        uuid.UUID       `json:"document_id"`
	Format            string          `json:"format"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        *time.Time      `json:"finished_at,omitempty"`
	Status            *string         `json:"status,omitempty"`
	ErrorMessage      *string         `json:"error_message,omitempty"`
	ExtractMethod     *string         `json:"extract_method,omitempty"`
	ExtractConfidence *float32        `json:"extract_confidence,omitempty"`
	NeedsReview       bool            `json:"needs_review"`
	DocText           *string         `json:"doc_text,omitempty"`
	ExtractedJSON     json.RawMessage `json:"extracted_json,omitempty"`
	FlagCount         int             `json:"flag_count"`
	ChunkCount        int             `json:"chunk_count"`
	ModelName         *string         `json:"model_name,omitempty"`
	ModelParams       json.RawMessage `json:"model_params,omitempty"`
}
