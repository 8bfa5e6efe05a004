package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document represents an uploaded document for data transfer between layers.
type Document struct {
	ID          uuid.UUID  `json:"id"`
	SourcePath  string     `json:"source_path"`
	ContentHash []byte     `json:"content_hash"`
	Filename    string     `json:"filename"`
	FileExt     string     `json:"file_ext"`
	FileSize    int        `json:"file_size"`
	DocType     *string    `json:"doc_type,omitempty"`
	Status      string     `json:"status"`
	PageCount   *int32     `json:"page_count,omitempty"`
	Language    *string    `json:"language,omitempty"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
