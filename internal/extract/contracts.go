package extract

import (
	"context"
	"time"

	"github.com/clauselens/clauselens/constants"
)

// TextExtractor is Stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType constants.FileFormat
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr" | "text-file"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}
