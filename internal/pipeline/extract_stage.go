package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens/constants"
	"github.com/clauselens/clauselens/internal/entity"
	"github.com/clauselens/clauselens/internal/extract"
	"github.com/clauselens/clauselens/internal/repository"
)

// ExtractStage turns an uploaded file into document text.
type ExtractStage struct {
	Docs      repository.DocumentRepository
	Jobs      repository.AnalysisJobRepository
	Extractor extract.TextExtractor
	Logger    *slog.Logger
}

func NewExtractStage(docs repository.DocumentRepository, jobs repository.AnalysisJobRepository, tx extract.TextExtractor, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStage{Docs: docs, Jobs: jobs, Extractor: tx, Logger: logger}
}

// Run starts an analysis job, extracts text, and persists it on the job.
// The analyze stage is NOT called here.
func (s *ExtractStage) Run(ctx context.Context, documentID uuid.UUID) (*entity.AnalysisJob, extract.TextExtractionResult, error) {
	doc, err := s.Docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, extract.TextExtractionResult{}, fmt.Errorf("get document: %w", err)
	}

	format := constants.MapExtToFormat(doc.FileExt)
	if format == "" {
		return nil, extract.TextExtractionResult{}, fmt.Errorf("unsupported format: %s", doc.FileExt)
	}

	job, err := s.Jobs.Start(ctx, doc.ID, string(format), string(constants.JobStatusRunning))
	if err != nil {
		return nil, extract.TextExtractionResult{}, err
	}

	res, err := s.Extractor.Extract(ctx, doc.SourcePath)
	if err != nil {
		_ = s.Jobs.FinishExtract(ctx, job.ID, repository.ExtractOutcome{ErrorMessage: err.Error()})
		return job, res, err
	}

	// low-confidence image OCR gets flagged for review
	needsReview := false
	if format == constants.IMAGE && res.Confidence > 0 && res.Confidence < constants.ImageConfidenceThreshold {
		s.Logger.Warn("image OCR confidence low, flagging for review",
			"document_id", documentID, "job_id", job.ID, "confidence", res.Confidence)
		needsReview = true
	}

	out := repository.ExtractOutcome{
		DocText:     res.Text,
		Method:      res.Method,
		Confidence:  res.Confidence,
		NeedsReview: needsReview,
		ModelParams: map[string]any{"lang": res.Language, "pages": res.Pages},
	}
	if err := s.Jobs.FinishExtract(ctx, job.ID, out); err != nil {
		return job, res, err
	}

	pages := int32(res.Pages)
	var lang *string
	if res.Language != "" {
		lang = &res.Language
	}
	if err := s.Docs.SetExtractMeta(ctx, doc.ID, &pages, lang); err != nil {
		s.Logger.Warn("failed to record extract metadata", "document_id", doc.ID, "err", err)
	}

	return job, res, nil
}
