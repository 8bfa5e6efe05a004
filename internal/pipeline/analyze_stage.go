package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens/constants"
	"github.com/clauselens/clauselens/internal/classify"
	"github.com/clauselens/clauselens/internal/common"
	"github.com/clauselens/clauselens/internal/entity"
	"github.com/clauselens/clauselens/internal/llm"
	"github.com/clauselens/clauselens/internal/repository"
	"github.com/clauselens/clauselens/internal/risk"
)

// patternTypeThreshold is the classifier score above which we trust the
// pattern result without asking the model. Weaker matches (body patterns,
// generic boilerplate) get a model confirmation when one is wired.
const patternTypeThreshold = 0.75

// AnalyzeConfig holds thresholds and behavior flags for the analyze stage.
type AnalyzeConfig struct {
	MinConfidence float32 // below this, model output is flagged for review
	MaxTextChars  int     // prompt budget handed to the model
	RiskReview    bool    // ask the model for findings beyond the pattern rules
	ModelName     string  // recorded on the job for provenance
}

// AnalyzeStage turns document text into structured fields and risk flags.
type AnalyzeStage struct {
	Logger     *slog.Logger
	Cfg        AnalyzeConfig
	Jobs       repository.AnalysisJobRepository
	Docs       repository.DocumentRepository
	Contracts  repository.ContractRepository
	Risks      repository.RiskFlagRepository
	Classifier *classify.Classifier
	Fields     llm.FieldExtractor    // primary, normally the Gemini client
	Fallback   llm.FieldExtractor    // regex heuristics, used when the model fails
	TypeModel  llm.DocTypeClassifier // optional model doc-type fallback
	Reviewer   llm.RiskReviewer      // optional model risk review
	Engine     *risk.Engine
}

func NewAnalyzeStage(
	logger *slog.Logger,
	cfg AnalyzeConfig,
	jobs repository.AnalysisJobRepository,
	docs repository.DocumentRepository,
	contracts repository.ContractRepository,
	risks repository.RiskFlagRepository,
	fields, fallback llm.FieldExtractor,
	engine *risk.Engine,
) *AnalyzeStage {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.60
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = 12000
	}
	return &AnalyzeStage{
		Logger:     logger,
		Cfg:        cfg,
		Jobs:       jobs,
		Docs:       docs,
		Contracts:  contracts,
		Risks:      risks,
		Classifier: classify.NewClassifier(),
		Fields:     fields,
		Fallback:   fallback,
		Engine:     engine,
	}
}

// Run executes the analyze stage for an existing job.
// Preconditions: the job carries non-empty document text.
// Effects: writes extracted_json and flag_count on the job, upserts the
// contract row, and replaces the document's risk flags.
func (s *AnalyzeStage) Run(ctx context.Context, jobID uuid.UUID) (*entity.Contract, error) {
	job, doc, err := s.Jobs.GetWithDocument(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job.DocText == nil || strings.TrimSpace(*job.DocText) == "" {
		return nil, s.fail(ctx, jobID, fmt.Errorf("job has no document text"))
	}
	text := *job.DocText

	docType, typeSource, typeKnown := s.classifyDocType(ctx, text, doc.Filename)
	if err := s.Docs.SetDocType(ctx, doc.ID, string(docType)); err != nil {
		s.Logger.Warn("failed to record doc type", "document_id", doc.ID, "err", err)
	}

	var prepConfidence float32
	if job.ExtractConfidence != nil {
		prepConfidence = *job.ExtractConfidence
	}
	req := llm.ExtractRequest{
		DocText:         text,
		FilenameHint:    doc.Filename,
		DocTypeHint:     string(docType),
		AllowedDocTypes: constants.AsStringSlice(),
		MaxTextChars:    s.Cfg.MaxTextChars,
		PrepConfidence:  prepConfidence,
		FilePath:        doc.SourcePath,
		ContentHashHex:  hex.EncodeToString(doc.ContentHash),
	}

	s.Logger.Info("analyze.fields.start",
		"trace_id", common.TraceIDFromContext(ctx),
		"job_id", job.ID, "document_id", doc.ID,
		"doc_type", docType, "text_bytes", len(text),
	)

	fields, raw, err := s.Fields.ExtractFields(ctx, req)
	source := "model"
	if err != nil {
		s.Logger.Warn("analyze.fields.model_failed, using heuristics", "job_id", job.ID, "err", err)
		fields, raw, err = s.Fallback.ExtractFields(ctx, req)
		if err != nil {
			return nil, s.fail(ctx, jobID, fmt.Errorf("extract fields: %w", err))
		}
		source = "heuristic"
	}

	needsReview := !typeKnown
	if fields.Title == "" || len(fields.Parties) == 0 || fields.EffectiveDate == "" {
		needsReview = true
	}
	if fields.ModelConfidence > 0 && fields.ModelConfidence < s.Cfg.MinConfidence {
		needsReview = true
	}

	patternFlags := s.Engine.Detect(text)
	var modelFlags []entity.RiskFlag
	if s.Cfg.RiskReview && s.Reviewer != nil {
		found, err := s.Reviewer.ReviewRisks(ctx, llm.RiskReviewRequest{
			DocText:      text,
			DocType:      string(docType),
			MaxTextChars: s.Cfg.MaxTextChars,
		})
		if err != nil {
			s.Logger.Warn("analyze.risk.review_failed, keeping pattern flags", "job_id", job.ID, "err", err)
		} else {
			modelFlags = risk.FromModelFlags(found)
		}
	}
	merged := risk.Merge(patternFlags, modelFlags)

	rows := make([]*entity.RiskFlag, len(merged))
	for i := range merged {
		merged[i].DocumentID = doc.ID
		rows[i] = &merged[i]
	}
	if err := s.Risks.ReplaceForDocument(ctx, doc.ID, rows); err != nil {
		return nil, s.fail(ctx, jobID, fmt.Errorf("store risk flags: %w", err))
	}

	contract, err := s.Contracts.UpsertFromFields(ctx, &repository.CreateContractRequest{
		DocumentID: doc.ID,
		Fields:     fields,
		DocType:    string(docType),
		Source:     source,
	})
	if err != nil {
		return nil, s.fail(ctx, jobID, fmt.Errorf("upsert contract: %w", err))
	}

	modelName := s.Cfg.ModelName
	if source == "heuristic" {
		modelName = "heuristic"
	}
	out := repository.AnalyzeOutcome{
		ExtractedJSON: raw,
		FlagCount:     len(merged),
		NeedsReview:   needsReview,
		ModelName:     modelName,
		ModelParams: map[string]any{
			"doc_type":        string(docType),
			"doc_type_source": typeSource,
			"field_source":    source,
			"model_flags":     len(modelFlags),
		},
	}
	if err := s.Jobs.FinishAnalyze(ctx, job.ID, out); err != nil {
		return nil, err
	}

	s.Logger.Info("analyze.done",
		"job_id", job.ID, "doc_type", docType, "field_source", source,
		"flags", len(merged), "needs_review", needsReview,
	)
	return contract, nil
}

// classifyDocType tries the pattern classifier first and falls back to the
// model when the pattern match is weak or absent.
func (s *AnalyzeStage) classifyDocType(ctx context.Context, text, filename string) (constants.DocType, string, bool) {
	res := s.Classifier.Classify(text, filename)
	if res != nil && res.Score >= patternTypeThreshold {
		return res.DocType, res.Source, true
	}

	if s.TypeModel != nil {
		label, conf, err := s.TypeModel.ClassifyDocType(ctx, text, filename, constants.AsStringSlice())
		if err != nil {
			s.Logger.Warn("analyze.classify.model_failed", "err", err)
		} else if canon, ok := constants.Canonicalize(label); ok && conf >= s.Cfg.MinConfidence {
			return canon, "model", true
		}
	}

	// a weak pattern match still beats nothing
	if res != nil {
		return res.DocType, res.Source, true
	}
	return constants.Other, "default", false
}

func (s *AnalyzeStage) fail(ctx context.Context, jobID uuid.UUID, err error) error {
	_ = s.Jobs.Fail(ctx, jobID, err.Error())
	return err
}
