// Package pipeline runs uploaded documents through extract, analyze, and
// index stages. Each stage persists its outcome on the analysis job; the
// document row mirrors the final status.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens/constants"
	"github.com/clauselens/clauselens/internal/common"
	"github.com/clauselens/clauselens/internal/repository"
)

// Processor coordinates the three stages for one document.
type Processor struct {
	logger  *slog.Logger
	docs    repository.DocumentRepository
	extract *ExtractStage
	analyze *AnalyzeStage
	index   *IndexStage // nil when no embedding engine is configured
}

func NewProcessor(logger *slog.Logger, docs repository.DocumentRepository, extract *ExtractStage, analyze *AnalyzeStage, index *IndexStage) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger, docs: docs, extract: extract, analyze: analyze, index: index}
}

// ProcessDocument runs extract, analyze, and index for a document and keeps
// the document status in step. Returns the job ID started by the extract
// stage. A document that already finished a run is skipped unless force is
// set (the reprocess endpoint); this keeps racing enqueues of the same
// document from re-running the whole pipeline.
//
// An indexing failure is not terminal: the job and document stay ANALYZED
// and chat falls back to text-head grounding.
func (p *Processor) ProcessDocument(ctx context.Context, documentID uuid.UUID, force bool) (uuid.UUID, error) {
	// queue jobs arrive with a trace already on the context; direct calls
	// (batch CLI, tests) get a fresh one
	traceID := common.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
		ctx = common.WithTraceID(ctx, traceID)
	}

	if !force {
		if doc, err := p.docs.GetByID(ctx, documentID); err == nil {
			switch doc.Status {
			case string(constants.JobStatusAnalyzed), string(constants.JobStatusIndexed):
				p.logger.Info("pipeline.skipped", "trace_id", traceID, "document_id", documentID, "status", doc.Status)
				return uuid.Nil, nil
			}
		}
	}

	if err := p.docs.UpdateStatus(ctx, documentID, string(constants.JobStatusRunning)); err != nil {
		p.logger.Warn("failed to mark document running", "document_id", documentID, "err", err)
	}

	job, res, err := p.extract.Run(ctx, documentID)
	if err != nil {
		p.logger.Error("pipeline.extract.failed", "trace_id", traceID, "document_id", documentID, "err", err)
		p.finish(ctx, documentID, constants.JobStatusFailed)
		if job == nil {
			return uuid.Nil, err
		}
		return job.ID, err
	}
	p.logger.Debug("pipeline.extract.ok",
		"document_id", documentID, "job_id", job.ID,
		"method", res.Method, "pages", res.Pages, "confidence", res.Confidence,
	)

	if _, err := p.analyze.Run(ctx, job.ID); err != nil {
		p.logger.Error("pipeline.analyze.failed", "trace_id", traceID, "job_id", job.ID, "err", err)
		p.finish(ctx, documentID, constants.JobStatusFailed)
		return job.ID, err
	}

	if p.index == nil {
		p.logger.Info("pipeline.index.skipped", "job_id", job.ID, "reason", "no embedding engine")
		p.finish(ctx, documentID, constants.JobStatusAnalyzed)
		return job.ID, nil
	}

	n, err := p.index.Run(ctx, job.ID)
	if err != nil {
		p.logger.Warn("pipeline.index.failed, document stays ANALYZED", "job_id", job.ID, "err", err)
		p.finish(ctx, documentID, constants.JobStatusAnalyzed)
		return job.ID, nil
	}
	p.logger.Debug("pipeline.index.ok", "job_id", job.ID, "chunks", n)

	p.finish(ctx, documentID, constants.JobStatusIndexed)
	return job.ID, nil
}

func (p *Processor) finish(ctx context.Context, documentID uuid.UUID, status constants.JobStatus) {
	if err := p.docs.MarkProcessed(ctx, documentID, string(status), time.Now().UTC()); err != nil {
		p.logger.Warn("failed to mark document processed", "document_id", documentID, "status", status, "err", err)
	}
}
