package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clauselens/clauselens/constants"
	"github.com/clauselens/clauselens/internal/common"
	"github.com/clauselens/clauselens/internal/entity"
)

// ExtractOutcome carries stage-1 results onto the job row.
type ExtractOutcome struct {
	DocText      string
	Method       string
	Confidence   float32
	NeedsReview  bool
	ErrorMessage string
	ModelParams  map[string]any
}

// AnalyzeOutcome carries stage-2 results onto the job row.
type AnalyzeOutcome struct {
	ExtractedJSON json.RawMessage
	FlagCount     int
	NeedsReview   bool
	ModelName     string
	ModelParams   map[string]any
}

type AnalysisJobRepository interface {
	Start(ctx context.Context, documentID uuid.UUID, format, status string) (*entity.AnalysisJob, error)
	FinishExtract(ctx context.Context, jobID uuid.UUID, out ExtractOutcome) error
	FinishAnalyze(ctx context.Context, jobID uuid.UUID, out AnalyzeOutcome) error
	FinishIndex(ctx context.Context, jobID uuid.UUID, chunkCount int) error
	Fail(ctx context.Context, jobID uuid.UUID, message string) error
	GetByID(ctx context.Context, jobID uuid.UUID) (*entity.AnalysisJob, error)
	GetWithDocument(ctx context.Context, jobID uuid.UUID) (*entity.AnalysisJob, *entity.Document, error)
	LatestForDocument(ctx context.Context, documentID uuid.UUID) (*entity.AnalysisJob, error)
}

type analysisJobRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewAnalysisJobRepository(pool *pgxpool.Pool, log *slog.Logger) AnalysisJobRepository {
	return &analysisJobRepo{pool: pool, log: log}
}

const jobColumns = `id, document_id, format, status, error_message, extract_method,
extract_confidence, needs_review, doc_text, extracted_json, flag_count, chunk_count,
model_name, model_params, started_at, finished_at`

func scanJob(row pgx.Row) (*entity.AnalysisJob, error) {
	var j entity.AnalysisJob
	err := row.Scan(
		&j.ID, &j.DocumentID, &j.Format, &j.Status, &j.ErrorMessage, &j.ExtractMethod,
		&j.ExtractConfidence, &j.NeedsReview, &j.DocText, &j.ExtractedJSON, &j.FlagCount, &j.ChunkCount,
		&j.ModelName, &j.ModelParams, &j.StartedAt, &j.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func marshalParams(params map[string]any) []byte {
	if params == nil {
		return nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	return b
}

func (r *analysisJobRepo) Start(ctx context.Context, documentID uuid.UUID, format, status string) (*entity.AnalysisJob, error) {
	job := &entity.AnalysisJob{
		ID:         uuid.New(),
		DocumentID: documentID,
		Format:     format,
		Status:     &status,
		StartedAt:  time.Now().UTC(),
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO analysis_jobs (id, document_id, format, status, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.DocumentID, job.Format, status, job.StartedAt,
	)
	if err != nil {
		r.log.Error("analysis_job start failed", "document_id", documentID, "err", err)
		return nil, err
	}
	r.log.Info("analysis_job started", "job_id", job.ID, "document_id", documentID, "format", format)
	return job, nil
}

func (r *analysisJobRepo) FinishExtract(ctx context.Context, jobID uuid.UUID, out ExtractOutcome) error {
	if out.ErrorMessage != "" {
		return r.Fail(ctx, jobID, out.ErrorMessage)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE analysis_jobs
		 SET status = $2, doc_text = $3, extract_method = $4, extract_confidence = $5,
		     needs_review = needs_review OR $6, model_params = COALESCE($7, model_params)
		 WHERE id = $1`,
		jobID, string(constants.JobStatusExtractOK), out.DocText, out.Method, out.Confidence,
		out.NeedsReview, marshalParams(out.ModelParams),
	)
	if err != nil {
		r.log.Error("analysis_job finish(EXTRACT_OK) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("analysis_job finished extract", "job_id", jobID, "method", out.Method, "confidence", out.Confidence)
	return nil
}

func (r *analysisJobRepo) FinishAnalyze(ctx context.Context, jobID uuid.UUID, out AnalyzeOutcome) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE analysis_jobs
		 SET status = $2, extracted_json = $3, flag_count = $4,
		     needs_review = needs_review OR $5, model_name = $6, model_params = COALESCE($7, model_params)
		 WHERE id = $1`,
		jobID, string(constants.JobStatusAnalyzed), []byte(out.ExtractedJSON), out.FlagCount,
		out.NeedsReview, out.ModelName, marshalParams(out.ModelParams),
	)
	if err != nil {
		r.log.Error("analysis_job finish(ANALYZED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("analysis_job finished analyze", "job_id", jobID, "flags", out.FlagCount, "needs_review", out.NeedsReview)
	return nil
}

func (r *analysisJobRepo) FinishIndex(ctx context.Context, jobID uuid.UUID, chunkCount int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE analysis_jobs SET status = $2, chunk_count = $3, finished_at = $4 WHERE id = $1`,
		jobID, string(constants.JobStatusIndexed), chunkCount, time.Now().UTC(),
	)
	if err != nil {
		r.log.Error("analysis_job finish(INDEXED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("analysis_job finished index", "job_id", jobID, "chunks", chunkCount)
	return nil
}

func (r *analysisJobRepo) Fail(ctx context.Context, jobID uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE analysis_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`,
		jobID, string(constants.JobStatusFailed), message, time.Now().UTC(),
	)
	if err != nil {
		r.log.Error("analysis_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Warn("analysis_job finished (FAILED)", "job_id", jobID, "error", message)
	return nil
}

func (r *analysisJobRepo) GetByID(ctx context.Context, jobID uuid.UUID) (*entity.AnalysisJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, jobID)
	return scanJob(row)
}

func (r *analysisJobRepo) GetWithDocument(ctx context.Context, jobID uuid.UUID) (*entity.AnalysisJob, *entity.Document, error) {
	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	row := r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, job.DocumentID)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, nil, err
	}
	return job, doc, nil
}

func (r *analysisJobRepo) LatestForDocument(ctx context.Context, documentID uuid.UUID) (*entity.AnalysisJob, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE document_id = $1 ORDER BY started_at DESC LIMIT 1`,
		documentID)
	return scanJob(row)
}
