package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens/internal/chunk"
	"github.com/clauselens/clauselens/internal/embedding"
	"github.com/clauselens/clauselens/internal/entity"
	"github.com/clauselens/clauselens/internal/repository"
	"github.com/clauselens/clauselens/internal/vector"
)

// IndexStage chunks the document text, embeds the chunks, and makes them
// searchable.
type IndexStage struct {
	Logger  *slog.Logger
	Jobs    repository.AnalysisJobRepository
	Chunks  repository.ChunkRepository
	Index   *vector.Index
	Engine  embedding.Engine
	Chunker *chunk.Chunker
}

func NewIndexStage(
	jobs repository.AnalysisJobRepository,
	chunks repository.ChunkRepository,
	index *vector.Index,
	engine embedding.Engine,
	chunker *chunk.Chunker,
	logger *slog.Logger,
) *IndexStage {
	if logger == nil {
		logger = slog.Default()
	}
	if chunker == nil {
		chunker = &chunk.Chunker{}
	}
	return &IndexStage{Logger: logger, Jobs: jobs, Chunks: chunks, Index: index, Engine: engine, Chunker: chunker}
}

// Run embeds the job's document text and stores the chunks. Returns the
// number of chunks indexed.
func (s *IndexStage) Run(ctx context.Context, jobID uuid.UUID) (int, error) {
	job, err := s.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("load job: %w", err)
	}
	if job.DocText == nil || *job.DocText == "" {
		return 0, fmt.Errorf("job has no document text")
	}

	pieces := s.Chunker.Split(*job.DocText)
	if len(pieces) == 0 {
		if err := s.Jobs.FinishIndex(ctx, job.ID, 0); err != nil {
			return 0, err
		}
		return 0, nil
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	vecs, err := s.Engine.EmbedBatch(ctx, texts, embedding.TaskDocument)
	if err != nil {
		return 0, fmt.Errorf("embed %d chunks: %w", len(texts), err)
	}

	rows := make([]*entity.Chunk, len(pieces))
	stored := make([]vector.StoredVector, len(pieces))
	for i, p := range pieces {
		c := &entity.Chunk{
			ID:         uuid.New(),
			DocumentID: job.DocumentID,
			Seq:        p.Seq,
			Heading:    p.Heading,
			Text:       p.Text,
			Embedding:  vecs[i],
		}
		rows[i] = c
		stored[i] = vector.StoredVector{ChunkID: c.ID, DocumentID: job.DocumentID, Embedding: vecs[i]}
	}

	if err := s.Chunks.ReplaceForDocument(ctx, job.DocumentID, rows); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	s.Index.UpsertDocument(job.DocumentID, stored)

	if err := s.Jobs.FinishIndex(ctx, job.ID, len(pieces)); err != nil {
		return 0, err
	}
	s.Logger.Info("index.done", "job_id", job.ID, "document_id", job.DocumentID,
		"chunks", len(pieces), "engine", s.Engine.Name())
	return len(pieces), nil
}
