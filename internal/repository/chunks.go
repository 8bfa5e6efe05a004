package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clauselens/clauselens/internal/entity"
	"github.com/clauselens/clauselens/internal/vector"
)

type ChunkRepository interface {
	ReplaceForDocument(ctx context.Context, documentID uuid.UUID, chunks []*entity.Chunk) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*entity.Chunk, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Chunk, error)
	ListEmbedded(ctx context.Context) ([]vector.StoredVector, error)
}

type chunkRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewChunkRepository(pool *pgxpool.Pool, logger *slog.Logger) ChunkRepository {
	return &chunkRepo{pool: pool, logger: logger}
}

// ReplaceForDocument swaps the document's chunks in one transaction.
// Embeddings are optional; un-embedded chunks store a NULL blob.
func (r *chunkRepo) ReplaceForDocument(ctx context.Context, documentID uuid.UUID, chunks []*entity.Chunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		r.logger.Error("failed to clear chunks", "document_id", documentID, "error", err)
		return err
	}

	now := time.Now().UTC()
	for _, c := range chunks {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.DocumentID = documentID

		var blob []byte
		var embeddedAt *time.Time
		if len(c.Embedding) > 0 {
			blob = vector.EncodeBlob(c.Embedding)
			c.Dims = len(c.Embedding)
			if c.EmbeddedAt == nil {
				c.EmbeddedAt = &now
			}
			embeddedAt = c.EmbeddedAt
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (id, document_id, seq, heading, content, embedding, dims, embedded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.DocumentID, c.Seq, c.Heading, c.Text, blob, c.Dims, embeddedAt,
		)
		if err != nil {
			r.logger.Error("failed to insert chunk", "document_id", documentID, "seq", c.Seq, "error", err)
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *chunkRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*entity.Chunk, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, seq, heading, content, dims, embedded_at
		 FROM chunks WHERE document_id = $1 ORDER BY seq`, documentID)
	if err != nil {
		r.logger.Error("failed to list chunks", "document_id", documentID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var chunks []*entity.Chunk
	for rows.Next() {
		var c entity.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.Heading, &c.Text, &c.Dims, &c.EmbeddedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func (r *chunkRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, seq, heading, content, dims, embedded_at
		 FROM chunks WHERE id = ANY($1) ORDER BY seq`, ids)
	if err != nil {
		r.logger.Error("failed to get chunks by ids", "count", len(ids), "error", err)
		return nil, err
	}
	defer rows.Close()

	var chunks []*entity.Chunk
	for rows.Next() {
		var c entity.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.Heading, &c.Text, &c.Dims, &c.EmbeddedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func (r *chunkRepo) ListEmbedded(ctx context.Context) ([]vector.StoredVector, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, embedding FROM chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		r.logger.Error("failed to list embedded chunks", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []vector.StoredVector
	for rows.Next() {
		var sv vector.StoredVector
		var blob []byte
		if err := rows.Scan(&sv.ChunkID, &sv.DocumentID, &blob); err != nil {
			return nil, err
		}
		vec, err := vector.DecodeBlob(blob)
		if err != nil {
			r.logger.Warn("skipping undecodable embedding", "chunk_id", sv.ChunkID, "error", err)
			continue
		}
		sv.Embedding = vec
		out = append(out, sv)
	}
	return out, rows.Err()
}
