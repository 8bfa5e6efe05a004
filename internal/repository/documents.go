package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clauselens/clauselens/internal/common"
	"github.com/clauselens/clauselens/internal/entity"
)

type DocumentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	GetByHash(ctx context.Context, hash []byte) (*entity.Document, error)
	Create(ctx context.Context, doc *entity.Document) (*entity.Document, error)
	UpsertByHash(ctx context.Context, doc *entity.Document) (*entity.Document, bool, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Document, error)
	Count(ctx context.Context) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	SetExtractMeta(ctx context.Context, id uuid.UUID, pageCount *int32, language *string) error
	SetDocType(ctx context.Context, id uuid.UUID, docType string) error
	MarkProcessed(ctx context.Context, id uuid.UUID, status string, processedAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewDocumentRepository(pool *pgxpool.Pool, logger *slog.Logger) DocumentRepository {
	return &documentRepo{
		pool:   pool,
		logger: logger,
	}
}

const documentColumns = `id, source_path, content_hash, filename, file_ext, file_size,
doc_type, status, page_count, language, uploaded_at, processed_at`

func scanDocument(row pgx.Row) (*entity.Document, error) {
	var d entity.Document
	err := row.Scan(
		&d.ID, &d.SourcePath, &d.ContentHash, &d.Filename, &d.FileExt, &d.FileSize,
		&d.DocType, &d.Status, &d.PageCount, &d.Language, &d.UploadedAt, &d.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (r *documentRepo) GetByHash(ctx context.Context, hash []byte) (*entity.Document, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE content_hash = $1`, hash)
	return scanDocument(row)
}

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) (*entity.Document, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = "QUEUED"
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO documents (id, source_path, content_hash, filename, file_ext, file_size, status, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		doc.ID, doc.SourcePath, doc.ContentHash, doc.Filename, doc.FileExt, doc.FileSize, doc.Status, doc.UploadedAt,
	)
	if err != nil {
		r.logger.Error("failed to create document", "source_path", doc.SourcePath, "filename", doc.Filename, "error", err)
		return nil, err
	}
	return doc, nil
}

// UpsertByHash returns the existing document when the content hash is already
// known; the bool reports whether it was a duplicate.
func (r *documentRepo) UpsertByHash(ctx context.Context, doc *entity.Document) (*entity.Document, bool, error) {
	if existing, err := r.GetByHash(ctx, doc.ContentHash); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}
	row, err := r.Create(ctx, doc)
	if err != nil {
		// A concurrent upload of the same content can win the race between
		// GetByHash and Create; the unique index turns that into a duplicate.
		if isUniqueViolation(err, "documents_content_hash_key") {
			if existing, gErr := r.GetByHash(ctx, doc.ContentHash); gErr == nil {
				r.logger.Info("concurrent duplicate upload", "filename", doc.Filename, "document_id", existing.ID)
				return existing, true, nil
			}
		}
		r.logger.Error("failed to upsert document by hash", "source_path", doc.SourcePath, "filename", doc.Filename, "error", err)
		return nil, false, err
	}
	return row, false, nil
}

func (r *documentRepo) List(ctx context.Context, limit, offset int) ([]*entity.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		r.logger.Error("failed to list documents", "error", err)
		return nil, err
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *documentRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&n)
	return n, err
}

func (r *documentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE documents SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		r.logger.Error("failed to update document status", "document_id", id, "status", status, "error", err)
	}
	return err
}

func (r *documentRepo) SetExtractMeta(ctx context.Context, id uuid.UUID, pageCount *int32, language *string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET page_count = COALESCE($2, page_count), language = COALESCE($3, language) WHERE id = $1`,
		id, pageCount, language)
	if err != nil {
		r.logger.Error("failed to set document extract metadata", "document_id", id, "error", err)
	}
	return err
}

func (r *documentRepo) SetDocType(ctx context.Context, id uuid.UUID, docType string) error {
	_, err := r.pool.Exec(ctx, `UPDATE documents SET doc_type = $2 WHERE id = $1`, id, docType)
	if err != nil {
		r.logger.Error("failed to set document type", "document_id", id, "doc_type", docType, "error", err)
	}
	return err
}

func (r *documentRepo) MarkProcessed(ctx context.Context, id uuid.UUID, status string, processedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET status = $2, processed_at = $3 WHERE id = $1`,
		id, status, processedAt)
	if err != nil {
		r.logger.Error("failed to mark document processed", "document_id", id, "status", status, "error", err)
	}
	return err
}

func (r *documentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("failed to delete document", "document_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}
