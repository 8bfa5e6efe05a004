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

	"github.com/clauselens/clauselens/internal/common"
	"github.com/clauselens/clauselens/internal/entity"
	"github.com/clauselens/clauselens/internal/llm"
)

// CreateContractRequest carries everything the upsert needs.
type CreateContractRequest struct {
	DocumentID uuid.UUID
	Fields     llm.ContractFields
	DocType    string
	Source     string // "model" | "heuristic"
}

type ContractRepository interface {
	UpsertFromFields(ctx context.Context, req *CreateContractRequest) (*entity.Contract, error)
	GetByDocument(ctx context.Context, documentID uuid.UUID) (*entity.Contract, error)
}

type contractRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewContractRepository(pool *pgxpool.Pool, logger *slog.Logger) ContractRepository {
	return &contractRepo{pool: pool, logger: logger}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableInt32(v int32) *int32 {
	if v == 0 {
		return nil
	}
	return &v
}

// UpsertFromFields writes one contracts row per document, replacing any
// previous extraction on reprocess.
func (r *contractRepo) UpsertFromFields(ctx context.Context, req *CreateContractRequest) (*entity.Contract, error) {
	f := req.Fields
	parties, err := json.Marshal(f.Parties)
	if err != nil {
		return nil, err
	}
	if len(f.Parties) == 0 {
		parties = []byte("[]")
	}
	now := time.Now().UTC()
	id := uuid.New()

	row := r.pool.QueryRow(ctx,
		`INSERT INTO contracts (id, document_id, doc_type, title, parties, effective_date,
		    expiration_date, governing_law, contract_value, currency, payment_terms,
		    notice_period_days, auto_renews, summary, extraction_source, model_confidence,
		    created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
		 ON CONFLICT (document_id) DO UPDATE SET
		    doc_type = EXCLUDED.doc_type,
		    title = EXCLUDED.title,
		    parties = EXCLUDED.parties,
		    effective_date = EXCLUDED.effective_date,
		    expiration_date = EXCLUDED.expiration_date,
		    governing_law = EXCLUDED.governing_law,
		    contract_value = EXCLUDED.contract_value,
		    currency = EXCLUDED.currency,
		    payment_terms = EXCLUDED.payment_terms,
		    notice_period_days = EXCLUDED.notice_period_days,
		    auto_renews = EXCLUDED.auto_renews,
		    summary = EXCLUDED.summary,
		    extraction_source = EXCLUDED.extraction_source,
		    model_confidence = EXCLUDED.model_confidence,
		    updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		id, req.DocumentID, req.DocType, f.Title, parties, nullable(f.EffectiveDate),
		nullable(f.ExpirationDate), nullable(f.GoverningLaw), nullable(f.ContractValue),
		nullable(f.Currency), nullable(f.PaymentTerms), nullableInt32(f.NoticePeriodDays),
		f.AutoRenews, f.Summary, req.Source, f.ModelConfidence, now,
	)
	var finalID uuid.UUID
	if err := row.Scan(&finalID); err != nil {
		r.logger.Error("failed to upsert contract", "document_id", req.DocumentID, "error", err)
		return nil, err
	}
	return r.GetByDocument(ctx, req.DocumentID)
}

func (r *contractRepo) GetByDocument(ctx context.Context, documentID uuid.UUID) (*entity.Contract, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, document_id, doc_type, title, parties, effective_date, expiration_date,
		    governing_law, contract_value, currency, payment_terms, notice_period_days,
		    auto_renews, summary, extraction_source, model_confidence, created_at, updated_at
		 FROM contracts WHERE document_id = $1`, documentID)

	var c entity.Contract
	var parties []byte
	err := row.Scan(
		&c.ID, &c.DocumentID, &c.DocType, &c.Title, &parties, &c.EffectiveDate, &c.ExpirationDate,
		&c.GoverningLaw, &c.ContractValue, &c.Currency, &c.PaymentTerms, &c.NoticePeriodDays,
		&c.AutoRenews, &c.Summary, &c.ExtractionSource, &c.ModelConfidence, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get contract by document", "document_id", documentID, "error", err)
		return nil, err
	}
	if len(parties) > 0 {
		if err := json.Unmarshal(parties, &c.Parties); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
