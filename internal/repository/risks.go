package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clauselens/clauselens/internal/entity"
)

type RiskFlagRepository interface {
	ReplaceForDocument(ctx context.Context, documentID uuid.UUID, flags []*entity.RiskFlag) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*entity.RiskFlag, error)
	ListAll(ctx context.Context) ([]*entity.RiskFlag, error)
	CountBySeverity(ctx context.Context, documentID uuid.UUID) (map[string]int, error)
}

type riskFlagRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewRiskFlagRepository(pool *pgxpool.Pool, logger *slog.Logger) RiskFlagRepository {
	return &riskFlagRepo{pool: pool, logger: logger}
}

// ReplaceForDocument swaps the document's flags in one transaction so a
// reprocess never leaves stale flags behind.
func (r *riskFlagRepo) ReplaceForDocument(ctx context.Context, documentID uuid.UUID, flags []*entity.RiskFlag) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM risk_flags WHERE document_id = $1`, documentID); err != nil {
		r.logger.Error("failed to clear risk flags", "document_id", documentID, "error", err)
		return err
	}

	now := time.Now().UTC()
	for _, f := range flags {
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		f.DocumentID = documentID
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO risk_flags (id, document_id, rule_id, category, severity, score,
			    title, detail, excerpt, clause_seq, source, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			f.ID, f.DocumentID, f.RuleID, f.Category, f.Severity, f.Score,
			f.Title, f.Detail, f.Excerpt, f.ClauseSeq, f.Source, f.CreatedAt,
		)
		if err != nil {
			r.logger.Error("failed to insert risk flag", "document_id", documentID, "rule_id", f.RuleID, "error", err)
			return err
		}
	}
	return tx.Commit(ctx)
}

const riskFlagColumns = `id, document_id, rule_id, category, severity, score,
title, detail, excerpt, clause_seq, source, created_at`

func scanRiskFlags(rows pgx.Rows) ([]*entity.RiskFlag, error) {
	defer rows.Close()
	var flags []*entity.RiskFlag
	for rows.Next() {
		var f entity.RiskFlag
		if err := rows.Scan(
			&f.ID, &f.DocumentID, &f.RuleID, &f.Category, &f.Severity, &f.Score,
			&f.Title, &f.Detail, &f.Excerpt, &f.ClauseSeq, &f.Source, &f.CreatedAt,
		); err != nil {
			return nil, err
		}
		flags = append(flags, &f)
	}
	return flags, rows.Err()
}

func (r *riskFlagRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*entity.RiskFlag, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+riskFlagColumns+` FROM risk_flags WHERE document_id = $1
		 ORDER BY score DESC, clause_seq`, documentID)
	if err != nil {
		r.logger.Error("failed to list risk flags", "document_id", documentID, "error", err)
		return nil, err
	}
	return scanRiskFlags(rows)
}

func (r *riskFlagRepo) ListAll(ctx context.Context) ([]*entity.RiskFlag, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+riskFlagColumns+` FROM risk_flags ORDER BY document_id, score DESC`)
	if err != nil {
		r.logger.Error("failed to list all risk flags", "error", err)
		return nil, err
	}
	return scanRiskFlags(rows)
}

func (r *riskFlagRepo) CountBySeverity(ctx context.Context, documentID uuid.UUID) (map[string]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT severity, count(*) FROM risk_flags WHERE document_id = $1 GROUP BY severity`,
		documentID)
	if err != nil {
		r.logger.Error("failed to count risk flags", "document_id", documentID, "error", err)
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var severity string
		var n int
		if err := rows.Scan(&severity, &n); err != nil {
			return nil, err
		}
		counts[severity] = n
	}
	return counts, rows.Err()
}
