package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clauselens/clauselens/internal/entity"
)

type ChatMessageRepository interface {
	Append(ctx context.Context, msg *entity.ChatMessage) error
	ListByDocument(ctx context.Context, documentID uuid.UUID, limit int) ([]*entity.ChatMessage, error)
}

type chatMessageRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewChatMessageRepository(pool *pgxpool.Pool, logger *slog.Logger) ChatMessageRepository {
	return &chatMessageRepo{pool: pool, logger: logger}
}

func (r *chatMessageRepo) Append(ctx context.Context, msg *entity.ChatMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	var citations []byte
	if len(msg.Citations) > 0 {
		b, err := json.Marshal(msg.Citations)
		if err != nil {
			return err
		}
		citations = b
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_messages (id, document_id, role, content, citations, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.DocumentID, msg.Role, msg.Content, citations, msg.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to append chat message", "document_id", msg.DocumentID, "role", msg.Role, "error", err)
	}
	return err
}

// ListByDocument returns the most recent messages in chronological order.
func (r *chatMessageRepo) ListByDocument(ctx context.Context, documentID uuid.UUID, limit int) ([]*entity.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, role, content, citations, created_at FROM (
		    SELECT id, document_id, role, content, citations, created_at
		    FROM chat_messages WHERE document_id = $1
		    ORDER BY created_at DESC LIMIT $2
		 ) recent ORDER BY created_at ASC`,
		documentID, limit)
	if err != nil {
		r.logger.Error("failed to list chat messages", "document_id", documentID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var msgs []*entity.ChatMessage
	for rows.Next() {
		var m entity.ChatMessage
		var citations []byte
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Role, &m.Content, &citations, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &m.Citations); err != nil {
				return nil, err
			}
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
