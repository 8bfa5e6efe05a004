package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

// The duplicate path in UpsertByHash hinges on recognizing the unique
// violation raised when two uploads of the same content race past GetByHash.
func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "documents_content_hash_key"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"nil", nil, "", false},
		{"matching constraint", dup, "documents_content_hash_key", true},
		{"any constraint", dup, "", true},
		{"other constraint", dup, "chunks_document_id_seq_key", false},
		{"wrapped pg error", fmt.Errorf("insert document: %w", dup), "documents_content_hash_key", true},
		{"other sqlstate", &pgconn.PgError{Code: "23503"}, "", false},
		{"string fallback", errors.New(`ERROR: duplicate key value violates unique constraint "documents_content_hash_key" (SQLSTATE 23505)`), "documents_content_hash_key", true},
		{"string fallback wrong constraint", errors.New(`duplicate key value (SQLSTATE 23505)`), "documents_content_hash_key", false},
		{"unrelated error", errors.New("connection refused"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err, tt.constraint); got != tt.want {
				t.Errorf("isUniqueViolation(%v, %q) = %v, want %v", tt.err, tt.constraint, got, tt.want)
			}
		})
	}
}
