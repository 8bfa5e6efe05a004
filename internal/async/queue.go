// Package async runs document processing on a bounded worker pool.
package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Job is the smallest useful unit. Extend as needed later (retry, priority, etc).
type Job struct {
	DocumentID  uuid.UUID
	Force       bool // reprocess even when the document was seen before
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// ErrQueueFull is returned by Enqueue instead of blocking the caller; the
// HTTP layer maps it to 503.
var ErrQueueFull = errors.New("processing queue is full")

// ErrQueueClosed is returned by Enqueue after Shutdown has started.
var ErrQueueClosed = errors.New("processing queue is shut down")
