package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IngestJob is one queued ingestion unit. Bulk loads enqueue jobs; the
// worker drains them in fixed-size batches with an inter-batch pause so
// the embedding gateway is never flooded.
type IngestJob struct {
	ID           uuid.UUID
	SourceType   SourceType
	SourceID     string
	Text         string
	Meta         DocumentMeta
	Overwrite    bool
	Status       string // new | processing | completed | failed
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IngestJobRepository is a Postgres-backed job queue.
type IngestJobRepository interface {
	Enqueue(ctx context.Context, job *IngestJob) error

	// AcquireBatch claims up to limit pending jobs, marking them
	// processing. Returns an empty slice when the queue is drained.
	AcquireBatch(ctx context.Context, limit int) ([]IngestJob, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error

	// PendingCount reports queued jobs for the stats operation.
	PendingCount(ctx context.Context) (int, error)
}
