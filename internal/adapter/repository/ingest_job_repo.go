package repository

import (
	"context"
	"fmt"
	"time"

	"reply-orchestrator/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ingestJobRepository struct {
	pool *pgxpool.Pool
}

// NewIngestJobRepository creates the Postgres-backed ingestion queue.
func NewIngestJobRepository(pool *pgxpool.Pool) domain.IngestJobRepository {
	return &ingestJobRepository{pool: pool}
}

func (r *ingestJobRepository) Enqueue(ctx context.Context, job *domain.IngestJob) error {
	query := `
		INSERT INTO ingest_jobs (id, source_type, source_id, text, meta, overwrite, status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		job.ID, job.SourceType, job.SourceID, job.Text,
		docMetaToMap(job.SourceType, job.Meta),
		job.Overwrite, job.Status, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue ingest job: %w", err)
	}
	return nil
}

func (r *ingestJobRepository) AcquireBatch(ctx context.Context, limit int) ([]domain.IngestJob, error) {
	// FOR UPDATE SKIP LOCKED keeps concurrent workers from claiming the
	// same jobs; the CTE flips them to processing in the same statement.
	query := `
		WITH next_jobs AS (
			SELECT id
			FROM ingest_jobs
			WHERE status = 'new'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE ingest_jobs
		SET status = 'processing', updated_at = $2
		FROM next_jobs
		WHERE ingest_jobs.id = next_jobs.id
		RETURNING ingest_jobs.id, ingest_jobs.source_type, ingest_jobs.source_id,
		          ingest_jobs.text, ingest_jobs.meta, ingest_jobs.overwrite,
		          ingest_jobs.status, ingest_jobs.error_message,
		          ingest_jobs.created_at, ingest_jobs.updated_at
	`
	rows, err := r.pool.Query(ctx, query, limit, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to acquire ingest jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.IngestJob
	for rows.Next() {
		var job domain.IngestJob
		var rawMeta map[string]any
		if err := rows.Scan(
			&job.ID, &job.SourceType, &job.SourceID,
			&job.Text, &rawMeta, &job.Overwrite,
			&job.Status, &job.ErrorMessage,
			&job.CreatedAt, &job.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ingest job: %w", err)
		}
		job.Meta = docMetaFromMap(job.SourceType, rawMeta)
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return jobs, nil
}

func (r *ingestJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE ingest_jobs SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		status, errorMessage, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update ingest job status: %w", err)
	}
	return nil
}

func (r *ingestJobRepository) PendingCount(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ingest_jobs WHERE status IN ('new', 'processing')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending jobs: %w", err)
	}
	return n, nil
}
