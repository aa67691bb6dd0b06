package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reply-orchestrator/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type documentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository creates a DocumentRepository backed by Postgres.
func NewDocumentRepository(pool *pgxpool.Pool) domain.DocumentRepository {
	return &documentRepository{pool: pool}
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *documentRepository) db(ctx context.Context) rowQuerier {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *documentRepository) GetBySource(ctx context.Context, st domain.SourceType, sourceID string) (*domain.Document, error) {
	query := `
		SELECT id, source_type, source_id, meta, created_at, updated_at
		FROM documents
		WHERE source_type = $1 AND source_id = $2
	`
	var doc domain.Document
	var rawMeta map[string]any
	err := r.db(ctx).QueryRow(ctx, query, st, sourceID).Scan(
		&doc.ID, &doc.SourceType, &doc.SourceID, &rawMeta, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	doc.Meta = docMetaFromMap(doc.SourceType, rawMeta)
	return &doc, nil
}

func (r *documentRepository) Create(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (id, source_type, source_id, meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db(ctx).Exec(ctx, query,
		doc.ID, doc.SourceType, doc.SourceID,
		docMetaToMap(doc.SourceType, doc.Meta),
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *documentRepository) Touch(ctx context.Context, docID uuid.UUID, meta domain.DocumentMeta, at time.Time) error {
	query := `
		UPDATE documents SET meta = $1, updated_at = $2 WHERE id = $3
		RETURNING source_type
	`
	// meta shape depends on source_type, so resolve it first.
	var st domain.SourceType
	if err := r.db(ctx).QueryRow(ctx, `SELECT source_type FROM documents WHERE id = $1`, docID).Scan(&st); err != nil {
		return fmt.Errorf("failed to resolve document type: %w", err)
	}
	var got domain.SourceType
	if err := r.db(ctx).QueryRow(ctx, query, docMetaToMap(st, meta), at, docID).Scan(&got); err != nil {
		return fmt.Errorf("failed to touch document: %w", err)
	}
	return nil
}

func (r *documentRepository) DeleteBySource(ctx context.Context, st domain.SourceType, sourceID string) error {
	// chunks reference documents with ON DELETE CASCADE.
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM documents WHERE source_type = $1 AND source_id = $2`, st, sourceID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewError(domain.KindNotFound, "document %s/%s not found", st, sourceID)
	}
	return nil
}

func (r *documentRepository) Stats(ctx context.Context) (domain.CorpusStats, error) {
	stats := domain.CorpusStats{
		Documents: map[domain.SourceType]int{},
		Chunks:    map[domain.SourceType]int{},
	}

	query := `
		SELECT d.source_type,
		       COUNT(DISTINCT d.id),
		       COUNT(c.id),
		       COUNT(c.embedding)
		FROM documents d
		LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.source_type
	`
	rows, err := r.db(ctx).Query(ctx, query)
	if err != nil {
		return stats, fmt.Errorf("failed to query corpus stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st domain.SourceType
		var docs, chunks, embedded int
		if err := rows.Scan(&st, &docs, &chunks, &embedded); err != nil {
			return stats, fmt.Errorf("failed to scan corpus stats: %w", err)
		}
		stats.Documents[st] = docs
		stats.Chunks[st] = chunks
		stats.Embedded += embedded
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("rows error: %w", err)
	}
	return stats, nil
}
