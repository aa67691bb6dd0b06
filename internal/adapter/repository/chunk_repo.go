package repository

import (
	"context"
	"fmt"

	"reply-orchestrator/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type chunkRepository struct {
	pool *pgxpool.Pool
}

// NewChunkRepository creates a ChunkRepository backed by Postgres with a
// pgvector column for embeddings.
func NewChunkRepository(pool *pgxpool.Pool) domain.ChunkRepository {
	return &chunkRepository{pool: pool}
}

type bulkExecutor interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func (r *chunkRepository) db(ctx context.Context) bulkExecutor {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *chunkRepository) BulkInsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(chunks))
	for i, chunk := range chunks {
		var embedding interface{}
		if chunk.Embedding != nil {
			embedding = *chunk.Embedding
		}
		rows[i] = []interface{}{
			chunk.ID,
			chunk.DocumentID,
			chunk.ChunkIndex,
			chunk.Text,
			embedding,
			chunkMetaToMap(chunk.Meta),
			chunk.CreatedAt,
		}
	}

	_, err := r.db(ctx).CopyFrom(
		ctx,
		pgx.Identifier{"chunks"},
		[]string{"id", "document_id", "chunk_index", "text", "embedding", "meta", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert chunks: %w", err)
	}
	return nil
}

func (r *chunkRepository) DeleteByDocumentID(ctx context.Context, docID uuid.UUID) error {
	if _, err := r.db(ctx).Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// HybridScan returns candidate chunks with both raw signals. The SQL
// orders by the stronger of the two signals so lexical-only chunks
// (null embedding) still surface; exact fusion happens in the usecase.
// An ivfflat index on chunks.embedding keeps the semantic side sublinear
// at corpus scale.
func (r *chunkRepository) HybridScan(
	ctx context.Context,
	queryVector []float32,
	queryText string,
	filter domain.SearchFilter,
	limit int,
) ([]domain.ChunkHit, error) {
	var vec interface{}
	if queryVector != nil {
		vec = pgvector.NewVector(queryVector)
	}

	sourceIDs := filter.SourceIDs
	if sourceIDs == nil {
		sourceIDs = []string{}
	}

	query := `
		SELECT c.id, c.document_id, c.chunk_index, c.text, c.embedding, c.meta, c.created_at,
		       d.source_type, d.source_id, d.meta, d.updated_at,
		       (CASE WHEN c.embedding IS NULL OR $1::vector IS NULL THEN 0
		             ELSE 1 - (c.embedding <=> $1::vector) END)::float8 AS semantic,
		       (CASE WHEN $2 = '' THEN 0
		             ELSE ts_rank(to_tsvector('simple', c.text), plainto_tsquery('simple', $2)) END)::float8 AS lexical
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE ($3 = '' OR d.source_type = $3)
		  AND ($4 = '' OR d.meta->>'content_item_id' = $4)
		  AND ($5 = '' OR COALESCE(c.meta->>'category', d.meta->>'category') = $5)
		  AND (cardinality($6::text[]) = 0 OR d.source_id = ANY($6))
		ORDER BY GREATEST(
		           CASE WHEN c.embedding IS NULL OR $1::vector IS NULL THEN 0
		                ELSE 1 - (c.embedding <=> $1::vector) END,
		           LEAST(CASE WHEN $2 = '' THEN 0
		                      ELSE ts_rank(to_tsvector('simple', c.text), plainto_tsquery('simple', $2)) END, 1.0)
		         ) DESC,
		         c.id ASC
		LIMIT $7
	`

	rows, err := r.db(ctx).Query(ctx, query,
		vec, queryText, string(filter.SourceType), filter.ContentItemID, filter.Category, sourceIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run hybrid scan: %w", err)
	}
	defer rows.Close()

	var hits []domain.ChunkHit
	for rows.Next() {
		var hit domain.ChunkHit
		var embedding *pgvector.Vector
		var chunkMeta, docMeta map[string]any
		if err := rows.Scan(
			&hit.Chunk.ID, &hit.Chunk.DocumentID, &hit.Chunk.ChunkIndex, &hit.Chunk.Text,
			&embedding, &chunkMeta, &hit.Chunk.CreatedAt,
			&hit.SourceType, &hit.SourceID, &docMeta, &hit.DocUpdatedAt,
			&hit.SemanticScore, &hit.LexicalScore,
		); err != nil {
			return nil, fmt.Errorf("failed to scan hybrid hit: %w", err)
		}
		hit.Chunk.Embedding = embedding
		hit.Chunk.Meta = chunkMetaFromMap(chunkMeta)
		hit.DocMeta = docMetaFromMap(hit.SourceType, docMeta)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}
