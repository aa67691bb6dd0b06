package repository

import (
	"context"
	"fmt"
	"sort"

	"reply-orchestrator/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type poolRepository struct {
	pool *pgxpool.Pool
}

// NewPoolRepository creates a PoolRepository. Rebuilds write a fresh
// generation and flip a per-item pointer in one transaction, so readers
// observe either the old or the new pool, never a mix.
func NewPoolRepository(pool *pgxpool.Pool) domain.PoolRepository {
	return &poolRepository{pool: pool}
}

func (r *poolRepository) GetActive(ctx context.Context, contentItemID string) ([]domain.PoolEntry, error) {
	query := `
		SELECT p.content_item_id, p.catalog_item_id, p.relevance_score,
		       p.matched_brand, p.matched_category, p.matched_price_range
		FROM pool_entries p
		JOIN pool_state s ON s.content_item_id = p.content_item_id
		              AND s.active_generation = p.generation
		WHERE p.content_item_id = $1
		ORDER BY p.relevance_score DESC, p.catalog_item_id ASC
	`
	rows, err := r.pool.Query(ctx, query, contentItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool: %w", err)
	}
	defer rows.Close()

	entries := []domain.PoolEntry{}
	for rows.Next() {
		var e domain.PoolEntry
		if err := rows.Scan(&e.ContentItemID, &e.CatalogItemID, &e.RelevanceScore,
			&e.MatchedBrand, &e.MatchedCategory, &e.MatchedPriceRange); err != nil {
			return nil, fmt.Errorf("failed to scan pool entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}

func (r *poolRepository) ReplaceGeneration(ctx context.Context, contentItemID string, entries []domain.PoolEntry, supplement bool, maxSize int) ([]domain.PoolEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin pool rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var currentGen int
	err = tx.QueryRow(ctx,
		`SELECT active_generation FROM pool_state WHERE content_item_id = $1 FOR UPDATE`,
		contentItemID).Scan(&currentGen)
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to read pool state: %w", err)
	}
	newGen := currentGen + 1

	final := make([]domain.PoolEntry, len(entries))
	copy(final, entries)
	keyed := make(map[string]int, len(final))
	for i, e := range final {
		keyed[e.CatalogItemID] = i
	}

	// supplement=false replaces; supplement=true unions with the previous
	// generation, keeping the higher-scored entry when both have one.
	if supplement && currentGen > 0 {
		prev, err := tx.Query(ctx, `
			SELECT catalog_item_id, relevance_score, matched_brand, matched_category, matched_price_range
			FROM pool_entries
			WHERE content_item_id = $1 AND generation = $2
		`, contentItemID, currentGen)
		if err != nil {
			return nil, fmt.Errorf("failed to read previous generation: %w", err)
		}
		for prev.Next() {
			e := domain.PoolEntry{ContentItemID: contentItemID}
			if err := prev.Scan(&e.CatalogItemID, &e.RelevanceScore,
				&e.MatchedBrand, &e.MatchedCategory, &e.MatchedPriceRange); err != nil {
				prev.Close()
				return nil, fmt.Errorf("failed to scan previous entry: %w", err)
			}
			if i, ok := keyed[e.CatalogItemID]; ok {
				if e.RelevanceScore > final[i].RelevanceScore {
					final[i] = e
				}
			} else {
				final = append(final, e)
			}
		}
		if err := prev.Err(); err != nil {
			prev.Close()
			return nil, fmt.Errorf("rows error: %w", err)
		}
		prev.Close()
	}

	// The size cap applies to the union, not just the new entries, so a
	// supplemented pool cannot creep past it across rebuilds.
	sort.Slice(final, func(i, j int) bool {
		if final[i].RelevanceScore != final[j].RelevanceScore {
			return final[i].RelevanceScore > final[j].RelevanceScore
		}
		return final[i].CatalogItemID < final[j].CatalogItemID
	})
	if maxSize > 0 && len(final) > maxSize {
		final = final[:maxSize]
	}

	if len(final) > 0 {
		rows := make([][]interface{}, len(final))
		for i, e := range final {
			rows[i] = []interface{}{
				contentItemID, e.CatalogItemID, newGen,
				e.RelevanceScore, e.MatchedBrand, e.MatchedCategory, e.MatchedPriceRange,
			}
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"pool_entries"},
			[]string{"content_item_id", "catalog_item_id", "generation",
				"relevance_score", "matched_brand", "matched_category", "matched_price_range"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert pool generation: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO pool_state (content_item_id, active_generation, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (content_item_id)
		DO UPDATE SET active_generation = $2, updated_at = now()
	`, contentItemID, newGen)
	if err != nil {
		return nil, fmt.Errorf("failed to flip pool generation: %w", err)
	}

	// Old generations are invisible once the pointer moves; reclaim them.
	_, err = tx.Exec(ctx,
		`DELETE FROM pool_entries WHERE content_item_id = $1 AND generation < $2`,
		contentItemID, newGen)
	if err != nil {
		return nil, fmt.Errorf("failed to prune old generations: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit pool rebuild: %w", err)
	}
	return final, nil
}

func (r *poolRepository) Stats(ctx context.Context) (int, int, error) {
	var pools, entries int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(cnt), 0) FROM (
			SELECT s.content_item_id, COUNT(p.catalog_item_id) AS cnt
			FROM pool_state s
			LEFT JOIN pool_entries p ON p.content_item_id = s.content_item_id
			                      AND p.generation = s.active_generation
			GROUP BY s.content_item_id
		) t
	`).Scan(&pools, &entries)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query pool stats: %w", err)
	}
	return pools, entries, nil
}
