package repository

import (
	"context"
	"errors"
	"fmt"

	"reply-orchestrator/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contentItemRepository struct {
	pool *pgxpool.Pool
}

// NewContentItemRepository creates a ContentItemRepository.
func NewContentItemRepository(pool *pgxpool.Pool) domain.ContentItemRepository {
	return &contentItemRepository{pool: pool}
}

func (r *contentItemRepository) db(ctx context.Context) rowQuerier {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *contentItemRepository) Get(ctx context.Context, id string) (*domain.ContentItem, error) {
	query := `
		SELECT id, status, fail_reason, brand_tags, category_tags,
		       price_min, price_max, tags, updated_at
		FROM content_items
		WHERE id = $1
	`
	var item domain.ContentItem
	err := r.db(ctx).QueryRow(ctx, query, id).Scan(
		&item.ID, &item.Status, &item.FailReason,
		&item.BrandTags, &item.CategoryTags,
		&item.PriceMin, &item.PriceMax, &item.Tags, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return &item, nil
}

func (r *contentItemRepository) Upsert(ctx context.Context, item *domain.ContentItem) error {
	query := `
		INSERT INTO content_items (id, status, fail_reason, brand_tags, category_tags,
		                           price_min, price_max, tags, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (id) DO UPDATE SET
			brand_tags = $4, category_tags = $5,
			price_min = $6, price_max = $7, tags = $8, updated_at = now()
	`
	_, err := r.db(ctx).Exec(ctx, query,
		item.ID, item.Status, item.FailReason,
		item.BrandTags, item.CategoryTags,
		item.PriceMin, item.PriceMax, item.Tags,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert content item: %w", err)
	}
	return nil
}

func (r *contentItemRepository) SetStatus(ctx context.Context, id string, status domain.IndexStatus, failReason string) error {
	if status != domain.StatusFailed {
		failReason = ""
	}
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE content_items SET status = $1, fail_reason = $2, updated_at = now() WHERE id = $3`,
		status, failReason, id)
	if err != nil {
		return fmt.Errorf("failed to set content item status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewError(domain.KindNotFound, "content item %s not found", id)
	}
	return nil
}
