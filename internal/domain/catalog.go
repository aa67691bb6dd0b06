package domain

import (
	"context"
	"time"
)

// CatalogItem is read-only input from the external metadata source.
// The retrieval core never mutates it.
type CatalogItem struct {
	ID       string
	Title    string
	URL      string
	Brand    string
	Category string
	Price    float64
	Tags     []string
}

// IndexStatus tracks where a content item is in the ingestion lifecycle.
type IndexStatus string

const (
	StatusNotIndexed IndexStatus = "not_indexed"
	StatusIndexing   IndexStatus = "indexing"
	StatusReady      IndexStatus = "ready"
	StatusFailed     IndexStatus = "failed"
)

// ContentItem is one long-form content unit (a video) plus the metadata
// the pool builder matches catalog items against.
type ContentItem struct {
	ID           string
	Status       IndexStatus
	FailReason   string
	BrandTags    []string
	CategoryTags []string
	PriceMin     float64
	PriceMax     float64
	Tags         []string
	UpdatedAt    time.Time
}

// PoolEntry is one precomputed catalog candidate for a content item.
// Pool rows are a cache: safe to delete and recompute, never a source
// of truth.
type PoolEntry struct {
	ContentItemID     string
	CatalogItemID     string
	RelevanceScore    float64
	MatchedBrand      bool
	MatchedCategory   bool
	MatchedPriceRange bool
}

// ContentItemRepository persists content items and their index status.
type ContentItemRepository interface {
	// Get returns nil, nil when the content item is unknown.
	Get(ctx context.Context, id string) (*ContentItem, error)

	Upsert(ctx context.Context, item *ContentItem) error

	// SetStatus records a lifecycle transition. failReason is only kept
	// for StatusFailed.
	SetStatus(ctx context.Context, id string, status IndexStatus, failReason string) error
}

// PoolRepository stores per-content-item candidate pools. Writes replace
// a whole generation; readers always observe exactly one generation.
type PoolRepository interface {
	// GetActive returns the entries of the active generation, highest
	// score first. An item with no pool yields an empty slice, not an
	// error.
	GetActive(ctx context.Context, contentItemID string) ([]PoolEntry, error)

	// ReplaceGeneration writes entries as a new generation and flips the
	// active pointer atomically. When supplement is true, survivors of
	// the previous generation are unioned in, keeping the higher score
	// per catalog item. The union is re-sorted and truncated to maxSize
	// (0 means uncapped). Returns the entries actually written.
	ReplaceGeneration(ctx context.Context, contentItemID string, entries []PoolEntry, supplement bool, maxSize int) ([]PoolEntry, error)

	// Stats returns the number of pooled content items and total entries.
	Stats(ctx context.Context) (pools int, entries int, err error)
}

// CatalogClient reads the external catalog/content-item metadata source.
type CatalogClient interface {
	// ListItems returns the full catalog for pool building. The corpus is
	// single-tenant and bounded, so a full listing is acceptable.
	ListItems(ctx context.Context) ([]CatalogItem, error)

	// GetContentItem returns pool-matching metadata for one content item,
	// or nil, nil when the source does not know it.
	GetContentItem(ctx context.Context, id string) (*ContentItem, error)
}
