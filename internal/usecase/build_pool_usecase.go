package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"reply-orchestrator/internal/domain"
	"reply-orchestrator/internal/infra/metrics"
)

const defaultMaxPoolSize = 50

// PoolWeights splits the composite relevance score across the four
// matching signals.
type PoolWeights struct {
	Brand    float64
	Category float64
	Price    float64
	Tags     float64
}

// BuildPoolInput tunes a single rebuild.
type BuildPoolInput struct {
	ContentItemID     string
	MaxPoolSize       int
	MinRelevanceScore float64
	// Overwrite discards the previous generation wholesale; without it
	// surviving entries are carried into the new generation.
	Overwrite bool
}

// PoolBuildResult summarizes one rebuild.
type PoolBuildResult struct {
	PoolSize int
	AvgScore float64
}

type BuildPoolUsecase interface {
	Build(ctx context.Context, input BuildPoolInput) (*PoolBuildResult, error)
}

type buildPoolUsecase struct {
	poolRepo        domain.PoolRepository
	contentItemRepo domain.ContentItemRepository
	catalogClient   domain.CatalogClient
	weights         PoolWeights
}

func NewBuildPoolUsecase(
	poolRepo domain.PoolRepository,
	contentItemRepo domain.ContentItemRepository,
	catalogClient domain.CatalogClient,
	weights PoolWeights,
) BuildPoolUsecase {
	if weights.Brand+weights.Category+weights.Price+weights.Tags <= 0 {
		weights = PoolWeights{Brand: 0.3, Category: 0.3, Price: 0.2, Tags: 0.2}
	}
	return &buildPoolUsecase{
		poolRepo:        poolRepo,
		contentItemRepo: contentItemRepo,
		catalogClient:   catalogClient,
		weights:         weights,
	}
}

func (u *buildPoolUsecase) Build(ctx context.Context, input BuildPoolInput) (*PoolBuildResult, error) {
	if input.ContentItemID == "" {
		return nil, domain.NewError(domain.KindValidation, "content item id is required")
	}
	maxPoolSize := input.MaxPoolSize
	if maxPoolSize <= 0 {
		maxPoolSize = defaultMaxPoolSize
	}

	item, err := u.resolveContentItem(ctx, input.ContentItemID)
	if err != nil {
		return nil, err
	}

	catalogItems, err := u.catalogClient.ListItems(ctx)
	if err != nil {
		metrics.RecordPoolRebuild("failed")
		return nil, domain.WrapError(domain.KindDependency, err, "failed to list catalog items")
	}

	entries := u.score(item, catalogItems, input.MinRelevanceScore)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].RelevanceScore != entries[j].RelevanceScore {
			return entries[i].RelevanceScore > entries[j].RelevanceScore
		}
		return entries[i].CatalogItemID < entries[j].CatalogItemID
	})
	if len(entries) > maxPoolSize {
		entries = entries[:maxPoolSize]
	}

	final, err := u.poolRepo.ReplaceGeneration(ctx, input.ContentItemID, entries, !input.Overwrite, maxPoolSize)
	if err != nil {
		metrics.RecordPoolRebuild("failed")
		return nil, fmt.Errorf("failed to replace pool generation: %w", err)
	}
	metrics.RecordPoolRebuild("completed")

	// Report the written pool, which in supplement mode includes carried
	// survivors, not just the freshly scored entries.
	result := &PoolBuildResult{PoolSize: len(final), AvgScore: avgScore(final)}
	slog.Info("pool_rebuilt",
		slog.String("content_item_id", input.ContentItemID),
		slog.Int("pool_size", result.PoolSize),
		slog.Float64("avg_score", result.AvgScore),
		slog.Bool("overwrite", input.Overwrite),
	)
	return result, nil
}

// resolveContentItem prefers the local record and falls back to the
// catalog backend, caching what it learns.
func (u *buildPoolUsecase) resolveContentItem(ctx context.Context, id string) (*domain.ContentItem, error) {
	item, err := u.contentItemRepo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	if item != nil && (len(item.BrandTags) > 0 || len(item.CategoryTags) > 0 || len(item.Tags) > 0 || item.PriceMax > 0) {
		return item, nil
	}

	remote, err := u.catalogClient.GetContentItem(ctx, id)
	if err != nil {
		return nil, domain.WrapError(domain.KindDependency, err, "failed to fetch content item metadata")
	}
	if remote == nil {
		if item != nil {
			return item, nil
		}
		return nil, domain.NewError(domain.KindNotFound, "content item %s not found", id)
	}

	if item != nil {
		remote.Status = item.Status
		remote.FailReason = item.FailReason
	} else {
		remote.Status = domain.StatusNotIndexed
	}
	if err := u.contentItemRepo.Upsert(ctx, remote); err != nil {
		return nil, fmt.Errorf("failed to cache content item: %w", err)
	}
	return remote, nil
}

// score computes the composite relevance of every catalog item. The
// weighted sum is normalized over the signals the content item actually
// defines, so an item without a price range does not penalize every
// candidate.
func (u *buildPoolUsecase) score(item *domain.ContentItem, catalogItems []domain.CatalogItem, minScore float64) []domain.PoolEntry {
	hasBrand := len(item.BrandTags) > 0
	hasCategory := len(item.CategoryTags) > 0
	hasPrice := item.PriceMax > 0 && item.PriceMax >= item.PriceMin
	hasTags := len(item.Tags) > 0

	totalWeight := 0.0
	if hasBrand {
		totalWeight += u.weights.Brand
	}
	if hasCategory {
		totalWeight += u.weights.Category
	}
	if hasPrice {
		totalWeight += u.weights.Price
	}
	if hasTags {
		totalWeight += u.weights.Tags
	}
	if totalWeight <= 0 {
		return nil
	}

	var entries []domain.PoolEntry
	for _, ci := range catalogItems {
		entry := domain.PoolEntry{
			ContentItemID: item.ID,
			CatalogItemID: ci.ID,
		}
		score := 0.0

		if hasBrand && containsFold(item.BrandTags, ci.Brand) {
			entry.MatchedBrand = true
			score += u.weights.Brand
		}
		if hasCategory && containsFold(item.CategoryTags, ci.Category) {
			entry.MatchedCategory = true
			score += u.weights.Category
		}
		if hasPrice && ci.Price >= item.PriceMin && ci.Price <= item.PriceMax {
			entry.MatchedPriceRange = true
			score += u.weights.Price
		}
		if hasTags {
			score += u.weights.Tags * tagOverlap(item.Tags, ci.Tags)
		}

		entry.RelevanceScore = score / totalWeight
		if entry.RelevanceScore <= 0 || entry.RelevanceScore < minScore {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// tagOverlap is the Jaccard similarity of the two tag sets.
func tagOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, tag := range a {
		set[strings.ToLower(tag)] = struct{}{}
	}
	overlap := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, tag := range b {
		lower := strings.ToLower(tag)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		if _, ok := set[lower]; ok {
			overlap++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}

func containsFold(haystack []string, needle string) bool {
	if needle == "" {
		return false
	}
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

func avgScore(entries []domain.PoolEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range entries {
		sum += e.RelevanceScore
	}
	return sum / float64(len(entries))
}
