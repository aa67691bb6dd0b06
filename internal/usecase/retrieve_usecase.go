package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"

	"reply-orchestrator/internal/domain"
	"reply-orchestrator/internal/infra/metrics"
)

const (
	defaultTopK = 10
	maxTopK     = 100
	// overscanFactor widens the store scan so fusion reordering does not
	// starve the final topK.
	overscanFactor = 3
)

// RetrieveOptions restricts and sizes one retrieval.
type RetrieveOptions struct {
	TopK          int
	SourceType    domain.SourceType
	ContentItemID string
	Category      string
	SourceIDs     []string
	MinScore      float64
}

type RetrieveUsecase interface {
	// Retrieve embeds the query and returns fused hits, best first.
	Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]domain.RetrievalResult, error)

	// RetrieveWithVector reuses a precomputed query embedding so callers
	// issuing several scans for one query embed only once. vec may be nil
	// for a lexical-only scan.
	RetrieveWithVector(ctx context.Context, vec []float32, query string, opts RetrieveOptions) ([]domain.RetrievalResult, error)

	// EncodeQuery exposes the query embedding for callers that scan
	// multiple corpora.
	EncodeQuery(ctx context.Context, query string) ([]float32, error)
}

// FusionWeights splits the fused score between the two signals.
type FusionWeights struct {
	Semantic float64
	Lexical  float64
}

type retrieveUsecase struct {
	chunkRepo domain.ChunkRepository
	encoder   domain.VectorEncoder
	weights   FusionWeights
}

func NewRetrieveUsecase(chunkRepo domain.ChunkRepository, encoder domain.VectorEncoder, weights FusionWeights) RetrieveUsecase {
	if weights.Semantic <= 0 && weights.Lexical <= 0 {
		weights = FusionWeights{Semantic: 0.8, Lexical: 0.2}
	}
	return &retrieveUsecase{
		chunkRepo: chunkRepo,
		encoder:   encoder,
		weights:   weights,
	}
}

func (u *retrieveUsecase) Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]domain.RetrievalResult, error) {
	if query == "" {
		return nil, domain.NewError(domain.KindValidation, "query is required")
	}

	vec, err := u.EncodeQuery(ctx, query)
	if err != nil {
		// The store still serves lexical matches, so a gateway outage
		// degrades retrieval instead of failing it.
		slog.Warn("query_embedding_degraded", slog.String("error", err.Error()))
		vec = nil
	}
	return u.RetrieveWithVector(ctx, vec, query, opts)
}

func (u *retrieveUsecase) EncodeQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := u.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query vector, got %d", len(vectors))
	}
	return vectors[0], nil
}

func (u *retrieveUsecase) RetrieveWithVector(ctx context.Context, vec []float32, query string, opts RetrieveOptions) ([]domain.RetrievalResult, error) {
	if query == "" {
		return nil, domain.NewError(domain.KindValidation, "query is required")
	}
	if opts.SourceType != "" && !opts.SourceType.Valid() {
		return nil, domain.NewError(domain.KindValidation, "unknown source type %q", opts.SourceType)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	filter := domain.SearchFilter{
		SourceType:    opts.SourceType,
		ContentItemID: opts.ContentItemID,
		Category:      opts.Category,
		SourceIDs:     opts.SourceIDs,
	}
	hits, err := u.chunkRepo.HybridScan(ctx, vec, query, filter, topK*overscanFactor)
	if err != nil {
		return nil, fmt.Errorf("hybrid scan failed: %w", err)
	}

	results := u.fuse(hits, opts.MinScore)
	if len(results) > topK {
		results = results[:topK]
	}

	metrics.RecordRetrieval(string(opts.SourceType), len(results))
	return results, nil
}

type fusedHit struct {
	result       domain.RetrievalResult
	docUpdatedAt int64
}

// fuse combines the raw signals into one 0..1 score and orders hits
// deterministically: score desc, document recency desc, chunk id asc.
func (u *retrieveUsecase) fuse(hits []domain.ChunkHit, minScore float64) []domain.RetrievalResult {
	fused := make([]fusedHit, 0, len(hits))
	for _, hit := range hits {
		lexical := normalizeLexical(hit.LexicalScore)
		score := u.weights.Semantic*clamp01(hit.SemanticScore) + u.weights.Lexical*lexical
		if score < minScore {
			continue
		}

		meta := domain.ResultMeta{
			Title:         hit.DocMeta.Title(),
			URL:           hit.DocMeta.URL(),
			ContentItemID: hit.DocMeta.ContentItemID(),
			SemanticScore: hit.SemanticScore,
			LexicalScore:  hit.LexicalScore,
		}
		if hit.DocMeta.Catalog != nil {
			meta.Brand = hit.DocMeta.Catalog.Brand
			meta.Category = hit.DocMeta.Catalog.Category
			meta.Price = hit.DocMeta.Catalog.Price
			meta.Tags = hit.DocMeta.Catalog.Tags
		}

		fused = append(fused, fusedHit{
			result: domain.RetrievalResult{
				SourceType: hit.SourceType,
				SourceID:   hit.SourceID,
				ChunkID:    hit.Chunk.ID,
				Text:       hit.Chunk.Text,
				Score:      score,
				Meta:       meta,
			},
			docUpdatedAt: hit.DocUpdatedAt.UnixNano(),
		})
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].result.Score != fused[j].result.Score {
			return fused[i].result.Score > fused[j].result.Score
		}
		if fused[i].docUpdatedAt != fused[j].docUpdatedAt {
			return fused[i].docUpdatedAt > fused[j].docUpdatedAt
		}
		a, b := fused[i].result.ChunkID, fused[j].result.ChunkID
		return bytes.Compare(a[:], b[:]) < 0
	})

	results := make([]domain.RetrievalResult, len(fused))
	for i, f := range fused {
		results[i] = f.result
	}
	return results
}

// normalizeLexical maps the unbounded ts_rank signal into 0..1.
func normalizeLexical(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	return raw / (1 + raw)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
