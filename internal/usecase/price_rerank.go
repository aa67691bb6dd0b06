package usecase

import (
	"log/slog"
	"sort"

	"reply-orchestrator/internal/domain"
)

// RerankWeights splits the final score between the relevance signal and
// budget closeness. The two must sum to 1; NewPriceReranker normalizes.
type RerankWeights struct {
	Semantic float64
	Price    float64
}

// PriceReranker reorders catalog candidates toward a budget implied by
// free text. Without a detectable budget the input is returned
// untouched, order and scores included.
type PriceReranker struct {
	extractor domain.BudgetExtractor
	weights   RerankWeights
}

func NewPriceReranker(extractor domain.BudgetExtractor, weights RerankWeights) *PriceReranker {
	sum := weights.Semantic + weights.Price
	if sum <= 0 {
		weights = RerankWeights{Semantic: 0.6, Price: 0.4}
	} else if sum != 1 {
		weights.Semantic /= sum
		weights.Price /= sum
	}
	return &PriceReranker{extractor: extractor, weights: weights}
}

// Rerank applies budget-aware scoring to results carrying a price. The
// pre-rerank score is preserved in result metadata.
func (r *PriceReranker) Rerank(results []domain.RetrievalResult, queryText string) []domain.RetrievalResult {
	budget, ok := r.extractor.Extract(queryText)
	if !ok {
		return results
	}

	slog.Debug("budget_detected",
		slog.Float64("min", budget.Min),
		slog.Float64("max", budget.Max),
	)

	reranked := make([]domain.RetrievalResult, len(results))
	for i, result := range results {
		result.Meta.SemanticScore = result.Score
		result.Score = r.weights.Semantic*result.Score + r.weights.Price*closeness(budget, result.Meta.Price)
		reranked[i] = result
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		if reranked[i].Score != reranked[j].Score {
			return reranked[i].Score > reranked[j].Score
		}
		return reranked[i].SourceID < reranked[j].SourceID
	})
	return reranked
}

// closeness is 1 inside the band and decays with the distance to the
// nearest edge, normalized by the band's half width.
func closeness(budget domain.Budget, price float64) float64 {
	if price <= 0 {
		return 0
	}
	if budget.Contains(price) {
		return 1
	}
	dist := budget.Min - price
	if price > budget.Max {
		dist = price - budget.Max
	}
	halfWidth := budget.HalfWidth()
	if halfWidth <= 0 {
		halfWidth = budget.Max * 0.1
		if halfWidth <= 0 {
			return 0
		}
	}
	return 1 / (1 + dist/halfWidth)
}
