package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reply-orchestrator/internal/domain"
	"reply-orchestrator/internal/usecase"
)

func priced(id string, score, price float64) domain.RetrievalResult {
	return domain.RetrievalResult{
		SourceType: domain.SourceCatalogItem,
		SourceID:   id,
		Score:      score,
		Meta:       domain.ResultMeta{Price: price},
	}
}

func newReranker() *usecase.PriceReranker {
	return usecase.NewPriceReranker(domain.NewBudgetExtractor(), usecase.RerankWeights{Semantic: 0.6, Price: 0.4})
}

func TestRerank_NoBudgetReturnsInputUnchanged(t *testing.T) {
	input := []domain.RetrievalResult{
		priced("a", 0.9, 50000),
		priced("b", 0.5, 1000),
	}

	out := newReranker().Rerank(input, "which one sounds better for vocals?")

	assert.Equal(t, input, out)
	assert.InDelta(t, 0.9, out[0].Score, 1e-9)
}

func TestRerank_BudgetReordersTowardBand(t *testing.T) {
	input := []domain.RetrievalResult{
		priced("expensive", 0.9, 60000),
		priced("in-band", 0.7, 18000),
	}

	out := newReranker().Rerank(input, "ขอแนะนำหน่อยครับ งบ 20000")

	// budget band is 16000..24000; the in-band item wins despite the
	// lower relevance score.
	assert.Equal(t, "in-band", out[0].SourceID)
	assert.InDelta(t, 0.6*0.7+0.4*1.0, out[0].Score, 1e-9)

	// 60000 is 36000 past the 24000 edge; half width is 4000.
	closeness := 1.0 / (1.0 + 36000.0/4000.0)
	assert.InDelta(t, 0.6*0.9+0.4*closeness, out[1].Score, 1e-9)
}

func TestRerank_PreservesPriorScoreInMeta(t *testing.T) {
	input := []domain.RetrievalResult{priced("a", 0.8, 20000)}

	out := newReranker().Rerank(input, "budget 20000")

	assert.InDelta(t, 0.8, out[0].Meta.SemanticScore, 1e-9)
	assert.InDelta(t, 0.6*0.8+0.4, out[0].Score, 1e-9)
}

func TestRerank_ExplicitRange(t *testing.T) {
	input := []domain.RetrievalResult{
		priced("below", 0.9, 10000),
		priced("inside", 0.6, 20000),
	}

	out := newReranker().Rerank(input, "looking for something 15000-25000")

	assert.Equal(t, "inside", out[0].SourceID)
}

func TestRerank_ZeroPriceGetsNoCloseness(t *testing.T) {
	input := []domain.RetrievalResult{
		priced("unpriced", 0.9, 0),
		priced("in-band", 0.9, 20000),
	}

	out := newReranker().Rerank(input, "budget 20k")

	assert.Equal(t, "in-band", out[0].SourceID)
	assert.InDelta(t, 0.6*0.9, out[1].Score, 1e-9)
}

func TestNewPriceReranker_NormalizesWeights(t *testing.T) {
	r := usecase.NewPriceReranker(domain.NewBudgetExtractor(), usecase.RerankWeights{Semantic: 3, Price: 1})

	out := r.Rerank([]domain.RetrievalResult{priced("a", 0.8, 20000)}, "budget 20000")

	assert.InDelta(t, 0.75*0.8+0.25, out[0].Score, 1e-9)
}
