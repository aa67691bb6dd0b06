package domain_test

import (
	"testing"

	"reply-orchestrator/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestBudgetExtractor_Extract(t *testing.T) {
	extractor := domain.NewBudgetExtractor()

	t.Run("Explicit range", func(t *testing.T) {
		b, ok := extractor.Extract("looking for a tripod 15000-25000 baht")
		assert.True(t, ok)
		assert.Equal(t, 15000.0, b.Min)
		assert.Equal(t, 25000.0, b.Max)
	})

	t.Run("Range with k suffix and separators", func(t *testing.T) {
		b, ok := extractor.Extract("something around 15k - 20k")
		assert.True(t, ok)
		assert.Equal(t, 15000.0, b.Min)
		assert.Equal(t, 20000.0, b.Max)
	})

	t.Run("Reversed range is normalized", func(t *testing.T) {
		b, ok := extractor.Extract("25000~15000")
		assert.True(t, ok)
		assert.Equal(t, 15000.0, b.Min)
		assert.Equal(t, 25000.0, b.Max)
	})

	t.Run("Keyword figure gets a spread", func(t *testing.T) {
		b, ok := extractor.Extract("my budget 20000 for a camera")
		assert.True(t, ok)
		assert.InDelta(t, 16000.0, b.Min, 0.001)
		assert.InDelta(t, 24000.0, b.Max, 0.001)
	})

	t.Run("Thai budget keyword", func(t *testing.T) {
		b, ok := extractor.Extract("มีงบ 20000 แนะนำตัวไหนดี")
		assert.True(t, ok)
		assert.InDelta(t, 16000.0, b.Min, 0.001)
		assert.InDelta(t, 24000.0, b.Max, 0.001)
	})

	t.Run("Thai upper bound keyword with thousands separator", func(t *testing.T) {
		b, ok := extractor.Extract("ไม่เกิน 5,000 บาท")
		assert.True(t, ok)
		assert.InDelta(t, 4000.0, b.Min, 0.001)
		assert.InDelta(t, 6000.0, b.Max, 0.001)
	})

	t.Run("Bare k shorthand", func(t *testing.T) {
		b, ok := extractor.Extract("any good mic 20k?")
		assert.True(t, ok)
		assert.InDelta(t, 16000.0, b.Min, 0.001)
		assert.InDelta(t, 24000.0, b.Max, 0.001)
	})

	t.Run("No price signal", func(t *testing.T) {
		_, ok := extractor.Extract("which tripod do you use in this video?")
		assert.False(t, ok)
	})

	t.Run("Model number is not a range", func(t *testing.T) {
		_, ok := extractor.Extract("is the i5-13500 enough for editing?")
		assert.False(t, ok)

		_, ok = extractor.Extract("thoughts on the WH-1000XM5?")
		assert.False(t, ok)
	})

	t.Run("Model number alongside a real budget", func(t *testing.T) {
		b, ok := extractor.Extract("i5-13500 build under 30000")
		assert.True(t, ok)
		assert.InDelta(t, 24000.0, b.Min, 0.001)
		assert.InDelta(t, 36000.0, b.Max, 0.001)
	})
}

func TestBudget_Contains(t *testing.T) {
	b := domain.Budget{Min: 4000, Max: 6000}
	assert.True(t, b.Contains(5000))
	assert.True(t, b.Contains(4000))
	assert.True(t, b.Contains(6000))
	assert.False(t, b.Contains(6001))
	assert.Equal(t, 1000.0, b.HalfWidth())
}
