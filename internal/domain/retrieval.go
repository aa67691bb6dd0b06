package domain

import "github.com/google/uuid"

// ResultMeta carries the metadata a retrieval hit exposes to ranking
// and composition. SemanticScore preserves the pre-fusion (or
// pre-rerank) signal for traceability.
type ResultMeta struct {
	Title         string
	URL           string
	Brand         string
	Category      string
	Price         float64
	Tags          []string
	ContentItemID string
	SemanticScore float64
	LexicalScore  float64
}

// RetrievalResult is a transient scored hit. Never persisted.
type RetrievalResult struct {
	SourceType SourceType
	SourceID   string
	ChunkID    uuid.UUID
	Text       string
	Score      float64 // fused, 0..1
	Meta       ResultMeta
}
