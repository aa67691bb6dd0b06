package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// SourceType identifies which corpus a document belongs to.
type SourceType string

const (
	SourceTranscript  SourceType = "transcript"
	SourceCatalogItem SourceType = "catalog_item"
	SourceComment     SourceType = "comment"
)

// Valid reports whether st is one of the known source types.
func (st SourceType) Valid() bool {
	switch st {
	case SourceTranscript, SourceCatalogItem, SourceComment:
		return true
	}
	return false
}

// TranscriptMeta carries transcript-specific document metadata.
type TranscriptMeta struct {
	ContentItemID string
	Title         string
	URL           string
	Language      string
}

// CatalogMeta carries catalog-item document metadata.
type CatalogMeta struct {
	Title    string
	URL      string
	Brand    string
	Category string
	Price    float64
	Tags     []string
}

// CommentMeta carries prior-comment document metadata.
type CommentMeta struct {
	ContentItemID string
	Author        string
	PostedAt      time.Time
}

// DocumentMeta is a tagged union over the known per-source shapes.
// Exactly one member is non-nil; the storage adapter flattens it to a
// key-value map at the persistence edge.
type DocumentMeta struct {
	Transcript *TranscriptMeta
	Catalog    *CatalogMeta
	Comment    *CommentMeta
}

// ContentItemID returns the owning content item for transcript and
// comment documents, or empty for catalog documents.
func (m DocumentMeta) ContentItemID() string {
	switch {
	case m.Transcript != nil:
		return m.Transcript.ContentItemID
	case m.Comment != nil:
		return m.Comment.ContentItemID
	}
	return ""
}

// Title returns the display title regardless of the underlying shape.
func (m DocumentMeta) Title() string {
	switch {
	case m.Transcript != nil:
		return m.Transcript.Title
	case m.Catalog != nil:
		return m.Catalog.Title
	}
	return ""
}

// URL returns the public link regardless of the underlying shape.
func (m DocumentMeta) URL() string {
	switch {
	case m.Transcript != nil:
		return m.Transcript.URL
	case m.Catalog != nil:
		return m.Catalog.URL
	}
	return ""
}

// Document is one logical source unit, overwritten wholesale on
// re-ingestion with overwrite=true.
type Document struct {
	ID         uuid.UUID
	SourceType SourceType
	SourceID   string
	Meta       DocumentMeta
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ChunkMeta holds chunk-local metadata that may override document meta.
type ChunkMeta struct {
	Category      string
	TimeOffsetSec int
}

// Chunk is a retrievable unit of text. Embedding is nil when the
// embedding call degraded; such chunks stay lexically searchable.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	ChunkIndex int
	Text       string
	Embedding  *pgvector.Vector
	Meta       ChunkMeta
	CreatedAt  time.Time
}

// SearchFilter restricts a hybrid scan to matching chunks.
type SearchFilter struct {
	SourceType    SourceType // empty = all corpora
	ContentItemID string     // empty = no restriction
	Category      string     // empty = no restriction
	SourceIDs     []string   // empty = no restriction
}

// ChunkHit is one row returned by the store's hybrid scan, carrying both
// raw signals so the retriever can fuse them.
type ChunkHit struct {
	Chunk         Chunk
	SourceType    SourceType
	SourceID      string
	DocMeta       DocumentMeta
	SemanticScore float64 // cosine similarity, 0 when embedding is nil
	LexicalScore  float64 // raw ts_rank, unnormalized
	DocUpdatedAt  time.Time
}

// DocumentRepository manages documents and their chunks.
type DocumentRepository interface {
	// GetBySource returns nil, nil when no document exists.
	GetBySource(ctx context.Context, st SourceType, sourceID string) (*Document, error)

	// Create inserts a new document.
	Create(ctx context.Context, doc *Document) error

	// Touch bumps updated_at and replaces meta on re-ingestion.
	Touch(ctx context.Context, docID uuid.UUID, meta DocumentMeta, at time.Time) error

	// DeleteBySource removes the document and its chunks. Returns
	// KindNotFound when absent.
	DeleteBySource(ctx context.Context, st SourceType, sourceID string) error

	// Stats returns document and chunk counts per source type.
	Stats(ctx context.Context) (CorpusStats, error)
}

// ChunkRepository manages chunk rows and the hybrid scan.
type ChunkRepository interface {
	BulkInsert(ctx context.Context, chunks []Chunk) error

	DeleteByDocumentID(ctx context.Context, docID uuid.UUID) error

	// HybridScan returns up to limit candidate chunks with raw semantic
	// and lexical signals. queryVector may be nil, in which case only the
	// lexical signal is populated.
	HybridScan(ctx context.Context, queryVector []float32, queryText string, filter SearchFilter, limit int) ([]ChunkHit, error)
}

// CorpusStats summarizes the chunk store for the stats operation.
type CorpusStats struct {
	Documents map[SourceType]int
	Chunks    map[SourceType]int
	Embedded  int // chunks with a non-null embedding
}

// TransactionManager executes a function within one store transaction.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
