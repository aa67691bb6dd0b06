package usecase_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"reply-orchestrator/internal/domain"
)

// --- Mocks shared across the usecase tests ---

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) GetBySource(ctx context.Context, st domain.SourceType, sourceID string) (*domain.Document, error) {
	args := m.Called(ctx, st, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) Touch(ctx context.Context, docID uuid.UUID, meta domain.DocumentMeta, at time.Time) error {
	args := m.Called(ctx, docID, meta, at)
	return args.Error(0)
}

func (m *MockDocumentRepository) DeleteBySource(ctx context.Context, st domain.SourceType, sourceID string) error {
	args := m.Called(ctx, st, sourceID)
	return args.Error(0)
}

func (m *MockDocumentRepository) Stats(ctx context.Context) (domain.CorpusStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.CorpusStats), args.Error(1)
}

type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) BulkInsert(ctx context.Context, chunks []domain.Chunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockChunkRepository) DeleteByDocumentID(ctx context.Context, docID uuid.UUID) error {
	args := m.Called(ctx, docID)
	return args.Error(0)
}

func (m *MockChunkRepository) HybridScan(ctx context.Context, queryVector []float32, queryText string, filter domain.SearchFilter, limit int) ([]domain.ChunkHit, error) {
	args := m.Called(ctx, queryVector, queryText, filter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChunkHit), args.Error(1)
}

type MockContentItemRepository struct {
	mock.Mock
}

func (m *MockContentItemRepository) Get(ctx context.Context, id string) (*domain.ContentItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContentItem), args.Error(1)
}

func (m *MockContentItemRepository) Upsert(ctx context.Context, item *domain.ContentItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockContentItemRepository) SetStatus(ctx context.Context, id string, status domain.IndexStatus, failReason string) error {
	args := m.Called(ctx, id, status, failReason)
	return args.Error(0)
}

type MockPoolRepository struct {
	mock.Mock
}

func (m *MockPoolRepository) GetActive(ctx context.Context, contentItemID string) ([]domain.PoolEntry, error) {
	args := m.Called(ctx, contentItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PoolEntry), args.Error(1)
}

// ReplaceGeneration echoes the input entries back when the expectation
// does not configure a final set, matching the repository's behavior
// for a plain overwrite build.
func (m *MockPoolRepository) ReplaceGeneration(ctx context.Context, contentItemID string, entries []domain.PoolEntry, supplement bool, maxSize int) ([]domain.PoolEntry, error) {
	args := m.Called(ctx, contentItemID, entries, supplement, maxSize)
	if args.Get(0) == nil {
		return entries, args.Error(1)
	}
	return args.Get(0).([]domain.PoolEntry), args.Error(1)
}

func (m *MockPoolRepository) Stats(ctx context.Context) (int, int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Int(1), args.Error(2)
}

type MockCatalogClient struct {
	mock.Mock
}

func (m *MockCatalogClient) ListItems(ctx context.Context) ([]domain.CatalogItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CatalogItem), args.Error(1)
}

func (m *MockCatalogClient) GetContentItem(ctx context.Context, id string) (*domain.ContentItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContentItem), args.Error(1)
}

type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Directly execute the function
	return fn(ctx)
}

type MockVectorEncoder struct {
	mock.Mock
}

func (m *MockVectorEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockVectorEncoder) Version() string {
	return "test-encoder"
}

type MockCompletionClient struct {
	mock.Mock
}

func (m *MockCompletionClient) Complete(ctx context.Context, messages []domain.Message, schema map[string]any, opts domain.CompletionOptions) (*domain.Completion, error) {
	args := m.Called(ctx, messages, schema, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Completion), args.Error(1)
}

func (m *MockCompletionClient) Version() string {
	return "test-completer"
}

type MockIngestJobRepository struct {
	mock.Mock
}

func (m *MockIngestJobRepository) Enqueue(ctx context.Context, job *domain.IngestJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockIngestJobRepository) AcquireBatch(ctx context.Context, limit int) ([]domain.IngestJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.IngestJob), args.Error(1)
}

func (m *MockIngestJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	args := m.Called(ctx, id, status, errorMessage)
	return args.Error(0)
}

func (m *MockIngestJobRepository) PendingCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
