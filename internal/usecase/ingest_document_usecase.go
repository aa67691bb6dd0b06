package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"reply-orchestrator/internal/domain"
	"reply-orchestrator/internal/infra/metrics"
)

// IngestInput carries one source unit to (re)index.
type IngestInput struct {
	SourceType domain.SourceType
	SourceID   string
	Text       string
	Meta       domain.DocumentMeta
	Overwrite  bool
}

// IngestResult reports what ingestion produced.
type IngestResult struct {
	DocumentID    uuid.UUID
	ChunksCreated int
}

type IngestDocumentUsecase interface {
	// Ingest chunks, embeds and stores one document. Re-ingesting an
	// existing source without Overwrite returns a conflict error.
	Ingest(ctx context.Context, input IngestInput) (*IngestResult, error)

	// Delete removes a document and its chunks.
	Delete(ctx context.Context, st domain.SourceType, sourceID string) error
}

type ingestDocumentUsecase struct {
	docRepo         domain.DocumentRepository
	chunkRepo       domain.ChunkRepository
	contentItemRepo domain.ContentItemRepository
	txManager       domain.TransactionManager
	chunker         domain.Chunker
	encoder         domain.VectorEncoder
	embedRetries    int
}

func NewIngestDocumentUsecase(
	docRepo domain.DocumentRepository,
	chunkRepo domain.ChunkRepository,
	contentItemRepo domain.ContentItemRepository,
	txManager domain.TransactionManager,
	chunker domain.Chunker,
	encoder domain.VectorEncoder,
	embedRetries int,
) IngestDocumentUsecase {
	if embedRetries < 0 {
		embedRetries = 0
	}
	return &ingestDocumentUsecase{
		docRepo:         docRepo,
		chunkRepo:       chunkRepo,
		contentItemRepo: contentItemRepo,
		txManager:       txManager,
		chunker:         chunker,
		encoder:         encoder,
		embedRetries:    embedRetries,
	}
}

func (u *ingestDocumentUsecase) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if err := validateIngestInput(input); err != nil {
		return nil, err
	}

	pieces := u.chunker.Chunk(input.Text)
	if len(pieces) == 0 {
		return nil, domain.NewError(domain.KindValidation, "text produced no chunks")
	}

	// A duplicate without overwrite is rejected up front, before any
	// status transition or embedding call.
	if !input.Overwrite {
		doc, err := u.docRepo.GetBySource(ctx, input.SourceType, input.SourceID)
		if err != nil {
			return nil, fmt.Errorf("failed to get document: %w", err)
		}
		if doc != nil {
			return nil, domain.NewError(domain.KindConflict,
				"document %s/%s already ingested", input.SourceType, input.SourceID)
		}
	}

	contentItemID := ""
	if input.SourceType == domain.SourceTranscript {
		contentItemID = input.Meta.ContentItemID()
		if err := u.markIndexing(ctx, contentItemID); err != nil {
			return nil, err
		}
	}

	result, err := u.ingestChunks(ctx, input, pieces)

	if input.SourceType == domain.SourceTranscript {
		u.recordOutcome(ctx, contentItemID, err)
	}
	if err != nil {
		metrics.RecordIngestJob(string(input.SourceType), "failed")
		return nil, err
	}
	metrics.RecordIngestJob(string(input.SourceType), "completed")
	return result, nil
}

func (u *ingestDocumentUsecase) ingestChunks(ctx context.Context, input IngestInput, pieces []domain.TextChunk) (*IngestResult, error) {
	embeddings := u.embedAll(ctx, pieces)

	now := time.Now()
	var result IngestResult

	err := u.txManager.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := u.docRepo.GetBySource(ctx, input.SourceType, input.SourceID)
		if err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}

		if doc != nil {
			if !input.Overwrite {
				return domain.NewError(domain.KindConflict,
					"document %s/%s already ingested", input.SourceType, input.SourceID)
			}
			if err := u.chunkRepo.DeleteByDocumentID(ctx, doc.ID); err != nil {
				return fmt.Errorf("failed to delete old chunks: %w", err)
			}
			if err := u.docRepo.Touch(ctx, doc.ID, input.Meta, now); err != nil {
				return fmt.Errorf("failed to touch document: %w", err)
			}
		} else {
			doc = &domain.Document{
				ID:         uuid.New(),
				SourceType: input.SourceType,
				SourceID:   input.SourceID,
				Meta:       input.Meta,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := u.docRepo.Create(ctx, doc); err != nil {
				return fmt.Errorf("failed to create document: %w", err)
			}
		}

		chunks := make([]domain.Chunk, 0, len(pieces))
		for i, piece := range pieces {
			chunk := domain.Chunk{
				ID:         uuid.New(),
				DocumentID: doc.ID,
				ChunkIndex: piece.Index,
				Text:       piece.Text,
				CreatedAt:  now,
			}
			if embeddings[i] != nil {
				vec := pgvector.NewVector(embeddings[i])
				chunk.Embedding = &vec
			}
			chunks = append(chunks, chunk)
		}
		if err := u.chunkRepo.BulkInsert(ctx, chunks); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}

		result = IngestResult{DocumentID: doc.ID, ChunksCreated: len(chunks)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("document_ingested",
		slog.String("source_type", string(input.SourceType)),
		slog.String("source_id", input.SourceID),
		slog.Int("chunks", result.ChunksCreated),
		slog.Bool("overwrite", input.Overwrite),
	)
	return &result, nil
}

// embedAll encodes every chunk, degrading failed chunks to a nil vector
// so they remain lexically searchable. A gateway outage never fails the
// whole document.
func (u *ingestDocumentUsecase) embedAll(ctx context.Context, pieces []domain.TextChunk) [][]float32 {
	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}

	if vectors, err := u.encoder.Encode(ctx, texts); err == nil && len(vectors) == len(texts) {
		return vectors
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		for attempt := 0; attempt <= u.embedRetries; attempt++ {
			vectors, err := u.encoder.Encode(ctx, []string{text})
			if err == nil && len(vectors) == 1 {
				out[i] = vectors[0]
				break
			}
			if attempt == u.embedRetries {
				slog.Warn("chunk_embedding_degraded",
					slog.Int("chunk_index", i),
					slog.String("error", errString(err)),
				)
			}
		}
	}
	return out
}

func (u *ingestDocumentUsecase) Delete(ctx context.Context, st domain.SourceType, sourceID string) error {
	if !st.Valid() {
		return domain.NewError(domain.KindValidation, "unknown source type %q", st)
	}
	if sourceID == "" {
		return domain.NewError(domain.KindValidation, "source id is required")
	}
	return u.txManager.RunInTx(ctx, func(ctx context.Context) error {
		return u.docRepo.DeleteBySource(ctx, st, sourceID)
	})
}

func (u *ingestDocumentUsecase) markIndexing(ctx context.Context, contentItemID string) error {
	item, err := u.contentItemRepo.Get(ctx, contentItemID)
	if err != nil {
		return fmt.Errorf("failed to get content item: %w", err)
	}
	if item == nil {
		item = &domain.ContentItem{ID: contentItemID, Status: domain.StatusIndexing}
		if err := u.contentItemRepo.Upsert(ctx, item); err != nil {
			return fmt.Errorf("failed to create content item: %w", err)
		}
		return nil
	}
	return u.contentItemRepo.SetStatus(ctx, contentItemID, domain.StatusIndexing, "")
}

func (u *ingestDocumentUsecase) recordOutcome(ctx context.Context, contentItemID string, ingestErr error) {
	status := domain.StatusReady
	reason := ""
	// A conflict from a racing duplicate means the document is already
	// ingested; the item is ready, not failed.
	if ingestErr != nil && domain.KindOf(ingestErr) != domain.KindConflict {
		status = domain.StatusFailed
		reason = ingestErr.Error()
	}
	if err := u.contentItemRepo.SetStatus(ctx, contentItemID, status, reason); err != nil {
		slog.Error("content_item_status_update_failed",
			slog.String("content_item_id", contentItemID),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}
}

func validateIngestInput(input IngestInput) error {
	if !input.SourceType.Valid() {
		return domain.NewError(domain.KindValidation, "unknown source type %q", input.SourceType)
	}
	if input.SourceID == "" {
		return domain.NewError(domain.KindValidation, "source id is required")
	}
	if input.Text == "" {
		return domain.NewError(domain.KindValidation, "text is required")
	}
	switch input.SourceType {
	case domain.SourceTranscript:
		if input.Meta.Transcript == nil || input.Meta.Transcript.ContentItemID == "" {
			return domain.NewError(domain.KindValidation, "transcript meta with content item id is required")
		}
	case domain.SourceCatalogItem:
		if input.Meta.Catalog == nil {
			return domain.NewError(domain.KindValidation, "catalog meta is required")
		}
	case domain.SourceComment:
		if input.Meta.Comment == nil || input.Meta.Comment.ContentItemID == "" {
			return domain.NewError(domain.KindValidation, "comment meta with content item id is required")
		}
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
