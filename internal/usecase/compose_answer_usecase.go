package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reply-orchestrator/internal/domain"
	"reply-orchestrator/internal/infra/metrics"
)

// AnswerLimits bounds the context and output of one composition.
type AnswerLimits struct {
	MaxTranscriptChunks  int
	MaxCatalogCandidates int
	MaxCommentChunks     int
	MaxTokens            int
	Temperature          float64
	BatchConcurrency     int
}

func (l AnswerLimits) withDefaults() AnswerLimits {
	if l.MaxTranscriptChunks <= 0 {
		l.MaxTranscriptChunks = 6
	}
	if l.MaxCatalogCandidates <= 0 {
		l.MaxCatalogCandidates = 8
	}
	if l.MaxCommentChunks < 0 {
		l.MaxCommentChunks = 0
	}
	if l.MaxTokens <= 0 {
		l.MaxTokens = 768
	}
	if l.BatchConcurrency <= 0 {
		l.BatchConcurrency = 4
	}
	return l
}

// ComposeInput is one comment to answer.
type ComposeInput struct {
	ContentItemID        string
	Comment              string
	IncludePriorComments bool
}

type ComposeAnswerUsecase interface {
	Compose(ctx context.Context, input ComposeInput) (*domain.Answer, error)

	// ComposeBatch answers many comments on one content item, building
	// the grounding context once and fanning completions out under a
	// bounded semaphore.
	ComposeBatch(ctx context.Context, input BatchInput) (*BatchResult, error)
}

type composeAnswerUsecase struct {
	retriever       RetrieveUsecase
	poolRepo        domain.PoolRepository
	contentItemRepo domain.ContentItemRepository
	reranker        *PriceReranker
	prompts         PromptBuilder
	completer       domain.CompletionClient
	validator       OutputValidator
	limits          AnswerLimits
}

func NewComposeAnswerUsecase(
	retriever RetrieveUsecase,
	poolRepo domain.PoolRepository,
	contentItemRepo domain.ContentItemRepository,
	reranker *PriceReranker,
	prompts PromptBuilder,
	completer domain.CompletionClient,
	validator OutputValidator,
	limits AnswerLimits,
) ComposeAnswerUsecase {
	return &composeAnswerUsecase{
		retriever:       retriever,
		poolRepo:        poolRepo,
		contentItemRepo: contentItemRepo,
		reranker:        reranker,
		prompts:         prompts,
		completer:       completer,
		validator:       validator,
		limits:          limits.withDefaults(),
	}
}

// answerContext is the grounding material shared by every query against
// the same content item.
type answerContext struct {
	transcripts []TranscriptContext
	candidates  []domain.RetrievalResult
	comments    []CommentContext
}

func (u *composeAnswerUsecase) Compose(ctx context.Context, input ComposeInput) (*domain.Answer, error) {
	if input.ContentItemID == "" {
		return nil, domain.NewError(domain.KindValidation, "content item id is required")
	}
	if strings.TrimSpace(input.Comment) == "" {
		return nil, domain.NewError(domain.KindValidation, "comment is required")
	}

	if err := u.checkReady(ctx, input.ContentItemID); err != nil {
		return nil, err
	}

	grounding, err := u.buildContext(ctx, input.ContentItemID, input.Comment, input.IncludePriorComments)
	if err != nil {
		return nil, err
	}

	answer, err := u.answerOne(ctx, grounding, input.Comment)
	if err != nil {
		metrics.RecordAnswer("failed")
		return nil, err
	}
	metrics.RecordAnswer("completed")
	return answer, nil
}

func (u *composeAnswerUsecase) checkReady(ctx context.Context, contentItemID string) error {
	item, err := u.contentItemRepo.Get(ctx, contentItemID)
	if err != nil {
		return fmt.Errorf("failed to get content item: %w", err)
	}
	if item == nil {
		return domain.NewError(domain.KindStale, "content item %s is not indexed", contentItemID)
	}
	if item.Status != domain.StatusReady {
		return domain.NewError(domain.KindStale, "content item %s is not ready (status %s)", contentItemID, item.Status)
	}
	return nil
}

// buildContext retrieves the shared grounding material once. The query
// embedding is computed a single time and reused across the corpus
// scans.
func (u *composeAnswerUsecase) buildContext(ctx context.Context, contentItemID, query string, includeComments bool) (*answerContext, error) {
	vec, err := u.retriever.EncodeQuery(ctx, query)
	if err != nil {
		slog.Warn("query_embedding_degraded", slog.String("error", err.Error()))
		vec = nil
	}

	transcriptHits, err := u.retriever.RetrieveWithVector(ctx, vec, query, RetrieveOptions{
		TopK:          u.limits.MaxTranscriptChunks,
		SourceType:    domain.SourceTranscript,
		ContentItemID: contentItemID,
	})
	if err != nil {
		return nil, fmt.Errorf("transcript retrieval failed: %w", err)
	}

	candidates, err := u.retrieveCandidates(ctx, vec, query, contentItemID)
	if err != nil {
		return nil, err
	}

	if len(transcriptHits) == 0 && len(candidates) == 0 {
		return nil, domain.NewError(domain.KindStale,
			"no grounding context for content item %s", contentItemID)
	}

	grounding := &answerContext{candidates: candidates}
	for _, hit := range transcriptHits {
		grounding.transcripts = append(grounding.transcripts, TranscriptContext{
			ChunkID: hit.ChunkID.String(),
			Text:    hit.Text,
			Score:   hit.Score,
		})
	}

	if includeComments && u.limits.MaxCommentChunks > 0 {
		commentHits, err := u.retriever.RetrieveWithVector(ctx, vec, query, RetrieveOptions{
			TopK:          u.limits.MaxCommentChunks,
			SourceType:    domain.SourceComment,
			ContentItemID: contentItemID,
		})
		if err != nil {
			return nil, fmt.Errorf("comment retrieval failed: %w", err)
		}
		for _, hit := range commentHits {
			grounding.comments = append(grounding.comments, CommentContext{Text: hit.Text})
		}
	}

	return grounding, nil
}

// retrieveCandidates intersects the precomputed pool with retrieval
// over the catalog corpus. An empty pool yields zero candidates, not an
// error.
func (u *composeAnswerUsecase) retrieveCandidates(ctx context.Context, vec []float32, query, contentItemID string) ([]domain.RetrievalResult, error) {
	pool, err := u.poolRepo.GetActive(ctx, contentItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate pool: %w", err)
	}
	if len(pool) == 0 {
		return nil, nil
	}

	poolIDs := make([]string, len(pool))
	for i, entry := range pool {
		poolIDs[i] = entry.CatalogItemID
	}

	candidates, err := u.retriever.RetrieveWithVector(ctx, vec, query, RetrieveOptions{
		TopK:       u.limits.MaxCatalogCandidates,
		SourceType: domain.SourceCatalogItem,
		SourceIDs:  poolIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog retrieval failed: %w", err)
	}
	return candidates, nil
}

// answerOne runs a single completion over the shared grounding. The
// reranker adjusts candidate order per query since each comment may
// carry its own budget.
func (u *composeAnswerUsecase) answerOne(ctx context.Context, grounding *answerContext, comment string) (*domain.Answer, error) {
	ranked := u.reranker.Rerank(grounding.candidates, comment)

	candidateCtx := make([]CandidateContext, 0, len(ranked))
	for _, hit := range ranked {
		candidateCtx = append(candidateCtx, CandidateContext{
			CatalogItemID: hit.SourceID,
			Title:         hit.Meta.Title,
			URL:           hit.Meta.URL,
			Brand:         hit.Meta.Brand,
			Category:      hit.Meta.Category,
			Price:         hit.Meta.Price,
			Score:         hit.Score,
			Snippet:       hit.Text,
		})
	}

	messages, err := u.prompts.Build(PromptInput{
		Comment:     comment,
		Transcripts: grounding.transcripts,
		Candidates:  candidateCtx,
		Comments:    grounding.comments,
	})
	if err != nil {
		return nil, domain.WrapError(domain.KindStale, err, "cannot compose grounded prompt")
	}

	opts := domain.CompletionOptions{
		Temperature: u.limits.Temperature,
		MaxTokens:   u.limits.MaxTokens,
	}

	var usage domain.TokenUsage
	completion, err := u.completer.Complete(ctx, messages, draftReplySchema, opts)
	if err != nil {
		return nil, err
	}
	usage.Add(completion.Usage)

	draft, validateErr := u.validator.Validate(completion.Text, candidateCtx)
	if validateErr != nil {
		// One repair attempt for malformed output, then the query fails.
		slog.Warn("draft_repair_attempt", slog.String("error", validateErr.Error()))
		repairMessages := append(messages, domain.Message{
			Role:    "user",
			Content: "The previous output was not valid JSON. Respond again with ONLY a JSON object matching the <format> exactly.",
		})
		completion, err = u.completer.Complete(ctx, repairMessages, draftReplySchema, opts)
		if err != nil {
			return nil, err
		}
		usage.Add(completion.Usage)
		draft, validateErr = u.validator.Validate(completion.Text, candidateCtx)
		if validateErr != nil {
			return nil, domain.WrapError(domain.KindDependency, validateErr, "completion output unusable after repair")
		}
	}

	answer := &domain.Answer{
		ReplyText: draft.ReplyText,
		Usage:     usage,
	}
	titles := make(map[string]string, len(candidateCtx))
	for _, c := range candidateCtx {
		titles[c.CatalogItemID] = c.Title
	}
	for _, p := range draft.Products {
		answer.Products = append(answer.Products, domain.RecommendedProduct{
			CatalogItemID: p.CatalogItemID,
			Title:         titles[p.CatalogItemID],
			URL:           p.URL,
			Confidence:    p.Confidence,
			Reason:        p.Reason,
		})
	}
	return answer, nil
}
