package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"reply-orchestrator/internal/domain"
	"reply-orchestrator/internal/usecase"
)

// Handler exposes the engine's operations over JSON. Every response
// uses the {success, data|error} envelope.
type Handler struct {
	ingestUsecase  usecase.IngestDocumentUsecase
	retrieveUC     usecase.RetrieveUsecase
	poolUsecase    usecase.BuildPoolUsecase
	composeUsecase usecase.ComposeAnswerUsecase
	statsUsecase   usecase.StatsUsecase
	itemRepo       domain.ContentItemRepository
	jobRepo        domain.IngestJobRepository
}

func NewHandler(
	ingestUsecase usecase.IngestDocumentUsecase,
	retrieveUC usecase.RetrieveUsecase,
	poolUsecase usecase.BuildPoolUsecase,
	composeUsecase usecase.ComposeAnswerUsecase,
	statsUsecase usecase.StatsUsecase,
	itemRepo domain.ContentItemRepository,
	jobRepo domain.IngestJobRepository,
) *Handler {
	return &Handler{
		ingestUsecase:  ingestUsecase,
		retrieveUC:     retrieveUC,
		poolUsecase:    poolUsecase,
		composeUsecase: composeUsecase,
		statsUsecase:   statsUsecase,
		itemRepo:       itemRepo,
		jobRepo:        jobRepo,
	}
}

// Register wires every route onto the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/v1/ingest", h.Ingest)
	e.POST("/v1/ingest/enqueue", h.EnqueueIngest)
	e.DELETE("/v1/documents", h.DeleteDocument)
	e.POST("/v1/retrieve", h.Retrieve)
	e.POST("/v1/pools/build", h.BuildPool)
	e.POST("/v1/answer", h.Answer)
	e.POST("/v1/answer/batch", h.AnswerBatch)
	e.GET("/v1/stats", h.Stats)
	e.GET("/v1/content-items/:id", h.ContentItemStatus)
}

type ingestRequest struct {
	SourceType string          `json:"source_type"`
	SourceID   string          `json:"source_id"`
	Text       string          `json:"text"`
	Meta       documentMetaDTO `json:"meta"`
	Overwrite  bool            `json:"overwrite"`
}

type documentMetaDTO struct {
	Transcript *transcriptMetaDTO `json:"transcript,omitempty"`
	Catalog    *catalogMetaDTO    `json:"catalog,omitempty"`
	Comment    *commentMetaDTO    `json:"comment,omitempty"`
}

type transcriptMetaDTO struct {
	ContentItemID string `json:"content_item_id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Language      string `json:"language"`
}

type catalogMetaDTO struct {
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Brand    string   `json:"brand"`
	Category string   `json:"category"`
	Price    float64  `json:"price"`
	Tags     []string `json:"tags"`
}

type commentMetaDTO struct {
	ContentItemID string     `json:"content_item_id"`
	Author        string     `json:"author"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
}

func (dto documentMetaDTO) toDomain() domain.DocumentMeta {
	var meta domain.DocumentMeta
	if dto.Transcript != nil {
		meta.Transcript = &domain.TranscriptMeta{
			ContentItemID: dto.Transcript.ContentItemID,
			Title:         dto.Transcript.Title,
			URL:           dto.Transcript.URL,
			Language:      dto.Transcript.Language,
		}
	}
	if dto.Catalog != nil {
		meta.Catalog = &domain.CatalogMeta{
			Title:    dto.Catalog.Title,
			URL:      dto.Catalog.URL,
			Brand:    dto.Catalog.Brand,
			Category: dto.Catalog.Category,
			Price:    dto.Catalog.Price,
			Tags:     dto.Catalog.Tags,
		}
	}
	if dto.Comment != nil {
		meta.Comment = &domain.CommentMeta{
			ContentItemID: dto.Comment.ContentItemID,
			Author:        dto.Comment.Author,
		}
		if dto.Comment.PostedAt != nil {
			meta.Comment.PostedAt = *dto.Comment.PostedAt
		}
	}
	return meta
}

// Ingest indexes one document synchronously.
// (POST /v1/ingest)
func (h *Handler) Ingest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := h.ingestUsecase.Ingest(c.Request().Context(), usecase.IngestInput{
		SourceType: domain.SourceType(req.SourceType),
		SourceID:   req.SourceID,
		Text:       req.Text,
		Meta:       req.Meta.toDomain(),
		Overwrite:  req.Overwrite,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, map[string]any{
		"document_id":    result.DocumentID.String(),
		"chunks_created": result.ChunksCreated,
	})
}

// EnqueueIngest queues a document for the background worker.
// (POST /v1/ingest/enqueue)
func (h *Handler) EnqueueIngest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	st := domain.SourceType(req.SourceType)
	if !st.Valid() {
		return badRequest(c, "unknown source type")
	}
	if req.SourceID == "" || req.Text == "" {
		return badRequest(c, "source_id and text are required")
	}

	now := time.Now()
	job := &domain.IngestJob{
		ID:         uuid.New(),
		SourceType: st,
		SourceID:   req.SourceID,
		Text:       req.Text,
		Meta:       req.Meta.toDomain(),
		Overwrite:  req.Overwrite,
		Status:     "new",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.jobRepo.Enqueue(c.Request().Context(), job); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, envelope{Success: true, Data: map[string]any{
		"job_id": job.ID.String(),
		"status": "queued",
	}})
}

type deleteDocumentRequest struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
}

// DeleteDocument removes one document and its chunks.
// (DELETE /v1/documents)
func (h *Handler) DeleteDocument(c echo.Context) error {
	var req deleteDocumentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.ingestUsecase.Delete(c.Request().Context(), domain.SourceType(req.SourceType), req.SourceID); err != nil {
		return respondError(c, err)
	}
	return respondOK(c, map[string]any{"deleted": true})
}

type retrieveRequest struct {
	Query         string   `json:"query"`
	TopK          int      `json:"top_k"`
	SourceType    string   `json:"source_type"`
	ContentItemID string   `json:"content_item_id"`
	Category      string   `json:"category"`
	SourceIDs     []string `json:"source_ids"`
	MinScore      float64  `json:"min_score"`
}

type retrievalResultDTO struct {
	SourceType    string   `json:"source_type"`
	SourceID      string   `json:"source_id"`
	ChunkID       string   `json:"chunk_id"`
	Text          string   `json:"text"`
	Score         float64  `json:"score"`
	Title         string   `json:"title,omitempty"`
	URL           string   `json:"url,omitempty"`
	Brand         string   `json:"brand,omitempty"`
	Category      string   `json:"category,omitempty"`
	Price         float64  `json:"price,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	ContentItemID string   `json:"content_item_id,omitempty"`
	SemanticScore float64  `json:"semantic_score"`
	LexicalScore  float64  `json:"lexical_score"`
}

// Retrieve runs one fused hybrid search.
// (POST /v1/retrieve)
func (h *Handler) Retrieve(c echo.Context) error {
	var req retrieveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	results, err := h.retrieveUC.Retrieve(c.Request().Context(), req.Query, usecase.RetrieveOptions{
		TopK:          req.TopK,
		SourceType:    domain.SourceType(req.SourceType),
		ContentItemID: req.ContentItemID,
		Category:      req.Category,
		SourceIDs:     req.SourceIDs,
		MinScore:      req.MinScore,
	})
	if err != nil {
		return respondError(c, err)
	}

	dtos := make([]retrievalResultDTO, 0, len(results))
	for _, r := range results {
		dtos = append(dtos, retrievalResultDTO{
			SourceType:    string(r.SourceType),
			SourceID:      r.SourceID,
			ChunkID:       r.ChunkID.String(),
			Text:          r.Text,
			Score:         r.Score,
			Title:         r.Meta.Title,
			URL:           r.Meta.URL,
			Brand:         r.Meta.Brand,
			Category:      r.Meta.Category,
			Price:         r.Meta.Price,
			Tags:          r.Meta.Tags,
			ContentItemID: r.Meta.ContentItemID,
			SemanticScore: r.Meta.SemanticScore,
			LexicalScore:  r.Meta.LexicalScore,
		})
	}
	return respondOK(c, map[string]any{"results": dtos})
}

type buildPoolRequest struct {
	ContentItemID     string  `json:"content_item_id"`
	MaxPoolSize       int     `json:"max_pool_size"`
	MinRelevanceScore float64 `json:"min_relevance_score"`
	Overwrite         bool    `json:"overwrite"`
}

// BuildPool recomputes the candidate pool for one content item.
// (POST /v1/pools/build)
func (h *Handler) BuildPool(c echo.Context) error {
	var req buildPoolRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := h.poolUsecase.Build(c.Request().Context(), usecase.BuildPoolInput{
		ContentItemID:     req.ContentItemID,
		MaxPoolSize:       req.MaxPoolSize,
		MinRelevanceScore: req.MinRelevanceScore,
		Overwrite:         req.Overwrite,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, map[string]any{
		"pool_size": result.PoolSize,
		"avg_score": result.AvgScore,
	})
}

type answerRequest struct {
	ContentItemID        string `json:"content_item_id"`
	Comment              string `json:"comment"`
	IncludePriorComments bool   `json:"include_prior_comments"`
}

type productDTO struct {
	CatalogItemID string  `json:"catalog_item_id"`
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Confidence    float64 `json:"confidence"`
	Reason        string  `json:"reason"`
}

type usageDTO struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type answerDTO struct {
	QueryID   string       `json:"query_id,omitempty"`
	ReplyText string       `json:"reply_text"`
	Products  []productDTO `json:"products"`
	Usage     usageDTO     `json:"usage"`
}

func toAnswerDTO(a domain.Answer) answerDTO {
	dto := answerDTO{
		QueryID:   a.QueryID,
		ReplyText: a.ReplyText,
		Products:  make([]productDTO, 0, len(a.Products)),
		Usage: usageDTO{
			PromptTokens:     a.Usage.PromptTokens,
			CompletionTokens: a.Usage.CompletionTokens,
			TotalTokens:      a.Usage.TotalTokens,
		},
	}
	for _, p := range a.Products {
		dto.Products = append(dto.Products, productDTO{
			CatalogItemID: p.CatalogItemID,
			Title:         p.Title,
			URL:           p.URL,
			Confidence:    p.Confidence,
			Reason:        p.Reason,
		})
	}
	return dto
}

// Answer drafts a grounded reply to one comment.
// (POST /v1/answer)
func (h *Handler) Answer(c echo.Context) error {
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	answer, err := h.composeUsecase.Compose(c.Request().Context(), usecase.ComposeInput{
		ContentItemID:        req.ContentItemID,
		Comment:              req.Comment,
		IncludePriorComments: req.IncludePriorComments,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, toAnswerDTO(*answer))
}

type batchAnswerRequest struct {
	ContentItemID        string `json:"content_item_id"`
	IncludePriorComments bool   `json:"include_prior_comments"`
	Queries              []struct {
		QueryID string `json:"query_id"`
		Text    string `json:"text"`
	} `json:"queries"`
}

type batchErrorDTO struct {
	QueryID string `json:"query_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// AnswerBatch drafts replies to many comments on one content item.
// (POST /v1/answer/batch)
func (h *Handler) AnswerBatch(c echo.Context) error {
	var req batchAnswerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	input := usecase.BatchInput{
		ContentItemID:        req.ContentItemID,
		IncludePriorComments: req.IncludePriorComments,
	}
	for _, q := range req.Queries {
		input.Queries = append(input.Queries, usecase.BatchQuery{QueryID: q.QueryID, Text: q.Text})
	}

	result, err := h.composeUsecase.ComposeBatch(c.Request().Context(), input)
	if err != nil {
		return respondError(c, err)
	}

	answers := make([]answerDTO, 0, len(result.Answers))
	for _, a := range result.Answers {
		answers = append(answers, toAnswerDTO(a))
	}
	batchErrors := make([]batchErrorDTO, 0, len(result.Errors))
	for _, e := range result.Errors {
		batchErrors = append(batchErrors, batchErrorDTO{
			QueryID: e.QueryID,
			Kind:    string(e.Kind),
			Message: e.Message,
		})
	}
	return respondOK(c, map[string]any{
		"answers": answers,
		"errors":  batchErrors,
		"usage": usageDTO{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
	})
}

// Stats reports corpus, pool and queue counters.
// (GET /v1/stats)
func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.statsUsecase.Collect(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	documents := make(map[string]int, len(stats.Documents))
	for st, n := range stats.Documents {
		documents[string(st)] = n
	}
	chunks := make(map[string]int, len(stats.Chunks))
	for st, n := range stats.Chunks {
		chunks[string(st)] = n
	}
	return respondOK(c, map[string]any{
		"documents":       documents,
		"chunks":          chunks,
		"embedded_chunks": stats.EmbeddedChunks,
		"pools":           stats.Pools,
		"pool_entries":    stats.PoolEntries,
		"pending_jobs":    stats.PendingJobs,
	})
}

// ContentItemStatus reports the indexing lifecycle of one content item.
// (GET /v1/content-items/:id)
func (h *Handler) ContentItemStatus(c echo.Context) error {
	id := c.Param("id")
	item, err := h.itemRepo.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if item == nil {
		return respondError(c, domain.NewError(domain.KindNotFound, "content item %s not found", id))
	}
	return respondOK(c, map[string]any{
		"id":          item.ID,
		"status":      string(item.Status),
		"fail_reason": item.FailReason,
	})
}
