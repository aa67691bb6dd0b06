package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"reply-orchestrator/internal/adapter/httpapi"
	"reply-orchestrator/internal/domain"
	"reply-orchestrator/internal/usecase"
)

type stubIngestUsecase struct {
	result        *usecase.IngestResult
	err           error
	capturedInput usecase.IngestInput
}

func (s *stubIngestUsecase) Ingest(ctx context.Context, input usecase.IngestInput) (*usecase.IngestResult, error) {
	s.capturedInput = input
	return s.result, s.err
}

func (s *stubIngestUsecase) Delete(ctx context.Context, st domain.SourceType, sourceID string) error {
	return s.err
}

type stubRetrieveUsecase struct {
	results []domain.RetrievalResult
	err     error
}

func (s *stubRetrieveUsecase) Retrieve(ctx context.Context, query string, opts usecase.RetrieveOptions) ([]domain.RetrievalResult, error) {
	return s.results, s.err
}

func (s *stubRetrieveUsecase) RetrieveWithVector(ctx context.Context, vec []float32, query string, opts usecase.RetrieveOptions) ([]domain.RetrievalResult, error) {
	return s.results, s.err
}

func (s *stubRetrieveUsecase) EncodeQuery(ctx context.Context, query string) ([]float32, error) {
	return nil, s.err
}

type stubComposeUsecase struct {
	answer *domain.Answer
	batch  *usecase.BatchResult
	err    error
}

func (s *stubComposeUsecase) Compose(ctx context.Context, input usecase.ComposeInput) (*domain.Answer, error) {
	return s.answer, s.err
}

func (s *stubComposeUsecase) ComposeBatch(ctx context.Context, input usecase.BatchInput) (*usecase.BatchResult, error) {
	return s.batch, s.err
}

type stubJobRepo struct {
	enqueued *domain.IngestJob
	err      error
}

func (s *stubJobRepo) Enqueue(ctx context.Context, job *domain.IngestJob) error {
	s.enqueued = job
	return s.err
}

func (s *stubJobRepo) AcquireBatch(ctx context.Context, limit int) ([]domain.IngestJob, error) {
	return nil, nil
}

func (s *stubJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	return nil
}

func (s *stubJobRepo) PendingCount(ctx context.Context) (int, error) { return 0, nil }

type stubItemRepo struct {
	item *domain.ContentItem
	err  error
}

func (s *stubItemRepo) Get(ctx context.Context, id string) (*domain.ContentItem, error) {
	return s.item, s.err
}

func (s *stubItemRepo) Upsert(ctx context.Context, item *domain.ContentItem) error { return nil }

func (s *stubItemRepo) SetStatus(ctx context.Context, id string, status domain.IndexStatus, failReason string) error {
	return nil
}

func newContext(e *echo.Echo, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_Ingest(t *testing.T) {
	e := echo.New()
	docID := uuid.New()
	ingest := &stubIngestUsecase{result: &usecase.IngestResult{DocumentID: docID, ChunksCreated: 4}}
	handler := httpapi.NewHandler(ingest, nil, nil, nil, nil, nil, nil)

	body := `{
		"source_type": "transcript",
		"source_id": "vid-1",
		"text": "full transcript text",
		"meta": {"transcript": {"content_item_id": "vid-1", "title": "Review", "url": "https://example.com/v/1", "language": "th"}}
	}`
	c, rec := newContext(e, http.MethodPost, "/v1/ingest", body)

	if assert.NoError(t, handler.Ingest(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Success bool `json:"success"`
			Data    struct {
				DocumentID    string `json:"document_id"`
				ChunksCreated int    `json:"chunks_created"`
			} `json:"data"`
		}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, docID.String(), resp.Data.DocumentID)
		assert.Equal(t, 4, resp.Data.ChunksCreated)
	}

	assert.Equal(t, domain.SourceTranscript, ingest.capturedInput.SourceType)
	assert.Equal(t, "Review", ingest.capturedInput.Meta.Transcript.Title)
}

func TestHandler_Ingest_ConflictStatus(t *testing.T) {
	e := echo.New()
	ingest := &stubIngestUsecase{err: domain.NewError(domain.KindConflict, "document transcript/vid-1 already exists")}
	handler := httpapi.NewHandler(ingest, nil, nil, nil, nil, nil, nil)

	c, rec := newContext(e, http.MethodPost, "/v1/ingest", `{"source_type":"transcript","source_id":"vid-1","text":"x"}`)

	if assert.NoError(t, handler.Ingest(c)) {
		assert.Equal(t, http.StatusConflict, rec.Code)

		var resp struct {
			Success bool `json:"success"`
			Error   struct {
				Kind string `json:"kind"`
			} `json:"error"`
		}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, "conflict", resp.Error.Kind)
	}
}

func TestHandler_EnqueueIngest(t *testing.T) {
	e := echo.New()
	jobs := &stubJobRepo{}
	handler := httpapi.NewHandler(nil, nil, nil, nil, nil, nil, jobs)

	body := `{"source_type":"comment","source_id":"cm-9","text":"where to buy?","meta":{"comment":{"content_item_id":"vid-1","author":"a"}}}`
	c, rec := newContext(e, http.MethodPost, "/v1/ingest/enqueue", body)

	if assert.NoError(t, handler.EnqueueIngest(c)) {
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.NotNil(t, jobs.enqueued)
		assert.Equal(t, domain.SourceComment, jobs.enqueued.SourceType)
		assert.Equal(t, "new", jobs.enqueued.Status)
		assert.Contains(t, rec.Body.String(), `"status":"queued"`)
	}
}

func TestHandler_EnqueueIngest_RejectsUnknownSourceType(t *testing.T) {
	e := echo.New()
	handler := httpapi.NewHandler(nil, nil, nil, nil, nil, nil, &stubJobRepo{})

	c, rec := newContext(e, http.MethodPost, "/v1/ingest/enqueue", `{"source_type":"podcast","source_id":"x","text":"y"}`)

	if assert.NoError(t, handler.EnqueueIngest(c)) {
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestHandler_Retrieve(t *testing.T) {
	e := echo.New()
	chunkID := uuid.New()
	retrieve := &stubRetrieveUsecase{results: []domain.RetrievalResult{
		{
			SourceType: domain.SourceCatalogItem,
			SourceID:   "sku-1",
			ChunkID:    chunkID,
			Text:       "Lightweight travel tripod.",
			Score:      0.82,
			Meta: domain.ResultMeta{
				Title:         "Travel Tripod",
				URL:           "https://shop.example.com/sku-1",
				Price:         4590,
				SemanticScore: 0.72,
				LexicalScore:  0.1,
			},
		},
	}}
	handler := httpapi.NewHandler(nil, retrieve, nil, nil, nil, nil, nil)

	c, rec := newContext(e, http.MethodPost, "/v1/retrieve", `{"query":"tripod","top_k":5,"source_type":"catalog_item"}`)

	if assert.NoError(t, handler.Retrieve(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data struct {
				Results []struct {
					SourceID string  `json:"source_id"`
					ChunkID  string  `json:"chunk_id"`
					Score    float64 `json:"score"`
					Title    string  `json:"title"`
				} `json:"results"`
			} `json:"data"`
		}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, len(resp.Data.Results))
		assert.Equal(t, "sku-1", resp.Data.Results[0].SourceID)
		assert.Equal(t, chunkID.String(), resp.Data.Results[0].ChunkID)
		assert.Equal(t, "Travel Tripod", resp.Data.Results[0].Title)
	}
}

func TestHandler_Answer(t *testing.T) {
	e := echo.New()
	compose := &stubComposeUsecase{answer: &domain.Answer{
		ReplyText: "The tripod at 4,590 THB fits your budget.",
		Products: []domain.RecommendedProduct{
			{CatalogItemID: "sku-1", Title: "Travel Tripod", URL: "https://shop.example.com/sku-1", Confidence: 0.9, Reason: "within budget"},
		},
		Usage: domain.TokenUsage{PromptTokens: 120, CompletionTokens: 40, TotalTokens: 160},
	}}
	handler := httpapi.NewHandler(nil, nil, nil, compose, nil, nil, nil)

	c, rec := newContext(e, http.MethodPost, "/v1/answer", `{"content_item_id":"vid-1","comment":"tripod under 5000?"}`)

	if assert.NoError(t, handler.Answer(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data struct {
				ReplyText string `json:"reply_text"`
				Products  []struct {
					CatalogItemID string `json:"catalog_item_id"`
				} `json:"products"`
				Usage struct {
					TotalTokens int `json:"total_tokens"`
				} `json:"usage"`
			} `json:"data"`
		}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "The tripod at 4,590 THB fits your budget.", resp.Data.ReplyText)
		assert.Equal(t, 1, len(resp.Data.Products))
		assert.Equal(t, "sku-1", resp.Data.Products[0].CatalogItemID)
		assert.Equal(t, 160, resp.Data.Usage.TotalTokens)
	}
}

func TestHandler_Answer_StaleStatus(t *testing.T) {
	e := echo.New()
	compose := &stubComposeUsecase{err: domain.NewError(domain.KindStale, "content item vid-1 is not ready")}
	handler := httpapi.NewHandler(nil, nil, nil, compose, nil, nil, nil)

	c, rec := newContext(e, http.MethodPost, "/v1/answer", `{"content_item_id":"vid-1","comment":"hi"}`)

	if assert.NoError(t, handler.Answer(c)) {
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), `"kind":"stale_state"`)
	}
}

func TestHandler_AnswerBatch(t *testing.T) {
	e := echo.New()
	compose := &stubComposeUsecase{batch: &usecase.BatchResult{
		Answers: []domain.Answer{{QueryID: "q1", ReplyText: "answer one"}},
		Errors:  []usecase.BatchError{{QueryID: "q2", Kind: domain.KindDependency, Message: "completion unavailable"}},
		Usage:   domain.TokenUsage{TotalTokens: 300},
	}}
	handler := httpapi.NewHandler(nil, nil, nil, compose, nil, nil, nil)

	body := `{"content_item_id":"vid-1","queries":[{"query_id":"q1","text":"a"},{"query_id":"q2","text":"b"}]}`
	c, rec := newContext(e, http.MethodPost, "/v1/answer/batch", body)

	if assert.NoError(t, handler.AnswerBatch(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data struct {
				Answers []struct {
					QueryID string `json:"query_id"`
				} `json:"answers"`
				Errors []struct {
					QueryID string `json:"query_id"`
					Kind    string `json:"kind"`
				} `json:"errors"`
			} `json:"data"`
		}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, len(resp.Data.Answers))
		assert.Equal(t, "q1", resp.Data.Answers[0].QueryID)
		assert.Equal(t, 1, len(resp.Data.Errors))
		assert.Equal(t, "dependency", resp.Data.Errors[0].Kind)
	}
}

func TestHandler_ContentItemStatus_NotFound(t *testing.T) {
	e := echo.New()
	handler := httpapi.NewHandler(nil, nil, nil, nil, nil, &stubItemRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/content-items/vid-404", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("vid-404")

	if assert.NoError(t, handler.ContentItemStatus(c)) {
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
}

func TestHandler_ContentItemStatus(t *testing.T) {
	e := echo.New()
	repo := &stubItemRepo{item: &domain.ContentItem{ID: "vid-1", Status: domain.StatusReady}}
	handler := httpapi.NewHandler(nil, nil, nil, nil, nil, repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/content-items/vid-1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("vid-1")

	if assert.NoError(t, handler.ContentItemStatus(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ready"`)
	}
}
