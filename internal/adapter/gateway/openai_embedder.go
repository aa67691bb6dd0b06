package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"reply-orchestrator/internal/domain"
	"reply-orchestrator/internal/infra/metrics"
)

// OpenAIEmbedder calls an OpenAI-compatible /v1/embeddings endpoint.
// Single-text encodes go through an LRU cache so repeated comment
// queries do not burn gateway quota.
type OpenAIEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	cache      *lru.Cache[string, []float32]
}

type EmbedderOption func(*OpenAIEmbedder)

func WithEmbedderHTTPClient(client *http.Client) EmbedderOption {
	return func(e *OpenAIEmbedder) { e.client = client }
}

func NewOpenAIEmbedder(baseURL, apiKey, model string, ratePerSec float64, maxRetries, cacheSize int, opts ...EmbedderOption) (*OpenAIEmbedder, error) {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	e := &OpenAIEmbedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		client:     &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), int(ratePerSec)+1),
		maxRetries: maxRetries,
		cache:      cache,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *OpenAIEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if len(texts) == 1 {
		if cached, ok := e.cache.Get(texts[0]); ok {
			return [][]float32{cached}, nil
		}
	}

	start := time.Now()
	vectors, err := e.encode(ctx, texts)
	if err != nil {
		metrics.RecordGatewayRequest("embed", "error", time.Since(start).Seconds())
		return nil, err
	}
	metrics.RecordGatewayRequest("embed", "ok", time.Since(start).Seconds())

	if len(texts) == 1 && len(vectors) == 1 {
		e.cache.Add(texts[0], vectors[0])
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) encode(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingsRequest{
		Model: e.model,
		Input: texts,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embeddings request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		vectors, retryable, err := e.encodeOnce(ctx, jsonData)
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, domain.NewError(domain.KindDependency,
					"embeddings endpoint returned %d vectors for %d inputs", len(vectors), len(texts))
			}
			return vectors, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		slog.Warn("embed_retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
	return nil, domain.WrapError(domain.KindDependency, lastErr, "embeddings request failed")
}

func (e *OpenAIEmbedder) encodeOnce(ctx context.Context, jsonData []byte) ([][]float32, bool, error) {
	url := fmt.Sprintf("%s/embeddings", e.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to call embeddings endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("embeddings endpoint returned status %d", resp.StatusCode)
	}

	var respBody embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, false, fmt.Errorf("failed to decode embeddings response: %w", err)
	}

	vectors := make([][]float32, len(respBody.Data))
	for _, item := range respBody.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, false, fmt.Errorf("embeddings response index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, false, nil
}

func (e *OpenAIEmbedder) Version() string {
	return e.model
}

func sleepBackoff(ctx context.Context, attempt int) error {
	delay := time.Duration(attempt*attempt) * 250 * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ domain.VectorEncoder = (*OpenAIEmbedder)(nil)
