package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reply-orchestrator/internal/domain"
	"reply-orchestrator/internal/infra/metrics"
)

// OpenAICompleter calls an OpenAI-compatible /v1/chat/completions
// endpoint with a JSON schema response format.
type OpenAICompleter struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

type CompleterOption func(*OpenAICompleter)

func WithCompleterHTTPClient(client *http.Client) CompleterOption {
	return func(c *OpenAICompleter) { c.client = client }
}

func NewOpenAICompleter(baseURL, apiKey, model string, ratePerSec float64, maxRetries int, opts ...CompleterOption) *OpenAICompleter {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	c := &OpenAICompleter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		client:     &http.Client{Timeout: 120 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), int(ratePerSec)+1),
		maxRetries: maxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string         `json:"type"`
	JSONSchema map[string]any `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *OpenAICompleter) Complete(ctx context.Context, messages []domain.Message, schema map[string]any, opts domain.CompletionOptions) (*domain.Completion, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(messages)),
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	if opts.Temperature >= 0 {
		temp := opts.Temperature
		reqBody.Temperature = &temp
	}
	if opts.MaxTokens > 0 {
		maxTokens := opts.MaxTokens
		reqBody.MaxTokens = &maxTokens
	}
	if schema != nil {
		reqBody.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: map[string]any{
				"name":   "reply",
				"strict": true,
				"schema": schema,
			},
		}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		completion, retryable, err := c.completeOnce(ctx, jsonData)
		if err == nil {
			metrics.RecordGatewayRequest("complete", "ok", time.Since(start).Seconds())
			metrics.RecordTokenUsage(completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
			return completion, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		slog.Warn("completion_retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
	metrics.RecordGatewayRequest("complete", "error", time.Since(start).Seconds())
	return nil, domain.WrapError(domain.KindDependency, lastErr, "completion request failed")
}

func (c *OpenAICompleter) completeOnce(ctx context.Context, jsonData []byte) (*domain.Completion, bool, error) {
	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to call completion endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var respBody chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, false, fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(respBody.Choices) == 0 {
		return nil, false, fmt.Errorf("completion response had no choices")
	}

	return &domain.Completion{
		Text: strings.TrimSpace(respBody.Choices[0].Message.Content),
		Usage: domain.TokenUsage{
			PromptTokens:     respBody.Usage.PromptTokens,
			CompletionTokens: respBody.Usage.CompletionTokens,
			TotalTokens:      respBody.Usage.TotalTokens,
		},
	}, false, nil
}

func (c *OpenAICompleter) Version() string {
	return c.model
}

var _ domain.CompletionClient = (*OpenAICompleter)(nil)
