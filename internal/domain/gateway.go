package domain

import "context"

// VectorEncoder generates fixed-length embeddings for texts.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}

// Message is one chat turn sent to the completion API.
type Message struct {
	Role    string
	Content string
}

// TokenUsage accumulates the billable counters every completion call
// must surface.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add sums another usage record into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// CompletionOptions tunes a single structured completion request.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// Completion is the raw structured output plus its cost.
type Completion struct {
	Text  string
	Usage TokenUsage
}

// CompletionClient issues one structured completion request. schema is
// a JSON-schema object the response must conform to.
type CompletionClient interface {
	Complete(ctx context.Context, messages []Message, schema map[string]any, opts CompletionOptions) (*Completion, error)
	Version() string
}
