package domain

import "strings"

// ChunkerVersion identifies the splitting algorithm so re-ingestion can
// detect when chunks were produced by an older scheme.
type ChunkerVersion string

const (
	// ChunkerVersionV1 is the windowed splitter with paragraph-aware
	// boundaries.
	ChunkerVersionV1 ChunkerVersion = "v1"
)

const (
	// MinChunkLength is the minimum chunk length in runes. Shorter
	// fragments are merged into a neighbor. A whole input below this
	// still produces one chunk (a single comment is one chunk).
	MinChunkLength = 80
	// MaxChunkLength is the maximum chunk length in runes. Longer
	// paragraphs are split on sentence boundaries, falling back to a
	// hard window.
	MaxChunkLength = 1000
)

// TextChunk is one split piece before persistence.
type TextChunk struct {
	Index int
	Text  string
}

// Chunker splits source text into retrievable units.
type Chunker interface {
	Chunk(body string) []TextChunk
	Version() ChunkerVersion
}

type windowChunker struct {
	minLen int
	maxLen int
}

// NewChunker creates the default windowed chunker.
func NewChunker() Chunker {
	return &windowChunker{minLen: MinChunkLength, maxLen: MaxChunkLength}
}

func (c *windowChunker) Version() ChunkerVersion {
	return ChunkerVersionV1
}

// Chunk splits body on blank lines, merges fragments shorter than the
// minimum into their successor, and windows anything over the maximum.
// A non-empty input always yields at least one chunk.
func (c *windowChunker) Chunk(body string) []TextChunk {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var paragraphs []string
	for _, part := range strings.Split(normalized, "\n\n") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}

	merged := c.mergeShort(paragraphs)
	windowed := c.splitLong(merged)

	chunks := make([]TextChunk, 0, len(windowed))
	for i, text := range windowed {
		chunks = append(chunks, TextChunk{Index: i, Text: text})
	}
	return chunks
}

// mergeShort folds paragraphs below minLen into the following paragraph
// so embeddings are not wasted on fragments. A trailing short paragraph
// joins the previous one.
func (c *windowChunker) mergeShort(paragraphs []string) []string {
	var out []string
	var pending string
	for _, p := range paragraphs {
		if pending != "" {
			p = pending + "\n\n" + p
			pending = ""
		}
		if len([]rune(p)) < c.minLen {
			pending = p
			continue
		}
		out = append(out, p)
	}
	if pending != "" {
		if len(out) == 0 {
			return []string{pending}
		}
		out[len(out)-1] = out[len(out)-1] + "\n\n" + pending
	}
	return out
}

// splitLong windows paragraphs over maxLen, preferring sentence
// boundaries within each window.
func (c *windowChunker) splitLong(paragraphs []string) []string {
	var out []string
	for _, p := range paragraphs {
		if len([]rune(p)) <= c.maxLen {
			out = append(out, p)
			continue
		}
		out = append(out, c.window(p)...)
	}
	return out
}

var sentenceEnders = []string{". ", "! ", "? ", "。", "\n"}

func (c *windowChunker) window(text string) []string {
	var out []string
	runes := []rune(text)
	for len(runes) > c.maxLen {
		window := string(runes[:c.maxLen])
		cutBytes := -1
		for _, end := range sentenceEnders {
			if idx := strings.LastIndex(window, end); idx >= 0 && idx+len(end) > cutBytes {
				cutBytes = idx + len(end)
			}
		}
		cut := c.maxLen
		if cutBytes > 0 {
			if r := len([]rune(window[:cutBytes])); r >= c.minLen {
				cut = r
			}
		}
		piece := strings.TrimSpace(string(runes[:cut]))
		if piece != "" {
			out = append(out, piece)
		}
		runes = runes[cut:]
	}
	rest := strings.TrimSpace(string(runes))
	if rest != "" {
		out = append(out, rest)
	}
	return out
}
