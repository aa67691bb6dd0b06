package usecase

import (
	"fmt"
	"strings"

	"reply-orchestrator/internal/domain"
)

// CandidateContext is one catalog candidate offered to the model. Only
// items in this set may appear in the drafted reply.
type CandidateContext struct {
	CatalogItemID string
	Title         string
	URL           string
	Brand         string
	Category      string
	Price         float64
	Score         float64
	Snippet       string
}

// TranscriptContext is one grounding excerpt from the video transcript.
type TranscriptContext struct {
	ChunkID string
	Text    string
	Score   float64
}

// CommentContext is one prior comment included for tone and precedent.
type CommentContext struct {
	Author string
	Text   string
}

// PromptInput contains the pieces that feed into the prompt builder.
type PromptInput struct {
	Comment     string
	Transcripts []TranscriptContext
	Candidates  []CandidateContext
	Comments    []CommentContext
}

// PromptBuilder builds the chat messages sent to the completion API.
type PromptBuilder interface {
	Build(input PromptInput) ([]domain.Message, error)
}

// XMLPromptBuilder creates structured prompts that separate context,
// instructions, comment, and format.
type XMLPromptBuilder struct {
	additionalInstructions []string
}

// NewXMLPromptBuilder creates a prompt builder with optional extra instructions appended.
func NewXMLPromptBuilder(additionalInstructions ...string) PromptBuilder {
	return &XMLPromptBuilder{
		additionalInstructions: additionalInstructions,
	}
}

// Build renders the messages for the chat API.
func (b *XMLPromptBuilder) Build(input PromptInput) ([]domain.Message, error) {
	if strings.TrimSpace(input.Comment) == "" {
		return nil, fmt.Errorf("comment is required")
	}
	if len(input.Transcripts) == 0 && len(input.Candidates) == 0 {
		return nil, fmt.Errorf("prompt requires grounding context")
	}

	var sysSb strings.Builder
	sysSb.WriteString("<instructions>\n")

	selectedInstructions := []string{
		"You draft replies to viewer comments on behalf of a video creator.",
		"1. Ground every statement in the <transcript> excerpts and <candidates> items. Do not use external knowledge.",
		"2. Answer the viewer's <comment> directly and helpfully, in the comment's language.",
		"3. Recommend items ONLY from <candidates>. Never invent an item, link, or price.",
		"4. For every recommended item, copy its catalog_item_id and url EXACTLY from <candidates>.",
		"5. If nothing in the context answers the comment, say so politely and recommend nothing.",
		"6. Keep the reply conversational and under 150 words.",
		"7. Follow the JSON format specified below EXACTLY.",
	}

	for _, inst := range append(selectedInstructions, b.additionalInstructions...) {
		sysSb.WriteString("  <line>")
		sysSb.WriteString(escape(inst))
		sysSb.WriteString("</line>\n")
	}
	sysSb.WriteString("</instructions>\n\n")

	sysSb.WriteString("<format>\n")
	sysSb.WriteString("JSON: {\n")
	sysSb.WriteString("  \"reply_text\": \"the drafted reply\",\n")
	sysSb.WriteString("  \"products\": [{\"catalog_item_id\":\"...\", \"url\":\"...\", \"confidence\":0.0, \"reason\":\"why this item fits\"}]\n")
	sysSb.WriteString("}\n")
	sysSb.WriteString("</format>\n")

	var userSb strings.Builder
	userSb.WriteString("<transcript>\n")
	for _, t := range input.Transcripts {
		userSb.WriteString("  <excerpt>\n")
		userSb.WriteString("    <chunk_id>")
		userSb.WriteString(escape(t.ChunkID))
		userSb.WriteString("</chunk_id>\n")
		userSb.WriteString("    <score>")
		userSb.WriteString(fmt.Sprintf("%.6f", t.Score))
		userSb.WriteString("</score>\n")
		userSb.WriteString("    <text>")
		userSb.WriteString(escape(t.Text))
		userSb.WriteString("</text>\n")
		userSb.WriteString("  </excerpt>\n")
	}
	userSb.WriteString("</transcript>\n\n")

	userSb.WriteString("<candidates>\n")
	for _, c := range input.Candidates {
		userSb.WriteString("  <item>\n")
		userSb.WriteString("    <catalog_item_id>")
		userSb.WriteString(escape(c.CatalogItemID))
		userSb.WriteString("</catalog_item_id>\n")
		userSb.WriteString("    <title>")
		userSb.WriteString(escape(c.Title))
		userSb.WriteString("</title>\n")
		userSb.WriteString("    <url>")
		userSb.WriteString(escape(c.URL))
		userSb.WriteString("</url>\n")
		userSb.WriteString("    <brand>")
		userSb.WriteString(escape(c.Brand))
		userSb.WriteString("</brand>\n")
		userSb.WriteString("    <category>")
		userSb.WriteString(escape(c.Category))
		userSb.WriteString("</category>\n")
		userSb.WriteString("    <price>")
		userSb.WriteString(fmt.Sprintf("%.2f", c.Price))
		userSb.WriteString("</price>\n")
		userSb.WriteString("    <score>")
		userSb.WriteString(fmt.Sprintf("%.6f", c.Score))
		userSb.WriteString("</score>\n")
		if c.Snippet != "" {
			userSb.WriteString("    <snippet>")
			userSb.WriteString(escape(c.Snippet))
			userSb.WriteString("</snippet>\n")
		}
		userSb.WriteString("  </item>\n")
	}
	userSb.WriteString("</candidates>\n\n")

	if len(input.Comments) > 0 {
		userSb.WriteString("<prior_comments>\n")
		for _, pc := range input.Comments {
			userSb.WriteString("  <comment author=\"")
			userSb.WriteString(escape(pc.Author))
			userSb.WriteString("\">")
			userSb.WriteString(escape(pc.Text))
			userSb.WriteString("</comment>\n")
		}
		userSb.WriteString("</prior_comments>\n\n")
	}

	userSb.WriteString("<comment>\n")
	userSb.WriteString(escape(input.Comment))
	userSb.WriteString("\n</comment>\n")

	return []domain.Message{
		{Role: "system", Content: sysSb.String()},
		{Role: "user", Content: userSb.String()},
	}, nil
}

func escape(value string) string {
	s := strings.TrimSpace(value)
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(s)
}
