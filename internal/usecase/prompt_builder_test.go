package usecase_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reply-orchestrator/internal/usecase"
)

func TestPromptBuilder_Build(t *testing.T) {
	b := usecase.NewXMLPromptBuilder()

	messages, err := b.Build(usecase.PromptInput{
		Comment: "which mic should I buy?",
		Transcripts: []usecase.TranscriptContext{
			{ChunkID: "chunk-1", Text: "we tested <three> mics", Score: 0.9},
		},
		Candidates: []usecase.CandidateContext{
			{CatalogItemID: "item-1", Title: "USB Mic", URL: "https://shop.example/item-1", Brand: "Acme", Category: "audio", Price: 1990, Score: 0.8},
		},
		Comments: []usecase.CommentContext{
			{Author: "viewer42", Text: "loved this one"},
		},
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)

	system := messages[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "<instructions>")
	assert.Contains(t, system.Content, "reply_text")
	assert.Contains(t, system.Content, "ONLY from")

	user := messages[1]
	assert.Equal(t, "user", user.Role)
	assert.Contains(t, user.Content, "<transcript>")
	assert.Contains(t, user.Content, "we tested &lt;three&gt; mics")
	assert.Contains(t, user.Content, "<catalog_item_id>item-1</catalog_item_id>")
	assert.Contains(t, user.Content, "<prior_comments>")
	assert.Contains(t, user.Content, "which mic should I buy?")
}

func TestPromptBuilder_RequiresGrounding(t *testing.T) {
	b := usecase.NewXMLPromptBuilder()

	_, err := b.Build(usecase.PromptInput{Comment: "hello"})
	assert.Error(t, err)

	_, err = b.Build(usecase.PromptInput{
		Transcripts: []usecase.TranscriptContext{{ChunkID: "c", Text: "t"}},
	})
	assert.Error(t, err)
}

func TestPromptBuilder_AdditionalInstructions(t *testing.T) {
	b := usecase.NewXMLPromptBuilder("Always sign off with the channel name.")

	messages, err := b.Build(usecase.PromptInput{
		Comment:    "hi",
		Candidates: []usecase.CandidateContext{{CatalogItemID: "item-1"}},
	})
	require.NoError(t, err)
	assert.True(t, strings.Contains(messages[0].Content, "Always sign off with the channel name."))
}

func TestPromptBuilder_OmitsEmptyPriorComments(t *testing.T) {
	b := usecase.NewXMLPromptBuilder()

	messages, err := b.Build(usecase.PromptInput{
		Comment:    "hi",
		Candidates: []usecase.CandidateContext{{CatalogItemID: "item-1"}},
	})
	require.NoError(t, err)
	assert.NotContains(t, messages[1].Content, "<prior_comments>")
}
