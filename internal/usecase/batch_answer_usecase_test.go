package usecase_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"reply-orchestrator/internal/domain"
	"reply-orchestrator/internal/usecase"
)

func messagesContaining(needle string) interface{} {
	return mock.MatchedBy(func(messages []domain.Message) bool {
		for _, m := range messages {
			if strings.Contains(m.Content, needle) {
				return true
			}
		}
		return false
	})
}

func TestComposeBatch_AnswersEveryQuery(t *testing.T) {
	f := newComposeFixture()
	f.stubReadyContext()

	f.completer.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&domain.Completion{
		Text:  `{"reply_text":"Answered.","products":[]}`,
		Usage: domain.TokenUsage{PromptTokens: 80, CompletionTokens: 20, TotalTokens: 100},
	}, nil)

	result, err := f.uc.ComposeBatch(context.Background(), usecase.BatchInput{
		ContentItemID: "vid-1",
		Queries: []usecase.BatchQuery{
			{QueryID: "q1", Text: "which mic?"},
			{QueryID: "q2", Text: "is it worth it?"},
			{QueryID: "q3", Text: "budget 20000 options?"},
		},
	})

	assert.NoError(t, err)
	assert.Len(t, result.Answers, 3)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 300, result.Usage.TotalTokens)

	ids := map[string]bool{}
	for _, a := range result.Answers {
		ids[a.QueryID] = true
	}
	assert.True(t, ids["q1"] && ids["q2"] && ids["q3"])

	// grounding is retrieved once for the whole batch
	f.retriever.AssertNumberOfCalls(t, "EncodeQuery", 1)
	f.completer.AssertNumberOfCalls(t, "Complete", 3)
}

func TestComposeBatch_IsolatesPerQueryFailures(t *testing.T) {
	f := newComposeFixture()
	f.stubReadyContext()

	f.completer.On("Complete", mock.Anything, messagesContaining("first"), mock.Anything, mock.Anything).Return(nil,
		domain.NewError(domain.KindDependency, "completion request failed"))
	f.completer.On("Complete", mock.Anything, messagesContaining("second"), mock.Anything, mock.Anything).Return(&domain.Completion{
		Text: `{"reply_text":"OK.","products":[]}`,
	}, nil)

	result, err := f.uc.ComposeBatch(context.Background(), usecase.BatchInput{
		ContentItemID: "vid-1",
		Queries: []usecase.BatchQuery{
			{QueryID: "bad", Text: "first"},
			{QueryID: "good", Text: "second"},
		},
	})

	assert.NoError(t, err)
	assert.Len(t, result.Answers, 1)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, domain.KindDependency, result.Errors[0].Kind)
}

func TestComposeBatch_Validation(t *testing.T) {
	f := newComposeFixture()

	_, err := f.uc.ComposeBatch(context.Background(), usecase.BatchInput{ContentItemID: "vid-1"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.uc.ComposeBatch(context.Background(), usecase.BatchInput{
		ContentItemID: "vid-1",
		Queries: []usecase.BatchQuery{
			{QueryID: "dup", Text: "a"},
			{QueryID: "dup", Text: "b"},
		},
	})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.uc.ComposeBatch(context.Background(), usecase.BatchInput{
		ContentItemID: "vid-1",
		Queries:       []usecase.BatchQuery{{QueryID: "", Text: "a"}},
	})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestComposeBatch_NotReady(t *testing.T) {
	f := newComposeFixture()
	f.itemRepo.On("Get", mock.Anything, "vid-1").Return(&domain.ContentItem{ID: "vid-1", Status: domain.StatusFailed}, nil)

	_, err := f.uc.ComposeBatch(context.Background(), usecase.BatchInput{
		ContentItemID: "vid-1",
		Queries:       []usecase.BatchQuery{{QueryID: "q1", Text: "hi"}},
	})
	assert.Equal(t, domain.KindStale, domain.KindOf(err))
}
