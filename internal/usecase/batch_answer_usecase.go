package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"reply-orchestrator/internal/domain"
	"reply-orchestrator/internal/infra/metrics"
)

const maxBatchQueries = 50

// BatchQuery is one comment within a batch request.
type BatchQuery struct {
	QueryID string
	Text    string
}

// BatchInput answers many comments on the same content item.
type BatchInput struct {
	ContentItemID        string
	Queries              []BatchQuery
	IncludePriorComments bool
}

// BatchError records one failed query without failing its siblings.
type BatchError struct {
	QueryID string
	Kind    domain.ErrorKind
	Message string
}

// BatchResult aggregates per-query answers, failures and token usage.
type BatchResult struct {
	Answers []domain.Answer
	Errors  []BatchError
	Usage   domain.TokenUsage
}

func (u *composeAnswerUsecase) ComposeBatch(ctx context.Context, input BatchInput) (*BatchResult, error) {
	if input.ContentItemID == "" {
		return nil, domain.NewError(domain.KindValidation, "content item id is required")
	}
	if len(input.Queries) == 0 {
		return nil, domain.NewError(domain.KindValidation, "at least one query is required")
	}
	if len(input.Queries) > maxBatchQueries {
		return nil, domain.NewError(domain.KindValidation, "batch exceeds %d queries", maxBatchQueries)
	}
	seen := make(map[string]struct{}, len(input.Queries))
	for _, q := range input.Queries {
		if q.QueryID == "" || strings.TrimSpace(q.Text) == "" {
			return nil, domain.NewError(domain.KindValidation, "every query needs an id and text")
		}
		if _, dup := seen[q.QueryID]; dup {
			return nil, domain.NewError(domain.KindValidation, "duplicate query id %s", q.QueryID)
		}
		seen[q.QueryID] = struct{}{}
	}

	if err := u.checkReady(ctx, input.ContentItemID); err != nil {
		return nil, err
	}

	// The shared grounding is retrieved with the combined comment text
	// so one scan covers every query; budgets and final ordering remain
	// per query.
	grounding, err := u.buildContext(ctx, input.ContentItemID, combinedQueryText(input.Queries), input.IncludePriorComments)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.limits.BatchConcurrency)
	for _, query := range input.Queries {
		query := query
		g.Go(func() error {
			answer, err := u.answerOne(gctx, grounding, query.Text)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, BatchError{
					QueryID: query.QueryID,
					Kind:    domain.KindOf(err),
					Message: err.Error(),
				})
				metrics.RecordAnswer("failed")
				return nil
			}
			answer.QueryID = query.QueryID
			result.Answers = append(result.Answers, *answer)
			result.Usage.Add(answer.Usage)
			metrics.RecordAnswer("completed")
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("batch_answered",
		slog.String("content_item_id", input.ContentItemID),
		slog.Int("queries", len(input.Queries)),
		slog.Int("answered", len(result.Answers)),
		slog.Int("failed", len(result.Errors)),
		slog.Int("total_tokens", result.Usage.TotalTokens),
	)
	return result, nil
}

func combinedQueryText(queries []BatchQuery) string {
	var sb strings.Builder
	for i, q := range queries {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(q.Text)
	}
	return sb.String()
}
