package logger

import (
	"context"
	"log/slog"
	"os"
)

type ContextKey string

const (
	JobIDKey         ContextKey = "reply.job.id"
	ContentItemIDKey ContextKey = "reply.content_item.id"
	CommentIDKey     ContextKey = "reply.comment.id"
	StageKey         ContextKey = "reply.stage"
)

// ContextLogger enriches log records with request-scoped identifiers
// carried on the context.
type ContextLogger struct {
	logger      *slog.Logger
	serviceName string
}

func NewContextLogger(serviceName string) *ContextLogger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)

	return &ContextLogger{
		logger:      slog.New(handler),
		serviceName: serviceName,
	}
}

// WithContext returns a logger with context values extracted and added as fields
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := cl.logger.With("service", cl.serviceName)

	var fields []any

	if jobID := ctx.Value(JobIDKey); jobID != nil {
		fields = append(fields, string(JobIDKey), jobID)
	}
	if contentItemID := ctx.Value(ContentItemIDKey); contentItemID != nil {
		fields = append(fields, string(ContentItemIDKey), contentItemID)
	}
	if commentID := ctx.Value(CommentIDKey); commentID != nil {
		fields = append(fields, string(CommentIDKey), commentID)
	}
	if stage := ctx.Value(StageKey); stage != nil {
		fields = append(fields, string(StageKey), stage)
	}

	if len(fields) > 0 {
		logger = logger.With(fields...)
	}

	return logger
}

func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

func WithContentItemID(ctx context.Context, contentItemID string) context.Context {
	return context.WithValue(ctx, ContentItemIDKey, contentItemID)
}

func WithCommentID(ctx context.Context, commentID string) context.Context {
	return context.WithValue(ctx, CommentIDKey, commentID)
}

func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
