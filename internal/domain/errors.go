package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so transport and batch layers can map
// them without string matching.
type ErrorKind string

const (
	// KindValidation marks malformed input. Fatal to the call, never retried.
	KindValidation ErrorKind = "validation"
	// KindConflict marks duplicate ingestion without overwrite.
	KindConflict ErrorKind = "conflict"
	// KindNotFound marks a missing target entity.
	KindNotFound ErrorKind = "not_found"
	// KindDependency marks an embedding/completion gateway failure after
	// bounded retries. Callers may retry the whole operation.
	KindDependency ErrorKind = "dependency"
	// KindIntegrity marks an answer referencing an item outside the
	// supplied candidate set. Auto-repaired and logged, never surfaced
	// to end users as an error.
	KindIntegrity ErrorKind = "integrity"
	// KindStale marks an empty pool or a content item that is not ready.
	KindStale ErrorKind = "stale_state"
)

// Error is the typed error carried across the engine's boundaries.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a typed error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and message to an underlying error.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the ErrorKind from err, or empty string if err is not
// a typed engine error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the caller may usefully retry the call.
func IsRetryable(err error) bool {
	return KindOf(err) == KindDependency
}
