package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/kunskapsportal-search-api/internal/services"
)

// Provider errors a Model implementation wraps so the orchestrator can classify them
var (
	ErrRateLimited  = errors.New("model rate limited")
	ErrUnauthorized = errors.New("model credentials rejected")
)

// ErrorKind groups chat failures by what an operator has to fix
type ErrorKind string

const (
	KindRateLimit   ErrorKind = "rate_limit"
	KindAuth        ErrorKind = "auth"
	KindVectorStore ErrorKind = "vector_store"
	KindEmbedding   ErrorKind = "embedding"
	KindTimeout     ErrorKind = "timeout"
	KindUnknown     ErrorKind = "unknown"
)

// Error is the single error returned by a failed orchestration
type Error struct {
	Kind      ErrorKind
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("chat %s (%s): %v", e.Kind, e.RequestID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps an error chain to a kind
func Classify(err error) ErrorKind {
	var chatErr *Error
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &chatErr):
		return chatErr.Kind
	case errors.Is(err, ErrRateLimited):
		return KindRateLimit
	case errors.Is(err, ErrUnauthorized):
		return KindAuth
	case errors.Is(err, services.ErrEmbedding):
		return KindEmbedding
	case errors.Is(err, services.ErrVectorStore):
		return KindVectorStore
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindUnknown
	}
}
