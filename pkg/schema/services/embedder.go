package services

import "context"

// TaskType tells task-aware models what a vector will be compared against
type TaskType string

const (
	TaskTypeQuery    TaskType = "RETRIEVAL_QUERY"
	TaskTypeDocument TaskType = "RETRIEVAL_DOCUMENT"
)

// Embedder turns one text into a vector of the configured model
type Embedder interface {
	Embed(ctx context.Context, text string, task TaskType) ([]float32, error)
}
