package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kunskapsportal-search-api/pkg/schema/config"
	"go.uber.org/zap"
)

// EmbeddingsService handles text embedding operations using a pluggable backend
type EmbeddingsService struct {
	embedder Embedder
	model    string
	cache    EmbeddingCache
	logger   *zap.Logger
}

// NewEmbeddingsService selects the embedder configured in cfg.
// cache may be nil.
func NewEmbeddingsService(ctx context.Context, cfg *config.Config, cache EmbeddingCache, logger *zap.Logger) (*EmbeddingsService, error) {
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewEmbeddingsServiceWith(embedder, cfg.EmbeddingModelName(), cache, logger), nil
}

// newEmbedder builds the configured provider. Without credentials it returns an
// embedder that fails every call with ErrMissingCredentials so the process can still start.
func newEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	if !cfg.HasEmbeddingCredentials() {
		return unavailableEmbedder{provider: cfg.EmbeddingProvider}, nil
	}
	var embedder Embedder
	switch cfg.EmbeddingProvider {
	case "openai":
		e, err := NewOpenAIEmbedder(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI embedder: %w", err)
		}
		embedder = e
	case "vertex":
		e, err := NewVertexEmbedder(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create Vertex AI embedder: %w", err)
		}
		embedder = e
	default:
		embedder = NewCustomEmbedder(cfg)
	}
	return embedder, nil
}

// ErrMissingCredentials is returned by every call of an embedder built without credentials
var ErrMissingCredentials = errors.New("embedding provider credentials missing")

type unavailableEmbedder struct {
	provider string
}

func (e unavailableEmbedder) Embed(context.Context, string, TaskType) ([]float32, error) {
	return nil, fmt.Errorf("%s: %w", e.provider, ErrMissingCredentials)
}

// NewEmbeddingsServiceWith wraps an existing embedder
func NewEmbeddingsServiceWith(embedder Embedder, model string, cache EmbeddingCache, logger *zap.Logger) *EmbeddingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingsService{
		embedder: embedder,
		model:    model,
		cache:    cache,
		logger:   logger.Named("embeddings"),
	}
}

// EmbedQuery embeds a query for retrieval, consulting the cache first.
// Cache failures are logged and never fail the call.
func (s *EmbeddingsService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	key := ""
	if s.cache != nil {
		key = embeddingCacheKey(s.model, TaskTypeQuery, query)
		vec, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("embedding cache read failed", zap.Error(err))
		} else if ok {
			return vec, nil
		}
	}

	vec, err := s.embedder.Embed(ctx, query, TaskTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedder returned an empty vector")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, vec); err != nil {
			s.logger.Warn("embedding cache write failed", zap.Error(err))
		}
	}
	return vec, nil
}

// Close releases the underlying embedder and cache when they hold connections
func (s *EmbeddingsService) Close() error {
	var firstErr error
	if c, ok := s.embedder.(io.Closer); ok {
		firstErr = c.Close()
	}
	if c, ok := s.cache.(io.Closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
