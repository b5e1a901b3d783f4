package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kunskapsportal-search-api/internal/departments"
	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
	"github.com/kunskapsportal-search-api/internal/sources"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// MinQueryLength is the shortest query, in runes, accepted by search
const MinQueryLength = 2

var (
	// ErrQueryTooShort is returned for queries shorter than MinQueryLength
	ErrQueryTooShort = errors.New("query too short")
	// ErrEmbedding wraps failures of the embedding provider
	ErrEmbedding = errors.New("embedding failed")
	// ErrVectorStore wraps failures of every queried vector index
	ErrVectorStore = errors.New("vector store unavailable")
	// ErrNotConfigured marks searches that cannot run until configuration is fixed
	ErrNotConfigured = errors.New("search backend not configured")
)

// QueryEmbedder turns a search query into a vector
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Tuning holds the ranking constants of hybrid search
type Tuning struct {
	SemanticBoost float64 // share of the semantic score added to exact matches also found semantically
	SemanticFloor float64 // minimum score of semantic-only results
	SemanticLimit int     // chunk hits requested from the internal index
	ExactLimit    int     // rows requested from the lexical store, independent of pagination
}

// DefaultTuning returns the product defaults
func DefaultTuning() Tuning {
	return Tuning{
		SemanticBoost: 0.2,
		SemanticFloor: 0.3,
		SemanticLimit: 10,
		ExactLimit:    100,
	}
}

// Timeouts bound each external call made by a search
type Timeouts struct {
	Embed  time.Duration
	Vector time.Duration
}

// SearchDeps are the collaborators of SearchService
type SearchDeps struct {
	Articles    repository.ArticleRepository
	Departments repository.DepartmentRepository
	Vectors     repository.VectorSearchRepository
	Embedder    QueryEmbedder
	Registry    *sources.Registry
	Clients     *sources.ClientCache
}

// SearchService runs exact, semantic and hybrid searches
type SearchService struct {
	articles    repository.ArticleRepository
	departments repository.DepartmentRepository
	vectors     repository.VectorSearchRepository
	embedder    QueryEmbedder
	registry    *sources.Registry
	clients     *sources.ClientCache
	pool        *ants.Pool
	tuning      Tuning
	timeouts    Timeouts
	baseURL     string
	logger      *zap.Logger
}

// SearchOptions configure a SearchService
type SearchOptions struct {
	Tuning        Tuning
	Timeouts      Timeouts
	PoolSize      int
	PublicBaseURL string
}

// NewSearchService creates a search service with its own bounded fan-out pool
func NewSearchService(deps SearchDeps, opts SearchOptions, logger *zap.Logger) (*SearchService, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 32
	}
	pool, err := ants.NewPool(opts.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("create search pool: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := deps.Registry
	if registry == nil {
		registry = sources.NewRegistry(nil, logger)
	}
	return &SearchService{
		articles:    deps.Articles,
		departments: deps.Departments,
		vectors:     deps.Vectors,
		embedder:    deps.Embedder,
		registry:    registry,
		clients:     deps.Clients,
		pool:        pool,
		tuning:      opts.Tuning,
		timeouts:    opts.Timeouts,
		baseURL:     opts.PublicBaseURL,
		logger:      logger.Named("search"),
	}, nil
}

// Close releases the fan-out pool
func (s *SearchService) Close() {
	s.pool.Release()
}

// Registry returns the external source registry used by the service
func (s *SearchService) Registry() *sources.Registry {
	return s.registry
}

// DepartmentTree loads a fresh snapshot of the department tree
func (s *SearchService) DepartmentTree(ctx context.Context) (*departments.Tree, error) {
	depts, err := s.departments.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load departments: %w", err)
	}
	return departments.NewTree(depts), nil
}

// treeOrEmpty loads the tree, or an empty one when the department table is unreadable
func (s *SearchService) treeOrEmpty(ctx context.Context) *departments.Tree {
	tree, err := s.DepartmentTree(ctx)
	if err != nil {
		s.logger.Warn("department tree unavailable", zap.Error(err))
		return departments.NewTree(nil)
	}
	return tree
}

// scopeDepartments expands each requested department to its subtree.
// Ids unknown to the tree are kept as-is.
func scopeDepartments(tree *departments.Tree, ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	scoped := tree.ExpandAll(ids)
	seen := make(map[int64]struct{}, len(scoped))
	for _, id := range scoped {
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			scoped = append(scoped, id)
			seen[id] = struct{}{}
		}
	}
	return scoped
}

// withURLs fills in the public URL of each result's article
func (s *SearchService) withURLs(tree *departments.Tree, results []models.HybridResult) {
	for i := range results {
		a := &results[i].Article
		if a.URL != "" {
			continue
		}
		path := ""
		if !a.Department.IsZero() {
			path = tree.SlugPath(a.Department.ID())
		}
		a.URL = models.ArticleURL(s.baseURL, path, a.Slug, a.ID)
	}
}

// validQuery trims query and enforces MinQueryLength
func validQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return "", ErrQueryTooShort
	}
	return query, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
