package repository

import (
	"context"
	"errors"

	"github.com/kunskapsportal-search-api/internal/models"
)

// ErrCollectionNotFound is returned when a vector collection has not been created yet
var ErrCollectionNotFound = errors.New("vector collection not found")

// ArticleFilter scopes lexical queries
type ArticleFilter struct {
	// DepartmentIDs restricts results to these departments; empty means all
	DepartmentIDs []int64
}

// ArticlePage is one page of a plain department listing
type ArticlePage struct {
	Articles []models.Article
	Total    int
}

// ArticleRepository is the read-only lexical store of published articles
type ArticleRepository interface {
	// SearchKeyword returns published articles whose title, content, summary or author contains query
	SearchKeyword(ctx context.Context, query string, filter ArticleFilter, limit int) ([]models.Article, error)

	// GetByIDs hydrates published articles with populated departments in one round trip.
	// Missing or unpublished ids are omitted.
	GetByIDs(ctx context.Context, ids []int64) ([]models.Article, error)

	// List pages through published articles
	List(ctx context.Context, filter ArticleFilter, sort string, limit, offset int) (ArticlePage, error)
}

// DepartmentRepository loads the department adjacency list
type DepartmentRepository interface {
	ListAll(ctx context.Context) ([]models.Department, error)
}

// VectorQuery is a nearest-neighbour query against the internal article index
type VectorQuery struct {
	Vector        []float32
	Limit         int
	DepartmentIDs []int64
}

// VectorSearchRepository performs similarity search over article chunks
type VectorSearchRepository interface {
	// SearchArticles returns scored chunk hits, best first
	SearchArticles(ctx context.Context, q VectorQuery) ([]models.SearchHit, error)
}

// ExternalSearcher searches one external source collection
type ExternalSearcher interface {
	// Search queries the collection, scoped to subSourceID when non-empty
	Search(ctx context.Context, subSourceID string, vector []float32, limit int) ([]models.SearchHit, error)
	Close() error
}
