package qdrantdb

import (
	"context"

	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys written by the ingestion pipeline for internal article chunks
const (
	FieldArticleID      = "articleId"
	FieldDepartment     = "department"
	FieldDepartmentName = "departmentName"
	FieldDepartmentPath = "departmentPath"
	FieldSlug           = "slug"
	FieldTitle          = "title"
	FieldText           = "text"
	FieldContent        = "content"
	FieldDocumentType   = "documentType"
)

// Ensure ArticleIndex implements repository.VectorSearchRepository
var _ repository.VectorSearchRepository = (*ArticleIndex)(nil)

// ArticleIndex searches the internal article chunk collection
type ArticleIndex struct {
	client     pointQuerier
	collection string
	baseURL    string
}

// NewArticleIndex creates the internal index searcher over an open client
func NewArticleIndex(client *qdrant.Client, collection, publicBaseURL string) *ArticleIndex {
	return &ArticleIndex{client: client, collection: collection, baseURL: publicBaseURL}
}

// SearchArticles queries the chunk collection, restricted to departments when given
func (r *ArticleIndex) SearchArticles(ctx context.Context, q repository.VectorQuery) ([]models.SearchHit, error) {
	req := &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          qdrant.NewQueryDense(q.Vector),
		Limit:          qdrant.PtrOf(uint64(q.Limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(q.DepartmentIDs) > 0 {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchInts(FieldDepartment, q.DepartmentIDs...)},
		}
	}

	points, err := r.client.Query(ctx, req)
	if err != nil {
		return nil, wrapQueryError(r.collection, err)
	}

	hits := make([]models.SearchHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, r.toHit(p))
	}
	return hits, nil
}

func (r *ArticleIndex) toHit(p *qdrant.ScoredPoint) models.SearchHit {
	payload := p.GetPayload()
	articleID := intAt(payload, FieldArticleID)
	return models.SearchHit{
		ID:           pointID(p.GetId()),
		Title:        stringAt(payload, FieldTitle),
		Text:         firstString(payload, FieldText, FieldContent),
		Score:        float64(p.GetScore()),
		ArticleID:    articleID,
		Source:       models.SourceInternal,
		Department:   stringAt(payload, FieldDepartmentName),
		DocumentType: stringAt(payload, FieldDocumentType),
		URL: models.ArticleURL(r.baseURL,
			stringAt(payload, FieldDepartmentPath), stringAt(payload, FieldSlug), articleID),
	}
}
