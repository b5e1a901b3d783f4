package qdrantdb

import (
	"context"
	"fmt"

	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
	"github.com/qdrant/go-client/qdrant"
)

// ExternalSearcher searches one configured external source collection
type ExternalSearcher struct {
	source models.ExternalSourceConfig
	client pointQuerier
	closer func() error
}

// NewExternalSearcher opens a dedicated connection for source.
// It matches sources.SearcherFactory.
func NewExternalSearcher(source models.ExternalSourceConfig) (repository.ExternalSearcher, error) {
	client, err := NewClient(source.Connection)
	if err != nil {
		return nil, fmt.Errorf("external source %s: %w", source.ID, err)
	}
	return &ExternalSearcher{source: source, client: client, closer: client.Close}, nil
}

// Search queries the source collection, scoped to one sub-source when subSourceID is set
func (s *ExternalSearcher) Search(ctx context.Context, subSourceID string, vector []float32, limit int) ([]models.SearchHit, error) {
	req := &qdrant.QueryPoints{
		CollectionName: s.source.Collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	sourceID := s.source.ID
	if subSourceID != "" {
		if s.source.Mapping.FilterField == "" {
			return nil, fmt.Errorf("external source %s has no filter field for sub-source %s", s.source.ID, subSourceID)
		}
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(s.source.Mapping.FilterField, subSourceID)},
		}
		sourceID = s.source.ID + "." + subSourceID
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, wrapQueryError(s.source.Collection, err)
	}

	m := s.source.Mapping
	hits := make([]models.SearchHit, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		hits = append(hits, models.SearchHit{
			ID:         pointID(p.GetId()),
			Title:      stringAt(payload, m.Title),
			Text:       stringAt(payload, m.Content),
			Score:      float64(p.GetScore()),
			Source:     sourceID,
			IsExternal: true,
			URL:        stringAt(payload, m.URL),
		})
	}
	return hits, nil
}

// Close releases the source connection
func (s *ExternalSearcher) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
