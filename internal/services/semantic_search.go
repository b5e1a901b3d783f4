package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kunskapsportal-search-api/internal/metrics"
	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
	"go.uber.org/zap"
)

// SemanticQuery selects the indexes searched by SemanticSearch
type SemanticQuery struct {
	Query             string
	DepartmentIDs     []int64
	ExternalSourceIDs []string
	IncludeInternal   bool
	LimitPerSource    int
}

// semanticMatch is the best semantic score of one internal article
type semanticMatch struct {
	ArticleID int64
	Score     float64
}

// embed runs the embedding provider under the embed timeout
func (s *SearchService) embed(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := withTimeout(ctx, s.timeouts.Embed)
	defer cancel()

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	return vec, nil
}

// searchInternal queries the internal index under the vector timeout
func (s *SearchService) searchInternal(ctx context.Context, vector []float32, departmentIDs []int64, limit int) ([]models.SearchHit, error) {
	ctx, cancel := withTimeout(ctx, s.timeouts.Vector)
	defer cancel()

	hits, err := s.vectors.SearchArticles(ctx, repository.VectorQuery{
		Vector:        vector,
		Limit:         limit,
		DepartmentIDs: departmentIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVectorStore, err)
	}
	return hits, nil
}

// semanticArticles embeds query and collapses internal chunk hits to one best score per article
func (s *SearchService) semanticArticles(ctx context.Context, query string, departmentIDs []int64) ([]semanticMatch, error) {
	vector, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := s.searchInternal(ctx, vector, departmentIDs, s.tuning.SemanticLimit)
	if err != nil {
		return nil, err
	}
	return collapseByArticle(hits), nil
}

// collapseByArticle keeps the best hit per article, ordered by that score
func collapseByArticle(hits []models.SearchHit) []semanticMatch {
	index := make(map[int64]int, len(hits))
	matches := make([]semanticMatch, 0, len(hits))
	for _, h := range hits {
		if h.ArticleID == 0 {
			continue
		}
		if i, ok := index[h.ArticleID]; ok {
			if h.Score > matches[i].Score {
				matches[i].Score = h.Score
			}
			continue
		}
		index[h.ArticleID] = len(matches)
		matches = append(matches, semanticMatch{ArticleID: h.ArticleID, Score: h.Score})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// SemanticSearch embeds the query once and searches the internal index and every
// selected external source in parallel. A failing source is skipped; the call only
// fails when embedding fails or every source failed.
func (s *SearchService) SemanticSearch(ctx context.Context, q SemanticQuery) ([]models.SearchHit, error) {
	query, err := validQuery(q.Query)
	if err != nil {
		return nil, err
	}
	limit := q.LimitPerSource
	if limit <= 0 {
		limit = s.tuning.SemanticLimit
	}

	type target struct {
		name   string
		search func(ctx context.Context, vector []float32) ([]models.SearchHit, error)
	}
	var targets []target

	if q.IncludeInternal {
		var scoped []int64
		if len(q.DepartmentIDs) > 0 {
			scoped = scopeDepartments(s.treeOrEmpty(ctx), q.DepartmentIDs)
		}
		targets = append(targets, target{
			name: models.SourceInternal,
			search: func(ctx context.Context, vector []float32) ([]models.SearchHit, error) {
				return s.searchInternal(ctx, vector, scoped, limit)
			},
		})
	}
	for _, id := range s.registry.ValidateIDs(q.ExternalSourceIDs) {
		targets = append(targets, target{
			name: id,
			search: func(ctx context.Context, vector []float32) ([]models.SearchHit, error) {
				return s.searchExternal(ctx, id, vector, limit)
			},
		})
	}
	if len(targets) == 0 {
		return []models.SearchHit{}, nil
	}

	vector, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results := make([][]models.SearchHit, len(targets))
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i], errs[i] = t.search(ctx, vector)
		}
		if err := s.pool.Submit(task); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submit %s search: %w", t.name, err)
		}
	}
	wg.Wait()

	var (
		hits   []models.SearchHit
		failed []error
	)
	for i, t := range targets {
		if errs[i] != nil {
			s.logger.Warn("semantic source failed, skipping",
				zap.String("source", t.name), zap.Error(errs[i]))
			metrics.SemanticDegraded.WithLabelValues(t.name).Inc()
			failed = append(failed, errs[i])
			continue
		}
		hits = append(hits, results[i]...)
	}
	if len(failed) == len(targets) {
		return nil, fmt.Errorf("%w: %w", ErrVectorStore, errors.Join(failed...))
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if hits == nil {
		hits = []models.SearchHit{}
	}
	return hits, nil
}

// searchExternal queries one external source or sub-source through the client cache
func (s *SearchService) searchExternal(ctx context.Context, id string, vector []float32, limit int) ([]models.SearchHit, error) {
	source, sub, ok := s.registry.Resolve(id)
	if !ok {
		return nil, fmt.Errorf("unknown external source %s", id)
	}
	if s.clients == nil {
		return nil, fmt.Errorf("no client cache for external source %s", id)
	}
	searcher, err := s.clients.Get(source)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeouts.Vector)
	defer cancel()

	hits, err := searcher.Search(ctx, sub, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVectorStore, err)
	}
	return hits, nil
}
