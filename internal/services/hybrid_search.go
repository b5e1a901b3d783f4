package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kunskapsportal-search-api/internal/metrics"
	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
	pkgservices "github.com/kunskapsportal-search-api/pkg/schema/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HybridSearch runs the sub-searches selected by req.Mode and returns one page of merged results.
// Semantic failures degrade to exact-only results, except in semantic mode where a configuration
// error fails with ErrNotConfigured. Lexical store failures fail the call.
func (s *SearchService) HybridSearch(ctx context.Context, req models.HybridSearchRequest) (*models.HybridSearchResponse, error) {
	query, err := validQuery(req.Query)
	if err != nil {
		return nil, err
	}
	mode := models.ParseSearchMode(string(req.Mode))

	start := time.Now()
	tree := s.treeOrEmpty(ctx)
	scoped := scopeDepartments(tree, req.DepartmentIDs)

	var (
		exact     []models.HybridResult
		semantic  []semanticMatch
		timings   models.SearchTimings
		runExact  = mode != models.ModeSemantic
		runVector = mode != models.ModeExact
	)

	g, gctx := errgroup.WithContext(ctx)
	if runExact {
		g.Go(func() error {
			t := time.Now()
			defer func() { timings.ExactMs = time.Since(t).Milliseconds() }()

			results, err := s.exactSearch(gctx, query, scoped)
			if err != nil {
				return err
			}
			exact = results
			return nil
		})
	}
	if runVector {
		g.Go(func() error {
			t := time.Now()
			defer func() { timings.SemanticMs = time.Since(t).Milliseconds() }()

			matches, err := s.semanticArticles(gctx, query, scoped)
			if err != nil && mode == models.ModeSemantic && isConfigurationError(err) {
				return fmt.Errorf("%w: %w", ErrNotConfigured, err)
			}
			if err != nil {
				s.logger.Warn("semantic search degraded to empty results",
					zap.String("mode", string(mode)), zap.Error(err))
				metrics.SemanticDegraded.WithLabelValues(models.SourceInternal).Inc()
				return nil
			}
			semantic = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	hydrated, err := s.hydrateSemantic(ctx, exact, semantic)
	if err != nil {
		return nil, err
	}

	var merged []models.HybridResult
	switch mode {
	case models.ModeExact:
		merged = exact
	case models.ModeSemantic:
		merged = semanticOnly(semantic, hydrated)
	default:
		merged = mergeHybrid(exact, semantic, hydrated, s.tuning)
	}

	page := paginate(merged, req.Offset, req.Limit)
	s.withURLs(tree, page)

	timings.TotalMs = time.Since(start).Milliseconds()
	observeTimings(mode, timings, runExact, runVector)

	return &models.HybridSearchResponse{
		Results: page,
		Total:   len(merged),
		Mode:    mode,
		Timings: timings,
	}, nil
}

// isConfigurationError reports failures no retry can fix: missing credentials or an uncreated collection
func isConfigurationError(err error) bool {
	return errors.Is(err, pkgservices.ErrMissingCredentials) || errors.Is(err, repository.ErrCollectionNotFound)
}

// hydrateSemantic loads, in one batch, every semantically found article not already hydrated by exact search
func (s *SearchService) hydrateSemantic(ctx context.Context, exact []models.HybridResult, semantic []semanticMatch) (map[int64]models.Article, error) {
	known := make(map[int64]struct{}, len(exact))
	for _, r := range exact {
		known[r.Article.ID] = struct{}{}
	}
	var ids []int64
	for _, m := range semantic {
		if _, ok := known[m.ArticleID]; !ok {
			ids = append(ids, m.ArticleID)
		}
	}
	hydrated := make(map[int64]models.Article, len(ids))
	if len(ids) == 0 {
		return hydrated, nil
	}

	articles, err := s.articles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate semantic results: %w", err)
	}
	for _, a := range articles {
		hydrated[a.ID] = a
	}
	return hydrated, nil
}

// mergeHybrid combines exact and semantic results into one ranked list.
// Exact matches are always kept; semantic-only results below the floor are dropped.
func mergeHybrid(exact []models.HybridResult, semantic []semanticMatch, hydrated map[int64]models.Article, tuning Tuning) []models.HybridResult {
	merged := make([]models.HybridResult, 0, len(exact)+len(semantic))
	index := make(map[int64]int, len(exact)+len(semantic))

	for _, r := range exact {
		if _, dup := index[r.Article.ID]; dup {
			continue
		}
		index[r.Article.ID] = len(merged)
		merged = append(merged, r)
	}

	for _, m := range semantic {
		if i, ok := index[m.ArticleID]; ok {
			if !merged[i].MatchType.IsExact() {
				continue
			}
			boosted := math.Max(merged[i].Score, m.Score) + m.Score*tuning.SemanticBoost
			merged[i].Score = math.Min(1.0, boosted)
			continue
		}
		article, ok := hydrated[m.ArticleID]
		if !ok {
			continue
		}
		index[m.ArticleID] = len(merged)
		merged = append(merged, models.HybridResult{
			Article:   article,
			Score:     math.Min(1.0, m.Score),
			MatchType: models.MatchSemantic,
		})
	}

	filtered := merged[:0]
	for _, r := range merged {
		if r.MatchType == models.MatchSemantic && r.Score < tuning.SemanticFloor {
			continue
		}
		filtered = append(filtered, r)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	return filtered
}

// semanticOnly turns semantic matches into results in score order
func semanticOnly(semantic []semanticMatch, hydrated map[int64]models.Article) []models.HybridResult {
	results := make([]models.HybridResult, 0, len(semantic))
	for _, m := range semantic {
		if a, ok := hydrated[m.ArticleID]; ok {
			results = append(results, models.HybridResult{Article: a, Score: math.Min(1.0, m.Score), MatchType: models.MatchSemantic})
		}
	}
	return results
}

// paginate slices results; limit <= 0 returns everything after offset
func paginate(results []models.HybridResult, offset, limit int) []models.HybridResult {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []models.HybridResult{}
	}
	end := len(results)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := make([]models.HybridResult, end-offset)
	copy(page, results[offset:end])
	return page
}

func observeTimings(mode models.SearchMode, t models.SearchTimings, exact, semantic bool) {
	m := string(mode)
	if exact {
		metrics.SearchDuration.WithLabelValues(m, "exact").Observe(float64(t.ExactMs) / 1000)
	}
	if semantic {
		metrics.SearchDuration.WithLabelValues(m, "semantic").Observe(float64(t.SemanticMs) / 1000)
	}
	metrics.SearchDuration.WithLabelValues(m, "total").Observe(float64(t.TotalMs) / 1000)
}

// DepartmentArticlesRequest pages through one department subtree
type DepartmentArticlesRequest struct {
	DepartmentID int64
	Search       string
	Mode         models.SearchMode
	Sort         string
	Page         int
	Limit        int
}

// DepartmentArticles runs a hybrid search scoped to a department subtree when Search is set,
// and a plain sorted listing otherwise
func (s *SearchService) DepartmentArticles(ctx context.Context, req DepartmentArticlesRequest) (*models.DepartmentArticlesResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	offset := (req.Page - 1) * req.Limit

	var deptIDs []int64
	if req.DepartmentID != 0 {
		deptIDs = []int64{req.DepartmentID}
	}

	if req.Search != "" {
		resp, err := s.HybridSearch(ctx, models.HybridSearchRequest{
			Query:         req.Search,
			Mode:          req.Mode,
			DepartmentIDs: deptIDs,
			Limit:         req.Limit,
			Offset:        offset,
		})
		if err != nil {
			return nil, err
		}
		return &models.DepartmentArticlesResponse{
			Docs:       resp.Results,
			TotalDocs:  resp.Total,
			Page:       req.Page,
			Limit:      req.Limit,
			TotalPages: totalPages(resp.Total, req.Limit),
			Mode:       resp.Mode,
		}, nil
	}

	tree := s.treeOrEmpty(ctx)
	page, err := s.articles.List(ctx, repository.ArticleFilter{DepartmentIDs: scopeDepartments(tree, deptIDs)}, req.Sort, req.Limit, offset)
	if err != nil {
		return nil, err
	}
	docs := make([]models.HybridResult, len(page.Articles))
	for i, a := range page.Articles {
		docs[i] = models.HybridResult{Article: a}
	}
	s.withURLs(tree, docs)
	return &models.DepartmentArticlesResponse{
		Docs:       docs,
		TotalDocs:  page.Total,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: totalPages(page.Total, req.Limit),
	}, nil
}

func totalPages(total, limit int) int {
	if limit <= 0 || total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
