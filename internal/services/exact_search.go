package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
)

// Exact match scores
const (
	ExactTitleScore    = 1.0
	ExactContentScore  = 0.85
	ExactBaselineScore = 0.5
)

// scoreExactMatch scores an article returned by the keyword predicate.
// Rows matching nowhere visible still matched something in the store and get the baseline.
func scoreExactMatch(a models.Article, query string) (float64, models.MatchType) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return ExactBaselineScore, models.MatchExactContent
	}
	if strings.Contains(strings.ToLower(a.Title), q) {
		return ExactTitleScore, models.MatchExactTitle
	}
	for _, field := range []string{a.Content, a.Summary, a.Author} {
		if strings.Contains(strings.ToLower(field), q) {
			return ExactContentScore, models.MatchExactContent
		}
	}
	return ExactBaselineScore, models.MatchExactContent
}

// exactSearch queries the lexical store and scores every row, best first
func (s *SearchService) exactSearch(ctx context.Context, query string, departmentIDs []int64) ([]models.HybridResult, error) {
	articles, err := s.articles.SearchKeyword(ctx, query, repository.ArticleFilter{DepartmentIDs: departmentIDs}, s.tuning.ExactLimit)
	if err != nil {
		return nil, fmt.Errorf("exact search: %w", err)
	}

	results := make([]models.HybridResult, 0, len(articles))
	seen := make(map[int64]struct{}, len(articles))
	for _, a := range articles {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		score, matchType := scoreExactMatch(a, query)
		results = append(results, models.HybridResult{Article: a, Score: score, MatchType: matchType})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}
