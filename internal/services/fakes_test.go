package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
	"github.com/kunskapsportal-search-api/internal/sources"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeArticles struct {
	mu          sync.Mutex
	corpus      []models.Article
	keywordErr  error
	lastFilter  repository.ArticleFilter
	hydrateIDs  [][]int64
	listCalls   int
	listedSort  string
	listedRange [2]int
}

// SearchKeyword mimics the ILIKE predicate over title, content, summary and author
func (f *fakeArticles) SearchKeyword(_ context.Context, query string, filter repository.ArticleFilter, limit int) ([]models.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	q := strings.ToLower(query)
	var out []models.Article
	for _, a := range f.corpus {
		if !inDepartments(a, filter.DepartmentIDs) {
			continue
		}
		text := strings.ToLower(a.Title + " " + a.Content + " " + a.Summary + " " + a.Author)
		if strings.Contains(text, q) {
			out = append(out, a)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeArticles) GetByIDs(_ context.Context, ids []int64) ([]models.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hydrateIDs = append(f.hydrateIDs, append([]int64(nil), ids...))
	var out []models.Article
	for _, id := range ids {
		for _, a := range f.corpus {
			if a.ID == id {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (f *fakeArticles) List(_ context.Context, filter repository.ArticleFilter, sort string, limit, offset int) (repository.ArticlePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.lastFilter = filter
	f.listedSort = sort
	f.listedRange = [2]int{limit, offset}
	var all []models.Article
	for _, a := range f.corpus {
		if inDepartments(a, filter.DepartmentIDs) {
			all = append(all, a)
		}
	}
	page := repository.ArticlePage{Total: len(all)}
	for i := offset; i < len(all) && i < offset+limit; i++ {
		page.Articles = append(page.Articles, all[i])
	}
	return page, nil
}

func inDepartments(a models.Article, ids []int64) bool {
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if a.Department.ID() == id {
			return true
		}
	}
	return false
}

type fakeDepartments struct {
	depts []models.Department
	err   error
}

func (f *fakeDepartments) ListAll(context.Context) ([]models.Department, error) {
	return f.depts, f.err
}

type fakeVectors struct {
	mu        sync.Mutex
	hits      []models.SearchHit
	err       error
	lastQuery repository.VectorQuery
}

func (f *fakeVectors) SearchArticles(_ context.Context, q repository.VectorQuery) ([]models.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	return f.hits, f.err
}

type fakeEmbedder struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type stubExternal struct {
	hits []models.SearchHit
	err  error
	subs []string
	mu   sync.Mutex
}

func (s *stubExternal) Search(_ context.Context, sub string, _ []float32, _ int) ([]models.SearchHit, error) {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return s.hits, s.err
}

func (s *stubExternal) Close() error { return nil }

var errStoreDown = errors.New("connection refused")

func ptr(id int64) *int64 { return &id }

func testDepartments() []models.Department {
	return []models.Department{
		{ID: 1, Name: "Kommunstyrelsen", Slug: "kommunstyrelsen"},
		{ID: 2, Name: "HR", Slug: "hr", ParentID: ptr(1)},
		{ID: 3, Name: "Kultur", Slug: "kultur"},
	}
}

type testEnv struct {
	articles *fakeArticles
	vectors  *fakeVectors
	embedder *fakeEmbedder
	external map[string]*stubExternal
	svc      *SearchService
}

func newTestEnv(t *testing.T, corpus []models.Article, configs ...models.ExternalSourceConfig) *testEnv {
	t.Helper()
	env := &testEnv{
		articles: &fakeArticles{corpus: corpus},
		vectors:  &fakeVectors{},
		embedder: &fakeEmbedder{},
		external: map[string]*stubExternal{},
	}
	for _, c := range configs {
		env.external[c.ID] = &stubExternal{}
	}
	cache := sources.NewClientCache(func(c models.ExternalSourceConfig) (repository.ExternalSearcher, error) {
		return env.external[c.ID], nil
	})
	svc, err := NewSearchService(SearchDeps{
		Articles:    env.articles,
		Departments: &fakeDepartments{depts: testDepartments()},
		Vectors:     env.vectors,
		Embedder:    env.embedder,
		Registry:    sources.NewRegistry(configs, zap.NewNop()),
		Clients:     cache,
	}, SearchOptions{
		Tuning:        DefaultTuning(),
		PoolSize:      4,
		PublicBaseURL: "https://kp.example.se",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	env.svc = svc
	return env
}

func article(id int64, title, content string, dept int64) models.Article {
	a := models.Article{ID: id, Title: title, Slug: strings.ReplaceAll(strings.ToLower(title), " ", "-"), Content: content, Status: models.StatusPublished}
	if dept != 0 {
		a.Department = models.DepartmentID(dept)
	}
	return a
}

func chunk(articleID int64, score float64) models.SearchHit {
	return models.SearchHit{ArticleID: articleID, Score: score, Source: models.SourceInternal}
}
