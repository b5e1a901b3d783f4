package qdrantdb

import (
	"context"
	"errors"
	"testing"

	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeQuerier struct {
	points []*qdrant.ScoredPoint
	err    error
	last   *qdrant.QueryPoints
}

func (f *fakeQuerier) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.last = req
	return f.points, f.err
}

func TestLookupDottedPaths(t *testing.T) {
	payload := qdrant.NewValueMap(map[string]any{
		"content": "Lagtext",
		"metadata": map[string]any{
			"url":       "https://lagen.nu/1977:1160",
			"filter_id": "aml",
			"nested":    map[string]any{"depth": 3},
		},
		"metadata.flat": "flat key wins",
	})

	assert.Equal(t, "Lagtext", stringAt(payload, "content"))
	assert.Equal(t, "https://lagen.nu/1977:1160", stringAt(payload, "metadata.url"))
	assert.Equal(t, "3", stringAt(payload, "metadata.nested.depth"))
	assert.Equal(t, "flat key wins", stringAt(payload, "metadata.flat"))
	assert.Equal(t, "", stringAt(payload, "metadata.missing"))
	assert.Equal(t, "", stringAt(payload, "content.deeper"))
	assert.Equal(t, int64(3), intAt(payload, "metadata.nested.depth"))
}

func TestArticleIndexBuildsHitsAndFilter(t *testing.T) {
	fq := &fakeQuerier{points: []*qdrant.ScoredPoint{{
		Id:    qdrant.NewIDNum(17),
		Score: 0.82,
		Payload: qdrant.NewValueMap(map[string]any{
			FieldArticleID:      42,
			FieldTitle:          "Policy för distansarbete",
			FieldText:           "Distansarbete kan beviljas...",
			FieldSlug:           "distansarbete",
			FieldDepartmentPath: "kommunstyrelsen/hr",
			FieldDepartmentName: "HR",
			FieldDocumentType:   "policy",
		}),
	}}}
	idx := &ArticleIndex{client: fq, collection: "articles", baseURL: "https://kp.example.se"}

	hits, err := idx.SearchArticles(context.Background(), repository.VectorQuery{
		Vector: []float32{0.1, 0.2}, Limit: 10, DepartmentIDs: []int64{3, 4},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hit := hits[0]
	assert.Equal(t, "17", hit.ID)
	assert.Equal(t, int64(42), hit.ArticleID)
	assert.Equal(t, models.SourceInternal, hit.Source)
	assert.False(t, hit.IsExternal)
	assert.InDelta(t, 0.82, hit.Score, 1e-6)
	assert.Equal(t, "https://kp.example.se/kommunstyrelsen/hr/distansarbete", hit.URL)
	assert.Equal(t, "HR", hit.Department)

	require.NotNil(t, fq.last.Filter)
	cond := fq.last.Filter.Must[0].GetField()
	assert.Equal(t, FieldDepartment, cond.GetKey())
	assert.Equal(t, []int64{3, 4}, cond.GetMatch().GetIntegers().GetIntegers())
	assert.Equal(t, uint64(10), fq.last.GetLimit())
}

func TestArticleIndexMissingCollection(t *testing.T) {
	fq := &fakeQuerier{err: status.Error(codes.NotFound, "Collection `articles` doesn't exist!")}
	idx := &ArticleIndex{client: fq, collection: "articles"}

	_, err := idx.SearchArticles(context.Background(), repository.VectorQuery{Vector: []float32{1}, Limit: 5})
	assert.True(t, errors.Is(err, repository.ErrCollectionNotFound))

	fq.err = status.Error(codes.Unavailable, "connection refused")
	_, err = idx.SearchArticles(context.Background(), repository.VectorQuery{Vector: []float32{1}, Limit: 5})
	require.Error(t, err)
	assert.False(t, errors.Is(err, repository.ErrCollectionNotFound))
}

func TestExternalSearcherMapsFieldsAndSubSource(t *testing.T) {
	fq := &fakeQuerier{points: []*qdrant.ScoredPoint{{
		Id:    qdrant.NewIDUUID("6f1c1e3a-8f53-4b8e-9d7e-1d2c3b4a5f60"),
		Score: 0.71,
		Payload: qdrant.NewValueMap(map[string]any{
			"body": "3 kap. 1 §",
			"meta": map[string]any{"link": "https://lagen.nu/1977:1160#K3", "name": "Arbetsmiljölagen"},
		}),
	}}}
	s := &ExternalSearcher{
		client: fq,
		source: models.ExternalSourceConfig{
			ID:         "lagar",
			Collection: "sfs",
			Mapping:    models.FieldMapping{URL: "meta.link", Title: "meta.name", Content: "body", FilterField: "meta.law"},
			SubSources: []models.SubSource{{ID: "aml", Label: "Arbetsmiljölagen"}},
		},
	}

	hits, err := s.Search(context.Background(), "aml", []float32{0.3}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "lagar.aml", hits[0].Source)
	assert.True(t, hits[0].IsExternal)
	assert.Equal(t, "https://lagen.nu/1977:1160#K3", hits[0].URL)
	assert.Equal(t, "Arbetsmiljölagen", hits[0].Title)
	assert.Equal(t, "3 kap. 1 §", hits[0].Text)

	cond := fq.last.Filter.Must[0].GetField()
	assert.Equal(t, "meta.law", cond.GetKey())
	assert.Equal(t, "aml", cond.GetMatch().GetKeyword())

	hits, err = s.Search(context.Background(), "", []float32{0.3}, 5)
	require.NoError(t, err)
	assert.Equal(t, "lagar", hits[0].Source)
	assert.Nil(t, fq.last.Filter)
}
