package vertex

import (
	"context"
	"errors"
	"testing"

	aiplatformpb "cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinder struct {
	resp *aiplatformpb.FindNeighborsResponse
	err  error
	req  *aiplatformpb.FindNeighborsRequest
}

func (f *fakeFinder) FindNeighbors(_ context.Context, req *aiplatformpb.FindNeighborsRequest, _ ...gax.CallOption) (*aiplatformpb.FindNeighborsResponse, error) {
	f.req = req
	return f.resp, f.err
}

type fakeChunks struct {
	hits map[string]models.SearchHit
	ids  []string
}

func (f *fakeChunks) ChunksByID(_ context.Context, ids []string) (map[string]models.SearchHit, error) {
	f.ids = ids
	return f.hits, nil
}

func neighbors(pairs ...any) *aiplatformpb.FindNeighborsResponse {
	var ns []*aiplatformpb.FindNeighborsResponse_Neighbor
	for i := 0; i < len(pairs); i += 2 {
		ns = append(ns, &aiplatformpb.FindNeighborsResponse_Neighbor{
			Datapoint: &aiplatformpb.IndexDatapoint{DatapointId: pairs[i].(string)},
			Distance:  pairs[i+1].(float64),
		})
	}
	return &aiplatformpb.FindNeighborsResponse{
		NearestNeighbors: []*aiplatformpb.FindNeighborsResponse_NearestNeighbors{{Neighbors: ns}},
	}
}

var testConfig = Config{ProjectID: "kp", Location: "europe-north1", IndexEndpointID: "42", DeployedIndexID: "articles_v1"}

func TestDepartmentRestricts(t *testing.T) {
	assert.Nil(t, departmentRestricts(nil))

	restricts := departmentRestricts([]int64{4, 12})
	require.Len(t, restricts, 1)
	assert.Equal(t, DepartmentNamespace, restricts[0].Namespace)
	assert.Equal(t, []string{"4", "12"}, restricts[0].AllowList)
}

func TestConfigEndpoints(t *testing.T) {
	assert.Equal(t, "projects/kp/locations/europe-north1/indexEndpoints/42", testConfig.IndexEndpoint())
	assert.Equal(t, "europe-north1-aiplatform.googleapis.com:443", testConfig.apiEndpoint())

	public := testConfig
	public.PublicEndpointDomain = "123.europe-north1-987.vdb.vertexai.goog"
	assert.Equal(t, "123.europe-north1-987.vdb.vertexai.goog:443", public.apiEndpoint())
}

func TestSearchArticlesKeepsIndexOrder(t *testing.T) {
	finder := &fakeFinder{resp: neighbors("c2", 0.1, "c1", 0.3, "c2", 0.5, "gone", 0.4)}
	chunks := &fakeChunks{hits: map[string]models.SearchHit{
		"c1": {ID: "c1", ArticleID: 1, Title: "Semester"},
		"c2": {ID: "c2", ArticleID: 2, Title: "Distansarbete"},
	}}
	idx := NewArticleIndexWith(testConfig, finder, chunks)

	hits, err := idx.SearchArticles(context.Background(), repository.VectorQuery{
		Vector: []float32{0.1, 0.2}, Limit: 5, DepartmentIDs: []int64{3},
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c2", hits[0].ID)
	assert.InDelta(t, 0.9, hits[0].Score, 1e-9)
	assert.Equal(t, "c1", hits[1].ID)
	assert.InDelta(t, 0.7, hits[1].Score, 1e-9)
	assert.Equal(t, []string{"c2", "c1", "gone"}, chunks.ids)

	require.NotNil(t, finder.req)
	assert.Equal(t, "articles_v1", finder.req.DeployedIndexId)
	require.Len(t, finder.req.Queries, 1)
	assert.Equal(t, int32(5), finder.req.Queries[0].NeighborCount)
	assert.Equal(t, []string{"3"}, finder.req.Queries[0].Datapoint.Restricts[0].AllowList)
}

func TestSearchArticlesNoNeighbors(t *testing.T) {
	chunks := &fakeChunks{}
	idx := NewArticleIndexWith(testConfig, &fakeFinder{resp: &aiplatformpb.FindNeighborsResponse{}}, chunks)

	hits, err := idx.SearchArticles(context.Background(), repository.VectorQuery{Vector: []float32{1}, Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Nil(t, chunks.ids)
}

func TestSearchArticlesFinderError(t *testing.T) {
	idx := NewArticleIndexWith(testConfig, &fakeFinder{err: errors.New("unavailable")}, &fakeChunks{})

	_, err := idx.SearchArticles(context.Background(), repository.VectorQuery{Vector: []float32{1}, Limit: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find neighbors")
	assert.NoError(t, idx.Close())
}
