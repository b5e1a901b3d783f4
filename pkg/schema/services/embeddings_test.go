package services

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/kunskapsportal-search-api/pkg/schema/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

type countingEmbedder struct {
	calls int
	vec   []float32
	err   error
}

func (e *countingEmbedder) Embed(_ context.Context, _ string, _ TaskType) ([]float32, error) {
	e.calls++
	return e.vec, e.err
}

type mapCache struct {
	data   map[string][]float32
	getErr error
}

func (c *mapCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, vec []float32) error {
	c.data[key] = vec
	return nil
}

func TestEmbedQueryUsesCache(t *testing.T) {
	emb := &countingEmbedder{vec: []float32{0.1, 0.2}}
	cache := &mapCache{data: map[string][]float32{}}
	svc := NewEmbeddingsServiceWith(emb, "openai/test", cache, nil)

	first, err := svc.EmbedQuery(context.Background(), "bygglov")
	require.NoError(t, err)
	second, err := svc.EmbedQuery(context.Background(), "bygglov")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, emb.calls)
	assert.Len(t, cache.data, 1)
}

func TestEmbedQueryIgnoresCacheErrors(t *testing.T) {
	emb := &countingEmbedder{vec: []float32{1}}
	cache := &mapCache{data: map[string][]float32{}, getErr: errors.New("redis down")}
	svc := NewEmbeddingsServiceWith(emb, "m", cache, nil)

	vec, err := svc.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
}

func TestEmbedQueryRejectsEmptyVector(t *testing.T) {
	svc := NewEmbeddingsServiceWith(&countingEmbedder{}, "m", nil, nil)
	_, err := svc.EmbedQuery(context.Background(), "q")
	assert.Error(t, err)
}

func TestCacheKeySeparatesModels(t *testing.T) {
	a := embeddingCacheKey("openai/a", TaskTypeQuery, "x")
	b := embeddingCacheKey("openai/b", TaskTypeQuery, "x")
	c := embeddingCacheKey("openai/a", TaskTypeDocument, "x")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, embeddingCacheKey("openai/a", TaskTypeQuery, "x"))
}

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0, -1.5, 3.25}
	decoded, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestParsePrediction(t *testing.T) {
	pred, err := structpb.NewValue(map[string]interface{}{
		"embeddings": map[string]interface{}{
			"values": []interface{}{0.5, 0.25},
		},
	})
	require.NoError(t, err)

	vec, err := parsePrediction(pred)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vec)

	bad, err := structpb.NewValue(map[string]interface{}{"other": 1})
	require.NoError(t, err)
	_, err = parsePrediction(bad)
	assert.Error(t, err)
}

type fakePredictor struct {
	req  *aiplatformpb.PredictRequest
	resp *aiplatformpb.PredictResponse
}

func (p *fakePredictor) Predict(_ context.Context, req *aiplatformpb.PredictRequest, _ ...gax.CallOption) (*aiplatformpb.PredictResponse, error) {
	p.req = req
	return p.resp, nil
}

func TestVertexEmbedderRequest(t *testing.T) {
	pred, err := structpb.NewValue(map[string]interface{}{
		"embeddings": map[string]interface{}{"values": []interface{}{1.0, 2.0}},
	})
	require.NoError(t, err)
	p := &fakePredictor{resp: &aiplatformpb.PredictResponse{Predictions: []*structpb.Value{pred}}}
	e := NewVertexEmbedderWith(p, vertexModelName("kp", "europe-north1", "text-multilingual-embedding-002"), 768)

	vec, err := e.Embed(context.Background(), "bygglov", TaskTypeQuery)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)

	require.NotNil(t, p.req)
	assert.Equal(t, "projects/kp/locations/europe-north1/publishers/google/models/text-multilingual-embedding-002", p.req.Endpoint)
	require.Len(t, p.req.Instances, 1)
	fields := p.req.Instances[0].GetStructValue().GetFields()
	assert.Equal(t, "bygglov", fields["content"].GetStringValue())
	assert.Equal(t, "RETRIEVAL_QUERY", fields["task_type"].GetStringValue())
	assert.Equal(t, 768.0, p.req.Parameters.GetStructValue().GetFields()["outputDimensionality"].GetNumberValue())
	assert.NoError(t, e.Close())
}

func TestVertexEmbedderNoPredictions(t *testing.T) {
	e := NewVertexEmbedderWith(&fakePredictor{resp: &aiplatformpb.PredictResponse{}}, "m", 0)
	_, err := e.Embed(context.Background(), "x", TaskTypeQuery)
	assert.Error(t, err)
}

func TestEmbeddingsServiceWithoutCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{"openai without key", &config.Config{EmbeddingProvider: "openai", OpenAIEmbeddingModel: "text-embedding-3-large"}},
		{"vertex without project", &config.Config{EmbeddingProvider: "vertex", VertexModel: "text-multilingual-embedding-002"}},
		{"custom without url", &config.Config{EmbeddingProvider: "custom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewEmbeddingsService(context.Background(), tt.cfg, nil, nil)
			require.NoError(t, err)

			_, err = svc.EmbedQuery(context.Background(), "bygglov")
			assert.ErrorIs(t, err, ErrMissingCredentials)
			assert.NoError(t, svc.Close())
		})
	}
}

type closingCache struct {
	mapCache
	closed int
}

func (c *closingCache) Close() error {
	c.closed++
	return nil
}

func TestCloseReleasesCacheOnce(t *testing.T) {
	cache := &closingCache{mapCache: mapCache{data: map[string][]float32{}}}
	svc := NewEmbeddingsServiceWith(&countingEmbedder{vec: []float32{1}}, "m", cache, nil)

	require.NoError(t, svc.Close())
	assert.Equal(t, 1, cache.closed)
}
