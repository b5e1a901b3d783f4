package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	id     string
	closed int
}

func (s *stubSearcher) Search(context.Context, string, []float32, int) ([]models.SearchHit, error) {
	return nil, nil
}

func (s *stubSearcher) Close() error {
	s.closed++
	return nil
}

func TestClientCacheReusesUntilInvalidated(t *testing.T) {
	calls := map[string]int{}
	cache := NewClientCache(func(src models.ExternalSourceConfig) (repository.ExternalSearcher, error) {
		calls[src.ID]++
		return &stubSearcher{id: src.ID}, nil
	})
	lagar := models.ExternalSourceConfig{ID: "lagar"}

	first, err := cache.Get(lagar)
	require.NoError(t, err)
	second, err := cache.Get(lagar)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls["lagar"])

	require.NoError(t, cache.Invalidate("lagar"))
	assert.Equal(t, 1, first.(*stubSearcher).closed)

	third, err := cache.Get(lagar)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, calls["lagar"])

	require.NoError(t, cache.Invalidate("never-created"))
	require.NoError(t, cache.Close())
	assert.Equal(t, 1, third.(*stubSearcher).closed)
}

func TestClientCacheFactoryError(t *testing.T) {
	cache := NewClientCache(func(models.ExternalSourceConfig) (repository.ExternalSearcher, error) {
		return nil, errors.New("dial failed")
	})
	_, err := cache.Get(models.ExternalSourceConfig{ID: "x"})
	assert.ErrorContains(t, err, "dial failed")
}
