package sources

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
)

// SearcherFactory opens a searcher for one external source
type SearcherFactory func(models.ExternalSourceConfig) (repository.ExternalSearcher, error)

// ClientCache keeps one searcher per source id for the lifetime of the process.
// Entries are only replaced after an explicit Invalidate.
type ClientCache struct {
	factory   SearcherFactory
	mu        sync.Mutex
	searchers map[string]repository.ExternalSearcher
}

// NewClientCache creates an empty cache backed by factory
func NewClientCache(factory SearcherFactory) *ClientCache {
	return &ClientCache{
		factory:   factory,
		searchers: make(map[string]repository.ExternalSearcher),
	}
}

// Get returns the cached searcher for source, creating it on first use
func (c *ClientCache) Get(source models.ExternalSourceConfig) (repository.ExternalSearcher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.searchers[source.ID]; ok {
		return s, nil
	}
	s, err := c.factory(source)
	if err != nil {
		return nil, fmt.Errorf("create searcher for %s: %w", source.ID, err)
	}
	c.searchers[source.ID] = s
	return s, nil
}

// Invalidate closes and forgets the searcher of one source
func (c *ClientCache) Invalidate(id string) error {
	c.mu.Lock()
	s, ok := c.searchers[id]
	delete(c.searchers, id)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close()
}

// Close closes every cached searcher
func (c *ClientCache) Close() error {
	c.mu.Lock()
	searchers := c.searchers
	c.searchers = make(map[string]repository.ExternalSearcher)
	c.mu.Unlock()

	var errs []error
	for id, s := range searchers {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
