package sources

import (
	"github.com/kunskapsportal-search-api/internal/models"
	"go.uber.org/zap"
)

// Registry is the immutable set of enabled external sources
type Registry struct {
	sources []models.ExternalSourceConfig
	byID    map[string]int
	logger  *zap.Logger
}

// NewRegistry drops disabled sources and applies default field mappings
func NewRegistry(configs []models.ExternalSourceConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		byID:   make(map[string]int, len(configs)),
		logger: logger.Named("sources"),
	}
	for _, c := range configs {
		if !c.IsEnabled() || c.ID == "" {
			continue
		}
		c = withDefaults(c)
		if i, ok := r.byID[c.ID]; ok {
			r.sources[i] = c
			continue
		}
		r.byID[c.ID] = len(r.sources)
		r.sources = append(r.sources, c)
	}
	return r
}

func withDefaults(c models.ExternalSourceConfig) models.ExternalSourceConfig {
	if c.Mapping.URL == "" {
		c.Mapping.URL = models.DefaultURLPath
	}
	if c.Mapping.Title == "" {
		c.Mapping.Title = models.DefaultTitlePath
	}
	if c.Mapping.Content == "" {
		c.Mapping.Content = models.DefaultContentPath
	}
	if c.IsHierarchical() && c.Mapping.FilterField == "" {
		c.Mapping.FilterField = models.DefaultFilterFieldPath
	}
	if c.Label == "" {
		c.Label = c.ID
	}
	return c
}

// Sources returns the enabled sources in declaration order
func (r *Registry) Sources() []models.ExternalSourceConfig {
	out := make([]models.ExternalSourceConfig, len(r.sources))
	copy(out, r.sources)
	return out
}

// Len returns the number of enabled sources
func (r *Registry) Len() int {
	return len(r.sources)
}

// Get returns the source registered under id
func (r *Registry) Get(id string) (models.ExternalSourceConfig, bool) {
	i, ok := r.byID[id]
	if !ok {
		return models.ExternalSourceConfig{}, false
	}
	return r.sources[i], true
}

// Resolve maps "id" or "id.sub" to its source and sub-source id.
// ok is false when the source or the sub-source is unknown.
func (r *Registry) Resolve(id string) (source models.ExternalSourceConfig, subSourceID string, ok bool) {
	if source, ok = r.Get(id); ok {
		return source, "", true
	}
	parent, sub := models.SplitSourceID(id)
	if sub == "" {
		return models.ExternalSourceConfig{}, "", false
	}
	source, ok = r.Get(parent)
	if !ok || !source.IsHierarchical() {
		return models.ExternalSourceConfig{}, "", false
	}
	if _, ok = source.SubSource(sub); !ok {
		return models.ExternalSourceConfig{}, "", false
	}
	return source, sub, true
}

// Label returns the display label of an id, including the sub-source label for "id.sub"
func (r *Registry) Label(id string) string {
	source, sub, ok := r.Resolve(id)
	if !ok {
		return id
	}
	if sub == "" {
		return source.Label
	}
	s, _ := source.SubSource(sub)
	return source.Label + " / " + s.Label
}

// ValidateIDs keeps the ids that name a registered source or sub-source.
// Unknown ids are dropped with a warning; duplicates are removed.
func (r *Registry) ValidateIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	var dropped []string
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		if _, _, ok := r.Resolve(id); !ok {
			dropped = append(dropped, id)
			continue
		}
		seen[id] = struct{}{}
		valid = append(valid, id)
	}
	if len(dropped) > 0 {
		r.logger.Warn("dropping unknown external source ids", zap.Strings("ids", dropped))
	}
	return valid
}

// Catalog returns the selection-UI view of all enabled sources
func (r *Registry) Catalog() []models.ExternalSourceCatalogEntry {
	out := make([]models.ExternalSourceCatalogEntry, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, models.ExternalSourceCatalogEntry{
			ID:          s.ID,
			Label:       s.Label,
			Description: s.Description,
			SubSources:  s.SubSources,
		})
	}
	return out
}
