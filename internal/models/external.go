package models

import "strings"

// Default payload paths used to read external vector payloads
const (
	DefaultURLPath         = "metadata.url"
	DefaultTitlePath       = "metadata.title"
	DefaultContentPath     = "content"
	DefaultFilterFieldPath = "metadata.filter_id"
)

// FieldMapping tells the reader where url/title/content live in a stored payload
type FieldMapping struct {
	URL         string `json:"url" koanf:"url"`
	Title       string `json:"title" koanf:"title"`
	Content     string `json:"content" koanf:"content"`
	FilterField string `json:"filterField,omitempty" koanf:"filterField"`
}

// Connection holds the Qdrant connection settings of one external source
type Connection struct {
	Host   string `json:"-" koanf:"host"`
	Port   int    `json:"-" koanf:"port"`
	APIKey string `json:"-" koanf:"apiKey"`
	UseTLS bool   `json:"-" koanf:"useTls"`
}

// SubSource is one filterable slice of a hierarchical source
type SubSource struct {
	ID    string `json:"id" koanf:"id"`
	Label string `json:"label" koanf:"label"`
}

// ExternalSourceConfig describes one federated vector collection.
// Loaded once at startup and never mutated afterwards.
type ExternalSourceConfig struct {
	ID          string       `json:"id" koanf:"id"`
	Label       string       `json:"label" koanf:"label"`
	Description string       `json:"description,omitempty" koanf:"description"`
	Collection  string       `json:"collection" koanf:"collection"`
	Connection  Connection   `json:"-" koanf:"connection"`
	Mapping     FieldMapping `json:"mapping" koanf:"mapping"`
	SubSources  []SubSource  `json:"subSources,omitempty" koanf:"subSources"`
	Enabled     *bool        `json:"enabled,omitempty" koanf:"enabled"`
}

// IsHierarchical reports whether the source can be filtered by sub-source
func (c ExternalSourceConfig) IsHierarchical() bool {
	return len(c.SubSources) > 0
}

// IsEnabled treats an unset flag as enabled
func (c ExternalSourceConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// SubSource looks up a sub-source by id
func (c ExternalSourceConfig) SubSource(id string) (SubSource, bool) {
	for _, s := range c.SubSources {
		if s.ID == id {
			return s, true
		}
	}
	return SubSource{}, false
}

// SplitSourceID splits "parent.sub" into its parts; sub is empty for plain ids
func SplitSourceID(id string) (parent, sub string) {
	parent, sub, _ = strings.Cut(id, ".")
	return parent, sub
}

// ExternalSourceCatalogEntry is the selection-UI view of a source
type ExternalSourceCatalogEntry struct {
	ID          string      `json:"id"`
	Label       string      `json:"label"`
	Description string      `json:"description,omitempty"`
	SubSources  []SubSource `json:"subSources,omitempty"`
}
