// Package sources holds the external source registry and the per-source client cache.
package sources

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/kunskapsportal-search-api/internal/models"
)

// sourcesKey is the root key holding the source list in both file and inline config
const sourcesKey = "sources"

// Load reads external source definitions from a YAML/JSON file and an inline YAML/JSON document.
// Either may be empty. On id collision the later definition wins and keeps the first position.
//
//	sources:
//	  - id: lagar
//	    label: Svensk författningssamling
//	    collection: sfs
//	    connection: {host: qdrant.internal, port: 6334}
//	    subSources:
//	      - {id: aml, label: Arbetsmiljölagen}
func Load(file, inline string) ([]models.ExternalSourceConfig, error) {
	var all []models.ExternalSourceConfig

	if file != "" {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read external sources file: %w", err)
		}
		parsed, err := Parse(content)
		if err != nil {
			return nil, fmt.Errorf("external sources file %s: %w", file, err)
		}
		all = append(all, parsed...)
	}

	if inline != "" {
		parsed, err := Parse([]byte(inline))
		if err != nil {
			return nil, fmt.Errorf("inline external sources: %w", err)
		}
		all = append(all, parsed...)
	}

	return mergeByID(all), nil
}

// Parse decodes one YAML or JSON document with a top-level "sources" list
func Parse(content []byte) ([]models.ExternalSourceConfig, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	var configs []models.ExternalSourceConfig
	if err := k.Unmarshal(sourcesKey, &configs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", sourcesKey, err)
	}
	return configs, nil
}

func mergeByID(configs []models.ExternalSourceConfig) []models.ExternalSourceConfig {
	index := make(map[string]int, len(configs))
	merged := make([]models.ExternalSourceConfig, 0, len(configs))
	for _, c := range configs {
		if c.ID == "" {
			continue
		}
		if i, ok := index[c.ID]; ok {
			merged[i] = c
			continue
		}
		index[c.ID] = len(merged)
		merged = append(merged, c)
	}
	return merged
}
