package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/sources"
)

// SemanticSearcher is the retrieval capability behind the knowledge tool
type SemanticSearcher interface {
	SemanticSearch(ctx context.Context, q SemanticQuery) ([]models.SearchHit, error)
}

// KnowledgeResult is what one knowledge search returns to the chat loop
type KnowledgeResult struct {
	Formatted     string
	Hits          []models.SearchHit
	InternalCount int
	ExternalCount int
}

// Empty reports whether the search found nothing
func (r *KnowledgeResult) Empty() bool {
	return r == nil || len(r.Hits) == 0
}

// KnowledgeTool searches the user's selected departments and external sources
type KnowledgeTool struct {
	searcher         SemanticSearcher
	registry         *sources.Registry
	resultsPerSource int
	excerptChars     int
}

// NewKnowledgeTool creates the tool; zero limits fall back to 10 hits and 800 runes
func NewKnowledgeTool(searcher SemanticSearcher, registry *sources.Registry, resultsPerSource, excerptChars int) *KnowledgeTool {
	if resultsPerSource <= 0 {
		resultsPerSource = 10
	}
	if excerptChars <= 0 {
		excerptChars = 800
	}
	if registry == nil {
		registry = sources.NewRegistry(nil, nil)
	}
	return &KnowledgeTool{
		searcher:         searcher,
		registry:         registry,
		resultsPerSource: resultsPerSource,
		excerptChars:     excerptChars,
	}
}

// Search runs one knowledge search. The internal index is searched when departments
// are selected, or when nothing at all is selected.
func (t *KnowledgeTool) Search(ctx context.Context, query string, departmentIDs []int64, externalSourceIDs []string) (*KnowledgeResult, error) {
	includeInternal := len(departmentIDs) > 0 || len(externalSourceIDs) == 0
	hits, err := t.searcher.SemanticSearch(ctx, SemanticQuery{
		Query:             query,
		DepartmentIDs:     departmentIDs,
		ExternalSourceIDs: externalSourceIDs,
		IncludeInternal:   includeInternal,
		LimitPerSource:    t.resultsPerSource,
	})
	if err != nil {
		return nil, err
	}

	result := &KnowledgeResult{Hits: hits}
	for _, h := range hits {
		if h.IsExternal {
			result.ExternalCount++
		} else {
			result.InternalCount++
		}
	}
	result.Formatted = t.format(hits)
	return result, nil
}

// format renders hits as numbered blocks for the model
func (t *KnowledgeTool) format(hits []models.SearchHit) string {
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n", i+1, h.Title)
		fmt.Fprintf(&b, "URL: %s\n", h.URL)
		if h.IsExternal {
			fmt.Fprintf(&b, "Källa: %s (extern källa)\n", t.registry.Label(h.Source))
		} else {
			var meta []string
			if h.Department != "" {
				meta = append(meta, "Förvaltning: "+h.Department)
			}
			if h.DocumentType != "" {
				meta = append(meta, "Dokumenttyp: "+h.DocumentType)
			}
			if len(meta) > 0 {
				b.WriteString(strings.Join(meta, " | ") + "\n")
			}
		}
		fmt.Fprintf(&b, "Relevans: %.2f\n", h.Score)
		fmt.Fprintf(&b, "Utdrag: %s\n", truncateRunes(strings.TrimSpace(h.Text), t.excerptChars))
	}
	return b.String()
}

// SourcesFromHits builds citation metadata for hits, deduplicated by URL
func (t *KnowledgeTool) SourcesFromHits(hits []models.SearchHit) []models.SourceMetadata {
	out := make([]models.SourceMetadata, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		if h.URL == "" {
			continue
		}
		if _, dup := seen[h.URL]; dup {
			continue
		}
		seen[h.URL] = struct{}{}

		meta := models.SourceMetadata{
			Title: h.Title,
			URL:   h.URL,
		}
		if h.IsExternal {
			meta.Type = models.SourceTypeExternal
			meta.Source = h.Source
			meta.SourceLabel = t.registry.Label(h.Source)
			_, sub := models.SplitSourceID(h.Source)
			meta.IsSubSource = sub != ""
		} else {
			meta.Type = models.SourceTypeInternal
			meta.Source = models.SourceInternal
			meta.Department = h.Department
			meta.DocumentType = h.DocumentType
		}
		out = append(out, meta)
	}
	return out
}

// truncateRunes cuts s to at most n runes, marking the cut with an ellipsis
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}
