package chat

import (
	"strings"

	"google.golang.org/genai"
)

// GroundingSources extracts web citations from every candidate's grounding metadata.
// Chunks referenced by groundingSupports come first in support order, unreferenced
// chunks follow in chunk order. Results are deduplicated by URL.
func GroundingSources(resp *genai.GenerateContentResponse) []GroundingSource {
	if resp == nil {
		return nil
	}

	var out []GroundingSource
	seen := make(map[string]struct{})
	add := func(chunk *genai.GroundingChunk) {
		src, ok := chunkSource(chunk)
		if !ok {
			return
		}
		if _, dup := seen[src.URL]; dup {
			return
		}
		seen[src.URL] = struct{}{}
		out = append(out, src)
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		chunks := cand.GroundingMetadata.GroundingChunks
		used := make([]bool, len(chunks))
		for _, support := range cand.GroundingMetadata.GroundingSupports {
			if support == nil {
				continue
			}
			for _, idx := range support.GroundingChunkIndices {
				if idx < 0 || int(idx) >= len(chunks) {
					continue
				}
				used[idx] = true
				add(chunks[idx])
			}
		}
		for i, chunk := range chunks {
			if !used[i] {
				add(chunk)
			}
		}
	}
	return out
}

func chunkSource(chunk *genai.GroundingChunk) (GroundingSource, bool) {
	if chunk == nil {
		return GroundingSource{}, false
	}
	var title, uri, domain string
	switch {
	case chunk.Web != nil:
		title, uri, domain = chunk.Web.Title, chunk.Web.URI, chunk.Web.Domain
	case chunk.RetrievedContext != nil:
		title, uri = chunk.RetrievedContext.Title, chunk.RetrievedContext.URI
	}
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return GroundingSource{}, false
	}
	switch {
	case strings.TrimSpace(title) != "":
		title = strings.TrimSpace(title)
	case domain != "":
		title = domain
	default:
		title = uri
	}
	return GroundingSource{Title: title, URL: uri}, true
}
