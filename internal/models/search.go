package models

// SourceInternal marks hits coming from the internal article index
const SourceInternal = "internal"

// SearchMode selects which sub-searches a hybrid search runs
type SearchMode string

const (
	ModeExact    SearchMode = "exact"
	ModeSemantic SearchMode = "semantic"
	ModeHybrid   SearchMode = "hybrid"
)

// ParseSearchMode maps a query-string value to a mode, defaulting to hybrid
func ParseSearchMode(s string) SearchMode {
	switch SearchMode(s) {
	case ModeExact, ModeSemantic:
		return SearchMode(s)
	default:
		return ModeHybrid
	}
}

// MatchType records why an article ended up in a hybrid result set
type MatchType string

const (
	MatchExactTitle   MatchType = "exact-title"
	MatchExactContent MatchType = "exact-content"
	MatchSemantic     MatchType = "semantic"
)

// IsExact reports whether the match came from the lexical store
func (m MatchType) IsExact() bool {
	return m == MatchExactTitle || m == MatchExactContent
}

// SearchHit is one scored retrieval result from a vector index.
// Scores are only comparable between hits of the same search method.
type SearchHit struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
	ArticleID    int64   `json:"articleId,omitempty"`
	Source       string  `json:"source"`
	IsExternal   bool    `json:"isExternal"`
	Department   string  `json:"department,omitempty"`
	DocumentType string  `json:"documentType,omitempty"`
	URL          string  `json:"url"`
}

// HybridResult is an article-level result after merging exact and semantic hits
type HybridResult struct {
	Article   Article   `json:"article"`
	Score     float64   `json:"score"`
	MatchType MatchType `json:"matchType"`
}

// SearchTimings records sub-search latency in milliseconds
type SearchTimings struct {
	ExactMs    int64 `json:"exactMs"`
	SemanticMs int64 `json:"semanticMs"`
	TotalMs    int64 `json:"totalMs"`
}

// HybridSearchRequest is the input of a hybrid search
type HybridSearchRequest struct {
	Query         string
	Mode          SearchMode
	DepartmentIDs []int64
	Limit         int
	Offset        int
}

// HybridSearchResponse is the paginated output of a hybrid search
type HybridSearchResponse struct {
	Results []HybridResult `json:"results"`
	Total   int            `json:"total"`
	Mode    SearchMode     `json:"mode"`
	Timings SearchTimings  `json:"timings"`
}

// SearchResponse is the body of GET /search
type SearchResponse struct {
	Results         []HybridResult `json:"results"`
	Total           int            `json:"total"`
	Mode            SearchMode     `json:"mode"`
	Timings         SearchTimings  `json:"timings"`
	ExternalResults []SearchHit    `json:"externalResults,omitempty"`
}

// DepartmentArticlesResponse is the paginated body of GET /departments/articles
type DepartmentArticlesResponse struct {
	Docs       []HybridResult `json:"docs"`
	TotalDocs  int            `json:"totalDocs"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"totalPages"`
	Mode       SearchMode     `json:"mode,omitempty"`
}
