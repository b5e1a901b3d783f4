package models

// Chat roles accepted in request history
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SourceType classifies a citation
type SourceType string

const (
	SourceTypeInternal SourceType = "internal"
	SourceTypeExternal SourceType = "external"
	SourceTypeGoogle   SourceType = "google"
)

// SourceMetadata is one citation returned alongside a chat answer
type SourceMetadata struct {
	Type         SourceType `json:"type"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	Source       string     `json:"source,omitempty"`
	SourceLabel  string     `json:"sourceLabel,omitempty"`
	Department   string     `json:"department,omitempty"`
	DocumentType string     `json:"documentType,omitempty"`
	IsSubSource  bool       `json:"isSubSource,omitempty"`
}

// ChatMessage is one prior turn supplied by the client
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ArticleContext scopes a conversation to one document
type ArticleContext struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url,omitempty"`
	Content    string `json:"content"`
	Department string `json:"department,omitempty"`
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Message            string          `json:"message"`
	DepartmentIDs      []int64         `json:"departmentIds"`
	ExternalSourceIDs  []string        `json:"externalSourceIds"`
	UseGoogleGrounding bool            `json:"useGoogleGrounding"`
	History            []ChatMessage   `json:"history"`
	ArticleContext     *ArticleContext `json:"articleContext,omitempty"`
}

// ChatResponse is the body returned by POST /chat
type ChatResponse struct {
	Response          string           `json:"response"`
	Sources           []SourceMetadata `json:"sources"`
	DepartmentIDs     []int64          `json:"departmentIds"`
	ExternalSourceIDs []string         `json:"externalSourceIds"`
}

// DepartmentNode is a department with its children, used for selection UIs
type DepartmentNode struct {
	ID       int64            `json:"id"`
	Name     string           `json:"name"`
	Slug     string           `json:"slug"`
	Path     string           `json:"path"`
	Children []DepartmentNode `json:"children,omitempty"`
}

// ChatCatalogResponse is the body of GET /chat
type ChatCatalogResponse struct {
	Departments            []DepartmentNode             `json:"departments"`
	ExternalSources        []ExternalSourceCatalogEntry `json:"externalSources"`
	GoogleGroundingEnabled bool                         `json:"googleGroundingEnabled"`
}
