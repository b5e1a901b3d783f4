package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ArticleStatus values stored in the articles table
const (
	StatusPublished = "published"
	StatusDraft     = "draft"
)

// Department is one node of the municipal organisation tree
type Department struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Slug     string `json:"slug" db:"slug"`
	ParentID *int64 `json:"parentId,omitempty" db:"parent_id"`
}

// DepartmentRef is either a bare department id or a populated department.
// The zero value references no department.
type DepartmentRef struct {
	id        int64
	populated *Department
}

// DepartmentID returns a reference holding only an id
func DepartmentID(id int64) DepartmentRef {
	return DepartmentRef{id: id}
}

// PopulatedDepartment returns a reference holding the full department
func PopulatedDepartment(d Department) DepartmentRef {
	return DepartmentRef{id: d.ID, populated: &d}
}

// ID returns the referenced department id, or 0 when unset
func (r DepartmentRef) ID() int64 {
	return r.id
}

// IsZero reports whether the reference points at no department
func (r DepartmentRef) IsZero() bool {
	return r.id == 0 && r.populated == nil
}

// Populated narrows the reference to the full department when available
func (r DepartmentRef) Populated() (Department, bool) {
	if r.populated == nil {
		return Department{}, false
	}
	return *r.populated, true
}

// Name returns the department name when populated
func (r DepartmentRef) Name() string {
	if r.populated == nil {
		return ""
	}
	return r.populated.Name
}

// MarshalJSON encodes the id form as a number and the populated form as an object
func (r DepartmentRef) MarshalJSON() ([]byte, error) {
	if r.populated != nil {
		return json.Marshal(r.populated)
	}
	if r.id == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(r.id)
}

// UnmarshalJSON accepts null, a numeric id or a department object
func (r *DepartmentRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = DepartmentRef{}
		return nil
	}
	if data[0] == '{' {
		var d Department
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decode department: %w", err)
		}
		*r = PopulatedDepartment(d)
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("decode department id: %w", err)
	}
	*r = DepartmentID(id)
	return nil
}

// Article is a published knowledge-base document as read from the lexical store
type Article struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	Slug         string        `json:"slug"`
	Summary      string        `json:"summary,omitempty"`
	Content      string        `json:"content,omitempty"`
	Author       string        `json:"author,omitempty"`
	DocumentType string        `json:"documentType,omitempty"`
	Status       string        `json:"status"`
	Department   DepartmentRef `json:"department"`
	PublishedAt  *time.Time    `json:"publishedAt,omitempty"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	URL          string        `json:"url,omitempty"`
}

// ArticleURL builds the public URL of an article from its department slug path.
// Articles without a department path fall back to /articles/<id>.
func ArticleURL(baseURL, departmentPath, slug string, id int64) string {
	base := strings.TrimRight(baseURL, "/")
	departmentPath = strings.Trim(departmentPath, "/")
	if departmentPath != "" && slug != "" {
		return base + "/" + departmentPath + "/" + slug
	}
	return base + "/articles/" + strconv.FormatInt(id, 10)
}
