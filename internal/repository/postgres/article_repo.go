package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
	"github.com/lib/pq"
)

// ArticleRepository implements repository.ArticleRepository for PostgreSQL
type ArticleRepository struct {
	db *sqlx.DB
}

// NewArticleRepository creates a new PostgreSQL article repository
func NewArticleRepository(db *sqlx.DB) repository.ArticleRepository {
	return &ArticleRepository{db: db}
}

const articleColumns = `
	a.id, a.title, a.slug,
	COALESCE(a.summary, '') AS summary,
	COALESCE(a.content_text, '') AS content_text,
	COALESCE(a.author, '') AS author,
	COALESCE(a.document_type, '') AS document_type,
	a.status, a.department_id, a.published_at, a.updated_at`

// articleRow mirrors one row of the articles table, optionally joined with departments
type articleRow struct {
	ID             int64      `db:"id"`
	Title          string     `db:"title"`
	Slug           string     `db:"slug"`
	Summary        string     `db:"summary"`
	Content        string     `db:"content_text"`
	Author         string     `db:"author"`
	DocumentType   string     `db:"document_type"`
	Status         string     `db:"status"`
	DepartmentID   *int64     `db:"department_id"`
	PublishedAt    *time.Time `db:"published_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	DepartmentName *string    `db:"department_name"`
	DepartmentSlug *string    `db:"department_slug"`
	DepartmentPar  *int64     `db:"department_parent_id"`
}

func (r articleRow) toModel() models.Article {
	a := models.Article{
		ID:           r.ID,
		Title:        r.Title,
		Slug:         r.Slug,
		Summary:      r.Summary,
		Content:      r.Content,
		Author:       r.Author,
		DocumentType: r.DocumentType,
		Status:       r.Status,
		PublishedAt:  r.PublishedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.DepartmentID != nil {
		if r.DepartmentName != nil {
			d := models.Department{ID: *r.DepartmentID, Name: *r.DepartmentName, ParentID: r.DepartmentPar}
			if r.DepartmentSlug != nil {
				d.Slug = *r.DepartmentSlug
			}
			a.Department = models.PopulatedDepartment(d)
		} else {
			a.Department = models.DepartmentID(*r.DepartmentID)
		}
	}
	return a
}

// SearchKeyword finds published articles containing query in title, content, summary or author.
// Title matches are returned first so a capped result keeps the strongest matches.
func (r *ArticleRepository) SearchKeyword(ctx context.Context, query string, filter repository.ArticleFilter, limit int) ([]models.Article, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Article{}, nil
	}

	args := []interface{}{likePattern(query), models.StatusPublished}
	sql := `SELECT ` + articleColumns + `
		FROM articles a
		WHERE a.status = $2
		  AND (a.title ILIKE $1 OR a.content_text ILIKE $1 OR a.summary ILIKE $1 OR a.author ILIKE $1)`

	if len(filter.DepartmentIDs) > 0 {
		args = append(args, pq.Array(filter.DepartmentIDs))
		sql += fmt.Sprintf(" AND a.department_id = ANY($%d)", len(args))
	}

	args = append(args, limit)
	sql += fmt.Sprintf(`
		ORDER BY (a.title ILIKE $1) DESC, a.updated_at DESC, a.id
		LIMIT $%d`, len(args))

	var rows []articleRow
	if err := r.db.SelectContext(ctx, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("keyword search articles: %w", err)
	}

	results := make([]models.Article, len(rows))
	for i, row := range rows {
		results[i] = row.toModel()
	}
	return results, nil
}

// GetByIDs hydrates articles with their populated department, preserving the order of ids
func (r *ArticleRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.Article, error) {
	if len(ids) == 0 {
		return []models.Article{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+articleColumns+`,
			d.name AS department_name, d.slug AS department_slug, d.parent_id AS department_parent_id
		FROM articles a
		LEFT JOIN departments d ON d.id = a.department_id
		WHERE a.id IN (?) AND a.status = ?`, ids, models.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("build IN query: %w", err)
	}

	// Rebind for PostgreSQL
	query = r.db.Rebind(query)

	var rows []articleRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("hydrate articles: %w", err)
	}

	byID := make(map[int64]models.Article, len(rows))
	for _, row := range rows {
		byID[row.ID] = row.toModel()
	}

	results := make([]models.Article, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			results = append(results, a)
		}
	}
	return results, nil
}

// sortColumns whitelists the sort keys accepted by List
var sortColumns = map[string]string{
	"title":        "a.title ASC",
	"-title":       "a.title DESC",
	"publishedAt":  "a.published_at ASC NULLS LAST",
	"-publishedAt": "a.published_at DESC NULLS LAST",
	"updatedAt":    "a.updated_at ASC",
	"-updatedAt":   "a.updated_at DESC",
}

// SortOrder returns the ORDER BY clause for a sort key, defaulting to newest first
func SortOrder(sort string) string {
	if order, ok := sortColumns[sort]; ok {
		return order
	}
	return sortColumns["-updatedAt"]
}

// List pages through published articles in the given departments
func (r *ArticleRepository) List(ctx context.Context, filter repository.ArticleFilter, sort string, limit, offset int) (repository.ArticlePage, error) {
	args := []interface{}{models.StatusPublished}
	where := "a.status = $1"
	if len(filter.DepartmentIDs) > 0 {
		args = append(args, pq.Array(filter.DepartmentIDs))
		where += fmt.Sprintf(" AND a.department_id = ANY($%d)", len(args))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM articles a WHERE "+where, args...); err != nil {
		return repository.ArticlePage{}, fmt.Errorf("count articles: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT `+articleColumns+`,
			d.name AS department_name, d.slug AS department_slug, d.parent_id AS department_parent_id
		FROM articles a
		LEFT JOIN departments d ON d.id = a.department_id
		WHERE %s
		ORDER BY %s, a.id
		LIMIT $%d OFFSET $%d`, where, SortOrder(sort), len(args)-1, len(args))

	var rows []articleRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return repository.ArticlePage{}, fmt.Errorf("list articles: %w", err)
	}

	page := repository.ArticlePage{Articles: make([]models.Article, len(rows)), Total: total}
	for i, row := range rows {
		page.Articles[i] = row.toModel()
	}
	return page, nil
}

// likePattern wraps query in % after escaping LIKE metacharacters
func likePattern(query string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(query) + "%"
}
