package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// VectorSearchRepository implements repository.VectorSearchRepository for PostgreSQL with pgvector.
// Chunks live in article_chunks next to the articles they were cut from.
type VectorSearchRepository struct {
	db      *sqlx.DB
	baseURL string
}

// NewVectorSearchRepository creates a new PostgreSQL vector search repository
func NewVectorSearchRepository(db *sqlx.DB, publicBaseURL string) repository.VectorSearchRepository {
	return &VectorSearchRepository{db: db, baseURL: publicBaseURL}
}

// SearchArticles performs cosine similarity search on published article chunks
func (r *VectorSearchRepository) SearchArticles(ctx context.Context, q repository.VectorQuery) ([]models.SearchHit, error) {
	args := []interface{}{pgvector.NewVector(q.Vector), models.StatusPublished}
	where := "c.embedding IS NOT NULL AND a.status = $2"
	if len(q.DepartmentIDs) > 0 {
		args = append(args, pq.Array(q.DepartmentIDs))
		where += fmt.Sprintf(" AND a.department_id = ANY($%d)", len(args))
	}
	args = append(args, q.Limit)

	rows, err := r.db.QueryxContext(ctx, fmt.Sprintf(`
		SELECT c.id, c.article_id, a.title, c.text, a.slug,
		       COALESCE(a.document_type, '') AS document_type,
		       COALESCE(d.name, '') AS department,
		       COALESCE(c.department_path, '') AS department_path,
		       1 - (c.embedding <=> $1::vector) AS score
		FROM article_chunks c
		JOIN articles a ON a.id = c.article_id
		LEFT JOIN departments d ON d.id = a.department_id
		WHERE %s
		ORDER BY c.embedding <=> $1::vector
		LIMIT $%d
	`, where, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("vector search article chunks: %w", err)
	}
	defer rows.Close()

	var results []models.SearchHit
	for rows.Next() {
		var (
			chunkID        int64
			slug, deptPath string
			hit            = models.SearchHit{Source: models.SourceInternal}
		)
		if err := rows.Scan(&chunkID, &hit.ArticleID, &hit.Title, &hit.Text, &slug,
			&hit.DocumentType, &hit.Department, &deptPath, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		hit.ID = strconv.FormatInt(chunkID, 10)
		hit.URL = models.ArticleURL(r.baseURL, deptPath, slug, hit.ArticleID)
		results = append(results, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk results: %w", err)
	}

	if results == nil {
		results = []models.SearchHit{}
	}
	return results, nil
}
