package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kunskapsportal-search-api/internal/models"
)

// ChunkRepository hydrates chunk ids returned by an external vector index
type ChunkRepository struct {
	db      *sqlx.DB
	baseURL string
}

// NewChunkRepository creates a chunk lookup over article_chunks
func NewChunkRepository(db *sqlx.DB, publicBaseURL string) *ChunkRepository {
	return &ChunkRepository{db: db, baseURL: publicBaseURL}
}

// ChunksByID returns the published chunks among ids keyed by chunk id. Score is left zero.
func (r *ChunkRepository) ChunksByID(ctx context.Context, ids []string) (map[string]models.SearchHit, error) {
	hits := make(map[string]models.SearchHit, len(ids))
	if len(ids) == 0 {
		return hits, nil
	}

	query, args, err := sqlx.In(`
		SELECT c.id::text, c.article_id, a.title, c.text, a.slug,
		       COALESCE(a.document_type, ''),
		       COALESCE(d.name, ''),
		       COALESCE(c.department_path, '')
		FROM article_chunks c
		JOIN articles a ON a.id = c.article_id
		LEFT JOIN departments d ON d.id = a.department_id
		WHERE c.id::text IN (?) AND a.status = ?
	`, ids, models.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("build chunk lookup: %w", err)
	}

	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("lookup chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			hit            = models.SearchHit{Source: models.SourceInternal}
			slug, deptPath string
		)
		if err := rows.Scan(&hit.ID, &hit.ArticleID, &hit.Title, &hit.Text, &slug,
			&hit.DocumentType, &hit.Department, &deptPath); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		hit.URL = models.ArticleURL(r.baseURL, deptPath, slug, hit.ArticleID)
		hits[hit.ID] = hit
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return hits, nil
}
