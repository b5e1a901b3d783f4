package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
)

// DepartmentRepository implements repository.DepartmentRepository for PostgreSQL
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository creates a new PostgreSQL department repository
func NewDepartmentRepository(db *sqlx.DB) repository.DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// ListAll loads the whole department adjacency list
func (r *DepartmentRepository) ListAll(ctx context.Context) ([]models.Department, error) {
	var departments []models.Department
	err := r.db.SelectContext(ctx, &departments, `
		SELECT id, name, COALESCE(slug, '') AS slug, parent_id
		FROM departments
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	if departments == nil {
		departments = []models.Department{}
	}
	return departments, nil
}
