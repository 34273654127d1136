package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"projecthub/internal/platform/database"
	"projecthub/internal/platform/models"
)

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, p *models.Project) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO projects (id, organization_id, name, description, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.OrganizationID, p.Name, p.Description, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, orgID, id string) (*models.Project, error) {
	p := &models.Project{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, organization_id, name, description, created_by, created_at, updated_at
		FROM projects WHERE organization_id = ? AND id = ?
	`, orgID, id).Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *ProjectRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.Project, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, organization_id, name, description, created_by, created_at, updated_at
		FROM projects WHERE organization_id = ? ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
