package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"projecthub/internal/platform/database"
	"projecthub/internal/platform/models"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

func nullInt64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullStringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func int64Arg(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func stringArg(p *string) interface{} {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}

func marshalJSON(v interface{}, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const orgColumns = `id, name, slug, plan, status, max_users, max_projects, max_storage_gb, max_api_calls_per_month,
	current_users, current_projects, storage_used_bytes, api_calls_this_month, owner_id, slack_webhook_url,
	trial_ends_at, created_at, updated_at`

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func scanOrganization(row scanner) (*models.Organization, error) {
	org := &models.Organization{}
	var trialEndsAt sql.NullInt64
	err := row.Scan(&org.ID, &org.Name, &org.Slug, &org.Plan, &org.Status,
		&org.Limits.MaxUsers, &org.Limits.MaxProjects, &org.Limits.MaxStorageGB, &org.Limits.MaxAPICallsPerMonth,
		&org.Usage.CurrentUsers, &org.Usage.CurrentProjects, &org.Usage.StorageUsedBytes, &org.Usage.APICallsThisMonth,
		&org.OwnerID, &org.SlackWebhookURL, &trialEndsAt, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, err
	}
	org.TrialEndsAt = nullInt64Ptr(trialEndsAt)
	return org, nil
}

func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO organizations (`+orgColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, org.ID, org.Name, org.Slug, org.Plan, org.Status,
		org.Limits.MaxUsers, org.Limits.MaxProjects, org.Limits.MaxStorageGB, org.Limits.MaxAPICallsPerMonth,
		org.Usage.CurrentUsers, org.Usage.CurrentProjects, org.Usage.StorageUsedBytes, org.Usage.APICallsThisMonth,
		org.OwnerID, org.SlackWebhookURL, int64Arg(org.TrialEndsAt), org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	row := database.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = ?`, id)
	org, err := scanOrganization(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

func (r *OrganizationRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	var n int
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations WHERE slug = ?`, slug).Scan(&n)
	return n > 0, err
}

// ListForUser returns the organizations where userID holds a membership.
func (r *OrganizationRepository) ListForUser(ctx context.Context, userID string) ([]*models.Organization, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT o.id, o.name, o.slug, o.plan, o.status, o.max_users, o.max_projects, o.max_storage_gb, o.max_api_calls_per_month,
			o.current_users, o.current_projects, o.storage_used_bytes, o.api_calls_this_month, o.owner_id, o.slack_webhook_url,
			o.trial_ends_at, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = ?
		ORDER BY o.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// IncrementUsers adds one seat unless the organization is at max_users.
// It reports false when the limit blocked the update.
func (r *OrganizationRepository) IncrementUsers(ctx context.Context, id string, now int64) (bool, error) {
	return affected(database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE organizations SET current_users = current_users + 1, updated_at = ?
		WHERE id = ? AND current_users < max_users
	`, now, id))
}

func (r *OrganizationRepository) DecrementUsers(ctx context.Context, id string, now int64) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE organizations SET current_users = MAX(current_users - 1, 0), updated_at = ? WHERE id = ?
	`, now, id)
	return err
}

func (r *OrganizationRepository) IncrementProjects(ctx context.Context, id string, now int64) (bool, error) {
	return affected(database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE organizations SET current_projects = current_projects + 1, updated_at = ?
		WHERE id = ? AND current_projects < max_projects
	`, now, id))
}

// RecordAPICall counts one call in period ("2006-01"), resetting the counter
// when the period changes. It reports false once the monthly quota is spent.
func (r *OrganizationRepository) RecordAPICall(ctx context.Context, id, period string) (bool, error) {
	return affected(database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE organizations
		SET api_calls_this_month = CASE WHEN api_calls_period = ? THEN api_calls_this_month + 1 ELSE 1 END,
			api_calls_period = ?
		WHERE id = ? AND (api_calls_period != ? OR api_calls_this_month < max_api_calls_per_month)
	`, period, period, id, period))
}

func (r *OrganizationRepository) UpdateSettings(ctx context.Context, id, name, slackWebhookURL string, now int64) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE organizations SET name = ?, slack_webhook_url = ?, updated_at = ? WHERE id = ?
	`, name, slackWebhookURL, now, id)
	return err
}
