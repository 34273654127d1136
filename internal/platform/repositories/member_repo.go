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

type MemberRepository struct {
	db *sql.DB
}

func NewMemberRepository(db *sql.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

const memberColumns = `m.id, m.organization_id, m.user_id, m.role, m.status, m.permissions, m.joined_at`

func scanMember(row scanner, withUser bool) (*models.OrganizationMember, error) {
	m := &models.OrganizationMember{}
	var perms string
	dest := []interface{}{&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.Status, &perms, &m.JoinedAt}
	var email, name sql.NullString
	if withUser {
		dest = append(dest, &email, &name)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(perms), &m.Permissions); err != nil {
		m.Permissions = nil
	}
	m.Email = email.String
	m.FullName = name.String
	return m, nil
}

func (r *MemberRepository) Create(ctx context.Context, m *models.OrganizationMember) error {
	perms, err := marshalJSON(m.Permissions, "[]")
	if err != nil {
		return err
	}
	if m.Permissions == nil {
		perms = "[]"
	}
	_, err = database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO organization_members (id, organization_id, user_id, role, status, permissions, joined_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.OrganizationID, m.UserID, m.Role, m.Status, perms, m.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// Get returns nil, nil when userID has no membership in orgID.
func (r *MemberRepository) Get(ctx context.Context, orgID, userID string) (*models.OrganizationMember, error) {
	row := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+memberColumns+` FROM organization_members m WHERE m.organization_id = ? AND m.user_id = ?
	`, orgID, userID)
	m, err := scanMember(row, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *MemberRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.OrganizationMember, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT `+memberColumns+`, u.email, u.full_name
		FROM organization_members m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = ?
		ORDER BY m.joined_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*models.OrganizationMember
	for rows.Next() {
		m, err := scanMember(rows, true)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *MemberRepository) ListByUser(ctx context.Context, userID string) ([]*models.OrganizationMember, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT `+memberColumns+` FROM organization_members m WHERE m.user_id = ? ORDER BY m.joined_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*models.OrganizationMember
	for rows.Next() {
		m, err := scanMember(rows, false)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ExistsByEmail reports whether a user with email already belongs to orgID.
func (r *MemberRepository) ExistsByEmail(ctx context.Context, orgID, email string) (bool, error) {
	var n int
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM organization_members m JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = ? AND u.email = ?
	`, orgID, email).Scan(&n)
	return n > 0, err
}

func (r *MemberRepository) CountByRole(ctx context.Context, orgID string, role models.Role) (int, error) {
	var n int
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM organization_members WHERE organization_id = ? AND role = ? AND status = ?
	`, orgID, role, models.MemberStatusActive).Scan(&n)
	return n, err
}

func (r *MemberRepository) UpdateRole(ctx context.Context, orgID, userID string, role models.Role) (bool, error) {
	return affected(database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE organization_members SET role = ? WHERE organization_id = ? AND user_id = ?
	`, role, orgID, userID))
}

func (r *MemberRepository) Delete(ctx context.Context, orgID, userID string) (bool, error) {
	return affected(database.Conn(ctx, r.db).ExecContext(ctx, `
		DELETE FROM organization_members WHERE organization_id = ? AND user_id = ?
	`, orgID, userID))
}
