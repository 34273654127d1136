package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"projecthub/internal/platform/database"
	"projecthub/internal/platform/models"
)

type InvitationRepository struct {
	db *sql.DB
}

func NewInvitationRepository(db *sql.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

const invitationColumns = `id, organization_id, email, role, invited_by, token, status, expires_at, accepted_at, accepted_by, created_at, updated_at`

func scanInvitation(row scanner) (*models.Invitation, error) {
	inv := &models.Invitation{}
	var acceptedAt sql.NullInt64
	var acceptedBy sql.NullString
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.InvitedBy, &inv.Token, &inv.Status,
		&inv.ExpiresAt, &acceptedAt, &acceptedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inv.AcceptedAt = nullInt64Ptr(acceptedAt)
	inv.AcceptedBy = nullStringPtr(acceptedBy)
	return inv, nil
}

func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO invitations (`+invitationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inv.ID, inv.OrganizationID, inv.Email, inv.Role, inv.InvitedBy, inv.Token, inv.Status, inv.ExpiresAt,
		int64Arg(inv.AcceptedAt), stringArg(inv.AcceptedBy), inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (r *InvitationRepository) getOne(ctx context.Context, where string, args ...interface{}) (*models.Invitation, error) {
	row := database.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE `+where, args...)
	inv, err := scanInvitation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return inv, err
}

func (r *InvitationRepository) GetByID(ctx context.Context, orgID, id string) (*models.Invitation, error) {
	return r.getOne(ctx, `organization_id = ? AND id = ?`, orgID, id)
}

// GetByToken uses the unique token index.
func (r *InvitationRepository) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	return r.getOne(ctx, `token = ?`, token)
}

func (r *InvitationRepository) FindPending(ctx context.Context, orgID, email string) (*models.Invitation, error) {
	return r.getOne(ctx, `organization_id = ? AND email = ? AND status = ? LIMIT 1`, orgID, email, models.InvitationPending)
}

func (r *InvitationRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Invitation, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []*models.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// ListByOrg lists invitations newest first; an empty status lists all.
func (r *InvitationRepository) ListByOrg(ctx context.Context, orgID string, status models.InvitationStatus) ([]*models.Invitation, error) {
	if status == "" {
		return r.list(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE organization_id = ? ORDER BY created_at DESC`, orgID)
	}
	return r.list(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE organization_id = ? AND status = ? ORDER BY created_at DESC`, orgID, status)
}

func (r *InvitationRepository) ListByEmail(ctx context.Context, email string) ([]*models.Invitation, error) {
	return r.list(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE email = ? ORDER BY created_at DESC`, email)
}

// Transition moves an invitation from one status to another and reports
// false when it was no longer in the from status.
func (r *InvitationRepository) Transition(ctx context.Context, id string, from, to models.InvitationStatus, now int64) (bool, error) {
	return affected(database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE invitations SET status = ?, updated_at = ? WHERE id = ? AND status = ?
	`, to, now, id, from))
}

// MarkAccepted is conditional on the invitation still being PENDING.
func (r *InvitationRepository) MarkAccepted(ctx context.Context, id, userID string, now int64) (bool, error) {
	return affected(database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE invitations SET status = ?, accepted_at = ?, accepted_by = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, models.InvitationAccepted, now, userID, now, id, models.InvitationPending))
}

// ExpireStale flips every PENDING invitation past its expiry to EXPIRED.
func (r *InvitationRepository) ExpireStale(ctx context.Context, now int64) (int64, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE invitations SET status = ?, updated_at = ? WHERE status = ? AND expires_at < ?
	`, models.InvitationExpired, now, models.InvitationPending, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *InvitationRepository) DeleteByEmail(ctx context.Context, email string) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM invitations WHERE email = ?`, email)
	return err
}
