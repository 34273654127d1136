package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"projecthub/internal/platform/database"
	"projecthub/internal/platform/models"
)

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, user_id, organization_id, type, title, message, link, metadata, read, created_at, updated_at`

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	meta := "{}"
	if len(n.Metadata) > 0 {
		b, err := json.Marshal(n.Metadata)
		if err != nil {
			return err
		}
		meta = string(b)
	}
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.OrganizationID, n.Type, n.Title, n.Message, n.Link, meta, n.Read, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Notification, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var meta string
		if err := rows.Scan(&n.ID, &n.UserID, &n.OrganizationID, &n.Type, &n.Title, &n.Message, &n.Link, &meta, &n.Read, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		if meta != "" && meta != "{}" {
			_ = json.Unmarshal([]byte(meta), &n.Metadata)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// ListByUser returns the newest notifications first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if unreadOnly {
		return r.list(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE user_id = ? AND read = 0
			ORDER BY created_at DESC LIMIT ?`, userID, limit)
	}
	return r.list(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?`, userID, limit)
}

func (r *NotificationRepository) ListUnreadSince(ctx context.Context, userID string, since int64, limit int) ([]*models.Notification, error) {
	return r.list(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = ? AND read = 0 AND created_at >= ? ORDER BY created_at DESC LIMIT ?`, userID, since, limit)
}

// UsersWithUnreadSince lists distinct recipients with unread items created
// at or after since.
func (r *NotificationRepository) UsersWithUnreadSince(ctx context.Context, since int64) ([]string, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT DISTINCT user_id FROM notifications WHERE read = 0 AND created_at >= ? ORDER BY user_id
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (r *NotificationRepository) SetRead(ctx context.Context, userID, id string, read bool, now int64) (bool, error) {
	return affected(database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE notifications SET read = ?, updated_at = ? WHERE id = ? AND user_id = ?
	`, read, now, id, userID))
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, now int64) (int64, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE notifications SET read = 1, updated_at = ? WHERE user_id = ? AND read = 0
	`, now, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *NotificationRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM notifications WHERE user_id = ?`, userID)
	return err
}
