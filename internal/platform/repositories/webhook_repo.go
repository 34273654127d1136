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

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

const webhookColumns = `id, organization_id, url, secret, events, active, failure_count, last_triggered, last_error, created_at, updated_at`

func scanWebhook(row scanner) (*models.Webhook, error) {
	var w models.Webhook
	var eventsStr string
	var lastTriggered sql.NullInt64

	err := row.Scan(&w.ID, &w.OrganizationID, &w.URL, &w.Secret, &eventsStr, &w.Active, &w.FailureCount,
		&lastTriggered, &w.LastError, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.LastTriggered = nullInt64Ptr(lastTriggered)
	if err := json.Unmarshal([]byte(eventsStr), &w.Events); err != nil {
		return nil, fmt.Errorf("webhook %s: decode events: %w", w.ID, err)
	}
	return &w, nil
}

func (r *WebhookRepository) Create(ctx context.Context, webhook *models.Webhook) error {
	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}

	_, err = database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO webhooks (`+webhookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, webhook.ID, webhook.OrganizationID, webhook.URL, webhook.Secret, string(eventsJSON), webhook.Active,
		webhook.FailureCount, int64Arg(webhook.LastTriggered), webhook.LastError, webhook.CreatedAt, webhook.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert webhook: %w", err)
	}
	return nil
}

func (r *WebhookRepository) GetByID(ctx context.Context, orgID, id string) (*models.Webhook, error) {
	w, err := scanWebhook(database.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE organization_id = ? AND id = ?`, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

func (r *WebhookRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Webhook, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var webhooks []*models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func (r *WebhookRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.Webhook, error) {
	return r.list(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE organization_id = ? ORDER BY created_at DESC`, orgID)
}

// ListActiveForEvent returns the organization's active webhooks subscribed to
// eventType. Events are a JSON array, so the subscription test happens here.
func (r *WebhookRepository) ListActiveForEvent(ctx context.Context, orgID, eventType string) ([]*models.Webhook, error) {
	all, err := r.list(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE organization_id = ? AND active = 1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, err
	}
	matched := all[:0]
	for _, w := range all {
		if w.Subscribed(eventType) {
			matched = append(matched, w)
		}
	}
	return matched, nil
}

func (r *WebhookRepository) Update(ctx context.Context, webhook *models.Webhook) error {
	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}
	_, err = database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE webhooks SET url = ?, events = ?, secret = ?, active = ?, failure_count = ?, updated_at = ?
		WHERE id = ?
	`, webhook.URL, string(eventsJSON), webhook.Secret, webhook.Active, webhook.FailureCount, webhook.UpdatedAt, webhook.ID)
	return err
}

func (r *WebhookRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	return affected(database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM webhooks WHERE organization_id = ? AND id = ?`, orgID, id))
}

// RecordSuccess resets the failure counter after a 2xx delivery.
func (r *WebhookRepository) RecordSuccess(ctx context.Context, id string, now int64) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE webhooks SET failure_count = 0, last_triggered = ?, last_error = '', updated_at = ? WHERE id = ?
	`, now, now, id)
	return err
}

// RecordFailure increments the failure counter and disables the webhook once
// the counter reaches threshold. It returns the new counter and active flag.
func (r *WebhookRepository) RecordFailure(ctx context.Context, id string, now int64, lastError string, threshold int) (int, bool, error) {
	var count int
	var active bool
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE webhooks SET
			failure_count = failure_count + 1,
			active = CASE WHEN failure_count + 1 >= ? THEN 0 ELSE active END,
			last_triggered = ?, last_error = ?, updated_at = ?
		WHERE id = ?
		RETURNING failure_count, active
	`, threshold, now, lastError, now, id).Scan(&count, &active)
	if err != nil {
		return 0, false, err
	}
	return count, active, nil
}
