package models

import "encoding/json"

type Webhook struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organization_id"`
	URL            string   `json:"url"`
	Secret         string   `json:"-"`
	Events         []string `json:"events"` // JSON array in DB
	Active         bool     `json:"active"`
	FailureCount   int      `json:"failure_count"`
	LastTriggered  *int64   `json:"last_triggered,omitempty"`
	LastError      string   `json:"last_error,omitempty"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
}

// Subscribed reports whether the webhook listens to eventType.
func (w *Webhook) Subscribed(eventType string) bool {
	for _, e := range w.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// WebhookEvent is the outbound body. Timestamp is ISO 8601 in UTC.
type WebhookEvent struct {
	Event     string          `json:"event"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
