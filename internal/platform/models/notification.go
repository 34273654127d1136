package models

type Notification struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	OrganizationID string                 `json:"organization_id,omitempty"`
	Type           string                 `json:"type"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Link           string                 `json:"link,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Read           bool                   `json:"read"`
	CreatedAt      int64                  `json:"created_at"`
	UpdatedAt      int64                  `json:"updated_at"`
}
