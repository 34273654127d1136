package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"projecthub/internal/pkg/useragent"
	"projecthub/internal/platform/database"
)

type AuditLog struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	UserID         string                 `json:"user_id"`
	Action         string                 `json:"action"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     string                 `json:"resource_id"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	IPAddress      string                 `json:"ip_address"`
	UserAgent      string                 `json:"user_agent"`
	Client         string                 `json:"client,omitempty"`
	CreatedAt      int64                  `json:"created_at"`
}

// RequestInfo describes who triggered an action. The API middleware stores it
// on the request context; jobs leave it empty.
type RequestInfo struct {
	UserID    string
	IPAddress string
	UserAgent string
}

type requestInfoKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

type Logger struct {
	db  *sql.DB
	now func() time.Time
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db, now: time.Now}
}

// Log records an action. Audit failures never fail the caller; they are
// reported through the application log.
func (l *Logger) Log(ctx context.Context, orgID, action, resourceType, resourceID string, metadata map[string]interface{}) {
	if l == nil {
		return
	}
	info := RequestInfoFrom(ctx)

	metaJSON := []byte("{}")
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			metaJSON = b
		}
	}

	entry := &AuditLog{
		ID:             "audit_" + uuid.New().String(),
		OrganizationID: orgID,
		UserID:         info.UserID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		IPAddress:      info.IPAddress,
		UserAgent:      info.UserAgent,
		CreatedAt:      l.now().Unix(),
	}

	_, err := database.Conn(ctx, l.db).ExecContext(ctx, `
		INSERT INTO audit_logs (id, organization_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.OrganizationID, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID,
		string(metaJSON), entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	if err != nil {
		log.Error().Err(err).Str("action", action).Str("org_id", orgID).Msg("Failed to write audit log")
	}
}

// List returns the newest entries for an organization first.
func (l *Logger) List(ctx context.Context, orgID string, limit int) ([]*AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := database.Conn(ctx, l.db).QueryContext(ctx, `
		SELECT id, organization_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at
		FROM audit_logs WHERE organization_id = ? ORDER BY created_at DESC, id LIMIT ?
	`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []*AuditLog
	for rows.Next() {
		e := &AuditLog{}
		var meta string
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID,
			&meta, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		if meta != "" && meta != "{}" {
			_ = json.Unmarshal([]byte(meta), &e.Metadata)
		}
		e.Client = useragent.Parse(e.UserAgent).String()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
