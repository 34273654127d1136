// Package importer bulk-creates tasks from CSV and XLSX files.
package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/pkg/logger"
	"projecthub/internal/pkg/validator"
	"projecthub/internal/platform/audit"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

const MaxRows = 5000

type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type Result struct {
	Total   int        `json:"total"`
	Success int        `json:"success"`
	Failed  int        `json:"failed"`
	Errors  []RowError `json:"errors"`
}

type Importer struct {
	tasks    *repositories.TaskRepository
	projects *repositories.ProjectRepository
	members  *repositories.MemberRepository
	users    *repositories.UserRepository
	audit    *audit.Logger
	now      func() time.Time
	log      zerolog.Logger
}

func New(db *sql.DB, auditLog *audit.Logger) *Importer {
	return &Importer{
		tasks:    repositories.NewTaskRepository(db),
		projects: repositories.NewProjectRepository(db),
		members:  repositories.NewMemberRepository(db),
		users:    repositories.NewUserRepository(db),
		audit:    auditLog,
		now:      time.Now,
		log:      logger.Component("importer"),
	}
}

// Import reads the file and creates one task per valid data row. Invalid
// rows are reported and skipped.
func (im *Importer) Import(ctx context.Context, orgID, projectID, callerID, filename string, r io.Reader) (*Result, error) {
	caller, err := im.members.Get(ctx, orgID, callerID)
	if err != nil {
		return nil, apperr.Internal(err, "load membership")
	}
	if caller == nil || caller.Status != models.MemberStatusActive || !caller.Role.AtLeast(models.RoleMember) {
		return nil, apperr.Permission("members and above can import tasks")
	}
	project, err := im.projects.GetByID(ctx, orgID, projectID)
	if err != nil {
		return nil, apperr.Internal(err, "load project")
	}
	if project == nil {
		return nil, apperr.NotFound("project not found")
	}

	rows, err := readRows(filename, r)
	if err != nil {
		return nil, apperr.OrInternal(err, "read import file")
	}
	if len(rows) == 0 {
		return nil, apperr.Validation("file is empty")
	}
	idx, err := parseHeader(rows[0])
	if err != nil {
		return nil, err
	}
	data := rows[1:]
	if len(data) > MaxRows {
		return nil, apperr.Validation("file has %d rows, the maximum is %d", len(data), MaxRows)
	}

	res := &Result{Total: len(data), Errors: []RowError{}}
	assignees := make(map[string]string)
	now := im.now().Unix()

	for i, row := range data {
		rowNum := i + 2
		task, err := im.buildTask(ctx, orgID, projectID, callerID, idx, row, assignees)
		if err == nil {
			task.CreatedAt, task.UpdatedAt = now, now
			err = im.tasks.Create(ctx, task)
		}
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, RowError{Row: rowNum, Error: rowMessage(err)})
			continue
		}
		res.Success++
	}

	im.log.Info().Str("org_id", orgID).Str("project_id", projectID).
		Int("total", res.Total).Int("success", res.Success).Int("failed", res.Failed).Msg("Task import finished")
	im.audit.Log(ctx, orgID, "tasks.imported", "project", projectID, map[string]interface{}{
		"file": filename, "total": res.Total, "success": res.Success, "failed": res.Failed,
	})
	return res, nil
}

func rowMessage(err error) string {
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

func (im *Importer) buildTask(ctx context.Context, orgID, projectID, callerID string, idx columnIndex, row []string, assignees map[string]string) (*models.Task, error) {
	title := idx.get(row, colTitle)
	if title == "" {
		return nil, apperr.Validation("Title is required")
	}

	task := &models.Task{
		ID:             "tsk_" + uuid.New().String(),
		OrganizationID: orgID,
		ProjectID:      projectID,
		Title:          title,
		Description:    idx.get(row, colDescription),
		Status:         models.TaskTodo,
		Priority:       models.PriorityMedium,
		Tags:           splitTags(idx.get(row, colTags)),
		CreatedBy:      callerID,
	}

	if v := idx.get(row, colStatus); v != "" {
		st, ok := models.ParseTaskStatus(v)
		if !ok {
			return nil, apperr.Validation("Invalid status %q", v)
		}
		task.Status = st
	}
	if v := idx.get(row, colPriority); v != "" {
		p, ok := models.ParsePriority(v)
		if !ok {
			return nil, apperr.Validation("Invalid priority %q", v)
		}
		task.Priority = p
	}
	if v := idx.get(row, colDueDate); v != "" {
		due, err := parseDate(v)
		if err != nil {
			return nil, apperr.Validation("Invalid due date %q", v)
		}
		task.DueDate = &due
	}
	if v := idx.get(row, colAssignee); v != "" {
		id, err := im.resolveAssignee(ctx, orgID, v, assignees)
		if err != nil {
			return nil, err
		}
		task.AssigneeID = &id
	}
	return task, nil
}

// resolveAssignee maps an email to the id of an active member, caching hits.
func (im *Importer) resolveAssignee(ctx context.Context, orgID, email string, cache map[string]string) (string, error) {
	email = validator.NormalizeEmail(email)
	if id, ok := cache[email]; ok {
		return id, nil
	}
	user, err := im.users.GetByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("look up assignee: %w", err)
	}
	if user == nil {
		return "", apperr.Validation("Unknown assignee %s", email)
	}
	m, err := im.members.Get(ctx, orgID, user.ID)
	if err != nil {
		return "", fmt.Errorf("look up assignee membership: %w", err)
	}
	if m == nil || m.Status != models.MemberStatusActive {
		return "", apperr.Validation("Assignee %s is not a member of this organization", email)
	}
	cache[email] = user.ID
	return user.ID, nil
}

func parseDate(s string) (int64, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Unix(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}
