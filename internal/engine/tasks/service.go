// Package tasks manages project tasks and materializes recurring ones.
package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"projecthub/internal/engine/notifications"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/pkg/logger"
	"projecthub/internal/platform/audit"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

const maxTitleLength = 500

type Events interface {
	Emit(ctx context.Context, orgID, eventType string, data interface{})
}

type Notifier interface {
	Send(ctx context.Context, req notifications.Request) ([]notifications.ChannelResult, error)
}

type Service struct {
	tasks    *repositories.TaskRepository
	projects *repositories.ProjectRepository
	members  *repositories.MemberRepository
	notifier Notifier
	events   Events
	audit    *audit.Logger
	now      func() time.Time
	log      zerolog.Logger
}

func NewService(db *sql.DB, notifier Notifier, events Events, auditLog *audit.Logger) *Service {
	return &Service{
		tasks:    repositories.NewTaskRepository(db),
		projects: repositories.NewProjectRepository(db),
		members:  repositories.NewMemberRepository(db),
		notifier: notifier,
		events:   events,
		audit:    auditLog,
		now:      time.Now,
		log:      logger.Component("tasks"),
	}
}

type CreateInput struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Status      string           `json:"status,omitempty"`
	Priority    string           `json:"priority,omitempty"`
	AssigneeID  *string          `json:"assignee_id,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	DueDate     *int64           `json:"due_date,omitempty"`
	Recurrence  *RecurrenceInput `json:"recurrence,omitempty"`
}

// UpdateInput changes only the fields that are set. An empty AssigneeID
// unassigns; ClearDueDate and ClearRecurrence remove those fields.
type UpdateInput struct {
	Title           *string          `json:"title,omitempty"`
	Description     *string          `json:"description,omitempty"`
	Status          *string          `json:"status,omitempty"`
	Priority        *string          `json:"priority,omitempty"`
	AssigneeID      *string          `json:"assignee_id,omitempty"`
	Tags            []string         `json:"tags,omitempty"`
	DueDate         *int64           `json:"due_date,omitempty"`
	ClearDueDate    bool             `json:"clear_due_date,omitempty"`
	Recurrence      *RecurrenceInput `json:"recurrence,omitempty"`
	ClearRecurrence bool             `json:"clear_recurrence,omitempty"`
}

func (s *Service) membership(ctx context.Context, orgID, userID string, min models.Role) (*models.OrganizationMember, error) {
	m, err := s.members.Get(ctx, orgID, userID)
	if err != nil {
		return nil, apperr.Internal(err, "load membership")
	}
	if m == nil || m.Status != models.MemberStatusActive {
		return nil, apperr.Permission("not a member of this organization")
	}
	if !m.Role.AtLeast(min) {
		return nil, apperr.Permission("requires %s role or higher", min)
	}
	return m, nil
}

func (s *Service) checkAssignee(ctx context.Context, orgID, assigneeID string) error {
	m, err := s.members.Get(ctx, orgID, assigneeID)
	if err != nil {
		return apperr.Internal(err, "load assignee")
	}
	if m == nil || m.Status != models.MemberStatusActive {
		return apperr.Validation("assignee is not a member of this organization")
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func validTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperr.Validation("Title is required")
	}
	if len(title) > maxTitleLength {
		return "", apperr.Validation("title must be at most %d characters", maxTitleLength)
	}
	return title, nil
}

// Create adds a task to a project. Callers need MEMBER or higher.
func (s *Service) Create(ctx context.Context, orgID, projectID, callerID string, in CreateInput) (*models.Task, error) {
	if _, err := s.membership(ctx, orgID, callerID, models.RoleMember); err != nil {
		return nil, err
	}
	project, err := s.projects.GetByID(ctx, orgID, projectID)
	if err != nil {
		return nil, apperr.Internal(err, "load project")
	}
	if project == nil {
		return nil, apperr.NotFound("project not found")
	}

	title, err := validTitle(in.Title)
	if err != nil {
		return nil, err
	}
	status := models.TaskTodo
	if in.Status != "" {
		var ok bool
		if status, ok = models.ParseTaskStatus(in.Status); !ok {
			return nil, apperr.Validation("invalid status %q", in.Status)
		}
	}
	priority := models.PriorityMedium
	if in.Priority != "" {
		var ok bool
		if priority, ok = models.ParsePriority(in.Priority); !ok {
			return nil, apperr.Validation("invalid priority %q", in.Priority)
		}
	}
	var assignee *string
	if in.AssigneeID != nil && *in.AssigneeID != "" {
		if err := s.checkAssignee(ctx, orgID, *in.AssigneeID); err != nil {
			return nil, err
		}
		assignee = in.AssigneeID
	}

	now := s.now()
	task := &models.Task{
		ID:             "tsk_" + uuid.New().String(),
		OrganizationID: orgID,
		ProjectID:      projectID,
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Status:         status,
		Priority:       priority,
		AssigneeID:     assignee,
		Tags:           normalizeTags(in.Tags),
		DueDate:        in.DueDate,
		CreatedBy:      callerID,
		CreatedAt:      now.Unix(),
		UpdatedAt:      now.Unix(),
	}
	if in.Recurrence != nil {
		if task.Recurrence, err = buildRecurrence(in.Recurrence, in.DueDate, now); err != nil {
			return nil, err
		}
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, apperr.Internal(err, "create task")
	}

	s.events.Emit(ctx, orgID, models.EventTaskCreated, task)
	s.audit.Log(ctx, orgID, "task.created", "task", task.ID, nil)
	if assignee != nil {
		s.notifyAssigned(ctx, task, callerID)
	}
	return task, nil
}

func (s *Service) List(ctx context.Context, orgID, projectID, callerID string) ([]*models.Task, error) {
	if _, err := s.membership(ctx, orgID, callerID, models.RoleViewer); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListByProject(ctx, orgID, projectID)
	if err != nil {
		return nil, apperr.Internal(err, "list tasks")
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	return tasks, nil
}

func (s *Service) Get(ctx context.Context, orgID, taskID, callerID string) (*models.Task, error) {
	if _, err := s.membership(ctx, orgID, callerID, models.RoleViewer); err != nil {
		return nil, err
	}
	return s.load(ctx, orgID, taskID)
}

func (s *Service) load(ctx context.Context, orgID, taskID string) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, orgID, taskID)
	if err != nil {
		return nil, apperr.Internal(err, "load task")
	}
	if task == nil {
		return nil, apperr.NotFound("task not found")
	}
	return task, nil
}

func (s *Service) Update(ctx context.Context, orgID, taskID, callerID string, in UpdateInput) (*models.Task, error) {
	if _, err := s.membership(ctx, orgID, callerID, models.RoleMember); err != nil {
		return nil, err
	}
	task, err := s.load(ctx, orgID, taskID)
	if err != nil {
		return nil, err
	}
	prevStatus := task.Status
	prevAssignee := ""
	if task.AssigneeID != nil {
		prevAssignee = *task.AssigneeID
	}

	if in.Title != nil {
		if task.Title, err = validTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		task.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		st, ok := models.ParseTaskStatus(*in.Status)
		if !ok {
			return nil, apperr.Validation("invalid status %q", *in.Status)
		}
		task.Status = st
	}
	if in.Priority != nil {
		p, ok := models.ParsePriority(*in.Priority)
		if !ok {
			return nil, apperr.Validation("invalid priority %q", *in.Priority)
		}
		task.Priority = p
	}
	if in.AssigneeID != nil {
		if *in.AssigneeID == "" {
			task.AssigneeID = nil
		} else {
			if err := s.checkAssignee(ctx, orgID, *in.AssigneeID); err != nil {
				return nil, err
			}
			id := *in.AssigneeID
			task.AssigneeID = &id
		}
	}
	if in.Tags != nil {
		task.Tags = normalizeTags(in.Tags)
	}
	switch {
	case in.ClearDueDate:
		task.DueDate = nil
	case in.DueDate != nil:
		task.DueDate = in.DueDate
	}

	now := s.now()
	switch {
	case in.ClearRecurrence:
		task.Recurrence = nil
	case in.Recurrence != nil:
		if task.Recurrence, err = buildRecurrence(in.Recurrence, task.DueDate, now); err != nil {
			return nil, err
		}
	}

	task.UpdatedAt = now.Unix()
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, apperr.Internal(err, "update task")
	}

	s.events.Emit(ctx, orgID, models.EventTaskUpdated, task)
	if task.Status == models.TaskDone && prevStatus != models.TaskDone {
		s.events.Emit(ctx, orgID, models.EventTaskCompleted, task)
	}
	if task.AssigneeID != nil && *task.AssigneeID != prevAssignee {
		s.notifyAssigned(ctx, task, callerID)
	}
	s.audit.Log(ctx, orgID, "task.updated", "task", task.ID, nil)
	return task, nil
}

// Delete requires MANAGER or higher, or being the task's creator.
func (s *Service) Delete(ctx context.Context, orgID, taskID, callerID string) error {
	caller, err := s.membership(ctx, orgID, callerID, models.RoleMember)
	if err != nil {
		return err
	}
	task, err := s.load(ctx, orgID, taskID)
	if err != nil {
		return err
	}
	if task.CreatedBy != callerID && !caller.Role.AtLeast(models.RoleManager) {
		return apperr.Permission("only the creator or a manager can delete this task")
	}
	if _, err := s.tasks.Delete(ctx, orgID, taskID); err != nil {
		return apperr.Internal(err, "delete task")
	}

	s.events.Emit(ctx, orgID, models.EventTaskDeleted, map[string]string{"id": taskID, "project_id": task.ProjectID})
	s.audit.Log(ctx, orgID, "task.deleted", "task", taskID, nil)
	return nil
}

// notifyAssigned tells the new assignee, unless they assigned themselves.
func (s *Service) notifyAssigned(ctx context.Context, task *models.Task, callerID string) {
	if s.notifier == nil || task.AssigneeID == nil || *task.AssigneeID == callerID {
		return
	}
	_, err := s.notifier.Send(ctx, notifications.Request{
		UserID:         *task.AssigneeID,
		OrganizationID: task.OrganizationID,
		Type:           notifications.TypeTaskAssigned,
		Title:          fmt.Sprintf("You were assigned %q", task.Title),
		Message:        task.Description,
		Link:           fmt.Sprintf("/organizations/%s/tasks/%s", task.OrganizationID, task.ID),
		Metadata:       map[string]interface{}{"task_id": task.ID, "assigned_by": callerID},
		Channels:       []notifications.Channel{notifications.ChannelInApp, notifications.ChannelEmail},
	})
	if err != nil {
		s.log.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to send assignment notification")
	}
}
