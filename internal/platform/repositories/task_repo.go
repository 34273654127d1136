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

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, organization_id, project_id, title, description, status, priority, assignee_id, tags,
	due_date, recurrence, parent_task_id, created_by, created_at, updated_at`

func scanTask(row scanner) (*models.Task, error) {
	t := &models.Task{}
	var assignee, recurrence, parent sql.NullString
	var dueDate sql.NullInt64
	var tags string
	err := row.Scan(&t.ID, &t.OrganizationID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&assignee, &tags, &dueDate, &recurrence, &parent, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.AssigneeID = nullStringPtr(assignee)
	t.ParentTaskID = nullStringPtr(parent)
	t.DueDate = nullInt64Ptr(dueDate)
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		t.Tags = nil
	}
	if recurrence.Valid && recurrence.String != "" {
		var rec models.Recurrence
		if err := json.Unmarshal([]byte(recurrence.String), &rec); err != nil {
			return nil, fmt.Errorf("task %s: decode recurrence: %w", t.ID, err)
		}
		t.Recurrence = &rec
	}
	return t, nil
}

func taskArgs(t *models.Task) (tags string, recurrence, nextOccurrence interface{}, err error) {
	tags = "[]"
	if len(t.Tags) > 0 {
		b, err := json.Marshal(t.Tags)
		if err != nil {
			return "", nil, nil, err
		}
		tags = string(b)
	}
	if t.Recurrence != nil {
		b, err := json.Marshal(t.Recurrence)
		if err != nil {
			return "", nil, nil, err
		}
		recurrence = string(b)
		nextOccurrence = t.Recurrence.NextOccurrence
	}
	return tags, recurrence, nextOccurrence, nil
}

func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	tags, recurrence, next, err := taskArgs(t)
	if err != nil {
		return err
	}
	_, err = database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO tasks (id, organization_id, project_id, title, description, status, priority, assignee_id, tags,
			due_date, recurrence, next_occurrence, parent_task_id, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.OrganizationID, t.ProjectID, t.Title, t.Description, t.Status, t.Priority, stringArg(t.AssigneeID), tags,
		int64Arg(t.DueDate), recurrence, next, stringArg(t.ParentTaskID), t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	tags, recurrence, next, err := taskArgs(t)
	if err != nil {
		return err
	}
	_, err = database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, assignee_id = ?, tags = ?,
			reminded_at = CASE WHEN due_date IS ? THEN reminded_at ELSE NULL END,
			due_date = ?, recurrence = ?, next_occurrence = ?, updated_at = ?
		WHERE id = ?
	`, t.Title, t.Description, t.Status, t.Priority, stringArg(t.AssigneeID), tags,
		int64Arg(t.DueDate), int64Arg(t.DueDate), recurrence, next, t.UpdatedAt, t.ID)
	return err
}

// UpdateRecurrence rewrites only the recurrence state of a template.
func (r *TaskRepository) UpdateRecurrence(ctx context.Context, id string, rec *models.Recurrence, now int64) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE tasks SET recurrence = ?, next_occurrence = ?, updated_at = ? WHERE id = ?
	`, string(b), rec.NextOccurrence, now, id)
	return err
}

func (r *TaskRepository) GetByID(ctx context.Context, orgID, id string) (*models.Task, error) {
	t, err := scanTask(database.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE organization_id = ? AND id = ?`, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (r *TaskRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	return affected(database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM tasks WHERE organization_id = ? AND id = ?`, orgID, id))
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Task, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) ListByProject(ctx context.Context, orgID, projectID string) ([]*models.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE organization_id = ? AND project_id = ? ORDER BY created_at`, orgID, projectID)
}

// ListDueTemplates returns recurrence templates whose next occurrence is
// before the given instant, using the next_occurrence index.
func (r *TaskRepository) ListDueTemplates(ctx context.Context, before int64) ([]*models.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE next_occurrence IS NOT NULL AND next_occurrence < ? ORDER BY next_occurrence`, before)
}

// ListDueBetween returns open, assigned tasks due in [from, to) that have not
// been reminded about their current due date.
func (r *TaskRepository) ListDueBetween(ctx context.Context, from, to int64) ([]*models.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE due_date >= ? AND due_date < ? AND status != ? AND assignee_id IS NOT NULL AND reminded_at IS NULL
		ORDER BY due_date`, from, to, models.TaskDone)
}

// MarkReminded records that the due-date reminder went out. Changing the due
// date through Update clears it.
func (r *TaskRepository) MarkReminded(ctx context.Context, id string, now int64) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `UPDATE tasks SET reminded_at = ? WHERE id = ?`, now, id)
	return err
}

func (r *TaskRepository) ListForUser(ctx context.Context, userID string) ([]*models.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE assignee_id = ? OR created_by = ? ORDER BY created_at`, userID, userID)
}

func (r *TaskRepository) UnassignUser(ctx context.Context, userID string, now int64) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `UPDATE tasks SET assignee_id = NULL, updated_at = ? WHERE assignee_id = ?`, now, userID)
	return err
}
