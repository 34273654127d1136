package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"projecthub/internal/pkg/logger"
	"projecthub/internal/platform/database"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

type MaterializeResult struct {
	Scanned int      `json:"scanned"`
	Created int      `json:"created"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Materializer creates concrete tasks from recurring templates.
type Materializer struct {
	tx     *database.TxManager
	tasks  *repositories.TaskRepository
	events Events
	now    func() time.Time
	log    zerolog.Logger
}

func NewMaterializer(db *sql.DB, events Events) *Materializer {
	return &Materializer{
		tx:     database.NewTxManager(db),
		tasks:  repositories.NewTaskRepository(db),
		events: events,
		now:    time.Now,
		log:    logger.Component("materializer"),
	}
}

// Run creates one task for every template whose next occurrence falls on or
// before today (UTC) and advances the template by one step. Missed
// occurrences are not caught up.
func (m *Materializer) Run(ctx context.Context) (MaterializeResult, error) {
	var res MaterializeResult
	now := m.now()

	templates, err := m.tasks.ListDueTemplates(ctx, startOfTomorrow(now).Unix())
	if err != nil {
		return res, fmt.Errorf("list recurring templates: %w", err)
	}
	res.Scanned = len(templates)

	for _, tpl := range templates {
		task, err := m.materialize(ctx, tpl, now)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", tpl.ID, err))
			m.log.Error().Err(err).Str("template_id", tpl.ID).Msg("Failed to materialize recurring task")
			continue
		}
		res.Created++
		if m.events != nil {
			m.events.Emit(ctx, task.OrganizationID, models.EventTaskCreated, task)
		}
	}
	return res, nil
}

func (m *Materializer) materialize(ctx context.Context, tpl *models.Task, now time.Time) (*models.Task, error) {
	rec := *tpl.Recurrence
	occurrence := time.Unix(rec.NextOccurrence, 0).UTC()
	due := occurrence.AddDate(0, 0, dueOffsetDays(tpl)).Unix()
	parent := tpl.ID

	task := &models.Task{
		ID:             "tsk_" + uuid.New().String(),
		OrganizationID: tpl.OrganizationID,
		ProjectID:      tpl.ProjectID,
		Title:          tpl.Title,
		Description:    tpl.Description,
		Status:         models.TaskTodo,
		Priority:       tpl.Priority,
		AssigneeID:     tpl.AssigneeID,
		Tags:           tpl.Tags,
		DueDate:        &due,
		ParentTaskID:   &parent,
		CreatedBy:      tpl.CreatedBy,
		CreatedAt:      now.Unix(),
		UpdatedAt:      now.Unix(),
	}

	created := now.Unix()
	rec.NextOccurrence = NextOccurrence(occurrence, rec.Frequency, rec.Interval).Unix()
	rec.LastCreated = &created

	err := m.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := m.tasks.Create(ctx, task); err != nil {
			return err
		}
		return m.tasks.UpdateRecurrence(ctx, tpl.ID, &rec, now.Unix())
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}
