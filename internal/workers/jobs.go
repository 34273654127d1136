// Package workers holds the scheduled background jobs.
package workers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"projecthub/internal/engine/notifications"
	"projecthub/internal/engine/tasks"
	"projecthub/internal/pkg/logger"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

const (
	JobReminders       = "reminders"
	JobRecurring       = "recurring"
	JobDigest          = "digest"
	JobInvitationSweep = "invitation-sweep"

	reminderWindow = 24 * time.Hour
	digestWindow   = 24 * time.Hour
)

// Summary is the outcome of one job run.
type Summary struct {
	Job       string        `json:"job"`
	Scanned   int           `json:"scanned"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

type Notifier interface {
	Send(ctx context.Context, req notifications.Request) ([]notifications.ChannelResult, error)
}

type Digester interface {
	DigestRecipients(ctx context.Context, since time.Time) ([]string, error)
	SendDigest(ctx context.Context, userID string, since time.Time) (int, error)
}

type Materializer interface {
	Run(ctx context.Context) (tasks.MaterializeResult, error)
}

type InvitationSweeper interface {
	ExpireStale(ctx context.Context) (int64, error)
}

type Deps struct {
	DB           *sql.DB
	Notifier     Notifier
	Digester     Digester
	Materializer Materializer
	Invitations  InvitationSweeper
}

// Runner executes jobs. Each job scans sequentially and isolates failures
// per item.
type Runner struct {
	tasks        *repositories.TaskRepository
	notifier     Notifier
	digester     Digester
	materializer Materializer
	invitations  InvitationSweeper
	now          func() time.Time
	log          zerolog.Logger
}

func NewRunner(deps Deps) *Runner {
	return &Runner{
		tasks:        repositories.NewTaskRepository(deps.DB),
		notifier:     deps.Notifier,
		digester:     deps.Digester,
		materializer: deps.Materializer,
		invitations:  deps.Invitations,
		now:          time.Now,
		log:          logger.Component("workers"),
	}
}

type JobFunc func(ctx context.Context) (Summary, error)

// Jobs returns every job by name, in a stable order.
func (r *Runner) Jobs() []NamedJob {
	return []NamedJob{
		{JobReminders, r.DueReminders},
		{JobRecurring, r.RecurringTasks},
		{JobDigest, r.EmailDigest},
		{JobInvitationSweep, r.ExpireInvitations},
	}
}

type NamedJob struct {
	Name string
	Run  JobFunc
}

// RunJob runs a job by name and logs its summary.
func (r *Runner) RunJob(ctx context.Context, name string) (Summary, error) {
	for _, j := range r.Jobs() {
		if j.Name == name {
			return r.run(ctx, j)
		}
	}
	return Summary{}, fmt.Errorf("unknown job %q", name)
}

func (r *Runner) run(ctx context.Context, j NamedJob) (Summary, error) {
	start := r.now()
	sum, err := j.Run(ctx)
	sum.Job = j.Name
	sum.Duration = time.Since(start)

	ev := r.log.Info()
	if err != nil {
		ev = r.log.Error().Err(err)
	}
	ev.Str("job", sum.Job).Int("scanned", sum.Scanned).Int("succeeded", sum.Succeeded).
		Int("failed", sum.Failed).Dur("duration", sum.Duration).Msg("Job finished")
	return sum, err
}

// RunAll runs every job once. A failing job does not stop the others.
func (r *Runner) RunAll(ctx context.Context) ([]Summary, error) {
	var summaries []Summary
	var firstErr error
	for _, j := range r.Jobs() {
		sum, err := r.run(ctx, j)
		summaries = append(summaries, sum)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return summaries, firstErr
}

// DueReminders notifies assignees of open tasks due within the next 24 hours.
// A task is reminded once per due date; a partial channel failure still
// counts as reminded and is reported as failed.
func (r *Runner) DueReminders(ctx context.Context) (Summary, error) {
	var sum Summary
	now := r.now()
	due, err := r.tasks.ListDueBetween(ctx, now.Unix(), now.Add(reminderWindow).Unix())
	if err != nil {
		return sum, fmt.Errorf("list due tasks: %w", err)
	}
	sum.Scanned = len(due)

	for _, task := range due {
		sent, err := r.remind(ctx, task, now)
		if sent {
			if merr := r.tasks.MarkReminded(ctx, task.ID, now.Unix()); merr != nil {
				r.log.Error().Err(merr).Str("task_id", task.ID).Msg("Failed to mark task reminded")
			}
		}
		if err != nil {
			sum.Failed++
			r.log.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to send due reminder")
			continue
		}
		sum.Succeeded++
	}
	return sum, nil
}

// remind reports whether the notifier accepted the request, and an error for
// any channel that failed.
func (r *Runner) remind(ctx context.Context, task *models.Task, now time.Time) (bool, error) {
	hours := int(time.Unix(*task.DueDate, 0).Sub(now).Hours())
	results, err := r.notifier.Send(ctx, notifications.Request{
		UserID:         *task.AssigneeID,
		OrganizationID: task.OrganizationID,
		Type:           notifications.TypeTaskDueSoon,
		Title:          fmt.Sprintf("%q is due soon", task.Title),
		Message:        fmt.Sprintf("Due in about %d hours.", hours),
		Link:           fmt.Sprintf("/organizations/%s/tasks/%s", task.OrganizationID, task.ID),
		Metadata:       map[string]interface{}{"task_id": task.ID, "due_date": *task.DueDate},
		Channels:       []notifications.Channel{notifications.ChannelInApp, notifications.ChannelEmail},
	})
	if err != nil {
		return false, err
	}
	for _, res := range results {
		if !res.Success {
			return true, fmt.Errorf("%s: %s", res.Channel, res.Error)
		}
	}
	return true, nil
}

func (r *Runner) RecurringTasks(ctx context.Context) (Summary, error) {
	res, err := r.materializer.Run(ctx)
	return Summary{Scanned: res.Scanned, Succeeded: res.Created, Failed: res.Failed}, err
}

// EmailDigest sends one digest per user with unread notifications from the
// last 24 hours.
func (r *Runner) EmailDigest(ctx context.Context) (Summary, error) {
	var sum Summary
	since := r.now().Add(-digestWindow)
	users, err := r.digester.DigestRecipients(ctx, since)
	if err != nil {
		return sum, fmt.Errorf("list digest recipients: %w", err)
	}
	sum.Scanned = len(users)

	for _, userID := range users {
		if _, err := r.digester.SendDigest(ctx, userID, since); err != nil {
			sum.Failed++
			r.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to send digest")
			continue
		}
		sum.Succeeded++
	}
	return sum, nil
}

func (r *Runner) ExpireInvitations(ctx context.Context) (Summary, error) {
	n, err := r.invitations.ExpireStale(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Scanned: int(n), Succeeded: int(n)}, nil
}
