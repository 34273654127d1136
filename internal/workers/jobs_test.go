package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"projecthub/internal/engine/notifications"
	"projecthub/internal/engine/tasks"
	"projecthub/internal/platform/config"
	"projecthub/internal/platform/database/dbtest"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

type fakeNotifier struct {
	mu       sync.Mutex
	sent     []notifications.Request
	failUser string
}

func (n *fakeNotifier) Send(ctx context.Context, req notifications.Request) ([]notifications.ChannelResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, req)
	var results []notifications.ChannelResult
	for _, ch := range req.Channels {
		res := notifications.ChannelResult{Channel: ch, Success: req.UserID != n.failUser}
		if !res.Success {
			res.Error = "boom"
		}
		results = append(results, res)
	}
	return results, nil
}

type fakeDigester struct {
	mu     sync.Mutex
	users  []string
	failed map[string]bool
	sent   []string
}

func (d *fakeDigester) DigestRecipients(ctx context.Context, since time.Time) ([]string, error) {
	return d.users, nil
}

func (d *fakeDigester) SendDigest(ctx context.Context, userID string, since time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failed[userID] {
		return 0, errors.New("mail down")
	}
	d.sent = append(d.sent, userID)
	return 1, nil
}

type fakeMaterializer struct {
	res tasks.MaterializeResult
	err error
}

func (m fakeMaterializer) Run(ctx context.Context) (tasks.MaterializeResult, error) { return m.res, m.err }

type fakeSweeper struct{ n int64 }

func (s fakeSweeper) ExpireStale(ctx context.Context) (int64, error) { return s.n, nil }

func newRunner(t *testing.T, now time.Time) (*Runner, *repositories.TaskRepository, *fakeNotifier, *fakeDigester) {
	t.Helper()
	db := dbtest.New(t)
	n := &fakeNotifier{}
	d := &fakeDigester{failed: map[string]bool{}}
	r := NewRunner(Deps{
		DB:           db,
		Notifier:     n,
		Digester:     d,
		Materializer: fakeMaterializer{res: tasks.MaterializeResult{Scanned: 3, Created: 2, Failed: 1}},
		Invitations:  fakeSweeper{n: 4},
	})
	r.now = func() time.Time { return now }
	return r, repositories.NewTaskRepository(db), n, d
}

func addTask(t *testing.T, repo *repositories.TaskRepository, id string, due time.Time, status models.TaskStatus, assignee string) {
	t.Helper()
	d := due.Unix()
	task := &models.Task{
		ID: id, OrganizationID: "org_1", ProjectID: "prj_1", Title: id, Status: status,
		Priority: models.PriorityMedium, DueDate: &d, CreatedBy: "usr_owner", CreatedAt: 1, UpdatedAt: 1,
	}
	if assignee != "" {
		task.AssigneeID = &assignee
	}
	require.NoError(t, repo.Create(context.Background(), task))
}

func TestDueReminders(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	r, repo, n, _ := newRunner(t, now)

	addTask(t, repo, "tsk_soon", now.Add(3*time.Hour), models.TaskTodo, "usr_a")
	addTask(t, repo, "tsk_fail", now.Add(5*time.Hour), models.TaskInProgress, "usr_broken")
	addTask(t, repo, "tsk_done", now.Add(3*time.Hour), models.TaskDone, "usr_a")
	addTask(t, repo, "tsk_unassigned", now.Add(3*time.Hour), models.TaskTodo, "")
	addTask(t, repo, "tsk_later", now.Add(30*time.Hour), models.TaskTodo, "usr_a")
	addTask(t, repo, "tsk_past", now.Add(-time.Hour), models.TaskTodo, "usr_a")
	n.failUser = "usr_broken"

	sum, err := r.DueReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Scanned: 2, Succeeded: 1, Failed: 1}, sum)

	require.Len(t, n.sent, 2)
	first := n.sent[0]
	assert.Equal(t, "usr_a", first.UserID)
	assert.Equal(t, notifications.TypeTaskDueSoon, first.Type)
	assert.Equal(t, "Due in about 3 hours.", first.Message)
	assert.Equal(t, []notifications.Channel{notifications.ChannelInApp, notifications.ChannelEmail}, first.Channels)
}

func TestDueReminders_OncePerDueDate(t *testing.T) {
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	r, repo, n, _ := newRunner(t, start)
	addTask(t, repo, "tsk_1", start.Add(20*time.Hour), models.TaskTodo, "usr_a")

	for i := 0; i < 5; i++ {
		now := start.Add(time.Duration(i) * time.Hour)
		r.now = func() time.Time { return now }
		_, err := r.DueReminders(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, n.sent, 1)

	task, err := repo.GetByID(context.Background(), "org_1", "tsk_1")
	require.NoError(t, err)
	moved := start.Add(30 * time.Hour).Unix()
	task.DueDate = &moved
	require.NoError(t, repo.Update(context.Background(), task))

	now := start.Add(10 * time.Hour)
	r.now = func() time.Time { return now }
	sum, err := r.DueReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded, "a new due date is reminded again")
	assert.Len(t, n.sent, 2)
}

func TestEmailDigest_IsolatesFailures(t *testing.T) {
	r, _, _, d := newRunner(t, time.Now())
	d.users = []string{"usr_a", "usr_b", "usr_c"}
	d.failed["usr_b"] = true

	sum, err := r.EmailDigest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Scanned: 3, Succeeded: 2, Failed: 1}, sum)
	assert.Equal(t, []string{"usr_a", "usr_c"}, d.sent)
}

func TestRunJob(t *testing.T) {
	r, _, _, _ := newRunner(t, time.Now())

	sum, err := r.RunJob(context.Background(), JobRecurring)
	require.NoError(t, err)
	assert.Equal(t, JobRecurring, sum.Job)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)

	sum, err = r.RunJob(context.Background(), JobInvitationSweep)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Succeeded)

	_, err = r.RunJob(context.Background(), "nope")
	assert.Error(t, err)
}

func TestRunAll(t *testing.T) {
	r, _, _, _ := newRunner(t, time.Now())
	r.materializer = fakeMaterializer{err: errors.New("db locked")}

	summaries, err := r.RunAll(context.Background())
	assert.EqualError(t, err, "db locked")
	require.Len(t, summaries, 4)
	names := []string{summaries[0].Job, summaries[1].Job, summaries[2].Job, summaries[3].Job}
	assert.Equal(t, []string{JobReminders, JobRecurring, JobDigest, JobInvitationSweep}, names)
}

func TestSchedule_StopsOnCancel(t *testing.T) {
	r, _, _, d := newRunner(t, time.Now())
	d.users = []string{"usr_a"}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Schedule(ctx, config.JobsConfig{DigestInterval: time.Hour})
		close(done)
	}()

	require.Eventually(t, func() bool { return len(digestsSent(d)) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func digestsSent(d *fakeDigester) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sent...)
}
