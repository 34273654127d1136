package orgs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"projecthub/internal/engine/events"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/audit"
	"projecthub/internal/platform/database/dbtest"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

type fixture struct {
	db     *sql.DB
	svc    *Service
	events *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	rec := &events.Recorder{}
	svc := NewService(db, rec, audit.NewLogger(db))
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	return &fixture{db: db, svc: svc, events: rec}
}

func (f *fixture) user(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, repositories.NewUserRepository(f.db).Create(context.Background(), &models.User{
		ID: id, Email: id + "@example.com", FullName: id, CreatedAt: 1, UpdatedAt: 1,
	}))
}

// join adds userID with role and takes a seat, the way invitation redemption does.
func (f *fixture) join(t *testing.T, orgID, userID string, role models.Role) {
	t.Helper()
	f.user(t, userID)
	ctx := context.Background()
	require.NoError(t, repositories.NewMemberRepository(f.db).Create(ctx, &models.OrganizationMember{
		ID: "mem_" + userID, OrganizationID: orgID, UserID: userID, Role: role,
		Status: models.MemberStatusActive, JoinedAt: 2,
	}))
	ok, err := repositories.NewOrganizationRepository(f.db).IncrementUsers(ctx, orgID, 2)
	require.NoError(t, err)
	require.True(t, ok)
}

func (f *fixture) org(t *testing.T) *models.Organization {
	t.Helper()
	f.user(t, "usr_owner")
	org, err := f.svc.Create(context.Background(), "usr_owner", CreateInput{Name: "Acme Corp"})
	require.NoError(t, err)
	return org
}

func TestCreate_AppliesPlanAndOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.org(t)

	assert.Equal(t, "acme-corp", org.Slug)
	assert.Equal(t, models.PlanFree, org.Plan)
	assert.Equal(t, models.OrgStatusTrial, org.Status)
	assert.Equal(t, models.Limits{MaxUsers: 5, MaxProjects: 3, MaxStorageGB: 1, MaxAPICallsPerMonth: 1000}, org.Limits)
	require.NotNil(t, org.TrialEndsAt)
	assert.Equal(t, time.Date(2026, 5, 15, 9, 0, 0, 0, time.UTC).Unix(), *org.TrialEndsAt)

	stored, err := f.svc.Get(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Usage.CurrentUsers)

	m, err := f.svc.Membership(ctx, org.ID, "usr_owner")
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, m.Role)

	_, err = f.svc.Create(ctx, "usr_owner", CreateInput{Name: "Second", Slug: "acme-corp"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	f.user(t, "usr_owner")
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "usr_owner", CreateInput{Name: "  "})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Create(ctx, "usr_owner", CreateInput{Name: "X", Plan: "PLATINUM"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Create(ctx, "usr_ghost", CreateInput{Name: "X"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	org, err := f.svc.Create(ctx, "usr_owner", CreateInput{Name: "Big", Plan: "enterprise"})
	require.NoError(t, err)
	assert.Equal(t, 1000, org.Limits.MaxUsers)
}

func TestRemoveMember_SoleOwnerConflict(t *testing.T) {
	f := newFixture(t)
	org := f.org(t)

	err := f.svc.RemoveMember(context.Background(), org.ID, "usr_owner", "usr_owner")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	stored, err := f.svc.Get(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Usage.CurrentUsers)
}

func TestRemoveMember_AdminRemovesMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.org(t)
	f.join(t, org.ID, "usr_admin", models.RoleAdmin)
	f.join(t, org.ID, "usr_member", models.RoleMember)

	before, err := f.svc.Get(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, before.Usage.CurrentUsers)

	require.NoError(t, f.svc.RemoveMember(ctx, org.ID, "usr_admin", "usr_member"))

	after, err := f.svc.Get(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Usage.CurrentUsers)
	assert.Equal(t, []string{models.EventMemberRemoved}, f.events.Types())

	_, err = f.svc.Membership(ctx, org.ID, "usr_member")
	assert.ErrorIs(t, err, apperr.ErrPermission)
}

func TestRemoveMember_Permissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.org(t)
	f.join(t, org.ID, "usr_admin", models.RoleAdmin)
	f.join(t, org.ID, "usr_a", models.RoleMember)
	f.join(t, org.ID, "usr_b", models.RoleMember)

	tests := []struct {
		name   string
		caller string
		target string
		want   error
	}{
		{"member cannot remove others", "usr_a", "usr_b", apperr.ErrPermission},
		{"admin cannot remove owner", "usr_admin", "usr_owner", apperr.ErrPermission},
		{"outsider is rejected", "usr_nobody", "usr_a", apperr.ErrPermission},
		{"unknown target", "usr_owner", "usr_ghost", apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, f.svc.RemoveMember(ctx, org.ID, tt.caller, tt.target), tt.want)
		})
	}

	require.NoError(t, f.svc.RemoveMember(ctx, org.ID, "usr_b", "usr_b"), "members may leave")
}

func TestUpdateMemberRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.org(t)
	f.join(t, org.ID, "usr_admin", models.RoleAdmin)

	_, err := f.svc.UpdateMemberRole(ctx, org.ID, "usr_owner", "usr_owner", models.RoleAdmin)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.svc.UpdateMemberRole(ctx, org.ID, "usr_admin", "usr_admin", models.RoleOwner)
	assert.ErrorIs(t, err, apperr.ErrPermission)

	_, err = f.svc.UpdateMemberRole(ctx, org.ID, "usr_owner", "usr_admin", "SUPREME")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	m, err := f.svc.UpdateMemberRole(ctx, org.ID, "usr_owner", "usr_admin", "owner")
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, m.Role)

	_, err = f.svc.UpdateMemberRole(ctx, org.ID, "usr_owner", "usr_owner", models.RoleMember)
	require.NoError(t, err, "a second owner exists now")
}

func TestCreateProject_EnforcesLimitAndRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.org(t)
	f.join(t, org.ID, "usr_member", models.RoleMember)

	_, err := f.svc.CreateProject(ctx, org.ID, "usr_member", ProjectInput{Name: "Nope"})
	assert.ErrorIs(t, err, apperr.ErrPermission)

	for _, name := range []string{"One", "Two", "Three"} {
		_, err := f.svc.CreateProject(ctx, org.ID, "usr_owner", ProjectInput{Name: name})
		require.NoError(t, err)
	}
	_, err = f.svc.CreateProject(ctx, org.ID, "usr_owner", ProjectInput{Name: "Four"})
	require.Error(t, err)
	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.ErrCodeQuotaExceeded, appErr.Code)

	projects, err := f.svc.ListProjects(ctx, org.ID)
	require.NoError(t, err)
	assert.Len(t, projects, 3)
	assert.Len(t, f.events.Types(), 3)
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.org(t)

	bad := "http://hooks.slack.com/x"
	_, err := f.svc.UpdateSettings(ctx, org.ID, "usr_owner", SettingsInput{SlackWebhookURL: &bad})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	good := "https://hooks.slack.com/services/T/B/X"
	updated, err := f.svc.UpdateSettings(ctx, org.ID, "usr_owner", SettingsInput{SlackWebhookURL: &good})
	require.NoError(t, err)
	assert.Equal(t, good, updated.SlackWebhookURL)
}
