package invitations

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"projecthub/internal/engine/events"
	"projecthub/internal/engine/orgs"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/audit"
	"projecthub/internal/platform/database/dbtest"
	"projecthub/internal/platform/mail"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

type fixture struct {
	db     *sql.DB
	svc    *Service
	orgs   *orgs.Service
	mailer *mail.Recorder
	events *events.Recorder
	clock  time.Time
	org    *models.Organization
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	f := &fixture{
		db:     db,
		mailer: &mail.Recorder{},
		events: &events.Recorder{},
		clock:  time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
	}
	auditLog := audit.NewLogger(db)
	f.svc = NewService(db, f.mailer, f.events, auditLog, "https://app.example.com/")
	f.svc.now = func() time.Time { return f.clock }
	f.orgs = orgs.NewService(db, f.events, auditLog)

	f.user(t, "usr_owner", "owner@example.com")
	org, err := f.orgs.Create(context.Background(), "usr_owner", orgs.CreateInput{Name: "Acme"})
	require.NoError(t, err)
	f.org = org
	return f
}

func (f *fixture) user(t *testing.T, id, email string) {
	t.Helper()
	require.NoError(t, repositories.NewUserRepository(f.db).Create(context.Background(), &models.User{
		ID: id, Email: email, FullName: strings.ToUpper(id), CreatedAt: 1, UpdatedAt: 1,
	}))
}

func (f *fixture) currentUsers(t *testing.T) int {
	t.Helper()
	org, err := f.orgs.Get(context.Background(), f.org.ID)
	require.NoError(t, err)
	return org.Usage.CurrentUsers
}

func (f *fixture) status(t *testing.T, id string) models.InvitationStatus {
	t.Helper()
	inv, err := repositories.NewInvitationRepository(f.db).GetByID(context.Background(), f.org.ID, id)
	require.NoError(t, err)
	return inv.Status
}

func TestIssue_SendsEmailWithAcceptLink(t *testing.T) {
	f := newFixture(t)

	inv, err := f.svc.Issue(context.Background(), f.org.ID, "usr_owner", " New.Person@Example.com ", "member")
	require.NoError(t, err)

	assert.Equal(t, "new.person@example.com", inv.Email)
	assert.Equal(t, models.RoleMember, inv.Role)
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.Len(t, inv.Token, 64)
	assert.Equal(t, f.clock.Add(7*24*time.Hour).Unix(), inv.ExpiresAt)

	sent := f.mailer.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "new.person@example.com", sent[0].To)
	assert.Contains(t, sent[0].Text, "https://app.example.com/invitations/accept?token="+inv.Token)
	assert.Contains(t, sent[0].HTML, "Acme")
	assert.Equal(t, []string{models.EventInvitationCreated}, f.events.Types())
}

func TestIssue_MailFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.mailer.Err = errors.New("smtp down")

	inv, err := f.svc.Issue(context.Background(), f.org.ID, "usr_owner", "a@example.com", models.RoleViewer)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, f.status(t, inv.ID))
}

func TestIssue_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "usr_member", "member@example.com")
	_, err := f.svc.Issue(ctx, f.org.ID, "usr_owner", "member@example.com", models.RoleMember)
	require.NoError(t, err)
	inv, err := repositories.NewInvitationRepository(f.db).FindPending(ctx, f.org.ID, "member@example.com")
	require.NoError(t, err)
	_, err = f.svc.Redeem(ctx, inv.Token, "usr_member", "member@example.com", true)
	require.NoError(t, err)
	_, err = f.svc.Issue(ctx, f.org.ID, "usr_owner", "pending@example.com", models.RoleMember)
	require.NoError(t, err)

	tests := []struct {
		name   string
		caller string
		email  string
		role   models.Role
		want   error
	}{
		{"member caller", "usr_member", "x@example.com", models.RoleMember, apperr.ErrPermission},
		{"outsider caller", "usr_ghost", "x@example.com", models.RoleMember, apperr.ErrPermission},
		{"owner role", "usr_owner", "x@example.com", models.RoleOwner, apperr.ErrValidation},
		{"unknown role", "usr_owner", "x@example.com", "GUEST", apperr.ErrValidation},
		{"bad email", "usr_owner", "not-an-email", models.RoleMember, apperr.ErrValidation},
		{"already member", "usr_owner", "MEMBER@example.com", models.RoleMember, apperr.ErrConflict},
		{"already pending", "usr_owner", "pending@example.com", models.RoleAdmin, apperr.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Issue(ctx, f.org.ID, tt.caller, tt.email, tt.role)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIssue_ReplacesOverduePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.svc.Issue(ctx, f.org.ID, "usr_owner", "late@example.com", models.RoleMember)
	require.NoError(t, err)

	f.clock = f.clock.Add(8 * 24 * time.Hour)
	fresh, err := f.svc.Issue(ctx, f.org.ID, "usr_owner", "late@example.com", models.RoleMember)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)
	assert.Equal(t, models.InvitationExpired, f.status(t, old.ID))
}

func TestRedeem_Matrix(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, f *fixture, inv *models.Invitation)
		token      func(inv *models.Invitation) string
		email      string
		unverified bool
		want       error
		wantStatus models.InvitationStatus
	}{
		{
			name:       "pending, in time, same email",
			email:      "invitee@example.com",
			wantStatus: models.InvitationAccepted,
		},
		{
			name:       "email matches case-insensitively",
			email:      "INVITEE@Example.COM",
			wantStatus: models.InvitationAccepted,
		},
		{
			name:       "unknown token",
			token:      func(*models.Invitation) string { return "deadbeef" },
			email:      "invitee@example.com",
			want:       apperr.ErrNotFound,
			wantStatus: models.InvitationPending,
		},
		{
			name:       "different email",
			email:      "someone@example.com",
			want:       apperr.ErrPermission,
			wantStatus: models.InvitationPending,
		},
		{
			name:       "unverified email",
			email:      "invitee@example.com",
			unverified: true,
			want:       apperr.ErrPermission,
			wantStatus: models.InvitationPending,
		},
		{
			name:       "expired",
			setup:      func(t *testing.T, f *fixture, _ *models.Invitation) { f.clock = f.clock.Add(7*24*time.Hour + time.Second) },
			email:      "invitee@example.com",
			want:       apperr.ErrExpired,
			wantStatus: models.InvitationExpired,
		},
		{
			name:       "exactly at expiry is still valid",
			setup:      func(t *testing.T, f *fixture, _ *models.Invitation) { f.clock = f.clock.Add(7 * 24 * time.Hour) },
			email:      "invitee@example.com",
			wantStatus: models.InvitationAccepted,
		},
		{
			name: "revoked",
			setup: func(t *testing.T, f *fixture, inv *models.Invitation) {
				require.NoError(t, f.svc.Revoke(context.Background(), f.org.ID, "usr_owner", inv.ID))
			},
			email:      "invitee@example.com",
			want:       apperr.ErrConflict,
			wantStatus: models.InvitationRevoked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			inv, err := f.svc.Issue(ctx, f.org.ID, "usr_owner", "invitee@example.com", models.RoleMember)
			require.NoError(t, err)
			if tt.setup != nil {
				tt.setup(t, f, inv)
			}
			token := inv.Token
			if tt.token != nil {
				token = tt.token(inv)
			}

			member, err := f.svc.Redeem(ctx, token, "usr_invitee", tt.email, !tt.unverified)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assert.Nil(t, member)
				assert.Equal(t, 1, f.currentUsers(t))
			} else {
				require.NoError(t, err)
				assert.Equal(t, models.RoleMember, member.Role)
				assert.Equal(t, 2, f.currentUsers(t))
			}
			assert.Equal(t, tt.wantStatus, f.status(t, inv.ID))
		})
	}
}

func TestRedeem_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, err := f.svc.Issue(ctx, f.org.ID, "usr_owner", "invitee@example.com", models.RoleMember)
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, inv.Token, "usr_invitee", "invitee@example.com", true)
	require.NoError(t, err)
	_, err = f.svc.Redeem(ctx, inv.Token, "usr_invitee", "invitee@example.com", true)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 2, f.currentUsers(t))
}

func TestFreePlan_FifthInviteHitsUserLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		userID := fmt.Sprintf("usr_%d", i)
		f.user(t, userID, email)

		inv, err := f.svc.Issue(ctx, f.org.ID, "usr_owner", email, models.RoleMember)
		require.NoError(t, err)
		_, err = f.svc.Redeem(ctx, inv.Token, userID, email, true)
		require.NoError(t, err)
		assert.Equal(t, 1+i, f.currentUsers(t))
	}

	_, err := f.svc.Issue(ctx, f.org.ID, "usr_owner", "user5@example.com", models.RoleMember)
	require.Error(t, err)
	assert.Equal(t, 403, apperr.StatusFor(err))
	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "User limit reached", appErr.Message)
}

func TestRedeem_RollsBackWhenSeatsRunOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		inv, err := f.svc.Issue(ctx, f.org.ID, "usr_owner", email, models.RoleMember)
		require.NoError(t, err)
		_, err = f.svc.Redeem(ctx, inv.Token, fmt.Sprintf("usr_%d", i), email, true)
		require.NoError(t, err)
	}
	// Four seats taken; both invitations fit the check at issue time.
	a, err := f.svc.Issue(ctx, f.org.ID, "usr_owner", "a@example.com", models.RoleMember)
	require.NoError(t, err)
	b, err := f.svc.Issue(ctx, f.org.ID, "usr_owner", "b@example.com", models.RoleMember)
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, a.Token, "usr_a", "a@example.com", true)
	require.NoError(t, err)
	_, err = f.svc.Redeem(ctx, b.Token, "usr_b", "b@example.com", true)
	assert.ErrorIs(t, err, apperr.ErrPermission)

	assert.Equal(t, 5, f.currentUsers(t))
	assert.Equal(t, models.InvitationPending, f.status(t, b.ID))
	m, err := repositories.NewMemberRepository(f.db).Get(ctx, f.org.ID, "usr_b")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestRevokeAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, err := f.svc.Issue(ctx, f.org.ID, "usr_owner", "a@example.com", models.RoleMember)
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, f.org.ID, "usr_owner", inv.ID))
	assert.ErrorIs(t, f.svc.Revoke(ctx, f.org.ID, "usr_owner", inv.ID), apperr.ErrConflict)
	assert.ErrorIs(t, f.svc.Revoke(ctx, f.org.ID, "usr_owner", "inv_missing"), apperr.ErrNotFound)

	revoked, err := f.svc.List(ctx, f.org.ID, "revoked")
	require.NoError(t, err)
	assert.Len(t, revoked, 1)
	pending, err := f.svc.List(ctx, f.org.ID, "PENDING")
	require.NoError(t, err)
	assert.Empty(t, pending)
	_, err = f.svc.List(ctx, f.org.ID, "bogus")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, err := f.svc.Issue(ctx, f.org.ID, "usr_owner", "a@example.com", models.RoleMember)
	require.NoError(t, err)

	n, err := f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock = f.clock.Add(8 * 24 * time.Hour)
	n, err = f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, models.InvitationExpired, f.status(t, inv.ID))
}

func TestQRCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, err := f.svc.Issue(ctx, f.org.ID, "usr_owner", "a@example.com", models.RoleMember)
	require.NoError(t, err)

	png, err := f.svc.QRCode(ctx, f.org.ID, inv.ID, 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = f.svc.QRCode(ctx, f.org.ID, inv.ID, 64)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
