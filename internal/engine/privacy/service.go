// Package privacy exports and erases a user's personal data.
package privacy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"html"
	"time"

	"github.com/rs/zerolog"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/pkg/logger"
	"projecthub/internal/platform/database"
	"projecthub/internal/platform/mail"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

const exportNotificationLimit = 1000

type Membership struct {
	OrganizationID   string              `json:"organization_id"`
	OrganizationName string              `json:"organization_name"`
	Role             models.Role         `json:"role"`
	Status           models.MemberStatus `json:"status"`
	JoinedAt         int64               `json:"joined_at"`
}

// Export is the document handed to a user who asks for their data.
type Export struct {
	GeneratedAt   string                 `json:"generated_at"`
	User          *models.User           `json:"user"`
	Memberships   []Membership           `json:"memberships"`
	Tasks         []*models.Task         `json:"tasks"`
	Notifications []*models.Notification `json:"notifications"`
	Invitations   []*models.Invitation   `json:"invitations"`
}

type Service struct {
	tx            *database.TxManager
	users         *repositories.UserRepository
	orgs          *repositories.OrganizationRepository
	members       *repositories.MemberRepository
	tasks         *repositories.TaskRepository
	notifications *repositories.NotificationRepository
	invitations   *repositories.InvitationRepository
	mailer        mail.Mailer
	now           func() time.Time
	log           zerolog.Logger
}

func NewService(db *sql.DB, mailer mail.Mailer) *Service {
	return &Service{
		tx:            database.NewTxManager(db),
		users:         repositories.NewUserRepository(db),
		orgs:          repositories.NewOrganizationRepository(db),
		members:       repositories.NewMemberRepository(db),
		tasks:         repositories.NewTaskRepository(db),
		notifications: repositories.NewNotificationRepository(db),
		invitations:   repositories.NewInvitationRepository(db),
		mailer:        mailer,
		now:           time.Now,
		log:           logger.Component("privacy"),
	}
}

func (s *Service) loadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "load user")
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}
	return user, nil
}

// Export gathers everything stored about the user and mails it to them. A
// mail failure is logged; the export is still returned.
func (s *Service) Export(ctx context.Context, userID string) (*Export, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &Export{GeneratedAt: s.now().UTC().Format(time.RFC3339), User: user}
	if err := s.collect(ctx, out); err != nil {
		return nil, apperr.Internal(err, "collect export")
	}

	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, apperr.Internal(err, "encode export")
	}
	msg := mail.Message{
		To:      user.Email,
		Subject: "Your data export is ready",
		Text:    string(body),
		HTML:    "<p>Your ProjectHub data export:</p><pre>" + html.EscapeString(string(body)) + "</pre>",
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to email data export")
	}
	return out, nil
}

func (s *Service) collect(ctx context.Context, out *Export) error {
	userID := out.User.ID

	memberships, err := s.members.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("memberships: %w", err)
	}
	orgs, err := s.orgs.ListForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("organizations: %w", err)
	}
	names := make(map[string]string, len(orgs))
	for _, o := range orgs {
		names[o.ID] = o.Name
	}
	out.Memberships = make([]Membership, 0, len(memberships))
	for _, m := range memberships {
		out.Memberships = append(out.Memberships, Membership{
			OrganizationID:   m.OrganizationID,
			OrganizationName: names[m.OrganizationID],
			Role:             m.Role,
			Status:           m.Status,
			JoinedAt:         m.JoinedAt,
		})
	}

	if out.Tasks, err = s.tasks.ListForUser(ctx, userID); err != nil {
		return fmt.Errorf("tasks: %w", err)
	}
	if out.Notifications, err = s.notifications.ListByUser(ctx, userID, false, exportNotificationLimit); err != nil {
		return fmt.Errorf("notifications: %w", err)
	}
	if out.Invitations, err = s.invitations.ListByEmail(ctx, out.User.Email); err != nil {
		return fmt.Errorf("invitations: %w", err)
	}
	return nil
}

// Erase deletes the user and their personal data. It refuses while the user
// is the only owner of an organization.
func (s *Service) Erase(ctx context.Context, userID string) error {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	now := s.now().Unix()
	var memberships []*models.OrganizationMember
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		memberships, err = s.members.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, m := range memberships {
			if m.Role != models.RoleOwner {
				continue
			}
			owners, err := s.members.CountByRole(ctx, m.OrganizationID, models.RoleOwner)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return apperr.Conflict("transfer ownership of organization %s before deleting your account", m.OrganizationID)
			}
		}

		if err := s.notifications.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		for _, m := range memberships {
			removed, err := s.members.Delete(ctx, m.OrganizationID, userID)
			if err != nil {
				return err
			}
			if removed {
				if err := s.orgs.DecrementUsers(ctx, m.OrganizationID, now); err != nil {
					return err
				}
			}
		}
		if err := s.tasks.UnassignUser(ctx, userID, now); err != nil {
			return err
		}
		if err := s.invitations.DeleteByEmail(ctx, u.Email); err != nil {
			return err
		}
		return s.users.Delete(ctx, userID)
	})
	if err != nil {
		return apperr.OrInternal(err, "erase user")
	}

	s.log.Info().Str("user_id", userID).Int("memberships", len(memberships)).Msg("User data erased")
	return nil
}
