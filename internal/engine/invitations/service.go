// Package invitations issues and redeems organization invitations.
package invitations

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/pkg/logger"
	"projecthub/internal/pkg/validator"
	"projecthub/internal/platform/audit"
	"projecthub/internal/platform/database"
	"projecthub/internal/platform/mail"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

const (
	DefaultTTL = 7 * 24 * time.Hour
	tokenBytes = 32
)

type Events interface {
	Emit(ctx context.Context, orgID, eventType string, data interface{})
}

type Service struct {
	tx          *database.TxManager
	orgs        *repositories.OrganizationRepository
	members     *repositories.MemberRepository
	invitations *repositories.InvitationRepository
	users       *repositories.UserRepository
	mailer      mail.Mailer
	events      Events
	audit       *audit.Logger
	appURL      string
	ttl         time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

func NewService(db *sql.DB, mailer mail.Mailer, events Events, auditLog *audit.Logger, appURL string) *Service {
	return &Service{
		tx:          database.NewTxManager(db),
		orgs:        repositories.NewOrganizationRepository(db),
		members:     repositories.NewMemberRepository(db),
		invitations: repositories.NewInvitationRepository(db),
		users:       repositories.NewUserRepository(db),
		mailer:      mailer,
		events:      events,
		audit:       auditLog,
		appURL:      strings.TrimRight(appURL, "/"),
		ttl:         DefaultTTL,
		now:         time.Now,
		log:         logger.Component("invitations"),
	}
}

// AcceptURL is the link embedded in emails and QR codes.
func (s *Service) AcceptURL(token string) string {
	return s.appURL + "/invitations/accept?token=" + url.QueryEscape(token)
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *Service) requireInviter(ctx context.Context, orgID, callerID string) (*models.OrganizationMember, error) {
	caller, err := s.members.Get(ctx, orgID, callerID)
	if err != nil {
		return nil, apperr.Internal(err, "load membership")
	}
	if caller == nil || caller.Status != models.MemberStatusActive {
		return nil, apperr.Permission("not a member of this organization")
	}
	if !caller.Role.In(models.RoleOwner, models.RoleAdmin, models.RoleManager) {
		return nil, apperr.Permission("only owners, admins and managers can manage invitations")
	}
	return caller, nil
}

// Issue creates a PENDING invitation for email and mails the accept link.
func (s *Service) Issue(ctx context.Context, orgID, callerID, email string, role models.Role) (*models.Invitation, error) {
	if _, err := s.requireInviter(ctx, orgID, callerID); err != nil {
		return nil, err
	}

	role, ok := models.ParseRole(string(role))
	if !ok || role == models.RoleOwner {
		return nil, apperr.Validation("role must be one of ADMIN, MANAGER, MEMBER, VIEWER")
	}
	email = validator.NormalizeEmail(email)
	if err := validator.ValidateEmail(email); err != nil {
		return nil, apperr.Validation("invalid email address")
	}

	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, apperr.Internal(err, "load organization")
	}
	if org == nil {
		return nil, apperr.NotFound("organization not found")
	}
	if org.Usage.CurrentUsers >= org.Limits.MaxUsers {
		return nil, apperr.QuotaExceeded("User limit reached").WithDetails(map[string]interface{}{
			"max_users": org.Limits.MaxUsers,
			"plan":      org.Plan,
		})
	}

	exists, err := s.members.ExistsByEmail(ctx, orgID, email)
	if err != nil {
		return nil, apperr.Internal(err, "check membership")
	}
	if exists {
		return nil, apperr.Conflict("%s is already a member", email)
	}

	now := s.now()
	pending, err := s.invitations.FindPending(ctx, orgID, email)
	if err != nil {
		return nil, apperr.Internal(err, "check pending invitations")
	}
	if pending != nil {
		if pending.ExpiresAt >= now.Unix() {
			return nil, apperr.Conflict("a pending invitation already exists for %s", email)
		}
		if _, err := s.invitations.Transition(ctx, pending.ID, models.InvitationPending, models.InvitationExpired, now.Unix()); err != nil {
			return nil, apperr.Internal(err, "expire stale invitation")
		}
	}

	token, err := generateToken()
	if err != nil {
		return nil, apperr.Internal(err, "generate token")
	}
	inv := &models.Invitation{
		ID:             "inv_" + uuid.New().String(),
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		InvitedBy:      callerID,
		Token:          token,
		Status:         models.InvitationPending,
		ExpiresAt:      now.Add(s.ttl).Unix(),
		CreatedAt:      now.Unix(),
		UpdatedAt:      now.Unix(),
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, apperr.Internal(err, "create invitation")
	}

	s.sendInviteEmail(ctx, org, callerID, inv)
	s.events.Emit(ctx, orgID, models.EventInvitationCreated, inv)
	s.audit.Log(ctx, orgID, "invitation.created", "invitation", inv.ID, map[string]interface{}{"email": email, "role": role})
	return inv, nil
}

func (s *Service) sendInviteEmail(ctx context.Context, org *models.Organization, inviterID string, inv *models.Invitation) {
	inviterName := "A teammate"
	if inviter, err := s.users.GetByID(ctx, inviterID); err == nil && inviter != nil && inviter.FullName != "" {
		inviterName = inviter.FullName
	}

	msg, err := renderInviteEmail(inv.Email, inviteEmailData{
		OrgName:     org.Name,
		InviterName: inviterName,
		Role:        string(inv.Role),
		AcceptURL:   s.AcceptURL(inv.Token),
		ExpiresOn:   time.Unix(inv.ExpiresAt, 0).UTC().Format("January 2, 2006"),
	})
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.log.Error().Err(err).Str("invitation_id", inv.ID).Msg("Failed to send invitation email")
	}
}

// Redeem turns a PENDING invitation into a membership for the caller, whose
// verified email must match the invitation. The status flip, the membership
// and the seat increment commit together.
func (s *Service) Redeem(ctx context.Context, token, callerID, callerEmail string, emailVerified bool) (*models.OrganizationMember, error) {
	if token == "" {
		return nil, apperr.Validation("token is required")
	}
	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		return nil, apperr.Internal(err, "load invitation")
	}
	if inv == nil {
		return nil, apperr.NotFound("invitation not found")
	}
	if inv.Status != models.InvitationPending {
		return nil, apperr.Conflict("invitation is %s", strings.ToLower(string(inv.Status)))
	}

	now := s.now().Unix()
	if now > inv.ExpiresAt {
		if _, err := s.invitations.Transition(ctx, inv.ID, models.InvitationPending, models.InvitationExpired, now); err != nil {
			return nil, apperr.Internal(err, "expire invitation")
		}
		return nil, apperr.Expired("invitation has expired")
	}
	if !strings.EqualFold(strings.TrimSpace(callerEmail), inv.Email) {
		return nil, apperr.Permission("invitation was sent to a different email address")
	}
	if !emailVerified {
		return nil, apperr.Permission("email address is not verified")
	}

	member := &models.OrganizationMember{
		ID:             "mem_" + uuid.New().String(),
		OrganizationID: inv.OrganizationID,
		UserID:         callerID,
		Role:           inv.Role,
		Status:         models.MemberStatusActive,
		JoinedAt:       now,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.members.Get(ctx, inv.OrganizationID, callerID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict("already a member of this organization")
		}
		ok, err := s.invitations.MarkAccepted(ctx, inv.ID, callerID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("invitation is no longer pending")
		}
		if err := s.members.Create(ctx, member); err != nil {
			return err
		}
		ok, err = s.orgs.IncrementUsers(ctx, inv.OrganizationID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.QuotaExceeded("User limit reached")
		}
		return nil
	})
	if err != nil {
		return nil, apperr.OrInternal(err, "redeem invitation")
	}

	data := map[string]interface{}{"user_id": callerID, "role": member.Role, "invitation_id": inv.ID}
	s.events.Emit(ctx, inv.OrganizationID, models.EventMemberJoined, data)
	s.audit.Log(audit.WithRequestInfo(ctx, audit.RequestInfo{UserID: callerID}), inv.OrganizationID,
		"invitation.accepted", "invitation", inv.ID, nil)
	return member, nil
}

func (s *Service) Revoke(ctx context.Context, orgID, callerID, invitationID string) error {
	if _, err := s.requireInviter(ctx, orgID, callerID); err != nil {
		return err
	}
	inv, err := s.invitations.GetByID(ctx, orgID, invitationID)
	if err != nil {
		return apperr.Internal(err, "load invitation")
	}
	if inv == nil {
		return apperr.NotFound("invitation not found")
	}
	ok, err := s.invitations.Transition(ctx, inv.ID, models.InvitationPending, models.InvitationRevoked, s.now().Unix())
	if err != nil {
		return apperr.Internal(err, "revoke invitation")
	}
	if !ok {
		return apperr.Conflict("only pending invitations can be revoked")
	}
	s.audit.Log(ctx, orgID, "invitation.revoked", "invitation", inv.ID, nil)
	return nil
}

// List returns invitations of orgID; an empty status lists all of them.
func (s *Service) List(ctx context.Context, orgID, status string) ([]*models.Invitation, error) {
	st := models.InvitationStatus(strings.ToUpper(strings.TrimSpace(status)))
	switch st {
	case "", models.InvitationPending, models.InvitationAccepted, models.InvitationExpired, models.InvitationRevoked:
	default:
		return nil, apperr.Validation("unknown status %q", status)
	}
	list, err := s.invitations.ListByOrg(ctx, orgID, st)
	if err != nil {
		return nil, apperr.Internal(err, "list invitations")
	}
	return list, nil
}

// QRCode renders the accept link of a pending invitation as a PNG.
func (s *Service) QRCode(ctx context.Context, orgID, invitationID string, size int) ([]byte, error) {
	inv, err := s.invitations.GetByID(ctx, orgID, invitationID)
	if err != nil {
		return nil, apperr.Internal(err, "load invitation")
	}
	if inv == nil {
		return nil, apperr.NotFound("invitation not found")
	}
	if inv.Status != models.InvitationPending {
		return nil, apperr.Conflict("invitation is %s", strings.ToLower(string(inv.Status)))
	}
	png, err := GenerateQRCode(s.AcceptURL(inv.Token), size)
	if err != nil {
		return nil, apperr.OrInternal(err, "render qr code")
	}
	return png, nil
}

// ExpireStale marks every overdue PENDING invitation EXPIRED.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.invitations.ExpireStale(ctx, s.now().Unix())
	if err != nil {
		return 0, apperr.Internal(err, "expire invitations")
	}
	return n, nil
}
