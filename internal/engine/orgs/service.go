// Package orgs manages organizations, their members and projects.
package orgs

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/audit"
	"projecthub/internal/platform/database"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

// Events receives domain events.
type Events interface {
	Emit(ctx context.Context, orgID, eventType string, data interface{})
}

type Service struct {
	tx       *database.TxManager
	orgs     *repositories.OrganizationRepository
	members  *repositories.MemberRepository
	projects *repositories.ProjectRepository
	users    *repositories.UserRepository
	events   Events
	audit    *audit.Logger
	now      func() time.Time
}

func NewService(db *sql.DB, events Events, auditLog *audit.Logger) *Service {
	return &Service{
		tx:       database.NewTxManager(db),
		orgs:     repositories.NewOrganizationRepository(db),
		members:  repositories.NewMemberRepository(db),
		projects: repositories.NewProjectRepository(db),
		users:    repositories.NewUserRepository(db),
		events:   events,
		audit:    auditLog,
		now:      time.Now,
	}
}

type CreateInput struct {
	Name string      `json:"name"`
	Slug string      `json:"slug,omitempty"`
	Plan models.Plan `json:"plan,omitempty"`
}

// Create makes ownerID the OWNER of a new organization. The organization,
// the membership and the first seat are written in one transaction.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*models.Organization, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > 100 {
		return nil, apperr.Validation("name is required and must be at most 100 characters")
	}
	plan := models.Plan(strings.ToUpper(string(in.Plan)))
	if plan == "" {
		plan = models.PlanFree
	}
	limits, ok := LimitsFor(plan)
	if !ok {
		return nil, apperr.Validation("unknown plan %q", in.Plan)
	}

	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err, "load owner")
	}
	if owner == nil {
		return nil, apperr.NotFound("user profile not found")
	}

	slug, err := GenerateSlug(ctx, name, in.Slug, s.orgs)
	if err != nil {
		return nil, apperr.OrInternal(err, "generate slug")
	}

	now := s.now()
	trialEnds := now.AddDate(0, 0, trialDays).Unix()
	org := &models.Organization{
		ID:          "org_" + uuid.New().String(),
		Name:        name,
		Slug:        slug,
		Plan:        plan,
		Status:      models.OrgStatusTrial,
		Limits:      limits,
		Usage:       models.Usage{CurrentUsers: 1},
		OwnerID:     ownerID,
		TrialEndsAt: &trialEnds,
		CreatedAt:   now.Unix(),
		UpdatedAt:   now.Unix(),
	}
	member := &models.OrganizationMember{
		ID:             "mem_" + uuid.New().String(),
		OrganizationID: org.ID,
		UserID:         ownerID,
		Role:           models.RoleOwner,
		Status:         models.MemberStatusActive,
		JoinedAt:       now.Unix(),
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.orgs.Create(ctx, org); err != nil {
			return err
		}
		return s.members.Create(ctx, member)
	})
	if err != nil {
		return nil, apperr.Internal(err, "create organization")
	}

	s.audit.Log(ctx, org.ID, "organization.created", "organization", org.ID, map[string]interface{}{"plan": plan})
	return org, nil
}

func (s *Service) Get(ctx context.Context, orgID string) (*models.Organization, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, apperr.Internal(err, "load organization")
	}
	if org == nil {
		return nil, apperr.NotFound("organization not found")
	}
	return org, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]*models.Organization, error) {
	orgs, err := s.orgs.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "list organizations")
	}
	return orgs, nil
}

func (s *Service) ListMembers(ctx context.Context, orgID string) ([]*models.OrganizationMember, error) {
	members, err := s.members.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, apperr.Internal(err, "list members")
	}
	return members, nil
}

// Membership returns the caller's membership, or a permission error when the
// caller does not belong to the organization.
func (s *Service) Membership(ctx context.Context, orgID, userID string) (*models.OrganizationMember, error) {
	m, err := s.members.Get(ctx, orgID, userID)
	if err != nil {
		return nil, apperr.Internal(err, "load membership")
	}
	if m == nil || m.Status != models.MemberStatusActive {
		return nil, apperr.Permission("not a member of this organization")
	}
	return m, nil
}

type SettingsInput struct {
	Name            *string `json:"name,omitempty"`
	SlackWebhookURL *string `json:"slack_webhook_url,omitempty"`
}

func (s *Service) UpdateSettings(ctx context.Context, orgID, callerID string, in SettingsInput) (*models.Organization, error) {
	caller, err := s.Membership(ctx, orgID, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.Role.In(models.RoleOwner, models.RoleAdmin) {
		return nil, apperr.Permission("only owners and admins can change settings")
	}
	org, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > 100 {
			return nil, apperr.Validation("name is required and must be at most 100 characters")
		}
		org.Name = name
	}
	if in.SlackWebhookURL != nil {
		u := strings.TrimSpace(*in.SlackWebhookURL)
		if u != "" && !strings.HasPrefix(u, "https://") {
			return nil, apperr.Validation("slack_webhook_url must be an https URL")
		}
		org.SlackWebhookURL = u
	}
	org.UpdatedAt = s.now().Unix()
	if err := s.orgs.UpdateSettings(ctx, orgID, org.Name, org.SlackWebhookURL, org.UpdatedAt); err != nil {
		return nil, apperr.Internal(err, "update organization")
	}
	s.audit.Log(ctx, orgID, "organization.updated", "organization", orgID, nil)
	return org, nil
}

// RemoveMember deletes userID's membership. Owners and admins may remove
// others, anyone may remove themselves, and only an owner may remove an owner.
// The last owner can never be removed.
func (s *Service) RemoveMember(ctx context.Context, orgID, callerID, userID string) error {
	caller, err := s.Membership(ctx, orgID, callerID)
	if err != nil {
		return err
	}
	self := callerID == userID
	if !self && !caller.Role.In(models.RoleOwner, models.RoleAdmin) {
		return apperr.Permission("only owners and admins can remove members")
	}

	var removed *models.OrganizationMember
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		target, err := s.members.Get(ctx, orgID, userID)
		if err != nil {
			return err
		}
		if target == nil {
			return apperr.NotFound("member not found")
		}
		if target.Role == models.RoleOwner {
			if caller.Role != models.RoleOwner {
				return apperr.Permission("only an owner can remove an owner")
			}
			owners, err := s.members.CountByRole(ctx, orgID, models.RoleOwner)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return apperr.Conflict("cannot remove the last owner of the organization")
			}
		}

		ok, err := s.members.Delete(ctx, orgID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("member not found")
		}
		if err := s.orgs.DecrementUsers(ctx, orgID, s.now().Unix()); err != nil {
			return err
		}
		removed = target
		return nil
	})
	if err != nil {
		return apperr.OrInternal(err, "remove member")
	}

	data := map[string]interface{}{"user_id": userID, "role": removed.Role, "removed_by": callerID}
	s.events.Emit(ctx, orgID, models.EventMemberRemoved, data)
	s.audit.Log(ctx, orgID, "member.removed", "member", userID, data)
	return nil
}

// UpdateMemberRole is reserved to owners. Demoting the last owner is refused.
func (s *Service) UpdateMemberRole(ctx context.Context, orgID, callerID, userID string, role models.Role) (*models.OrganizationMember, error) {
	caller, err := s.Membership(ctx, orgID, callerID)
	if err != nil {
		return nil, err
	}
	if caller.Role != models.RoleOwner {
		return nil, apperr.Permission("only owners can change roles")
	}
	role, ok := models.ParseRole(string(role))
	if !ok {
		return nil, apperr.Validation("invalid role")
	}

	var updated *models.OrganizationMember
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		target, err := s.members.Get(ctx, orgID, userID)
		if err != nil {
			return err
		}
		if target == nil {
			return apperr.NotFound("member not found")
		}
		if target.Role == models.RoleOwner && role != models.RoleOwner {
			owners, err := s.members.CountByRole(ctx, orgID, models.RoleOwner)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return apperr.Conflict("cannot demote the last owner of the organization")
			}
		}
		if _, err := s.members.UpdateRole(ctx, orgID, userID, role); err != nil {
			return err
		}
		target.Role = role
		updated = target
		return nil
	})
	if err != nil {
		return nil, apperr.OrInternal(err, "update role")
	}

	s.audit.Log(ctx, orgID, "member.role_changed", "member", userID, map[string]interface{}{"role": role})
	return updated, nil
}

type ProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateProject requires MANAGER or higher and a free project slot.
func (s *Service) CreateProject(ctx context.Context, orgID, callerID string, in ProjectInput) (*models.Project, error) {
	caller, err := s.Membership(ctx, orgID, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.Role.AtLeast(models.RoleManager) {
		return nil, apperr.Permission("managers and above can create projects")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}

	now := s.now().Unix()
	project := &models.Project{
		ID:             "prj_" + uuid.New().String(),
		OrganizationID: orgID,
		Name:           name,
		Description:    strings.TrimSpace(in.Description),
		CreatedBy:      callerID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ok, err := s.orgs.IncrementProjects(ctx, orgID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.QuotaExceeded("Project limit reached")
		}
		return s.projects.Create(ctx, project)
	})
	if err != nil {
		return nil, apperr.OrInternal(err, "create project")
	}

	s.events.Emit(ctx, orgID, models.EventProjectCreated, project)
	s.audit.Log(ctx, orgID, "project.created", "project", project.ID, nil)
	return project, nil
}

func (s *Service) ListProjects(ctx context.Context, orgID string) ([]*models.Project, error) {
	projects, err := s.projects.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, apperr.Internal(err, "list projects")
	}
	return projects, nil
}

func (s *Service) GetProject(ctx context.Context, orgID, projectID string) (*models.Project, error) {
	p, err := s.projects.GetByID(ctx, orgID, projectID)
	if err != nil {
		return nil, apperr.Internal(err, "load project")
	}
	if p == nil {
		return nil, apperr.NotFound("project not found")
	}
	return p, nil
}
