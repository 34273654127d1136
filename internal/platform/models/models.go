package models

import "strings"

type Plan string

const (
	PlanFree         Plan = "FREE"
	PlanStarter      Plan = "STARTER"
	PlanProfessional Plan = "PROFESSIONAL"
	PlanEnterprise   Plan = "ENTERPRISE"
)

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanProfessional, PlanEnterprise:
		return true
	}
	return false
}

type OrgStatus string

const (
	OrgStatusTrial     OrgStatus = "TRIAL"
	OrgStatusActive    OrgStatus = "ACTIVE"
	OrgStatusSuspended OrgStatus = "SUSPENDED"
	OrgStatusCancelled OrgStatus = "CANCELLED"
)

type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleMember  Role = "MEMBER"
	RoleViewer  Role = "VIEWER"
)

var roleRank = map[Role]int{
	RoleViewer:  1,
	RoleMember:  2,
	RoleManager: 3,
	RoleAdmin:   4,
	RoleOwner:   5,
}

// ParseRole accepts any letter case.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := roleRank[r]
	return r, ok
}

// AtLeast reports whether r ranks the same as or above min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min] && roleRank[r] > 0
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	for _, role := range roles {
		if r == role {
			return true
		}
	}
	return false
}

type MemberStatus string

const (
	MemberStatusActive    MemberStatus = "ACTIVE"
	MemberStatusSuspended MemberStatus = "SUSPENDED"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationExpired  InvitationStatus = "EXPIRED"
	InvitationRevoked  InvitationStatus = "REVOKED"
)

type Limits struct {
	MaxUsers            int   `json:"max_users"`
	MaxProjects         int   `json:"max_projects"`
	MaxStorageGB        int   `json:"max_storage_gb"`
	MaxAPICallsPerMonth int64 `json:"max_api_calls_per_month"`
}

type Usage struct {
	CurrentUsers      int   `json:"current_users"`
	CurrentProjects   int   `json:"current_projects"`
	StorageUsedBytes  int64 `json:"storage_used_bytes"`
	APICallsThisMonth int64 `json:"api_calls_this_month"`
}

type Organization struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	Plan            Plan      `json:"plan"`
	Status          OrgStatus `json:"status"`
	Limits          Limits    `json:"limits"`
	Usage           Usage     `json:"usage"`
	OwnerID         string    `json:"owner_id"`
	SlackWebhookURL string    `json:"-"`
	TrialEndsAt     *int64    `json:"trial_ends_at,omitempty"`
	CreatedAt       int64     `json:"created_at"`
	UpdatedAt       int64     `json:"updated_at"`
}

type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	PasswordHash  string `json:"-"`
	EmailVerified bool   `json:"email_verified"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

type OrganizationMember struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	UserID         string       `json:"user_id"`
	Role           Role         `json:"role"`
	Status         MemberStatus `json:"status"`
	Permissions    []string     `json:"permissions"`
	JoinedAt       int64        `json:"joined_at"`

	// Populated by list queries that join users.
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

type Invitation struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	Email          string           `json:"email"`
	Role           Role             `json:"role"`
	InvitedBy      string           `json:"invited_by"`
	Token          string           `json:"-"`
	Status         InvitationStatus `json:"status"`
	ExpiresAt      int64            `json:"expires_at"`
	AcceptedAt     *int64           `json:"accepted_at,omitempty"`
	AcceptedBy     *string          `json:"accepted_by,omitempty"`
	CreatedAt      int64            `json:"created_at"`
	UpdatedAt      int64            `json:"updated_at"`
}

type Project struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	CreatedBy      string `json:"created_by"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}
