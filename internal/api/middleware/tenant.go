package middleware

import (
	"context"
	"net/http"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
)

// Tenants resolves the organization named in the route and the caller's
// membership in it.
type Tenants interface {
	Get(ctx context.Context, orgID string) (*models.Organization, error)
	Membership(ctx context.Context, orgID, userID string) (*models.OrganizationMember, error)
}

// TenantMiddleware scopes a request to the organization in the :org_id route
// parameter. The caller must be an active member of an organization that is
// neither suspended nor cancelled.
type TenantMiddleware struct {
	tenants Tenants
}

func NewTenantMiddleware(tenants Tenants) *TenantMiddleware {
	return &TenantMiddleware{tenants: tenants}
}

func (m *TenantMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := apiContext.ClaimsFrom(r.Context())
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}
		orgID := apiContext.Param(r, "org_id")
		if orgID == "" {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Missing organization id", nil)
			return
		}

		org, err := m.tenants.Get(r.Context(), orgID)
		if err != nil {
			errors.WriteAppError(w, err)
			return
		}
		if org.Status == models.OrgStatusSuspended || org.Status == models.OrgStatusCancelled {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Organization is "+string(org.Status), nil)
			return
		}

		member, err := m.tenants.Membership(r.Context(), orgID, claims.UserID)
		if err != nil {
			errors.WriteAppError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Organization, org)
		ctx = context.WithValue(ctx, apiContext.Membership, member)
		next(w, r.WithContext(ctx))
	}
}

// RequireRole admits callers whose membership role is one of roles.
func RequireRole(roles ...models.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			member, ok := apiContext.MembershipFrom(r.Context())
			if !ok || !member.Role.In(roles...) {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}
			next(w, r)
		}
	}
}
