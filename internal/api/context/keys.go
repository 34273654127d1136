// Package context holds the request context keys shared by middleware and
// handlers.
package context

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"projecthub/internal/platform/auth"
	"projecthub/internal/platform/models"
)

type Key string

const (
	Claims       Key = "claims"
	Membership   Key = "membership"
	Organization Key = "organization"
	Params       Key = "params"
	RequestID    Key = "request_id"
)

func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(Claims).(*auth.Claims)
	return c, ok && c != nil
}

// MembershipFrom returns the caller's membership in the organization named
// by the :org_id route parameter.
func MembershipFrom(ctx context.Context) (*models.OrganizationMember, bool) {
	m, ok := ctx.Value(Membership).(*models.OrganizationMember)
	return m, ok && m != nil
}

func OrganizationFrom(ctx context.Context) (*models.Organization, bool) {
	o, ok := ctx.Value(Organization).(*models.Organization)
	return o, ok && o != nil
}

func Param(r *http.Request, name string) string {
	ps, _ := r.Context().Value(Params).(httprouter.Params)
	return ps.ByName(name)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestID).(string)
	return id
}
