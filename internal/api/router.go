package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	apiContext "projecthub/internal/api/context"
	"projecthub/internal/api/handlers"
	"projecthub/internal/api/middleware"
	"projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
)

type Dependencies struct {
	AuthHandler         *handlers.AuthHandler
	HookHandler         *handlers.IdentityHookHandler
	OrgHandler          *handlers.OrgHandler
	InvitationHandler   *handlers.InvitationHandler
	TaskHandler         *handlers.TaskHandler
	WebhookHandler      *handlers.WebhookHandler
	AuditHandler        *handlers.AuditHandler
	NotificationHandler *handlers.NotificationHandler
	MeHandler           *handlers.MeHandler
	HealthHandler       *handlers.HealthHandler
	MetricsHandler      *handlers.MetricsHandler
	AuthMiddleware      *middleware.AuthMiddleware
	TenantMiddleware    *middleware.TenantMiddleware
	RateLimiter         *middleware.RateLimiter
	Meter               *middleware.Meter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusMethodNotAllowed, errors.ErrCodeInvalidInput, "Method not allowed", nil)
	})

	authMid := deps.AuthMiddleware.Handle
	tenantMid := deps.TenantMiddleware.Handle
	meter := deps.Meter.Handle
	authLimit := deps.RateLimiter.Limit(middleware.LimitAuth)
	read := deps.RateLimiter.Limit(middleware.LimitRead)
	write := deps.RateLimiter.Limit(middleware.LimitWrite)

	// tenant routes: authenticate, resolve the organization, throttle and
	// meter it, then check the role.
	tenantRead := func(h http.HandlerFunc, extra ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
		return chain(h, append([]func(http.HandlerFunc) http.HandlerFunc{authMid, tenantMid, read, meter}, extra...)...)
	}
	tenantWrite := func(h http.HandlerFunc, extra ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
		return chain(h, append([]func(http.HandlerFunc) http.HandlerFunc{authMid, tenantMid, write, meter}, extra...)...)
	}
	admins := middleware.RequireRole(models.RoleOwner, models.RoleAdmin)

	router.GET("/api/v1/health", wrap(deps.HealthHandler.Check))
	router.GET("/api/v1/metrics", wrap(deps.MetricsHandler.Export))

	// Authentication routes
	router.POST("/api/v1/auth/signup", chain(deps.AuthHandler.Signup, authLimit))
	router.POST("/api/v1/auth/login", chain(deps.AuthHandler.Login, authLimit))
	router.POST("/api/v1/auth/refresh", chain(deps.AuthHandler.Refresh, authLimit))

	// Identity provider hooks
	router.POST("/api/v1/hooks/pre-signup", chain(deps.HookHandler.PreSignUp, authLimit))
	router.POST("/api/v1/hooks/post-confirmation", chain(deps.HookHandler.PostConfirmation, authLimit))

	// Organizations
	router.POST("/api/v1/organizations", chain(deps.OrgHandler.Create, authMid, write))
	router.GET("/api/v1/organizations", chain(deps.OrgHandler.List, authMid, read))
	router.GET("/api/v1/organizations/:org_id", tenantRead(deps.OrgHandler.Get))
	router.PATCH("/api/v1/organizations/:org_id", tenantWrite(deps.OrgHandler.Update, admins))

	// Members
	router.GET("/api/v1/organizations/:org_id/members", tenantRead(deps.OrgHandler.ListMembers))
	router.PATCH("/api/v1/organizations/:org_id/members/:user_id", tenantWrite(deps.OrgHandler.UpdateMember))
	router.DELETE("/api/v1/organizations/:org_id/members/:user_id", tenantWrite(deps.OrgHandler.RemoveMember))

	// Invitations
	router.POST("/api/v1/organizations/:org_id/invitations", tenantWrite(deps.InvitationHandler.Create))
	router.GET("/api/v1/organizations/:org_id/invitations", tenantRead(deps.InvitationHandler.List,
		middleware.RequireRole(models.RoleOwner, models.RoleAdmin, models.RoleManager)))
	router.DELETE("/api/v1/organizations/:org_id/invitations/:invitation_id", tenantWrite(deps.InvitationHandler.Revoke))
	router.GET("/api/v1/organizations/:org_id/invitations/:invitation_id/qr", tenantRead(deps.InvitationHandler.QRCode,
		middleware.RequireRole(models.RoleOwner, models.RoleAdmin, models.RoleManager)))
	router.POST("/api/v1/invitations/accept", chain(deps.InvitationHandler.Accept, authMid, write))

	// Projects and tasks
	router.POST("/api/v1/organizations/:org_id/projects", tenantWrite(deps.OrgHandler.CreateProject))
	router.GET("/api/v1/organizations/:org_id/projects", tenantRead(deps.OrgHandler.ListProjects))
	router.POST("/api/v1/organizations/:org_id/projects/:project_id/tasks", tenantWrite(deps.TaskHandler.Create))
	router.GET("/api/v1/organizations/:org_id/projects/:project_id/tasks", tenantRead(deps.TaskHandler.List))
	router.POST("/api/v1/organizations/:org_id/projects/:project_id/import", tenantWrite(deps.TaskHandler.Import))
	router.GET("/api/v1/organizations/:org_id/tasks/:task_id", tenantRead(deps.TaskHandler.Get))
	router.PATCH("/api/v1/organizations/:org_id/tasks/:task_id", tenantWrite(deps.TaskHandler.Update))
	router.DELETE("/api/v1/organizations/:org_id/tasks/:task_id", tenantWrite(deps.TaskHandler.Delete))

	// Webhooks and events
	router.POST("/api/v1/organizations/:org_id/webhooks", tenantWrite(deps.WebhookHandler.Create, admins))
	router.GET("/api/v1/organizations/:org_id/webhooks", tenantRead(deps.WebhookHandler.List, admins))
	router.PATCH("/api/v1/organizations/:org_id/webhooks/:webhook_id", tenantWrite(deps.WebhookHandler.Update, admins))
	router.DELETE("/api/v1/organizations/:org_id/webhooks/:webhook_id", tenantWrite(deps.WebhookHandler.Delete, admins))
	router.POST("/api/v1/organizations/:org_id/webhooks/:webhook_id/test", tenantWrite(deps.WebhookHandler.Test, admins))
	router.POST("/api/v1/organizations/:org_id/events", tenantWrite(deps.WebhookHandler.DispatchEvent, admins))

	router.GET("/api/v1/organizations/:org_id/audit", tenantRead(deps.AuditHandler.List, admins))

	// Notifications
	router.POST("/api/v1/notifications", chain(deps.NotificationHandler.Send, authMid, write))
	router.GET("/api/v1/notifications", chain(deps.NotificationHandler.List, authMid, read))
	router.PATCH("/api/v1/notifications/:notification_id", chain(deps.NotificationHandler.SetRead, authMid, write))
	router.POST("/api/v1/notifications/read-all", chain(deps.NotificationHandler.ReadAll, authMid, write))

	// Personal data
	router.POST("/api/v1/me/export", chain(deps.MeHandler.Export, authMid, write))
	router.DELETE("/api/v1/me", chain(deps.MeHandler.Delete, authMid, write))

	return router
}

// chain applies middlewares so the first one runs outermost.
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// wrap converts an http.HandlerFunc to an httprouter.Handle and puts the
// route params on the request context.
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
