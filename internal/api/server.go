package api

import (
	"net/http"

	"projecthub/internal/api/handlers"
	"projecthub/internal/api/middleware"
	"projecthub/internal/app"
	"projecthub/internal/engine/identity"
	"projecthub/internal/platform/config"
)

// NewDependencies builds handlers and middleware over the engine services.
func NewDependencies(cfg *config.Config, svc *app.Services) *Dependencies {
	return &Dependencies{
		AuthHandler:         handlers.NewAuthHandler(svc.Accounts, svc.Tokens),
		HookHandler:         handlers.NewIdentityHookHandler(cfg.Identity.HookSecret, identity.PolicyFrom(cfg.Identity), svc.Provisioner),
		OrgHandler:          handlers.NewOrgHandler(svc.Orgs),
		InvitationHandler:   handlers.NewInvitationHandler(svc.Invitations),
		TaskHandler:         handlers.NewTaskHandler(svc.Tasks, svc.Importer),
		WebhookHandler:      handlers.NewWebhookHandler(svc.Webhooks, svc.Bus),
		AuditHandler:        handlers.NewAuditHandler(svc.Audit),
		NotificationHandler: handlers.NewNotificationHandler(svc.Notifications, svc.Orgs),
		MeHandler:           handlers.NewMeHandler(svc.Privacy),
		HealthHandler:       handlers.NewHealthHandler(svc.DB),
		MetricsHandler:      handlers.NewMetricsHandler(svc.Dispatcher.Stats()),
		AuthMiddleware:      middleware.NewAuthMiddleware(svc.Tokens),
		TenantMiddleware:    middleware.NewTenantMiddleware(svc.Orgs),
		RateLimiter:         middleware.NewRateLimiter(cfg.RateLimit),
		Meter:               middleware.NewMeter(svc.Organizations),
	}
}

// NewHandler wraps the router with request logging, panic recovery and CORS.
func NewHandler(cfg *config.Config, deps *Dependencies) http.Handler {
	var h http.Handler = NewRouter(deps)
	h = middleware.CORS(cfg.CORS, cfg.App.IsDevelopment())(h)
	h = middleware.Recovery(h)
	return middleware.RequestLogger(h)
}
