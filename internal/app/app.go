// Package app wires the engine services shared by the server and the worker.
package app

import (
	"database/sql"
	"net/http"

	"projecthub/internal/engine/events"
	"projecthub/internal/engine/identity"
	"projecthub/internal/engine/importer"
	"projecthub/internal/engine/invitations"
	"projecthub/internal/engine/notifications"
	"projecthub/internal/engine/orgs"
	"projecthub/internal/engine/privacy"
	"projecthub/internal/engine/tasks"
	"projecthub/internal/engine/webhooks"
	"projecthub/internal/platform/audit"
	"projecthub/internal/platform/auth"
	"projecthub/internal/platform/config"
	"projecthub/internal/platform/mail"
	"projecthub/internal/platform/repositories"
	"projecthub/internal/workers"
)

// Options override collaborators that talk to the outside world. Zero
// values fall back to the configured defaults.
type Options struct {
	Mailer      mail.Mailer
	Publisher   events.Publisher
	WebhookHTTP *http.Client
}

type Services struct {
	DB            *sql.DB
	Tokens        *auth.TokenService
	Audit         *audit.Logger
	Dispatcher    *webhooks.Dispatcher
	Bus           *events.Bus
	Publisher     events.Publisher
	Accounts      *identity.Accounts
	Provisioner   *identity.UserProvisioner
	Orgs          *orgs.Service
	Invitations   *invitations.Service
	Notifications *notifications.Service
	Tasks         *tasks.Service
	Materializer  *tasks.Materializer
	Importer      *importer.Importer
	Webhooks      *webhooks.Service
	Privacy       *privacy.Service
	Organizations *repositories.OrganizationRepository
}

// New builds every service on top of db. The Kafka publisher is created only
// when the kafka section is configured and no publisher is passed in.
func New(cfg *config.Config, db *sql.DB, opts Options) *Services {
	mailer := opts.Mailer
	if mailer == nil {
		mailer = mail.New(cfg.Email)
	}
	publisher := opts.Publisher
	if publisher == nil && cfg.Kafka.Enabled() {
		publisher = events.NewKafkaPublisher(cfg.Kafka)
	}

	webhookRepo := repositories.NewWebhookRepository(db)
	dispatcher := webhooks.NewDispatcher(webhookRepo, cfg.Webhooks)
	if opts.WebhookHTTP != nil {
		dispatcher.WithClient(opts.WebhookHTTP)
	}
	bus := events.NewBus(dispatcher, publisher)
	auditLog := audit.NewLogger(db)

	notifier := notifications.NewService(db, mailer, notifications.Options{
		AppName:      cfg.App.Name,
		AppURL:       cfg.App.URL,
		SlackTimeout: cfg.Slack.Timeout,
	})

	return &Services{
		DB:            db,
		Tokens:        auth.NewTokenService(cfg.JWT),
		Audit:         auditLog,
		Dispatcher:    dispatcher,
		Bus:           bus,
		Publisher:     publisher,
		Accounts:      identity.NewAccounts(db, identity.PolicyFrom(cfg.Identity)),
		Provisioner:   identity.NewUserProvisioner(db),
		Orgs:          orgs.NewService(db, bus, auditLog),
		Invitations:   invitations.NewService(db, mailer, bus, auditLog, cfg.App.URL),
		Notifications: notifier,
		Tasks:         tasks.NewService(db, notifier, bus, auditLog),
		Materializer:  tasks.NewMaterializer(db, bus),
		Importer:      importer.New(db, auditLog),
		Webhooks:      webhooks.NewService(webhookRepo, dispatcher),
		Privacy:       privacy.NewService(db, mailer),
		Organizations: repositories.NewOrganizationRepository(db),
	}
}

// Runner returns the scheduled job runner over these services.
func (s *Services) Runner() *workers.Runner {
	return workers.NewRunner(workers.Deps{
		DB:           s.DB,
		Notifier:     s.Notifications,
		Digester:     s.Notifications,
		Materializer: s.Materializer,
		Invitations:  s.Invitations,
	})
}

// Close releases the event publisher, if any.
func (s *Services) Close() error {
	if s.Publisher != nil {
		return s.Publisher.Close()
	}
	return nil
}
