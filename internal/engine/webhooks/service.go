package webhooks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
)

// Repository is the full webhook persistence used by Service.
type Repository interface {
	Store
	Create(ctx context.Context, webhook *models.Webhook) error
	GetByID(ctx context.Context, orgID, id string) (*models.Webhook, error)
	ListByOrg(ctx context.Context, orgID string) ([]*models.Webhook, error)
	Update(ctx context.Context, webhook *models.Webhook) error
	Delete(ctx context.Context, orgID, id string) (bool, error)
}

type Service struct {
	repo       Repository
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewService(repo Repository, dispatcher *Dispatcher) *Service {
	return &Service{repo: repo, dispatcher: dispatcher, now: time.Now}
}

type CreateInput struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}

type UpdateInput struct {
	URL    *string   `json:"url,omitempty"`
	Events *[]string `json:"events,omitempty"`
	Secret *string   `json:"secret,omitempty"`
	Active *bool     `json:"active,omitempty"`
}

func (s *Service) Create(ctx context.Context, orgID string, in CreateInput) (*models.Webhook, error) {
	if err := ValidateURL(in.URL); err != nil {
		return nil, err
	}
	events, err := ValidateEvents(in.Events)
	if err != nil {
		return nil, err
	}
	secret := in.Secret
	if secret == "" {
		if secret, err = GenerateSecret(); err != nil {
			return nil, apperr.Internal(err, "generate webhook secret")
		}
	}

	now := s.now().Unix()
	hook := &models.Webhook{
		ID:             "wh_" + uuid.New().String(),
		OrganizationID: orgID,
		URL:            in.URL,
		Secret:         secret,
		Events:         events,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, hook); err != nil {
		return nil, apperr.Internal(err, "create webhook")
	}
	return hook, nil
}

func (s *Service) List(ctx context.Context, orgID string) ([]*models.Webhook, error) {
	hooks, err := s.repo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, apperr.Internal(err, "list webhooks")
	}
	for _, h := range hooks {
		h.Secret = ""
	}
	return hooks, nil
}

func (s *Service) get(ctx context.Context, orgID, id string) (*models.Webhook, error) {
	hook, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, apperr.Internal(err, "load webhook")
	}
	if hook == nil {
		return nil, apperr.NotFound("webhook not found")
	}
	return hook, nil
}

// Update applies a partial change. Setting active to true on a disabled
// webhook re-enables it and clears the failure counter.
func (s *Service) Update(ctx context.Context, orgID, id string, in UpdateInput) (*models.Webhook, error) {
	hook, err := s.get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if in.URL != nil {
		if err := ValidateURL(*in.URL); err != nil {
			return nil, err
		}
		hook.URL = *in.URL
	}
	if in.Events != nil {
		events, err := ValidateEvents(*in.Events)
		if err != nil {
			return nil, err
		}
		hook.Events = events
	}
	if in.Secret != nil && *in.Secret != "" {
		hook.Secret = *in.Secret
	}
	if in.Active != nil {
		if *in.Active && !hook.Active {
			hook.FailureCount = 0
		}
		hook.Active = *in.Active
	}
	hook.UpdatedAt = s.now().Unix()

	if err := s.repo.Update(ctx, hook); err != nil {
		return nil, apperr.Internal(err, "update webhook")
	}
	hook.Secret = ""
	return hook, nil
}

func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	ok, err := s.repo.Delete(ctx, orgID, id)
	if err != nil {
		return apperr.Internal(err, "delete webhook")
	}
	if !ok {
		return apperr.NotFound("webhook not found")
	}
	return nil
}

// Test sends a webhook.test event to one endpoint.
func (s *Service) Test(ctx context.Context, orgID, id string) (Result, error) {
	hook, err := s.get(ctx, orgID, id)
	if err != nil {
		return Result{}, err
	}
	res, err := s.dispatcher.Deliver(ctx, hook, models.EventWebhookTest, map[string]interface{}{
		"webhook_id": hook.ID,
		"message":    fmt.Sprintf("Test delivery for %s", hook.URL),
	})
	if err != nil {
		return Result{}, apperr.Internal(err, "send test event")
	}
	return res, nil
}
