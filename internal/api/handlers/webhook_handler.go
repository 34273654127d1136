package handlers

import (
	"context"
	"net/http"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/engine/webhooks"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
)

// EventPublisher sends a domain event to its sinks and reports webhook
// delivery counts.
type EventPublisher interface {
	Publish(ctx context.Context, orgID, eventType string, data interface{}) (webhooks.Result, error)
}

type WebhookHandler struct {
	webhooks *webhooks.Service
	events   EventPublisher
}

func NewWebhookHandler(svc *webhooks.Service, events EventPublisher) *WebhookHandler {
	return &WebhookHandler{webhooks: svc, events: events}
}

// WebhookResponse reveals the signing secret. Only create and update return
// it.
type WebhookResponse struct {
	*models.Webhook
	Secret string `json:"secret"`
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req webhooks.CreateInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	hook, err := h.webhooks.Create(r.Context(), apiContext.Param(r, "org_id"), req)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusCreated, WebhookResponse{Webhook: hook, Secret: hook.Secret})
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.webhooks.List(r.Context(), apiContext.Param(r, "org_id"))
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	if list == nil {
		list = []*models.Webhook{}
	}
	respond(w, http.StatusOK, list)
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req webhooks.UpdateInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	hook, err := h.webhooks.Update(r.Context(), apiContext.Param(r, "org_id"), apiContext.Param(r, "webhook_id"), req)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, WebhookResponse{Webhook: hook, Secret: hook.Secret})
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := apiContext.Param(r, "webhook_id")
	if err := h.webhooks.Delete(r.Context(), apiContext.Param(r, "org_id"), id); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"id": id})
}

func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	res, err := h.webhooks.Test(r.Context(), apiContext.Param(r, "org_id"), apiContext.Param(r, "webhook_id"))
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

type DispatchEventRequest struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// DispatchEvent publishes an event by hand, mainly to exercise receivers.
func (h *WebhookHandler) DispatchEvent(w http.ResponseWriter, r *http.Request) {
	var req DispatchEventRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	if !models.KnownEvent(req.Event) {
		apperr.WriteError(w, http.StatusBadRequest, apperr.ErrCodeInvalidInput, "unknown event type", map[string]interface{}{"allowed": models.EventCatalog})
		return
	}

	res, err := h.events.Publish(r.Context(), apiContext.Param(r, "org_id"), req.Event, req.Data)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}
