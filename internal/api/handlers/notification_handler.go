package handlers

import (
	"context"
	"net/http"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/engine/notifications"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
)

// MembershipChecker resolves active memberships.
type MembershipChecker interface {
	Membership(ctx context.Context, orgID, userID string) (*models.OrganizationMember, error)
}

type NotificationHandler struct {
	notifications *notifications.Service
	members       MembershipChecker
}

func NewNotificationHandler(svc *notifications.Service, members MembershipChecker) *NotificationHandler {
	return &NotificationHandler{notifications: svc, members: members}
}

// Send notifies the caller, or another member of an organization when the
// caller is a manager or above there.
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	var req notifications.Request
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	if req.UserID == "" {
		req.UserID = claims.UserID
	}

	if req.UserID != claims.UserID || req.OrganizationID != "" {
		if err := h.authorizeSend(r.Context(), claims.UserID, req); err != nil {
			apperr.WriteAppError(w, err)
			return
		}
	}

	results, err := h.notifications.Send(r.Context(), req)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, results)
}

func (h *NotificationHandler) authorizeSend(ctx context.Context, callerID string, req notifications.Request) error {
	if req.OrganizationID == "" {
		return apperr.Permission("organization_id is required to notify another user")
	}
	caller, err := h.members.Membership(ctx, req.OrganizationID, callerID)
	if err != nil {
		return err
	}
	if req.UserID == callerID {
		return nil
	}
	if !caller.Role.AtLeast(models.RoleManager) {
		return apperr.Permission("managers and above can notify other members")
	}
	if _, err := h.members.Membership(ctx, req.OrganizationID, req.UserID); err != nil {
		return apperr.NotFound("recipient is not a member of this organization")
	}
	return nil
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	unread := r.URL.Query().Get("unread") == "true"
	list, err := h.notifications.List(r.Context(), claims.UserID, unread, queryInt(r, "limit", 50))
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, list)
}

type SetReadRequest struct {
	Read *bool `json:"read"`
}

func (h *NotificationHandler) SetRead(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	var req SetReadRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	read := true
	if req.Read != nil {
		read = *req.Read
	}

	id := apiContext.Param(r, "notification_id")
	if err := h.notifications.SetRead(r.Context(), claims.UserID, id, read); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"id": id, "read": read})
}

func (h *NotificationHandler) ReadAll(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	n, err := h.notifications.MarkAllRead(r.Context(), claims.UserID)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]int64{"updated": n})
}
