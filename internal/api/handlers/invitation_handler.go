package handlers

import (
	"net/http"
	"strconv"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/engine/invitations"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
)

type InvitationHandler struct {
	invites *invitations.Service
}

func NewInvitationHandler(invites *invitations.Service) *InvitationHandler {
	return &InvitationHandler{invites: invites}
}

type CreateInvitationRequest struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	var req CreateInvitationRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	inv, err := h.invites.Issue(r.Context(), apiContext.Param(r, "org_id"), claims.UserID, req.Email, req.Role)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusCreated, inv)
}

func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.invites.List(r.Context(), apiContext.Param(r, "org_id"), r.URL.Query().Get("status"))
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	if list == nil {
		list = []*models.Invitation{}
	}
	respond(w, http.StatusOK, list)
}

func (h *InvitationHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	id := apiContext.Param(r, "invitation_id")
	if err := h.invites.Revoke(r.Context(), apiContext.Param(r, "org_id"), claims.UserID, id); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"id": id, "status": string(models.InvitationRevoked)})
}

func (h *InvitationHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	png, err := h.invites.QRCode(r.Context(), apiContext.Param(r, "org_id"), apiContext.Param(r, "invitation_id"), queryInt(r, "size", 0))
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

type AcceptInvitationRequest struct {
	Token string `json:"token"`
}

func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	var req AcceptInvitationRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	if req.Token == "" {
		req.Token = r.URL.Query().Get("token")
	}
	if req.Token == "" {
		apperr.WriteError(w, http.StatusBadRequest, apperr.ErrCodeInvalidInput, "token is required", nil)
		return
	}

	member, err := h.invites.Redeem(r.Context(), req.Token, claims.UserID, claims.Email, claims.EmailVerified)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, member)
}
