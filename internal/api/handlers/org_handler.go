package handlers

import (
	"net/http"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/engine/orgs"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
)

type OrgHandler struct {
	orgs *orgs.Service
}

func NewOrgHandler(orgSvc *orgs.Service) *OrgHandler {
	return &OrgHandler{orgs: orgSvc}
}

func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	var req orgs.CreateInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	org, err := h.orgs.Create(r.Context(), claims.UserID, req)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusCreated, org)
}

func (h *OrgHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	list, err := h.orgs.ListForUser(r.Context(), claims.UserID)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	if list == nil {
		list = []*models.Organization{}
	}
	respond(w, http.StatusOK, list)
}

type OrgResponse struct {
	*models.Organization
	Role models.Role `json:"role"`
}

func (h *OrgHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, _ := apiContext.OrganizationFrom(r.Context())
	member, _ := apiContext.MembershipFrom(r.Context())
	respond(w, http.StatusOK, OrgResponse{Organization: org, Role: member.Role})
}

func (h *OrgHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	var req orgs.SettingsInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	org, err := h.orgs.UpdateSettings(r.Context(), apiContext.Param(r, "org_id"), claims.UserID, req)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, org)
}

func (h *OrgHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.orgs.ListMembers(r.Context(), apiContext.Param(r, "org_id"))
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	if members == nil {
		members = []*models.OrganizationMember{}
	}
	respond(w, http.StatusOK, members)
}

type UpdateMemberRequest struct {
	Role models.Role `json:"role"`
}

func (h *OrgHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	var req UpdateMemberRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	member, err := h.orgs.UpdateMemberRole(r.Context(), apiContext.Param(r, "org_id"), claims.UserID, apiContext.Param(r, "user_id"), req.Role)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, member)
}

func (h *OrgHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	userID := apiContext.Param(r, "user_id")
	if err := h.orgs.RemoveMember(r.Context(), apiContext.Param(r, "org_id"), claims.UserID, userID); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"user_id": userID})
}

func (h *OrgHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	var req orgs.ProjectInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	project, err := h.orgs.CreateProject(r.Context(), apiContext.Param(r, "org_id"), claims.UserID, req)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusCreated, project)
}

func (h *OrgHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.orgs.ListProjects(r.Context(), apiContext.Param(r, "org_id"))
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	respond(w, http.StatusOK, projects)
}
