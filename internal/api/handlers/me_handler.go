package handlers

import (
	"net/http"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/engine/privacy"
	apperr "projecthub/internal/pkg/errors"
)

// MeHandler serves the caller's own data rights requests.
type MeHandler struct {
	privacy *privacy.Service
}

func NewMeHandler(svc *privacy.Service) *MeHandler {
	return &MeHandler{privacy: svc}
}

func (h *MeHandler) Export(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	out, err := h.privacy.Export(r.Context(), claims.UserID)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, out)
}

func (h *MeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	if err := h.privacy.Erase(r.Context(), claims.UserID); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"id": claims.UserID})
}
