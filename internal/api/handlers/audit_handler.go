package handlers

import (
	"net/http"

	apiContext "projecthub/internal/api/context"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/audit"
)

type AuditHandler struct {
	audit *audit.Logger
}

func NewAuditHandler(auditLog *audit.Logger) *AuditHandler {
	return &AuditHandler{audit: auditLog}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	logs, err := h.audit.List(r.Context(), apiContext.Param(r, "org_id"), queryInt(r, "limit", 100))
	if err != nil {
		apperr.WriteAppError(w, apperr.Internal(err, "list audit logs"))
		return
	}
	if logs == nil {
		logs = []*audit.AuditLog{}
	}
	respond(w, http.StatusOK, logs)
}
