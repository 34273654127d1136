package handlers

import (
	"net/http"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/engine/importer"
	"projecthub/internal/engine/tasks"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
)

// maxImportSize bounds the multipart body of an import upload.
const maxImportSize = 10 << 20

type TaskHandler struct {
	tasks    *tasks.Service
	importer *importer.Importer
}

func NewTaskHandler(taskSvc *tasks.Service, imp *importer.Importer) *TaskHandler {
	return &TaskHandler{tasks: taskSvc, importer: imp}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	var req tasks.CreateInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	task, err := h.tasks.Create(r.Context(), apiContext.Param(r, "org_id"), apiContext.Param(r, "project_id"), claims.UserID, req)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusCreated, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	list, err := h.tasks.List(r.Context(), apiContext.Param(r, "org_id"), apiContext.Param(r, "project_id"), claims.UserID)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	if list == nil {
		list = []*models.Task{}
	}
	respond(w, http.StatusOK, list)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	task, err := h.tasks.Get(r.Context(), apiContext.Param(r, "org_id"), apiContext.Param(r, "task_id"), claims.UserID)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	var req tasks.UpdateInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	task, err := h.tasks.Update(r.Context(), apiContext.Param(r, "org_id"), apiContext.Param(r, "task_id"), claims.UserID, req)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	id := apiContext.Param(r, "task_id")
	if err := h.tasks.Delete(r.Context(), apiContext.Param(r, "org_id"), id, claims.UserID); err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"id": id})
}

// Import takes a multipart upload with the spreadsheet in the "file" field.
func (h *TaskHandler) Import(w http.ResponseWriter, r *http.Request) {
	claims, _ := apiContext.ClaimsFrom(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		apperr.WriteError(w, http.StatusBadRequest, apperr.ErrCodeInvalidInput, "Invalid multipart upload", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		apperr.WriteError(w, http.StatusBadRequest, apperr.ErrCodeInvalidInput, "file is required", nil)
		return
	}
	defer file.Close()

	res, err := h.importer.Import(r.Context(), apiContext.Param(r, "org_id"), apiContext.Param(r, "project_id"), claims.UserID, header.Filename, file)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}
