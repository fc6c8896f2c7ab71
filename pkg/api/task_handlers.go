package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/tasks"
)

// TaskHandlers handles the owner-scoped task CRUD surface
type TaskHandlers struct {
	svc    *tasks.Service
	logger *observability.Logger
}

// NewTaskHandlers creates the task handler set
func NewTaskHandlers(svc *tasks.Service, logger *observability.Logger) *TaskHandlers {
	return &TaskHandlers{svc: svc, logger: logger}
}

// RegisterRoutes registers task routes; the router must already run the
// auth middleware.
func (h *TaskHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tasks", h.listTasks).Methods("GET")
	router.HandleFunc("/tasks", h.createTask).Methods("POST")
	router.HandleFunc("/tasks/{id}", h.getTask).Methods("GET")
	router.HandleFunc("/tasks/{id}", h.updateTask).Methods("PUT")
	router.HandleFunc("/tasks/{id}", h.deleteTask).Methods("DELETE")
}

// listTasks handles GET /tasks with optional status filter and sort field
func (h *TaskHandlers) listTasks(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	statusFilter := httputil.ParseQueryString(r, "status", "")
	sortBy := httputil.ParseQueryString(r, "sort", "")

	list, err := h.svc.List(r.Context(), identity.UserID, statusFilter, sortBy)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"tasks": list,
		"count": len(list),
	})
}

// createTask handles POST /tasks
func (h *TaskHandlers) createTask(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Status      string `json:"status"`
		Priority    int    `json:"priority"`
		DueDate     string `json:"due_date"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	task, err := h.svc.Create(r.Context(), identity.UserID, tasks.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	httputil.WriteCreated(w, task)
}

// getTask handles GET /tasks/{id}
func (h *TaskHandlers) getTask(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	task, err := h.svc.Get(r.Context(), identity.UserID, id)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	httputil.WriteSuccess(w, task)
}

// updateTask handles PUT /tasks/{id}
func (h *TaskHandlers) updateTask(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
		Priority    *int    `json:"priority"`
		DueDate     *string `json:"due_date"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	task, err := h.svc.Update(r.Context(), identity.UserID, id, tasks.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	httputil.WriteSuccess(w, task)
}

// deleteTask handles DELETE /tasks/{id}
func (h *TaskHandlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), identity.UserID, id); err != nil {
		h.writeTaskError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// writeTaskError maps task service errors onto HTTP statuses
func (h *TaskHandlers) writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		httputil.WriteNotFoundError(w, "task not found")
	case errors.Is(err, tasks.ErrInvalidTitle),
		errors.Is(err, tasks.ErrInvalidStatus),
		errors.Is(err, tasks.ErrInvalidDate),
		errors.Is(err, tasks.ErrInvalidSort):
		httputil.WriteValidationError(w, err.Error())
	default:
		h.logger.WithError(err).Error("task operation failed")
		httputil.WriteInternalError(w)
	}
}
