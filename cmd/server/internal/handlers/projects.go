package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/taskbuddy/backend/cmd/server/internal/middleware"
	"github.com/taskbuddy/backend/internal/db"
)

// ProjectsHandler serves project CRUD. Deleting a project deletes its tasks.
type ProjectsHandler struct {
	store  *db.ProjectStore
	logger *zap.Logger
}

func NewProjectsHandler(store *db.ProjectStore, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{store: store, logger: logger}
}

type projectRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Color       string  `json:"color"`
	Icon        *string `json:"icon"`
}

func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())

	projects, err := h.store.ListByOwner(r.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("Project list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list projects")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects, "count": len(projects)})
}

func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())

	var req projectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	project := &db.Project{
		OwnerID:     caller.UserID,
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
	}
	if err := h.store.Create(r.Context(), project); err != nil {
		if errors.Is(err, db.ErrConstraintViolation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Project create failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create project")
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	project, err := h.store.Get(r.Context(), id, caller.UserID)
	if err != nil {
		if errors.Is(err, db.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		h.logger.Error("Project fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not fetch project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	project, err := h.store.Get(r.Context(), id, caller.UserID)
	if err != nil {
		if errors.Is(err, db.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		h.logger.Error("Project fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not fetch project")
		return
	}

	var req projectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name != "" {
		project.Name = req.Name
	}
	if req.Description != "" {
		project.Description = req.Description
	}
	if req.Color != "" {
		project.Color = req.Color
	}
	if req.Icon != nil {
		project.Icon = req.Icon
	}

	if err := h.store.Update(r.Context(), project); err != nil {
		switch {
		case errors.Is(err, db.ErrConstraintViolation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, db.ErrProjectNotFound):
			writeError(w, http.StatusNotFound, "project not found")
		default:
			h.logger.Error("Project update failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not update project")
		}
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id, caller.UserID); err != nil {
		if errors.Is(err, db.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		h.logger.Error("Project delete failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
