package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/taskbuddy/backend/cmd/server/internal/middleware"
	"github.com/taskbuddy/backend/internal/db"
)

// TagsHandler serves tag CRUD.
type TagsHandler struct {
	store  *db.TagStore
	logger *zap.Logger
}

func NewTagsHandler(store *db.TagStore, logger *zap.Logger) *TagsHandler {
	return &TagsHandler{store: store, logger: logger}
}

type tagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (h *TagsHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())

	tags, err := h.store.ListByOwner(r.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("Tag list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list tags")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags, "count": len(tags)})
}

func (h *TagsHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())

	var req tagRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tag := &db.Tag{OwnerID: caller.UserID, Name: req.Name, Color: req.Color}
	if err := h.store.Create(r.Context(), tag); err != nil {
		if errors.Is(err, db.ErrConstraintViolation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Tag create failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create tag")
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (h *TagsHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req tagRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tag, err := h.store.Get(r.Context(), id, caller.UserID)
	if err != nil {
		if errors.Is(err, db.ErrTagNotFound) {
			writeError(w, http.StatusNotFound, "tag not found")
			return
		}
		h.logger.Error("Tag fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not fetch tag")
		return
	}

	if req.Name != "" {
		tag.Name = req.Name
	}
	if req.Color != "" {
		tag.Color = req.Color
	}

	if err := h.store.Update(r.Context(), tag); err != nil {
		switch {
		case errors.Is(err, db.ErrConstraintViolation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, db.ErrTagNotFound):
			writeError(w, http.StatusNotFound, "tag not found")
		default:
			h.logger.Error("Tag update failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not update tag")
		}
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (h *TagsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id, caller.UserID); err != nil {
		if errors.Is(err, db.ErrTagNotFound) {
			writeError(w, http.StatusNotFound, "tag not found")
			return
		}
		h.logger.Error("Tag delete failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete tag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
