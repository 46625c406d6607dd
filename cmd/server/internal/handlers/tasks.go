package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskbuddy/backend/cmd/server/internal/middleware"
	"github.com/taskbuddy/backend/internal/agent"
	"github.com/taskbuddy/backend/internal/db"
)

// TasksHandler serves the task CRUD endpoints. Mutations feed the same sync
// hub as the chat agent so every client view converges.
type TasksHandler struct {
	store       *db.TaskStore
	tags        *db.TagStore
	broadcaster agent.Broadcaster
	logger      *zap.Logger
}

func NewTasksHandler(store *db.TaskStore, tags *db.TagStore, broadcaster agent.Broadcaster, logger *zap.Logger) *TasksHandler {
	if broadcaster == nil {
		broadcaster = agent.NopBroadcaster{}
	}
	return &TasksHandler{store: store, tags: tags, broadcaster: broadcaster, logger: logger}
}

type taskRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Priority    string       `json:"priority"`
	Completed   *bool        `json:"completed"`
	DueDate     *time.Time   `json:"due_date"`
	ProjectID   *uuid.UUID   `json:"project_id"`
	TagIDs      *[]uuid.UUID `json:"tag_ids"`
}

// verifyTags resolves the request's tag IDs to owned tags before any write
// happens. A foreign or unknown tag ID fails the whole request.
func (h *TasksHandler) verifyTags(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID, tagIDs []uuid.UUID) ([]db.Tag, bool) {
	verified, err := h.tags.VerifyOwned(r.Context(), ownerID, tagIDs)
	if err != nil {
		if errors.Is(err, db.ErrConstraintViolation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		h.logger.Error("Tag verification failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not verify tags")
		return nil, false
	}
	return verified, true
}

func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())

	filter := db.TaskFilter{Priority: r.URL.Query().Get("priority")}
	if v := r.URL.Query().Get("project_id"); v != "" {
		projectID, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "project_id must be a UUID")
			return
		}
		filter.ProjectID = &projectID
	}
	if v := r.URL.Query().Get("completed"); v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "completed must be true or false")
			return
		}
		filter.Completed = &completed
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	tasks, err := h.store.ListByOwner(r.Context(), caller.UserID, filter)
	if err != nil {
		h.logger.Error("Task list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list tasks")
		return
	}
	if tasks == nil {
		tasks = []db.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
}

func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())

	var req taskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var taggable []db.Tag
	if req.TagIDs != nil {
		var ok bool
		if taggable, ok = h.verifyTags(w, r, caller.UserID, *req.TagIDs); !ok {
			return
		}
	}

	task := &db.Task{
		OwnerID:     caller.UserID,
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	}
	if err := h.store.Create(r.Context(), task); err != nil {
		if errors.Is(err, db.ErrConstraintViolation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Task create failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create task")
		return
	}
	if req.TagIDs != nil {
		if err := h.store.ReplaceTags(r.Context(), task.ID, *req.TagIDs); err != nil {
			h.logger.Error("Tag assignment failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not assign tags")
			return
		}
		task.Tags = taggable
	}

	h.publish(r, "task_created", map[string]any{"task": task}, caller.UserID.String())
	writeJSON(w, http.StatusCreated, task)
}

func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.store.Get(r.Context(), id, caller.UserID)
	if err != nil {
		if errors.Is(err, db.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		h.logger.Error("Task fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not fetch task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.store.Get(r.Context(), id, caller.UserID)
	if err != nil {
		if errors.Is(err, db.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		h.logger.Error("Task fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not fetch task")
		return
	}

	var req taskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title != "" {
		task.Title = req.Title
	}
	if req.Description != "" {
		task.Description = req.Description
	}
	if req.Priority != "" {
		task.Priority = req.Priority
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.ProjectID != nil {
		task.ProjectID = req.ProjectID
	}

	var taggable []db.Tag
	if req.TagIDs != nil {
		var ok bool
		if taggable, ok = h.verifyTags(w, r, caller.UserID, *req.TagIDs); !ok {
			return
		}
	}

	if err := h.store.Update(r.Context(), task); err != nil {
		switch {
		case errors.Is(err, db.ErrConstraintViolation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, db.ErrTaskNotFound):
			writeError(w, http.StatusNotFound, "task not found")
		default:
			h.logger.Error("Task update failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not update task")
		}
		return
	}
	if req.TagIDs != nil {
		if err := h.store.ReplaceTags(r.Context(), task.ID, *req.TagIDs); err != nil {
			h.logger.Error("Tag assignment failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not assign tags")
			return
		}
		task.Tags = taggable
	}

	h.publish(r, "task_updated", map[string]any{"task": task}, caller.UserID.String())
	writeJSON(w, http.StatusOK, task)
}

func (h *TasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id, caller.UserID); err != nil {
		if errors.Is(err, db.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		h.logger.Error("Task delete failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete task")
		return
	}

	h.publish(r, "task_deleted", map[string]any{"taskId": id.String()}, caller.UserID.String())
	w.WriteHeader(http.StatusNoContent)
}

func (h *TasksHandler) publish(r *http.Request, eventType string, payload map[string]any, userID string) {
	payload["userId"] = userID
	payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if err := h.broadcaster.Broadcast(r.Context(), eventType, payload, userID); err != nil {
		h.logger.Warn("Broadcast failed", zap.String("event_type", eventType), zap.Error(err))
	}
}
