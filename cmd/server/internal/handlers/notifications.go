package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/taskbuddy/backend/cmd/server/internal/middleware"
	"github.com/taskbuddy/backend/internal/db"
)

type NotificationsHandler struct {
	store  *db.NotificationStore
	logger *zap.Logger
}

func NewNotificationsHandler(store *db.NotificationStore, logger *zap.Logger) *NotificationsHandler {
	return &NotificationsHandler{store: store, logger: logger}
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())

	unreadOnly := false
	if v := r.URL.Query().Get("unread"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unread must be true or false")
			return
		}
		unreadOnly = parsed
	}

	notifications, err := h.store.ListByOwner(r.Context(), caller.UserID, unreadOnly)
	if err != nil {
		h.logger.Error("Notification list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list notifications")
		return
	}
	if notifications == nil {
		notifications = []db.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.MarkRead(r.Context(), id, caller.UserID); err != nil {
		if errors.Is(err, db.ErrNotificationNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error("Notification update failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not update notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
