package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/taskbuddy/backend/cmd/server/internal/middleware"
	"github.com/taskbuddy/backend/internal/db"
)

type StatsHandler struct {
	store  *db.TaskStore
	logger *zap.Logger
}

func NewStatsHandler(store *db.TaskStore, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{store: store, logger: logger}
}

func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())

	stats, err := h.store.Stats(r.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("Stats query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
