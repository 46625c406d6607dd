package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskbuddy/backend/internal/db"
)

type HealthHandler struct {
	db     *db.Client
	redis  *redis.Client
	logger *zap.Logger
}

func NewHealthHandler(dbClient *db.Client, redisClient *redis.Client, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: dbClient, redis: redisClient, logger: logger}
}

// Liveness always succeeds while the process is up.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness checks the backing stores with a short deadline.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		h.logger.Warn("Readiness check failed", zap.Any("checks", checks))
	}
	writeJSON(w, status, map[string]any{"healthy": healthy, "checks": checks})
}
