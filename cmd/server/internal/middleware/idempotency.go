package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const idempotencyTTL = 24 * time.Hour

// Idempotency rejects replays of mutating requests that carry an
// Idempotency-Key header. The key is claimed with SETNX scoped to the
// caller; a second request with the same key gets 409 instead of a double
// write. Requests without the header pass through untouched.
func Idempotency(client *redis.Client, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" || client == nil || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			redisKey := fmt.Sprintf("idempotency:%s:%s", callerKey(r), key)
			claimed, err := client.SetNX(r.Context(), redisKey, time.Now().Unix(), idempotencyTTL).Result()
			if err != nil {
				logger.Warn("Idempotency store unavailable, failing open", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				json.NewEncoder(w).Encode(map[string]string{"error": "duplicate request: idempotency key already used"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
