package middleware

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskbuddy/backend/internal/metrics"
)

// RateLimit enforces a fixed-window per-caller request budget backed by
// Redis. Authenticated callers are keyed by user ID, anonymous ones by
// client IP. Redis trouble fails open: dropping traffic because the limiter
// store blipped is worse than briefly not limiting.
func RateLimit(client *redis.Client, perMinute int, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if perMinute <= 0 || client == nil {
				next.ServeHTTP(w, r)
				return
			}

			caller := callerKey(r)
			window := time.Now().Unix() / 60
			key := fmt.Sprintf("ratelimit:%s:%d", caller, window)

			count, err := client.Incr(r.Context(), key).Result()
			if err != nil {
				logger.Warn("Rate limiter unavailable, failing open", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				client.Expire(r.Context(), key, time.Minute)
			}

			remaining := int64(perMinute) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(perMinute))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(perMinute) {
				metrics.RateLimitExceeded.Inc()
				w.Header().Set("Retry-After", "60")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if user := UserFrom(r.Context()); user != nil {
		return user.UserID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
