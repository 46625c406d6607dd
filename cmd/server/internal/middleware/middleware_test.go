package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskbuddy/backend/internal/auth"
)

func newJWT() *auth.JWTManager {
	return auth.NewJWTManager("test-secret", 30*time.Minute, 7*24*time.Hour)
}

func issueToken(t *testing.T, jwt *auth.JWTManager) (string, *auth.User) {
	t.Helper()
	user := &auth.User{Email: "alice@example.com", Name: "Alice"}
	pair, _, err := jwt.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}
	return pair.AccessToken, user
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthAcceptsBearer(t *testing.T) {
	jwt := newJWT()
	token, _ := issueToken(t, jwt)

	var seen *auth.UserContext
	handler := RequireAuth(jwt, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if seen == nil || seen.Email != "alice@example.com" {
		t.Fatalf("user context = %+v", seen)
	}
}

func TestRequireAuthAcceptsQueryToken(t *testing.T) {
	jwt := newJWT()
	token, _ := issueToken(t, jwt)

	handler := RequireAuth(jwt, zap.NewNop())(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequireAuthRejects(t *testing.T) {
	jwt := newJWT()
	handler := RequireAuth(jwt, zap.NewNop())(okHandler())

	for _, header := range []string{"", "Bearer garbage", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRateLimitEnforced(t *testing.T) {
	client := newRedis(t)
	handler := RateLimit(client, 3, zap.NewNop())(okHandler())

	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("fourth request status = %d, want 429", last.Code)
	}
	if last.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("remaining = %q", last.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitSeparateCallers(t *testing.T) {
	client := newRedis(t)
	handler := RateLimit(client, 1, zap.NewNop())(okHandler())

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("caller %s blocked by another caller's budget", addr)
		}
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	handler := RateLimit(client, 1, zap.NewNop())(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, limiter outage must not drop traffic", rec.Code)
	}
}

func TestIdempotencyRejectsReplay(t *testing.T) {
	client := newRedis(t)
	handler := Idempotency(client, zap.NewNop())(okHandler())

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil)
		req.RemoteAddr = "10.0.0.1:1"
		req.Header.Set("Idempotency-Key", "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	if rec := send(); rec.Code != http.StatusConflict {
		t.Fatalf("replay status = %d, want 409", rec.Code)
	}
}

func TestIdempotencyNoHeaderPassesThrough(t *testing.T) {
	client := newRedis(t)
	handler := Idempotency(client, zap.NewNop())(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
}
