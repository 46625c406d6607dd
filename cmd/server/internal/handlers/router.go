package handlers

import (
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskbuddy/backend/cmd/server/internal/middleware"
	"github.com/taskbuddy/backend/internal/agent"
	"github.com/taskbuddy/backend/internal/auth"
	"github.com/taskbuddy/backend/internal/config"
	"github.com/taskbuddy/backend/internal/db"
	"github.com/taskbuddy/backend/internal/session"
	"github.com/taskbuddy/backend/internal/ws"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Auth          *auth.Service
	Tasks         *db.TaskStore
	Projects      *db.ProjectStore
	Tags          *db.TagStore
	Chats         *db.ChatStore
	Notifications *db.NotificationStore
	Sessions      *session.Manager
	Engine        *agent.Engine
	Hub           *ws.Hub
	DB            *db.Client
	Redis         *redis.Client
	Config        *config.Manager
	Logger        *zap.Logger
}

// NewRouter builds the API mux with its middleware chains.
func NewRouter(d Deps) http.Handler {
	authHandler := NewAuthHandler(d.Auth, d.Logger)
	tasksHandler := NewTasksHandler(d.Tasks, d.Tags, d.Hub, d.Logger)
	projectsHandler := NewProjectsHandler(d.Projects, d.Logger)
	tagsHandler := NewTagsHandler(d.Tags, d.Logger)
	chatHandler := NewChatHandler(d.Engine, d.Sessions, d.Chats, d.Config, d.Logger)
	notificationsHandler := NewNotificationsHandler(d.Notifications, d.Logger)
	statsHandler := NewStatsHandler(d.Tasks, d.Logger)
	wsHandler := NewWSHandler(d.Hub)
	healthHandler := NewHealthHandler(d.DB, d.Redis, d.Logger)

	requireAuth := middleware.RequireAuth(d.Auth.JWT(), d.Logger)
	rateLimit := middleware.RateLimit(d.Redis, d.Config.Agent().RateLimitPerMin, d.Logger)
	idempotency := middleware.Idempotency(d.Redis, d.Logger)

	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, requireAuth, rateLimit)
	}
	authedIdempotent := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, requireAuth, rateLimit, idempotency)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /readiness", healthHandler.Readiness)

	mux.Handle("POST /api/v1/auth/register", middleware.Chain(http.HandlerFunc(authHandler.Register), rateLimit))
	mux.Handle("POST /api/v1/auth/login", middleware.Chain(http.HandlerFunc(authHandler.Login), rateLimit))
	mux.Handle("POST /api/v1/auth/refresh", middleware.Chain(http.HandlerFunc(authHandler.Refresh), rateLimit))
	mux.Handle("GET /api/v1/auth/me", authed(authHandler.Me))

	mux.Handle("GET /api/v1/tasks", authed(tasksHandler.List))
	mux.Handle("POST /api/v1/tasks", authedIdempotent(tasksHandler.Create))
	mux.Handle("GET /api/v1/tasks/{id}", authed(tasksHandler.Get))
	mux.Handle("PATCH /api/v1/tasks/{id}", authed(tasksHandler.Update))
	mux.Handle("DELETE /api/v1/tasks/{id}", authed(tasksHandler.Delete))
	mux.Handle("GET /api/v1/stats", authed(statsHandler.Get))

	mux.Handle("GET /api/v1/projects", authed(projectsHandler.List))
	mux.Handle("POST /api/v1/projects", authedIdempotent(projectsHandler.Create))
	mux.Handle("GET /api/v1/projects/{id}", authed(projectsHandler.Get))
	mux.Handle("PATCH /api/v1/projects/{id}", authed(projectsHandler.Update))
	mux.Handle("DELETE /api/v1/projects/{id}", authed(projectsHandler.Delete))

	mux.Handle("GET /api/v1/tags", authed(tagsHandler.List))
	mux.Handle("POST /api/v1/tags", authedIdempotent(tagsHandler.Create))
	mux.Handle("PATCH /api/v1/tags/{id}", authed(tagsHandler.Update))
	mux.Handle("DELETE /api/v1/tags/{id}", authed(tagsHandler.Delete))

	mux.Handle("POST /api/v1/chat/messages", authedIdempotent(chatHandler.PostMessage))
	mux.Handle("GET /api/v1/chat/conversations", authed(chatHandler.ListConversations))
	mux.Handle("GET /api/v1/chat/conversations/{id}/messages", authed(chatHandler.ListMessages))

	mux.Handle("GET /api/v1/notifications", authed(notificationsHandler.List))
	mux.Handle("POST /api/v1/notifications/{id}/read", authed(notificationsHandler.MarkRead))

	mux.Handle("GET /api/v1/ws", middleware.Chain(http.HandlerFunc(wsHandler.Serve), requireAuth))

	return middleware.Chain(mux, middleware.Logging(d.Logger), middleware.CORS)
}
