// Command server runs the Task Buddy API: REST task management, the chat
// agent, and real-time sync over WebSocket.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskbuddy/backend/cmd/server/internal/handlers"
	"github.com/taskbuddy/backend/internal/agent"
	"github.com/taskbuddy/backend/internal/auth"
	"github.com/taskbuddy/backend/internal/config"
	"github.com/taskbuddy/backend/internal/db"
	"github.com/taskbuddy/backend/internal/llm"
	"github.com/taskbuddy/backend/internal/session"
	"github.com/taskbuddy/backend/internal/ws"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	manager := config.NewManager(cfg, logger)
	if err := manager.Watch(); err != nil {
		logger.Warn("Config hot reload disabled", zap.Error(err))
	}
	defer manager.Close()

	dbClient, err := db.NewClient(&db.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxConnections:  cfg.Database.MaxConnections,
		IdleConnections: cfg.Database.IdleConnections,
		MaxLifetime:     cfg.Database.MaxLifetime,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbClient.Close()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable at startup", zap.Error(err))
	}
	cancel()

	authService := auth.NewService(dbClient.DB(), logger, cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry, cfg.Auth.RefreshTokenExpiry)

	taskStore := db.NewTaskStore(dbClient.DB(), logger)
	projectStore := db.NewProjectStore(dbClient.DB(), logger)
	tagStore := db.NewTagStore(dbClient.DB(), logger)
	chatStore := db.NewChatStore(dbClient.DB(), logger)
	notificationStore := db.NewNotificationStore(dbClient.DB(), logger)
	sessions := session.NewManager(redisClient, logger)
	hub := ws.NewHub(logger)

	var provider llm.Provider = llm.NewOpenRouter(manager, logger)
	if manager.Agent().APIKey == "" {
		logger.Warn("No completion API key configured, agent falls back to rule extraction")
	}

	extractor := agent.NewExtractor(provider, logger)
	engine := agent.NewEngine(taskStore, notificationStore, hub, extractor, provider, logger)

	router := handlers.NewRouter(handlers.Deps{
		Auth:          authService,
		Tasks:         taskStore,
		Projects:      projectStore,
		Tags:          tagStore,
		Chats:         chatStore,
		Notifications: notificationStore,
		Sessions:      sessions,
		Engine:        engine,
		Hub:           hub,
		DB:            dbClient,
		Redis:         redisClient,
		Config:        manager,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		logger.Info("Metrics server listening", zap.Int("port", cfg.Server.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown failed", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
