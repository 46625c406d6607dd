// Package config loads service configuration from taskbuddy.yaml with
// environment overrides for secrets and addresses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Agent    AgentConfig    `mapstructure:"agent"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPort     int           `mapstructure:"metrics_port"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	IdleConnections int           `mapstructure:"idle_connections"`
	MaxLifetime     time.Duration `mapstructure:"max_lifetime"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type AuthConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	AccessTokenExpiry  time.Duration `mapstructure:"access_token_expiry"`
	RefreshTokenExpiry time.Duration `mapstructure:"refresh_token_expiry"`
}

// AgentConfig holds the chat agent's completion provider settings. These are
// the hot-reloadable tunables; see Manager.
type AgentConfig struct {
	APIKey           string  `mapstructure:"api_key"`
	BaseURL          string  `mapstructure:"base_url"`
	Model            string  `mapstructure:"model"`
	Temperature      float32 `mapstructure:"temperature"`
	MaxTokens        int     `mapstructure:"max_tokens"`
	RequestsPerMin   int     `mapstructure:"requests_per_minute"`
	RateLimitPerMin  int     `mapstructure:"http_requests_per_minute"`
	HistoryTurnLimit int     `mapstructure:"history_turn_limit"`
}

// Load reads configuration from CONFIG_PATH (default config/taskbuddy.yaml).
// A missing file is not an error; defaults plus env overrides still apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/taskbuddy.yaml"
	}
	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if _, statErr := os.Stat(cfgPath); statErr == nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 300*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.metrics_port", 2112)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "taskbuddy")
	v.SetDefault("database.database", "taskbuddy")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.idle_connections", 5)
	v.SetDefault("database.max_lifetime", 5*time.Minute)

	v.SetDefault("redis.url", "redis://localhost:6379")

	v.SetDefault("auth.access_token_expiry", 30*time.Minute)
	v.SetDefault("auth.refresh_token_expiry", 7*24*time.Hour)

	v.SetDefault("agent.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("agent.model", "mistralai/devstral-2512:free")
	v.SetDefault("agent.temperature", 0.5)
	v.SetDefault("agent.max_tokens", 300)
	v.SetDefault("agent.requests_per_minute", 60)
	v.SetDefault("agent.http_requests_per_minute", 60)
	v.SetDefault("agent.history_turn_limit", 20)
}

// applyEnvOverrides lets deployment env vars win over file values. Secrets are
// expected to arrive this way rather than via the yaml file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = n
		}
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("POSTGRES_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Agent.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_BASE_URL"); v != "" {
		cfg.Agent.BaseURL = v
	}
	if v := os.Getenv("OPENROUTER_MODEL"); v != "" {
		cfg.Agent.Model = v
	}
}

// Manager serves the current agent tunables and reloads them when the config
// file changes on disk. Only AgentConfig is hot-swapped; server/database/auth
// settings require a restart.
type Manager struct {
	mu      sync.RWMutex
	agent   AgentConfig
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

// NewManager wraps an already-loaded config for live agent reloads.
func NewManager(cfg *Config, logger *zap.Logger) *Manager {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/taskbuddy.yaml"
	}
	return &Manager{agent: cfg.Agent, path: path, logger: logger}
}

// Agent returns the current agent configuration snapshot.
func (m *Manager) Agent() AgentConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.agent
}

// Watch starts reloading agent tunables on file changes. Best effort: if the
// file or watcher is unavailable the initial config simply stays in effect.
func (m *Manager) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(m.path); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", m.path, err)
	}
	m.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load()
				if err != nil {
					m.logger.Warn("Config reload failed, keeping previous values",
						zap.String("path", m.path),
						zap.Error(err))
					continue
				}
				m.mu.Lock()
				m.agent = cfg.Agent
				m.mu.Unlock()
				m.logger.Info("Agent configuration reloaded",
					zap.String("model", cfg.Agent.Model))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				m.logger.Warn("Config watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Close stops the watcher if one is running.
func (m *Manager) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}
