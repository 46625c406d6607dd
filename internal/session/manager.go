package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskbuddy/backend/internal/metrics"
)

// maxHistory bounds retained turns per session. The agent reads fewer; this
// cap only limits Redis payload growth.
const maxHistory = 100

// Manager handles session state with a Redis backend and a small local cache.
type Manager struct {
	client     *redis.Client
	logger     *zap.Logger
	ttl        time.Duration
	mu         sync.RWMutex
	localCache map[string]*Session
}

// NewManager creates a session manager over an existing Redis client.
func NewManager(client *redis.Client, logger *zap.Logger) *Manager {
	return &Manager{
		client:     client,
		logger:     logger,
		ttl:        24 * time.Hour,
		localCache: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for (sessionID, userID), creating it when
// absent. A session that exists but belongs to another user is not returned;
// a fresh one is created instead.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID, userID string) (*Session, error) {
	existing, err := m.Get(ctx, sessionID)
	if err == nil {
		if existing.UserID == userID {
			return existing, nil
		}
		// Another user's session: leave it untouched and issue a new ID.
		m.logger.Warn("Session ID reuse across users, issuing fresh session",
			zap.String("session_id", sessionID),
			zap.String("requesting_user", userID))
		sessionID = uuid.NewString()
	} else if err != ErrSessionNotFound && err != ErrSessionExpired {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(m.ttl),
		History:   make([]Message, 0),
	}
	if err := m.save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	m.mu.Lock()
	m.localCache[session.ID] = session.Clone()
	m.mu.Unlock()

	metrics.SessionsCreated.Inc()
	m.logger.Info("Created session",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID))
	return session, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	cached, ok := m.localCache[sessionID]
	m.mu.RUnlock()
	if ok {
		metrics.SessionCacheHits.Inc()
		if cached.IsExpired() {
			m.Delete(ctx, sessionID)
			return nil, ErrSessionExpired
		}
		return cached.Clone(), nil
	}
	metrics.SessionCacheMisses.Inc()

	data, err := m.client.Get(ctx, m.key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.IsExpired() {
		m.Delete(ctx, sessionID)
		return nil, ErrSessionExpired
	}

	m.mu.Lock()
	m.localCache[sessionID] = &session
	m.mu.Unlock()
	return session.Clone(), nil
}

// AddTurn appends one message to session history, trimming to maxHistory.
func (m *Manager) AddTurn(ctx context.Context, sessionID string, msg Message) error {
	session, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	session.History = append(session.History, msg)
	if len(session.History) > maxHistory {
		session.History = session.History[len(session.History)-maxHistory:]
	}
	session.UpdatedAt = time.Now()

	if err := m.save(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	m.mu.Lock()
	m.localCache[sessionID] = session
	m.mu.Unlock()
	return nil
}

// Delete removes a session.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	if err := m.client.Del(ctx, m.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	m.mu.Lock()
	delete(m.localCache, sessionID)
	m.mu.Unlock()
	return nil
}

func (m *Manager) key(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func (m *Manager) save(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = m.ttl
	}
	return m.client.Set(ctx, m.key(session.ID), data, ttl).Err()
}
