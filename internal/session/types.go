// Package session keeps per-conversation chat context in Redis so the agent
// can see recent turns without replaying the durable chat archive.
package session

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// Message is one conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the cached conversation state for one user.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
	History   []Message `json:"history"`
}

// Clone returns a deep copy. The manager hands copies to callers so that
// appending turns never mutates state shared with another goroutine.
func (s *Session) Clone() *Session {
	out := *s
	out.History = make([]Message, len(s.History))
	copy(out.History, s.History)
	return &out
}

// IsExpired reports whether the session TTL has lapsed.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// RecentHistory returns at most n of the latest turns, oldest first.
func (s *Session) RecentHistory(n int) []Message {
	if n <= 0 || len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}
