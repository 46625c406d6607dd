package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ChatStore persists conversations and their messages.
type ChatStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewChatStore creates a chat store over the shared pool.
func NewChatStore(db *sqlx.DB, logger *zap.Logger) *ChatStore {
	return &ChatStore{db: db, logger: logger}
}

// CreateConversation starts a new conversation for ownerID.
func (s *ChatStore) CreateConversation(ctx context.Context, ownerID uuid.UUID, title string) (*Conversation, error) {
	now := time.Now().UTC()
	c := &Conversation{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, owner_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.OwnerID, c.Title, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return c, nil
}

// GetConversation retrieves an owned conversation.
func (s *ChatStore) GetConversation(ctx context.Context, id, ownerID uuid.UUID) (*Conversation, error) {
	var c Conversation
	err := s.db.GetContext(ctx, &c,
		`SELECT * FROM conversations WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// ListConversations returns the owner's conversations, most recently active first.
func (s *ChatStore) ListConversations(ctx context.Context, ownerID uuid.UUID) ([]Conversation, error) {
	convs := []Conversation{}
	err := s.db.SelectContext(ctx, &convs,
		`SELECT * FROM conversations WHERE owner_id = $1 ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// AppendMessage adds one turn to a conversation and bumps its updated_at.
func (s *ChatStore) AppendMessage(ctx context.Context, conversationID uuid.UUID, role, content string) (*ChatMessage, error) {
	m := &ChatMessage{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = $1 WHERE id = $2`, m.CreatedAt, conversationID)
	if err != nil {
		s.logger.Warn("Failed to bump conversation timestamp",
			zap.String("conversation_id", conversationID.String()),
			zap.Error(err))
	}
	return m, nil
}

// ListMessages returns a conversation's messages oldest first.
func (s *ChatStore) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]ChatMessage, error) {
	q := `SELECT * FROM chat_messages WHERE conversation_id = $1 ORDER BY created_at ASC`
	args := []any{conversationID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	msgs := []ChatMessage{}
	if err := s.db.SelectContext(ctx, &msgs, q, args...); err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return msgs, nil
}
