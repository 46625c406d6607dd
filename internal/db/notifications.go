package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/taskbuddy/backend/internal/metrics"
)

// NotificationStore persists in-app notifications.
type NotificationStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewNotificationStore creates a notification store over the shared pool.
func NewNotificationStore(db *sqlx.DB, logger *zap.Logger) *NotificationStore {
	return &NotificationStore{db: db, logger: logger}
}

// Create writes a notification row for ownerID.
func (s *NotificationStore) Create(ctx context.Context, ownerID uuid.UUID, typ, message string) (*Notification, error) {
	n := &Notification{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Type:      typ,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, owner_id, type, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.OwnerID, n.Type, n.Message, n.Read, n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	metrics.NotificationsCreated.Inc()
	return n, nil
}

// ListByOwner returns the owner's notifications, newest first.
func (s *NotificationStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, unreadOnly bool) ([]Notification, error) {
	q := `SELECT * FROM notifications WHERE owner_id = $1`
	if unreadOnly {
		q += ` AND NOT read`
	}
	q += ` ORDER BY created_at DESC LIMIT 100`

	out := []Notification{}
	if err := s.db.SelectContext(ctx, &out, q, ownerID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// MarkRead marks one owned notification as read.
func (s *NotificationStore) MarkRead(ctx context.Context, id, ownerID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireRow(res, ErrNotificationNotFound)
}
