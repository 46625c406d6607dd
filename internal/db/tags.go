package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	minTagNameLen = 3
	maxTagNameLen = 100

	defaultTagColor = "#3B82F6"
)

// TagStore persists per-user tags and their task links.
type TagStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewTagStore creates a tag store over the shared pool.
func NewTagStore(db *sqlx.DB, logger *zap.Logger) *TagStore {
	return &TagStore{db: db, logger: logger}
}

func validateTag(t *Tag) error {
	name := strings.TrimSpace(t.Name)
	if n := utf8.RuneCountInString(name); n < minTagNameLen || n > maxTagNameLen {
		return fmt.Errorf("%w: name must be %d-%d characters", ErrConstraintViolation, minTagNameLen, maxTagNameLen)
	}
	if t.Color == "" {
		t.Color = defaultTagColor
	}
	if len(t.Color) > maxColorLen {
		return fmt.Errorf("%w: color must be a hex value like #3B82F6", ErrConstraintViolation)
	}
	t.Name = name
	return nil
}

// Create inserts a new tag. Tag names are unique per owner.
func (s *TagStore) Create(ctx context.Context, t *Tag) error {
	if err := validateTag(t); err != nil {
		return err
	}

	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM tags WHERE owner_id = $1 AND name = $2)`, t.OwnerID, t.Name)
	if err != nil {
		return fmt.Errorf("check tag name: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: tag %q already exists", ErrConstraintViolation, t.Name)
	}

	t.ID = uuid.New()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tags (id, owner_id, name, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.OwnerID, t.Name, t.Color, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

// Get retrieves a single tag owned by ownerID.
func (s *TagStore) Get(ctx context.Context, id, ownerID uuid.UUID) (*Tag, error) {
	var t Tag
	err := s.db.GetContext(ctx, &t,
		`SELECT * FROM tags WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err == sql.ErrNoRows {
		return nil, ErrTagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return &t, nil
}

// ListByOwner returns the owner's tags, alphabetically.
func (s *TagStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Tag, error) {
	tags := []Tag{}
	err := s.db.SelectContext(ctx, &tags,
		`SELECT * FROM tags WHERE owner_id = $1 ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// Update saves name/color changes to an owned tag.
func (s *TagStore) Update(ctx context.Context, t *Tag) error {
	if err := validateTag(t); err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE tags SET name = $1, color = $2, updated_at = $3
		WHERE id = $4 AND owner_id = $5`,
		t.Name, t.Color, t.UpdatedAt, t.ID, t.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("update tag: %w", err)
	}
	return requireRow(res, ErrTagNotFound)
}

// Delete removes an owned tag and, via cascade, its task links.
func (s *TagStore) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tags WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return requireRow(res, ErrTagNotFound)
}

// VerifyOwned resolves tag IDs to the owner's tags. Any ID that does not
// belong to the owner makes the whole lookup a constraint violation.
func (s *TagStore) VerifyOwned(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]Tag, error) {
	if len(ids) == 0 {
		return []Tag{}, nil
	}

	query, args, err := sqlx.In(
		`SELECT * FROM tags WHERE owner_id = ? AND id IN (?)`, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("build tag lookup: %w", err)
	}

	tags := []Tag{}
	if err := s.db.SelectContext(ctx, &tags, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("verify tags: %w", err)
	}
	if len(tags) != len(ids) {
		return nil, fmt.Errorf("%w: one or more tags not found", ErrConstraintViolation)
	}
	return tags, nil
}
