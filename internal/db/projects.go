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
	maxProjectNameLen = 100
	maxProjectDescLen = 500
	maxProjectIconLen = 50
	maxColorLen       = 7

	defaultProjectColor = "#3b82f6"
)

// ProjectStore persists task projects, scoped to an owner.
type ProjectStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewProjectStore creates a project store over the shared pool.
func NewProjectStore(db *sqlx.DB, logger *zap.Logger) *ProjectStore {
	return &ProjectStore{db: db, logger: logger}
}

func validateProject(p *Project) error {
	name := strings.TrimSpace(p.Name)
	if name == "" || utf8.RuneCountInString(name) > maxProjectNameLen {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrConstraintViolation, maxProjectNameLen)
	}
	if utf8.RuneCountInString(p.Description) > maxProjectDescLen {
		return fmt.Errorf("%w: description must be at most %d characters", ErrConstraintViolation, maxProjectDescLen)
	}
	if p.Color == "" {
		p.Color = defaultProjectColor
	}
	if len(p.Color) > maxColorLen {
		return fmt.Errorf("%w: color must be a hex value like #3b82f6", ErrConstraintViolation)
	}
	if p.Icon != nil && utf8.RuneCountInString(*p.Icon) > maxProjectIconLen {
		return fmt.Errorf("%w: icon must be at most %d characters", ErrConstraintViolation, maxProjectIconLen)
	}
	p.Name = name
	return nil
}

// Create inserts a new project, assigning ID and timestamps.
func (s *ProjectStore) Create(ctx context.Context, p *Project) error {
	if err := validateProject(p); err != nil {
		return err
	}
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, owner_id, name, description, color, icon, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.OwnerID, p.Name, p.Description, p.Color, p.Icon, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// Get retrieves a single project owned by ownerID.
func (s *ProjectStore) Get(ctx context.Context, id, ownerID uuid.UUID) (*Project, error) {
	var p Project
	err := s.db.GetContext(ctx, &p,
		`SELECT * FROM projects WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// ListByOwner returns the owner's projects, oldest first.
func (s *ProjectStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Project, error) {
	projects := []Project{}
	err := s.db.SelectContext(ctx, &projects,
		`SELECT * FROM projects WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Update saves name/description/color/icon changes to an owned project.
func (s *ProjectStore) Update(ctx context.Context, p *Project) error {
	if err := validateProject(p); err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET name = $1, description = $2, color = $3, icon = $4, updated_at = $5
		WHERE id = $6 AND owner_id = $7`,
		p.Name, p.Description, p.Color, p.Icon, p.UpdatedAt, p.ID, p.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireRow(res, ErrProjectNotFound)
}

// Delete removes an owned project. Tasks in the project cascade away with it.
func (s *ProjectStore) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM projects WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireRow(res, ErrProjectNotFound)
}
