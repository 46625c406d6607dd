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

	"github.com/taskbuddy/backend/internal/metrics"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000
)

// TaskStore persists tasks in postgres, always scoped to an owner.
type TaskStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewTaskStore creates a task store over the shared pool.
func NewTaskStore(db *sqlx.DB, logger *zap.Logger) *TaskStore {
	return &TaskStore{db: db, logger: logger}
}

// TaskFilter controls which tasks ListByOwner returns.
type TaskFilter struct {
	Completed *bool
	Priority  string
	ProjectID *uuid.UUID
	Limit     int
}

// TaskStats summarizes a user's tasks for the stats endpoint.
type TaskStats struct {
	Total     int `db:"total" json:"total"`
	Completed int `db:"completed" json:"completed"`
	Pending   int `db:"pending" json:"pending"`
	High      int `db:"high" json:"high"`
	Medium    int `db:"medium" json:"medium"`
	Low       int `db:"low" json:"low"`
}

func validateTask(t *Task) error {
	title := strings.TrimSpace(t.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
		return fmt.Errorf("%w: title must be 1-%d characters", ErrConstraintViolation, maxTitleLen)
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description must be at most %d characters", ErrConstraintViolation, maxDescriptionLen)
	}
	t.Title = title
	t.Priority = NormalizePriority(strings.ToLower(t.Priority))
	return nil
}

// Create inserts a new task, assigning ID and timestamps.
func (s *TaskStore) Create(ctx context.Context, t *Task) error {
	if err := validateTask(t); err != nil {
		return err
	}
	if err := s.verifyProject(ctx, t.ProjectID, t.OwnerID); err != nil {
		return err
	}
	t.ID = uuid.New()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, owner_id, project_id, title, description, priority, completed, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.OwnerID, t.ProjectID, t.Title, t.Description, t.Priority, t.Completed, t.DueDate, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	metrics.TasksCreated.Inc()
	return nil
}

// verifyProject rejects tasks pointing at a project the owner does not have.
func (s *TaskStore) verifyProject(ctx context.Context, projectID *uuid.UUID, ownerID uuid.UUID) error {
	if projectID == nil {
		return nil
	}
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1 AND owner_id = $2)`, *projectID, ownerID)
	if err != nil {
		return fmt.Errorf("check project: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: project not found", ErrConstraintViolation)
	}
	return nil
}

// Get retrieves a single task owned by ownerID, tags included.
func (s *TaskStore) Get(ctx context.Context, id, ownerID uuid.UUID) (*Task, error) {
	var t Task
	err := s.db.GetContext(ctx, &t,
		`SELECT * FROM tasks WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	ts := []Task{t}
	if err := s.attachTags(ctx, ts); err != nil {
		return nil, err
	}
	return &ts[0], nil
}

// ListByOwner returns the owner's tasks, newest first.
func (s *TaskStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, filter TaskFilter) ([]Task, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT * FROM tasks WHERE owner_id = $1`)
	args := []any{ownerID}

	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		fmt.Fprintf(&q, " AND completed = $%d", len(args))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		fmt.Fprintf(&q, " AND priority = $%d", len(args))
	}
	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		fmt.Fprintf(&q, " AND project_id = $%d", len(args))
	}
	q.WriteString(" ORDER BY created_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&q, " LIMIT $%d", len(args))
	}

	tasks := []Task{}
	if err := s.db.SelectContext(ctx, &tasks, q.String(), args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if err := s.attachTags(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ReplaceTags rewrites the tag links on a task. Callers verify tag ownership
// first via TagStore.VerifyOwned.
func (s *TaskStore) ReplaceTags(ctx context.Context, taskID uuid.UUID, tagIDs []uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM task_tags WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("clear task tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO task_tags (task_id, tag_id) VALUES ($1, $2)`, taskID, tagID); err != nil {
			return fmt.Errorf("link tag: %w", err)
		}
	}
	return nil
}

type taskTagRow struct {
	TaskID uuid.UUID `db:"task_id"`
	Tag
}

func (s *TaskStore) attachTags(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}

	query, args, err := sqlx.In(`
		SELECT tt.task_id AS task_id, t.id, t.owner_id, t.name, t.color, t.created_at, t.updated_at
		FROM task_tags tt
		JOIN tags t ON t.id = tt.tag_id
		WHERE tt.task_id IN (?)
		ORDER BY t.name`, ids)
	if err != nil {
		return fmt.Errorf("build tag lookup: %w", err)
	}

	rows := []taskTagRow{}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("load task tags: %w", err)
	}

	byTask := make(map[uuid.UUID][]Tag, len(rows))
	for _, r := range rows {
		byTask[r.TaskID] = append(byTask[r.TaskID], r.Tag)
	}
	for i := range tasks {
		tasks[i].Tags = byTask[tasks[i].ID]
	}
	return nil
}

// Update saves title/description/priority/due date changes to an owned task.
func (s *TaskStore) Update(ctx context.Context, t *Task) error {
	if err := validateTask(t); err != nil {
		return err
	}
	if err := s.verifyProject(ctx, t.ProjectID, t.OwnerID); err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, priority = $3, completed = $4, due_date = $5, project_id = $6, updated_at = $7
		WHERE id = $8 AND owner_id = $9`,
		t.Title, t.Description, t.Priority, t.Completed, t.DueDate, t.ProjectID, t.UpdatedAt, t.ID, t.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireRow(res, ErrTaskNotFound)
}

// SetCompleted flips the completion flag on an owned task.
func (s *TaskStore) SetCompleted(ctx context.Context, id, ownerID uuid.UUID, completed bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET completed = $1, updated_at = $2 WHERE id = $3 AND owner_id = $4`,
		completed, time.Now().UTC(), id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if err := requireRow(res, ErrTaskNotFound); err != nil {
		return err
	}
	if completed {
		metrics.TasksCompleted.Inc()
	}
	return nil
}

// Delete removes an owned task.
func (s *TaskStore) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if err := requireRow(res, ErrTaskNotFound); err != nil {
		return err
	}
	metrics.TasksDeleted.Inc()
	return nil
}

// Stats aggregates task counts for one owner.
func (s *TaskStore) Stats(ctx context.Context, ownerID uuid.UUID) (*TaskStats, error) {
	var st TaskStats
	err := s.db.GetContext(ctx, &st, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE completed) AS completed,
			COUNT(*) FILTER (WHERE NOT completed) AS pending,
			COUNT(*) FILTER (WHERE NOT completed AND priority = 'high') AS high,
			COUNT(*) FILTER (WHERE NOT completed AND priority = 'medium') AS medium,
			COUNT(*) FILTER (WHERE NOT completed AND priority = 'low') AS low
		FROM tasks WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return &st, nil
}

func requireRow(res sql.Result, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
