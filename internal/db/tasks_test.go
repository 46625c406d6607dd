package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func newMockStore(t *testing.T) (*TaskStore, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { rawDB.Close() })
	return NewTaskStore(sqlx.NewDb(rawDB, "postgres"), zap.NewNop()), mock
}

func taskColumns() []string {
	return []string{"id", "owner_id", "title", "description", "priority", "completed", "due_date", "created_at", "updated_at"}
}

func tagJoinColumns() []string {
	return []string{"task_id", "id", "owner_id", "name", "color", "created_at", "updated_at"}
}

func TestCreateValidation(t *testing.T) {
	store, _ := newMockStore(t)
	owner := uuid.New()

	cases := []struct {
		name string
		task Task
	}{
		{"empty title", Task{OwnerID: owner, Title: ""}},
		{"whitespace title", Task{OwnerID: owner, Title: "   "}},
		{"title too long", Task{OwnerID: owner, Title: strings.Repeat("x", 201)}},
		{"description too long", Task{OwnerID: owner, Title: "ok", Description: strings.Repeat("d", 1001)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := store.Create(context.Background(), &tc.task)
			if !errors.Is(err, ErrConstraintViolation) {
				t.Fatalf("expected constraint violation, got %v", err)
			}
		})
	}
}

func TestCreateNormalizesPriority(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO tasks`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	task := &Task{OwnerID: uuid.New(), Title: "Buy milk", Priority: "URGENT-ish"}
	if err := store.Create(context.Background(), task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.Priority != PriorityMedium {
		t.Fatalf("expected unknown priority coerced to medium, got %q", task.Priority)
	}
	if task.ID == uuid.Nil || task.CreatedAt.IsZero() {
		t.Fatal("expected ID and timestamps assigned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM tasks WHERE id`).
		WillReturnRows(sqlmock.NewRows(taskColumns()))

	_, err := store.Get(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestListByOwnerFilters(t *testing.T) {
	store, mock := newMockStore(t)
	owner := uuid.New()
	now := time.Now().UTC()

	rows := sqlmock.NewRows(taskColumns()).
		AddRow(uuid.New(), owner, "Walk dog", "", "high", false, nil, now, now).
		AddRow(uuid.New(), owner, "Read book", "", "low", false, nil, now.Add(-time.Hour), now)

	mock.ExpectQuery(`SELECT \* FROM tasks WHERE owner_id = \$1 AND completed = \$2 ORDER BY created_at DESC`).
		WithArgs(owner, false).
		WillReturnRows(rows)
	mock.ExpectQuery(`FROM task_tags`).
		WillReturnRows(sqlmock.NewRows(tagJoinColumns()))

	completed := false
	tasks, err := store.ListByOwner(context.Background(), owner, TaskFilter{Completed: &completed})
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Title != "Walk dog" {
		t.Fatalf("expected newest first, got %q", tasks[0].Title)
	}
}

func TestGetAttachesTags(t *testing.T) {
	store, mock := newMockStore(t)
	id, owner, tagID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT \* FROM tasks WHERE id`).
		WithArgs(id, owner).
		WillReturnRows(sqlmock.NewRows(taskColumns()).
			AddRow(id, owner, "Buy milk", "", "medium", false, nil, now, now))
	mock.ExpectQuery(`FROM task_tags`).
		WillReturnRows(sqlmock.NewRows(tagJoinColumns()).
			AddRow(id, tagID, owner, "errands", "#3B82F6", now, now))

	task, err := store.Get(context.Background(), id, owner)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(task.Tags) != 1 || task.Tags[0].Name != "errands" {
		t.Fatalf("tags = %+v", task.Tags)
	}
}

func TestCreateRejectsForeignProject(t *testing.T) {
	store, mock := newMockStore(t)
	projectID := uuid.New()

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM projects`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	task := &Task{OwnerID: uuid.New(), ProjectID: &projectID, Title: "Buy milk"}
	err := store.Create(context.Background(), task)
	if !errors.Is(err, ErrConstraintViolation) {
		t.Fatalf("expected constraint violation for foreign project, got %v", err)
	}
}

func TestDeleteScopedToOwner(t *testing.T) {
	store, mock := newMockStore(t)
	id, owner := uuid.New(), uuid.New()

	mock.ExpectExec(`DELETE FROM tasks WHERE id = \$1 AND owner_id = \$2`).
		WithArgs(id, owner).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), id, owner)
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound for foreign task, got %v", err)
	}
}

func TestSetCompleted(t *testing.T) {
	store, mock := newMockStore(t)
	id, owner := uuid.New(), uuid.New()

	mock.ExpectExec(`UPDATE tasks SET completed = \$1`).
		WithArgs(true, sqlmock.AnyArg(), id, owner).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.SetCompleted(context.Background(), id, owner, true); err != nil {
		t.Fatalf("SetCompleted failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
