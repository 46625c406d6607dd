package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/taskbuddy/backend/cmd/server/internal/middleware"
	"github.com/taskbuddy/backend/internal/auth"
	"github.com/taskbuddy/backend/internal/db"
)

func newMockTaskStore(t *testing.T) (*db.TaskStore, *db.TagStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	conn := sqlx.NewDb(mockDB, "postgres")
	return db.NewTaskStore(conn, zap.NewNop()), db.NewTagStore(conn, zap.NewNop()), mock
}

func authedRequest(method, target string, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := middleware.WithUser(req.Context(), &auth.UserContext{UserID: userID, Email: "alice@example.com"})
	return req.WithContext(ctx)
}

func taskColumns() []string {
	return []string{"id", "owner_id", "title", "description", "priority", "completed", "due_date", "created_at", "updated_at"}
}

func TestTasksListReturnsOwnersTasks(t *testing.T) {
	store, tags, mock := newMockTaskStore(t)
	handler := NewTasksHandler(store, tags, nil, zap.NewNop())
	owner := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE owner_id`).
		WillReturnRows(sqlmock.NewRows(taskColumns()).
			AddRow(uuid.New(), owner, "Buy milk", "", "medium", false, nil, now, now))
	mock.ExpectQuery(`FROM task_tags`).
		WillReturnRows(sqlmock.NewRows([]string{"task_id", "id", "owner_id", "name", "color", "created_at", "updated_at"}))

	rec := httptest.NewRecorder()
	handler.List(rec, authedRequest(http.MethodGet, "/api/v1/tasks", "", owner))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestTasksListBadQueryParam(t *testing.T) {
	store, tags, _ := newMockTaskStore(t)
	handler := NewTasksHandler(store, tags, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.List(rec, authedRequest(http.MethodGet, "/api/v1/tasks?completed=maybe", "", uuid.New()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTasksCreateValidationError(t *testing.T) {
	store, tags, _ := newMockTaskStore(t)
	handler := NewTasksHandler(store, tags, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Create(rec, authedRequest(http.MethodPost, "/api/v1/tasks", `{"title": "  "}`, uuid.New()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestTasksCreateBroadcasts(t *testing.T) {
	store, tags, mock := newMockTaskStore(t)
	bc := &captureBroadcaster{}
	handler := NewTasksHandler(store, tags, bc, zap.NewNop())
	owner := uuid.New()

	mock.ExpectExec(`INSERT INTO tasks`).WillReturnResult(sqlmock.NewResult(0, 1))

	rec := httptest.NewRecorder()
	handler.Create(rec, authedRequest(http.MethodPost, "/api/v1/tasks", `{"title": "Buy milk", "priority": "high"}`, owner))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(bc.events) != 1 || bc.events[0].eventType != "task_created" {
		t.Fatalf("events = %+v", bc.events)
	}
	if bc.events[0].userID != owner.String() {
		t.Error("event not addressed to owner")
	}
}

func TestTasksCreateWithTags(t *testing.T) {
	store, tags, mock := newMockTaskStore(t)
	handler := NewTasksHandler(store, tags, nil, zap.NewNop())
	owner := uuid.New()
	tagID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT \* FROM tags WHERE owner_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "color", "created_at", "updated_at"}).
			AddRow(tagID, owner, "errands", "#3B82F6", now, now))
	mock.ExpectExec(`INSERT INTO tasks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM task_tags`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO task_tags`).WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"title": "Buy milk", "tag_ids": ["` + tagID.String() + `"]}`
	rec := httptest.NewRecorder()
	handler.Create(rec, authedRequest(http.MethodPost, "/api/v1/tasks", body, owner))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"errands"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTasksCreateForeignTagRejected(t *testing.T) {
	store, tags, mock := newMockTaskStore(t)
	handler := NewTasksHandler(store, tags, nil, zap.NewNop())
	owner := uuid.New()

	// The requested tag does not resolve for this owner, so nothing is written.
	mock.ExpectQuery(`SELECT \* FROM tags WHERE owner_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "color", "created_at", "updated_at"}))

	body := `{"title": "Buy milk", "tag_ids": ["` + uuid.NewString() + `"]}`
	rec := httptest.NewRecorder()
	handler.Create(rec, authedRequest(http.MethodPost, "/api/v1/tasks", body, owner))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("task written despite foreign tag: %v", err)
	}
}

func TestTasksGetNotFound(t *testing.T) {
	store, tags, mock := newMockTaskStore(t)
	handler := NewTasksHandler(store, tags, nil, zap.NewNop())
	id := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id`).
		WillReturnRows(sqlmock.NewRows(taskColumns()))

	req := authedRequest(http.MethodGet, "/api/v1/tasks/"+id.String(), "", uuid.New())
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestTasksDeleteBroadcasts(t *testing.T) {
	store, tags, mock := newMockTaskStore(t)
	bc := &captureBroadcaster{}
	handler := NewTasksHandler(store, tags, bc, zap.NewNop())
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM tasks`).WillReturnResult(sqlmock.NewResult(0, 1))

	req := authedRequest(http.MethodDelete, "/api/v1/tasks/"+id.String(), "", uuid.New())
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(bc.events) != 1 || bc.events[0].eventType != "task_deleted" {
		t.Fatalf("events = %+v", bc.events)
	}
	if bc.events[0].payload["taskId"] != id.String() {
		t.Errorf("payload = %v", bc.events[0].payload)
	}
}
