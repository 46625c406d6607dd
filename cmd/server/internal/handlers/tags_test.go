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

	"github.com/taskbuddy/backend/internal/db"
)

func newMockTagsHandler(t *testing.T) (*TagsHandler, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	store := db.NewTagStore(sqlx.NewDb(mockDB, "postgres"), zap.NewNop())
	return NewTagsHandler(store, zap.NewNop()), mock
}

func TestTagsCreate(t *testing.T) {
	handler, mock := newMockTagsHandler(t)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM tags`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO tags`).WillReturnResult(sqlmock.NewResult(0, 1))

	rec := httptest.NewRecorder()
	handler.Create(rec, authedRequest(http.MethodPost, "/api/v1/tags", `{"name": "Work"}`, uuid.New()))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"#3B82F6"`) {
		t.Errorf("default color missing: %s", rec.Body.String())
	}
}

func TestTagsCreateDuplicateName(t *testing.T) {
	handler, mock := newMockTagsHandler(t)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM tags`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	rec := httptest.NewRecorder()
	handler.Create(rec, authedRequest(http.MethodPost, "/api/v1/tags", `{"name": "Work"}`, uuid.New()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestTagsUpdate(t *testing.T) {
	handler, mock := newMockTagsHandler(t)
	id, owner := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT \* FROM tags WHERE id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "color", "created_at", "updated_at"}).
			AddRow(id, owner, "Work", "#3B82F6", now, now))
	mock.ExpectExec(`UPDATE tags SET name`).WillReturnResult(sqlmock.NewResult(0, 1))

	req := authedRequest(http.MethodPatch, "/api/v1/tags/"+id.String(), `{"color": "#EF4444"}`, owner)
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"#EF4444"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestTagsDeleteNotFound(t *testing.T) {
	handler, mock := newMockTagsHandler(t)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM tags`).WillReturnResult(sqlmock.NewResult(0, 0))

	req := authedRequest(http.MethodDelete, "/api/v1/tags/"+id.String(), "", uuid.New())
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
