package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func newMockProjectStore(t *testing.T) (*ProjectStore, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { rawDB.Close() })
	return NewProjectStore(sqlx.NewDb(rawDB, "postgres"), zap.NewNop()), mock
}

func TestProjectCreateValidation(t *testing.T) {
	store, _ := newMockProjectStore(t)
	owner := uuid.New()

	cases := []struct {
		name    string
		project Project
	}{
		{"empty name", Project{OwnerID: owner, Name: "  "}},
		{"name too long", Project{OwnerID: owner, Name: strings.Repeat("x", 101)}},
		{"description too long", Project{OwnerID: owner, Name: "ok", Description: strings.Repeat("d", 501)}},
		{"color too long", Project{OwnerID: owner, Name: "ok", Color: "#3b82f6ff"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := store.Create(context.Background(), &tc.project)
			if !errors.Is(err, ErrConstraintViolation) {
				t.Fatalf("expected constraint violation, got %v", err)
			}
		})
	}
}

func TestProjectCreateDefaultsColor(t *testing.T) {
	store, mock := newMockProjectStore(t)

	mock.ExpectExec(`INSERT INTO projects`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	project := &Project{OwnerID: uuid.New(), Name: "Website Redesign"}
	if err := store.Create(context.Background(), project); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if project.Color != defaultProjectColor {
		t.Fatalf("color = %q, want default", project.Color)
	}
	if project.ID == uuid.Nil || project.CreatedAt.IsZero() {
		t.Fatal("expected ID and timestamps assigned")
	}
}

func TestProjectGetNotFound(t *testing.T) {
	store, mock := newMockProjectStore(t)

	mock.ExpectQuery(`SELECT \* FROM projects WHERE id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Get(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestProjectDeleteScopedToOwner(t *testing.T) {
	store, mock := newMockProjectStore(t)
	id, owner := uuid.New(), uuid.New()

	mock.ExpectExec(`DELETE FROM projects WHERE id = \$1 AND owner_id = \$2`).
		WithArgs(id, owner).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), id, owner)
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound for foreign project, got %v", err)
	}
}
