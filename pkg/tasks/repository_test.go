package tasks

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func taskRows(tasks ...*Task) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "owner_id", "title", "description", "status", "priority", "due_date", "created_at", "updated_at",
	})
	for _, task := range tasks {
		rows.AddRow(task.ID, task.OwnerID, task.Title, task.Description, string(task.Status),
			task.Priority, task.DueDate, task.CreatedAt, task.UpdatedAt)
	}
	return rows
}

func TestPostgresGet_OwnerScoped(t *testing.T) {
	repo, mock := newMockRepository(t)

	now := time.Now()
	mock.ExpectQuery("SELECT id, owner_id, title, description, status, priority, due_date, created_at, updated_at").
		WithArgs("task-1", "owner-1").
		WillReturnRows(taskRows(&Task{
			ID: "task-1", OwnerID: "owner-1", Title: "hello world",
			Status: StatusPending, CreatedAt: now, UpdatedAt: now,
		}))

	task, err := repo.Get(context.Background(), "task-1", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "hello world", task.Title)
	assert.Equal(t, StatusPending, task.Status)
}

func TestPostgresGet_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT id, owner_id, title").
		WithArgs("task-1", "other-owner").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "task-1", "other-owner")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresList_StatusFilter(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("FROM tasks WHERE owner_id = \\$1 AND status = \\$2 ORDER BY created_at DESC").
		WithArgs("owner-1", "completed").
		WillReturnRows(taskRows())

	list, err := repo.List(context.Background(), "owner-1", ListFilter{Status: StatusCompleted})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList_SortExpression(t *testing.T) {
	repo, mock := newMockRepository(t)

	// The sort field maps to the allow-listed order expression, never raw input
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY due_date ASC NULLS LAST, created_at DESC")).
		WithArgs("owner-1").
		WillReturnRows(taskRows())

	_, err := repo.List(context.Background(), "owner-1", ListFilter{SortBy: "due_date"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("UPDATE tasks").
		WillReturnError(sql.ErrNoRows)

	err := repo.Update(context.Background(), &Task{ID: "task-1", OwnerID: "other-owner", Title: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresDelete(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("DELETE FROM tasks WHERE id = \\$1 AND owner_id = \\$2").
		WithArgs("task-1", "owner-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), "task-1", "owner-1"))
}

func TestPostgresDelete_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("DELETE FROM tasks").
		WithArgs("task-1", "other-owner").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "task-1", "other-owner"), ErrNotFound)
}

func TestPostgresPurgeOwner(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE owner_id = $1")).
		WithArgs("owner-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	assert.NoError(t, repo.PurgeOwner(context.Background(), "owner-1"))
}
