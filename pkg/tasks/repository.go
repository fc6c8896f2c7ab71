package tasks

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Repository is the owner-scoped task store contract
type Repository interface {
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, id, ownerID string) (*Task, error)
	List(ctx context.Context, ownerID string, filter ListFilter) ([]*Task, error)
	Update(ctx context.Context, task *Task) error
	Delete(ctx context.Context, id, ownerID string) error
	PurgeOwner(ctx context.Context, ownerID string) error
}

// PostgresRepository implements Repository on PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a task repository over an existing database
// handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a task
func (r *PostgresRepository) Create(ctx context.Context, task *Task) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, owner_id, title, description, status, priority, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`, task.ID, task.OwnerID, task.Title, task.Description, task.Status, task.Priority, task.DueDate,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Get returns a task only when the owner matches; a mismatch is ErrNotFound
func (r *PostgresRepository) Get(ctx context.Context, id, ownerID string) (*Task, error) {
	task := &Task{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, description, status, priority, due_date, created_at, updated_at
		FROM tasks WHERE id = $1 AND owner_id = $2
	`, id, ownerID).Scan(
		&task.ID, &task.OwnerID, &task.Title, &task.Description,
		&task.Status, &task.Priority, &task.DueDate, &task.CreatedAt, &task.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return task, nil
}

// List returns the owner's tasks, optionally filtered by status and ordered
// by an allow-listed sort field. Default order is descending creation time.
func (r *PostgresRepository) List(ctx context.Context, ownerID string, filter ListFilter) ([]*Task, error) {
	query := `
		SELECT id, owner_id, title, description, status, priority, due_date, created_at, updated_at
		FROM tasks WHERE owner_id = $1`
	args := []interface{}{ownerID}

	if filter.Status != "" {
		query += ` AND status = $2`
		args = append(args, filter.Status)
	}

	order := "created_at DESC"
	if col, ok := sortColumns[filter.SortBy]; ok {
		order = col
	}
	query += ` ORDER BY ` + order

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]*Task, 0)
	for rows.Next() {
		task := &Task{}
		err := rows.Scan(
			&task.ID, &task.OwnerID, &task.Title, &task.Description,
			&task.Status, &task.Priority, &task.DueDate, &task.CreatedAt, &task.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return out, nil
}

// Update rewrites a task's mutable fields, re-checking ownership in the
// WHERE clause. Last write wins; there is no concurrency token.
func (r *PostgresRepository) Update(ctx context.Context, task *Task) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET title = $3, description = $4, status = $5, priority = $6, due_date = $7, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		RETURNING updated_at
	`, task.ID, task.OwnerID, task.Title, task.Description, task.Status, task.Priority, task.DueDate,
	).Scan(&task.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// Delete removes a task, re-checking ownership. Deleting an absent or
// foreign task is ErrNotFound, making repeated deletes idempotent failures.
func (r *PostgresRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM tasks WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeOwner removes every task owned by a user (account deletion cascade)
func (r *PostgresRepository) PurgeOwner(ctx context.Context, ownerID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("failed to purge tasks: %w", err)
	}
	return nil
}
