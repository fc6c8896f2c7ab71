// Package tasks implements the task domain: the owner-scoped repository
// and the service enforcing validation and ownership. Every operation is
// filtered by the owning user id; an ownership mismatch is reported as
// not-found so callers cannot probe for other users' task ids.
package tasks

import (
	"errors"
	"time"
)

// Status is the two-value task state. The owner may toggle freely between
// the two; there is no terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the canonical statuses
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// MinTitleLength is the minimum title length after trimming
const MinTitleLength = 3

var (
	// ErrNotFound covers both absent tasks and tasks owned by another
	// user; the two are deliberately indistinguishable.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidTitle is returned when the title is empty or shorter than
	// MinTitleLength after trimming.
	ErrInvalidTitle = errors.New("title must be at least 3 characters")

	// ErrInvalidStatus is returned for a status outside the canonical
	// two-value set.
	ErrInvalidStatus = errors.New("status must be pending or completed")

	// ErrInvalidDate is returned for an unparsable due date.
	ErrInvalidDate = errors.New("due date is not a valid date")

	// ErrInvalidSort is returned for a sort field outside the allow-list.
	ErrInvalidSort = errors.New("sort field must be one of status, priority, due_date")
)

// Task is a task record scoped to its owner
type Task struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    int        `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ListFilter narrows and orders a listing. Zero values mean "no filter"
// and descending creation order.
type ListFilter struct {
	Status Status
	SortBy string
}

// allowed sort fields, mapped to their SQL order expressions
var sortColumns = map[string]string{
	"status":   "status ASC, created_at DESC",
	"priority": "priority DESC, created_at DESC",
	"due_date": "due_date ASC NULLS LAST, created_at DESC",
}

// SortAllowed reports whether field is on the sort allow-list
func SortAllowed(field string) bool {
	_, ok := sortColumns[field]
	return ok
}
