package tasks

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/platinummonkey/taskhub/pkg/observability"
)

// dueDateLayouts are the accepted due date formats, tried in order
var dueDateLayouts = []string{"2006-01-02", time.RFC3339}

// Service validates input and enforces ownership before touching the
// repository. The owner id always comes from the authenticated identity;
// client-supplied owner fields are never consulted.
type Service struct {
	repo    Repository
	metrics *observability.Metrics
}

// NewService creates a task service over a repository
func NewService(repo Repository, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, metrics: metrics}
}

// CreateInput carries the client-supplied fields for task creation.
// Any owner field in the request body is ignored.
type CreateInput struct {
	Title       string
	Description string
	Status      string
	Priority    int
	DueDate     string
}

// UpdateInput carries a partial update; nil fields keep their prior values
type UpdateInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *int
	DueDate     *string
}

func (s *Service) count(operation string) {
	if s.metrics != nil {
		s.metrics.TaskOperationsTotal.WithLabelValues(operation).Inc()
	}
}

// Create validates and stores a new task owned by ownerID
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (*Task, error) {
	title := strings.TrimSpace(input.Title)
	// Characters, not bytes, so multibyte titles are measured fairly
	if utf8.RuneCountInString(title) < MinTitleLength {
		return nil, ErrInvalidTitle
	}

	status := StatusPending
	if input.Status != "" {
		status = Status(input.Status)
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
	}

	dueDate, err := parseDueDate(input.DueDate)
	if err != nil {
		return nil, err
	}

	task := &Task{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      status,
		Priority:    input.Priority,
		DueDate:     dueDate,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}

	s.count("create")
	return task, nil
}

// List returns the caller's tasks. Unknown status filters and sort fields
// are rejected rather than silently ignored, so caller bugs surface.
func (s *Service) List(ctx context.Context, ownerID, statusFilter, sortBy string) ([]*Task, error) {
	filter := ListFilter{}

	if statusFilter != "" {
		status := Status(statusFilter)
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		filter.Status = status
	}

	if sortBy != "" {
		if !SortAllowed(sortBy) {
			return nil, ErrInvalidSort
		}
		filter.SortBy = sortBy
	}

	out, err := s.repo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}

	s.count("list")
	return out, nil
}

// Get returns the task when owned by ownerID, ErrNotFound otherwise
func (s *Service) Get(ctx context.Context, ownerID, id string) (*Task, error) {
	task, err := s.repo.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	s.count("get")
	return task, nil
}

// Update applies a partial update. Provided fields are re-validated with
// the creation rules; omitted fields retain their prior values. Ownership
// is re-checked before mutation.
func (s *Service) Update(ctx context.Context, ownerID, id string, input UpdateInput) (*Task, error) {
	task, err := s.repo.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if utf8.RuneCountInString(title) < MinTitleLength {
			return nil, ErrInvalidTitle
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		status := Status(*input.Status)
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		task.Status = status
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.DueDate != nil {
		if *input.DueDate == "" {
			task.DueDate = nil
		} else {
			dueDate, err := parseDueDate(*input.DueDate)
			if err != nil {
				return nil, err
			}
			task.DueDate = dueDate
		}
	}

	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}

	s.count("update")
	return task, nil
}

// Delete removes the task when owned by ownerID. A second delete of the
// same id yields ErrNotFound, not a server error.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	s.count("delete")
	return nil
}

// PurgeOwner removes everything the owner has; used by account deletion
func (s *Service) PurgeOwner(ctx context.Context, ownerID string) error {
	return s.repo.PurgeOwner(ctx, ownerID)
}

func parseDueDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, ErrInvalidDate
}
