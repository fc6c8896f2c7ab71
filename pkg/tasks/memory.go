package tasks

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository for dev mode and tests,
// mirroring the postgres implementation's semantics.
type MemoryRepository struct {
	mu    sync.RWMutex
	tasks map[string]*Task // by id
}

// NewMemoryRepository creates an empty in-memory task repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tasks: make(map[string]*Task)}
}

// Create inserts a task
func (r *MemoryRepository) Create(ctx context.Context, task *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

// Get returns a task only when the owner matches
func (r *MemoryRepository) Get(ctx context.Context, id, ownerID string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	cp := *task
	return &cp, nil
}

// List returns the owner's tasks, filtered and ordered like the postgres
// backend.
func (r *MemoryRepository) List(ctx context.Context, ownerID string, filter ListFilter) ([]*Task, error) {
	r.mu.RLock()
	out := make([]*Task, 0)
	for _, task := range r.tasks {
		if task.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		cp := *task
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch filter.SortBy {
		case "status":
			if a.Status != b.Status {
				return a.Status < b.Status
			}
		case "priority":
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
		case "due_date":
			switch {
			case a.DueDate == nil && b.DueDate != nil:
				return false
			case a.DueDate != nil && b.DueDate == nil:
				return true
			case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
				return a.DueDate.Before(*b.DueDate)
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	return out, nil
}

// Update rewrites a task's mutable fields, re-checking ownership
func (r *MemoryRepository) Update(ctx context.Context, task *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tasks[task.ID]
	if !ok || existing.OwnerID != task.OwnerID {
		return ErrNotFound
	}

	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = time.Now()
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

// Delete removes a task, re-checking ownership
func (r *MemoryRepository) Delete(ctx context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

// PurgeOwner removes every task owned by a user
func (r *MemoryRepository) PurgeOwner(ctx context.Context, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, task := range r.tasks {
		if task.OwnerID == ownerID {
			delete(r.tasks, id)
		}
	}
	return nil
}
