// Package registry holds the process-wide task store. Tasks live in
// memory only: a restart forgets every task, by contract.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kursadbilgin/enroll-engine/internal/domain"
)

// Registry is the owned, keyed store of tasks with explicit lifecycle
// operations. Reads return snapshots; the processing worker is the only
// writer of a task's mutable fields.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
}

func New() *Registry {
	return &Registry{tasks: make(map[string]*domain.Task)}
}

func (r *Registry) Add(task *domain.Task) error {
	if task == nil {
		return fmt.Errorf("%w: task is required", domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[task.ID()]; exists {
		return fmt.Errorf("%w: task %s already registered", domain.ErrInvalidState, task.ID())
	}
	r.tasks[task.ID()] = task
	return nil
}

func (r *Registry) Get(id string) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, id)
	}
	return task, nil
}

// Delete removes a task. Tasks still processing cannot be deleted.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, id)
	}
	if task.Status() == domain.TaskProcessing {
		return fmt.Errorf("%w: task %s is still processing", domain.ErrInvalidState, id)
	}

	delete(r.tasks, id)
	return nil
}

// List returns snapshots of every registered task, oldest first.
func (r *Registry) List() []domain.TaskSnapshot {
	r.mu.RLock()
	tasks := make([]*domain.Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		tasks = append(tasks, task)
	}
	r.mu.RUnlock()

	snapshots := make([]domain.TaskSnapshot, 0, len(tasks))
	for _, task := range tasks {
		snapshots = append(snapshots, task.Snapshot())
	}
	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].CreatedAt.Equal(snapshots[j].CreatedAt) {
			return snapshots[i].ID < snapshots[j].ID
		}
		return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
	})
	return snapshots
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
