package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"podscribe/internal/model"
)

var (
	ErrNotFound           = errors.New("task not found")
	ErrTerminal           = errors.New("task already finished")
	ErrBackwardTransition = errors.New("invalid status transition")
	ErrDuplicate          = errors.New("task already exists")
)

// MemoryStore keeps task state and results in memory. All getters return
// copies so callers never observe a task mid-update.
type MemoryStore struct {
	mu      sync.RWMutex
	tasks   map[string]*model.Task
	results map[string]*model.TaskResult
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:   make(map[string]*model.Task),
		results: make(map[string]*model.TaskResult),
		now:     time.Now,
	}
}

// Create registers a new task.
func (s *MemoryStore) Create(task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, task.ID)
	}
	taskCopy := *task
	if taskCopy.Status == "" {
		taskCopy.Status = model.StatusStarting
	}
	s.tasks[task.ID] = &taskCopy
	return nil
}

// Get retrieves a task by ID
func (s *MemoryStore) Get(id string) (*model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	taskCopy := *task
	return &taskCopy, true
}

// Len returns the number of tracked tasks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Update applies fn to a copy of the task and commits it when the resulting
// status is reachable from the current one. Progress never decreases and
// only a completed task reports 100.
func (s *MemoryStore) Update(id string, fn func(*model.Task)) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrTerminal, id, current.Status)
	}

	next := *current
	fn(&next)
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt

	if !current.Status.CanTransitionTo(next.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, current.Status, next.Status)
	}
	next.Progress = clampProgress(current.Progress, next.Progress, next.Status)
	next.UpdatedAt = s.now()
	if next.Status.IsTerminal() {
		done := next.UpdatedAt
		next.CompletedAt = &done
	}

	s.tasks[id] = &next
	out := next
	return &out, nil
}

// Fail moves a live task to the error state.
func (s *MemoryStore) Fail(id string, msg string) error {
	_, err := s.Update(id, func(t *model.Task) {
		t.Status = model.StatusError
		t.Error = msg
		t.Detail = "Error: " + msg
	})
	return err
}

// Delete drops a task and its result.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	delete(s.results, id)
}

func clampProgress(prev, next int, status model.TaskStatus) int {
	if status == model.StatusCompleted {
		return 100
	}
	if next < prev {
		next = prev
	}
	if next > 99 {
		next = 99
	}
	if next < 0 {
		next = 0
	}
	return next
}
