package storage

import (
	"fmt"

	"podscribe/internal/model"
)

// Complete stores the result and marks the task completed in one step, so a
// reader never sees a completed task without its files.
func (s *MemoryStore) Complete(id string, result model.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !current.Status.CanTransitionTo(model.StatusCompleted) {
		if current.Status.IsTerminal() {
			return fmt.Errorf("%w: %s is %s", ErrTerminal, id, current.Status)
		}
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, current.Status, model.StatusCompleted)
	}

	next := *current
	now := s.now()
	next.Status = model.StatusCompleted
	next.Progress = 100
	next.Detail = "Transcription completed"
	next.Language = result.Language
	next.LanguageProbability = result.LanguageProbability
	if result.EpisodeTitle != "" {
		next.EpisodeTitle = result.EpisodeTitle
	}
	next.UpdatedAt = now
	next.CompletedAt = &now

	resultCopy := result
	s.tasks[id] = &next
	s.results[id] = &resultCopy
	return nil
}

// Result retrieves the result of a completed task
func (s *MemoryStore) Result(id string) (*model.TaskResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[id]
	if !ok {
		return nil, false
	}
	resultCopy := *result
	return &resultCopy, true
}
