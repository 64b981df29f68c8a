package storage

import (
	"context"
	"log"
	"os"
	"time"
)

// Sweep evicts terminal tasks that finished more than ttl ago, removing
// their output files. It returns the number of evicted tasks.
func (s *MemoryStore) Sweep(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	var files []string

	s.mu.Lock()
	evicted := 0
	for id, task := range s.tasks {
		if !task.Status.IsTerminal() || task.CompletedAt == nil || task.CompletedAt.After(cutoff) {
			continue
		}
		if res, ok := s.results[id]; ok {
			files = append(files, res.TextPath, res.SRTPath)
		}
		delete(s.tasks, id)
		delete(s.results, id)
		evicted++
	}
	s.mu.Unlock()

	for _, path := range files {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("[Janitor] failed to remove %s: %v", path, err)
		}
	}
	return evicted
}

// StartJanitor sweeps every interval until ctx is done.
func (s *MemoryStore) StartJanitor(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = min(ttl/4, 10*time.Minute)
		if interval <= 0 {
			interval = time.Minute
		}
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(ttl); n > 0 {
					log.Printf("[Janitor] evicted %d finished tasks older than %s", n, ttl)
				}
			}
		}
	}()
}
