package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"podscribe/internal/model"
)

func newTask(t *testing.T, s *MemoryStore) *model.Task {
	t.Helper()
	task := model.NewTask("https://example.com/feed.xml", 0)
	if err := s.Create(task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return task
}

func TestCreateAndGetReturnCopies(t *testing.T) {
	s := NewMemoryStore()
	task := newTask(t, s)
	if err := s.Create(task); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, ok := s.Get(task.ID)
	if !ok {
		t.Fatal("task not found")
	}
	got.Status = model.StatusCompleted
	again, _ := s.Get(task.ID)
	if again.Status != model.StatusStarting {
		t.Fatalf("mutating a snapshot leaked into the store: %s", again.Status)
	}
	if _, ok := s.Get("missing"); ok {
		t.Fatal("expected missing task")
	}
}

func TestUpdateRejectsBackwardTransition(t *testing.T) {
	s := NewMemoryStore()
	task := newTask(t, s)
	if _, err := s.Update(task.ID, func(t *model.Task) { t.Status = model.StatusSplitting; t.Progress = 5 }); err != nil {
		t.Fatalf("Update: %v", err)
	}
	_, err := s.Update(task.ID, func(t *model.Task) { t.Status = model.StatusDownloading })
	if !errors.Is(err, ErrBackwardTransition) {
		t.Fatalf("expected ErrBackwardTransition, got %v", err)
	}
	got, _ := s.Get(task.ID)
	if got.Status != model.StatusSplitting {
		t.Fatalf("rejected update must not apply, status %s", got.Status)
	}
}

func TestUpdateProgressMonotonic(t *testing.T) {
	s := NewMemoryStore()
	task := newTask(t, s)
	steps := []int{3, 5, 1, 40, 20, 150}
	want := []int{3, 5, 5, 40, 40, 99}
	for i, p := range steps {
		got, err := s.Update(task.ID, func(t *model.Task) {
			t.Status = model.StatusTranscribing
			t.Progress = p
		})
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got.Progress != want[i] {
			t.Fatalf("step %d: expected progress %d, got %d", i, want[i], got.Progress)
		}
	}
}

func TestTerminalTasksAreFrozen(t *testing.T) {
	s := NewMemoryStore()
	task := newTask(t, s)
	if err := s.Fail(task.ID, "feed has no audio"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	got, _ := s.Get(task.ID)
	if got.Status != model.StatusError || got.Error != "feed has no audio" || got.CompletedAt == nil {
		t.Fatalf("unexpected failed task %+v", got)
	}
	if _, err := s.Update(task.ID, func(t *model.Task) { t.Detail = "late" }); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if err := s.Complete(task.ID, model.TaskResult{}); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal on complete, got %v", err)
	}
	if err := s.Fail("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteStoresResultAtomically(t *testing.T) {
	s := NewMemoryStore()
	task := newTask(t, s)
	if _, ok := s.Result(task.ID); ok {
		t.Fatal("no result expected before completion")
	}
	res := model.TaskResult{TextPath: "a.txt", SRTPath: "a.srt", EpisodeTitle: "Ep 1", Language: "no", LanguageProbability: 1}
	if err := s.Complete(task.ID, res); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, _ := s.Get(task.ID)
	if got.Status != model.StatusCompleted || got.Progress != 100 || got.Language != "no" {
		t.Fatalf("unexpected completed task %+v", got)
	}
	stored, ok := s.Result(task.ID)
	if !ok || stored.TextPath != "a.txt" {
		t.Fatalf("unexpected result %+v", stored)
	}
}

func TestConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	s := NewMemoryStore()
	task := newTask(t, s)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 60; i++ {
			_, _ = s.Update(task.ID, func(t *model.Task) {
				t.Status = model.StatusTranscribing
				t.CurrentChunk = i
				t.Progress = 10 + i/2
			})
		}
	}()
	go func() {
		defer wg.Done()
		last := 0
		for i := 0; i < 200; i++ {
			got, _ := s.Get(task.ID)
			if got.Progress < last {
				t.Errorf("progress went backwards: %d < %d", got.Progress, last)
				return
			}
			last = got.Progress
		}
	}()
	wg.Wait()
}

func TestSweepEvictsExpiredTasksAndFiles(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "transcript_x.txt")
	srt := filepath.Join(dir, "transcript_x.srt")
	for _, p := range []string{txt, srt} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	s := NewMemoryStore()
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	done := newTask(t, s)
	if err := s.Complete(done.ID, model.TaskResult{TextPath: txt, SRTPath: srt}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	running := newTask(t, s)

	if n := s.Sweep(time.Hour); n != 0 {
		t.Fatalf("nothing should expire yet, evicted %d", n)
	}
	clock = clock.Add(2 * time.Hour)
	if n := s.Sweep(time.Hour); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, ok := s.Get(done.ID); ok {
		t.Fatal("expired task still present")
	}
	if _, ok := s.Get(running.ID); !ok {
		t.Fatal("running task must survive sweep")
	}
	if _, err := os.Stat(txt); !os.IsNotExist(err) {
		t.Fatalf("expected transcript file removed, got %v", err)
	}
}
