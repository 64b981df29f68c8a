package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"podscribe/internal/model"
	"podscribe/internal/storage"
)

// reportingStore prints task progress as the pipeline updates it. On a
// terminal it draws a progress bar, otherwise it prints one line per stage.
type reportingStore struct {
	*storage.MemoryStore

	mu     sync.Mutex
	out    io.Writer
	bar    *progressbar.ProgressBar
	last   model.TaskStatus
	detail string
}

func newReportingStore(store *storage.MemoryStore, out io.Writer) *reportingStore {
	s := &reportingStore{MemoryStore: store, out: out}
	if shouldDrawBar(out) {
		s.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(false),
		)
	}
	return s
}

func (s *reportingStore) Update(id string, fn func(*model.Task)) (*model.Task, error) {
	task, err := s.MemoryStore.Update(id, fn)
	if err == nil {
		s.report(task)
	}
	return task, err
}

func (s *reportingStore) Complete(id string, result model.TaskResult) error {
	if err := s.MemoryStore.Complete(id, result); err != nil {
		return err
	}
	if task, ok := s.Get(id); ok {
		s.report(task)
	}
	return nil
}

func (s *reportingStore) report(task *model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bar != nil {
		if task.Detail != s.detail {
			s.detail = task.Detail
			s.bar.Describe(task.Detail)
		}
		_ = s.bar.Set(task.Progress)
		return
	}
	if task.Status != s.last || (task.Status == model.StatusTranscribing && task.Detail != s.detail) {
		fmt.Fprintf(s.out, "[%3d%%] %s\n", task.Progress, task.Detail)
	}
	s.last = task.Status
	s.detail = task.Detail
}

// finish terminates the progress bar line.
func (s *reportingStore) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		_ = s.bar.Finish()
		fmt.Fprintln(s.out)
	}
}

func shouldDrawBar(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
