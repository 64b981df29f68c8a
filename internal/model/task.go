package model

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle stage of a transcription task.
type TaskStatus string

const (
	StatusStarting     TaskStatus = "starting"
	StatusDownloading  TaskStatus = "downloading"
	StatusSplitting    TaskStatus = "splitting"
	StatusTranscribing TaskStatus = "transcribing"
	StatusProcessing   TaskStatus = "processing"
	StatusCompleted    TaskStatus = "completed"
	StatusError        TaskStatus = "error"
)

var statusRank = map[TaskStatus]int{
	StatusStarting:     0,
	StatusDownloading:  1,
	StatusSplitting:    2,
	StatusTranscribing: 3,
	StatusProcessing:   4,
	StatusCompleted:    5,
}

// IsTerminal reports whether no further transitions are allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	if s == StatusError {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether a task in status s may move to next.
// Stages only move forward; repeating the current stage is allowed so that
// per-chunk and per-byte updates can be recorded. Any live task may fail.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if s.IsTerminal() || !next.Valid() {
		return false
	}
	if next == StatusError {
		return true
	}
	return statusRank[next] >= statusRank[s]
}

// Task is the externally visible state of one transcription request.
type Task struct {
	ID           string     `json:"task_id"`
	FeedURL      string     `json:"rss_url"`
	EpisodeIndex int        `json:"episode_index"`
	EpisodeTitle string     `json:"episode_title,omitempty"`
	AudioURL     string     `json:"audio_url,omitempty"`
	Status       TaskStatus `json:"status"`
	Progress     int        `json:"progress"`
	Detail       string     `json:"detail,omitempty"`

	DownloadProgress float64 `json:"download_progress,omitempty"`
	DownloadSpeed    string  `json:"download_speed,omitempty"`
	ETA              string  `json:"eta,omitempty"`

	AudioDuration float64 `json:"audio_duration,omitempty"`
	CurrentChunk  int     `json:"current_chunk,omitempty"`
	TotalChunks   int     `json:"total_chunks,omitempty"`

	Language            string  `json:"language,omitempty"`
	LanguageProbability float64 `json:"language_probability,omitempty"`
	Provider            string  `json:"stt_provider,omitempty"`
	Error               string  `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTask returns a task in the starting state with a fresh ID.
func NewTask(feedURL string, episodeIndex int) *Task {
	now := time.Now()
	return &Task{
		ID:           uuid.NewString(),
		FeedURL:      feedURL,
		EpisodeIndex: episodeIndex,
		Status:       StatusStarting,
		Detail:       "Task queued",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Elapsed is the wall time since creation, frozen once the task finished.
func (t *Task) Elapsed(now time.Time) time.Duration {
	if t.CompletedAt != nil {
		return t.CompletedAt.Sub(t.CreatedAt)
	}
	return now.Sub(t.CreatedAt)
}

// TaskResult points at the files produced by a completed task.
type TaskResult struct {
	TextPath            string        `json:"text_path"`
	SRTPath             string        `json:"srt_path"`
	EpisodeTitle        string        `json:"episode_title"`
	Language            string        `json:"language"`
	LanguageProbability float64       `json:"language_probability"`
	TranscriptionTime   time.Duration `json:"transcription_time"`
}
