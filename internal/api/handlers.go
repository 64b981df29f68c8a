package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"podscribe/internal/feed"
	"podscribe/internal/model"
	"podscribe/internal/pipeline"
	"podscribe/internal/utils"
	"podscribe/internal/worker"
)

// FeedFetcher loads podcast feeds.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (*feed.Feed, error)
}

// TaskStore is the task state the handlers read and create.
type TaskStore interface {
	Create(task *model.Task) error
	Get(id string) (*model.Task, bool)
	Result(id string) (*model.TaskResult, bool)
	Delete(id string)
}

// Submitter queues background work.
type Submitter interface {
	Submit(job worker.Job) error
}

// Runner executes one transcription task.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*model.TaskResult, error)
}

// Handler serves the HTTP API.
type Handler struct {
	feeds  FeedFetcher
	store  TaskStore
	pool   Submitter
	runner Runner

	pollInterval time.Duration
	now          func() time.Time
}

// NewHandler wires the API to its dependencies.
func NewHandler(feeds FeedFetcher, store TaskStore, pool Submitter, runner Runner) *Handler {
	return &Handler{
		feeds:        feeds,
		store:        store,
		pool:         pool,
		runner:       runner,
		pollInterval: time.Second,
		now:          time.Now,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// Health check
	r.GET("/health", healthCheck)

	// API v1
	v1 := r.Group("/api/v1")
	{
		v1.POST("/episodes", h.listEpisodes)
		v1.POST("/transcriptions", h.startTranscription)
		v1.GET("/transcriptions/:task_id", h.getTranscription)
		v1.GET("/transcriptions/:task_id/events", h.streamTranscription)
		v1.GET("/transcriptions/:task_id/download/:file_type", h.downloadFile)
	}
}

// healthCheck returns server health status
func healthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "podscribe",
	})
}
