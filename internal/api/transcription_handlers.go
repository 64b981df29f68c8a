package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"podscribe/internal/model"
	"podscribe/internal/pipeline"
	"podscribe/internal/utils"
	"podscribe/internal/worker"
)

type transcriptionRequest struct {
	RSSURL       string `json:"rss_url" binding:"required"`
	EpisodeIndex int    `json:"episode_index"`
}

// startTranscription handles POST /api/v1/transcriptions
func (h *Handler) startTranscription(c *gin.Context) {
	var req transcriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "rss_url is required")
		return
	}
	if req.EpisodeIndex < 0 {
		utils.Error(c, http.StatusBadRequest, "episode_index must not be negative")
		return
	}

	task := model.NewTask(req.RSSURL, req.EpisodeIndex)
	if err := h.store.Create(task); err != nil {
		log.Printf("[Transcribe] Error creating task: %v", err)
		utils.Error(c, http.StatusInternalServerError, "failed to create task")
		return
	}

	runReq := pipeline.Request{
		TaskID:       task.ID,
		FeedURL:      req.RSSURL,
		EpisodeIndex: req.EpisodeIndex,
	}
	err := h.pool.Submit(func(ctx context.Context) error {
		_, err := h.runner.Run(ctx, runReq)
		return err
	})
	if err != nil {
		h.store.Delete(task.ID)
		if errors.Is(err, worker.ErrQueueFull) || errors.Is(err, worker.ErrClosed) {
			utils.Error(c, http.StatusServiceUnavailable, "server is busy, try again later")
			return
		}
		utils.Error(c, http.StatusInternalServerError, "failed to queue task")
		return
	}

	log.Printf("[Transcribe] Task %s queued: %s episode %d", task.ID, req.RSSURL, req.EpisodeIndex)
	utils.Accepted(c, gin.H{
		"task_id": task.ID,
		"status":  task.Status,
	})
}

// getTranscription handles GET /api/v1/transcriptions/:task_id
func (h *Handler) getTranscription(c *gin.Context) {
	task, ok := h.store.Get(c.Param("task_id"))
	if !ok {
		utils.Error(c, http.StatusNotFound, "task not found")
		return
	}
	utils.Success(c, h.statusPayload(task))
}

// streamTranscription handles GET /api/v1/transcriptions/:task_id/events
func (h *Handler) streamTranscription(c *gin.Context) {
	id := c.Param("task_id")
	if _, ok := h.store.Get(id); !ok {
		utils.Error(c, http.StatusNotFound, "task not found")
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var lastUpdate time.Time
	c.Stream(func(w io.Writer) bool {
		task, ok := h.store.Get(id)
		if !ok {
			c.SSEvent("error", gin.H{"error": "task not found"})
			return false
		}
		if !task.UpdatedAt.Equal(lastUpdate) || lastUpdate.IsZero() {
			lastUpdate = task.UpdatedAt
			c.SSEvent("status", h.statusPayload(task))
		}
		if task.Status.IsTerminal() {
			return false
		}
		select {
		case <-c.Request.Context().Done():
			return false
		case <-ticker.C:
			return true
		}
	})
}

// downloadFile handles GET /api/v1/transcriptions/:task_id/download/:file_type
func (h *Handler) downloadFile(c *gin.Context) {
	id := c.Param("task_id")
	fileType := c.Param("file_type")
	if fileType != "txt" && fileType != "srt" {
		utils.Error(c, http.StatusBadRequest, "invalid file type, use txt or srt")
		return
	}

	task, ok := h.store.Get(id)
	if !ok {
		utils.Error(c, http.StatusNotFound, "task not found")
		return
	}
	if task.Status != model.StatusCompleted {
		utils.Error(c, http.StatusConflict, "transcription is not completed")
		return
	}
	result, ok := h.store.Result(id)
	if !ok {
		utils.Error(c, http.StatusNotFound, "file not found")
		return
	}

	path := result.TextPath
	if fileType == "srt" {
		path = result.SRTPath
	}
	c.FileAttachment(path, attachmentName(result.EpisodeTitle, fileType))
}

func (h *Handler) statusPayload(task *model.Task) gin.H {
	data := gin.H{
		"task_id":       task.ID,
		"status":        task.Status,
		"progress":      task.Progress,
		"detail":        task.Detail,
		"episode_index": task.EpisodeIndex,
		"start_time":    task.CreatedAt.Format(time.RFC3339),
		"elapsed_time":  fmt.Sprintf("%.1f min", task.Elapsed(h.now()).Minutes()),
	}
	if task.EpisodeTitle != "" {
		data["episode_title"] = task.EpisodeTitle
	}
	if task.Provider != "" {
		data["stt_provider"] = task.Provider
	}
	if task.Status == model.StatusDownloading {
		data["download_progress"] = task.DownloadProgress
		data["download_speed"] = task.DownloadSpeed
		data["eta"] = task.ETA
	}
	if task.AudioDuration > 0 {
		data["audio_duration"] = task.AudioDuration
	}
	if task.TotalChunks > 0 {
		data["current_chunk"] = task.CurrentChunk
		data["total_chunks"] = task.TotalChunks
	}
	if task.Language != "" {
		data["language"] = task.Language
		data["language_probability"] = task.LanguageProbability
	}
	if task.Error != "" {
		data["error"] = task.Error
	}
	if task.Status == model.StatusCompleted {
		base := "/api/v1/transcriptions/" + task.ID + "/download/"
		data["download_txt"] = base + "txt"
		data["download_srt"] = base + "srt"
		if result, ok := h.store.Result(task.ID); ok {
			data["actual_transcription_time"] = fmt.Sprintf("%.1f seconds", result.TranscriptionTime.Seconds())
		}
	}
	return data
}

var unsafeFileChars = strings.NewReplacer(
	" ", "_", "/", "_", "\\", "_", ":", "_", "\"", "", "*", "", "?", "", "<", "", ">", "", "|", "",
)

func attachmentName(title, fileType string) string {
	name := strings.TrimSpace(title)
	if name == "" {
		name = "transcript"
	}
	return unsafeFileChars.Replace(name) + "." + fileType
}
