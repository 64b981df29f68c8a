package pipeline

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"podscribe/internal/audio"
	"podscribe/internal/download"
	"podscribe/internal/feed"
	"podscribe/internal/model"
	"podscribe/internal/stt"
	"podscribe/internal/transcript"
)

// FeedResolver finds the episode to transcribe.
type FeedResolver interface {
	Episode(ctx context.Context, url string, index int) (feed.Episode, error)
}

// Downloader fetches episode audio.
type Downloader interface {
	Download(ctx context.Context, url, dest string, onProgress download.ProgressFunc) (int64, error)
}

// Prober reads duration metadata from a downloaded file.
type Prober interface {
	Probe(ctx context.Context, path string) (audio.Asset, error)
}

// Splitter cuts an asset into backend-sized chunks.
type Splitter interface {
	Split(ctx context.Context, asset audio.Asset, dir string) []audio.Chunk
}

// Store records task progress and results.
type Store interface {
	Update(id string, fn func(*model.Task)) (*model.Task, error)
	Complete(id string, result model.TaskResult) error
	Fail(id string, msg string) error
}

// Pipeline turns a feed episode into text and subtitle files. A task runs
// its steps strictly in sequence.
type Pipeline struct {
	Feed       FeedResolver
	Downloader Downloader
	Prober     Prober
	Splitter   Splitter
	Provider   stt.Provider
	Store      Store

	WorkDir   string
	OutputDir string
	Options   stt.Options
}

// Request identifies the episode a task should transcribe.
type Request struct {
	TaskID       string
	FeedURL      string
	EpisodeIndex int
	// OutputName is the file name stem for the results; empty means
	// transcript_<task id>.
	OutputName string
}

// Run executes all steps for req. On failure, including a panic in any step,
// the task is moved to the error state, transient files are removed and a
// *Error is returned.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.TaskResult, error) {
	result, err := p.guardedRun(ctx, req)
	if err != nil {
		log.Printf("[Pipeline] task %s failed: %v", req.TaskID, err)
		if ferr := p.Store.Fail(req.TaskID, err.Error()); ferr != nil {
			log.Printf("[Pipeline] task %s: could not record failure: %v", req.TaskID, ferr)
		}
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) guardedRun(ctx context.Context, req Request) (result *model.TaskResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = newError(KindUnknown, "internal error", fmt.Errorf("panic: %v", r))
		}
	}()
	return p.run(ctx, req)
}

func (p *Pipeline) run(ctx context.Context, req Request) (*model.TaskResult, error) {
	p.update(req.TaskID, func(t *model.Task) {
		t.Detail = "Reading RSS feed"
		t.Provider = p.Provider.Name()
	})

	episode, err := p.Feed.Episode(ctx, req.FeedURL, req.EpisodeIndex)
	if err != nil {
		return nil, newError(KindFeed, "resolve episode", err)
	}
	log.Printf("[Pipeline] task %s: episode %q (%s)", req.TaskID, episode.Title, episode.AudioURL)

	p.update(req.TaskID, func(t *model.Task) {
		t.Status = model.StatusDownloading
		t.EpisodeTitle = episode.Title
		t.AudioURL = episode.AudioURL
		t.Detail = "Downloading audio"
	})

	audioPath := filepath.Join(p.WorkDir, "episode_"+req.TaskID+audioExt(episode.AudioURL))
	chunkDir := filepath.Join(p.WorkDir, req.TaskID)
	defer cleanup(audioPath, chunkDir)

	size, err := p.Downloader.Download(ctx, episode.AudioURL, audioPath, func(pr download.Progress) {
		p.update(req.TaskID, func(t *model.Task) {
			t.Progress = DownloadProgress(pr.Percent)
			t.DownloadProgress = pr.Percent
			t.DownloadSpeed = pr.SpeedString()
			if pr.ETA > 0 {
				t.ETA = download.FormatETA(pr.ETA)
			}
			t.Detail = fmt.Sprintf("Downloading audio: %s", humanize.IBytes(uint64(pr.Bytes)))
		})
	})
	if err != nil {
		return nil, newError(KindDownload, "download audio", err)
	}

	asset, err := p.Prober.Probe(ctx, audioPath)
	if err != nil {
		return nil, newError(KindIO, "inspect audio", err)
	}

	p.update(req.TaskID, func(t *model.Task) {
		t.Status = model.StatusSplitting
		t.Progress = ProgressSplitting
		t.DownloadProgress = 100
		t.AudioDuration = asset.DurationSeconds
		t.Detail = fmt.Sprintf("Preparing %s of audio", humanize.IBytes(uint64(size)))
	})

	chunks := p.Splitter.Split(ctx, asset, chunkDir)
	stitcher := transcript.NewStitcher(asset.DurationSeconds, len(chunks), p.Options.Language)
	started := time.Now()

	for i, chunk := range chunks {
		p.update(req.TaskID, func(t *model.Task) {
			t.Status = model.StatusTranscribing
			t.Progress = ChunkProgress(i, len(chunks))
			t.CurrentChunk = i + 1
			t.TotalChunks = len(chunks)
			t.Detail = fmt.Sprintf("transcribing chunk %d/%d", i+1, len(chunks))
		})

		res, err := p.Provider.Transcribe(ctx, chunk.Path, p.Options)
		if err != nil {
			return nil, newError(KindBackend, fmt.Sprintf("transcribe chunk %d/%d", i+1, len(chunks)), err)
		}
		if res == nil {
			res = &stt.Result{}
		}
		if err := os.Remove(chunk.Path); err != nil && !os.IsNotExist(err) {
			log.Printf("[Pipeline] task %s: failed to remove %s: %v", req.TaskID, chunk.Path, err)
		}
		if err := stitcher.Add(transcript.ChunkResult{
			Index:      i,
			Text:       res.Transcript,
			Segments:   res.Segments,
			Language:   res.Language,
			Confidence: res.Confidence,
		}); err != nil {
			return nil, newError(KindIO, "stitch", err)
		}
	}

	p.update(req.TaskID, func(t *model.Task) {
		t.Status = model.StatusProcessing
		t.Progress = ProgressProcessing
		t.Detail = "Writing transcript files"
	})

	tr := stitcher.Transcript()
	name := req.OutputName
	if name == "" {
		name = "transcript_" + req.TaskID
	}
	files, err := transcript.Write(p.OutputDir, name, tr)
	if err != nil {
		return nil, newError(KindIO, "write transcript", err)
	}

	p.update(req.TaskID, func(t *model.Task) {
		t.Progress = ProgressFilesWritten
		t.Language = tr.Language
		t.LanguageProbability = tr.Confidence
	})

	result := model.TaskResult{
		TextPath:            files.TextPath,
		SRTPath:             files.SRTPath,
		EpisodeTitle:        episode.Title,
		Language:            tr.Language,
		LanguageProbability: tr.Confidence,
		TranscriptionTime:   time.Since(started),
	}
	if err := p.Store.Complete(req.TaskID, result); err != nil {
		_ = files.Remove()
		return nil, newError(KindIO, "record result", err)
	}
	log.Printf("[Pipeline] task %s completed: %d chunks, %d segments in %s",
		req.TaskID, len(chunks), len(tr.Segments), result.TranscriptionTime.Round(time.Second))
	return &result, nil
}

func (p *Pipeline) update(id string, fn func(*model.Task)) {
	if _, err := p.Store.Update(id, fn); err != nil {
		log.Printf("[Pipeline] task %s: status update rejected: %v", id, err)
	}
}

func cleanup(audioPath, chunkDir string) {
	if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
		log.Printf("[Pipeline] failed to remove %s: %v", audioPath, err)
	}
	if err := os.RemoveAll(chunkDir); err != nil {
		log.Printf("[Pipeline] failed to remove %s: %v", chunkDir, err)
	}
}

func audioExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".mp3"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" || len(ext) > 5 {
		return ".mp3"
	}
	return ext
}
