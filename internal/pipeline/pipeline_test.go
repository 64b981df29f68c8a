package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"podscribe/internal/audio"
	"podscribe/internal/download"
	"podscribe/internal/feed"
	"podscribe/internal/model"
	"podscribe/internal/storage"
	"podscribe/internal/stt"
	"podscribe/internal/transcript"
	"podscribe/internal/worker"
)

const mb = 1024 * 1024

type fakeFeed struct {
	episode feed.Episode
	err     error
}

func (f fakeFeed) Episode(context.Context, string, int) (feed.Episode, error) {
	return f.episode, f.err
}

// sparseDownloader creates a sparse file of the given size at dest.
type sparseDownloader struct {
	size int64
	err  error
}

func (d sparseDownloader) Download(_ context.Context, _ string, dest string, onProgress download.ProgressFunc) (int64, error) {
	if d.err != nil {
		return 0, d.err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	if err := f.Truncate(d.size); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	if onProgress != nil {
		onProgress(download.Progress{Bytes: d.size / 2, Total: d.size, Percent: 50, Speed: 1 << 20})
		onProgress(download.Progress{Bytes: d.size, Total: d.size, Percent: 100, Speed: 1 << 20})
	}
	return d.size, nil
}

func ffprobeReporting(duration string) audio.CommandRunner {
	return func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"format":{"duration":"` + duration + `","bit_rate":"128000"}}`), nil
	}
}

func writingFFmpeg(_ context.Context, _ string, args ...string) ([]byte, error) {
	return nil, os.WriteFile(args[len(args)-1], []byte("ID3 chunk"), 0o644)
}

// scriptedProvider returns the next scripted result per call. It notes any
// earlier chunk that still exists when the next one arrives.
type scriptedProvider struct {
	mu      sync.Mutex
	results []*stt.Result
	failAt  int
	paths   []string
	stale   []string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Transcribe(_ context.Context, path string, _ stt.Options) (*stt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
	n := len(p.paths)
	if n >= 2 {
		if _, err := os.Stat(p.paths[n-2]); err == nil {
			p.stale = append(p.stale, p.paths[n-2])
		}
	}
	if p.failAt > 0 && n == p.failAt {
		return nil, errors.New("429 rate limited")
	}
	if n > len(p.results) {
		return &stt.Result{}, nil
	}
	return p.results[n-1], nil
}

// recordingStore keeps every committed snapshot.
type recordingStore struct {
	*storage.MemoryStore
	mu        sync.Mutex
	snapshots []model.Task
}

func (s *recordingStore) Update(id string, fn func(*model.Task)) (*model.Task, error) {
	task, err := s.MemoryStore.Update(id, fn)
	if err == nil {
		s.mu.Lock()
		s.snapshots = append(s.snapshots, *task)
		s.mu.Unlock()
	}
	return task, err
}

func newHarness(t *testing.T, f FeedResolver, d Downloader, prober audio.CommandRunner, provider stt.Provider) (*Pipeline, *recordingStore, string) {
	t.Helper()
	root := t.TempDir()
	store := &recordingStore{MemoryStore: storage.NewMemoryStore()}
	task := model.NewTask("https://example.com/feed.xml", 0)
	if err := store.Create(task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	p := &Pipeline{
		Feed:       f,
		Downloader: d,
		Prober:     &audio.Prober{Binary: "ffprobe", Run: prober},
		Splitter:   &audio.Splitter{FFmpegBin: "ffmpeg", Ceiling: audio.DefaultCeiling, Run: writingFFmpeg},
		Provider:   provider,
		Store:      store,
		WorkDir:    filepath.Join(root, "work"),
		OutputDir:  filepath.Join(root, "out"),
		Options:    stt.Options{Language: "no"},
	}
	return p, store, task.ID
}

func segs(end float64, text string) *stt.Result {
	return &stt.Result{
		Transcript: text,
		Segments:   []transcript.Segment{{Start: 0, End: end, Text: text}},
		Language:   "norwegian",
		Confidence: 1,
	}
}

func TestRunSplitsAndStitchesLargeEpisode(t *testing.T) {
	provider := &scriptedProvider{results: []*stt.Result{segs(5, "en"), segs(5, "to"), segs(4, "tre")}}
	p, store, id := newHarness(t,
		fakeFeed{episode: feed.Episode{Title: "Episode 3", AudioURL: "https://cdn.example.com/ep3.mp3"}},
		sparseDownloader{size: 50 * mb},
		ffprobeReporting("3000.000"),
		provider,
	)

	result, err := p.Run(context.Background(), Request{TaskID: id, FeedURL: "https://example.com/feed.xml"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(provider.paths) != 3 {
		t.Fatalf("expected 3 chunk transcriptions, got %d", len(provider.paths))
	}
	if len(provider.stale) != 0 {
		t.Fatalf("chunks still on disk when the next chunk started: %v", provider.stale)
	}

	srt, err := os.ReadFile(result.SRTPath)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	for _, want := range []string{
		"1\n00:00:00,000 --> 00:00:05,000\nen\n",
		"2\n00:16:40,000 --> 00:16:45,000\nto\n",
		"3\n00:33:20,000 --> 00:33:24,000\ntre\n",
	} {
		if !strings.Contains(string(srt), want) {
			t.Fatalf("srt missing %q:\n%s", want, srt)
		}
	}
	text, _ := os.ReadFile(result.TextPath)
	if string(text) != "en to tre" {
		t.Fatalf("unexpected text %q", text)
	}
	if filepath.Base(result.TextPath) != "transcript_"+id+".txt" {
		t.Fatalf("unexpected output name %s", result.TextPath)
	}

	task, _ := store.Get(id)
	if task.Status != model.StatusCompleted || task.Progress != 100 {
		t.Fatalf("unexpected final task %+v", task)
	}
	if task.EpisodeTitle != "Episode 3" || task.TotalChunks != 3 {
		t.Fatalf("unexpected task details %+v", task)
	}

	for _, chunkPath := range provider.paths {
		if _, err := os.Stat(chunkPath); !os.IsNotExist(err) {
			t.Fatalf("chunk %s not removed", chunkPath)
		}
	}
	entries, _ := os.ReadDir(p.WorkDir)
	if len(entries) != 0 {
		t.Fatalf("work dir not cleaned: %d entries", len(entries))
	}

	last := 0
	statuses := map[model.TaskStatus]bool{}
	for _, snap := range store.snapshots {
		if snap.Progress < last {
			t.Fatalf("progress decreased from %d to %d", last, snap.Progress)
		}
		last = snap.Progress
		statuses[snap.Status] = true
		if snap.Status != model.StatusCompleted && snap.Progress >= 100 {
			t.Fatalf("progress 100 before completion in %s", snap.Status)
		}
	}
	for _, s := range []model.TaskStatus{model.StatusDownloading, model.StatusSplitting, model.StatusTranscribing, model.StatusProcessing} {
		if !statuses[s] {
			t.Fatalf("status %s never reported", s)
		}
	}
}

func TestRunSmallEpisodeUsesWholeFile(t *testing.T) {
	provider := &scriptedProvider{results: []*stt.Result{{Transcript: "bare tekst"}}}
	p, store, id := newHarness(t,
		fakeFeed{episode: feed.Episode{Title: "Kort", AudioURL: "https://cdn.example.com/kort.m4a"}},
		sparseDownloader{size: 2 * mb},
		ffprobeReporting("120.0"),
		provider,
	)

	result, err := p.Run(context.Background(), Request{TaskID: id, OutputName: "episode"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(provider.paths) != 1 || filepath.Ext(provider.paths[0]) != ".m4a" {
		t.Fatalf("expected the original file to be transcribed, got %v", provider.paths)
	}
	srt, _ := os.ReadFile(result.SRTPath)
	if string(srt) != "1\n00:00:00,000 --> 00:00:01,000\nbare tekst\n\n" {
		t.Fatalf("unexpected fallback srt %q", srt)
	}
	if filepath.Base(result.SRTPath) != "episode.srt" {
		t.Fatalf("unexpected output name %s", result.SRTPath)
	}
	task, _ := store.Get(id)
	if task.Language != "no" {
		t.Fatalf("expected hint language, got %q", task.Language)
	}
}

func TestRunFeedWithoutAudioNeverLeavesStarting(t *testing.T) {
	provider := &scriptedProvider{}
	p, store, id := newHarness(t, fakeFeed{err: feed.ErrNoAudio}, sparseDownloader{size: mb}, ffprobeReporting("60"), provider)

	_, err := p.Run(context.Background(), Request{TaskID: id})
	if KindOf(err) != KindFeed {
		t.Fatalf("expected KindFeed, got %v (%v)", KindOf(err), err)
	}
	if !errors.Is(err, feed.ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio in chain, got %v", err)
	}
	for _, snap := range store.snapshots {
		if snap.Status != model.StatusStarting && snap.Status != model.StatusError {
			t.Fatalf("task passed starting: %s", snap.Status)
		}
	}
	task, _ := store.Get(id)
	if task.Status != model.StatusError || !strings.Contains(task.Error, "no audio") {
		t.Fatalf("unexpected task %+v", task)
	}
	if len(provider.paths) != 0 {
		t.Fatal("backend must not be called")
	}
}

func TestRunDownloadFailure(t *testing.T) {
	p, store, id := newHarness(t,
		fakeFeed{episode: feed.Episode{AudioURL: "https://cdn.example.com/a.mp3"}},
		sparseDownloader{err: download.ErrBadStatus},
		ffprobeReporting("60"),
		&scriptedProvider{},
	)
	_, err := p.Run(context.Background(), Request{TaskID: id})
	if KindOf(err) != KindDownload {
		t.Fatalf("expected KindDownload, got %v", KindOf(err))
	}
	task, _ := store.Get(id)
	if task.Status != model.StatusError {
		t.Fatalf("expected error status, got %s", task.Status)
	}
}

func TestRunBackendFailureCleansUp(t *testing.T) {
	provider := &scriptedProvider{results: []*stt.Result{segs(5, "en")}, failAt: 2}
	p, store, id := newHarness(t,
		fakeFeed{episode: feed.Episode{AudioURL: "https://cdn.example.com/ep.mp3"}},
		sparseDownloader{size: 50 * mb},
		ffprobeReporting("3000"),
		provider,
	)

	_, err := p.Run(context.Background(), Request{TaskID: id})
	if KindOf(err) != KindBackend {
		t.Fatalf("expected KindBackend, got %v", KindOf(err))
	}
	task, _ := store.Get(id)
	if task.Status != model.StatusError || !strings.Contains(task.Error, "429") {
		t.Fatalf("unexpected task %+v", task)
	}
	entries, _ := os.ReadDir(p.WorkDir)
	if len(entries) != 0 {
		t.Fatalf("transient files left: %d", len(entries))
	}
	if _, err := os.Stat(p.OutputDir); !os.IsNotExist(err) {
		t.Fatalf("no output expected on failure, got %v", err)
	}
}

func TestRunWriteFailureIsFatal(t *testing.T) {
	provider := &scriptedProvider{results: []*stt.Result{segs(3, "hei")}}
	p, store, id := newHarness(t,
		fakeFeed{episode: feed.Episode{AudioURL: "https://cdn.example.com/ep.mp3"}},
		sparseDownloader{size: mb},
		ffprobeReporting("60"),
		provider,
	)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	p.OutputDir = blocker

	_, err := p.Run(context.Background(), Request{TaskID: id})
	if KindOf(err) != KindIO {
		t.Fatalf("expected KindIO, got %v (%v)", KindOf(err), err)
	}
	task, _ := store.Get(id)
	if task.Status != model.StatusError || task.Error == "" {
		t.Fatalf("unexpected task %+v", task)
	}
	if _, ok := store.Result(id); ok {
		t.Fatal("no result expected after a write failure")
	}
	entries, _ := os.ReadDir(p.WorkDir)
	if len(entries) != 0 {
		t.Fatalf("transient files left: %d", len(entries))
	}
}

type panickingProvider struct{}

func (panickingProvider) Name() string { return "panicking" }

func (panickingProvider) Transcribe(context.Context, string, stt.Options) (*stt.Result, error) {
	var counts map[string]int
	counts["chunk"]++
	return nil, nil
}

func TestRunPanicMovesTaskToError(t *testing.T) {
	p, store, id := newHarness(t,
		fakeFeed{episode: feed.Episode{AudioURL: "https://cdn.example.com/ep.mp3"}},
		sparseDownloader{size: 50 * mb},
		ffprobeReporting("3000"),
		panickingProvider{},
	)

	pool := worker.NewPool(1, 1)
	pool.Start(context.Background())
	errs := make(chan error, 1)
	if err := pool.Submit(func(ctx context.Context) error {
		_, err := p.Run(ctx, Request{TaskID: id})
		errs <- err
		return err
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	err := <-errs
	if err := pool.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("expected panic error, got %v", err)
	}
	task, _ := store.Get(id)
	if task.Status != model.StatusError || !strings.Contains(task.Error, "panic") {
		t.Fatalf("task should be in error state, got %+v", task)
	}
	entries, _ := os.ReadDir(p.WorkDir)
	if len(entries) != 0 {
		t.Fatalf("transient files left: %d", len(entries))
	}
}

func TestProgressMapping(t *testing.T) {
	if DownloadProgress(50) != 2 || DownloadProgress(100) != 5 || DownloadProgress(-1) != 0 {
		t.Fatal("unexpected download progress mapping")
	}
	if ChunkProgress(0, 3) != 10 || ChunkProgress(1, 3) != 30 || ChunkProgress(2, 3) != 50 || ChunkProgress(3, 3) != 70 {
		t.Fatal("unexpected chunk progress mapping")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatal("plain error should be unknown")
	}
	err := newError(KindIO, "write transcript", os.ErrPermission)
	if KindOf(err) != KindIO || KindIO.String() != "io" {
		t.Fatalf("unexpected kind for %v", err)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Fatal("cause lost")
	}
}
