package audio

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// DefaultCeiling is the largest chunk the hosted backend accepts, with margin.
const DefaultCeiling int64 = 24 * bytesPerMB

const defaultBitRate = "128k"

// Chunk is one contiguous slice of an asset's timeline, [StartMs, EndMs).
type Chunk struct {
	Index     int
	StartMs   int64
	EndMs     int64
	Path      string
	SizeBytes int64
}

// String returns a short description for logs.
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d: %s-%s", c.Index, formatFFmpegTime(c.StartMs), formatFFmpegTime(c.EndMs))
}

// Splitter cuts assets larger than Ceiling into equal-time MP3 chunks.
type Splitter struct {
	FFmpegBin string
	Ceiling   int64
	Run       CommandRunner
}

// NewSplitter returns a Splitter using ffmpeg and the given byte ceiling.
func NewSplitter(ffmpegBin string, ceiling int64) *Splitter {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Splitter{FFmpegBin: ffmpegBin, Ceiling: ceiling, Run: ExecRunner}
}

// ChunkCount is the number of pieces needed for size bytes under ceiling.
// Sizes at or below the ceiling need a single piece.
func ChunkCount(size, ceiling int64) int {
	if ceiling <= 0 || size <= ceiling {
		return 1
	}
	return int(size/ceiling) + 1
}

// PlanChunks divides [0, totalMs) into n contiguous intervals of equal
// length. The last interval absorbs the integer-division remainder.
func PlanChunks(totalMs int64, n int) []Chunk {
	if n < 1 {
		n = 1
	}
	if totalMs < 0 {
		totalMs = 0
	}
	step := totalMs / int64(n)
	chunks := make([]Chunk, n)
	for i := range chunks {
		start := int64(i) * step
		end := start + step
		if i == n-1 {
			end = totalMs
		}
		chunks[i] = Chunk{Index: i, StartMs: start, EndMs: end}
	}
	return chunks
}

// Whole returns the single chunk covering the entire asset unchanged.
func Whole(asset Asset) []Chunk {
	return []Chunk{{
		Index:     0,
		StartMs:   0,
		EndMs:     asset.TotalMs(),
		Path:      asset.Path,
		SizeBytes: asset.SizeBytes,
	}}
}

// Split returns the ordered chunks for asset, rendering them into dir.
// Failures never escape: partial output is removed and the whole asset is
// returned as one chunk. An estimated duration cannot place cut points, so
// it degrades the same way. After a successful split the original file is
// removed.
func (s *Splitter) Split(ctx context.Context, asset Asset, dir string) []Chunk {
	ceiling := s.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	n := ChunkCount(asset.SizeBytes, ceiling)
	if n == 1 {
		return Whole(asset)
	}

	if asset.DurationEstimated {
		log.Printf("[Splitter] WARNING: duration of %s is estimated, using whole file", asset.Path)
		return Whole(asset)
	}

	chunks, err := s.render(ctx, asset, dir, n, ceiling)
	if err != nil {
		log.Printf("[Splitter] WARNING: splitting %s into %d chunks failed, using whole file: %v", asset.Path, n, err)
		return Whole(asset)
	}

	if err := os.Remove(asset.Path); err != nil && !os.IsNotExist(err) {
		log.Printf("[Splitter] failed to remove original %s: %v", asset.Path, err)
	}
	log.Printf("[Splitter] split %s (%s) into %d chunks", filepath.Base(asset.Path), humanize.IBytes(uint64(asset.SizeBytes)), n)
	return chunks
}

func (s *Splitter) render(ctx context.Context, asset Asset, dir string, n int, ceiling int64) ([]Chunk, error) {
	totalMs := asset.TotalMs()
	if totalMs <= 0 {
		return nil, fmt.Errorf("unknown duration")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(asset.Path), filepath.Ext(asset.Path))
	bitRate := encodingBitRate(asset.BitRate)
	planned := PlanChunks(totalMs, n)
	rendered := make([]Chunk, 0, n)

	cleanup := func() {
		for _, c := range rendered {
			_ = os.Remove(c.Path)
		}
	}

	for _, chunk := range planned {
		chunk.Path = filepath.Join(dir, fmt.Sprintf("%s_chunk_%03d.mp3", base, chunk.Index))
		last := chunk.Index == n-1
		if err := s.extract(ctx, asset.Path, chunk, bitRate, last); err != nil {
			_ = os.Remove(chunk.Path)
			cleanup()
			return nil, err
		}
		info, err := os.Stat(chunk.Path)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("stat %s: %w", chunk.Path, err)
		}
		chunk.SizeBytes = info.Size()
		if chunk.SizeBytes > ceiling {
			log.Printf("[Splitter] %s is %s, above the ceiling", chunk, humanize.IBytes(uint64(chunk.SizeBytes)))
		}
		rendered = append(rendered, chunk)
	}
	return rendered, nil
}

// extract renders one chunk. The last chunk has no end time so ffmpeg reads
// to the end of the stream.
func (s *Splitter) extract(ctx context.Context, source string, chunk Chunk, bitRate string, last bool) error {
	binary := strings.TrimSpace(s.FFmpegBin)
	if binary == "" {
		binary = "ffmpeg"
	}
	run := s.Run
	if run == nil {
		run = ExecRunner
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", source,
		"-ss", formatFFmpegTime(chunk.StartMs),
	}
	if !last {
		args = append(args, "-to", formatFFmpegTime(chunk.EndMs))
	}
	args = append(args, chunkEncodingArgs(bitRate)...)
	args = append(args, chunk.Path)

	output, err := run(ctx, binary, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", chunk, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func chunkEncodingArgs(bitRate string) []string {
	return []string{"-vn", "-map_metadata", "-1", "-c:a", "libmp3lame", "-b:a", bitRate}
}

func encodingBitRate(bitsPerSecond int64) string {
	if bitsPerSecond < 1000 {
		return defaultBitRate
	}
	return fmt.Sprintf("%dk", bitsPerSecond/1000)
}

// formatFFmpegTime renders milliseconds as HH:MM:SS.mmm.
func formatFFmpegTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := (ms % 3_600_000) / 60_000
	sec := (ms % 60_000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, sec, ms%1000)
}
