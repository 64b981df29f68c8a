package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// bytesPerMB is the unit used by the size-based duration fallback and the
// chunk ceiling.
const bytesPerMB = 1024 * 1024

// CommandRunner executes an external binary and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands through os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Asset is a downloaded audio file awaiting transcription.
type Asset struct {
	Path              string
	SizeBytes         int64
	DurationSeconds   float64
	DurationEstimated bool
	BitRate           int64
}

// TotalMs is the asset duration truncated to milliseconds.
func (a Asset) TotalMs() int64 {
	if a.DurationSeconds <= 0 {
		return 0
	}
	return int64(a.DurationSeconds * 1000)
}

// Prober reads duration and bitrate from audio files with ffprobe.
type Prober struct {
	Binary string
	Run    CommandRunner
}

// NewProber returns a Prober using the given ffprobe binary.
func NewProber(binary string) *Prober {
	return &Prober{Binary: binary, Run: ExecRunner}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

// Probe builds an Asset for path. When ffprobe fails or reports no duration
// the duration is estimated from the file size at one minute per megabyte.
// Only a missing file is an error.
func (p *Prober) Probe(ctx context.Context, path string) (Asset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Asset{}, fmt.Errorf("stat audio: %w", err)
	}
	asset := Asset{Path: path, SizeBytes: info.Size()}

	duration, bitRate, err := p.inspect(ctx, path)
	if err != nil || duration <= 0 {
		asset.DurationSeconds = EstimateDuration(asset.SizeBytes)
		asset.DurationEstimated = true
		log.Printf("[Audio] duration probe failed for %s (%v), estimating %.0fs from %s",
			path, err, asset.DurationSeconds, humanize.IBytes(uint64(asset.SizeBytes)))
		return asset, nil
	}
	asset.DurationSeconds = duration
	asset.BitRate = bitRate
	return asset, nil
}

func (p *Prober) inspect(ctx context.Context, path string) (float64, int64, error) {
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = "ffprobe"
	}
	run := p.Run
	if run == nil {
		run = ExecRunner
	}
	output, err := run(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-of", "json", "--", path)
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(output)))
	}
	var parsed probeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return 0, 0, fmt.Errorf("ffprobe parse: %w", err)
	}
	duration := parseFloat(parsed.Format.Duration)
	if math.IsNaN(duration) {
		return 0, 0, fmt.Errorf("ffprobe duration %q", parsed.Format.Duration)
	}
	rate := parseFloat(parsed.Format.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		rate = 0
	}
	return duration, int64(rate), nil
}

// EstimateDuration approximates seconds of audio from a byte size.
func EstimateDuration(sizeBytes int64) float64 {
	if sizeBytes <= 0 {
		return 0
	}
	return float64(sizeBytes) / bytesPerMB * 60
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
