package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"podscribe/internal/audio"
	"podscribe/internal/transcript"
)

// WhisperConfig describes the local faster-whisper command line.
type WhisperConfig struct {
	Binary      string // whisper-ctranslate2 or a compatible CLI
	Model       string
	Device      string // auto|cpu|cuda
	ComputeType string
	BeamSize    int
	BestOf      int
}

// WhisperProvider runs a local faster-whisper CLI and reads its JSON output
type WhisperProvider struct {
	cfg WhisperConfig
	run audio.CommandRunner
}

// NewWhisperProvider creates a local Whisper provider
func NewWhisperProvider(cfg WhisperConfig) *WhisperProvider {
	if cfg.Binary == "" {
		cfg.Binary = "whisper-ctranslate2"
	}
	if cfg.Model == "" {
		cfg.Model = "large-v3"
	}
	if cfg.Device == "" {
		cfg.Device = "auto"
	}
	if cfg.ComputeType == "" {
		cfg.ComputeType = "int8"
	}
	if cfg.BeamSize <= 0 {
		cfg.BeamSize = 5
	}
	if cfg.BestOf <= 0 {
		cfg.BestOf = 5
	}
	return &WhisperProvider{cfg: cfg, run: audio.ExecRunner}
}

// WithCommandRunner replaces the process runner (for testing).
func (p *WhisperProvider) WithCommandRunner(run audio.CommandRunner) {
	p.run = run
}

// Name returns the provider name
func (p *WhisperProvider) Name() string {
	return "whisper"
}

type whisperOutput struct {
	Text                string  `json:"text"`
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
	Segments            []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe runs the CLI against audioPath in a scratch directory
func (p *WhisperProvider) Transcribe(ctx context.Context, audioPath string, opts Options) (*Result, error) {
	startTime := time.Now()
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}

	outDir, err := os.MkdirTemp("", "podscribe-whisper-*")
	if err != nil {
		return nil, fmt.Errorf("create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := p.buildArgs(audioPath, outDir, opts)
	log.Printf("[Whisper STT] Running %s on %s (model %s)", p.cfg.Binary, filepath.Base(audioPath), p.cfg.Model)
	if output, err := p.run(ctx, p.cfg.Binary, args...); err != nil {
		return &Result{Provider: p.Name()}, fmt.Errorf("%s: %w: %s", p.cfg.Binary, err, strings.TrimSpace(string(output)))
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	raw, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return &Result{Provider: p.Name()}, fmt.Errorf("read whisper output: %w", err)
	}
	var parsed whisperOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &Result{Provider: p.Name(), RawResponse: string(raw)}, fmt.Errorf("parse whisper output: %w", err)
	}

	segments := make([]transcript.Segment, 0, len(parsed.Segments))
	texts := make([]string, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		text := strings.TrimSpace(s.Text)
		segments = append(segments, transcript.Segment{Start: s.Start, End: s.End, Text: text})
		if text != "" {
			texts = append(texts, text)
		}
	}
	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		text = strings.Join(texts, " ")
	}

	confidence := parsed.LanguageProbability
	if confidence <= 0 || confidence > 1 {
		confidence = 1.0
	}
	language := parsed.Language
	if language == "" {
		language = opts.Language
	}

	log.Printf("[Whisper STT] Transcription successful: segments=%d, length=%d, duration=%v",
		len(segments), len(text), time.Since(startTime))

	return &Result{
		Transcript:  text,
		Segments:    segments,
		Language:    language,
		Confidence:  confidence,
		Provider:    p.Name(),
		RawResponse: string(raw),
	}, nil
}

func (p *WhisperProvider) buildArgs(audioPath, outDir string, opts Options) []string {
	args := []string{
		audioPath,
		"--model", p.cfg.Model,
		"--device", p.cfg.Device,
		"--compute_type", p.cfg.ComputeType,
		"--beam_size", strconv.Itoa(p.cfg.BeamSize),
		"--best_of", strconv.Itoa(p.cfg.BestOf),
		"--temperature", strconv.FormatFloat(float64(opts.Temperature), 'f', -1, 32),
		"--condition_on_previous_text", "True",
		"--output_format", "json",
		"--output_dir", outDir,
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	if opts.Prompt != "" {
		args = append(args, "--initial_prompt", opts.Prompt)
	}
	return args
}
