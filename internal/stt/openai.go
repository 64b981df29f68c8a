package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sashabaranov/go-openai"

	"podscribe/internal/transcript"
)

// OpenAIProvider implements STT using the hosted Whisper transcription API
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI STT provider. An empty baseURL uses
// the public API endpoint.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Transcribe uploads the audio file and returns text with segment timings
func (p *OpenAIProvider) Transcribe(ctx context.Context, audioPath string, opts Options) (*Result, error) {
	startTime := time.Now()

	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	log.Printf("[OpenAI STT] Processing audio file: %s, size: %s", audioPath, humanize.IBytes(uint64(info.Size())))

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       p.model,
		FilePath:    audioPath,
		Prompt:      opts.Prompt,
		Temperature: opts.Temperature,
		Language:    opts.Language,
		Format:      openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		log.Printf("[OpenAI STT] API error: %v", err)
		return &Result{Provider: p.Name()}, fmt.Errorf("openai transcription failed: %w", err)
	}

	raw, _ := json.Marshal(resp)
	segments := make([]transcript.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, transcript.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}

	text := strings.TrimSpace(resp.Text)
	log.Printf("[OpenAI STT] Transcription successful: segments=%d, length=%d, language=%s, duration=%v",
		len(segments), len(text), resp.Language, time.Since(startTime))

	// The API reports no confidence; the result is treated as certain.
	return &Result{
		Transcript:  text,
		Segments:    segments,
		Language:    resp.Language,
		Confidence:  1.0,
		Provider:    p.Name(),
		RawResponse: string(raw),
	}, nil
}
