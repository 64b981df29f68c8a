package stt

import (
	"context"
	"errors"
)

// ErrUnsupportedProvider is returned by the factory for unknown backends.
var ErrUnsupportedProvider = errors.New("unsupported STT provider")

// Options tune a single transcription call.
type Options struct {
	Language    string  // ISO-639-1 hint, e.g. "no"
	Prompt      string  // initial prompt for vocabulary and style
	Temperature float32 // sampling temperature, 0 for deterministic output
}

// Provider defines the interface for speech-to-text providers
type Provider interface {
	// Transcribe transcribes one audio file. Segment times in the result are
	// relative to the start of that file.
	Transcribe(ctx context.Context, audioPath string, opts Options) (*Result, error)

	// Name returns the name of the provider (e.g., "openai", "whisper")
	Name() string
}
