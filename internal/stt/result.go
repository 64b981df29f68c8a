package stt

import "podscribe/internal/transcript"

// Result represents the result of a speech-to-text transcription
type Result struct {
	Transcript  string               // The transcribed text
	Segments    []transcript.Segment // Timed segments, local to the transcribed file
	Language    string               // Language reported by the backend, may be empty
	Confidence  float64              // Confidence score (0.0-1.0)
	Provider    string               // The provider used (e.g., "openai", "whisper")
	RawResponse string               // Raw response from the provider (for debugging/logging)
}
