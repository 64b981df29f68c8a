package stt

import (
	"fmt"
	"log"
	"strings"

	"podscribe/internal/config"
)

// CreateProvider creates an STT provider based on configuration
func CreateProvider(cfg *config.Config) (Provider, error) {
	providerName := strings.ToLower(cfg.STTProvider)

	if providerName == "" {
		providerName = config.ProviderOpenAI
		log.Printf("[STT Factory] STT_PROVIDER not set, defaulting to '%s'", providerName)
	}

	switch providerName {
	case config.ProviderOpenAI:
		return createOpenAIProvider(cfg)
	case config.ProviderWhisper:
		return createWhisperProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: %s. Supported: %s, %s", ErrUnsupportedProvider, providerName, config.ProviderOpenAI, config.ProviderWhisper)
	}
}

// createOpenAIProvider creates the hosted Whisper provider
func createOpenAIProvider(cfg *config.Config) (Provider, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if cfg.OpenAIBaseURL != "" {
		log.Printf("[STT Factory] Creating OpenAI STT provider (model %s, base URL %s)", cfg.OpenAIModel, cfg.OpenAIBaseURL)
	} else {
		log.Printf("[STT Factory] Creating OpenAI STT provider (model %s)", cfg.OpenAIModel)
	}
	return NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
}

// createWhisperProvider creates the local faster-whisper provider
func createWhisperProvider(cfg *config.Config) (Provider, error) {
	if cfg.WhisperBin == "" {
		return nil, fmt.Errorf("WHISPER_BIN is not set")
	}
	log.Printf("[STT Factory] Creating local Whisper provider (%s, model %s, device %s, compute %s)",
		cfg.WhisperBin, cfg.WhisperModel, cfg.WhisperDevice, cfg.WhisperComputeType)
	return NewWhisperProvider(WhisperConfig{
		Binary:      cfg.WhisperBin,
		Model:       cfg.WhisperModel,
		Device:      cfg.WhisperDevice,
		ComputeType: cfg.WhisperComputeType,
	}), nil
}
