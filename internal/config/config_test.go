package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"CONFIG_FILE", "PORT", "STT_PROVIDER", "OPENAI_API_KEY", "OPENAI_BASE_URL",
	"OPENAI_MODEL", "WHISPER_BIN", "WHISPER_MODEL", "WHISPER_DEVICE",
	"WHISPER_COMPUTE_TYPE", "FFMPEG_BIN", "FFPROBE_BIN", "TRANSCRIBE_LANGUAGE",
	"TRANSCRIBE_PROMPT", "MAX_CHUNK_MB", "WORK_DIR", "OUTPUT_DIR", "WORKERS",
	"QUEUE_SIZE", "TASK_TTL", "DOWNLOAD_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultsWithKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.STTProvider != ProviderOpenAI {
		t.Fatalf("expected openai provider, got %q", cfg.STTProvider)
	}
	if cfg.Language != "no" {
		t.Fatalf("expected default language no, got %q", cfg.Language)
	}
	if got := cfg.MaxChunkBytes(); got != 24*1024*1024 {
		t.Fatalf("unexpected ceiling %d", got)
	}
}

func TestLoadRequiresOpenAIKey(t *testing.T) {
	clearEnv(t)

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error without OPENAI_API_KEY")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadWhisperProviderWithoutKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("STT_PROVIDER", "Whisper")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.STTProvider != ProviderWhisper {
		t.Fatalf("expected whisper provider, got %q", cfg.STTProvider)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("STT_PROVIDER", "fpt")

	if _, err := Load(""); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "podscribe.toml")
	content := `
port = "9000"
stt_provider = "whisper"
whisper_model = "medium"
max_chunk_mb = 10
workers = 3
task_ttl = "90m"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PORT", "7000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7000" {
		t.Fatalf("env should override file port, got %q", cfg.Port)
	}
	if cfg.WhisperModel != "medium" {
		t.Fatalf("expected file whisper model, got %q", cfg.WhisperModel)
	}
	if cfg.MaxChunkMB != 10 || cfg.Workers != 3 {
		t.Fatalf("unexpected numeric settings: %+v", cfg)
	}
	if cfg.TaskTTL != 90*time.Minute {
		t.Fatalf("unexpected ttl %v", cfg.TaskTTL)
	}
	if cfg.WhisperBin != "whisper-ctranslate2" {
		t.Fatalf("default whisper bin should survive, got %q", cfg.WhisperBin)
	}
}

func TestLoadFromConfigFileEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "c.toml")
	if err := os.WriteFile(path, []byte("openai_api_key = \"sk-file\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenAIKey != "sk-file" {
		t.Fatalf("expected key from file, got %q", cfg.OpenAIKey)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	cases := map[string]string{
		"MAX_CHUNK_MB": "lots",
		"WORKERS":      "0",
		"TASK_TTL":     "forever",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("OPENAI_API_KEY", "sk-test")
			t.Setenv(key, value)
			if _, err := Load(""); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
