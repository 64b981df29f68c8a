package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	ProviderOpenAI  = "openai"
	ProviderWhisper = "whisper"
)

type Config struct {
	Port string

	STTProvider   string
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	WhisperBin         string
	WhisperModel       string
	WhisperDevice      string
	WhisperComputeType string

	FFmpegBin  string
	FFprobeBin string

	Language   string
	Prompt     string
	MaxChunkMB int

	WorkDir   string
	OutputDir string

	Workers         int
	QueueSize       int
	TaskTTL         time.Duration
	DownloadTimeout time.Duration
}

// Default returns the built-in configuration before file and env overrides.
func Default() *Config {
	return &Config{
		Port:               "8080",
		STTProvider:        ProviderOpenAI,
		OpenAIModel:        "whisper-1",
		WhisperBin:         "whisper-ctranslate2",
		WhisperModel:       "large-v3",
		WhisperDevice:      "auto",
		WhisperComputeType: "int8",
		FFmpegBin:          "ffmpeg",
		FFprobeBin:         "ffprobe",
		Language:           "no",
		Prompt:             "Dette er en podcast-episode på norsk.",
		MaxChunkMB:         24,
		WorkDir:            "work",
		OutputDir:          "transcripts",
		Workers:            2,
		QueueSize:          16,
		TaskTTL:            6 * time.Hour,
		DownloadTimeout:    30 * time.Minute,
	}
}

// Load builds the configuration from defaults, an optional TOML file and
// environment variables, in that order of precedence (env wins).
// An empty path falls back to CONFIG_FILE.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc.apply(c)
}

// fileConfig mirrors Config for TOML decoding. Durations are written as
// strings ("90s", "6h") in the file.
type fileConfig struct {
	Port               string `toml:"port"`
	STTProvider        string `toml:"stt_provider"`
	OpenAIKey          string `toml:"openai_api_key"`
	OpenAIBaseURL      string `toml:"openai_base_url"`
	OpenAIModel        string `toml:"openai_model"`
	WhisperBin         string `toml:"whisper_bin"`
	WhisperModel       string `toml:"whisper_model"`
	WhisperDevice      string `toml:"whisper_device"`
	WhisperComputeType string `toml:"whisper_compute_type"`
	FFmpegBin          string `toml:"ffmpeg_bin"`
	FFprobeBin         string `toml:"ffprobe_bin"`
	Language           string `toml:"language"`
	Prompt             string `toml:"prompt"`
	MaxChunkMB         int    `toml:"max_chunk_mb"`
	WorkDir            string `toml:"work_dir"`
	OutputDir          string `toml:"output_dir"`
	Workers            int    `toml:"workers"`
	QueueSize          int    `toml:"queue_size"`
	TaskTTL            string `toml:"task_ttl"`
	DownloadTimeout    string `toml:"download_timeout"`
}

func (fc fileConfig) apply(c *Config) error {
	setString(&c.Port, fc.Port)
	setString(&c.STTProvider, strings.ToLower(fc.STTProvider))
	setString(&c.OpenAIKey, fc.OpenAIKey)
	setString(&c.OpenAIBaseURL, fc.OpenAIBaseURL)
	setString(&c.OpenAIModel, fc.OpenAIModel)
	setString(&c.WhisperBin, fc.WhisperBin)
	setString(&c.WhisperModel, fc.WhisperModel)
	setString(&c.WhisperDevice, fc.WhisperDevice)
	setString(&c.WhisperComputeType, fc.WhisperComputeType)
	setString(&c.FFmpegBin, fc.FFmpegBin)
	setString(&c.FFprobeBin, fc.FFprobeBin)
	setString(&c.Language, fc.Language)
	setString(&c.Prompt, fc.Prompt)
	setString(&c.WorkDir, fc.WorkDir)
	setString(&c.OutputDir, fc.OutputDir)
	if fc.MaxChunkMB != 0 {
		c.MaxChunkMB = fc.MaxChunkMB
	}
	if fc.Workers != 0 {
		c.Workers = fc.Workers
	}
	if fc.QueueSize != 0 {
		c.QueueSize = fc.QueueSize
	}
	if fc.TaskTTL != "" {
		d, err := time.ParseDuration(fc.TaskTTL)
		if err != nil {
			return fmt.Errorf("config task_ttl: %w", err)
		}
		c.TaskTTL = d
	}
	if fc.DownloadTimeout != "" {
		d, err := time.ParseDuration(fc.DownloadTimeout)
		if err != nil {
			return fmt.Errorf("config download_timeout: %w", err)
		}
		c.DownloadTimeout = d
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.STTProvider = strings.ToLower(getEnv("STT_PROVIDER", c.STTProvider))
	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)
	c.WhisperBin = getEnv("WHISPER_BIN", c.WhisperBin)
	c.WhisperModel = getEnv("WHISPER_MODEL", c.WhisperModel)
	c.WhisperDevice = getEnv("WHISPER_DEVICE", c.WhisperDevice)
	c.WhisperComputeType = getEnv("WHISPER_COMPUTE_TYPE", c.WhisperComputeType)
	c.FFmpegBin = getEnv("FFMPEG_BIN", c.FFmpegBin)
	c.FFprobeBin = getEnv("FFPROBE_BIN", c.FFprobeBin)
	c.Language = getEnv("TRANSCRIBE_LANGUAGE", c.Language)
	c.Prompt = getEnv("TRANSCRIBE_PROMPT", c.Prompt)
	c.WorkDir = getEnv("WORK_DIR", c.WorkDir)
	c.OutputDir = getEnv("OUTPUT_DIR", c.OutputDir)

	var err error
	if c.MaxChunkMB, err = getEnvInt("MAX_CHUNK_MB", c.MaxChunkMB); err != nil {
		return err
	}
	if c.Workers, err = getEnvInt("WORKERS", c.Workers); err != nil {
		return err
	}
	if c.QueueSize, err = getEnvInt("QUEUE_SIZE", c.QueueSize); err != nil {
		return err
	}
	if c.TaskTTL, err = getEnvDuration("TASK_TTL", c.TaskTTL); err != nil {
		return err
	}
	if c.DownloadTimeout, err = getEnvDuration("DOWNLOAD_TIMEOUT", c.DownloadTimeout); err != nil {
		return err
	}
	return nil
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	switch c.STTProvider {
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when STT_PROVIDER=%s", ProviderOpenAI)
		}
	case ProviderWhisper:
		if c.WhisperBin == "" {
			return fmt.Errorf("WHISPER_BIN is required when STT_PROVIDER=%s", ProviderWhisper)
		}
	default:
		return fmt.Errorf("unsupported STT_PROVIDER %q (supported: %s, %s)", c.STTProvider, ProviderOpenAI, ProviderWhisper)
	}
	if c.MaxChunkMB <= 0 {
		return fmt.Errorf("MAX_CHUNK_MB must be positive, got %d", c.MaxChunkMB)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("QUEUE_SIZE must not be negative, got %d", c.QueueSize)
	}
	return nil
}

// MaxChunkBytes is the splitter ceiling in bytes.
func (c *Config) MaxChunkBytes() int64 {
	return int64(c.MaxChunkMB) * 1024 * 1024
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 90s or 6h: %w", key, err)
	}
	return d, nil
}
