package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TranscriberBackend  = "backend"
	TranscriberDeepgram = "deepgram"
)

// Config stores runtime configuration for the voice chat client.
type Config struct {
	Backend       BackendConfig       `yaml:"backend"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Deepgram      DeepgramConfig      `yaml:"deepgram"`
	Audio         AudioConfig         `yaml:"audio"`
	Session       SessionConfig       `yaml:"session"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type BackendConfig struct {
	BaseURL          string `yaml:"base_url"`
	ChatPath         string `yaml:"chat_path"`
	TranscribePath   string `yaml:"transcribe_path"`
	APIKey           string `yaml:"api_key"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
}

// RequestTimeout is the per-request deadline applied to backend calls.
func (b BackendConfig) RequestTimeout() time.Duration {
	return time.Duration(b.RequestTimeoutMS) * time.Millisecond
}

type TranscriptionConfig struct {
	Provider string `yaml:"provider"`
}

type DeepgramConfig struct {
	APIKey      string `yaml:"api_key"`
	APIBaseURL  string `yaml:"api_base"`
	Model       string `yaml:"model"`
	Language    string `yaml:"language"`
	SmartFormat bool   `yaml:"smart_format"`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"ffmpeg_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
}

type SessionConfig struct {
	ChunkSize int `yaml:"chunk_size"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:          "http://localhost:8765",
			ChatPath:         "/chat",
			TranscribePath:   "/realtime/transcribe",
			RequestTimeoutMS: 60000,
		},
		Transcription: TranscriptionConfig{Provider: TranscriberBackend},
		Deepgram: DeepgramConfig{
			APIBaseURL:  "https://api.deepgram.com/v1",
			Model:       "nova-2",
			SmartFormat: true,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
		},
		Session: SessionConfig{ChunkSize: 4096},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load resolves configuration from defaults, the optional VOICECHAT_CONFIG
// YAML file and environment variables, in that order.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("VOICECHAT_CONFIG")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Backend.BaseURL = envOrDefault("VOICECHAT_BACKEND_URL", cfg.Backend.BaseURL)
	cfg.Backend.ChatPath = envOrDefault("VOICECHAT_CHAT_PATH", cfg.Backend.ChatPath)
	cfg.Backend.TranscribePath = envOrDefault("VOICECHAT_TRANSCRIBE_PATH", cfg.Backend.TranscribePath)
	cfg.Backend.APIKey = envOrDefault("VOICECHAT_API_KEY", cfg.Backend.APIKey)
	cfg.Backend.RequestTimeoutMS = envOrDefaultInt("VOICECHAT_REQUEST_TIMEOUT_MS", cfg.Backend.RequestTimeoutMS)

	cfg.Transcription.Provider = envOrDefault("VOICECHAT_TRANSCRIBER", cfg.Transcription.Provider)

	cfg.Deepgram.APIKey = envOrDefault("DEEPGRAM_API_KEY", cfg.Deepgram.APIKey)
	cfg.Deepgram.APIBaseURL = envOrDefault("DEEPGRAM_API_BASE", cfg.Deepgram.APIBaseURL)
	cfg.Deepgram.Model = envOrDefault("DEEPGRAM_MODEL", cfg.Deepgram.Model)
	cfg.Deepgram.Language = envOrDefault("DEEPGRAM_LANGUAGE", cfg.Deepgram.Language)
	cfg.Deepgram.SmartFormat = envOrDefaultBool("DEEPGRAM_SMART_FORMAT", cfg.Deepgram.SmartFormat)

	cfg.Audio.RecorderCommand = envOrDefault("VOICECHAT_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("VOICECHAT_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = envOrDefault("VOICECHAT_AUDIO_INPUT_DEVICE", cfg.Audio.InputDevice)
	cfg.Audio.SampleRate = envOrDefaultInt("VOICECHAT_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("VOICECHAT_CHANNELS", cfg.Audio.Channels)

	cfg.Session.ChunkSize = envOrDefaultInt("VOICECHAT_AUDIO_CHUNK_SIZE", cfg.Session.ChunkSize)

	cfg.Logging.Level = envOrDefault("VOICECHAT_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Development = envOrDefaultBool("VOICECHAT_LOG_DEVELOPMENT", cfg.Logging.Development)
	cfg.Logging.File = envOrDefault("VOICECHAT_LOG_FILE", cfg.Logging.File)
}

func normalize(cfg *Config) {
	defaults := Default()

	if strings.TrimSpace(cfg.Backend.BaseURL) == "" {
		cfg.Backend.BaseURL = defaults.Backend.BaseURL
	}
	if cfg.Backend.ChatPath == "" {
		cfg.Backend.ChatPath = defaults.Backend.ChatPath
	}
	if cfg.Backend.TranscribePath == "" {
		cfg.Backend.TranscribePath = defaults.Backend.TranscribePath
	}
	if cfg.Backend.RequestTimeoutMS <= 0 {
		cfg.Backend.RequestTimeoutMS = defaults.Backend.RequestTimeoutMS
	}

	switch provider := strings.ToLower(strings.TrimSpace(cfg.Transcription.Provider)); provider {
	case TranscriberBackend, TranscriberDeepgram:
		cfg.Transcription.Provider = provider
	default:
		cfg.Transcription.Provider = TranscriberBackend
	}

	if cfg.Audio.RecorderCommand == "" {
		cfg.Audio.RecorderCommand = defaults.Audio.RecorderCommand
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = defaults.Audio.SampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = defaults.Audio.Channels
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = defaults.Session.ChunkSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
