package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the capture-and-publish core.
type Config struct {
	Server  ServerConfig
	Audio   AudioConfig
	Model   ModelConfig
	Session SessionConfig
	Sync    SyncConfig
}

type ServerConfig struct {
	DefaultURL string
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type ModelConfig struct {
	Command     string
	DownloadURL string
	FileName    string
	Dir         string
}

type SessionConfig struct {
	DataDir     string
	AudioDir    string
	SettleDone  time.Duration
	SettleError time.Duration
}

type SyncConfig struct {
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
}

// Load resolves configuration from the environment and sensible defaults.
// A .env file next to the binary is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	dataDir := strings.TrimSpace(os.Getenv("LECTERN_DATA_DIR"))
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, errors.New("could not determine home directory")
		}
		dataDir = filepath.Join(home, ".local", "share", "lectern")
	}

	cfg := Config{
		Server: ServerConfig{
			DefaultURL: envOrDefault("LECTERN_SERVER_URL", "http://localhost:3000"),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("LECTERN_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("LECTERN_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("LECTERN_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("LECTERN_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("LECTERN_CHANNELS", 1),
		},
		Model: ModelConfig{
			Command:     envOrDefault("LECTERN_WHISPER_COMMAND", "whisper-cli"),
			DownloadURL: envOrDefault("LECTERN_MODEL_URL", "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin"),
			FileName:    envOrDefault("LECTERN_MODEL_FILE", "ggml-base.en.bin"),
			Dir:         filepath.Join(dataDir, "models"),
		},
		Session: SessionConfig{
			DataDir:     dataDir,
			AudioDir:    filepath.Join(dataDir, "audio"),
			SettleDone:  time.Duration(envOrDefaultInt("LECTERN_SETTLE_DONE_MS", 2000)) * time.Millisecond,
			SettleError: time.Duration(envOrDefaultInt("LECTERN_SETTLE_ERROR_MS", 3000)) * time.Millisecond,
		},
		Sync: SyncConfig{
			ProbeInterval: time.Duration(envOrDefaultInt("LECTERN_PROBE_INTERVAL_S", 30)) * time.Second,
			ProbeTimeout:  time.Duration(envOrDefaultInt("LECTERN_PROBE_TIMEOUT_S", 5)) * time.Second,
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Sync.ProbeInterval <= 0 {
		cfg.Sync.ProbeInterval = 30 * time.Second
	}
	if cfg.Sync.ProbeTimeout <= 0 {
		cfg.Sync.ProbeTimeout = 5 * time.Second
	}

	return cfg, nil
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
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
