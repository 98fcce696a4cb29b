package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

const (
	CaptureFFMPEG    = "ffmpeg"
	CapturePortAudio = "portaudio"

	PlaybackBeep      = "beep"
	PlaybackPortAudio = "portaudio"
)

// Config stores runtime configuration for the assistant client and the local stub.
type Config struct {
	Service ServiceConfig
	Audio   AudioConfig
	Storage StorageConfig
	Log     LogConfig
	Stub    StubConfig
}

type ServiceConfig struct {
	BaseURL     string
	HTTPTimeout time.Duration
	TurnTimeout time.Duration
	SOCKSProxy  string
}

type AudioConfig struct {
	CaptureBackend  string
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	PlaybackBackend string
}

type StorageConfig struct {
	CacheDir     string
	RecordingDir string
}

type LogConfig struct {
	Level string
}

type StubConfig struct {
	Addr string
}

// Load reads an optional .env file and resolves configuration from environment
// variables and sensible defaults. Variables already set in the environment win
// over the file.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cacheDir := strings.TrimSpace(os.Getenv("MAITRI_CACHE_DIR"))
	if cacheDir == "" {
		cacheDir = defaultCacheDir()
	}

	cfg := Config{
		Service: ServiceConfig{
			BaseURL:     strings.TrimRight(envOrDefault("MAITRI_API_BASE", "http://localhost:8000"), "/"),
			HTTPTimeout: time.Duration(firstNonNegativeInt("MAITRI_HTTP_TIMEOUT_MS", 30000)) * time.Millisecond,
			TurnTimeout: time.Duration(firstNonNegativeInt("MAITRI_TURN_TIMEOUT_MS", 60000)) * time.Millisecond,
			SOCKSProxy:  strings.TrimSpace(os.Getenv("MAITRI_SOCKS_PROXY")),
		},
		Audio: AudioConfig{
			CaptureBackend:  strings.ToLower(envOrDefault("MAITRI_CAPTURE_BACKEND", CaptureFFMPEG)),
			RecorderCommand: envOrDefault("MAITRI_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("MAITRI_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("MAITRI_AUDIO_INPUT_DEVICE"),
				os.Getenv("PULSE_SOURCE"),
				"default",
			),
			SampleRate:      envOrDefaultInt("MAITRI_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("MAITRI_CHANNELS", 1),
			FramesPerBuffer: envOrDefaultInt("MAITRI_FRAMES_PER_BUFFER", 1024),
			PlaybackBackend: strings.ToLower(envOrDefault("MAITRI_PLAYBACK_BACKEND", PlaybackBeep)),
		},
		Storage: StorageConfig{
			CacheDir:     cacheDir,
			RecordingDir: filepath.Join(cacheDir, "recordings"),
		},
		Log: LogConfig{
			Level: strings.ToLower(envOrDefault("MAITRI_LOG_LEVEL", "info")),
		},
		Stub: StubConfig{
			Addr: envOrDefault("MAITRI_STUB_ADDR", "127.0.0.1:8000"),
		},
	}

	if cfg.Service.HTTPTimeout <= 0 {
		cfg.Service.HTTPTimeout = 30 * time.Second
	}
	if cfg.Service.TurnTimeout <= 0 {
		cfg.Service.TurnTimeout = time.Minute
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.FramesPerBuffer < 64 {
		cfg.Audio.FramesPerBuffer = 1024
	}

	if !lo.Contains([]string{CaptureFFMPEG, CapturePortAudio}, cfg.Audio.CaptureBackend) {
		return Config{}, fmt.Errorf("unknown MAITRI_CAPTURE_BACKEND %q", cfg.Audio.CaptureBackend)
	}
	if !lo.Contains([]string{PlaybackBeep, PlaybackPortAudio}, cfg.Audio.PlaybackBackend) {
		return Config{}, fmt.Errorf("unknown MAITRI_PLAYBACK_BACKEND %q", cfg.Audio.PlaybackBackend)
	}

	return cfg, nil
}

// loadEnvFile loads MAITRI_ENV_FILE, or ./.env when it exists.
func loadEnvFile() error {
	path := strings.TrimSpace(os.Getenv("MAITRI_ENV_FILE"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "maitri")
	}
	return filepath.Join(os.TempDir(), "maitri")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
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

func firstNonNegativeInt(key string, fallback int) int {
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
