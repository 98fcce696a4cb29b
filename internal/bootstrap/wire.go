package bootstrap

import (
	"fmt"
	"log/slog"
	"os"

	"maitri/internal/audio"
	"maitri/internal/config"
	"maitri/internal/domain"
	"maitri/internal/logging"
	"maitri/internal/ports"
	"maitri/internal/schemeapi"
	"maitri/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.ConversationController
	Client     *schemeapi.Client
	Config     config.Config
	Logger     *slog.Logger
}

// Build loads configuration and wires all dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return Assemble(cfg, eventSink, logging.New(os.Stderr, cfg.Log.Level))
}

// Assemble wires the runtime graph from an already resolved configuration.
func Assemble(cfg config.Config, eventSink ports.EventSink, logger *slog.Logger) (Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, dir := range []string{cfg.Storage.CacheDir, cfg.Storage.RecordingDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Services{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	client, err := schemeapi.New(schemeapi.Config{
		BaseURL:    cfg.Service.BaseURL,
		Timeout:    cfg.Service.HTTPTimeout,
		SOCKSProxy: cfg.Service.SOCKSProxy,
		CacheDir:   cfg.Storage.CacheDir,
		Logger:     logger.With("component", "schemeapi"),
	})
	if err != nil {
		return Services{}, err
	}

	files := audio.OSFiles{}
	events := loggingSink{next: eventSink, log: logger.With("component", "turn")}

	recorder := usecase.NewRecorder(
		captureDevice(cfg.Audio),
		files,
		usecase.SystemClock{},
		events,
		ports.AudioConfig{
			SampleRate:      cfg.Audio.SampleRate,
			Channels:        cfg.Audio.Channels,
			InputFormat:     cfg.Audio.InputFormat,
			InputDevice:     cfg.Audio.InputDevice,
			FramesPerBuffer: cfg.Audio.FramesPerBuffer,
			Dir:             cfg.Storage.RecordingDir,
		},
	)
	player := usecase.NewPlaybackSession(playbackDevice(cfg.Audio), client, files, client.BaseURL())

	controller := usecase.NewConversationController(
		recorder,
		player,
		client,
		events,
		usecase.Config{TurnTimeout: cfg.Service.TurnTimeout},
	)

	logger.Debug("runtime assembled",
		"api", cfg.Service.BaseURL,
		"capture", cfg.Audio.CaptureBackend,
		"playback", cfg.Audio.PlaybackBackend,
		"cache", cfg.Storage.CacheDir,
	)

	return Services{Controller: controller, Client: client, Config: cfg, Logger: logger}, nil
}

func captureDevice(cfg config.AudioConfig) ports.CaptureDevice {
	if cfg.CaptureBackend == config.CapturePortAudio {
		return audio.NewPortAudioCapture()
	}
	return audio.NewFFMPEGCapture(cfg.RecorderCommand)
}

func playbackDevice(cfg config.AudioConfig) ports.PlaybackDevice {
	if cfg.PlaybackBackend == config.PlaybackPortAudio {
		return audio.NewPortAudioPlayer(cfg.FramesPerBuffer)
	}
	return audio.NewBeepPlayer()
}

// loggingSink records turn events before forwarding them.
type loggingSink struct {
	next ports.EventSink
	log  *slog.Logger
}

func (s loggingSink) TurnStateChanged(state domain.TurnStatus, reason domain.TurnReason) {
	s.log.Debug("turn state", "state", state, "reason", reason)
	if s.next != nil {
		s.next.TurnStateChanged(state, reason)
	}
}

func (s loggingSink) RecordingProgress(seconds int) {
	if s.next != nil {
		s.next.RecordingProgress(seconds)
	}
}

func (s loggingSink) TurnUpdated(turn domain.ConversationTurn) {
	s.log.Debug("turn updated", "turn", turn.ID, "status", turn.Status, "schemes", len(turn.MatchedSchemes))
	if s.next != nil {
		s.next.TurnUpdated(turn)
	}
}

func (s loggingSink) TurnError(code domain.ErrorCode, detail string) {
	s.log.Warn("turn error", "code", code, "detail", detail)
	if s.next != nil {
		s.next.TurnError(code, detail)
	}
}
