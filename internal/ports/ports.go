package ports

import (
	"context"
	"time"

	"maitri/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate      int
	Channels        int
	InputFormat     string
	InputDevice     string
	FramesPerBuffer int
	// Dir receives the recorded files.
	Dir string
}

// CaptureSession is a live microphone capture writing to local storage.
type CaptureSession interface {
	// URI is the storage locator of the file being written.
	URI() string
	// StopAndUnload stops capture and releases the device. Safe to call more than once.
	StopAndUnload() error
}

// CaptureDevice creates microphone capture sessions.
type CaptureDevice interface {
	RequestPermission(ctx context.Context) (bool, error)
	Start(ctx context.Context, cfg AudioConfig) (CaptureSession, error)
}

// LoadedAudio is a local audio file bound to the playback device.
type LoadedAudio interface {
	Play() error
	// Finished delivers exactly one value when playback ends for any reason, nil on a natural end.
	Finished() <-chan error
	Stop() error
	// Unload releases the device. Safe to call more than once.
	Unload() error
}

// PlaybackDevice loads local audio files for playback.
type PlaybackDevice interface {
	Load(ctx context.Context, locator string) (LoadedAudio, error)
}

// FileInfo describes a locally stored file.
type FileInfo struct {
	Exists bool
	Size   int64
}

// LocalFiles inspects and removes locally stored audio.
type LocalFiles interface {
	Stat(locator string) (FileInfo, error)
	Remove(locator string) error
}

// SchemeService submits recordings to the remote assistant.
type SchemeService interface {
	ProcessAudio(ctx context.Context, recording domain.RecordingHandle) (domain.ServiceReply, error)
}

// AudioFetcher downloads reply audio to local storage.
type AudioFetcher interface {
	FetchAudio(ctx context.Context, absoluteURL string) (string, error)
}

// SchemeCatalog exposes the scheme lookup endpoints.
type SchemeCatalog interface {
	ListSchemes(ctx context.Context) ([]domain.SchemeSummary, error)
	GetScheme(ctx context.Context, id string) (domain.SchemeSummary, error)
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	TurnStateChanged(state domain.TurnStatus, reason domain.TurnReason)
	RecordingProgress(seconds int)
	TurnUpdated(turn domain.ConversationTurn)
	TurnError(code domain.ErrorCode, detail string)
}
