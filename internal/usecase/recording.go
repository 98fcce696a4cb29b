package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"maitri/internal/domain"
	"maitri/internal/ports"
)

// RecordingSession is a single microphone capture from permission request to a RecordingHandle.
type RecordingSession struct {
	device ports.CaptureDevice
	files  ports.LocalFiles
	clock  ports.Clock
	events ports.EventSink
	cfg    ports.AudioConfig

	mu       sync.Mutex
	state    domain.RecordingState
	capture  ports.CaptureSession
	duration int
	stop     chan struct{}
	done     chan struct{}

	releaseOnce sync.Once
	releaseErr  error
}

func newRecordingSession(
	device ports.CaptureDevice,
	files ports.LocalFiles,
	clock ports.Clock,
	events ports.EventSink,
	cfg ports.AudioConfig,
) *RecordingSession {
	return &RecordingSession{
		device: device,
		files:  files,
		clock:  clock,
		events: events,
		cfg:    cfg,
		state:  domain.RecordingStateIdle,
	}
}

// Begin asks for microphone permission and starts capturing.
func (s *RecordingSession) Begin(ctx context.Context) error {
	if err := s.transition(domain.RecordingStateIdle, domain.RecordingStateRequestingPermission, "begin"); err != nil {
		return err
	}

	granted, err := s.device.RequestPermission(ctx)
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
	}
	if !granted {
		s.fail()
		return domain.ErrPermissionDenied
	}

	if err := s.transition(domain.RecordingStateRequestingPermission, domain.RecordingStateArmed, "arm"); err != nil {
		return err
	}

	capture, err := s.device.Start(ctx, s.cfg)
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: start capture: %w", domain.ErrCaptureLost, err)
	}

	s.mu.Lock()
	if s.state != domain.RecordingStateArmed {
		state := s.state
		s.mu.Unlock()
		_ = capture.StopAndUnload()
		return domain.InvalidState("start capture", state)
	}
	s.capture = capture
	s.state = domain.RecordingStateCapturing
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go runDurationCounter(s.clock.NewTicker(time.Second), s.advance, s.events, s.stop, s.done)
	s.mu.Unlock()
	return nil
}

// End stops capturing and returns the finished recording.
func (s *RecordingSession) End() (domain.RecordingHandle, error) {
	if err := s.transition(domain.RecordingStateCapturing, domain.RecordingStateStopping, "end"); err != nil {
		return domain.RecordingHandle{}, err
	}
	s.stopCounter()

	s.mu.Lock()
	capture := s.capture
	duration := s.duration
	s.mu.Unlock()

	uri := capture.URI()
	if err := s.release(); err != nil {
		s.events.TurnError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}

	if uri == "" {
		s.fail()
		return domain.RecordingHandle{}, fmt.Errorf("%w: device reported no recording locator", domain.ErrCaptureLost)
	}
	info, err := s.files.Stat(uri)
	if err != nil {
		s.fail()
		return domain.RecordingHandle{}, fmt.Errorf("%w: %w", domain.ErrCaptureLost, err)
	}
	if !info.Exists {
		s.fail()
		return domain.RecordingHandle{}, fmt.Errorf("%w: %s does not exist", domain.ErrCaptureLost, uri)
	}

	if err := s.transition(domain.RecordingStateStopping, domain.RecordingStateCompleted, "complete"); err != nil {
		return domain.RecordingHandle{}, errors.Join(domain.ErrCaptureLost, err)
	}
	return domain.RecordingHandle{
		StorageLocator:  uri,
		ByteSize:        info.Size,
		DurationSeconds: duration,
	}, nil
}

// Teardown releases the capture device from any state. Repeated calls are no-ops.
func (s *RecordingSession) Teardown() {
	s.mu.Lock()
	if !s.state.Terminal() {
		s.state = domain.RecordingStateFailed
	}
	s.mu.Unlock()

	s.stopCounter()
	_ = s.release()
}

// State returns the current capture state.
func (s *RecordingSession) State() domain.RecordingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Duration returns the elapsed capture time in whole seconds.
func (s *RecordingSession) Duration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *RecordingSession) transition(from, to domain.RecordingState, op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return domain.InvalidState(op, s.state)
	}
	s.state = to
	return nil
}

func (s *RecordingSession) fail() {
	s.mu.Lock()
	s.state = domain.RecordingStateFailed
	s.mu.Unlock()
}

func (s *RecordingSession) advance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duration++
	return s.duration
}

func (s *RecordingSession) stopCounter() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *RecordingSession) release() error {
	s.mu.Lock()
	capture := s.capture
	s.mu.Unlock()
	if capture == nil {
		return nil
	}
	s.releaseOnce.Do(func() {
		s.releaseErr = capture.StopAndUnload()
	})
	return s.releaseErr
}

// Recorder owns the one live RecordingSession.
type Recorder struct {
	device ports.CaptureDevice
	files  ports.LocalFiles
	clock  ports.Clock
	events ports.EventSink
	cfg    ports.AudioConfig

	mu      sync.Mutex
	current *RecordingSession
}

func NewRecorder(
	device ports.CaptureDevice,
	files ports.LocalFiles,
	clock ports.Clock,
	events ports.EventSink,
	cfg ports.AudioConfig,
) *Recorder {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Recorder{device: device, files: files, clock: clock, events: events, cfg: cfg}
}

// Begin releases a finished predecessor and starts a new session.
// It refuses while the current session has not reached a terminal state.
func (r *Recorder) Begin(ctx context.Context) (*RecordingSession, error) {
	r.mu.Lock()
	previous := r.current
	if previous != nil {
		if state := previous.State(); !state.Terminal() {
			r.mu.Unlock()
			return nil, domain.InvalidState("begin a second recording", state)
		}
	}
	session := newRecordingSession(r.device, r.files, r.clock, r.events, r.cfg)
	r.current = session
	r.mu.Unlock()

	if previous != nil {
		previous.Teardown()
	}
	if err := session.Begin(ctx); err != nil {
		return session, err
	}
	return session, nil
}

// End completes the current session.
func (r *Recorder) End() (domain.RecordingHandle, error) {
	current := r.Current()
	if current == nil {
		return domain.RecordingHandle{}, domain.InvalidState("end", "no recording")
	}
	return current.End()
}

// Teardown releases the current session, if any.
func (r *Recorder) Teardown() {
	if current := r.Current(); current != nil {
		current.Teardown()
	}
}

// Current returns the live session or nil.
func (r *Recorder) Current() *RecordingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// State returns the state of the current session, idle when there is none.
func (r *Recorder) State() domain.RecordingState {
	if current := r.Current(); current != nil {
		return current.State()
	}
	return domain.RecordingStateIdle
}
