package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"maitri/internal/domain"
	"maitri/internal/ports"
)

var errStopped = errors.New("stopped")

type fakeCaptureDevice struct {
	mu       sync.Mutex
	granted  bool
	permErr  error
	startErr error
	sessions []*fakeCaptureSession
	starts   int
	perms    int
}

func (f *fakeCaptureDevice) RequestPermission(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perms++
	return f.granted, f.permErr
}

func (f *fakeCaptureDevice) Start(_ context.Context, _ ports.AudioConfig) (ports.CaptureSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	if f.starts >= len(f.sessions) {
		return nil, errors.New("no capture session configured")
	}
	session := f.sessions[f.starts]
	f.starts++
	return session, nil
}

func (f *fakeCaptureDevice) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

type fakeCaptureSession struct {
	mu        sync.Mutex
	uri       string
	stopErr   error
	stopCalls int
}

func (f *fakeCaptureSession) URI() string { return f.uri }

func (f *fakeCaptureSession) StopAndUnload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

func (f *fakeCaptureSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeFiles struct {
	mu      sync.Mutex
	sizes   map[string]int64
	removed []string
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{sizes: map[string]int64{}}
}

func (f *fakeFiles) put(path string, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes[path] = size
}

func (f *fakeFiles) Stat(locator string) (ports.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	size, ok := f.sizes[locator]
	return ports.FileInfo{Exists: ok, Size: size}, nil
}

func (f *fakeFiles) Remove(locator string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sizes, locator)
	f.removed = append(f.removed, locator)
	return nil
}

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (f *fakeClock) NewTicker(_ time.Duration) ports.Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticker := &fakeTicker{c: make(chan time.Time)}
	f.tickers = append(f.tickers, ticker)
	return ticker
}

func (f *fakeClock) last() *fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tickers) == 0 {
		return nil
	}
	return f.tickers[len(f.tickers)-1]
}

type fakeTicker struct {
	c chan time.Time
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }

func (f *fakeTicker) Stop() {}

func (f *fakeTicker) tick(n int) {
	for i := 0; i < n; i++ {
		f.c <- time.Now()
	}
}

type fakePlaybackDevice struct {
	mu      sync.Mutex
	ops     []string
	audios  []*fakeAudio
	loadErr error
	playErr error
}

func (f *fakePlaybackDevice) Load(_ context.Context, locator string) (ports.LoadedAudio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	audio := &fakeAudio{
		name:     fmt.Sprintf("audio%d", len(f.audios)+1),
		locator:  locator,
		device:   f,
		finished: make(chan error, 1),
		playErr:  f.playErr,
	}
	f.audios = append(f.audios, audio)
	f.ops = append(f.ops, "load:"+audio.name)
	return audio, nil
}

func (f *fakePlaybackDevice) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
}

func (f *fakePlaybackDevice) snapshotOps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ops))
	copy(out, f.ops)
	return out
}

func (f *fakePlaybackDevice) audio(i int) *fakeAudio {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.audios) {
		return nil
	}
	return f.audios[i]
}

type fakeAudio struct {
	name     string
	locator  string
	device   *fakePlaybackDevice
	finished chan error
	playErr  error

	once sync.Once
}

func (f *fakeAudio) Play() error {
	f.device.record("play:" + f.name)
	return f.playErr
}

func (f *fakeAudio) Finished() <-chan error { return f.finished }

func (f *fakeAudio) Stop() error {
	f.device.record("stop:" + f.name)
	f.end(errStopped)
	return nil
}

func (f *fakeAudio) Unload() error {
	f.device.record("unload:" + f.name)
	return nil
}

func (f *fakeAudio) end(err error) {
	f.once.Do(func() {
		f.finished <- err
	})
}

type fakeFetcher struct {
	mu    sync.Mutex
	files *fakeFiles
	calls []string
	err   error
}

func (f *fakeFetcher) FetchAudio(_ context.Context, absoluteURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, absoluteURL)
	if f.err != nil {
		return "", f.err
	}
	local := fmt.Sprintf("/cache/response_%d.mp3", len(f.calls))
	if f.files != nil {
		f.files.put(local, 2048)
	}
	return local, nil
}

func (f *fakeFetcher) snapshotCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeService struct {
	mu       sync.Mutex
	reply    domain.ServiceReply
	err      error
	release  chan struct{}
	started  chan struct{}
	requests []domain.RecordingHandle
}

func (f *fakeService) ProcessAudio(ctx context.Context, recording domain.RecordingHandle) (domain.ServiceReply, error) {
	f.mu.Lock()
	f.requests = append(f.requests, recording)
	release, started := f.release, f.started
	reply, err := f.reply, f.err
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return domain.ServiceReply{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.ServiceReply{}, err
	}
	return reply, nil
}

func (f *fakeService) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeListener struct {
	outcomes chan PlaybackOutcome
}

func newFakeListener() *fakeListener {
	return &fakeListener{outcomes: make(chan PlaybackOutcome, 8)}
}

func (f *fakeListener) PlaybackEnded(outcome PlaybackOutcome) {
	f.outcomes <- outcome
}

func (f *fakeListener) next(t *testing.T) PlaybackOutcome {
	t.Helper()
	select {
	case outcome := <-f.outcomes:
		return outcome
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for playback outcome")
		return PlaybackOutcome{}
	}
}

type fakeEventSink struct {
	mu sync.Mutex

	states   []stateEvent
	progress []int
	turns    []domain.ConversationTurn
	errors   []errEvent
}

type stateEvent struct {
	state  domain.TurnStatus
	reason domain.TurnReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) TurnStateChanged(state domain.TurnStatus, reason domain.TurnReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) RecordingProgress(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, seconds)
}

func (f *fakeEventSink) TurnUpdated(turn domain.ConversationTurn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turn)
}

func (f *fakeEventSink) TurnError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) snapshotTurns() []domain.ConversationTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ConversationTurn, len(f.turns))
	copy(out, f.turns)
	return out
}

func (f *fakeEventSink) snapshotProgress() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.progress))
	copy(out, f.progress)
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
