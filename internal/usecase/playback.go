package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"maitri/internal/domain"
	"maitri/internal/ports"
)

// ErrPlaybackSuperseded is returned by a Play whose generation was stopped or replaced.
var ErrPlaybackSuperseded = errors.New("playback superseded")

// PlaybackSession fetches and plays synthesized replies, one generation at a time.
type PlaybackSession struct {
	device  ports.PlaybackDevice
	fetcher ports.AudioFetcher
	files   ports.LocalFiles
	base    *url.URL

	mu         sync.Mutex
	state      domain.PlaybackState
	generation uint64
	remote     string
	loaded     ports.LoadedAudio
	cached     cachedReply
	listener   PlaybackListener
}

// cachedReply is the local copy of the most recently fetched reply.
type cachedReply struct {
	remote string
	local  string
}

func NewPlaybackSession(
	device ports.PlaybackDevice,
	fetcher ports.AudioFetcher,
	files ports.LocalFiles,
	base *url.URL,
) *PlaybackSession {
	return &PlaybackSession{
		device:  device,
		fetcher: fetcher,
		files:   files,
		base:    base,
		state:   domain.PlaybackStateIdle,
	}
}

// SetListener registers the single receiver of PlaybackEnded notifications.
func (p *PlaybackSession) SetListener(listener PlaybackListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = listener
}

// Play resolves ref against the service base URL, fetches it and starts playback.
// Play always downloads, even when ref matches the cached reply; only Replay
// reads the cache. A playback already in progress is stopped and unloaded first.
func (p *PlaybackSession) Play(ctx context.Context, ref string) error {
	p.mu.Lock()
	gen, previous := p.nextGenerationLocked()
	p.mu.Unlock()
	releaseAudio(previous)

	remote, err := p.resolve(ref)
	if err != nil {
		return p.fail(gen, PlaybackOutcome{RemoteURL: ref, Err: err})
	}
	return p.run(ctx, gen, remote, false)
}

// Replay plays the last reply again from its local copy. Only valid once it has finished.
func (p *PlaybackSession) Replay(ctx context.Context) error {
	p.mu.Lock()
	if p.state != domain.PlaybackStateFinished {
		state := p.state
		p.mu.Unlock()
		return domain.InvalidState("replay", state)
	}
	remote := p.remote
	gen, previous := p.nextGenerationLocked()
	p.mu.Unlock()
	releaseAudio(previous)

	return p.run(ctx, gen, remote, true)
}

// Stop cancels the current playback without notifying the listener.
func (p *PlaybackSession) Stop() {
	p.mu.Lock()
	p.generation++
	loaded := p.loaded
	p.loaded = nil
	if p.state.Active() {
		p.state = domain.PlaybackStateIdle
	}
	p.mu.Unlock()

	releaseAudio(loaded)
}

// Close stops playback and removes the cached reply.
func (p *PlaybackSession) Close() {
	p.Stop()

	p.mu.Lock()
	cached := p.cached
	p.cached = cachedReply{}
	p.mu.Unlock()

	if cached.local != "" && p.files != nil {
		_ = p.files.Remove(cached.local)
	}
}

// State returns the playback state of the current generation.
func (p *PlaybackSession) State() domain.PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Remote returns the resolved URL of the current or last reply.
func (p *PlaybackSession) Remote() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote
}

func (p *PlaybackSession) nextGenerationLocked() (uint64, ports.LoadedAudio) {
	p.generation++
	previous := p.loaded
	p.loaded = nil
	p.state = domain.PlaybackStateFetching
	return p.generation, previous
}

func (p *PlaybackSession) run(ctx context.Context, gen uint64, remote string, reuse bool) error {
	p.mu.Lock()
	p.remote = remote
	cached := p.cached
	p.mu.Unlock()

	local := ""
	if reuse && cached.remote == remote && p.localExists(cached.local) {
		local = cached.local
	} else {
		fetched, err := p.fetcher.FetchAudio(ctx, remote)
		if err != nil {
			return p.fail(gen, PlaybackOutcome{RemoteURL: remote, Err: err})
		}
		p.remember(remote, fetched)
		local = fetched
	}

	audio, err := p.device.Load(ctx, local)
	if err != nil {
		return p.fail(gen, PlaybackOutcome{RemoteURL: remote, LocalPath: local, Err: err})
	}

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		_ = audio.Unload()
		return ErrPlaybackSuperseded
	}
	p.loaded = audio
	p.state = domain.PlaybackStateLoaded
	p.mu.Unlock()

	if err := audio.Play(); err != nil {
		return p.fail(gen, PlaybackOutcome{RemoteURL: remote, LocalPath: local, Err: err})
	}

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return ErrPlaybackSuperseded
	}
	p.state = domain.PlaybackStatePlaying
	p.mu.Unlock()

	go p.watch(gen, audio, PlaybackOutcome{RemoteURL: remote, LocalPath: local})
	return nil
}

func (p *PlaybackSession) watch(gen uint64, audio ports.LoadedAudio, outcome PlaybackOutcome) {
	err := <-audio.Finished()

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.state = domain.PlaybackStateFailed
		outcome.Err = fmt.Errorf("%w: %w", domain.ErrPlayback, err)
	} else {
		p.state = domain.PlaybackStateFinished
	}
	p.loaded = nil
	listener := p.listener
	p.mu.Unlock()

	_ = audio.Unload()
	if listener != nil {
		listener.PlaybackEnded(outcome)
	}
}

func (p *PlaybackSession) fail(gen uint64, outcome PlaybackOutcome) error {
	err := fmt.Errorf("%w: %w", domain.ErrPlayback, outcome.Err)
	outcome.Err = err

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return errors.Join(ErrPlaybackSuperseded, err)
	}
	p.state = domain.PlaybackStateFailed
	loaded := p.loaded
	p.loaded = nil
	listener := p.listener
	p.mu.Unlock()

	releaseAudio(loaded)
	if listener != nil {
		listener.PlaybackEnded(outcome)
	}
	return err
}

func (p *PlaybackSession) remember(remote, local string) {
	p.mu.Lock()
	previous := p.cached
	p.cached = cachedReply{remote: remote, local: local}
	p.mu.Unlock()

	if previous.local != "" && previous.local != local && p.files != nil {
		_ = p.files.Remove(previous.local)
	}
}

func (p *PlaybackSession) localExists(local string) bool {
	if local == "" || p.files == nil {
		return false
	}
	info, err := p.files.Stat(local)
	return err == nil && info.Exists
}

func (p *PlaybackSession) resolve(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", errors.New("empty audio locator")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid audio locator %q: %w", trimmed, err)
	}
	if parsed.IsAbs() {
		return parsed.String(), nil
	}
	if p.base == nil {
		return "", fmt.Errorf("relative audio locator %q without a service base URL", trimmed)
	}

	base := *p.base
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	relative := &url.URL{Path: strings.TrimPrefix(parsed.Path, "/"), RawQuery: parsed.RawQuery}
	return base.ResolveReference(relative).String(), nil
}

func releaseAudio(audio ports.LoadedAudio) {
	if audio == nil {
		return
	}
	_ = audio.Stop()
	_ = audio.Unload()
}
