package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"maitri/internal/ports"
)

// PortAudioPlayer decodes a clip into memory and writes it to the default
// output device.
type PortAudioPlayer struct {
	FramesPerBuffer int
}

func NewPortAudioPlayer(framesPerBuffer int) *PortAudioPlayer {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}
	return &PortAudioPlayer{FramesPerBuffer: framesPerBuffer}
}

func (p *PortAudioPlayer) Load(_ context.Context, locator string) (ports.LoadedAudio, error) {
	clip, err := decodeClip(locator)
	if err != nil {
		return nil, err
	}
	if clip.frames() == 0 {
		return nil, errors.New("clip has no audio frames")
	}
	return &portaudioClip{
		clip:     clip,
		frames:   p.FramesPerBuffer,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		finished: make(chan error, 1),
	}, nil
}

type portaudioClip struct {
	clip   pcmClip
	frames int

	stop     chan struct{}
	done     chan struct{}
	finished chan error

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
}

func (c *portaudioClip) Play() error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return c.abort(fmt.Errorf("portaudio init: %w", err))
	}
	buf := make([]int16, c.frames*c.clip.channels)
	stream, err := portaudio.OpenDefaultStream(0, c.clip.channels, float64(c.clip.sampleRate), c.frames, buf)
	if err != nil {
		portaudio.Terminate()
		return c.abort(fmt.Errorf("failed to open output stream: %w", err))
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		portaudio.Terminate()
		return c.abort(fmt.Errorf("failed to start output stream: %w", err))
	}

	go c.run(stream, buf)
	return nil
}

func (c *portaudioClip) run(stream *portaudio.Stream, buf []int16) {
	defer close(c.done)

	var playErr error
	samples := c.clip.samples
	for offset := 0; offset < len(samples) && playErr == nil; offset += len(buf) {
		select {
		case <-c.stop:
			playErr = errPlaybackStopped
			continue
		default:
		}
		n := copy(buf, samples[offset:])
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		if err := stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			playErr = fmt.Errorf("write output: %w", err)
		}
	}

	closeErr := errors.Join(stream.Stop(), stream.Close())
	portaudio.Terminate()
	if playErr == nil && closeErr != nil {
		playErr = closeErr
	}
	c.finished <- playErr
}

func (c *portaudioClip) abort(err error) error {
	c.finished <- err
	close(c.done)
	return err
}

func (c *portaudioClip) Finished() <-chan error {
	return c.finished
}

func (c *portaudioClip) Stop() error {
	c.stopOnce.Do(func() { close(c.stop) })

	c.mu.Lock()
	started := c.started
	c.started = true
	c.mu.Unlock()
	if !started {
		_ = c.abort(errPlaybackStopped)
		return nil
	}
	<-c.done
	return nil
}

func (c *portaudioClip) Unload() error {
	return c.Stop()
}
