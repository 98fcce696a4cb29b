package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	beepwav "github.com/faiface/beep/wav"

	"maitri/internal/ports"
)

var errPlaybackStopped = errors.New("playback stopped")

// BeepPlayer plays cached replies through the beep speaker. The speaker is
// initialized once at the rate of the first clip; later clips are resampled.
type BeepPlayer struct {
	mu          sync.Mutex
	initialized bool
	rate        beep.SampleRate
}

func NewBeepPlayer() *BeepPlayer {
	return &BeepPlayer{}
}

func (p *BeepPlayer) Load(_ context.Context, locator string) (ports.LoadedAudio, error) {
	f, err := os.Open(locator)
	if err != nil {
		return nil, err
	}
	format, err := sniffFile(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	var (
		streamer beep.StreamSeekCloser
		decoded  beep.Format
	)
	switch format {
	case FormatWAV:
		streamer, decoded, err = beepwav.Decode(f)
	default:
		streamer, decoded, err = mp3.Decode(f)
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	rate, err := p.ensureSpeaker(decoded.SampleRate)
	if err != nil {
		_ = streamer.Close()
		return nil, err
	}

	var source beep.Streamer = streamer
	if decoded.SampleRate != rate {
		source = beep.Resample(4, decoded.SampleRate, rate, streamer)
	}

	return &beepAudio{
		streamer: streamer,
		ctrl:     &beep.Ctrl{Streamer: source},
		finished: make(chan error, 1),
	}, nil
}

func (p *BeepPlayer) ensureSpeaker(rate beep.SampleRate) (beep.SampleRate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return p.rate, nil
	}
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return 0, fmt.Errorf("speaker init: %w", err)
	}
	p.initialized = true
	p.rate = rate
	return rate, nil
}

type beepAudio struct {
	streamer beep.StreamSeekCloser
	ctrl     *beep.Ctrl
	finished chan error

	playOnce   sync.Once
	finishOnce sync.Once
	unloadOnce sync.Once
}

func (a *beepAudio) Play() error {
	a.playOnce.Do(func() {
		speaker.Play(beep.Seq(a.ctrl, beep.Callback(func() {
			a.finish(nil)
		})))
	})
	return nil
}

func (a *beepAudio) Finished() <-chan error {
	return a.finished
}

func (a *beepAudio) Stop() error {
	a.finish(errPlaybackStopped)
	speaker.Lock()
	a.ctrl.Streamer = nil
	speaker.Unlock()
	return nil
}

func (a *beepAudio) Unload() error {
	var err error
	a.unloadOnce.Do(func() {
		speaker.Lock()
		a.ctrl.Streamer = nil
		speaker.Unlock()
		err = a.streamer.Close()
	})
	return err
}

func (a *beepAudio) finish(err error) {
	a.finishOnce.Do(func() {
		a.finished <- err
	})
}
