package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"maitri/internal/ports"
)

// PortAudioCapture records the default input device through PortAudio and
// encodes the samples as 16-bit PCM WAV.
type PortAudioCapture struct {
	now func() time.Time
}

func NewPortAudioCapture() *PortAudioCapture {
	return &PortAudioCapture{now: time.Now}
}

func (c *PortAudioCapture) RequestPermission(_ context.Context) (bool, error) {
	if err := portaudio.Initialize(); err != nil {
		return false, fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		return false, fmt.Errorf("no input device: %w", err)
	}
	return device != nil && device.MaxInputChannels > 0, nil
}

func (c *PortAudioCapture) Start(_ context.Context, cfg ports.AudioConfig) (ports.CaptureSession, error) {
	cfg = withCaptureDefaults(cfg)

	path, err := recordingPath(cfg.Dir, c.now())
	if err != nil {
		return nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	if err := portaudio.Initialize(); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	buf := make([]int16, cfg.FramesPerBuffer*cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), cfg.FramesPerBuffer, buf)
	if err != nil {
		portaudio.Terminate()
		_ = file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		portaudio.Terminate()
		_ = file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	rec := &portaudioRecording{
		path:    path,
		file:    file,
		stream:  stream,
		encoder: newPCMEncoder(file, cfg.SampleRate, cfg.Channels),
		buf:     buf,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go rec.pump()
	return rec, nil
}

type portaudioRecording struct {
	path    string
	file    *os.File
	stream  *portaudio.Stream
	encoder *pcmEncoder
	buf     []int16

	stop    chan struct{}
	done    chan struct{}
	pumpErr error

	stopOnce sync.Once
	stopErr  error
}

func (r *portaudioRecording) URI() string {
	return r.path
}

func (r *portaudioRecording) pump() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		default:
		}
		if err := r.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			r.pumpErr = fmt.Errorf("read input: %w", err)
			return
		}
		if err := r.encoder.write(r.buf); err != nil {
			r.pumpErr = err
			return
		}
	}
}

func (r *portaudioRecording) StopAndUnload() error {
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.done

		r.stopErr = errors.Join(
			r.pumpErr,
			r.stream.Stop(),
			r.stream.Close(),
			r.encoder.close(),
			r.file.Close(),
		)
		portaudio.Terminate()
	})
	return r.stopErr
}

type pcmEncoder struct {
	enc *wav.Encoder
	buf *audio.IntBuffer
}

func newPCMEncoder(file *os.File, sampleRate, channels int) *pcmEncoder {
	return &pcmEncoder{
		enc: wav.NewEncoder(file, sampleRate, 16, channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}
}

func (p *pcmEncoder) write(samples []int16) error {
	if cap(p.buf.Data) < len(samples) {
		p.buf.Data = make([]int, len(samples))
	}
	p.buf.Data = p.buf.Data[:len(samples)]
	for i, s := range samples {
		p.buf.Data[i] = int(s)
	}
	if err := p.enc.Write(p.buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}

func (p *pcmEncoder) close() error {
	if err := p.enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}
