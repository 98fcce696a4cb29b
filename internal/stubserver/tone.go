package stubserver

import (
	"errors"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const toneSampleRate = 16000

// toneWAV renders a faded sine tone as a mono 16-bit WAV file.
func toneWAV(freq float64, length time.Duration) ([]byte, error) {
	frames := int(float64(toneSampleRate) * length.Seconds())
	if frames <= 0 {
		return nil, errors.New("tone length must be positive")
	}

	fade := toneSampleRate / 50
	data := make([]int, frames)
	for i := range data {
		gain := 0.3
		if i < fade {
			gain *= float64(i) / float64(fade)
		} else if tail := frames - i; tail < fade {
			gain *= float64(tail) / float64(fade)
		}
		data[i] = int(gain * math.MaxInt16 * math.Sin(2*math.Pi*freq*float64(i)/toneSampleRate))
	}

	out := &memFile{}
	enc := wav.NewEncoder(out, toneSampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: toneSampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return out.buf, nil
}

// memFile is an in-memory io.WriteSeeker; the WAV encoder seeks back to patch its header.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(next)
	return next, nil
}
