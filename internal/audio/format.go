package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

var errUnsupportedFormat = errors.New("unsupported audio format")

// sniffFormat identifies the container from its leading bytes, falling back to
// the file extension.
func sniffFormat(header []byte, name string) (Format, error) {
	switch {
	case len(header) >= 12 && string(header[:4]) == "RIFF" && string(header[8:12]) == "WAVE":
		return FormatWAV, nil
	case len(header) >= 3 && string(header[:3]) == "ID3":
		return FormatMP3, nil
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return FormatMP3, nil
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	}
	return "", fmt.Errorf("%w: %s", errUnsupportedFormat, filepath.Base(name))
}

func sniffFile(f *os.File) (Format, error) {
	header := make([]byte, 12)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return sniffFormat(header[:n], f.Name())
}

// pcmClip is a fully decoded clip of interleaved signed 16-bit samples.
type pcmClip struct {
	samples    []int16
	channels   int
	sampleRate int
}

func (c pcmClip) frames() int {
	if c.channels == 0 {
		return 0
	}
	return len(c.samples) / c.channels
}

func decodeClip(path string) (pcmClip, error) {
	f, err := os.Open(path)
	if err != nil {
		return pcmClip{}, err
	}
	defer f.Close()

	format, err := sniffFile(f)
	if err != nil {
		return pcmClip{}, err
	}
	switch format {
	case FormatWAV:
		return decodeWAVClip(f)
	default:
		return decodeMP3Clip(f)
	}
}

func decodeWAVClip(r io.ReadSeeker) (pcmClip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return pcmClip{}, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return pcmClip{}, fmt.Errorf("decode wav: %w", err)
	}
	if pb == nil || len(pb.Data) == 0 {
		return pcmClip{}, errors.New("empty wav")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	samples := make([]int16, len(pb.Data))
	for i, v := range pb.Data {
		samples[i] = scaleTo16(v, depth)
	}

	clip := pcmClip{samples: samples, channels: 1, sampleRate: 44100}
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			clip.channels = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			clip.sampleRate = pb.Format.SampleRate
		}
	}
	return clip, nil
}

func decodeMP3Clip(r io.Reader) (pcmClip, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return pcmClip{}, fmt.Errorf("decode mp3: %w", err)
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return pcmClip{}, fmt.Errorf("decode mp3: %w", err)
	}
	samples := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &samples); err != nil {
		return pcmClip{}, err
	}
	// go-mp3 always emits stereo.
	return pcmClip{samples: samples, channels: 2, sampleRate: dec.SampleRate()}, nil
}

func scaleTo16(v, depth int) int16 {
	switch {
	case depth == 16:
		return int16(v)
	case depth == 8:
		return int16((v - 128) << 8)
	case depth > 16:
		return int16(v >> (depth - 16))
	default:
		return int16(v << (16 - depth))
	}
}
