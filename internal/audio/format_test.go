package audio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSniffFormat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		header []byte
		file   string
		want   Format
	}{
		{name: "riff_wave", header: []byte("RIFF\x24\x00\x00\x00WAVEfmt "), file: "reply.bin", want: FormatWAV},
		{name: "id3_tag", header: []byte("ID3\x04\x00"), file: "reply", want: FormatMP3},
		{name: "frame_sync", header: []byte{0xFF, 0xFB, 0x90, 0x64}, file: "reply", want: FormatMP3},
		{name: "extension_wav", header: []byte("????"), file: "/cache/response_1.WAV", want: FormatWAV},
		{name: "extension_mp3", header: nil, file: "/cache/response_1.mp3", want: FormatMP3},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := sniffFormat(tc.header, tc.file)
			if err != nil {
				t.Fatalf("sniff failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}

	if _, err := sniffFormat([]byte("OggS"), "reply.ogg"); !errors.Is(err, errUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
}

func TestPCMEncoderRoundTripsThroughDecodeClip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	enc := newPCMEncoder(f, 16000, 1)
	samples := []int16{0, 1200, -1200, 32767, -32768, 42}
	if err := enc.write(samples[:3]); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := enc.write(samples[3:]); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := enc.close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("file close failed: %v", err)
	}

	clip, err := decodeClip(path)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if clip.channels != 1 || clip.sampleRate != 16000 {
		t.Fatalf("unexpected format: %d ch @ %d", clip.channels, clip.sampleRate)
	}
	if clip.frames() != len(samples) {
		t.Fatalf("expected %d frames, got %d", len(samples), clip.frames())
	}
	for i, want := range samples {
		if clip.samples[i] != want {
			t.Fatalf("sample %d: expected %d, got %d", i, want, clip.samples[i])
		}
	}
}

func TestDecodeClipRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reply.wav")
	if err := os.WriteFile(path, []byte("not really audio"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := decodeClip(path); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := decodeClip(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestScaleTo16(t *testing.T) {
	t.Parallel()

	if got := scaleTo16(128, 8); got != 0 {
		t.Fatalf("8-bit midpoint should be silence, got %d", got)
	}
	if got := scaleTo16(1<<23-1, 24); got != 32767 {
		t.Fatalf("24-bit max should map to 32767, got %d", got)
	}
	if got := scaleTo16(-5, 16); got != -5 {
		t.Fatalf("16-bit samples pass through, got %d", got)
	}
}
