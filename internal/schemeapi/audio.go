package schemeapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"maitri/internal/domain"
)

const (
	uploadField       = "audio_file"
	uploadFilename    = "recording.wav"
	uploadContentType = "audio/wav"
)

type transcriptResponse struct {
	Text *string `json:"text"`
}

// SpeechToText uploads a recording for transcription only.
func (c *Client) SpeechToText(ctx context.Context, locator string) (string, error) {
	req, err := c.uploadRequest(ctx, "/audio/speech-to-text", locator)
	if err != nil {
		return "", err
	}
	var payload transcriptResponse
	if err := c.doJSON(ctx, req, &payload); err != nil {
		return "", err
	}
	if payload.Text == nil {
		return "", malformed("speech-to-text: missing text")
	}
	return *payload.Text, nil
}

// TextToSpeech synthesizes text and stores the returned audio in the cache directory.
func (c *Client) TextToSpeech(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("text is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/text-to-speech"), strings.NewReader(text))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Accept", "audio/*")
	return c.download(ctx, req, "speech")
}

// FetchAudio downloads reply audio to <cache dir>/response_<unix millis>.<ext>.
func (c *Client) FetchAudio(ctx context.Context, absoluteURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, absoluteURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrNetworkOrService, err)
	}
	req.Header.Set("Accept", "audio/*")
	return c.download(ctx, req, "response")
}

func (c *Client) uploadRequest(ctx context.Context, path, locator string) (*http.Request, error) {
	if strings.TrimSpace(locator) == "" {
		return nil, fmt.Errorf("%w: recording has no storage locator", domain.ErrCaptureLost)
	}
	f, err := os.Open(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCaptureLost, err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, uploadFilename))
	header.Set("Content-Type", uploadContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) download(ctx context.Context, req *http.Request, prefix string) (string, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	dir := c.cacheDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio cache: %w", err)
	}

	f, path, err := c.createCacheFile(dir, prefix, audioExtension(resp.Header.Get("Content-Type")))
	if err != nil {
		return "", err
	}
	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: download %s: %w", domain.ErrNetworkOrService, req.URL.Path, err)
	}
	if n == 0 {
		_ = os.Remove(path)
		return "", malformed("download %s: empty audio body", req.URL.Path)
	}
	return path, nil
}

// createCacheFile claims a unique <prefix>_<unix millis><ext> name in dir.
func (c *Client) createCacheFile(dir, prefix, ext string) (*os.File, string, error) {
	stamp := c.now().UnixMilli()
	for attempt := int64(0); attempt < 100; attempt++ {
		path := filepath.Join(dir, fmt.Sprintf("%s_%d%s", prefix, stamp+attempt, ext))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create audio cache file: %w", err)
		}
	}
	return nil, "", errors.New("create audio cache file: too many collisions")
}

func audioExtension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".mp3"
	}
	switch strings.ToLower(mediaType) {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return ".wav"
	default:
		return ".mp3"
	}
}
