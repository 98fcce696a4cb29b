package schemeapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"maitri/internal/domain"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(t *testing.T, base string) *Client {
	t.Helper()
	client, err := New(Config{BaseURL: base, Timeout: 5 * time.Second, CacheDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return client
}

func writeRecording(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording_1.wav")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write recording: %v", err)
	}
	return path
}

func TestProcessAudioUploadsMultipartAndDecodesReply(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/process-audio" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing request id")
		}
		file, header, err := r.FormFile("audio_file")
		if err != nil {
			t.Errorf("missing audio_file: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "RIFFfake" {
			t.Errorf("unexpected upload body %q", string(data))
		}
		if header.Filename != "recording.wav" || header.Header.Get("Content-Type") != "audio/wav" {
			t.Errorf("unexpected part header: %s %v", header.Filename, header.Header)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"text": "I am pregnant with my first child",
			"response": "You may be eligible for PMMVY.",
			"schemes": [{
				"id": "pmmvy",
				"title": "Pradhan Mantri Matru Vandana Yojana",
				"eligibility": "Pregnant and lactating mothers for first child",
				"documents": ["Aadhaar Card", "MCP Card"],
				"steps": ["Register at Anganwadi"],
				"benefits": "Cash benefit of 5000"
			}],
			"audio_url": "/audio/reply.mp3"
		}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	reply, err := client.ProcessAudio(context.Background(), domain.RecordingHandle{StorageLocator: writeRecording(t, "RIFFfake")})
	if err != nil {
		t.Fatalf("process audio failed: %v", err)
	}
	if reply.UserText != "I am pregnant with my first child" || reply.ResponseText != "You may be eligible for PMMVY." {
		t.Fatalf("unexpected texts: %+v", reply)
	}
	if reply.AudioURL != "/audio/reply.mp3" {
		t.Fatalf("unexpected audio url: %q", reply.AudioURL)
	}
	if len(reply.Schemes) != 1 {
		t.Fatalf("expected one scheme, got %d", len(reply.Schemes))
	}
	scheme := reply.Schemes[0]
	if scheme.ID != "pmmvy" || scheme.EligibilityText == "" || len(scheme.RequiredDocuments) != 2 || len(scheme.ApplicationSteps) != 1 || scheme.BenefitsText == "" {
		t.Fatalf("unexpected scheme mapping: %+v", scheme)
	}
}

func TestProcessAudioMalformedPayloads(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing_response": `{"text": "hi", "schemes": []}`,
		"invalid_json":     `{"response": `,
		"duplicate_ids":    `{"response": "ok", "schemes": [{"id": "a"}, {"id": "a"}]}`,
		"missing_id":       `{"response": "ok", "schemes": [{"title": "untitled"}]}`,
	}
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.ProcessAudio(context.Background(), domain.RecordingHandle{StorageLocator: writeRecording(t, "RIFF")})
			if !errors.Is(err, ErrMalformedPayload) || !errors.Is(err, domain.ErrNetworkOrService) {
				t.Fatalf("expected malformed service error, got %v", err)
			}
		})
	}
}

func TestProcessAudioEmptyResponseTextIsAccepted(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"response": ""}`)
	}))
	defer server.Close()

	reply, err := newTestClient(t, server.URL).ProcessAudio(context.Background(), domain.RecordingHandle{StorageLocator: writeRecording(t, "RIFF")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.ResponseText != "" || reply.AudioURL != "" || len(reply.Schemes) != 0 {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestProcessAudioNon2xxIsServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "transcription backend down", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).ProcessAudio(context.Background(), domain.RecordingHandle{StorageLocator: writeRecording(t, "RIFF")})
	if !errors.Is(err, domain.ErrNetworkOrService) {
		t.Fatalf("expected service error, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %v", err)
	}
	if !strings.Contains(err.Error(), "transcription backend down") {
		t.Fatalf("expected body detail in error, got %v", err)
	}
}

func TestProcessAudioMissingRecording(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "http://127.0.0.1:1")
	_, err := client.ProcessAudio(context.Background(), domain.RecordingHandle{StorageLocator: filepath.Join(t.TempDir(), "gone.wav")})
	if !errors.Is(err, domain.ErrCaptureLost) {
		t.Fatalf("expected capture lost, got %v", err)
	}
}

func TestTransportFailureIsServiceError(t *testing.T) {
	t.Parallel()

	client, err := New(Config{
		BaseURL: "http://maitri.invalid",
		HTTPClient: &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.ListSchemes(context.Background())
	if !errors.Is(err, domain.ErrNetworkOrService) || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestListSchemesKeepsBasePath(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/schemes" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"schemes": [{"id": "a", "title": "A"}, {"id": "b", "title": "B"}]}`)
	}))
	defer server.Close()

	schemes, err := newTestClient(t, server.URL+"/api/").ListSchemes(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(schemes) != 2 || schemes[0].ID != "a" || schemes[1].Title != "B" {
		t.Fatalf("unexpected schemes: %+v", schemes)
	}
	if schemes[0].RequiredDocuments == nil {
		t.Fatalf("documents should be an empty list, not nil")
	}
}

func TestSchemeListsKeptAsSent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"schemes": [{"id": "a", "title": "A", "documents": ["Aadhaar", "", "Ration card"], "steps": ["", "Apply online"]}]}`)
	}))
	defer server.Close()

	schemes, err := newTestClient(t, server.URL).ListSchemes(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if got := schemes[0].RequiredDocuments; !reflect.DeepEqual(got, []string{"Aadhaar", "", "Ration card"}) {
		t.Fatalf("documents changed in mapping: %q", got)
	}
	if got := schemes[0].ApplicationSteps; !reflect.DeepEqual(got, []string{"", "Apply online"}) {
		t.Fatalf("steps changed in mapping: %q", got)
	}
}

func TestGetScheme(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req schemeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.SchemeID != "ayushman_bharat" {
			http.Error(w, `{"detail":"Scheme not found"}`, http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"scheme": {"id": "ayushman_bharat", "title": "Ayushman Bharat Yojana", "benefits": "Health coverage"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	scheme, err := client.GetScheme(context.Background(), "ayushman_bharat")
	if err != nil {
		t.Fatalf("get scheme failed: %v", err)
	}
	if scheme.Title != "Ayushman Bharat Yojana" || scheme.BenefitsText != "Health coverage" {
		t.Fatalf("unexpected scheme: %+v", scheme)
	}

	_, err = client.GetScheme(context.Background(), "unknown")
	if !errors.Is(err, ErrSchemeNotFound) || !errors.Is(err, domain.ErrNetworkOrService) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := client.GetScheme(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestFetchAudioStoresResponseInCache(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio/reply.wav":
			w.Header().Set("Content-Type", "audio/wav")
			_, _ = io.WriteString(w, "RIFFwav")
		case "/audio/reply.mp3":
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = io.WriteString(w, "ID3mp3")
		case "/audio/empty.mp3":
			w.Header().Set("Content-Type", "audio/mpeg")
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	wavPath, err := client.FetchAudio(context.Background(), server.URL+"/audio/reply.wav")
	if err != nil {
		t.Fatalf("fetch wav failed: %v", err)
	}
	if filepath.Base(wavPath) != "response_1700000000000.wav" {
		t.Fatalf("unexpected cache name: %q", wavPath)
	}

	mp3Path, err := client.FetchAudio(context.Background(), server.URL+"/audio/reply.mp3")
	if err != nil {
		t.Fatalf("fetch mp3 failed: %v", err)
	}
	if filepath.Base(mp3Path) != "response_1700000000000.mp3" {
		t.Fatalf("unexpected cache name: %q", mp3Path)
	}
	data, err := os.ReadFile(mp3Path)
	if err != nil || string(data) != "ID3mp3" {
		t.Fatalf("unexpected cached bytes %q: %v", string(data), err)
	}

	again, err := client.FetchAudio(context.Background(), server.URL+"/audio/reply.mp3")
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if again == mp3Path {
		t.Fatalf("second download must not overwrite the first: %q", again)
	}

	if _, err := client.FetchAudio(context.Background(), server.URL+"/audio/missing.mp3"); !errors.Is(err, domain.ErrNetworkOrService) {
		t.Fatalf("expected service error for 404, got %v", err)
	}
	if _, err := client.FetchAudio(context.Background(), server.URL+"/audio/empty.mp3"); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected malformed error for empty body, got %v", err)
	}
}

func TestSpeechToTextAndTextToSpeech(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio/speech-to-text":
			if _, _, err := r.FormFile("audio_file"); err != nil {
				http.Error(w, "missing file", http.StatusUnprocessableEntity)
				return
			}
			_, _ = io.WriteString(w, `{"text": "namaste"}`)
		case "/text-to-speech":
			body, _ := io.ReadAll(r.Body)
			if string(body) != "hello there" {
				t.Errorf("unexpected tts body %q", string(body))
			}
			w.Header().Set("Content-Type", "audio/wav")
			_, _ = io.WriteString(w, "RIFFtts")
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	text, err := client.SpeechToText(context.Background(), writeRecording(t, "RIFF"))
	if err != nil || text != "namaste" {
		t.Fatalf("unexpected transcript %q: %v", text, err)
	}

	path, err := client.TextToSpeech(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("tts failed: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "speech_") || filepath.Ext(path) != ".wav" {
		t.Fatalf("unexpected tts path: %q", path)
	}

	if _, err := client.TextToSpeech(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestNewValidatesBaseURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "ftp://example.org", "://bad"} {
		if _, err := New(Config{BaseURL: raw}); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}

	client, err := New(Config{BaseURL: "https://example.org/api"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if got := client.BaseURL().String(); got != "https://example.org/api" {
		t.Fatalf("unexpected base url %q", got)
	}
	if got := client.endpoint("/schemes"); got != "https://example.org/api/schemes" {
		t.Fatalf("unexpected endpoint %q", got)
	}
}

func TestAudioExtension(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"audio/wav":                ".wav",
		"audio/x-wav; codecs=1":    ".wav",
		"audio/mpeg":               ".mp3",
		"application/octet-stream": ".mp3",
		"":                         ".mp3",
	}
	for contentType, want := range cases {
		if got := audioExtension(contentType); got != want {
			t.Fatalf("audioExtension(%q) = %q, want %q", contentType, got, want)
		}
	}
}
