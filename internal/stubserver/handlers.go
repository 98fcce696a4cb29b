package stubserver

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const replyAudioName = "reply.wav"

// Options tunes the canned behaviour of the stub.
type Options struct {
	// Transcript is what every uploaded recording "says".
	Transcript string
	// FailProcess makes /process-audio answer 500.
	FailProcess bool
	// OmitAudio drops audio_url from /process-audio replies.
	OmitAudio bool
}

type Handlers struct {
	opts    Options
	catalog *catalog
	reply   []byte
}

func NewHandlers(opts Options) (Handlers, error) {
	if strings.TrimSpace(opts.Transcript) == "" {
		opts.Transcript = "I am pregnant with my first child and we need help"
	}
	cat, err := loadCatalog(schemesJSON)
	if err != nil {
		return Handlers{}, err
	}
	reply, err := toneWAV(440, 600*time.Millisecond)
	if err != nil {
		return Handlers{}, err
	}
	return Handlers{opts: opts, catalog: cat, reply: reply}, nil
}

// New returns an Echo server with the stub routes registered.
func New(opts Options) (*echo.Echo, error) {
	h, err := NewHandlers(opts)
	if err != nil {
		return nil, err
	}
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	h.Register(e)
	return e, nil
}

func (h Handlers) Register(e *echo.Echo) {
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Welcome to Maitri AI API"})
	})
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.POST("/process-audio", h.processAudio)
	e.POST("/audio/speech-to-text", h.speechToText)
	e.POST("/text-to-speech", h.textToSpeech)
	e.GET("/audio/:name", h.audio)
	e.GET("/schemes", h.listSchemes)
	e.POST("/scheme", h.getScheme)
}

type processAudioReply struct {
	Text     string   `json:"text"`
	Response string   `json:"response"`
	Schemes  []Scheme `json:"schemes"`
	AudioURL string   `json:"audio_url,omitempty"`
}

type detail struct {
	Detail string `json:"detail"`
}

func (h Handlers) processAudio(c echo.Context) error {
	if err := requireUpload(c); err != nil {
		return err
	}
	if h.opts.FailProcess {
		c.Echo().Logger.Warn("process-audio failing on request")
		return c.JSON(http.StatusInternalServerError, detail{Detail: "Error processing audio"})
	}

	matched := h.catalog.match(h.opts.Transcript)
	reply := processAudioReply{
		Text:     h.opts.Transcript,
		Response: replyText(matched),
		Schemes:  matched,
	}
	if !h.opts.OmitAudio {
		reply.AudioURL = "/audio/" + replyAudioName
	}
	return c.JSON(http.StatusOK, reply)
}

func (h Handlers) speechToText(c echo.Context) error {
	if err := requireUpload(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"text": h.opts.Transcript})
}

func (h Handlers) textToSpeech(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 64<<10))
	if err != nil {
		return c.JSON(http.StatusBadRequest, detail{Detail: "Failed to read text"})
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		text = strings.TrimSpace(c.QueryParam("text"))
	}
	if text == "" {
		return c.JSON(http.StatusUnprocessableEntity, detail{Detail: "text is required"})
	}

	// Roughly one syllable-length beep per word, capped so replies stay short.
	words := len(strings.Fields(text))
	length := time.Duration(min(words, 20)) * 120 * time.Millisecond
	wav, err := toneWAV(523.25, max(length, 240*time.Millisecond))
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "audio/wav", wav)
}

func (h Handlers) audio(c echo.Context) error {
	if c.Param("name") != replyAudioName {
		return c.JSON(http.StatusNotFound, detail{Detail: "Audio file not found"})
	}
	return c.Blob(http.StatusOK, "audio/wav", h.reply)
}

func (h Handlers) listSchemes(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]Scheme{"schemes": h.catalog.all()})
}

type schemeRequest struct {
	SchemeID string `json:"scheme_id"`
}

func (h Handlers) getScheme(c echo.Context) error {
	var req schemeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, detail{Detail: "scheme_id is required"})
	}
	scheme, ok := h.catalog.get(req.SchemeID)
	if !ok {
		return c.JSON(http.StatusNotFound, detail{Detail: "Scheme not found"})
	}
	return c.JSON(http.StatusOK, map[string]Scheme{"scheme": scheme})
}

func requireUpload(c echo.Context) error {
	file, err := c.FormFile("audio_file")
	if err != nil || file.Size == 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "audio_file is required")
	}
	return nil
}
