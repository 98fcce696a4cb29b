package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

var logLevelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ParseLevel maps a level name onto a slog level. Unknown names yield info.
func ParseLevel(name string) (slog.Level, bool) {
	level, ok := logLevelMap[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return slog.LevelInfo, false
	}
	return level, true
}

// New builds a colourised logger writing to w.
func New(w io.Writer, level string) *slog.Logger {
	parsed, _ := ParseLevel(level)
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      parsed,
		TimeFormat: time.Kitchen,
	}))
}
