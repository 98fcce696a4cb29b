package usecase

import (
	"time"

	"maitri/internal/ports"
)

// PlaybackOutcome is delivered to the PlaybackListener when a reply stops on its own.
type PlaybackOutcome struct {
	RemoteURL string
	LocalPath string
	Err       error
}

// Finished reports whether the reply played to the end.
func (o PlaybackOutcome) Finished() bool { return o.Err == nil }

// PlaybackListener receives the single terminal notification of a playback.
type PlaybackListener interface {
	PlaybackEnded(outcome PlaybackOutcome)
}

// SystemClock is the wall-clock ports.Clock.
type SystemClock struct{}

func (SystemClock) NewTicker(d time.Duration) ports.Ticker {
	return systemTicker{ticker: time.NewTicker(d)}
}

type systemTicker struct {
	ticker *time.Ticker
}

func (t systemTicker) C() <-chan time.Time { return t.ticker.C }

func (t systemTicker) Stop() { t.ticker.Stop() }
