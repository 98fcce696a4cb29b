package usecase

import (
	"maitri/internal/ports"
)

// runDurationCounter advances the recording clock once per tick until stop closes.
func runDurationCounter(
	ticker ports.Ticker,
	advance func() int,
	events ports.EventSink,
	stop <-chan struct{},
	done chan struct{},
) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case _, ok := <-ticker.C():
			if !ok {
				return
			}
			events.RecordingProgress(advance())
		}
	}
}
