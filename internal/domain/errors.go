package domain

import (
	"errors"
	"fmt"
	"time"
)

// FallbackResponse replaces the response text when a turn cannot be completed.
const FallbackResponse = "Sorry, there was an error processing your request. Please try again."

// PermissionMessage is shown when microphone access is refused.
const PermissionMessage = "Permission to access microphone is required!"

var (
	ErrPermissionDenied       = errors.New("microphone permission denied")
	ErrCaptureLost            = errors.New("capture lost")
	ErrInvalidState           = errors.New("invalid state")
	ErrConcurrentTurnRejected = errors.New("a turn is already in flight")
	ErrNetworkOrService       = errors.New("network or service error")
	ErrPlayback               = errors.New("playback error")
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup          ErrorCode = "startup"
	ErrorCodeAudioStop        ErrorCode = "audio_stop"
	ErrorCodePermission       ErrorCode = "permission_denied"
	ErrorCodeCaptureLost      ErrorCode = "capture_lost"
	ErrorCodeInvalidState     ErrorCode = "invalid_state"
	ErrorCodeConcurrentTurn   ErrorCode = "concurrent_turn_rejected"
	ErrorCodeNetworkOrService ErrorCode = "network_or_service"
	ErrorCodePlayback         ErrorCode = "playback"
	ErrorCodeUnknown          ErrorCode = "unknown"
)

// CodeOf maps an error chain onto the error code reported to the UI.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return ErrorCodePermission
	case errors.Is(err, ErrCaptureLost):
		return ErrorCodeCaptureLost
	case errors.Is(err, ErrInvalidState):
		return ErrorCodeInvalidState
	case errors.Is(err, ErrConcurrentTurnRejected):
		return ErrorCodeConcurrentTurn
	case errors.Is(err, ErrNetworkOrService):
		return ErrorCodeNetworkOrService
	case errors.Is(err, ErrPlayback):
		return ErrorCodePlayback
	default:
		return ErrorCodeUnknown
	}
}

// InvalidState builds an ErrInvalidState describing the rejected operation.
func InvalidState(op string, state any) error {
	return fmt.Errorf("%w: cannot %s while %v", ErrInvalidState, op, state)
}

// FormatDuration renders whole seconds as mm:ss.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds) * time.Second
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), seconds%60)
}
