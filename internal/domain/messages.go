package domain

// ReasonMessage is the user-facing line for a turn transition.
func ReasonMessage(reason TurnReason) string {
	switch reason {
	case TurnReasonMicCold:
		return "Tap the microphone and ask about government schemes"
	case TurnReasonRecordingStarted:
		return "Listening..."
	case TurnReasonRecordingDiscarded:
		return "Recording discarded"
	case TurnReasonUploading:
		return "Processing your request..."
	case TurnReasonReplyReceived:
		return "Reply received"
	case TurnReasonReplyTextOnly:
		return "Reply received (no audio)"
	case TurnReasonReplyPlaying:
		return "Playing reply"
	case TurnReasonReplyFinished:
		return "Reply finished"
	case TurnReasonReplyPlaybackFailed:
		return "Could not play the reply"
	case TurnReasonReplayRequested:
		return "Replaying reply"
	case TurnReasonPlaybackInterrupted:
		return "Playback stopped"
	case TurnReasonServiceFailed:
		return FallbackResponse
	case TurnReasonPermissionDenied:
		return PermissionMessage
	case TurnReasonCaptureLost:
		return "Recording failed"
	default:
		return ""
	}
}

// ErrorMessage is the user-facing summary for an error code, falling back to detail.
func ErrorMessage(code ErrorCode, detail string) string {
	switch code {
	case ErrorCodeStartup:
		return "Startup failed"
	case ErrorCodeAudioStop:
		return "Audio stop issue"
	case ErrorCodePermission:
		return PermissionMessage
	case ErrorCodeCaptureLost:
		return "Recording failed"
	case ErrorCodeInvalidState:
		return "Not available right now"
	case ErrorCodeConcurrentTurn:
		return "Please wait for the current reply"
	case ErrorCodeNetworkOrService:
		return FallbackResponse
	case ErrorCodePlayback:
		return "Could not play the reply"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
