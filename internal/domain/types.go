package domain

// TurnStatus models the conversation lifecycle of the live turn.
type TurnStatus string

const (
	TurnStatusIdle          TurnStatus = "idle"
	TurnStatusRecording     TurnStatus = "recording"
	TurnStatusUploading     TurnStatus = "uploading"
	TurnStatusAwaitingReply TurnStatus = "awaiting_reply"
	TurnStatusPlayingReply  TurnStatus = "playing_reply"
	TurnStatusReady         TurnStatus = "ready"
	TurnStatusError         TurnStatus = "error"
)

// InFlight reports whether a turn is between upload and the end of its reply.
func (s TurnStatus) InFlight() bool {
	switch s {
	case TurnStatusUploading, TurnStatusAwaitingReply, TurnStatusPlayingReply:
		return true
	default:
		return false
	}
}

// TurnReason provides a structured reason for turn transitions.
type TurnReason string

const (
	TurnReasonMicCold             TurnReason = "mic_cold"
	TurnReasonRecordingStarted    TurnReason = "recording_started"
	TurnReasonRecordingDiscarded  TurnReason = "recording_discarded"
	TurnReasonUploading           TurnReason = "uploading"
	TurnReasonReplyReceived       TurnReason = "reply_received"
	TurnReasonReplyTextOnly       TurnReason = "reply_text_only"
	TurnReasonReplyPlaying        TurnReason = "reply_playing"
	TurnReasonReplyFinished       TurnReason = "reply_finished"
	TurnReasonReplyPlaybackFailed TurnReason = "reply_playback_failed"
	TurnReasonReplayRequested     TurnReason = "replay_requested"
	TurnReasonPlaybackInterrupted TurnReason = "playback_interrupted"
	TurnReasonServiceFailed       TurnReason = "service_failed"
	TurnReasonPermissionDenied    TurnReason = "permission_denied"
	TurnReasonCaptureLost         TurnReason = "capture_lost"
)

// RecordingState is the lifecycle of one microphone capture.
type RecordingState string

const (
	RecordingStateIdle                 RecordingState = "idle"
	RecordingStateRequestingPermission RecordingState = "requesting_permission"
	RecordingStateArmed                RecordingState = "armed"
	RecordingStateCapturing            RecordingState = "capturing"
	RecordingStateStopping             RecordingState = "stopping"
	RecordingStateCompleted            RecordingState = "completed"
	RecordingStateFailed               RecordingState = "failed"
)

// Terminal reports whether the capture can no longer change state.
func (s RecordingState) Terminal() bool {
	return s == RecordingStateCompleted || s == RecordingStateFailed
}

// PlaybackState is the lifecycle of one reply playback.
type PlaybackState string

const (
	PlaybackStateIdle     PlaybackState = "idle"
	PlaybackStateFetching PlaybackState = "fetching"
	PlaybackStateLoaded   PlaybackState = "loaded"
	PlaybackStatePlaying  PlaybackState = "playing"
	PlaybackStateFinished PlaybackState = "finished"
	PlaybackStateFailed   PlaybackState = "failed"
)

// Active reports whether the playback device may be held.
func (s PlaybackState) Active() bool {
	switch s {
	case PlaybackStateFetching, PlaybackStateLoaded, PlaybackStatePlaying:
		return true
	default:
		return false
	}
}

// RecordingHandle describes a completed capture ready for upload.
type RecordingHandle struct {
	StorageLocator  string `json:"storageLocator"`
	ByteSize        int64  `json:"byteSize"`
	DurationSeconds int    `json:"durationSeconds"`
	TranscribedText string `json:"transcribedText,omitempty"`
}

// SchemeSummary is one government scheme matched to the user's request.
type SchemeSummary struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	EligibilityText   string   `json:"eligibilityText"`
	RequiredDocuments []string `json:"requiredDocuments"`
	ApplicationSteps  []string `json:"applicationSteps"`
	BenefitsText      string   `json:"benefitsText"`
}

// ServiceReply is the decoded answer to one uploaded recording.
type ServiceReply struct {
	UserText     string
	ResponseText string
	Schemes      []SchemeSummary
	AudioURL     string
}

// ConversationTurn is the single live request/response cycle shown to the user.
type ConversationTurn struct {
	ID                string          `json:"id"`
	UserText          string          `json:"userText,omitempty"`
	ResponseText      string          `json:"responseText"`
	MatchedSchemes    []SchemeSummary `json:"matchedSchemes"`
	AudioReplyLocator string          `json:"audioReplyLocator,omitempty"`
	Status            TurnStatus      `json:"status"`
}

// Clone returns a copy that shares no slices with t.
func (t ConversationTurn) Clone() ConversationTurn {
	out := t
	if t.MatchedSchemes != nil {
		out.MatchedSchemes = make([]SchemeSummary, len(t.MatchedSchemes))
		for i, scheme := range t.MatchedSchemes {
			scheme.RequiredDocuments = append([]string(nil), scheme.RequiredDocuments...)
			scheme.ApplicationSteps = append([]string(nil), scheme.ApplicationSteps...)
			out.MatchedSchemes[i] = scheme
		}
	}
	return out
}

// Status summarizes the current runtime status.
type Status struct {
	State            TurnStatus       `json:"state"`
	Active           bool             `json:"active"`
	Recording        RecordingState   `json:"recording"`
	Playback         PlaybackState    `json:"playback"`
	RecordingSeconds int              `json:"recordingSeconds"`
	Message          string           `json:"message,omitempty"`
	Turn             ConversationTurn `json:"turn"`
}
