package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"maitri/internal/domain"
	"maitri/internal/ports"
)

// Config controls turn behavior.
type Config struct {
	// TurnTimeout bounds the upload and the reply fetch of one turn.
	TurnTimeout time.Duration
}

// ConversationController sequences recording, upload and reply playback for the live turn.
type ConversationController struct {
	recorder *Recorder
	player   *PlaybackSession
	service  ports.SchemeService
	events   ports.EventSink
	cfg      Config
	newID    func() string

	mu         sync.Mutex
	status     domain.TurnStatus
	turn       domain.ConversationTurn
	message    string
	lastPlayed string
}

func NewConversationController(
	recorder *Recorder,
	player *PlaybackSession,
	service ports.SchemeService,
	events ports.EventSink,
	cfg Config,
) *ConversationController {
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = time.Minute
	}
	c := &ConversationController{
		recorder: recorder,
		player:   player,
		service:  service,
		events:   events,
		cfg:      cfg,
		newID:    uuid.NewString,
		status:   domain.TurnStatusIdle,
		turn:     domain.ConversationTurn{Status: domain.TurnStatusIdle},
	}
	player.SetListener(c)
	return c
}

// StartRecording stops any reply playback and begins capturing a new request.
func (c *ConversationController) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	switch c.status {
	case domain.TurnStatusUploading, domain.TurnStatusAwaitingReply:
		c.mu.Unlock()
		return domain.ErrConcurrentTurnRejected
	case domain.TurnStatusRecording:
		c.mu.Unlock()
		return domain.InvalidState("start recording", domain.TurnStatusRecording)
	}
	c.setStatusLocked(domain.TurnStatusRecording)
	c.message = ""
	c.mu.Unlock()

	audible := c.player.State().Active()
	c.player.Stop()
	if audible {
		c.events.TurnStateChanged(domain.TurnStatusRecording, domain.TurnReasonPlaybackInterrupted)
	}

	if _, err := c.recorder.Begin(ctx); err != nil {
		c.recordingFailed(err)
		return err
	}
	c.events.TurnStateChanged(domain.TurnStatusRecording, domain.TurnReasonRecordingStarted)
	return nil
}

// StopRecording ends the capture and submits it as a new turn.
func (c *ConversationController) StopRecording(ctx context.Context) (domain.ConversationTurn, error) {
	c.mu.Lock()
	if c.status != domain.TurnStatusRecording {
		status := c.status
		c.mu.Unlock()
		return domain.ConversationTurn{}, domain.InvalidState("stop recording", status)
	}
	turn := c.beginTurnLocked()
	c.mu.Unlock()

	handle, err := c.recorder.End()
	if err != nil {
		c.recordingFailed(err)
		return domain.ConversationTurn{}, err
	}

	c.announceTurn(turn)
	return c.upload(ctx, turn.ID, handle)
}

// CancelRecording discards the capture in progress.
func (c *ConversationController) CancelRecording() error {
	c.mu.Lock()
	if c.status != domain.TurnStatusRecording {
		status := c.status
		c.mu.Unlock()
		return domain.InvalidState("cancel recording", status)
	}
	c.setStatusLocked(domain.TurnStatusIdle)
	c.mu.Unlock()

	c.recorder.Teardown()
	c.events.TurnStateChanged(domain.TurnStatusIdle, domain.TurnReasonRecordingDiscarded)
	return nil
}

// OnRecordingCompleted submits a finished recording. The previous turn is cleared immediately.
func (c *ConversationController) OnRecordingCompleted(ctx context.Context, recording domain.RecordingHandle) (domain.ConversationTurn, error) {
	c.mu.Lock()
	switch {
	case c.status.InFlight():
		c.mu.Unlock()
		return domain.ConversationTurn{}, domain.ErrConcurrentTurnRejected
	case c.status == domain.TurnStatusRecording:
		c.mu.Unlock()
		return domain.ConversationTurn{}, domain.InvalidState("complete a turn", domain.TurnStatusRecording)
	}
	turn := c.beginTurnLocked()
	c.mu.Unlock()

	c.announceTurn(turn)
	return c.upload(ctx, turn.ID, recording)
}

// PlayReply plays the current turn's reply again.
func (c *ConversationController) PlayReply(ctx context.Context) error {
	c.mu.Lock()
	locator := c.turn.AudioReplyLocator
	if locator == "" {
		c.mu.Unlock()
		return domain.InvalidState("play reply", "no reply audio")
	}
	switch c.status {
	case domain.TurnStatusRecording, domain.TurnStatusUploading, domain.TurnStatusAwaitingReply:
		status := c.status
		c.mu.Unlock()
		return domain.InvalidState("play reply", status)
	}
	turnID := c.turn.ID
	c.setStatusLocked(domain.TurnStatusAwaitingReply)
	c.mu.Unlock()

	c.events.TurnStateChanged(domain.TurnStatusAwaitingReply, domain.TurnReasonReplayRequested)
	return c.playReply(ctx, turnID, locator)
}

// PlaybackEnded moves the turn to Ready once the reply stops, whether it finished or failed.
func (c *ConversationController) PlaybackEnded(outcome PlaybackOutcome) {
	c.mu.Lock()
	if c.status != domain.TurnStatusAwaitingReply && c.status != domain.TurnStatusPlayingReply {
		c.mu.Unlock()
		return
	}
	c.setStatusLocked(domain.TurnStatusReady)
	c.mu.Unlock()

	if outcome.Finished() {
		c.events.TurnStateChanged(domain.TurnStatusReady, domain.TurnReasonReplyFinished)
		return
	}
	c.events.TurnError(domain.ErrorCodePlayback, outcome.Err.Error())
	c.events.TurnStateChanged(domain.TurnStatusReady, domain.TurnReasonReplyPlaybackFailed)
}

// Turn returns a snapshot of the live turn.
func (c *ConversationController) Turn() domain.ConversationTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turn.Clone()
}

// Status returns the current backend status.
func (c *ConversationController) Status() domain.Status {
	c.mu.Lock()
	status := domain.Status{
		State:   c.status,
		Message: c.message,
		Turn:    c.turn.Clone(),
	}
	c.mu.Unlock()

	status.Active = status.State == domain.TurnStatusRecording || status.State.InFlight()
	status.Recording = c.recorder.State()
	status.Playback = c.player.State()
	if current := c.recorder.Current(); current != nil {
		status.RecordingSeconds = current.Duration()
	}
	return status
}

// Close releases the microphone and the speaker.
func (c *ConversationController) Close() {
	c.recorder.Teardown()
	c.player.Close()
}

func (c *ConversationController) beginTurnLocked() domain.ConversationTurn {
	c.turn = domain.ConversationTurn{ID: c.newID()}
	c.message = ""
	c.lastPlayed = ""
	c.setStatusLocked(domain.TurnStatusUploading)
	return c.turn.Clone()
}

func (c *ConversationController) setStatusLocked(status domain.TurnStatus) {
	c.status = status
	c.turn.Status = status
}

func (c *ConversationController) announceTurn(turn domain.ConversationTurn) {
	c.events.TurnUpdated(turn)
	c.events.TurnStateChanged(domain.TurnStatusUploading, domain.TurnReasonUploading)
}

func (c *ConversationController) upload(ctx context.Context, turnID string, recording domain.RecordingHandle) (domain.ConversationTurn, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.TurnTimeout)
	reply, err := c.service.ProcessAudio(reqCtx, recording)
	cancel()
	if err != nil {
		return c.failTurn(turnID, err)
	}

	c.mu.Lock()
	if c.turn.ID != turnID {
		c.mu.Unlock()
		return domain.ConversationTurn{}, domain.InvalidState("apply reply", "superseded turn")
	}
	c.turn.UserText = reply.UserText
	if c.turn.UserText == "" {
		c.turn.UserText = recording.TranscribedText
	}
	c.turn.ResponseText = reply.ResponseText
	c.turn.MatchedSchemes = reply.Schemes
	c.turn.AudioReplyLocator = reply.AudioURL

	next, reason := domain.TurnStatusReady, domain.TurnReasonReplyTextOnly
	if reply.AudioURL != "" {
		next, reason = domain.TurnStatusAwaitingReply, domain.TurnReasonReplyReceived
	}
	c.setStatusLocked(next)
	turn := c.turn.Clone()
	c.mu.Unlock()

	c.events.TurnUpdated(turn)
	c.events.TurnStateChanged(next, reason)

	if reply.AudioURL != "" {
		_ = c.playReply(ctx, turnID, reply.AudioURL)
	}
	return c.Turn(), nil
}

func (c *ConversationController) playReply(ctx context.Context, turnID, locator string) error {
	playCtx, cancel := context.WithTimeout(ctx, c.cfg.TurnTimeout)
	defer cancel()

	c.mu.Lock()
	replay := c.lastPlayed == locator
	c.lastPlayed = locator
	c.mu.Unlock()

	var err error
	if replay && c.player.State() == domain.PlaybackStateFinished {
		err = c.player.Replay(playCtx)
		if errors.Is(err, domain.ErrInvalidState) {
			err = c.player.Play(playCtx, locator)
		}
	} else {
		err = c.player.Play(playCtx, locator)
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.turn.ID != turnID || c.status != domain.TurnStatusAwaitingReply {
		c.mu.Unlock()
		return nil
	}
	c.setStatusLocked(domain.TurnStatusPlayingReply)
	c.mu.Unlock()

	c.events.TurnStateChanged(domain.TurnStatusPlayingReply, domain.TurnReasonReplyPlaying)
	return nil
}

func (c *ConversationController) failTurn(turnID string, cause error) (domain.ConversationTurn, error) {
	err := cause
	if !errors.Is(err, domain.ErrNetworkOrService) {
		err = fmt.Errorf("%w: %w", domain.ErrNetworkOrService, cause)
	}

	c.mu.Lock()
	if c.turn.ID == turnID {
		c.turn.ResponseText = domain.FallbackResponse
		c.turn.MatchedSchemes = nil
		c.turn.AudioReplyLocator = ""
		c.message = domain.FallbackResponse
		c.setStatusLocked(domain.TurnStatusError)
	}
	turn := c.turn.Clone()
	c.mu.Unlock()

	c.events.TurnUpdated(turn)
	c.events.TurnError(domain.ErrorCodeNetworkOrService, err.Error())
	c.events.TurnStateChanged(domain.TurnStatusError, domain.TurnReasonServiceFailed)
	return turn, err
}

func (c *ConversationController) recordingFailed(err error) {
	reason, message := domain.TurnReasonCaptureLost, "Recording failed"
	if errors.Is(err, domain.ErrPermissionDenied) {
		reason, message = domain.TurnReasonPermissionDenied, domain.PermissionMessage
	}

	c.mu.Lock()
	c.message = message
	c.setStatusLocked(domain.TurnStatusError)
	c.mu.Unlock()

	c.events.TurnError(domain.CodeOf(err), err.Error())
	c.events.TurnStateChanged(domain.TurnStatusError, reason)
}
