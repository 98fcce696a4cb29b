package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"maitri/internal/bootstrap"
	"maitri/internal/config"
	"maitri/internal/domain"
	"maitri/internal/schemeapi"
	"maitri/internal/usecase"
)

const (
	eventTurnState = "maitri:state"
	eventProgress  = "maitri:progress"
	eventTurn      = "maitri:turn"
	eventError     = "maitri:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller *usecase.ConversationController
	client     *schemeapi.Client
	cfg        config.Config
	bootErr    error

	mu       sync.Mutex
	expanded string
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.TurnError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.client = services.Client
	a.controller = services.Controller
	a.TurnStateChanged(domain.TurnStatusIdle, domain.TurnReasonMicCold)
}

func (a *App) shutdown(context.Context) {
	if a.controller != nil {
		a.controller.Close()
	}
}

// StartRecording opens the microphone for a new question.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.StartRecording(a.ctx); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// StopRecording submits the recording and returns the answered turn.
func (a *App) StopRecording() (domain.ConversationTurn, error) {
	if err := a.requireReady(); err != nil {
		return domain.ConversationTurn{}, err
	}
	a.collapse()
	return a.controller.StopRecording(a.ctx)
}

// CancelRecording discards an in-progress recording.
func (a *App) CancelRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.CancelRecording()
}

// PlayReply replays the current answer.
func (a *App) PlayReply() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.PlayReply(a.ctx)
}

// GetStatus returns the current conversation status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.TurnStatusError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.TurnStatusIdle, Active: false}
	}
	return a.controller.Status()
}

// ListSchemes returns every scheme the service knows.
func (a *App) ListSchemes() ([]domain.SchemeSummary, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.client.ListSchemes(a.ctx)
}

// GetScheme returns one scheme by id.
func (a *App) GetScheme(id string) (domain.SchemeSummary, error) {
	if err := a.requireReady(); err != nil {
		return domain.SchemeSummary{}, err
	}
	return a.client.GetScheme(a.ctx, id)
}

// ToggleScheme expands the scheme card with id, or collapses it when it is already open.
// At most one card is expanded at a time.
func (a *App) ToggleScheme(id string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.expanded == id {
		a.expanded = ""
	} else {
		a.expanded = id
	}
	return a.expanded
}

// ExpandedScheme returns the id of the open scheme card, if any.
func (a *App) ExpandedScheme() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.expanded
}

func (a *App) collapse() {
	a.mu.Lock()
	a.expanded = ""
	a.mu.Unlock()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"api":              a.cfg.Service.BaseURL,
		"captureBackend":   a.cfg.Audio.CaptureBackend,
		"playbackBackend":  a.cfg.Audio.PlaybackBackend,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"cacheDir":         a.cfg.Storage.CacheDir,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil || a.client == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// TurnStateChanged emits conversation lifecycle updates to the frontend.
func (a *App) TurnStateChanged(state domain.TurnStatus, reason domain.TurnReason) {
	if state == domain.TurnStatusUploading {
		a.collapse()
	}
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTurnState, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": domain.ReasonMessage(reason),
	})
}

// RecordingProgress emits the elapsed recording time.
func (a *App) RecordingProgress(seconds int) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventProgress, map[string]any{
		"seconds": seconds,
		"label":   domain.FormatDuration(seconds),
	})
}

// TurnUpdated emits the live turn.
func (a *App) TurnUpdated(turn domain.ConversationTurn) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTurn, turn)
}

// TurnError emits backend errors to the UI.
func (a *App) TurnError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": domain.ErrorMessage(code, detail),
		"detail":  detail,
	})
}
