package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"voicechat/internal/bootstrap"
	"voicechat/internal/config"
	"voicechat/internal/domain"
	"voicechat/internal/usecase"
)

const (
	eventSession      = "voicechat:session"
	eventConversation = "voicechat:conversation"
	eventError        = "voicechat:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller *usecase.SessionController
	cfg        config.Config
	logger     *zap.Logger
	bootErr    error
}

func NewApp() *App {
	return &App{logger: zap.NewNop()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.emitError("Startup failed", err)
		return
	}

	a.cfg = services.Config
	a.logger = services.Logger
	a.controller = services.Controller
	a.SessionStateChanged(a.controller.State())
}

func (a *App) shutdown(_ context.Context) {
	if a.controller != nil {
		_ = a.controller.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// SetInput mirrors the text field into the session input buffer.
func (a *App) SetInput(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.SetInput(text)
	return nil
}

// SendMessage submits text as a user turn and waits for the assistant reply.
func (a *App) SendMessage(text string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Send(a.ctx, text); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// StartRecording opens the microphone.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.StartRecording(a.ctx); err != nil {
		if errors.Is(err, domain.ErrDeviceUnavailable) {
			a.emitError("Microphone unavailable", err)
		}
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// StopRecording ends capture and runs the voice round trip.
func (a *App) StopRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.StopRecording(a.ctx); err != nil {
		if errors.Is(err, domain.ErrDeviceUnavailable) {
			a.emitError("Microphone unavailable", err)
		}
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// CancelRecording discards an in-progress recording.
func (a *App) CancelRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.controller.CancelRecording(); err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			return nil
		}
		return err
	}
	return nil
}

// GetMessages returns the conversation log in order.
func (a *App) GetMessages() []domain.Message {
	if a.controller == nil {
		return []domain.Message{}
	}
	return a.controller.Messages()
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateIdle, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle}
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"backend":          a.cfg.Backend.BaseURL,
		"transcriber":      a.cfg.Transcription.Provider,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
	}
}

// CopyLastReply puts the most recent assistant message on the clipboard.
func (a *App) CopyLastReply() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	reply, ok := lastReply(a.controller.Messages())
	if !ok {
		return "", errors.New("no assistant reply to copy")
	}
	if err := runtime.ClipboardSetText(a.ctx, reply); err != nil {
		a.logger.Warn("clipboard write failed", zap.Error(err))
		return "", fmt.Errorf("clipboard write failed: %w", err)
	}
	return reply, nil
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]any{
		"state":   string(state),
		"busy":    isBusy(state),
		"message": stateMessage(state),
	})
}

// ConversationChanged forwards every conversation log mutation to the frontend.
func (a *App) ConversationChanged(change domain.LogChange, messages []domain.Message) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventConversation, map[string]any{
		"kind":     string(change.Kind),
		"index":    change.Index,
		"message":  change.Message,
		"messages": messages,
	})
}

func (a *App) emitError(message string, err error) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"message": message,
		"detail":  err.Error(),
	})
}

func stateMessage(state domain.SessionState) string {
	switch state {
	case domain.SessionStateIdle:
		return ""
	case domain.SessionStateRecording:
		return "Recording..."
	case domain.SessionStateAwaitingTranscription:
		return "Transcribing..."
	case domain.SessionStateAwaitingChatReply, domain.SessionStateAwaitingChatReplyAfterVoice:
		return "Waiting for reply..."
	default:
		return ""
	}
}

func isBusy(state domain.SessionState) bool {
	return state != domain.SessionStateIdle && state != domain.SessionStateRecording
}

func lastReply(messages []domain.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Origin == domain.OriginAssistant && !messages[i].IsPending() {
			return messages[i].Content, true
		}
	}
	return "", false
}
