package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"voicechat/internal/conversation"
	"voicechat/internal/domain"
	"voicechat/internal/ports"
)

// Recorder is the capture lifecycle the session drives.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (domain.AudioPayload, error)
	Cancel() error
	Close() error
}

var errEmptyTranscript = errors.New("empty transcript")

// SessionController sequences typed and spoken input through capture,
// transcription and chat, and reconciles the outcomes into the conversation log.
type SessionController struct {
	recorder    Recorder
	transcriber ports.Transcriber
	chat        ports.ChatService
	log         *conversation.Log
	events      ports.EventSink
	logger      *zap.Logger

	unsubscribe func()

	mu    sync.Mutex
	state domain.SessionState
	input string
}

func NewSessionController(
	recorder Recorder,
	transcriber ports.Transcriber,
	chat ports.ChatService,
	log *conversation.Log,
	events ports.EventSink,
	logger *zap.Logger,
) *SessionController {
	if log == nil {
		log = conversation.NewLog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &SessionController{
		recorder:    recorder,
		transcriber: transcriber,
		chat:        chat,
		log:         log,
		events:      events,
		logger:      logger,
		state:       domain.SessionStateIdle,
	}
	if events != nil {
		c.unsubscribe = log.Subscribe(events.ConversationChanged)
	}
	return c
}

// SetInput replaces the input buffer. It is accepted in every state.
func (c *SessionController) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

func (c *SessionController) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// SubmitText sends the input buffer to the assistant. Blank input is a silent
// no-op; a chat failure is absorbed into an assistant error notice.
func (c *SessionController) SubmitText(ctx context.Context) error {
	c.mu.Lock()
	return c.submitLocked(ctx, c.input)
}

// Send submits text directly, clearing the input buffer on acceptance.
func (c *SessionController) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	return c.submitLocked(ctx, text)
}

// submitLocked is entered with c.mu held and releases it.
func (c *SessionController) submitLocked(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		c.mu.Unlock()
		return nil
	}
	if c.state != domain.SessionStateIdle {
		state := c.state
		c.mu.Unlock()
		return &domain.InvalidStateError{Op: "submit text", State: string(state)}
	}
	c.input = ""
	c.state = domain.SessionStateAwaitingChatReply
	c.mu.Unlock()

	c.emitState(domain.SessionStateAwaitingChatReply)
	defer c.transition(domain.SessionStateIdle)

	c.appendFinal(domain.OriginUser, text)
	c.askAssistant(ctx, text)
	return nil
}

// StartRecording opens a capture session. A device failure is recorded on the
// diagnostic channel only and leaves the session idle.
func (c *SessionController) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.state != domain.SessionStateIdle {
		state := c.state
		c.mu.Unlock()
		return &domain.InvalidStateError{Op: "start recording", State: string(state)}
	}
	c.state = domain.SessionStateRecording
	c.mu.Unlock()

	if err := c.recorder.Start(ctx); err != nil {
		c.logger.Error("error accessing microphone", zap.Error(err))
		c.mu.Lock()
		c.state = domain.SessionStateIdle
		c.mu.Unlock()
		return err
	}

	c.emitState(domain.SessionStateRecording)
	return nil
}

// StopRecording finalizes the capture and runs the transcribe-then-chat round trip.
// It returns once the round trip has resolved into the log.
func (c *SessionController) StopRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.state != domain.SessionStateRecording {
		state := c.state
		c.mu.Unlock()
		return &domain.InvalidStateError{Op: "stop recording", State: string(state)}
	}
	c.state = domain.SessionStateAwaitingTranscription
	c.mu.Unlock()

	payload, err := c.recorder.Stop()
	if err != nil {
		c.logger.Error("failed to finalize recording", zap.Error(err))
		c.transition(domain.SessionStateIdle)
		return err
	}
	defer c.transition(domain.SessionStateIdle)

	placeholder := domain.NewMessage(domain.OriginUser, domain.MessageStatusPending, domain.VoicePlaceholder)
	index, err := c.log.Append(placeholder)
	if err != nil {
		c.logger.Error("failed to append voice placeholder", zap.Error(err))
		return err
	}
	c.emitState(domain.SessionStateAwaitingTranscription)

	text, err := c.transcribe(ctx, payload)
	if err != nil {
		var transcriptionErr *domain.TranscriptionError
		c.logger.Error("voice processing failed",
			zap.Error(err),
			zap.Bool("transcription_error", errors.As(err, &transcriptionErr)),
			zap.Int("payload_bytes", len(payload.Data)),
		)
		c.resolvePlaceholder(index, placeholder.ID,
			domain.NewMessage(domain.OriginAssistant, domain.MessageStatusFinal, domain.VoiceErrorNotice))
		return nil
	}

	c.resolvePlaceholder(index, placeholder.ID,
		domain.NewMessage(domain.OriginUser, domain.MessageStatusFinal, text))
	c.transition(domain.SessionStateAwaitingChatReplyAfterVoice)
	c.askAssistant(ctx, text)
	return nil
}

// CancelRecording discards the current recording without a log entry.
func (c *SessionController) CancelRecording() error {
	c.mu.Lock()
	if c.state != domain.SessionStateRecording {
		state := c.state
		c.mu.Unlock()
		return &domain.InvalidStateError{Op: "cancel recording", State: string(state)}
	}
	c.state = domain.SessionStateIdle
	c.mu.Unlock()

	err := c.recorder.Cancel()
	if err != nil {
		c.logger.Warn("failed to discard recording", zap.Error(err))
	}
	c.emitState(domain.SessionStateIdle)
	return err
}

// Messages returns the conversation log view.
func (c *SessionController) Messages() []domain.Message {
	return c.log.Messages()
}

// State returns the current orchestrator state.
func (c *SessionController) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the current backend status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	return domain.Status{
		State:     state,
		Recording: state == domain.SessionStateRecording,
		Busy:      state != domain.SessionStateIdle && state != domain.SessionStateRecording,
		Messages:  c.log.Len(),
	}
}

// Close releases the capture device and detaches the event sink.
func (c *SessionController) Close() error {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	return c.recorder.Close()
}

func (c *SessionController) transcribe(ctx context.Context, payload domain.AudioPayload) (string, error) {
	text, err := c.transcriber.Transcribe(ctx, payload)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", &domain.TranscriptionError{Err: errEmptyTranscript}
	}
	return text, nil
}

func (c *SessionController) askAssistant(ctx context.Context, text string) {
	reply, err := c.chat.Send(ctx, text)
	if err != nil {
		c.logger.Error("chat request failed", zap.Error(err))
		c.appendFinal(domain.OriginAssistant, domain.ChatErrorNotice)
		return
	}
	c.appendFinal(domain.OriginAssistant, reply)
}

func (c *SessionController) appendFinal(origin domain.Origin, content string) {
	if _, err := c.log.Append(domain.NewMessage(origin, domain.MessageStatusFinal, content)); err != nil {
		c.logger.Error("failed to append message", zap.Error(err), zap.String("origin", string(origin)))
	}
}

// resolvePlaceholder replaces the placeholder captured at append time. If the
// tail has moved the placeholder is settled where it stands so nothing stays
// pending; the outcome is appended only when the placeholder is gone.
func (c *SessionController) resolvePlaceholder(index int, id string, msg domain.Message) {
	err := c.log.ReplaceTailAt(index, id, msg)
	if err == nil {
		return
	}
	c.logger.Warn("voice placeholder is no longer the tail", zap.Error(err), zap.Int("index", index))
	if err := c.log.ReplacePendingAt(index, id, msg); err != nil {
		c.logger.Error("voice placeholder is gone", zap.Error(err), zap.Int("index", index))
		c.appendFinal(msg.Origin, msg.Content)
	}
}

func (c *SessionController) transition(state domain.SessionState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	c.emitState(state)
}

func (c *SessionController) emitState(state domain.SessionState) {
	if c.events != nil {
		c.events.SessionStateChanged(state)
	}
}
