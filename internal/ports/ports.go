package ports

import (
	"context"
	"io"

	"voicechat/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture stream. Stop ends capture so Read drains to EOF;
// Close releases the stream. Both are safe to call more than once.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture opens the audio input device.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Transcriber turns a finished recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, payload domain.AudioPayload) (string, error)
}

// ChatService sends user text to the assistant and returns its reply.
type ChatService interface {
	Send(ctx context.Context, text string) (string, error)
}

// EventSink emits orchestrator state and conversation updates to the presentation layer.
type EventSink interface {
	SessionStateChanged(state domain.SessionState)
	ConversationChanged(change domain.LogChange, messages []domain.Message)
}
