package domain

import "github.com/google/uuid"

// Fixed user-facing notices. Raw error detail never reaches the conversation log.
const (
	VoicePlaceholder = "(Processing voice...)"
	ChatErrorNotice  = "Sorry, there was an error."
	VoiceErrorNotice = "Voice processing failed"
)

// Origin identifies who authored a message.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

// MessageStatus marks whether a message is settled or a placeholder.
type MessageStatus string

const (
	MessageStatusFinal   MessageStatus = "final"
	MessageStatusPending MessageStatus = "pending"
)

// Message is one entry of the conversation log.
type Message struct {
	ID      string        `json:"id"`
	Content string        `json:"content"`
	Origin  Origin        `json:"origin"`
	Status  MessageStatus `json:"status"`
}

// NewMessage builds a message with a fresh identity.
func NewMessage(origin Origin, status MessageStatus, content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Content: content,
		Origin:  origin,
		Status:  status,
	}
}

func (m Message) IsPending() bool {
	return m.Status == MessageStatusPending
}

// LogChangeKind identifies a conversation log mutation.
type LogChangeKind string

const (
	LogChangeAppended LogChangeKind = "appended"
	LogChangeReplaced LogChangeKind = "replaced"
	LogChangeDropped  LogChangeKind = "dropped"
)

// LogChange describes a single mutation of the conversation log.
type LogChange struct {
	Kind    LogChangeKind `json:"kind"`
	Index   int           `json:"index"`
	Message Message       `json:"message"`
}

// SessionState models the orchestrator lifecycle.
type SessionState string

const (
	SessionStateIdle                        SessionState = "idle"
	SessionStateAwaitingChatReply           SessionState = "awaiting_chat_reply"
	SessionStateRecording                   SessionState = "recording"
	SessionStateAwaitingTranscription       SessionState = "awaiting_transcription"
	SessionStateAwaitingChatReplyAfterVoice SessionState = "awaiting_chat_reply_after_voice"
)

// CaptureState models one capture session lifecycle.
type CaptureState string

const (
	CaptureStateIdle      CaptureState = "idle"
	CaptureStateRecording CaptureState = "recording"
	CaptureStateStopping  CaptureState = "stopping"
	CaptureStateFailed    CaptureState = "failed"
)

// AudioPayload is a finished recording: raw PCM fragments concatenated in arrival order.
type AudioPayload struct {
	Data       []byte `json:"-"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

func (p AudioPayload) Empty() bool {
	return len(p.Data) == 0
}

// Status summarizes the current runtime status.
type Status struct {
	State     SessionState `json:"state"`
	Recording bool         `json:"recording"`
	Busy      bool         `json:"busy"`
	Messages  int          `json:"messages"`
	Message   string       `json:"message,omitempty"`
}
