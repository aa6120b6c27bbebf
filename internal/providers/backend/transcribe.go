package backend

import (
	"context"
	"errors"

	"voicechat/internal/audio"
	"voicechat/internal/domain"
	"voicechat/internal/remote"
)

const (
	DefaultTranscribePath = "/realtime/transcribe"

	audioField    = "audio"
	audioFilename = "recording.wav"
)

type transcribeResponse struct {
	Text *string `json:"text"`
}

// Transcriber implements ports.Transcriber by uploading the recording as a WAV file.
type Transcriber struct {
	client *remote.Client
	path   string
}

func NewTranscriber(client *remote.Client, path string) *Transcriber {
	if path == "" {
		path = DefaultTranscribePath
	}
	return &Transcriber{client: client, path: path}
}

func (t *Transcriber) Transcribe(ctx context.Context, payload domain.AudioPayload) (string, error) {
	file := remote.FilePart{
		Field:       audioField,
		Filename:    audioFilename,
		ContentType: "audio/wav",
		Data:        audio.EncodeWAV(payload.Data, payload.SampleRate, payload.Channels),
	}

	var out transcribeResponse
	if err := t.client.PostMultipart(ctx, t.path, []remote.FilePart{file}, nil, &out); err != nil {
		return "", &domain.TranscriptionError{Err: err}
	}
	if out.Text == nil {
		return "", &domain.TranscriptionError{Err: errors.New("text field missing")}
	}
	return *out.Text, nil
}
