package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"voicechat/internal/domain"
)

const (
	defaultChunkSize = 8192
	defaultTimeout   = time.Minute
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	ChunkSize   int

	// Timeout bounds a whole transcription, dial through final result.
	Timeout time.Duration
}

// Transcriber implements ports.Transcriber by streaming a finished recording
// to the Deepgram listen endpoint and collecting the final results.
type Transcriber struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewTranscriber(cfg Config) *Transcriber {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Transcriber{cfg: cfg, dialer: websocket.DefaultDialer}
}

func (t *Transcriber) Transcribe(ctx context.Context, payload domain.AudioPayload) (string, error) {
	if strings.TrimSpace(t.cfg.APIKey) == "" {
		return "", &domain.TranscriptionError{Err: errors.New("DEEPGRAM_API_KEY is not configured")}
	}
	if payload.Empty() {
		return "", nil
	}

	wsURL, err := buildListenURL(t.cfg, payload)
	if err != nil {
		return "", &domain.TranscriptionError{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+t.cfg.APIKey)

	conn, _, err := t.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return "", &domain.TranscriptionError{Err: fmt.Errorf("failed to connect to Deepgram websocket: %w", err)}
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(groupCtx, func() { _ = conn.Close() })
	defer stop()

	var transcript transcriptAccumulator
	group.Go(func() error { return t.writeAudio(conn, payload.Data) })
	group.Go(func() error { return readResults(conn, &transcript) })

	if err := group.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", &domain.TranscriptionError{Err: err}
	}
	return transcript.Text(), nil
}

func (t *Transcriber) writeAudio(conn *websocket.Conn, data []byte) error {
	for start := 0; start < len(data); start += t.cfg.ChunkSize {
		end := min(start+t.cfg.ChunkSize, len(data))
		if err := conn.WriteMessage(websocket.BinaryMessage, data[start:end]); err != nil {
			return fmt.Errorf("failed to send audio: %w", err)
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

// readResults consumes provider messages until the server closes the stream.
func readResults(conn *websocket.Conn, transcript *transcriptAccumulator) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if isNormalClose(err) {
				return nil
			}
			return fmt.Errorf("failed to read provider event: %w", err)
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			return errors.New(message)
		}

		if !response.IsFinal && !response.SpeechFinal {
			continue
		}
		transcript.Add(extractTranscript(response))
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

// transcriptAccumulator joins final segments in arrival order.
type transcriptAccumulator struct {
	mu     sync.Mutex
	finals []string
}

func (a *transcriptAccumulator) Add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finals = append(a.finals, text)
}

func (a *transcriptAccumulator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.finals, " ")
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(cfg Config, payload domain.AudioPayload) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	if payload.Encoding == "" {
		payload.Encoding = "linear16"
	}
	if payload.SampleRate <= 0 {
		payload.SampleRate = 16000
	}
	if payload.Channels <= 0 {
		payload.Channels = 1
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", payload.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", payload.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", payload.Channels))
	query.Set("interim_results", "false")
	query.Set("smart_format", fmt.Sprintf("%t", cfg.SmartFormat))
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
