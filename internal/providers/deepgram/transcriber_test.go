package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicechat/internal/domain"
)

type fakeListenServer struct {
	t       *testing.T
	replies []string

	mu      sync.Mutex
	header  http.Header
	query   url.Values
	audio   []byte
	binary  int
	control []string
}

func (f *fakeListenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	f.mu.Lock()
	f.header = r.Header.Clone()
	f.query = r.URL.Query()
	f.mu.Unlock()

	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f.mu.Lock()
		if kind == websocket.BinaryMessage {
			f.audio = append(f.audio, payload...)
			f.binary++
			f.mu.Unlock()
			continue
		}
		f.control = append(f.control, string(payload))
		f.mu.Unlock()
		break
	}

	for _, reply := range f.replies {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_, _, _ = conn.ReadMessage()
}

func newListenServer(t *testing.T, replies ...string) (*fakeListenServer, string) {
	t.Helper()
	fake := &fakeListenServer{t: t, replies: replies}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return fake, server.URL
}

func TestNewTranscriberDefaults(t *testing.T) {
	t.Parallel()

	tr := NewTranscriber(Config{})
	assert.Equal(t, "https://api.deepgram.com/v1", tr.cfg.APIBaseURL)
	assert.Equal(t, "nova-2", tr.cfg.Model)
	assert.Equal(t, defaultChunkSize, tr.cfg.ChunkSize)
	assert.Equal(t, defaultTimeout, tr.cfg.Timeout)
}

func TestTranscribeRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewTranscriber(Config{}).Transcribe(context.Background(), domain.AudioPayload{Data: []byte{1}})
	var transcriptionErr *domain.TranscriptionError
	require.True(t, errors.As(err, &transcriptionErr))
	assert.Contains(t, err.Error(), "DEEPGRAM_API_KEY")
}

func TestTranscribeEmptyPayloadSkipsProvider(t *testing.T) {
	t.Parallel()

	text, err := NewTranscriber(Config{APIKey: "k", APIBaseURL: "http://127.0.0.1:1"}).
		Transcribe(context.Background(), domain.AudioPayload{})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestTranscribeStreamsAudioAndJoinsFinals(t *testing.T) {
	t.Parallel()

	fake, base := newListenServer(t,
		`{"type":"Metadata"}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"book a"}]}}`,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"ignored"}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":" flight "}]}}`,
		`not json`,
	)

	tr := NewTranscriber(Config{APIKey: "secret", APIBaseURL: base, Language: "en", ChunkSize: 4})
	text, err := tr.Transcribe(context.Background(), domain.AudioPayload{
		Data:       []byte("0123456789"),
		Encoding:   "linear16",
		SampleRate: 8000,
		Channels:   1,
	})
	require.NoError(t, err)
	assert.Equal(t, "book a flight", text)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "Token secret", fake.header.Get("Authorization"))
	assert.Equal(t, "8000", fake.query.Get("sample_rate"))
	assert.Equal(t, "false", fake.query.Get("interim_results"))
	assert.Equal(t, "en", fake.query.Get("language"))
	assert.Equal(t, "0123456789", string(fake.audio))
	assert.Equal(t, 3, fake.binary)
	assert.Equal(t, []string{`{"type":"CloseStream"}`}, fake.control)
}

func TestTranscribeReportsProviderError(t *testing.T) {
	t.Parallel()

	_, base := newListenServer(t, `{"type":"Error","message":"unsupported encoding"}`)

	_, err := NewTranscriber(Config{APIKey: "k", APIBaseURL: base}).
		Transcribe(context.Background(), domain.AudioPayload{Data: []byte{1, 2}})
	var transcriptionErr *domain.TranscriptionError
	require.True(t, errors.As(err, &transcriptionErr))
	assert.Contains(t, err.Error(), "unsupported encoding")
}

func TestTranscribeHonoursContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewTranscriber(Config{APIKey: "k", APIBaseURL: server.URL}).
		Transcribe(ctx, domain.AudioPayload{Data: []byte{1, 2}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "unexpected error: %v", err)
}

func TestTranscribeTimesOutOnSilentProvider(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	errCh := make(chan error, 1)
	go func() {
		_, err := NewTranscriber(Config{APIKey: "k", APIBaseURL: server.URL, Timeout: 100 * time.Millisecond}).
			Transcribe(context.Background(), domain.AudioPayload{Data: []byte{1, 2}})
		errCh <- err
	}()

	select {
	case err := <-errCh:
		var transcriptionErr *domain.TranscriptionError
		require.ErrorAs(t, err, &transcriptionErr)
	case <-time.After(2 * time.Second):
		t.Fatal("transcription did not time out")
	}
}

func TestTranscribeDialFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	_, err := NewTranscriber(Config{APIKey: "k", APIBaseURL: base}).
		Transcribe(context.Background(), domain.AudioPayload{Data: []byte{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestBuildListenURLDefaults(t *testing.T) {
	t.Parallel()

	got, err := buildListenURL(Config{APIBaseURL: "https://api.deepgram.com/v1", Model: "nova-2"}, domain.AudioPayload{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "wss://api.deepgram.com/v1/listen?"), got)
	for _, fragment := range []string{"encoding=linear16", "sample_rate=16000", "channels=1", "model=nova-2", "smart_format=false"} {
		assert.Contains(t, got, fragment)
	}
	assert.NotContains(t, got, "language=")
}

func TestBuildListenURLInvalidBase(t *testing.T) {
	t.Parallel()

	_, err := buildListenURL(Config{APIBaseURL: ":// bad"}, domain.AudioPayload{})
	assert.Error(t, err)
}

func TestExtractTranscriptFallsBackToResults(t *testing.T) {
	t.Parallel()

	var response deepgramResponse
	response.Results.Channels = make([]struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	}, 1)
	response.Results.Channels[0].Alternatives = []struct {
		Transcript string `json:"transcript"`
	}{{Transcript: " results "}}

	assert.Equal(t, "results", extractTranscript(response))
	assert.Empty(t, extractTranscript(deepgramResponse{}))
}

func TestIsNormalClose(t *testing.T) {
	t.Parallel()

	assert.True(t, isNormalClose(&websocket.CloseError{Code: websocket.CloseNormalClosure}))
	assert.False(t, isNormalClose(&websocket.CloseError{Code: websocket.CloseInternalServerErr}))
	assert.False(t, isNormalClose(errors.New("boom")))
}
