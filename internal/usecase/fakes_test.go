package usecase

import (
	"context"
	"errors"
	"io"
	"sync"

	"voicechat/internal/domain"
	"voicechat/internal/ports"
)

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []*fakeAudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

// fakeAudioSession yields its chunks, then blocks like a live microphone until Stop.
type fakeAudioSession struct {
	mu         sync.Mutex
	chunks     [][]byte
	index      int
	readErr    error
	stopped    chan struct{}
	stopOnce   sync.Once
	stopCalls  int
	closeCalls int
}

func newFakeAudioSession(chunks ...string) *fakeAudioSession {
	s := &fakeAudioSession{stopped: make(chan struct{})}
	for _, chunk := range chunks {
		s.chunks = append(s.chunks, []byte(chunk))
	}
	return s
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.index < len(f.chunks) {
		n := copy(p, f.chunks[f.index])
		f.index++
		f.mu.Unlock()
		return n, nil
	}
	readErr := f.readErr
	f.mu.Unlock()

	if readErr != nil {
		return 0, readErr
	}
	<-f.stopped
	return 0, io.EOF
}

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
	return nil
}

func (f *fakeAudioSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeAudioSession) released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls > 0 && f.closeCalls > 0
}

type fakeTranscriber struct {
	mu       sync.Mutex
	text     string
	err      error
	payloads []domain.AudioPayload
}

func (f *fakeTranscriber) Transcribe(_ context.Context, payload domain.AudioPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeTranscriber) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

type fakeChat struct {
	mu     sync.Mutex
	reply  string
	err    error
	inputs []string
	onSend func()
}

func (f *fakeChat) Send(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, text)
	onSend := f.onSend
	f.mu.Unlock()
	if onSend != nil {
		onSend()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeChat) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.inputs))
	copy(out, f.inputs)
	return out
}

type fakeEventSink struct {
	mu      sync.Mutex
	states  []domain.SessionState
	changes []domain.LogChange
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func (f *fakeEventSink) ConversationChanged(change domain.LogChange, _ []domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, change)
}

func (f *fakeEventSink) snapshotStates() []domain.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SessionState, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotChanges() []domain.LogChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.LogChange, len(f.changes))
	copy(out, f.changes)
	return out
}
