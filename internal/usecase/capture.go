package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"voicechat/internal/domain"
	"voicechat/internal/ports"
)

// CaptureConfig controls how the microphone is opened and read.
type CaptureConfig struct {
	Audio     ports.AudioConfig
	Encoding  string
	ChunkSize int
}

// CaptureController owns the audio input device and at most one capture session.
type CaptureController struct {
	device ports.AudioCapture
	cfg    CaptureConfig
	logger *zap.Logger

	mu      sync.Mutex
	state   domain.CaptureState
	current *captureSession
}

type captureSession struct {
	audio  ports.AudioSession
	cancel context.CancelFunc
	buffer *fragmentBuffer
	done   chan struct{}
	logger *zap.Logger

	stopOnce  sync.Once
	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

func NewCaptureController(device ports.AudioCapture, cfg CaptureConfig, logger *zap.Logger) *CaptureController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptureController{
		device: device,
		cfg:    cfg,
		logger: logger,
		state:  domain.CaptureStateIdle,
	}
}

// Start opens the device and begins buffering fragments in the background.
func (c *CaptureController) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state := c.stateLocked(); state != domain.CaptureStateIdle {
		return &domain.InvalidStateError{Op: "start capture", State: string(state)}
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	audio, err := c.device.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		cancel()
		return &domain.DeviceUnavailableError{Err: err}
	}

	session := &captureSession{
		audio:  audio,
		cancel: cancel,
		buffer: &fragmentBuffer{},
		done:   make(chan struct{}),
		logger: c.logger,
	}
	c.current = session
	c.state = domain.CaptureStateRecording

	go pumpFragments(audio, session.buffer, c.cfg.ChunkSize, session.fail, session.done)

	c.logger.Debug("capture started",
		zap.Int("sample_rate", c.cfg.Audio.SampleRate),
		zap.Int("channels", c.cfg.Audio.Channels),
	)
	return nil
}

// Stop finalizes the buffered fragments into one payload and releases the device.
// A session whose device failed mid-recording is reset and reported as unavailable.
func (c *CaptureController) Stop() (domain.AudioPayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.stateLocked()
	switch state {
	case domain.CaptureStateRecording:
	case domain.CaptureStateFailed:
		session := c.current
		c.resetLocked()
		<-session.done
		return domain.AudioPayload{}, &domain.DeviceUnavailableError{Err: session.failure()}
	default:
		return domain.AudioPayload{}, &domain.InvalidStateError{Op: "stop capture", State: string(state)}
	}

	session := c.current
	c.state = domain.CaptureStateStopping
	session.finish()
	c.resetLocked()

	if err := session.failure(); err != nil {
		return domain.AudioPayload{}, &domain.DeviceUnavailableError{Err: err}
	}

	payload := domain.AudioPayload{
		Data:       session.buffer.Bytes(),
		Encoding:   c.cfg.Encoding,
		SampleRate: c.cfg.Audio.SampleRate,
		Channels:   c.cfg.Audio.Channels,
	}
	c.logger.Debug("capture stopped",
		zap.Int("fragments", session.buffer.Len()),
		zap.Int("bytes", len(payload.Data)),
	)
	return payload, nil
}

// Cancel discards an in-progress recording and releases the device.
func (c *CaptureController) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return &domain.InvalidStateError{Op: "cancel capture", State: string(c.stateLocked())}
	}

	session := c.current
	session.abort()
	c.resetLocked()
	c.logger.Debug("capture discarded")
	return nil
}

// Close releases the device if a session is still open.
func (c *CaptureController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.abort()
		c.resetLocked()
	}
	return nil
}

// State reports the capture lifecycle state.
func (c *CaptureController) State() domain.CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *CaptureController) stateLocked() domain.CaptureState {
	if c.current != nil && c.current.failure() != nil {
		return domain.CaptureStateFailed
	}
	return c.state
}

func (c *CaptureController) resetLocked() {
	c.current = nil
	c.state = domain.CaptureStateIdle
}

// finish stops production, drains the remaining fragments and then releases the stream.
func (s *captureSession) finish() {
	s.stop()
	<-s.done
	s.close()
}

// abort releases the device without waiting for pending fragments.
func (s *captureSession) abort() {
	s.stop()
	s.close()
	<-s.done
}

// fail runs on the pump goroutine, so it must not wait for done.
func (s *captureSession) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()

	s.logger.Error("audio capture failed", zap.Error(err))
	s.stop()
	s.close()
}

func (s *captureSession) stop() {
	s.stopOnce.Do(func() {
		if err := s.audio.Stop(); err != nil {
			s.logger.Warn("failed to stop audio capture cleanly", zap.Error(err))
		}
	})
}

func (s *captureSession) close() {
	s.closeOnce.Do(func() {
		if err := s.audio.Close(); err != nil {
			s.logger.Debug("audio stream close", zap.Error(err))
		}
		s.cancel()
	})
}

func (s *captureSession) failure() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}
