package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	"voicechat/internal/audio"
	"voicechat/internal/config"
	"voicechat/internal/conversation"
	"voicechat/internal/logging"
	"voicechat/internal/ports"
	"voicechat/internal/providers/backend"
	"voicechat/internal/providers/deepgram"
	"voicechat/internal/remote"
	"voicechat/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
	Logger     *zap.Logger
}

// Build loads configuration and wires all dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return Services{}, err
	}

	controller, err := Wire(cfg, eventSink, logger)
	if err != nil {
		_ = logger.Sync()
		return Services{}, err
	}

	return Services{Controller: controller, Config: cfg, Logger: logger}, nil
}

// Wire assembles the session controller from an already resolved configuration.
func Wire(cfg config.Config, eventSink ports.EventSink, logger *zap.Logger) (*usecase.SessionController, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := remote.New(remote.Config{
		BaseURL: cfg.Backend.BaseURL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.RequestTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure backend client: %w", err)
	}

	transcriber, err := newTranscriber(cfg, client)
	if err != nil {
		return nil, err
	}

	recorder := usecase.NewCaptureController(
		audio.NewFFmpegDevice(cfg.Audio.RecorderCommand),
		usecase.CaptureConfig{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Encoding:  "linear16",
			ChunkSize: cfg.Session.ChunkSize,
		},
		logger.Named("capture"),
	)

	logger.Info("voice chat configured",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("transcriber", cfg.Transcription.Provider),
		zap.String("audio_input", cfg.Audio.InputDevice),
	)

	return usecase.NewSessionController(
		recorder,
		transcriber,
		backend.NewChatClient(client, cfg.Backend.ChatPath),
		conversation.NewLog(),
		eventSink,
		logger.Named("session"),
	), nil
}

func newTranscriber(cfg config.Config, client *remote.Client) (ports.Transcriber, error) {
	switch cfg.Transcription.Provider {
	case config.TranscriberBackend, "":
		return backend.NewTranscriber(client, cfg.Backend.TranscribePath), nil
	case config.TranscriberDeepgram:
		return deepgram.NewTranscriber(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
			Timeout:     cfg.Backend.RequestTimeout(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown transcriber %q", cfg.Transcription.Provider)
	}
}
