package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voicechat/internal/bootstrap"
	"voicechat/internal/config"
	"voicechat/internal/domain"
	"voicechat/internal/logging"
	"voicechat/internal/ports"
	"voicechat/internal/usecase"
)

var (
	// Global flags
	verbose     bool
	backendURL  string
	transcriber string
	configPath  string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "voicechat",
	Short: "Text and voice chat with the assistant backend",
	Long: `voicechat sends typed lines to the assistant and prints the replies.

Interactive commands:
  /rec      start recording from the microphone
  /stop     stop recording, transcribe and send
  /cancel   discard the current recording
  /history  print the conversation so far
  /quit     exit`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		controller, err := buildController(newTerminalSink(out))
		if err != nil {
			return err
		}
		defer controller.Close()

		return runREPL(ctx, cmd.InOrStdin(), out, controller)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var sendCmd = &cobra.Command{
	Use:   "send [text]",
	Short: "Send one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, err := buildController(nil)
		if err != nil {
			return err
		}
		defer controller.Close()

		if err := controller.Send(cmd.Context(), strings.Join(args, " ")); err != nil {
			return err
		}
		reply, ok := lastAssistant(controller.Messages())
		if !ok {
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		if reply == domain.ChatErrorNotice {
			return fmt.Errorf("assistant request failed")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Assistant backend URL (or set VOICECHAT_BACKEND_URL)")
	rootCmd.PersistentFlags().StringVar(&transcriber, "transcriber", "", "Transcriber: backend or deepgram (or set VOICECHAT_TRANSCRIBER)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (or set VOICECHAT_CONFIG)")

	rootCmd.AddCommand(sendCmd)
}

func buildController(sink ports.EventSink) (*usecase.SessionController, error) {
	if configPath != "" {
		if err := os.Setenv("VOICECHAT_CONFIG", configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	applyFlags(&cfg)

	logger, err = logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return bootstrap.Wire(cfg, sink, logger)
}

// applyFlags layers command-line overrides on the loaded configuration.
// Terminal output stays readable unless debug logging is requested.
func applyFlags(cfg *config.Config) {
	if backendURL != "" {
		cfg.Backend.BaseURL = backendURL
	}
	if transcriber != "" {
		cfg.Transcription.Provider = strings.ToLower(transcriber)
	}
	if verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	} else if os.Getenv("VOICECHAT_LOG_LEVEL") == "" && cfg.Logging.File == "" {
		cfg.Logging.Level = "error"
	}
}

func lastAssistant(messages []domain.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Origin == domain.OriginAssistant {
			return messages[i].Content, true
		}
	}
	return "", false
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
