package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"voicechat/internal/config"
)

func TestNewWritesJSONToFileAtLevel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voicechat.log")
	logger, err := New(config.LoggingConfig{Level: "warn", File: path})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info must be disabled at warn level")
	}
	logger.Info("dropped")
	logger.Warn("kept")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "dropped") {
		t.Fatalf("info entry written at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"kept"`) || !strings.Contains(out, `"logger":"voicechat"`) {
		t.Fatalf("expected JSON warn entry, got: %s", out)
	}
}

func TestNewDevelopmentEnablesDebug(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dev.log")
	logger, err := New(config.LoggingConfig{Level: "debug", Development: true, File: path})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug to be enabled")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(config.LoggingConfig{Level: "chatty"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
}
