package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"voicechat/internal/domain"
)

// chatSession is the part of the session controller the terminal drives.
type chatSession interface {
	Send(ctx context.Context, text string) error
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	CancelRecording() error
	Messages() []domain.Message
}

func runREPL(ctx context.Context, in io.Reader, out io.Writer, session chatSession) error {
	fmt.Fprintln(out, "Type a message, or /rec to speak. /quit exits.")

	done := make(chan struct{})
	defer close(done)
	lines, scanErr := scanLines(in, done)

	for {
		fmt.Fprint(out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case next, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return <-scanErr
			}
			line = next
		}

		quit, err := handleLine(ctx, out, session, line)
		if err != nil {
			fmt.Fprintln(out, describeError(err))
		}
		if quit {
			return nil
		}
	}
}

// scanLines reads in on its own goroutine so a blocked read never delays a
// cancelled context. The goroutine stops at EOF or once done is closed.
func scanLines(in io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()
	return lines, scanErr
}

func handleLine(ctx context.Context, out io.Writer, session chatSession, line string) (bool, error) {
	switch strings.TrimSpace(line) {
	case "/quit", "/exit":
		return true, nil
	case "/rec":
		if err := session.StartRecording(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(out, "Recording... /stop to send, /cancel to discard.")
		return false, nil
	case "/stop":
		return false, session.StopRecording(ctx)
	case "/cancel":
		if err := session.CancelRecording(); err != nil {
			return false, err
		}
		fmt.Fprintln(out, "Recording discarded.")
		return false, nil
	case "/history":
		for _, msg := range session.Messages() {
			fmt.Fprintln(out, formatMessage(msg))
		}
		return false, nil
	default:
		return false, session.Send(ctx, line)
	}
}

func describeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrDeviceUnavailable):
		return "Microphone unavailable."
	case errors.Is(err, domain.ErrInvalidState):
		return "Busy, try again in a moment."
	default:
		return "Error: " + err.Error()
	}
}

func formatMessage(msg domain.Message) string {
	speaker := "you"
	if msg.Origin == domain.OriginAssistant {
		speaker = "assistant"
	}
	return speaker + ": " + msg.Content
}

// terminalSink prints conversation updates as they happen.
type terminalSink struct {
	mu  sync.Mutex
	out io.Writer
}

func newTerminalSink(out io.Writer) *terminalSink {
	return &terminalSink{out: out}
}

func (s *terminalSink) SessionStateChanged(domain.SessionState) {}

func (s *terminalSink) ConversationChanged(change domain.LogChange, _ []domain.Message) {
	if change.Kind == domain.LogChangeDropped {
		return
	}
	// Typed user lines are already on screen.
	if change.Kind == domain.LogChangeAppended && change.Message.Origin == domain.OriginUser && !change.Message.IsPending() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, formatMessage(change.Message))
}
