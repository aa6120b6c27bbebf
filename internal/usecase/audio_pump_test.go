package usecase

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestFragmentBufferCopiesFragments(t *testing.T) {
	t.Parallel()

	var buffer fragmentBuffer
	fragment := []byte("xy")
	buffer.Add(fragment)
	fragment[0] = 'z'
	buffer.Add(nil)
	buffer.Add([]byte("w"))

	if got := string(buffer.Bytes()); got != "xyw" {
		t.Fatalf("unexpected bytes: %q", got)
	}
	if buffer.Len() != 2 {
		t.Fatalf("expected 2 fragments, got %d", buffer.Len())
	}
}

func TestPumpFragmentsReportsReadError(t *testing.T) {
	t.Parallel()

	session := newFakeAudioSession("a")
	session.readErr = errors.New("read failed")
	var buffer fragmentBuffer
	var got error
	done := make(chan struct{})

	go pumpFragments(session, &buffer, 10, func(err error) { got = err }, done)
	<-done

	if got == nil || got.Error() != "read failed" {
		t.Fatalf("expected read failure, got %v", got)
	}
	if string(buffer.Bytes()) != "a" {
		t.Fatalf("expected fragment before failure to be kept")
	}
}

func TestPumpFragmentsTreatsEOFAsEnd(t *testing.T) {
	t.Parallel()

	session := newFakeAudioSession("a", "b")
	_ = session.Stop()
	var buffer fragmentBuffer
	called := false
	done := make(chan struct{})

	go pumpFragments(session, &buffer, 0, func(error) { called = true }, done)
	<-done

	if called {
		t.Fatalf("EOF must not be reported as failure")
	}
	if string(buffer.Bytes()) != "ab" {
		t.Fatalf("unexpected bytes: %q", string(buffer.Bytes()))
	}
}

func TestPumpFragmentsTreatsClosedStreamAsEnd(t *testing.T) {
	t.Parallel()

	session := newFakeAudioSession("a")
	session.readErr = fmt.Errorf("read |0: %w", os.ErrClosed)
	var buffer fragmentBuffer
	called := false
	done := make(chan struct{})

	go pumpFragments(session, &buffer, 512, func(error) { called = true }, done)
	<-done

	if called {
		t.Fatalf("closed stream must not be reported as failure")
	}
	if string(buffer.Bytes()) != "a" {
		t.Fatalf("unexpected bytes: %q", string(buffer.Bytes()))
	}
}
