package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
	ErrInvalidState      = errors.New("invalid state")
)

// DeviceUnavailableError reports a denied, missing or failed capture device.
type DeviceUnavailableError struct {
	Err error
}

func (e *DeviceUnavailableError) Error() string {
	if e == nil || e.Err == nil {
		return ErrDeviceUnavailable.Error()
	}
	return fmt.Sprintf("%s: %v", ErrDeviceUnavailable, e.Err)
}

func (e *DeviceUnavailableError) Is(target error) bool {
	return target == ErrDeviceUnavailable
}

func (e *DeviceUnavailableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InvalidStateError reports an operation invoked in a state that forbids it.
type InvalidStateError struct {
	Op    string
	State string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %s not allowed in state %q", ErrInvalidState, e.Op, e.State)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// TranscriptionError reports a failed recognition request.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	if e == nil || e.Err == nil {
		return "transcription failed"
	}
	return "transcription failed: " + e.Err.Error()
}

func (e *TranscriptionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ChatError reports a failed assistant request.
type ChatError struct {
	Err error
}

func (e *ChatError) Error() string {
	if e == nil || e.Err == nil {
		return "chat request failed"
	}
	return "chat request failed: " + e.Err.Error()
}

func (e *ChatError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
