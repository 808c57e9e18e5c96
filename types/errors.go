package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigurationInvalid = errors.New("invalid configuration")
	ErrTargetNotFound       = errors.New("capture target not found")
	ErrDeviceUnavailable    = errors.New("audio device unavailable")
	ErrEncoderInitFailed    = errors.New("unable to initialize the encoder")
	ErrCaptureSessionLost   = errors.New("capture session lost")
	ErrIO                   = errors.New("I/O error")
	ErrAlreadyRecording     = errors.New("recording already in progress")
	ErrNotRecording         = errors.New("no recording in progress")

	// ErrInvalidState is returned when an operation is valid in general,
	// but not in the current state of the recorder.
	ErrInvalidState = errors.New("invalid recorder state")

	ErrReplayDisabled  = fmt.Errorf("the replay buffer is disabled: %w", ErrConfigurationInvalid)
	ErrEncoderNotFound = fmt.Errorf("no encoder of the requested type is available: %w", ErrEncoderInitFailed)
)

// ErrorKind returns the sentinel error the given error is classified as, or nil.
func ErrorKind(err error) error {
	for _, kind := range []error{
		ErrConfigurationInvalid,
		ErrTargetNotFound,
		ErrDeviceUnavailable,
		ErrEncoderInitFailed,
		ErrCaptureSessionLost,
		ErrIO,
		ErrAlreadyRecording,
		ErrNotRecording,
		ErrInvalidState,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
