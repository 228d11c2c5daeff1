package workflows

import "errors"

var (
	// ErrInvalidRequest is returned when the capture event has no filename
	ErrInvalidRequest = errors.New("invalid capture request")

	// ErrDecodeFailed is returned when the capture file cannot be decoded
	ErrDecodeFailed = errors.New("capture decode failed")

	// ErrStepFailed is returned when a workflow step fails
	ErrStepFailed = errors.New("workflow step failed")

	// ErrPanic wraps a panic recovered while a workflow ran
	ErrPanic = errors.New("panic while processing capture")
)
