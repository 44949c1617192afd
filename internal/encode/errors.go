package encode

import (
	"fmt"

	"reelforge/internal/services"
)

// EncoderFailureError reports an external tool that could not be started or
// exited with a nonzero status.
type EncoderFailureError struct {
	Tool     string
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *EncoderFailureError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Tool)
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	}
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// Unwrap exposes both the external tool marker and the underlying error.
func (e *EncoderFailureError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrExternalTool}
	}
	return []error{services.ErrExternalTool, e.Err}
}

// OutputPathCollisionError reports that neither the requested output path
// nor any mangled alternative could be cleared for writing.
type OutputPathCollisionError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *OutputPathCollisionError) Error() string {
	return fmt.Sprintf("no writable output path for %s after %d attempts: %v", e.Path, e.Attempts, e.Err)
}

// Unwrap marks collisions as configuration failures.
func (e *OutputPathCollisionError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrConfiguration}
	}
	return []error{services.ErrConfiguration, e.Err}
}
