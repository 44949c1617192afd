package services

import (
	"context"
	"errors"
	"strings"
)

// Failure classes. Every error a unit returns should match one of them with
// errors.Is so the queue can decide between retrying and parking the unit.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// classes lists each failure class with its retry decision and the name
// written to logs.
var classes = []struct {
	marker    error
	name      string
	retryable bool
}{
	{ErrValidation, "validation", false},
	{ErrConfiguration, "configuration", false},
	{ErrExternalTool, "external_tool", false},
	{ErrNotFound, "not_found", true},
	{ErrTransient, "transient", true},
	{context.DeadlineExceeded, "timeout", true},
}

// UnitError is a classified failure of one operation inside a work unit.
type UnitError struct {
	Class     error
	Unit      string
	Operation string
	Message   string
	Err       error
}

func (e *UnitError) Error() string {
	var b strings.Builder
	b.WriteString(e.Class.Error())
	b.WriteString(": ")
	parts := 0
	for _, part := range []string{e.Unit, e.Operation, e.Message} {
		if part = strings.TrimSpace(part); part != "" {
			if parts > 0 {
				b.WriteString(": ")
			}
			b.WriteString(part)
			parts++
		}
	}
	if parts == 0 {
		b.WriteString("unit failure")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *UnitError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.Err}
}

// Wrap classifies err as class, recording which unit and operation failed.
// A nil class is treated as ErrTransient; err may be nil.
func Wrap(class error, unit, operation, message string, err error) error {
	if class == nil {
		class = ErrTransient
	}
	return &UnitError{Class: class, Unit: unit, Operation: operation, Message: message, Err: err}
}

// Retryable reports whether a unit failure may succeed when attempted again
// without operator action. Missing upstream artifacts, transient faults and
// timeouts qualify. Bad input, configuration and encoder failures do not,
// and neither does an unclassified error.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	for _, c := range classes {
		if errors.Is(err, c.marker) {
			return c.retryable
		}
	}
	return false
}

// ClassName returns the log name of err's failure class, or "unclassified".
func ClassName(err error) string {
	for _, c := range classes {
		if err != nil && errors.Is(err, c.marker) {
			return c.name
		}
	}
	return "unclassified"
}
