package errors

import (
	"errors"
	"fmt"
)

// Exit codes for hutch
const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitConfigError   = 2
	ExitTemplateError = 3
	ExitEngineError   = 4
	ExitNotFound      = 5
	ExitConflict      = 6
	ExitTunnelError   = 7
)

// Kind classifies a HutchError.
type Kind string

const (
	KindGeneral  Kind = "general"
	KindConfig   Kind = "config"
	KindTemplate Kind = "template"
	KindEngine   Kind = "engine"
	KindNotFound Kind = "not-found"
	KindConflict Kind = "conflict"
	KindTunnel   Kind = "tunnel"
)

// HutchError is the base error type for hutch
type HutchError struct {
	Code     int
	Kind     Kind
	Message  string
	Resource string
	Cause    error
}

func (e *HutchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *HutchError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *HutchError) ExitCode() int {
	return e.Code
}

// New creates a new HutchError
func New(code int, message string) *HutchError {
	return &HutchError{
		Code:    code,
		Kind:    kindFor(code),
		Message: message,
	}
}

// Wrap wraps an existing error with a HutchError
func Wrap(code int, message string, cause error) *HutchError {
	return &HutchError{
		Code:    code,
		Kind:    kindFor(code),
		Message: message,
		Cause:   cause,
	}
}

func kindFor(code int) Kind {
	switch code {
	case ExitConfigError:
		return KindConfig
	case ExitTemplateError:
		return KindTemplate
	case ExitEngineError:
		return KindEngine
	case ExitNotFound:
		return KindNotFound
	case ExitConflict:
		return KindConflict
	case ExitTunnelError:
		return KindTunnel
	default:
		return KindGeneral
	}
}

// Common error constructors

// ConfigError returns an error for parse or merge failures
func ConfigError(message string, cause error) *HutchError {
	return Wrap(ExitConfigError, message, cause)
}

// TemplateError returns an error for an unresolved placeholder or a failed
// decryption. field is the path of the offending spec field.
func TemplateError(field, message string, cause error) *HutchError {
	err := Wrap(ExitTemplateError, fmt.Sprintf("%s: %s", field, message), cause)
	err.Resource = field
	return err
}

// EngineError returns an error for a failed container engine call
func EngineError(op, resource string, cause error) *HutchError {
	msg := fmt.Sprintf("engine %s failed", op)
	if resource != "" {
		msg = fmt.Sprintf("engine %s %s failed", op, resource)
	}
	err := Wrap(ExitEngineError, msg, cause)
	err.Resource = resource
	return err
}

// NotFound returns an error for a missing workspace or container
func NotFound(kind, name string) *HutchError {
	err := New(ExitNotFound, fmt.Sprintf("%s not found: %s", kind, name))
	err.Resource = name
	return err
}

// Conflict returns an error for an unexpected resource collision
func Conflict(kind, name, message string) *HutchError {
	err := New(ExitConflict, fmt.Sprintf("%s %s: %s", kind, name, message))
	err.Resource = name
	return err
}

// TunnelError returns an error for remote tunnel failures
func TunnelError(message string, cause error) *HutchError {
	return Wrap(ExitTunnelError, message, cause)
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *HutchError {
	return New(ExitConfigError, message)
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var hutchErr *HutchError
	if errors.As(err, &hutchErr) {
		return hutchErr.ExitCode()
	}
	return ExitGeneralError
}

// IsKind reports whether err's chain holds a HutchError of the given kind.
func IsKind(err error, kind Kind) bool {
	var hutchErr *HutchError
	if errors.As(err, &hutchErr) {
		return hutchErr.Kind == kind
	}
	return false
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
