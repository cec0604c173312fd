package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// W3C error codes the instrumentation layer interprets.
const (
	CodeNoSuchElement     = "no such element"
	CodeInvalidArgument   = "invalid argument"
	CodeSessionNotCreated = "session not created"
	CodeUnknownError      = "unknown error"
	CodeUnknownCommand    = "unknown command"
)

// --- Ambient error types ---

// ConfigError represents an error encountered while loading or parsing
// the seltrace configuration or session options.
type ConfigError struct {
	Message string
	Cause   error
}

func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{Message: message, Cause: cause}
}
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}
func (e *ConfigError) Unwrap() error { return e.Cause }

// ValidationError indicates that some input (configuration, step scripts,
// response values) failed validation checks.
type ValidationError struct {
	Message string
	Cause   error
}

func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}
func (e *ValidationError) Unwrap() error { return e.Cause }

// ListenerNotFoundError indicates that a configured listener name has no
// registered factory.
type ListenerNotFoundError struct {
	ListenerName string
}

func NewListenerNotFoundError(name string) *ListenerNotFoundError {
	return &ListenerNotFoundError{ListenerName: name}
}
func (e *ListenerNotFoundError) Error() string {
	return fmt.Sprintf("listener not found: %s", e.ListenerName)
}

// --- Driver error taxonomy ---

// DriverError is the generic failure reported by the browser driver. The
// specialised errors below embed it, so every driver failure carries a code,
// a message, an optional cause and the diagnostic info added while the error
// travelled through the command execution wrapper.
type DriverError struct {
	Code    string
	Message string
	Cause   error
	Info    map[string]string
}

func NewDriverError(code, message string, cause error) *DriverError {
	return &DriverError{Code: code, Message: message, Cause: cause}
}

// AddInfo attaches a diagnostic key/value pair, such as the session id or
// the command that failed.
func (e *DriverError) AddInfo(key, value string) {
	if e.Info == nil {
		e.Info = make(map[string]string)
	}
	e.Info[key] = value
}

func (e *DriverError) Error() string {
	var b strings.Builder
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if len(e.Info) > 0 {
		keys := make([]string, 0, len(e.Info))
		for k := range e.Info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %s", k, e.Info[k])
		}
	}
	return b.String()
}
func (e *DriverError) Unwrap() error { return e.Cause }

func (e *DriverError) driverError() *DriverError { return e }

// NoSuchElementError is the expected not-found outcome of a single element lookup.
type NoSuchElementError struct{ DriverError }

func NewNoSuchElementError(message string, cause error) *NoSuchElementError {
	return &NoSuchElementError{DriverError{Code: CodeNoSuchElement, Message: message, Cause: cause}}
}

// InvalidArgumentError signals that a locator mechanism rejected the
// argument type. The locator resolver treats it as a cue to fall back.
type InvalidArgumentError struct{ DriverError }

func NewInvalidArgumentError(message string, cause error) *InvalidArgumentError {
	return &InvalidArgumentError{DriverError{Code: CodeInvalidArgument, Message: message, Cause: cause}}
}

// SessionNotCreatedError is raised when a transport failure happens while a
// new session is being established.
type SessionNotCreatedError struct{ DriverError }

func NewSessionNotCreatedError(message string, cause error) *SessionNotCreatedError {
	return &SessionNotCreatedError{DriverError{Code: CodeSessionNotCreated, Message: message, Cause: cause}}
}

// UnreachableBrowserError wraps transport failures that are not driver errors
// themselves, typically a dead browser or a broken connection.
type UnreachableBrowserError struct{ DriverError }

func NewUnreachableBrowserError(message string, cause error) *UnreachableBrowserError {
	return &UnreachableBrowserError{DriverError{Message: message, Cause: cause}}
}

type driverFailure interface {
	error
	driverError() *DriverError
}

// AsDriverError returns the DriverError shared by any error in err's chain
// belonging to the driver taxonomy.
func AsDriverError(err error) (*DriverError, bool) {
	var df driverFailure
	if errors.As(err, &df) {
		return df.driverError(), true
	}
	return nil, false
}

// IsNotFound reports whether err is a not-found lookup outcome.
func IsNotFound(err error) bool {
	var nse *NoSuchElementError
	return errors.As(err, &nse)
}

// IsInvalidArgument reports whether err signals an unusable locator argument.
func IsInvalidArgument(err error) bool {
	var iae *InvalidArgumentError
	return errors.As(err, &iae)
}

// FromCode builds the typed error matching a W3C error code.
func FromCode(code, message string) error {
	switch code {
	case CodeNoSuchElement:
		return NewNoSuchElementError(message, nil)
	case CodeInvalidArgument:
		return NewInvalidArgumentError(message, nil)
	case CodeSessionNotCreated:
		return NewSessionNotCreatedError(message, nil)
	default:
		if code == "" {
			code = CodeUnknownError
		}
		return NewDriverError(code, message, nil)
	}
}

// --- Instrumentation errors ---

// ListenerError reports that a listener hook failed. The dispatcher does not
// isolate listeners, so this error aborts the remaining instrumentation of
// the command that was in flight.
type ListenerError struct {
	Listener string
	Phase    string
	Command  string
	Cause    error
}

func NewListenerError(listener, phase, command string, cause error) *ListenerError {
	return &ListenerError{Listener: listener, Phase: phase, Command: command, Cause: cause}
}
func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener '%s' failed on %s %s: %v", e.Listener, e.Phase, e.Command, e.Cause)
}
func (e *ListenerError) Unwrap() error { return e.Cause }
