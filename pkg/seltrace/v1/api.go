package v1

import (
	"context"
	"time"

	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/metrics"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/tracing"
)

// SessionV1 is the configuration surface of an instrumented driver session.
type SessionV1 interface {
	// ID returns the session id assigned by the browser.
	ID() string

	// Setter methods used by SessionOption values before the session starts.
	SetListeners(listeners ...events.Listener) error
	SetLogger(log seltracelog.Logger) error
	SetTracerProvider(provider tracing.TracerProvider) error
	SetMetricsRegistryProvider(provider metrics.RegistryProvider) error
	SetShortenLogMessages(shorten bool) error
	SetHighlightElements(highlight bool) error
	SetFileUploader(uploader FileUploader) error
}

// SessionOption configures a session at creation.
type SessionOption func(SessionV1) error

// FileUploader decides whether text typed into an element names a local
// file and, if so, makes it available to the browser.
type FileUploader interface {
	// LocalFile reports whether keys is the path of a local file.
	LocalFile(keys string) (path string, ok bool)
}

// StepResult is the outcome of one replayed script step.
type StepResult struct {
	Name      string        `json:"name"`
	Action    string        `json:"action"`
	Status    string        `json:"status"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
}

// Report summarizes a replayed step script.
type Report struct {
	ScriptName     string        `json:"script_name"`
	OverallStatus  string        `json:"overall_status"`
	SessionID      string        `json:"session_id,omitempty"`
	TraceID        string        `json:"trace_id,omitempty"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
	TotalSteps     int           `json:"total_steps"`
	CompletedSteps int           `json:"completed_steps"`
	FailedSteps    int           `json:"failed_steps"`
	SkippedSteps   int           `json:"skipped_steps"`
	Error          string        `json:"error,omitempty"`
	Steps          []StepResult  `json:"steps"`
}

// ScriptRunner replays step scripts against a session.
type ScriptRunner interface {
	Run(ctx context.Context, scriptYAML []byte) (*Report, error)
}

// WithListeners registers the listeners notified around every command, in
// order. Nil listeners are ignored.
func WithListeners(listeners ...events.Listener) SessionOption {
	return func(s SessionV1) error {
		return s.SetListeners(listeners...)
	}
}

// WithLogger sets the logger used by the session and its collaborators.
func WithLogger(log seltracelog.Logger) SessionOption {
	return func(s SessionV1) error {
		if log == nil {
			return seltraceerrors.NewConfigError("logger cannot be nil", nil)
		}
		return s.SetLogger(log)
	}
}

// WithTracerProvider sets the provider of the tracer wrapping wire commands.
func WithTracerProvider(provider tracing.TracerProvider) SessionOption {
	return func(s SessionV1) error {
		if provider == nil {
			return seltraceerrors.NewConfigError("tracer provider cannot be nil", nil)
		}
		return s.SetTracerProvider(provider)
	}
}

// WithMetricsRegistry sets the registry receiving command metrics.
func WithMetricsRegistry(provider metrics.RegistryProvider) SessionOption {
	return func(s SessionV1) error {
		if provider == nil {
			return seltraceerrors.NewConfigError("metrics registry provider cannot be nil", nil)
		}
		return s.SetMetricsRegistryProvider(provider)
	}
}

// WithShortenLogMessages truncates scripts in debug logs.
func WithShortenLogMessages(shorten bool) SessionOption {
	return func(s SessionV1) error {
		return s.SetShortenLogMessages(shorten)
	}
}

// WithHighlightElements outlines every element found, for visual debugging.
func WithHighlightElements(highlight bool) SessionOption {
	return func(s SessionV1) error {
		return s.SetHighlightElements(highlight)
	}
}

// WithFileUploader sets the uploader consulted when typing into elements.
func WithFileUploader(uploader FileUploader) SessionOption {
	return func(s SessionV1) error {
		if uploader == nil {
			return seltraceerrors.NewConfigError("file uploader cannot be nil", nil)
		}
		return s.SetFileUploader(uploader)
	}
}
