// Package recorder defines the collaborators that receive artifacts derived
// from dispatched records: the test execution recorder and the screenshot
// capturer.
package recorder

import (
	"context"
	"time"
)

// StepRecord is a structured test step derived from a triggering record.
type StepRecord struct {
	SequenceRef int       `json:"sequence_ref"`
	URL         string    `json:"url"`
	Command     string    `json:"command"`
	Locator     string    `json:"locator,omitempty"`
	TraceID     string    `json:"trace_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ScreenshotRecord correlates a captured artifact with its triggering record.
type ScreenshotRecord struct {
	SequenceRef int       `json:"sequence_ref"`
	Path        string    `json:"path"`
	TraceID     string    `json:"trace_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// TestExecutionRecorder accumulates the derived artifacts of one test case.
type TestExecutionRecorder interface {
	AppendScreenshotRecord(ctx context.Context, rec ScreenshotRecord) error
	AppendStepRecord(ctx context.Context, rec StepRecord) error

	// TraceID returns the trace id stamped on appended records.
	TraceID() string
	// SetTraceID replaces the trace id, typically at the start of a test case.
	SetTraceID(id string)

	// Reset starts a new test case, dropping nothing already persisted.
	Reset(ctx context.Context) error
}

// ScreenshotCapturer produces a screenshot artifact and returns its path.
type ScreenshotCapturer interface {
	Capture(ctx context.Context) (string, error)
}

// Source exposes session state without going through instrumentation, so
// recorders can read it from inside a hook without producing records.
type Source interface {
	CurrentURLUninstrumented(ctx context.Context) (string, error)
	ScreenshotUninstrumented(ctx context.Context) ([]byte, error)
}

// SourceBinder is implemented by collaborators that need the session they
// observe. The session binds itself once it has been created.
type SourceBinder interface {
	BindSource(src Source)
}
