// Package execution holds the test execution recorders receiving the steps
// and screenshots derived from dispatched records.
package execution

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/recorder"
)

// NewTraceID returns a 16 hex character trace id.
func NewTraceID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:16]
}

// newTestCaseID returns the identifier grouping records of one test case.
func newTestCaseID() string {
	return uuid.NewString()
}

// MemoryRecorder keeps derived records in memory.
type MemoryRecorder struct {
	mu          sync.RWMutex
	testCaseID  string
	traceID     string
	steps       []recorder.StepRecord
	screenshots []recorder.ScreenshotRecord
}

var _ recorder.TestExecutionRecorder = (*MemoryRecorder)(nil)

// NewMemoryRecorder returns an empty recorder with a fresh trace id.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{testCaseID: newTestCaseID(), traceID: NewTraceID()}
}

// AppendScreenshotRecord stores rec.
func (m *MemoryRecorder) AppendScreenshotRecord(_ context.Context, rec recorder.ScreenshotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screenshots = append(m.screenshots, rec)
	return nil
}

// AppendStepRecord stores rec.
func (m *MemoryRecorder) AppendStepRecord(_ context.Context, rec recorder.StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, rec)
	return nil
}

// TraceID returns the id stamped on new records.
func (m *MemoryRecorder) TraceID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.traceID
}

// SetTraceID sets the id stamped on new records.
func (m *MemoryRecorder) SetTraceID(id string) {
	m.mu.Lock()
	m.traceID = id
	m.mu.Unlock()
}

// TestCaseID identifies the current test case.
func (m *MemoryRecorder) TestCaseID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.testCaseID
}

// Reset drops the collected records and starts a new test case.
func (m *MemoryRecorder) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps, m.screenshots = nil, nil
	m.testCaseID = newTestCaseID()
	m.traceID = NewTraceID()
	return nil
}

// Steps returns a snapshot of the recorded steps.
func (m *MemoryRecorder) Steps() []recorder.StepRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]recorder.StepRecord, len(m.steps))
	copy(out, m.steps)
	return out
}

// Screenshots returns a snapshot of the recorded screenshots.
func (m *MemoryRecorder) Screenshots() []recorder.ScreenshotRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]recorder.ScreenshotRecord, len(m.screenshots))
	copy(out, m.screenshots)
	return out
}
