package execution_test

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/gxo-labs/seltrace/internal/execution"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var traceIDPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)

func TestNewTraceID(t *testing.T) {
	a, b := execution.NewTraceID(), execution.NewTraceID()
	assert.Regexp(t, traceIDPattern, a)
	assert.NotEqual(t, a, b)
}

func TestMemoryRecorder(t *testing.T) {
	ctx := context.Background()
	m := execution.NewMemoryRecorder()
	assert.Regexp(t, traceIDPattern, m.TraceID())

	m.SetTraceID("0123456789abcdef")
	require.NoError(t, m.AppendStepRecord(ctx, recorder.StepRecord{SequenceRef: 1, Command: "webElement.click", Locator: `By.id("go")`}))
	require.NoError(t, m.AppendScreenshotRecord(ctx, recorder.ScreenshotRecord{SequenceRef: 1, Path: "shots/1.png"}))
	assert.Len(t, m.Steps(), 1)
	assert.Len(t, m.Screenshots(), 1)
	assert.Equal(t, "0123456789abcdef", m.TraceID())

	before := m.TestCaseID()
	require.NoError(t, m.Reset(ctx))
	assert.Empty(t, m.Steps())
	assert.Empty(t, m.Screenshots())
	assert.NotEqual(t, before, m.TestCaseID())
	assert.NotEqual(t, "0123456789abcdef", m.TraceID())
}

func TestSQLiteRecorderRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, err := execution.NewSQLiteRecorder(filepath.Join(t.TempDir(), "db", "trace.db"))
	require.NoError(t, err)
	defer r.Close()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.AppendStepRecord(ctx, recorder.StepRecord{
		SequenceRef: 0, URL: "https://example.test/login", Command: "webDriver.get", Timestamp: at,
	}))
	require.NoError(t, r.AppendStepRecord(ctx, recorder.StepRecord{
		SequenceRef: 1, URL: "https://example.test/login", Command: "webElement.sendKeys", Locator: `By.id("user")`, TraceID: "feedfacecafebeef",
	}))
	require.NoError(t, r.AppendScreenshotRecord(ctx, recorder.ScreenshotRecord{SequenceRef: 1, Path: "shots/a.png"}))

	steps, err := r.Steps(ctx, r.TestCaseID())
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "webDriver.get", steps[0].Command)
	assert.Equal(t, r.TraceID(), steps[0].TraceID)
	assert.True(t, at.Equal(steps[0].Timestamp))
	assert.Equal(t, `By.id("user")`, steps[1].Locator)
	assert.Equal(t, "feedfacecafebeef", steps[1].TraceID)

	shots, err := r.Screenshots(ctx, r.TestCaseID())
	require.NoError(t, err)
	require.Len(t, shots, 1)
	assert.Equal(t, "shots/a.png", shots[0].Path)
}

func TestSQLiteRecorderResetKeepsRows(t *testing.T) {
	ctx := context.Background()
	r, err := execution.NewSQLiteRecorder(":memory:")
	require.NoError(t, err)
	defer r.Close()

	first := r.TestCaseID()
	require.NoError(t, r.AppendStepRecord(ctx, recorder.StepRecord{SequenceRef: 0, Command: "webDriver.get"}))
	require.NoError(t, r.Reset(ctx))
	require.NoError(t, r.AppendStepRecord(ctx, recorder.StepRecord{SequenceRef: 0, Command: "navigation.back"}))

	old, err := r.Steps(ctx, first)
	require.NoError(t, err)
	assert.Len(t, old, 1)
	cur, err := r.Steps(ctx, r.TestCaseID())
	require.NoError(t, err)
	require.Len(t, cur, 1)
	assert.Equal(t, "navigation.back", cur[0].Command)
}
