package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/gxo-labs/seltrace/internal/logger"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLevelsAndFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("warn", "json", &buf)

	log.Debugf("hidden %d", 1)
	log.Infof("hidden %d", 2)
	log.Warnf("shown %d", 3)
	assert.False(t, log.IsEnabled(slog.LevelInfo))
	assert.True(t, log.IsEnabled(slog.LevelError))

	entries := decode(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "shown 3", entries[0]["msg"])
}

func TestUnknownLevelMeansInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("chatty", "text", &buf)
	log.Debugf("no")
	log.Infof("yes")
	assert.NotContains(t, buf.String(), "msg=no")
	assert.Contains(t, buf.String(), "level=INFO msg=yes")
}

func TestWithAddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("info", "json", &buf).With("component", "Dispatcher")
	log.Infof("ready")
	assert.Equal(t, "Dispatcher", decode(t, &buf)[0]["component"])
}

func TestErrorfAttachesDriverErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("info", "json", &buf)

	derr := seltraceerrors.NewDriverError("stale element reference", "element is gone", nil)
	derr.AddInfo("Session ID", "sess-1")
	derr.AddInfo("Command", "clickElement")
	log.Errorf("command failed: %v", derr)

	lerr := seltraceerrors.NewListenerError("step", "before", "click", errors.New("disk full"))
	log.Errorf("listener failed: %v", lerr)

	entries := decode(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "stale element reference", entries[0]["error_code"])
	assert.Equal(t, "sess-1", entries[0]["session_id"])
	assert.Equal(t, "clickElement", entries[0]["wire_command"])
	assert.Equal(t, "ListenerError", entries[1]["error_type"])
	assert.Equal(t, "step", entries[1]["listener"])
	assert.Equal(t, "before", entries[1]["phase"])
}

func TestOtelHandlerInjectsSpanIDs(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("info", "json", &buf)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	log.LogCtx(ctx, slog.LevelInfo, "traced")
	log.LogCtx(context.Background(), slog.LevelInfo, "untraced")

	entries := decode(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, sc.TraceID().String(), entries[0]["trace_id"])
	assert.Equal(t, sc.SpanID().String(), entries[0]["span_id"])
	assert.NotContains(t, entries[1], "trace_id")
}
