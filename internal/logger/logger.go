// Package logger provides the slog-backed implementation of the seltrace
// Logger interface.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
	"go.opentelemetry.io/otel/trace"
)

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type defaultLogger struct {
	*slog.Logger
}

var _ seltracelog.Logger = (*defaultLogger)(nil)

// NewLogger returns a Logger writing to writer (os.Stderr when nil) at the
// given level. formatStr is "json" or "text"; anything else means text.
// Entries logged with a context carrying a span get trace_id and span_id.
func NewLogger(levelStr, formatStr string, writer io.Writer) seltracelog.Logger {
	if writer == nil {
		writer = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:       parseLogLevel(levelStr),
		ReplaceAttr: upperLevel,
	}
	var h slog.Handler
	if strings.EqualFold(formatStr, "json") {
		h = slog.NewJSONHandler(writer, opts)
	} else {
		h = slog.NewTextHandler(writer, opts)
	}
	return &defaultLogger{Logger: slog.New(NewOtelHandler(h))}
}

// NewDefaultLogger is a text logger on os.Stderr.
func NewDefaultLogger(levelStr string) seltracelog.Logger {
	return NewLogger(levelStr, "text", os.Stderr)
}

func upperLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok {
		a.Value = slog.StringValue(strings.ToUpper(level.String()))
	}
	return a
}

func (l *defaultLogger) logf(level slog.Level, format string, args []interface{}) {
	ctx := context.Background()
	if !l.Logger.Enabled(ctx, level) {
		return
	}
	l.Logger.Log(ctx, level, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	l.logf(slog.LevelDebug, format, args)
}

func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.logf(slog.LevelInfo, format, args)
}

func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.logf(slog.LevelWarn, format, args)
}

// Errorf logs at ERROR. A trailing error argument is also logged
// structurally: listener errors with listener, phase and command, driver
// errors with their code and the session and wire command they carry.
func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	ctx := context.Background()
	if !l.Logger.Enabled(ctx, slog.LevelError) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	var err error
	if len(args) > 0 {
		err, _ = args[len(args)-1].(error)
	}
	if err == nil {
		l.Logger.Log(ctx, slog.LevelError, msg)
		return
	}
	l.Logger.Log(ctx, slog.LevelError, msg, errorAttrs(err)...)
}

func errorAttrs(err error) []any {
	var attrs []any
	var le *seltraceerrors.ListenerError
	if errors.As(err, &le) {
		attrs = append(attrs,
			slog.String("error_type", "ListenerError"),
			slog.String("listener", le.Listener),
			slog.String("phase", le.Phase),
			slog.String("command", le.Command),
		)
	}
	if de, ok := seltraceerrors.AsDriverError(err); ok {
		attrs = append(attrs, slog.String("error_type", fmt.Sprintf("%T", err)))
		if de.Code != "" {
			attrs = append(attrs, slog.String("error_code", de.Code))
		}
		if id, ok := de.Info["Session ID"]; ok {
			attrs = append(attrs, slog.String("session_id", id))
		}
		if cmd, ok := de.Info["Command"]; ok {
			attrs = append(attrs, slog.String("wire_command", cmd))
		}
	}
	return append(attrs, slog.String("error", err.Error()))
}

func (l *defaultLogger) Log(level slog.Level, msg string, args ...interface{}) {
	l.Logger.Log(context.Background(), level, msg, args...)
}

func (l *defaultLogger) LogCtx(ctx context.Context, level slog.Level, msg string, args ...interface{}) {
	l.Logger.Log(ctx, level, msg, args...)
}

func (l *defaultLogger) With(args ...interface{}) seltracelog.Logger {
	return &defaultLogger{Logger: l.Logger.With(args...)}
}

func (l *defaultLogger) IsEnabled(level slog.Level) bool {
	return l.Logger.Enabled(context.Background(), level)
}

// OtelHandler wraps a slog.Handler and adds trace_id and span_id when the
// record's context carries a valid span.
type OtelHandler struct {
	next slog.Handler
}

// NewOtelHandler wraps next so records carry trace_id and span_id.
func NewOtelHandler(next slog.Handler) *OtelHandler {
	return &OtelHandler{next: next}
}

func (h *OtelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *OtelHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, record)
}

func (h *OtelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewOtelHandler(h.next.WithAttrs(attrs))
}

func (h *OtelHandler) WithGroup(name string) slog.Handler {
	return NewOtelHandler(h.next.WithGroup(name))
}
