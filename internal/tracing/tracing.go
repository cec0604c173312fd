package tracing

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "seltrace"

// Redacted replaces sensitive values in span data.
const Redacted = "[REDACTED]"

// GetTracer returns the seltrace tracer from the global provider. Prefer an
// injected TracerProvider where one is available.
func GetTracer() oteltrace.Tracer {
	return otel.Tracer(tracerName)
}

// RedactAttributes returns a copy of attrs in which every attribute whose
// lowercased key is in keywords carries Redacted instead of its value.
func RedactAttributes(attrs []attribute.KeyValue, keywords map[string]struct{}) []attribute.KeyValue {
	if len(keywords) == 0 || len(attrs) == 0 {
		return attrs
	}
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, kv := range attrs {
		if _, redact := keywords[strings.ToLower(string(kv.Key))]; redact {
			out = append(out, attribute.String(string(kv.Key), Redacted))
			continue
		}
		out = append(out, kv)
	}
	return out
}

// RedactSecretsInString blanks the remainder of any line that contains one of
// the lowercase keywords, starting after the separators that follow it.
func RedactSecretsInString(input string, keywords map[string]struct{}) string {
	if len(keywords) == 0 || input == "" {
		return input
	}

	redacted := false
	lines := strings.Split(input, "\n")
	for i, line := range lines {
		lower := strings.ToLower(line)
		for keyword := range keywords {
			idx := strings.Index(lower, keyword)
			if idx == -1 {
				continue
			}
			start := idx + len(keyword)
			for start < len(line) && strings.ContainsRune(":= '\"", rune(line[start])) {
				start++
			}
			if start < len(line) {
				lines[i] = line[:start] + Redacted
				redacted = true
				break
			}
		}
	}
	if !redacted {
		return input
	}
	return strings.Join(lines, "\n")
}

// RecordErrorWithContext records err on span with its message redacted by
// keyword and then by each extra redactor, and marks the span as failed.
func RecordErrorWithContext(span oteltrace.Span, err error, keywords map[string]struct{}, redactors ...func(string) string) {
	if err == nil || span == nil || !span.IsRecording() {
		return
	}
	msg := RedactSecretsInString(err.Error(), keywords)
	for _, r := range redactors {
		msg = r(msg)
	}
	span.RecordError(errors.New(msg), oteltrace.WithStackTrace(true))
	span.SetStatus(codes.Error, msg)
}
