package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gxo-labs/seltrace/internal/secrets"
	inttracing "github.com/gxo-labs/seltrace/internal/tracing"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	sessionNotCreatedMessage = "Possible causes are invalid address of the remote server or browser start-up failure."
	unreachableMessage       = "Error communicating with the remote browser. It may have died."
	screenshotSuppressed     = "*Screenshot response suppressed*"
	maxLoggedScriptLength    = 100
)

// sensitiveAttributes are span attribute keys whose values never leave the
// process unredacted.
var sensitiveAttributes = map[string]struct{}{
	"seltrace.text": {},
}

// execute runs a wire command and, on failure, reports the classified error
// to the dispatcher before returning it.
func (s *Session) execute(ctx context.Context, name string, params map[string]interface{}) (interface{}, error) {
	v, err := s.executeRaw(ctx, name, params)
	if err != nil {
		return nil, s.raise(ctx, err)
	}
	return v, nil
}

// raise correlates err with the pending command. A listener failing while
// observing the exception is joined to err rather than replacing it.
func (s *Session) raise(ctx context.Context, err error) error {
	s.reported = true
	if _, _, lerr := s.dispatcher.OnException(ctx, err); lerr != nil {
		return errors.Join(err, lerr)
	}
	return err
}

// executeRaw runs a wire command without involving the dispatcher. It
// traces, times and logs the call and returns classified, annotated errors.
func (s *Session) executeRaw(ctx context.Context, name string, params map[string]interface{}) (interface{}, error) {
	attrs := []attribute.KeyValue{
		attribute.String("seltrace.wire_command", name),
		attribute.String("seltrace.session_id", s.id),
	}
	if text, ok := params["text"].(string); ok {
		attrs = append(attrs, attribute.String("seltrace.text", text))
	}
	ctx, span := s.tracer.Start(ctx, "seltrace.command."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(inttracing.RedactAttributes(attrs, sensitiveAttributes)...))
	defer span.End()

	cmd := transport.Command{SessionID: s.id, Name: name, Params: params}
	if s.log.IsEnabled(slog.LevelDebug) {
		s.log.Debugf("Executing: %s %v", name, s.sanitizeParams(name, params))
	}

	start := time.Now()
	resp, err := s.transport.Execute(ctx, cmd)
	s.metrics.CommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		err = classify(name, err)
	case resp == nil:
		err = seltraceerrors.NewUnreachableBrowserError(unreachableMessage, errors.New("transport returned no response"))
	case resp.Failed():
		err = seltraceerrors.FromCode(resp.Error, resp.Message)
	}
	if err != nil {
		s.annotate(err, name, params)
		s.metrics.Commands.WithLabelValues(name, "error").Inc()
		inttracing.RecordErrorWithContext(span, err, nil, s.secrets.Redact)
		s.log.Debugf("Failed: %s: %s", name, s.secrets.Redact(err.Error()))
		return nil, err
	}

	s.metrics.Commands.WithLabelValues(name, "ok").Inc()
	if s.log.IsEnabled(slog.LevelDebug) {
		s.log.Debugf("Finished: %s %v", name, s.sanitizeResponse(name, resp.Value))
	}
	return resp.Value, nil
}

// classify maps a transport failure onto the error taxonomy. Errors that
// already belong to the taxonomy pass through unchanged.
func classify(name string, err error) error {
	if _, ok := seltraceerrors.AsDriverError(err); ok {
		return err
	}
	if name == transport.NewSession {
		return seltraceerrors.NewSessionNotCreatedError(sessionNotCreatedMessage, err)
	}
	return seltraceerrors.NewUnreachableBrowserError(unreachableMessage, err)
}

func (s *Session) annotate(err error, name string, params map[string]interface{}) {
	de, ok := seltraceerrors.AsDriverError(err)
	if !ok {
		return
	}
	de.AddInfo("Driver info", fmt.Sprintf("driver.transport: %T", s.transport))
	if s.id != "" {
		de.AddInfo("Session ID", s.id)
		de.AddInfo("Capabilities", s.caps.String())
	}
	de.AddInfo("Command", fmt.Sprintf("[%s, %s %v]", s.id, name, s.sanitizeParams(name, params)))
}

// sanitizeParams returns a copy of params fit for logs: scripts shortened
// when requested and tracked secrets redacted.
func (s *Session) sanitizeParams(name string, params map[string]interface{}) interface{} {
	if params == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	if s.shortenLogMessages && (name == transport.ExecuteScript || name == transport.ExecuteAsyncScript) {
		if script, ok := out["script"].(string); ok && len(script) > maxLoggedScriptLength {
			out["script"] = script[:maxLoggedScriptLength] + "..."
		}
	}
	redacted, _ := secrets.RedactTrackedSecrets(out, s.secrets)
	return redacted
}

func (s *Session) sanitizeResponse(name string, value interface{}) interface{} {
	if name == transport.Screenshot || name == transport.ElementScreenshot {
		return screenshotSuppressed
	}
	redacted, _ := secrets.RedactTrackedSecrets(value, s.secrets)
	return redacted
}

func isPasswordLocator(description string) bool {
	return strings.Contains(strings.ToLower(description), "password")
}
