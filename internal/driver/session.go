// Package driver wraps a browser transport in an instrumented session. Every
// driver and element operation is bracketed by dispatcher records, element
// lookups go through the adaptive locator resolver, and transport failures
// are classified into the seltrace error taxonomy.
package driver

import (
	"context"
	"fmt"

	"github.com/gxo-labs/seltrace/internal/dispatch"
	"github.com/gxo-labs/seltrace/internal/locate"
	"github.com/gxo-labs/seltrace/internal/logger"
	intmetrics "github.com/gxo-labs/seltrace/internal/metrics"
	"github.com/gxo-labs/seltrace/internal/secrets"
	inttracing "github.com/gxo-labs/seltrace/internal/tracing"
	seltrace "github.com/gxo-labs/seltrace/pkg/seltrace/v1"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/metrics"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/recorder"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/tracing"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/transport"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "seltrace/driver"

// Session is an instrumented browser session. It owns its dispatcher,
// sequence counter and locator cache. A Session is not safe for concurrent
// use; drive separate sessions from separate goroutines instead.
type Session struct {
	id        string
	caps      Capabilities
	transport transport.Transport

	listeners  []events.Listener
	dispatcher *dispatch.Dispatcher
	resolver   *locate.Resolver

	log             seltracelog.Logger
	tracerProvider  tracing.TracerProvider
	tracer          trace.Tracer
	metricsProvider metrics.RegistryProvider
	metrics         *intmetrics.Collectors
	secrets         *secrets.SecretTracker

	shortenLogMessages bool
	highlight          bool
	uploader           seltrace.FileUploader

	// reported is set once the current failure has been handed to the
	// dispatcher, so the enclosing operation does not report it again.
	reported bool
}

var (
	_ seltrace.SessionV1 = (*Session)(nil)
	_ recorder.Source    = (*Session)(nil)
	_ SearchContext      = (*Session)(nil)
)

// NewSession negotiates a new browser session over t. desired holds the
// requested capabilities and may be nil. Listeners implementing
// recorder.SourceBinder are bound to the session once it exists.
func NewSession(ctx context.Context, t transport.Transport, desired map[string]interface{}, opts ...seltrace.SessionOption) (*Session, error) {
	if t == nil {
		return nil, seltraceerrors.NewConfigError("transport cannot be nil", nil)
	}
	s := &Session{
		transport: t,
		secrets:   secrets.NewSecretTracker(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, seltraceerrors.NewConfigError(fmt.Sprintf("failed to apply session option: %v", err), err)
		}
	}

	if s.log == nil {
		s.log = logger.NewDefaultLogger("warn")
	}
	if s.tracerProvider == nil {
		noop, _ := inttracing.NewNoOpProvider()
		s.tracerProvider = noop
	}
	s.tracer = s.tracerProvider.GetTracer(tracerName)
	s.metrics = intmetrics.NewCollectors(s.metricsProvider, s.log)
	s.dispatcher = dispatch.NewDispatcher(s.log, s.listeners...)
	s.resolver = locate.NewResolver(s.log)

	if desired == nil {
		desired = map[string]interface{}{}
	}
	value, err := s.execute(ctx, transport.NewSession, map[string]interface{}{
		"capabilities": map[string]interface{}{"alwaysMatch": desired},
	})
	if err != nil {
		return nil, err
	}
	s.id, s.caps = negotiate(value)
	if s.id == "" {
		return nil, seltraceerrors.NewSessionNotCreatedError("new session response carried no session id", nil)
	}
	s.log = s.log.With("session_id", s.id)
	s.log.Infof("Session started (%s)", s.caps)

	for _, l := range s.dispatcher.Listeners() {
		if b, ok := l.(recorder.SourceBinder); ok {
			b.BindSource(s)
		}
	}
	return s, nil
}

// ID returns the remote session id.
func (s *Session) ID() string { return s.id }

// Capabilities returns the capabilities negotiated at session creation.
func (s *Session) Capabilities() Capabilities { return s.caps }

// Dispatcher exposes the session's dispatcher, mainly for inspecting the
// sequence counter.
func (s *Session) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// Resolver exposes the session's locator strategy cache.
func (s *Session) Resolver() *locate.Resolver { return s.resolver }

// Secrets returns the tracker of values typed into password fields.
func (s *Session) Secrets() *secrets.SecretTracker { return s.secrets }

// Bind hands the session to collaborators that are not listeners, such as
// a screenshot capturer shared by several listeners.
func (s *Session) Bind(binders ...recorder.SourceBinder) {
	for _, b := range binders {
		if b != nil {
			b.BindSource(s)
		}
	}
}

// SetListeners appends listeners. It is applied as a SessionOption before the
// dispatcher is built.
func (s *Session) SetListeners(listeners ...events.Listener) error {
	s.listeners = append(s.listeners, listeners...)
	return nil
}

// SetLogger replaces the session logger.
func (s *Session) SetLogger(log seltracelog.Logger) error {
	s.log = log
	return nil
}

// SetTracerProvider sets the provider used for per-command spans.
func (s *Session) SetTracerProvider(provider tracing.TracerProvider) error {
	s.tracerProvider = provider
	return nil
}

// SetMetricsRegistryProvider sets the registry the command collectors
// register with.
func (s *Session) SetMetricsRegistryProvider(provider metrics.RegistryProvider) error {
	s.metricsProvider = provider
	return nil
}

// SetShortenLogMessages truncates long values in debug log lines.
func (s *Session) SetShortenLogMessages(shorten bool) error {
	s.shortenLogMessages = shorten
	return nil
}

// SetHighlightElements outlines each located element in the page.
func (s *Session) SetHighlightElements(highlight bool) error {
	s.highlight = highlight
	return nil
}

// SetFileUploader installs the detector used by SendKeys for file inputs.
func (s *Session) SetFileUploader(uploader seltrace.FileUploader) error {
	s.uploader = uploader
	return nil
}

// CurrentURLUninstrumented reads the page URL without producing records.
func (s *Session) CurrentURLUninstrumented(ctx context.Context) (string, error) {
	v, err := s.executeRaw(ctx, transport.GetCurrentURL, nil)
	if err != nil {
		return "", err
	}
	return asString(v), nil
}

// ScreenshotUninstrumented captures the viewport as PNG without producing
// records.
func (s *Session) ScreenshotUninstrumented(ctx context.Context) ([]byte, error) {
	if !s.caps.TakesScreenshot {
		return nil, seltraceerrors.NewDriverError(seltraceerrors.CodeUnknownCommand, "session does not support screenshots", nil)
	}
	v, err := s.executeRaw(ctx, transport.Screenshot, nil)
	if err != nil {
		return nil, err
	}
	return decodePNG(v)
}
