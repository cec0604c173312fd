package tracing

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
	seltracetracing "github.com/gxo-labs/seltrace/pkg/seltrace/v1/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/encoding/gzip"
)

const (
	defaultCollectorEndpoint = "localhost:4317"
	defaultHTTPEndpoint      = "localhost:4318"
)

// stdoutEnv switches span export to pretty-printed JSON on stdout, which is
// handy when replaying a step script locally without a collector.
const stdoutEnv = "SELTRACE_TRACE_STDOUT"

// OtelTracerProvider implements seltracetracing.TracerProvider with the
// OpenTelemetry SDK, or with the NoOp provider when tracing is disabled or
// cannot be configured.
type OtelTracerProvider struct {
	provider    trace.TracerProvider
	exporter    sdktrace.SpanExporter
	sdkProvider *sdktrace.TracerProvider
	log         seltracelog.Logger
}

// NewNoOpProvider creates a TracerProvider that discards all spans.
func NewNoOpProvider() (*OtelTracerProvider, error) {
	return &OtelTracerProvider{provider: trace.NewNoopTracerProvider()}, nil
}

// NewProviderFromEnv creates an OtelTracerProvider from the standard OTEL_*
// environment variables, or a stdout exporter when SELTRACE_TRACE_STDOUT is
// true. Disabled or broken configurations fall back to NoOp. The global OTel
// provider is left untouched.
func NewProviderFromEnv(ctx context.Context, log seltracelog.Logger) (*OtelTracerProvider, error) {
	log = log.With("component", "TracerProvider")
	if strings.ToLower(os.Getenv("OTEL_SDK_DISABLED")) == "true" {
		log.Infof("OpenTelemetry tracing disabled via OTEL_SDK_DISABLED")
		return NewNoOpProvider()
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceNameKey.String(otelServiceName())),
		resource.WithProcess(), resource.WithOS(), resource.WithContainer(), resource.WithHost(),
	)
	if err != nil {
		log.Warnf("Failed to create OTel resource: %v. Using default.", err)
		res = resource.Default()
	}

	var exporter sdktrace.SpanExporter
	if strings.ToLower(os.Getenv(stdoutEnv)) == "true" {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	} else {
		exporter, err = createExporter(ctx, log)
	}
	if err != nil {
		log.Warnf("Failed to create span exporter from environment: %v. Using NoOp tracer.", err)
		return NewNoOpProvider()
	}
	if exporter == nil {
		log.Infof("No span exporter configured, using NoOp tracer")
		return NewNoOpProvider()
	}

	sdkTP := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
	)
	log.Infof("OpenTelemetry SDK provider configured from environment")
	return &OtelTracerProvider{
		provider:    sdkTP,
		exporter:    exporter,
		sdkProvider: sdkTP,
		log:         log,
	}, nil
}

// createExporter builds an OTLP exporter from OTEL_EXPORTER_OTLP_*. It
// returns nil when the protocol has no default endpoint and none is set.
func createExporter(ctx context.Context, log seltracelog.Logger) (sdktrace.SpanExporter, error) {
	protocol := strings.ToLower(os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"))
	if protocol == "" {
		protocol = "grpc"
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	endpointSource := "environment"
	if endpoint == "" {
		endpointSource = "default"
		switch protocol {
		case "grpc":
			endpoint = defaultCollectorEndpoint
		case "http", "http/protobuf":
			endpoint = defaultHTTPEndpoint
		default:
			return nil, nil
		}
		log.Infof("OTEL_EXPORTER_OTLP_ENDPOINT not set, using %s endpoint %s", strings.ToUpper(protocol), endpoint)
	}

	headers := parseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	timeout := parseTimeout(os.Getenv("OTEL_EXPORTER_OTLP_TIMEOUT"), 10*time.Second)
	gzipped := strings.ToLower(os.Getenv("OTEL_EXPORTER_OTLP_COMPRESSION")) == "gzip"
	insecure := isInsecure(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"), os.Getenv("OTEL_EXPORTER_OTLP_TRACES_INSECURE"))

	switch protocol {
	case "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithHeaders(headers),
			otlptracegrpc.WithTimeout(timeout),
		}
		if insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
		}
		if gzipped {
			opts = append(opts, otlptracegrpc.WithCompressor(gzip.Name))
		}
		log.Infof("Configuring OTLP gRPC exporter (endpoint: %s [%s], insecure: %t, gzip: %t)", endpoint, endpointSource, insecure, gzipped)
		return otlptracegrpc.New(ctx, opts...)

	case "http", "http/protobuf":
		path := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
		if path == "" {
			path = "/v1/traces"
		}
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithURLPath(path),
			otlptracehttp.WithHeaders(headers),
			otlptracehttp.WithTimeout(timeout),
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if gzipped {
			opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
		}
		log.Infof("Configuring OTLP HTTP exporter (endpoint: %s%s [%s], insecure: %t, gzip: %t)", endpoint, path, endpointSource, insecure, gzipped)
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", protocol)
	}
}

// GetTracer returns a named tracer from the SDK or NoOp provider.
func (p *OtelTracerProvider) GetTracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p.provider == nil {
		return trace.NewNoopTracerProvider().Tracer(name, opts...)
	}
	return p.provider.Tracer(name, opts...)
}

// Shutdown flushes buffered spans and stops the exporter. It is a no-op for
// the NoOp provider.
func (p *OtelTracerProvider) Shutdown(ctx context.Context) error {
	var firstError error
	if p.sdkProvider != nil {
		if err := p.sdkProvider.Shutdown(ctx); err != nil {
			p.log.Errorf("Error shutting down OTel tracer provider: %v", err)
			firstError = err
		}
	}
	if p.exporter != nil {
		if err := p.exporter.Shutdown(ctx); err != nil {
			p.log.Errorf("Error shutting down span exporter: %v", err)
			if firstError == nil {
				firstError = err
			}
		}
	}
	if firstError == nil && p.sdkProvider != nil {
		p.log.Infof("OpenTelemetry tracing shut down")
	}
	return firstError
}

// IsEffectivelyNoOp reports whether spans are discarded.
func (p *OtelTracerProvider) IsEffectivelyNoOp() bool {
	return p.sdkProvider == nil
}

// otelServiceName returns OTEL_SERVICE_NAME or "seltrace".
func otelServiceName() string {
	name := os.Getenv("OTEL_SERVICE_NAME")
	if name == "" {
		name = "seltrace"
	}
	return name
}

// parseHeaders parses the comma separated key=value list of OTEL_EXPORTER_OTLP_HEADERS.
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}
	pairs := strings.Split(headerStr, ",")
	for _, pair := range pairs {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) == 2 {
			key := strings.TrimSpace(kv[0])
			value := strings.TrimSpace(kv[1])
			if key != "" {
				headers[key] = value
			}
		}
	}
	return headers
}

// parseTimeout accepts integer milliseconds or a Go duration string.
func parseTimeout(timeoutStr string, defaultTimeout time.Duration) time.Duration {
	if timeoutStr == "" {
		return defaultTimeout
	}
	if timeoutMsInt, err := strconv.ParseInt(timeoutStr, 10, 64); err == nil {
		if timeoutMsInt < 0 {
			return defaultTimeout
		}
		return time.Duration(timeoutMsInt) * time.Millisecond
	}
	if duration, err := time.ParseDuration(timeoutStr); err == nil {
		if duration < 0 {
			return defaultTimeout
		}
		return duration
	}
	return defaultTimeout
}

// isInsecure reports whether any of the given flags is "true".
func isInsecure(insecureFlag ...string) bool {
	for _, flag := range insecureFlag {
		if strings.ToLower(strings.TrimSpace(flag)) == "true" {
			return true
		}
	}
	return false
}

var _ seltracetracing.TracerProvider = (*OtelTracerProvider)(nil)
