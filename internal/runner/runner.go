// Package runner replays YAML step scripts against an instrumented
// session, so every step produces the usual trace records.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gxo-labs/seltrace/internal/driver"
	"github.com/gxo-labs/seltrace/internal/logger"
	"github.com/gxo-labs/seltrace/internal/metrics"
	"github.com/gxo-labs/seltrace/internal/template"
	inttracing "github.com/gxo-labs/seltrace/internal/tracing"
	seltrace "github.com/gxo-labs/seltrace/pkg/seltrace/v1"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
	seltracemetrics "github.com/gxo-labs/seltrace/pkg/seltrace/v1/metrics"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/recorder"
	seltracetracing "github.com/gxo-labs/seltrace/pkg/seltrace/v1/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "seltrace/runner"

// Step and report statuses.
const (
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
	StatusSkipped   = "Skipped"
)

// Runner replays scripts one step at a time.
type Runner struct {
	session  *driver.Session
	log      seltracelog.Logger
	tracer   trace.Tracer
	metrics  *metrics.Collectors
	recorder recorder.TestExecutionRecorder
	lookup   template.Lookup
}

var _ seltrace.ScriptRunner = (*Runner)(nil)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(log seltracelog.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithTracerProvider sets the provider used for per-step spans.
func WithTracerProvider(tp seltracetracing.TracerProvider) Option {
	return func(r *Runner) {
		if tp != nil {
			r.tracer = tp.GetTracer(tracerName)
		}
	}
}

// WithMetricsRegistry sets the registry for the step collectors.
func WithMetricsRegistry(provider seltracemetrics.RegistryProvider) Option {
	return func(r *Runner) {
		r.metrics = metrics.NewCollectors(provider, r.log)
	}
}

// WithRecorder stamps reports with the recorder's trace id.
func WithRecorder(rec recorder.TestExecutionRecorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithLookup sets where the env and secret template functions resolve
// names. The process environment is used by default.
func WithLookup(lookup template.Lookup) Option {
	return func(r *Runner) { r.lookup = lookup }
}

// New creates a runner driving session.
func New(session *driver.Session, opts ...Option) *Runner {
	r := &Runner{session: session, log: logger.NewDefaultLogger("warn")}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("component", "Runner")
	if r.tracer == nil {
		noop, _ := inttracing.NewNoOpProvider()
		r.tracer = noop.GetTracer(tracerName)
	}
	if r.metrics == nil {
		r.metrics = metrics.NewCollectors(nil, r.log)
	}
	return r
}

// Run loads scriptYAML and replays it. The report is returned even when a
// step fails; the error is the first failure that stopped the script.
func (r *Runner) Run(ctx context.Context, scriptYAML []byte) (*seltrace.Report, error) {
	script, err := LoadScript(scriptYAML)
	if err != nil {
		now := time.Now()
		return &seltrace.Report{OverallStatus: StatusFailed, StartTime: now, EndTime: now, Error: err.Error()}, err
	}
	return r.RunScript(ctx, script)
}

// RunScript replays an already loaded script.
func (r *Runner) RunScript(ctx context.Context, script *Script) (report *seltrace.Report, finalErr error) {
	ctx, span := r.tracer.Start(ctx, "seltrace.script.run", trace.WithAttributes(
		attribute.String("seltrace.script.name", script.Name),
		attribute.Int("seltrace.script.steps", len(script.Steps)),
	))
	defer span.End()

	report = &seltrace.Report{
		ScriptName:    script.Name,
		OverallStatus: StatusCompleted,
		SessionID:     r.session.ID(),
		StartTime:     time.Now(),
		TotalSteps:    len(script.Steps),
		Steps:         make([]seltrace.StepResult, 0, len(script.Steps)),
	}
	if r.recorder != nil {
		report.TraceID = r.recorder.TraceID()
	}

	defer func() {
		report.EndTime = time.Now()
		report.Duration = report.EndTime.Sub(report.StartTime)
		if finalErr != nil {
			report.OverallStatus = StatusFailed
			report.Error = r.session.Secrets().Redact(finalErr.Error())
			inttracing.RecordErrorWithContext(span, finalErr, nil, r.session.Secrets().Redact)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(
			attribute.String("seltrace.script.status", report.OverallStatus),
			attribute.Int("seltrace.script.failed_steps", report.FailedSteps),
		)
		r.log.Infof("Script '%s' finished: %s (%d/%d steps completed)",
			script.Name, report.OverallStatus, report.CompletedSteps, report.TotalSteps)
	}()

	renderer := template.NewGoRenderer(r.lookup, r.session.Secrets())
	data := map[string]interface{}{"vars": script.Vars}
	if script.Vars == nil {
		data["vars"] = map[string]interface{}{}
	}

	for i, step := range script.Steps {
		if finalErr != nil {
			report.SkippedSteps++
			report.Steps = append(report.Steps, seltrace.StepResult{
				Name: step.DisplayName(i), Action: step.Action, Status: StatusSkipped, StartTime: time.Now(),
			})
			r.metrics.ScriptSteps.WithLabelValues(step.Action, StatusSkipped).Inc()
			continue
		}

		res, err := r.runStep(ctx, i, step, renderer, data)
		report.Steps = append(report.Steps, res)
		r.metrics.ScriptSteps.WithLabelValues(step.Action, res.Status).Inc()
		if err == nil {
			report.CompletedSteps++
			continue
		}
		report.FailedSteps++
		if ctx.Err() != nil {
			finalErr = fmt.Errorf("script interrupted at %s: %w", res.Name, err)
			continue
		}
		if step.ContinueOnError {
			r.log.Warnf("Step '%s' failed, continuing: %s", res.Name, res.Error)
			report.OverallStatus = StatusFailed
			continue
		}
		finalErr = fmt.Errorf("step '%s' failed: %w", res.Name, err)
	}
	return report, finalErr
}

func (r *Runner) runStep(ctx context.Context, index int, step Step, renderer template.Renderer, data map[string]interface{}) (seltrace.StepResult, error) {
	res := seltrace.StepResult{Name: step.DisplayName(index), Action: step.Action, StartTime: time.Now()}
	ctx, span := r.tracer.Start(ctx, "seltrace.step."+step.Action,
		trace.WithAttributes(attribute.String("seltrace.step.name", res.Name)))
	defer span.End()

	if d := step.GetTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	r.log.Debugf("Running step '%s' (%s)", res.Name, step.Action)
	var out string
	step, err := step.render(renderer, data)
	if err == nil {
		out, err = r.perform(ctx, step)
	}
	if err == nil && step.Expect != nil && out != *step.Expect {
		err = seltraceerrors.NewValidationError(fmt.Sprintf("expected %q, got %q", *step.Expect, out), nil)
	}
	res.Duration = time.Since(res.StartTime)
	res.Output = r.session.Secrets().Redact(out)
	if err != nil {
		res.Status = StatusFailed
		res.Error = r.session.Secrets().Redact(err.Error())
		inttracing.RecordErrorWithContext(span, err, nil, r.session.Secrets().Redact)
		return res, err
	}
	res.Status = StatusCompleted
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (r *Runner) perform(ctx context.Context, step Step) (string, error) {
	s := r.session
	switch step.Action {
	case ActionGet:
		return "", s.Get(ctx, step.URL)
	case ActionBack:
		return "", s.Back(ctx)
	case ActionForward:
		return "", s.Forward(ctx)
	case ActionRefresh:
		return "", s.Refresh(ctx)
	case ActionTitle:
		return s.Title(ctx)
	case ActionScript:
		v, err := s.ExecuteScript(ctx, step.Script, step.Args...)
		if err != nil || v == nil {
			return "", err
		}
		return fmt.Sprint(v), nil
	case ActionScreenshot:
		return r.screenshot(ctx, step.Path)
	}

	loc, err := step.Locator.Locator()
	if err != nil {
		return "", seltraceerrors.NewValidationError(err.Error(), err)
	}
	if step.Action == ActionFind && step.All {
		els, err := s.FindElements(ctx, loc)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d elements", len(els)), nil
	}
	el, err := s.FindElement(ctx, loc)
	if err != nil {
		return "", err
	}
	switch step.Action {
	case ActionFind:
		return el.String(), nil
	case ActionClick:
		return "", el.Click(ctx)
	case ActionType:
		return "", el.SendKeys(ctx, step.Text)
	case ActionClear:
		return "", el.Clear(ctx)
	case ActionSubmit:
		return "", el.Submit(ctx)
	case ActionText:
		return el.Text(ctx)
	}
	return "", seltraceerrors.NewValidationError(fmt.Sprintf("unknown action '%s'", step.Action), nil)
}

func (r *Runner) screenshot(ctx context.Context, path string) (string, error) {
	png, err := r.session.Screenshot(ctx)
	if err != nil {
		return "", err
	}
	if path == "" {
		return fmt.Sprintf("%d bytes", len(png)), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}
