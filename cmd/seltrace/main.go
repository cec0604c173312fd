package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	seltrace "github.com/gxo-labs/seltrace/pkg/seltrace/v1"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	seltraceevents "github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/plugin"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/recorder"

	"github.com/gxo-labs/seltrace/internal/config"
	"github.com/gxo-labs/seltrace/internal/driver"
	"github.com/gxo-labs/seltrace/internal/events"
	"github.com/gxo-labs/seltrace/internal/execution"
	"github.com/gxo-labs/seltrace/internal/listeners"
	"github.com/gxo-labs/seltrace/internal/logger"
	"github.com/gxo-labs/seltrace/internal/metrics"
	"github.com/gxo-labs/seltrace/internal/runner"
	"github.com/gxo-labs/seltrace/internal/screenshot"
	"github.com/gxo-labs/seltrace/internal/template"
	"github.com/gxo-labs/seltrace/internal/tracing"
	"github.com/gxo-labs/seltrace/internal/transport/rodtransport"
)

const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitUsageError  = 2
	ExitTimeout     = 124
	ExitSigIntBase  = 128
	ExitSigInt      = ExitSigIntBase + int(syscall.SIGINT)
	ExitSigTerm     = ExitSigIntBase + int(syscall.SIGTERM)
	DefaultLogLevel = "info"
	DefaultLogFmt   = "text"
	DefaultEnvFile  = ".env"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(ExitUsageError)
	}
	switch os.Args[1] {
	case "validate":
		os.Exit(runValidateCommand(os.Args[2:]))
	case "run":
		os.Exit(runExecuteCommand(os.Args[2:]))
	case "--version", "-version", "version":
		printVersion()
		os.Exit(ExitSuccess)
	}
	usage()
	os.Exit(ExitUsageError)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [flags...]\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  validate  Validate a seltrace configuration file")
	fmt.Fprintln(os.Stderr, "  run       Replay a step script against an instrumented browser session")
	fmt.Fprintln(os.Stderr, "  version   Print version information")
}

func printVersion() {
	fmt.Printf("seltrace version %s\n", version)
	fmt.Printf("commit: %s\n", commit)
	fmt.Printf("built: %s\n", buildDate)
	fmt.Printf("go version: %s\n", runtime.Version())
	fmt.Printf("os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// loadConfig reads path, or starts from defaults when path is empty, and
// overlays the environment. The returned lookup also serves the env and
// secret functions of step scripts.
func loadConfig(path, envFile string) (*config.Config, config.LookupFunc, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, nil, err
		}
	}
	lookup, err := config.EnvLookup(envFile)
	if err != nil {
		return nil, nil, err
	}
	if err := config.ApplyEnv(cfg, lookup); err != nil {
		return nil, nil, err
	}
	if errs := config.CheckListeners(cfg, listeners.DefaultRegistry); len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}
	return cfg, lookup, nil
}

func logConfigError(log seltracelog.Logger, err error) {
	var validationErr *seltraceerrors.ValidationError
	var configErr *seltraceerrors.ConfigError
	if errors.As(err, &validationErr) {
		log.Errorf("Configuration validation failed:\n%s", err.Error())
	} else if errors.As(err, &configErr) {
		log.Errorf("Configuration error:\n%s", err.Error())
	} else {
		log.Errorf("Failed to load configuration: %v", err)
	}
}

func runValidateCommand(args []string) int {
	validateFlags := flag.NewFlagSet("validate", flag.ContinueOnError)
	configPath := validateFlags.String("config", "", "Path to the configuration YAML file to validate (required)")
	scriptPath := validateFlags.String("script", "", "Optional step script to validate as well")
	envFile := validateFlags.String("env-file", DefaultEnvFile, "Dotenv file consulted for SELTRACE_* variables")
	logLevel := validateFlags.String("log-level", DefaultLogLevel, "Log level for validation output (debug, info, warn, error)")

	validateFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s validate -config <path> [flags...]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Validates a seltrace configuration file against its schema.")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		validateFlags.PrintDefaults()
	}
	if err := validateFlags.Parse(args); err != nil {
		return ExitUsageError
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config flag is required for validation")
		validateFlags.Usage()
		return ExitUsageError
	}

	log := logger.NewLogger(*logLevel, "text", os.Stderr)
	log.Infof("Validating configuration: %s", *configPath)
	if _, _, err := loadConfig(*configPath, *envFile); err != nil {
		logConfigError(log, err)
		return ExitFailure
	}
	if *scriptPath != "" {
		data, err := os.ReadFile(*scriptPath)
		if err != nil {
			log.Errorf("Failed to read script file '%s': %v", *scriptPath, err)
			return ExitFailure
		}
		if _, err := runner.LoadScript(data); err != nil {
			log.Errorf("Script validation failed:\n%s", err.Error())
			return ExitFailure
		}
	}
	log.Infof("Validation successful: %s", *configPath)
	return ExitSuccess
}

func runExecuteCommand(args []string) int {
	execFlags := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := execFlags.String("config", "", "Path to the configuration YAML file (defaults are used when empty)")
	scriptPath := execFlags.String("script", "", "Path to the step script YAML file (required)")
	outPath := execFlags.String("out", "", "Write the full record log as JSON to this file")
	metricsAddr := execFlags.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	envFile := execFlags.String("env-file", DefaultEnvFile, "Dotenv file consulted for SELTRACE_* variables")
	logLevel := execFlags.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	logFormat := execFlags.String("log-format", DefaultLogFmt, "Log format (text, json)")
	versionFlag := execFlags.Bool("version", false, "Print version information and exit")

	execFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s run [flags...] -script <path>\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Replays a step script against an instrumented browser session.")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		execFlags.PrintDefaults()
	}
	if err := execFlags.Parse(args); err != nil {
		return ExitUsageError
	}
	if *versionFlag {
		printVersion()
		return ExitSuccess
	}
	if *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -script flag is required")
		execFlags.Usage()
		return ExitUsageError
	}
	if *logFormat != "text" && *logFormat != "json" {
		fmt.Fprintln(os.Stderr, "Error: -log-format must be 'text' or 'json'")
		return ExitUsageError
	}

	log := logger.NewLogger(*logLevel, *logFormat, os.Stderr)
	log = log.With("seltrace_version", version)
	log.Infof("seltrace v%s starting...", version)

	cfg, lookup, err := loadConfig(*configPath, *envFile)
	if err != nil {
		logConfigError(log, err)
		return ExitFailure
	}
	scriptBytes, err := os.ReadFile(*scriptPath)
	if err != nil {
		log.Errorf("Failed to read script file '%s': %v", *scriptPath, err)
		return ExitFailure
	}

	metricsProvider := metrics.NewPrometheusRegistryProvider()
	tracerProvider, err := tracing.NewProviderFromEnv(context.Background(), log)
	if err != nil {
		log.Warnf("Failed to initialize tracing from environment: %v. Using NoOp tracer.", err)
		tracerProvider, _ = tracing.NewNoOpProvider()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Error shutting down tracer provider: %v", err)
		}
	}()

	if *metricsAddr != "" {
		srv := serveMetrics(*metricsAddr, metricsProvider, log)
		defer srv.Close()
	}

	rec, closeRecorder, err := newRecorder(cfg)
	if err != nil {
		log.Errorf("Failed to open execution recorder: %v", err)
		return ExitFailure
	}
	defer closeRecorder()

	capturer, err := screenshot.NewFileCapturer(cfg.Screenshots.Dir)
	if err != nil {
		log.Errorf("Failed to prepare screenshot directory: %v", err)
		return ExitFailure
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	var bus seltraceevents.Bus
	stopExport := func() {}
	if cfg.Export != nil {
		b, stop, err := startExport(runCtx, cfg.Export, metricsProvider, log)
		if err != nil {
			log.Errorf("Failed to start event export: %v", err)
			return ExitFailure
		}
		bus, stopExport = b, stop
	}

	built, err := listeners.Build(listeners.DefaultRegistry, cfg.Session.Listeners, plugin.Dependencies{
		Logger:             log,
		Recorder:           rec,
		Capturer:           capturer,
		CaptureScreenshots: cfg.Screenshots.Capture,
		Bus:                bus,
		Metrics:            metricsProvider,
	})
	if err != nil {
		stopExport()
		log.Errorf("Failed to build listeners: %v", err)
		return ExitFailure
	}

	browser := rodtransport.New(rodtransport.Options{
		ControlURL:     cfg.Browser.ControlURL,
		BinPath:        cfg.Browser.BinPath,
		Headless:       cfg.Browser.IsHeadless(),
		Stealth:        cfg.Browser.Stealth,
		CommandTimeout: cfg.Browser.GetCommandTimeout(),
		Retry:          cfg.Browser.RetryPolicy(),
	}, log)
	defer func() {
		if err := browser.Close(); err != nil {
			log.Warnf("Error closing browser: %v", err)
		}
	}()

	sessionOpts := []seltrace.SessionOption{
		seltrace.WithLogger(log),
		seltrace.WithListeners(built...),
		seltrace.WithTracerProvider(tracerProvider),
		seltrace.WithMetricsRegistry(metricsProvider),
		seltrace.WithShortenLogMessages(cfg.Session.ShortenLogMessages),
		seltrace.WithHighlightElements(cfg.Session.HighlightElements),
	}
	if cfg.Session.UploadLocalFiles {
		sessionOpts = append(sessionOpts, seltrace.WithFileUploader(driver.LocalFileDetector{}))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var receivedSignal os.Signal
	var sigMu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
			sigMu.Lock()
			receivedSignal = sig
			sigMu.Unlock()
			cancelRun()
		case <-runCtx.Done():
		}
	}()

	log.Infof("Starting browser session...")
	session, err := driver.NewSession(runCtx, browser, nil, sessionOpts...)
	var report *seltrace.Report
	var execErr error
	if err != nil {
		execErr = err
	} else {
		session.Bind(capturer)
		log.Infof("Replaying script: %s", *scriptPath)
		report, execErr = runner.New(session,
			runner.WithLogger(log),
			runner.WithTracerProvider(tracerProvider),
			runner.WithMetricsRegistry(metricsProvider),
			runner.WithRecorder(rec),
			runner.WithLookup(template.Lookup(lookup)),
		).Run(runCtx, scriptBytes)

		quitCtx, cancelQuit := context.WithTimeout(context.Background(), 10*time.Second)
		if err := session.Quit(quitCtx); err != nil {
			log.Warnf("Failed to end browser session: %v", err)
		}
		cancelQuit()
	}

	stopExport()
	cancelRun()
	wg.Wait()

	if *outPath != "" {
		if err := writeRecords(*outPath, built); err != nil {
			log.Errorf("Failed to write records: %v", err)
			if execErr == nil {
				execErr = err
			}
		} else {
			log.Infof("Records written to %s", *outPath)
		}
	}

	printReportSummary(log, report, execErr)

	sigMu.Lock()
	finalSignal := receivedSignal
	sigMu.Unlock()
	return determineExitCode(report, execErr, finalSignal, log)
}

func newRecorder(cfg *config.Config) (recorder.TestExecutionRecorder, func(), error) {
	if cfg.Recorder.Type == config.RecorderSQLite {
		r, err := execution.NewSQLiteRecorder(cfg.Recorder.Path)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	}
	return execution.NewMemoryRecorder(), func() {}, nil
}

// startExport connects to NATS and starts forwarding. The returned stop
// function closes the bus, waits for the forwarder to drain it and drains
// the connection.
func startExport(ctx context.Context, cfg *config.ExportConfig, provider *metrics.PrometheusRegistryProvider, log seltracelog.Logger) (seltraceevents.Bus, func(), error) {
	conn, err := events.ConnectNATS(cfg.NATSURL, "seltrace", 0)
	if err != nil {
		return nil, nil, err
	}
	bus := events.NewChannelEventBus(cfg.BufferSize, log)
	fwd := events.NewNATSForwarder(bus, conn, cfg.SubjectPrefix, metrics.NewCollectors(provider, log), log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		fwd.Start(context.WithoutCancel(ctx))
	}()

	var once sync.Once
	return bus, func() {
		once.Do(func() {
			bus.Close()
			<-done
			if err := conn.Drain(); err != nil {
				log.Warnf("Failed to drain NATS connection: %v", err)
			}
		})
	}, nil
}

func serveMetrics(addr string, provider *metrics.PrometheusRegistryProvider, log seltracelog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(provider.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warnf("Metrics server stopped: %v", err)
		}
	}()
	log.Infof("Serving metrics on %s/metrics", addr)
	return srv
}

// writeRecords dumps the log of the first full recorder among ls.
func writeRecords(path string, ls []seltraceevents.Listener) error {
	var records []seltraceevents.EventRecord
	for _, l := range ls {
		if full, ok := l.(*listeners.FullRecorder); ok {
			records = full.Records()
			break
		}
	}
	if records == nil {
		return fmt.Errorf("no 'full' listener configured, nothing to write")
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func printReportSummary(log seltracelog.Logger, report *seltrace.Report, execErr error) {
	if report == nil {
		log.Warnf("Execution finished but no report was generated (likely due to early failure).")
		if execErr != nil {
			logExecutionErrorReason(log, execErr)
		}
		return
	}

	statusLine := fmt.Sprintf("Script '%s' finished. Status: %s", report.ScriptName, report.OverallStatus)
	summaryLine := fmt.Sprintf("Duration: %v. Steps: Total=%d, Completed=%d, Failed=%d, Skipped=%d",
		report.Duration.Truncate(time.Millisecond),
		report.TotalSteps, report.CompletedSteps, report.FailedSteps, report.SkippedSteps)

	if report.OverallStatus == runner.StatusFailed || execErr != nil {
		log.Errorf("%s. %s", statusLine, summaryLine)
		if report.Error != "" {
			log.Errorf("Overall Error: %s", report.Error)
		} else if execErr != nil {
			logExecutionErrorReason(log, execErr)
		}
		for _, step := range report.Steps {
			if step.Status == runner.StatusFailed {
				log.Errorf("  - Step '%s': %s", step.Name, step.Error)
			}
		}
	} else {
		log.Infof("%s. %s", statusLine, summaryLine)
	}
}

func logExecutionErrorReason(log seltracelog.Logger, execErr error) {
	if errors.Is(execErr, context.Canceled) {
		log.Warnf("Execution Reason: Cancelled.")
	} else if errors.Is(execErr, context.DeadlineExceeded) {
		log.Errorf("Execution Reason: Timeout.")
	} else {
		log.Errorf("Execution Error: %v", execErr)
	}
}

func determineExitCode(report *seltrace.Report, execErr error, sig os.Signal, log seltracelog.Logger) int {
	switch {
	case execErr != nil && errors.Is(execErr, context.Canceled) && sig != nil:
		switch sig {
		case syscall.SIGINT:
			log.Warnf("Script interrupted by signal: SIGINT")
			return ExitSigInt
		case syscall.SIGTERM:
			log.Warnf("Script terminated by signal: SIGTERM")
			return ExitSigTerm
		}
		log.Warnf("Script terminated by signal: %v", sig)
		return ExitFailure
	case execErr != nil && errors.Is(execErr, context.DeadlineExceeded):
		log.Errorf("Script timed out.")
		return ExitTimeout
	case execErr != nil:
		return ExitFailure
	case report != nil && report.OverallStatus == runner.StatusFailed:
		log.Errorf("Script finished but reported overall status as Failed.")
		return ExitFailure
	}
	log.Infof("Script completed successfully.")
	return ExitSuccess
}
