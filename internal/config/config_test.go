package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gxo-labs/seltrace/internal/config"
	"github.com/gxo-labs/seltrace/internal/listeners"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
name: checkout
schemaVersion: "1.0.0"
browser:
  controlURL: ws://127.0.0.1:9222/devtools/browser/abc
  headless: false
  stealth: true
  commandTimeout: 15s
  connectRetry:
    attempts: 5
    delay: 200ms
    maxDelay: 2s
    backoffFactor: 1.5
    jitter: 0.2
session:
  listeners: [full, screenshot, step, export]
  shortenLogMessages: true
  highlightElements: true
screenshots:
  capture: true
  dir: shots
recorder:
  type: sqlite
  path: out/trace.db
export:
  natsURL: nats://localhost:4222
  subjectPrefix: qa.trace
`

func TestLoadFullConfig(t *testing.T) {
	cfg, err := config.Load([]byte(fullConfig), "full.yaml")
	require.NoError(t, err)

	assert.Equal(t, "checkout", cfg.Name)
	assert.False(t, cfg.Browser.IsHeadless())
	assert.True(t, cfg.Browser.Stealth)
	assert.Equal(t, 15*time.Second, cfg.Browser.GetCommandTimeout())
	assert.Equal(t, []string{"full", "screenshot", "step", "export"}, cfg.Session.Listeners)
	assert.True(t, cfg.Screenshots.Capture)
	assert.Equal(t, config.RecorderSQLite, cfg.Recorder.Type)
	assert.Equal(t, "qa.trace", cfg.Export.SubjectPrefix)

	policy := cfg.Browser.RetryPolicy()
	assert.Equal(t, 5, policy.Attempts)
	assert.Equal(t, 200*time.Millisecond, policy.Delay)
	assert.Equal(t, 2*time.Second, policy.MaxDelay)
	assert.Equal(t, 1.5, policy.BackoffFactor)
	assert.Equal(t, 0.2, policy.Jitter)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load([]byte(`schemaVersion: v1.2.0`), "min.yaml")
	require.NoError(t, err)

	assert.True(t, cfg.Browser.IsHeadless())
	assert.Equal(t, config.DefaultListeners, cfg.Session.Listeners)
	assert.Equal(t, "screenshots", cfg.Screenshots.Dir)
	assert.Equal(t, config.RecorderMemory, cfg.Recorder.Type)
	assert.Equal(t, 3, cfg.Browser.RetryPolicy().Attempts)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		message string
	}{
		{"empty", ``, "cannot be empty"},
		{"unknown field", "schemaVersion: v1.0.0\nbogus: true\n", "schema validation"},
		{"missing version", "name: x\n", "schema validation"},
		{"bad version", "schemaVersion: latest\n", "invalid 'schemaVersion'"},
		{"wrong major", "schemaVersion: v2.0.0\n", "not compatible"},
		{"bad duration", "schemaVersion: v1.0.0\nbrowser:\n  commandTimeout: soon\n", "schema validation"},
		{"bad recorder", "schemaVersion: v1.0.0\nrecorder:\n  type: postgres\n", "schema validation"},
		{"duplicate listener", "schemaVersion: v1.0.0\nsession:\n  listeners: [full, full]\n", "duplicate listener 'full'"},
		{"capture without listener", "schemaVersion: v1.0.0\nsession:\n  listeners: [full]\nscreenshots:\n  capture: true\n", "requires the 'screenshot' listener"},
		{"export without section", "schemaVersion: v1.0.0\nsession:\n  listeners: [export]\n", "requires an export section"},
		{"bad subject", "schemaVersion: v1.0.0\nexport:\n  natsURL: nats://x\n  subjectPrefix: 'a..b'\n", "not a valid NATS subject"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load([]byte(tc.yaml), "bad.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestValidationErrorsAreTyped(t *testing.T) {
	_, err := config.Load([]byte("schemaVersion: v1.0.0\nsession:\n  listeners: [full, full]\n"), "dup.yaml")
	var verr *seltraceerrors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seltrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schemaVersion: v1.0.0\n"), 0o644))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.FilePath)

	_, err = config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	var cerr *seltraceerrors.ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func lookupFrom(vars map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := config.Default()
	err := config.ApplyEnv(cfg, lookupFrom(map[string]string{
		config.EnvCaptureScreenshots: "true",
		config.EnvHeadless:           "false",
		config.EnvListeners:          "full, screenshot ,export",
		config.EnvNATSURL:            "nats://bus:4222",
		config.EnvRecorder:           "sqlite",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.Screenshots.Capture)
	assert.False(t, cfg.Browser.IsHeadless())
	assert.Equal(t, []string{"full", "screenshot", "export"}, cfg.Session.Listeners)
	assert.Equal(t, "nats://bus:4222", cfg.Export.NATSURL)
	assert.Equal(t, "seltrace.db", cfg.Recorder.Path)
}

func TestApplyEnvRejectsBadBool(t *testing.T) {
	err := config.ApplyEnv(config.Default(), lookupFrom(map[string]string{config.EnvCaptureScreenshots: "maybe"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a boolean")
}

func TestEnvLookupReadsDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SELTRACE_SCREENSHOT_DIR=from-file\nSELTRACE_STEALTH=true\n"), 0o644))
	t.Setenv(config.EnvStealth, "false")

	lookup, err := config.EnvLookup(path)
	require.NoError(t, err)

	v, ok := lookup(config.EnvScreenshotDir)
	assert.True(t, ok)
	assert.Equal(t, "from-file", v)
	v, _ = lookup(config.EnvStealth)
	assert.Equal(t, "false", v, "process environment wins over the file")

	_, err = config.EnvLookup(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestCheckListeners(t *testing.T) {
	cfg := config.Default()
	cfg.Session.Listeners = []string{"full", "nope"}
	errs := config.CheckListeners(cfg, listeners.DefaultRegistry)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "listener not found: nope")
}
