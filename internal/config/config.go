package config

import (
	"time"

	"github.com/gxo-labs/seltrace/internal/retry"
)

// Recorder kinds.
const (
	RecorderMemory = "memory"
	RecorderSQLite = "sqlite"
)

// Config is the top-level structure of a seltrace configuration file.
type Config struct {
	Name          string           `yaml:"name,omitempty"`
	SchemaVersion string           `yaml:"schemaVersion"`
	Browser       BrowserConfig    `yaml:"browser,omitempty"`
	Session       SessionConfig    `yaml:"session,omitempty"`
	Screenshots   ScreenshotConfig `yaml:"screenshots,omitempty"`
	Recorder      RecorderConfig   `yaml:"recorder,omitempty"`
	Export        *ExportConfig    `yaml:"export,omitempty"`

	// FilePath is where the configuration was loaded from, for messages.
	FilePath string `yaml:"-"`
}

// BrowserConfig selects how the browser is reached.
type BrowserConfig struct {
	// ControlURL attaches to a running browser's DevTools endpoint. When
	// empty a browser is launched.
	ControlURL     string       `yaml:"controlURL,omitempty"`
	BinPath        string       `yaml:"binPath,omitempty"`
	Headless       *bool        `yaml:"headless,omitempty"`
	Stealth        bool         `yaml:"stealth,omitempty"`
	CommandTimeout string       `yaml:"commandTimeout,omitempty"`
	ConnectRetry   *RetryConfig `yaml:"connectRetry,omitempty"`
}

// RetryConfig defines how connecting to the browser is retried.
type RetryConfig struct {
	Attempts      int      `yaml:"attempts,omitempty"`
	Delay         string   `yaml:"delay,omitempty"`
	MaxDelay      string   `yaml:"maxDelay,omitempty"`
	BackoffFactor *float64 `yaml:"backoffFactor,omitempty"`
	Jitter        *float64 `yaml:"jitter,omitempty"`
}

// SessionConfig holds the instrumentation settings of each session.
type SessionConfig struct {
	Listeners          []string `yaml:"listeners,omitempty"`
	ShortenLogMessages bool     `yaml:"shortenLogMessages,omitempty"`
	HighlightElements  bool     `yaml:"highlightElements,omitempty"`
	UploadLocalFiles   bool     `yaml:"uploadLocalFiles,omitempty"`
}

// ScreenshotConfig controls the screenshotting recorder.
type ScreenshotConfig struct {
	Capture bool   `yaml:"capture,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// RecorderConfig selects the test execution recorder.
type RecorderConfig struct {
	Type string `yaml:"type,omitempty"`
	Path string `yaml:"path,omitempty"`
}

// ExportConfig enables publishing records to NATS.
type ExportConfig struct {
	NATSURL       string `yaml:"natsURL,omitempty"`
	SubjectPrefix string `yaml:"subjectPrefix,omitempty"`
	BufferSize    int    `yaml:"bufferSize,omitempty"`
}

// DefaultListeners are attached when the configuration names none.
var DefaultListeners = []string{"full", "screenshot", "step"}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{SchemaVersion: "v1.0.0"}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if len(c.Session.Listeners) == 0 {
		c.Session.Listeners = append([]string(nil), DefaultListeners...)
	}
	if c.Screenshots.Dir == "" {
		c.Screenshots.Dir = "screenshots"
	}
	if c.Recorder.Type == "" {
		c.Recorder.Type = RecorderMemory
	}
	if c.Recorder.Type == RecorderSQLite && c.Recorder.Path == "" {
		c.Recorder.Path = "seltrace.db"
	}
}

// IsHeadless defaults to true.
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// GetCommandTimeout returns the per-command timeout, or 0 when unset or invalid.
func (b BrowserConfig) GetCommandTimeout() time.Duration {
	if b.CommandTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(b.CommandTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// RetryPolicy converts the connect retry settings for the retry helper.
// Without settings the connection is attempted three times, one second
// apart, doubling up to ten seconds.
func (b BrowserConfig) RetryPolicy() retry.Config {
	cfg := retry.Config{
		Attempts:      3,
		Delay:         time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
		Operation:     "browser connect",
	}
	r := b.ConnectRetry
	if r == nil {
		return cfg
	}
	if r.Attempts >= 1 {
		cfg.Attempts = r.Attempts
	}
	if d, err := time.ParseDuration(r.Delay); err == nil && d > 0 {
		cfg.Delay = d
	}
	if d, err := time.ParseDuration(r.MaxDelay); err == nil && d >= 0 {
		cfg.MaxDelay = d
	}
	if r.BackoffFactor != nil && *r.BackoffFactor >= 1 {
		cfg.BackoffFactor = *r.BackoffFactor
	}
	if r.Jitter != nil {
		cfg.Jitter = min(max(*r.Jitter, 0), 1)
	}
	return cfg
}
