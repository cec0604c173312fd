package config

import (
	"fmt"
	"regexp"

	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/plugin"
)

var subjectRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// Validate performs the checks the schema cannot express and returns every
// problem found.
func Validate(c *Config) []error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, seltraceerrors.NewValidationError(fmt.Sprintf(format, args...), nil))
	}

	seen := make(map[string]bool, len(c.Session.Listeners))
	for _, name := range c.Session.Listeners {
		if name == "" {
			add("session.listeners: listener name cannot be empty")
			continue
		}
		if seen[name] {
			add("session.listeners: duplicate listener '%s'", name)
		}
		seen[name] = true
	}

	if c.Screenshots.Capture {
		if !seen["screenshot"] {
			add("screenshots.capture requires the 'screenshot' listener")
		}
		if c.Screenshots.Dir == "" {
			add("screenshots.dir is required when screenshots.capture is true")
		}
	}

	switch c.Recorder.Type {
	case RecorderMemory:
	case RecorderSQLite:
		if c.Recorder.Path == "" {
			add("recorder.path is required for the sqlite recorder")
		}
	default:
		add("recorder.type '%s' is not supported (use '%s' or '%s')", c.Recorder.Type, RecorderMemory, RecorderSQLite)
	}

	if c.Export != nil {
		if c.Export.BufferSize < 0 {
			add("export.bufferSize cannot be negative")
		}
		if c.Export.SubjectPrefix != "" && !subjectRegex.MatchString(c.Export.SubjectPrefix) {
			add("export.subjectPrefix '%s' is not a valid NATS subject", c.Export.SubjectPrefix)
		}
		if seen["export"] && c.Export.NATSURL == "" {
			add("export.natsURL is required when the 'export' listener is enabled")
		}
	} else if seen["export"] {
		add("the 'export' listener requires an export section")
	}

	if c.Browser.CommandTimeout != "" && c.Browser.GetCommandTimeout() == 0 {
		add("browser.commandTimeout '%s' is not a valid positive duration", c.Browser.CommandTimeout)
	}
	return errs
}

// CheckListeners reports listener names unknown to reg.
func CheckListeners(c *Config, reg plugin.Registry) []error {
	var errs []error
	for _, name := range c.Session.Listeners {
		if _, err := reg.Get(name); err != nil {
			errs = append(errs, seltraceerrors.NewValidationError(fmt.Sprintf("session.listeners: %v", err), err))
		}
	}
	return errs
}
