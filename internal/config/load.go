package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/joho/godotenv"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// SupportedSchemaVersionConstraint is the major schema version this build reads.
const SupportedSchemaVersionConstraint = "v1"

// Environment variables overriding file settings.
const (
	EnvCaptureScreenshots = "SELTRACE_CAPTURE_SCREENSHOTS"
	EnvScreenshotDir      = "SELTRACE_SCREENSHOT_DIR"
	EnvBrowserURL         = "SELTRACE_BROWSER_URL"
	EnvHeadless           = "SELTRACE_HEADLESS"
	EnvStealth            = "SELTRACE_STEALTH"
	EnvListeners          = "SELTRACE_LISTENERS"
	EnvRecorder           = "SELTRACE_RECORDER"
	EnvRecorderPath       = "SELTRACE_RECORDER_PATH"
	EnvNATSURL            = "SELTRACE_NATS_URL"
)

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// Load parses a YAML configuration, validates it against the embedded
// schema, checks its schema version and runs the semantic checks.
func Load(configYAML []byte, filePathHint string) (*Config, error) {
	if len(configYAML) == 0 {
		return nil, seltraceerrors.NewConfigError("configuration content cannot be empty", nil)
	}
	if err := ValidateWithSchema(configYAML); err != nil {
		return nil, seltraceerrors.NewConfigError(fmt.Sprintf("configuration '%s' failed schema validation", filePathHint), err)
	}

	var cfg Config
	if err := yamlUnmarshalStrict(configYAML, &cfg); err != nil {
		return nil, seltraceerrors.NewConfigError(fmt.Sprintf("failed to parse configuration YAML '%s'", filePathHint), err)
	}
	cfg.FilePath = filePathHint

	if err := checkSchemaVersion(cfg.SchemaVersion, filePathHint); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := combine(filePathHint, Validate(&cfg)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads and loads the configuration at filePath.
func LoadFile(filePath string) (*Config, error) {
	if filePath == "" {
		return nil, seltraceerrors.NewConfigError("configuration file path cannot be empty", nil)
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, seltraceerrors.NewConfigError(fmt.Sprintf("failed to get absolute path for '%s'", filePath), err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, seltraceerrors.NewConfigError(fmt.Sprintf("failed to read configuration file '%s'", absPath), err)
	}
	return Load(data, absPath)
}

// EnvLookup resolves variables from the process environment, falling back
// to the dotenv file at path. A missing file is not an error.
func EnvLookup(path string) (LookupFunc, error) {
	fileVars := map[string]string{}
	if path != "" {
		vars, err := godotenv.Read(path)
		switch {
		case err == nil:
			fileVars = vars
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, seltraceerrors.NewConfigError(fmt.Sprintf("failed to read env file '%s'", path), err)
		}
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}, nil
}

// ApplyEnv overlays SELTRACE_* variables onto cfg and re-validates it.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		return nil
	}
	var errs []error
	setBool := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, seltraceerrors.NewValidationError(fmt.Sprintf("%s must be a boolean, got '%s'", key, v), err))
			return
		}
		*dst = b
	}
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	setBool(EnvCaptureScreenshots, &cfg.Screenshots.Capture)
	setString(EnvScreenshotDir, &cfg.Screenshots.Dir)
	setString(EnvBrowserURL, &cfg.Browser.ControlURL)
	setBool(EnvStealth, &cfg.Browser.Stealth)
	if _, ok := lookup(EnvHeadless); ok {
		headless := cfg.Browser.IsHeadless()
		setBool(EnvHeadless, &headless)
		cfg.Browser.Headless = &headless
	}
	if v, ok := lookup(EnvListeners); ok && v != "" {
		var names []string
		for _, n := range strings.Split(v, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		cfg.Session.Listeners = names
	}
	setString(EnvRecorder, &cfg.Recorder.Type)
	setString(EnvRecorderPath, &cfg.Recorder.Path)
	if v, ok := lookup(EnvNATSURL); ok && v != "" {
		if cfg.Export == nil {
			cfg.Export = &ExportConfig{}
		}
		cfg.Export.NATSURL = v
	}

	if len(errs) > 0 {
		return combine("environment", errs)
	}
	cfg.applyDefaults()
	return combine("environment", Validate(cfg))
}

func checkSchemaVersion(version, hint string) error {
	if version == "" {
		return seltraceerrors.NewValidationError(fmt.Sprintf("configuration '%s' is missing required 'schemaVersion' field", hint), nil)
	}
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return seltraceerrors.NewValidationError(fmt.Sprintf("configuration '%s' has invalid 'schemaVersion' format: '%s'", hint, version), nil)
	}
	if semver.Major(v) != SupportedSchemaVersionConstraint {
		return seltraceerrors.NewValidationError(
			fmt.Sprintf("configuration '%s' schemaVersion '%s' is not compatible with requirement '%s'", hint, version, SupportedSchemaVersionConstraint),
			nil,
		)
	}
	return nil
}

// combine folds validation errors into one ValidationError wrapping the first.
func combine(hint string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return seltraceerrors.NewValidationError(
		fmt.Sprintf("configuration '%s' has %d validation error(s):\n- %s", hint, len(msgs), strings.Join(msgs, "\n- ")),
		errs[0],
	)
}

func yamlUnmarshalStrict(in []byte, out interface{}) error {
	decoder := yaml.NewDecoder(strings.NewReader(string(in)))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("YAML parsing error: %w", err)
	}
	return nil
}
