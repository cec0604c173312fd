package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/gxo-labs/seltrace/internal/template"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/by"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"gopkg.in/yaml.v3"
)

// Step actions.
const (
	ActionGet        = "get"
	ActionClick      = "click"
	ActionType       = "type"
	ActionClear      = "clear"
	ActionSubmit     = "submit"
	ActionBack       = "back"
	ActionForward    = "forward"
	ActionRefresh    = "refresh"
	ActionTitle      = "title"
	ActionText       = "text"
	ActionScript     = "script"
	ActionScreenshot = "screenshot"
	ActionFind       = "find"
)

var actionsNeedingLocator = map[string]bool{
	ActionClick: true, ActionType: true, ActionClear: true, ActionSubmit: true, ActionText: true, ActionFind: true,
}

var knownActions = map[string]bool{
	ActionGet: true, ActionBack: true, ActionForward: true, ActionRefresh: true, ActionTitle: true,
	ActionScript: true, ActionScreenshot: true,
}

// Script is a replayable sequence of browser steps. String fields of steps
// are templates rendered against {"vars": Vars} just before each step runs.
type Script struct {
	Name  string                 `yaml:"name,omitempty"`
	Vars  map[string]interface{} `yaml:"vars,omitempty"`
	Steps []Step                 `yaml:"steps"`
}

// Step is one browser action. Fields other than Action apply to the
// actions that use them.
type Step struct {
	Name    string        `yaml:"name,omitempty"`
	Action  string        `yaml:"action"`
	URL     string        `yaml:"url,omitempty"`
	Locator Target        `yaml:"locator,omitempty"`
	Text    string        `yaml:"text,omitempty"`
	Script  string        `yaml:"script,omitempty"`
	Args    []interface{} `yaml:"args,omitempty"`
	Path    string        `yaml:"path,omitempty"`
	All     bool          `yaml:"all,omitempty"`

	// Expect fails the step when the title, text or script result differs.
	Expect          *string `yaml:"expect,omitempty"`
	Timeout         string  `yaml:"timeout,omitempty"`
	ContinueOnError bool    `yaml:"continueOnError,omitempty"`
}

// Target names an element by a single locator kind, e.g. {id: login} or
// {css: "form button"}.
type Target map[string]string

// Locator builds the locator t describes.
func (t Target) Locator() (by.Locator, error) {
	if len(t) != 1 {
		return nil, fmt.Errorf("locator must name exactly one kind, got %d", len(t))
	}
	for kind, value := range t {
		return by.New(kind, value)
	}
	return nil, nil
}

// DisplayName identifies the step in reports and logs.
func (s Step) DisplayName(index int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("step-%d-%s", index+1, s.Action)
}

// GetTimeout returns the step timeout, or 0 when unset or invalid.
func (s Step) GetTimeout() time.Duration {
	if s.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// LoadScript parses and validates a step script.
func LoadScript(scriptYAML []byte) (*Script, error) {
	if len(scriptYAML) == 0 {
		return nil, seltraceerrors.NewConfigError("script content cannot be empty", nil)
	}
	decoder := yaml.NewDecoder(strings.NewReader(string(scriptYAML)))
	decoder.KnownFields(true)
	var script Script
	if err := decoder.Decode(&script); err != nil {
		return nil, seltraceerrors.NewConfigError("failed to parse script YAML", err)
	}
	if errs := ValidateScript(&script); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return nil, seltraceerrors.NewValidationError(
			fmt.Sprintf("script '%s' has %d validation error(s):\n- %s", script.Name, len(errs), strings.Join(msgs, "\n- ")),
			errs[0],
		)
	}
	return &script, nil
}

// ValidateScript returns every problem found in s.
func ValidateScript(s *Script) []error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, seltraceerrors.NewValidationError(fmt.Sprintf(format, args...), nil))
	}
	if len(s.Steps) == 0 {
		add("script must contain at least one step")
	}
	names := make(map[string]bool)
	renderer := template.NewGoRenderer(nil, nil)
	for i, step := range s.Steps {
		label := fmt.Sprintf("step %d", i+1)
		if step.Name != "" {
			label = fmt.Sprintf("step %d ('%s')", i+1, step.Name)
			if names[step.Name] {
				add("%s: duplicate step name", label)
			}
			names[step.Name] = true
		}

		switch {
		case step.Action == "":
			add("%s: 'action' is required", label)
			continue
		case actionsNeedingLocator[step.Action]:
			if _, err := step.Locator.Locator(); err != nil {
				add("%s: %v", label, err)
			}
		case !knownActions[step.Action]:
			add("%s: unknown action '%s'", label, step.Action)
			continue
		}

		switch step.Action {
		case ActionGet:
			if step.URL == "" {
				add("%s: 'url' is required for get", label)
			}
		case ActionScript:
			if step.Script == "" {
				add("%s: 'script' is required for script", label)
			}
		}
		if step.Timeout != "" && step.GetTimeout() == 0 {
			add("%s: invalid timeout '%s'", label, step.Timeout)
		}
		for _, field := range step.templated() {
			vars, _ := renderer.ExtractVariables(field)
			for _, v := range vars {
				if v == "vars" {
					continue
				}
				name, isVar := strings.CutPrefix(v, "vars.")
				if !isVar {
					add("%s: unknown template reference '.%s'", label, v)
					continue
				}
				if _, ok := s.Vars[strings.SplitN(name, ".", 2)[0]]; !ok {
					add("%s: undefined variable '%s'", label, name)
				}
			}
		}
	}
	return errs
}

// templated lists the step's template-bearing fields.
func (s Step) templated() []string {
	fields := []string{s.URL, s.Text, s.Script, s.Path}
	if s.Expect != nil {
		fields = append(fields, *s.Expect)
	}
	for _, v := range s.Locator {
		fields = append(fields, v)
	}
	for _, a := range s.Args {
		if str, ok := a.(string); ok {
			fields = append(fields, str)
		}
	}
	return fields
}

// render returns a copy of s with its templates executed.
func (s Step) render(r template.Renderer, data map[string]interface{}) (Step, error) {
	var firstErr error
	do := func(in string) string {
		if firstErr != nil {
			return in
		}
		out, err := r.Render(in, data)
		if err != nil {
			firstErr = err
			return in
		}
		return out
	}

	out := s
	out.URL = do(s.URL)
	out.Text = do(s.Text)
	out.Script = do(s.Script)
	out.Path = do(s.Path)
	if s.Expect != nil {
		e := do(*s.Expect)
		out.Expect = &e
	}
	if len(s.Locator) > 0 {
		out.Locator = make(Target, len(s.Locator))
		for k, v := range s.Locator {
			out.Locator[k] = do(v)
		}
	}
	if len(s.Args) > 0 {
		out.Args = make([]interface{}, len(s.Args))
		for i, a := range s.Args {
			if str, ok := a.(string); ok {
				out.Args[i] = do(str)
				continue
			}
			out.Args[i] = a
		}
	}
	return out, firstErr
}
