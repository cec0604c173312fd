package runner_test

import (
	"context"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gxo-labs/seltrace/internal/driver"
	"github.com/gxo-labs/seltrace/internal/execution"
	"github.com/gxo-labs/seltrace/internal/listeners"
	"github.com/gxo-labs/seltrace/internal/logger"
	intmetrics "github.com/gxo-labs/seltrace/internal/metrics"
	"github.com/gxo-labs/seltrace/internal/runner"
	seltrace "github.com/gxo-labs/seltrace/pkg/seltrace/v1"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/transport"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedTransport struct {
	values map[string]interface{}
	errors map[string]string
	sent   []transport.Command
}

func (f *scriptedTransport) Execute(_ context.Context, cmd transport.Command) (*transport.Response, error) {
	f.sent = append(f.sent, cmd)
	if code, ok := f.errors[cmd.Name]; ok {
		return &transport.Response{Error: code, Message: code + ": scripted failure"}, nil
	}
	return &transport.Response{Value: f.values[cmd.Name]}, nil
}

func newTransport() *scriptedTransport {
	return &scriptedTransport{
		values: map[string]interface{}{
			transport.NewSession:     map[string]interface{}{"sessionId": "sess-9", "capabilities": map[string]interface{}{}},
			transport.GetTitle:       "Checkout",
			transport.GetCurrentURL:  "https://shop.test/",
			transport.FindElement:    transport.ElementRef("el-1"),
			transport.FindElements:   []interface{}{transport.ElementRef("a"), transport.ElementRef("b")},
			transport.GetElementText: "Order placed",
			transport.ExecuteScript:  float64(3),
			transport.Screenshot:     base64.StdEncoding.EncodeToString([]byte("\x89PNG")),
		},
		errors: map[string]string{},
	}
}

func newSession(t *testing.T, ft *scriptedTransport, opts ...seltrace.SessionOption) (*driver.Session, *listeners.FullRecorder) {
	t.Helper()
	full := listeners.NewFullRecorder()
	all := append([]seltrace.SessionOption{
		seltrace.WithLogger(logger.NewLogger("error", "text", io.Discard)),
		seltrace.WithListeners(full),
	}, opts...)
	s, err := driver.NewSession(context.Background(), ft, nil, all...)
	require.NoError(t, err)
	return s, full
}

const checkout = `
name: checkout
steps:
  - name: open
    action: get
    url: https://shop.test/
  - action: title
    expect: Checkout
  - action: type
    locator: {id: email}
    text: buyer@shop.test
  - action: click
    locator: {css: "button.pay"}
  - action: text
    locator: {className: status}
    expect: Order placed
  - action: find
    all: true
    locator: {tagName: li}
  - action: script
    script: "return 1 + 2;"
`

func TestRunCompletesScript(t *testing.T) {
	ft := newTransport()
	s, full := newSession(t, ft)
	rec := execution.NewMemoryRecorder()

	report, err := runner.New(s, runner.WithRecorder(rec)).Run(context.Background(), []byte(checkout))
	require.NoError(t, err)

	assert.Equal(t, runner.StatusCompleted, report.OverallStatus)
	assert.Equal(t, "sess-9", report.SessionID)
	assert.Equal(t, rec.TraceID(), report.TraceID)
	assert.Equal(t, 7, report.TotalSteps)
	assert.Equal(t, 7, report.CompletedSteps)
	assert.Equal(t, "open", report.Steps[0].Name)
	assert.Equal(t, "step-2-title", report.Steps[1].Name)
	assert.Equal(t, "Checkout", report.Steps[1].Output)
	assert.Equal(t, "2 elements", report.Steps[5].Output)
	assert.Equal(t, "3", report.Steps[6].Output)

	var clicks int
	for _, r := range full.Records() {
		if r.Command == events.ElementClick {
			clicks++
		}
	}
	assert.Equal(t, 2, clicks, "before and after the click")
}

func TestRunStopsOnFailureAndSkipsRest(t *testing.T) {
	ft := newTransport()
	ft.errors[transport.ClickElement] = "element click intercepted"
	s, _ := newSession(t, ft)
	provider := intmetrics.NewPrometheusRegistryProvider()
	r := runner.New(s, runner.WithMetricsRegistry(provider))

	report, err := r.Run(context.Background(), []byte(checkout))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 'step-4-click' failed")
	_, isDriver := seltraceerrors.AsDriverError(err)
	assert.True(t, isDriver)

	assert.Equal(t, runner.StatusFailed, report.OverallStatus)
	assert.Equal(t, 3, report.CompletedSteps)
	assert.Equal(t, 1, report.FailedSteps)
	assert.Equal(t, 3, report.SkippedSteps)
	assert.Equal(t, runner.StatusSkipped, report.Steps[6].Status)

	collectors := intmetrics.NewCollectors(provider, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.ScriptSteps.WithLabelValues("click", runner.StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.ScriptSteps.WithLabelValues("script", runner.StatusSkipped)))
}

func TestRunContinueOnError(t *testing.T) {
	ft := newTransport()
	ft.errors[transport.FindElement] = "no such element"
	s, _ := newSession(t, ft)

	report, err := runner.New(s).Run(context.Background(), []byte(`
steps:
  - action: click
    locator: {id: banner-close}
    continueOnError: true
  - action: title
`))
	require.NoError(t, err)
	assert.Equal(t, runner.StatusFailed, report.OverallStatus)
	assert.Equal(t, runner.StatusFailed, report.Steps[0].Status)
	assert.Contains(t, report.Steps[0].Error, "no such element")
	assert.Equal(t, runner.StatusCompleted, report.Steps[1].Status)
}

func TestRunExpectationMismatch(t *testing.T) {
	s, _ := newSession(t, newTransport())
	_, err := runner.New(s).Run(context.Background(), []byte("steps:\n  - action: title\n    expect: Home\n"))
	var verr *seltraceerrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), `expected "Home", got "Checkout"`)
}

func TestRunRedactsTypedPasswords(t *testing.T) {
	ft := newTransport()
	ft.values[transport.ExecuteScript] = "token hunter2"
	s, full := newSession(t, ft)

	report, err := runner.New(s).Run(context.Background(), []byte(`
steps:
  - action: type
    locator: {id: password}
    text: hunter2
  - action: script
    script: "return document.body.dataset.token;"
`))
	require.NoError(t, err)
	assert.Equal(t, "token [REDACTED_SECRET]", report.Steps[1].Output)
	for _, r := range full.Records() {
		if r.Command == events.ElementSendKeys {
			assert.Equal(t, events.PasswordMask, r.Param1)
		}
	}
}

func TestRunScreenshotWritesFile(t *testing.T) {
	s, _ := newSession(t, newTransport())
	path := filepath.Join(t.TempDir(), "shots", "home.png")

	report, err := runner.New(s).Run(context.Background(), []byte("steps:\n  - action: screenshot\n    path: "+path+"\n"))
	require.NoError(t, err)
	assert.Equal(t, path, report.Steps[0].Output)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data)
}

func TestLoadScriptValidation(t *testing.T) {
	tests := []struct {
		name, yaml, message string
	}{
		{"empty", "", "cannot be empty"},
		{"no steps", "name: x\nsteps: []\n", "at least one step"},
		{"unknown field", "steps:\n  - action: get\n    href: x\n", "failed to parse"},
		{"unknown action", "steps:\n  - action: hover\n", "unknown action 'hover'"},
		{"missing url", "steps:\n  - action: get\n", "'url' is required"},
		{"missing locator", "steps:\n  - action: click\n", "exactly one kind"},
		{"bad locator kind", "steps:\n  - action: click\n    locator: {aria: x}\n", "unknown locator kind 'aria'"},
		{"duplicate name", "steps:\n  - {name: a, action: back}\n  - {name: a, action: back}\n", "duplicate step name"},
		{"bad timeout", "steps:\n  - action: back\n    timeout: later\n", "invalid timeout"},
		{"undefined var", "steps:\n  - action: get\n    url: \"{{ .vars.base }}/\"\n", "undefined variable 'base'"},
		{"unknown reference", "steps:\n  - action: get\n    url: \"{{ .config.base }}\"\n", "unknown template reference '.config.base'"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runner.LoadScript([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestRunRendersTemplates(t *testing.T) {
	ft := newTransport()
	s, full := newSession(t, ft)
	env := func(k string) (string, bool) {
		if k == "SHOP_TOKEN" {
			return "tok-123", true
		}
		return "", false
	}

	report, err := runner.New(s, runner.WithLookup(env)).Run(context.Background(), []byte(`
name: templated
vars:
  base: https://shop.test
  user: {email: buyer@shop.test}
steps:
  - action: get
    url: "{{ .vars.base }}/login"
  - action: type
    locator: {id: email}
    text: "{{ .vars.user.email }}"
  - action: type
    locator: {id: token}
    text: '{{ secret "SHOP_TOKEN" }}'
`))
	require.NoError(t, err)
	assert.Equal(t, runner.StatusCompleted, report.OverallStatus)

	var urls, typed []string
	for _, cmd := range ft.sent {
		switch cmd.Name {
		case transport.Get:
			urls = append(urls, cmd.Params["url"].(string))
		case transport.SendKeysToElement:
			typed = append(typed, cmd.Params["text"].(string))
		}
	}
	assert.Equal(t, []string{"https://shop.test/login"}, urls)
	assert.Equal(t, []string{"buyer@shop.test", "tok-123"}, typed)
	assert.True(t, s.Secrets().IsTracked("tok-123"))
	require.NotEmpty(t, full.Records())
}

func TestRunFailsOnMissingSecret(t *testing.T) {
	ft := newTransport()
	s, _ := newSession(t, ft)
	none := func(string) (string, bool) { return "", false }

	report, err := runner.New(s, runner.WithLookup(none)).Run(context.Background(),
		[]byte("steps:\n  - action: get\n    url: '{{ secret \"BASE\" }}'\n"))
	require.Error(t, err)
	assert.Contains(t, report.Steps[0].Error, "secret 'BASE' not found")
	for _, cmd := range ft.sent {
		assert.NotEqual(t, transport.Get, cmd.Name, "a step whose templates fail must not run")
	}
}
