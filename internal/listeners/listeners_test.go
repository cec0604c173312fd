package listeners_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/gxo-labs/seltrace/internal/dispatch"
	"github.com/gxo-labs/seltrace/internal/listeners"
	"github.com/gxo-labs/seltrace/internal/logger"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/plugin"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu          sync.Mutex
	steps       []recorder.StepRecord
	screenshots []recorder.ScreenshotRecord
	traceID     string
}

func (f *fakeRecorder) AppendScreenshotRecord(_ context.Context, rec recorder.ScreenshotRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.screenshots = append(f.screenshots, rec)
	return nil
}

func (f *fakeRecorder) AppendStepRecord(_ context.Context, rec recorder.StepRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, rec)
	return nil
}

func (f *fakeRecorder) TraceID() string               { return f.traceID }
func (f *fakeRecorder) SetTraceID(id string)          { f.traceID = id }
func (f *fakeRecorder) Reset(_ context.Context) error { f.steps, f.screenshots = nil, nil; return nil }

type fakeCapturer struct {
	n   int
	err error
	src recorder.Source
}

func (c *fakeCapturer) Capture(context.Context) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.n++
	return fmt.Sprintf("shots/%d.png", c.n), nil
}

func (c *fakeCapturer) BindSource(src recorder.Source) { c.src = src }

type fakeSource struct{ url string }

func (s fakeSource) CurrentURLUninstrumented(context.Context) (string, error) {
	return s.url, nil
}

func (s fakeSource) ScreenshotUninstrumented(context.Context) ([]byte, error) {
	return []byte("png"), nil
}

type flakySource struct {
	url   string
	fails int
}

func (s *flakySource) CurrentURLUninstrumented(context.Context) (string, error) {
	if s.fails > 0 {
		s.fails--
		return "", errors.New("target closed")
	}
	return s.url, nil
}

func (s *flakySource) ScreenshotUninstrumented(context.Context) ([]byte, error) {
	return []byte("png"), nil
}

type fixture struct {
	dispatcher *dispatch.Dispatcher
	full       *listeners.FullRecorder
	shots      *listeners.ScreenshotRecorder
	steps      *listeners.StepRecorder
	recorder   *fakeRecorder
	capturer   *fakeCapturer
}

func setupFixture(t *testing.T, capture bool) *fixture {
	t.Helper()
	log := logger.NewLogger("error", "text", io.Discard)
	rec := &fakeRecorder{traceID: "0123456789abcdef"}
	capt := &fakeCapturer{}

	shots, err := listeners.NewScreenshotRecorder(log, capture, capt, rec)
	require.NoError(t, err)
	steps, err := listeners.NewStepRecorder(rec)
	require.NoError(t, err)
	src := fakeSource{url: "https://example.test/login"}
	shots.BindSource(src)
	steps.BindSource(src)

	full := listeners.NewFullRecorder()
	return &fixture{
		dispatcher: dispatch.NewDispatcher(log, full, shots, steps),
		full:       full,
		shots:      shots,
		steps:      steps,
		recorder:   rec,
		capturer:   capt,
	}
}

func (f *fixture) succeed(t *testing.T, cmd events.Command, p events.Params) {
	t.Helper()
	ctx := context.Background()
	before, err := f.dispatcher.Before(ctx, cmd, p)
	require.NoError(t, err)
	_, err = f.dispatcher.After(ctx, before, events.Result{})
	require.NoError(t, err)
}

func (f *fixture) fail(t *testing.T, cmd events.Command, p events.Params, cause error) {
	t.Helper()
	ctx := context.Background()
	_, err := f.dispatcher.Before(ctx, cmd, p)
	require.NoError(t, err)
	_, _, err = f.dispatcher.OnException(ctx, cause)
	require.NoError(t, err)
}

func (f *fixture) counts() [3]int {
	return [3]int{len(f.full.Records()), len(f.shots.Records()), len(f.steps.Records())}
}

func TestClickSucceeds(t *testing.T) {
	f := setupFixture(t, true)
	f.succeed(t, events.ElementClick, events.Params{Locator: `By.id("someId")`})

	assert.Equal(t, [3]int{2, 1, 1}, f.counts())
	require.Len(t, f.recorder.screenshots, 1)
	assert.Equal(t, 0, f.recorder.screenshots[0].SequenceRef)
	assert.Equal(t, "shots/1.png", f.recorder.screenshots[0].Path)
	assert.Equal(t, "0123456789abcdef", f.recorder.screenshots[0].TraceID)

	require.Len(t, f.recorder.steps, 1)
	step := f.recorder.steps[0]
	assert.Equal(t, "https://example.test/login", step.URL)
	assert.Equal(t, "webElement.click", step.Command)
	assert.Equal(t, `By.id("someId")`, step.Locator)
}

func TestClickFails(t *testing.T) {
	f := setupFixture(t, true)
	f.fail(t, events.ElementClick, events.Params{Locator: `By.id("someId")`},
		seltraceerrors.NewUnreachableBrowserError("gone", nil))

	assert.Equal(t, [3]int{2, 1, 1}, f.counts())
	full := f.full.Records()
	assert.Equal(t, events.BeforeAction, full[0].Phase)
	assert.Equal(t, events.Exception, full[1].Phase)
	for _, r := range full {
		assert.NotEqual(t, events.AfterAction, r.Phase)
	}
}

func TestGatherCommandsOnlyReachFullRecorder(t *testing.T) {
	f := setupFixture(t, true)
	f.succeed(t, events.ElementIsSelected, events.Params{Locator: `By.id("someId")`})
	assert.Equal(t, [3]int{2, 0, 0}, f.counts())

	f.fail(t, events.DriverGetTitle, events.Params{}, errors.New("boom"))
	assert.Equal(t, [3]int{4, 0, 0}, f.counts())
	assert.Empty(t, f.recorder.screenshots)
	assert.Empty(t, f.recorder.steps)
}

func TestSendKeysDeduplication(t *testing.T) {
	f := setupFixture(t, true)
	user := events.Params{Locator: `By.id("user")`, Param1: "a"}

	f.succeed(t, events.ElementSendKeys, user)
	f.succeed(t, events.ElementSendKeys, user)
	f.succeed(t, events.ElementSendKeys, user)
	assert.Len(t, f.recorder.screenshots, 1)
	assert.Len(t, f.recorder.steps, 1)
	assert.Len(t, f.full.Records(), 6)

	f.succeed(t, events.ElementSendKeys, events.Params{Locator: `By.id("pass")`})
	assert.Len(t, f.recorder.screenshots, 2)
	assert.Len(t, f.recorder.steps, 2)
}

func TestSendKeysMemoryResetByOtherTrigger(t *testing.T) {
	f := setupFixture(t, true)
	user := events.Params{Locator: `By.id("user")`}

	f.succeed(t, events.ElementSendKeys, user)
	f.succeed(t, events.ElementClick, events.Params{Locator: `By.id("next")`})
	f.succeed(t, events.ElementSendKeys, user)
	assert.Len(t, f.recorder.screenshots, 3)
	assert.Len(t, f.recorder.steps, 3)

	f.succeed(t, events.ElementGetText, user)
	f.succeed(t, events.ElementSendKeys, user)
	assert.Len(t, f.recorder.steps, 3, "a gather command is not a trigger and does not reset the memory")
}

func TestDedupMemoriesAreIndependent(t *testing.T) {
	f := setupFixture(t, false)
	ctx := context.Background()
	rec := events.EventRecord{Phase: events.BeforeAction, Command: events.ElementSendKeys, Locator: `By.id("user")`}

	// Only the step recorder sees the first sendKeys.
	require.NoError(t, f.steps.Before(ctx, rec))
	require.NoError(t, f.steps.Before(ctx, rec))
	assert.Len(t, f.steps.Records(), 1)

	require.NoError(t, f.shots.Before(ctx, rec))
	assert.Len(t, f.shots.Records(), 1, "the screenshot recorder does not share the step recorder's memory")
}

func TestCaptureDisabled(t *testing.T) {
	f := setupFixture(t, false)
	f.succeed(t, events.DriverGet, events.Params{Param1: "https://example.test"})

	assert.Equal(t, [3]int{2, 1, 1}, f.counts())
	assert.Empty(t, f.recorder.screenshots)
	assert.Zero(t, f.capturer.n)
}

func TestExecuteScriptTrigger(t *testing.T) {
	f := setupFixture(t, true)
	f.succeed(t, events.DriverExecuteScript, events.Params{Param1: "return document.title"})
	assert.Equal(t, [3]int{2, 0, 0}, f.counts())

	f.succeed(t, events.DriverExecuteScript, events.Params{Param1: "arguments[0].click()"})
	assert.Equal(t, [3]int{4, 1, 1}, f.counts())
}

func TestTriggerSet(t *testing.T) {
	triggers := []events.Command{
		events.DriverGet, events.NavigationBack, events.NavigationForward, events.DriverClose,
		events.ElementClick, events.ElementClear, events.ElementSubmit, events.ElementSendKeys,
		events.AlertAccept, events.AlertDismiss, events.AlertSendKeys,
	}
	for _, cmd := range triggers {
		assert.True(t, listeners.IsTrigger(events.EventRecord{Command: cmd}), cmd)
	}
	for _, cmd := range []events.Command{events.NavigationRefresh, events.DriverQuit, events.ElementGetText, events.DriverFindElement} {
		assert.False(t, listeners.IsTrigger(events.EventRecord{Command: cmd}), cmd)
	}
}

func TestCaptureFailurePropagates(t *testing.T) {
	f := setupFixture(t, true)
	f.capturer.err = errors.New("disk full")

	_, err := f.dispatcher.Before(context.Background(), events.ElementClick, events.Params{})
	require.Error(t, err)
	var le *seltraceerrors.ListenerError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "screenshot", le.Listener)
	assert.Empty(t, f.steps.Records(), "listeners after the failing one are not invoked")
}

func TestFailedCaptureDoesNotSuppressRetriedSendKeys(t *testing.T) {
	f := setupFixture(t, true)
	ctx := context.Background()
	user := events.Params{Locator: `By.id("user")`, Param1: "a"}

	f.capturer.err = errors.New("disk full")
	_, err := f.dispatcher.Before(ctx, events.ElementSendKeys, user)
	require.Error(t, err)
	assert.Empty(t, f.recorder.screenshots)
	assert.Empty(t, f.shots.Records(), "a trigger whose capture failed is not logged")

	f.capturer.err = nil
	f.succeed(t, events.ElementSendKeys, user)
	require.Len(t, f.recorder.screenshots, 1)
	assert.Len(t, f.shots.Records(), 1)
	assert.Len(t, f.recorder.steps, 1)

	f.succeed(t, events.ElementSendKeys, user)
	assert.Len(t, f.recorder.screenshots, 1, "a successful capture arms the memory")
}

func TestFailedURLLookupDoesNotSuppressRetriedSendKeys(t *testing.T) {
	rec := &fakeRecorder{}
	steps, err := listeners.NewStepRecorder(rec)
	require.NoError(t, err)
	steps.BindSource(&flakySource{url: "https://example.test/form", fails: 1})

	ctx := context.Background()
	sendKeys := events.EventRecord{Phase: events.BeforeAction, Command: events.ElementSendKeys, Locator: `By.name("q")`}

	require.Error(t, steps.Before(ctx, sendKeys))
	assert.Empty(t, rec.steps)
	assert.Empty(t, steps.Records())

	require.NoError(t, steps.Before(ctx, sendKeys))
	require.Len(t, rec.steps, 1)
	assert.Equal(t, "https://example.test/form", rec.steps[0].URL)
	assert.Len(t, steps.Records(), 1)

	require.NoError(t, steps.Before(ctx, sendKeys))
	assert.Len(t, rec.steps, 1)
}

func TestClearEmptiesLogs(t *testing.T) {
	f := setupFixture(t, false)
	f.succeed(t, events.ElementClick, events.Params{})
	f.full.Clear()
	f.shots.Clear()
	f.steps.Clear()
	assert.Equal(t, [3]int{0, 0, 0}, f.counts())
}

func TestBindSourceReachesCapturer(t *testing.T) {
	f := setupFixture(t, true)
	assert.NotNil(t, f.capturer.src)
}

func TestScreenshotRecorderValidation(t *testing.T) {
	log := logger.NewLogger("error", "text", io.Discard)
	_, err := listeners.NewScreenshotRecorder(log, true, nil, &fakeRecorder{})
	var ce *seltraceerrors.ConfigError
	assert.ErrorAs(t, err, &ce)

	_, err = listeners.NewScreenshotRecorder(log, true, &fakeCapturer{}, nil)
	assert.ErrorAs(t, err, &ce)

	_, err = listeners.NewScreenshotRecorder(log, false, nil, nil)
	assert.NoError(t, err)

	_, err = listeners.NewStepRecorder(nil)
	assert.ErrorAs(t, err, &ce)
}

func TestRegistry(t *testing.T) {
	reg := listeners.NewStaticRegistry()
	factory := func(plugin.Dependencies) (events.Listener, error) { return listeners.NewFullRecorder(), nil }

	require.NoError(t, reg.Register("full", factory))
	assert.Error(t, reg.Register("full", factory), "duplicates are rejected")
	assert.Error(t, reg.Register("", factory))
	assert.Error(t, reg.Register("nil", nil))

	_, err := reg.Get("missing")
	var nf *seltraceerrors.ListenerNotFoundError
	assert.ErrorAs(t, err, &nf)
	assert.Equal(t, []string{"full"}, reg.List())
}

func TestBuildDefaultListeners(t *testing.T) {
	deps := plugin.Dependencies{
		Logger:   logger.NewLogger("error", "text", io.Discard),
		Recorder: &fakeRecorder{},
	}
	ls, err := listeners.Build(listeners.DefaultRegistry, []string{"full", "screenshot", "step"}, deps)
	require.NoError(t, err)
	require.Len(t, ls, 3)
	assert.Equal(t, "full", ls[0].Name())
	assert.Equal(t, "screenshot", ls[1].Name())
	assert.Equal(t, "step", ls[2].Name())

	deps.Recorder = nil
	_, err = listeners.Build(listeners.DefaultRegistry, []string{"step"}, deps)
	assert.Error(t, err)
}
