package listeners

import (
	"context"
	"fmt"
	"sync"
	"time"

	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/recorder"
)

// ScreenshotRecorder logs trigger commands before they run and, when
// capture is enabled, takes a screenshot and correlates it with the
// triggering record in the test execution recorder.
type ScreenshotRecorder struct {
	events.BaseListener

	log      recordLog
	mu       sync.Mutex
	memory   locatorMemory
	capture  bool
	capturer recorder.ScreenshotCapturer
	recorder recorder.TestExecutionRecorder
	logger   seltracelog.Logger
}

var (
	_ events.Listener       = (*ScreenshotRecorder)(nil)
	_ recorder.SourceBinder = (*ScreenshotRecorder)(nil)
)

// NewScreenshotRecorder creates a screenshotting recorder. capturer and rec
// are required only when capture is enabled.
func NewScreenshotRecorder(log seltracelog.Logger, capture bool, capturer recorder.ScreenshotCapturer, rec recorder.TestExecutionRecorder) (*ScreenshotRecorder, error) {
	if log == nil {
		return nil, seltraceerrors.NewConfigError("screenshot recorder requires a logger", nil)
	}
	if capture && capturer == nil {
		return nil, seltraceerrors.NewConfigError("screenshot capture enabled without a capturer", nil)
	}
	if capture && rec == nil {
		return nil, seltraceerrors.NewConfigError("screenshot capture enabled without a test execution recorder", nil)
	}
	return &ScreenshotRecorder{
		capture:  capture,
		capturer: capturer,
		recorder: rec,
		logger:   log.With("component", "ScreenshotRecorder"),
	}, nil
}

// Name returns the registry name of the listener.
func (r *ScreenshotRecorder) Name() string { return "screenshot" }

// BindSource hands the observed session to the capturer when it needs one.
func (r *ScreenshotRecorder) BindSource(src recorder.Source) {
	if b, ok := r.capturer.(recorder.SourceBinder); ok {
		b.BindSource(src)
	}
}

// Before handles trigger records. A record is logged, and a repeated
// sendKeys locator remembered, only once the capture has been recorded.
func (r *ScreenshotRecorder) Before(ctx context.Context, rec events.EventRecord) error {
	if !IsTrigger(rec) {
		return nil
	}
	r.mu.Lock()
	admitted := r.memory.admit(rec)
	r.mu.Unlock()
	if !admitted {
		r.logger.Debugf("Suppressing screenshot for repeated sendKeys to %s", rec.Locator)
		return nil
	}
	if r.capture {
		if err := r.captureFor(ctx, rec); err != nil {
			return err
		}
	}
	r.log.append(rec)
	r.mu.Lock()
	r.memory.remember(rec)
	r.mu.Unlock()
	return nil
}

func (r *ScreenshotRecorder) captureFor(ctx context.Context, rec events.EventRecord) error {
	path, err := r.capturer.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture screenshot before %s: %w", rec.Command, err)
	}
	shot := recorder.ScreenshotRecord{
		SequenceRef: rec.Sequence,
		Path:        path,
		TraceID:     r.recorder.TraceID(),
		Timestamp:   time.Now(),
	}
	if err := r.recorder.AppendScreenshotRecord(ctx, shot); err != nil {
		return fmt.Errorf("record screenshot '%s': %w", path, err)
	}
	r.logger.Debugf("Captured screenshot %s for record #%d %s", path, rec.Sequence, rec.Command)
	return nil
}

// Records returns a copy of the logged trigger records.
func (r *ScreenshotRecorder) Records() []events.EventRecord { return r.log.snapshot() }

// Clear empties the log and forgets the last sendKeys locator.
func (r *ScreenshotRecorder) Clear() {
	r.log.clear()
	r.mu.Lock()
	r.memory = locatorMemory{}
	r.mu.Unlock()
}
