package listeners

import (
	"context"
	"fmt"
	"sync"
	"time"

	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/recorder"
)

// StepRecorder turns trigger commands into structured test steps. It tracks
// its own last sendKeys locator, independent of ScreenshotRecorder.
type StepRecorder struct {
	events.BaseListener

	log      recordLog
	mu       sync.Mutex
	memory   locatorMemory
	source   recorder.Source
	recorder recorder.TestExecutionRecorder
}

var (
	_ events.Listener       = (*StepRecorder)(nil)
	_ recorder.SourceBinder = (*StepRecorder)(nil)
)

// NewStepRecorder creates a step recorder appending to rec.
func NewStepRecorder(rec recorder.TestExecutionRecorder) (*StepRecorder, error) {
	if rec == nil {
		return nil, seltraceerrors.NewConfigError("step recorder requires a test execution recorder", nil)
	}
	return &StepRecorder{recorder: rec}, nil
}

// Name returns the registry name of the listener.
func (r *StepRecorder) Name() string { return "step" }

// BindSource sets the session queried for the current page URL.
func (r *StepRecorder) BindSource(src recorder.Source) {
	r.mu.Lock()
	r.source = src
	r.mu.Unlock()
}

// Before appends a step for trigger records, stamped with the current URL.
func (r *StepRecorder) Before(ctx context.Context, rec events.EventRecord) error {
	if !IsTrigger(rec) {
		return nil
	}
	r.mu.Lock()
	admitted := r.memory.admit(rec)
	src := r.source
	r.mu.Unlock()
	if !admitted {
		return nil
	}

	var url string
	if src != nil {
		var err error
		if url, err = src.CurrentURLUninstrumented(ctx); err != nil {
			return fmt.Errorf("read current url for step #%d: %w", rec.Sequence, err)
		}
	}
	err := r.recorder.AppendStepRecord(ctx, recorder.StepRecord{
		SequenceRef: rec.Sequence,
		URL:         url,
		Command:     string(rec.Command),
		Locator:     rec.Locator,
		TraceID:     r.recorder.TraceID(),
		Timestamp:   time.Now(),
	})
	if err != nil {
		return err
	}
	r.log.append(rec)
	r.mu.Lock()
	r.memory.remember(rec)
	r.mu.Unlock()
	return nil
}

// Records returns a copy of the logged trigger records.
func (r *StepRecorder) Records() []events.EventRecord { return r.log.snapshot() }

// Clear empties the log and forgets the last sendKeys locator.
func (r *StepRecorder) Clear() {
	r.log.clear()
	r.mu.Lock()
	r.memory = locatorMemory{}
	r.mu.Unlock()
}
