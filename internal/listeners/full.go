package listeners

import (
	"context"

	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
)

// FullRecorder keeps every dispatched record verbatim.
type FullRecorder struct {
	log recordLog
}

var (
	_ events.Listener = (*FullRecorder)(nil)
	_ events.Clearer  = (*FullRecorder)(nil)
)

// NewFullRecorder creates an empty full trace recorder.
func NewFullRecorder() *FullRecorder {
	return &FullRecorder{}
}

// Name returns the registry name of the listener.
func (r *FullRecorder) Name() string { return "full" }

// Before logs the Before record.
func (r *FullRecorder) Before(_ context.Context, rec events.EventRecord) error {
	r.log.append(rec)
	return nil
}

// After logs the After record.
func (r *FullRecorder) After(_ context.Context, rec events.EventRecord) error {
	r.log.append(rec)
	return nil
}

// OnException logs the Exception record.
func (r *FullRecorder) OnException(_ context.Context, rec events.EventRecord, _ error) error {
	r.log.append(rec)
	return nil
}

// Records returns a copy of the log in dispatch order.
func (r *FullRecorder) Records() []events.EventRecord { return r.log.snapshot() }

// Clear empties the log between test cases.
func (r *FullRecorder) Clear() { r.log.clear() }
