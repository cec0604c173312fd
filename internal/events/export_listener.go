package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/recorder"
)

// ExportListener emits every dispatched record onto a bus. The live return
// object is never exported.
type ExportListener struct {
	events.BaseListener
	bus events.Bus

	mu        sync.RWMutex
	sessionID string
}

var (
	_ events.Listener       = (*ExportListener)(nil)
	_ recorder.SourceBinder = (*ExportListener)(nil)
)

// NewExportListener emits onto bus, or discards when bus is nil.
func NewExportListener(bus events.Bus) *ExportListener {
	if bus == nil {
		bus = NewNoOpEventBus()
	}
	return &ExportListener{bus: bus}
}

// Name returns the registry name of the listener.
func (l *ExportListener) Name() string { return "export" }

// BindSource picks up the session id when the source exposes one.
func (l *ExportListener) BindSource(src recorder.Source) {
	if s, ok := src.(interface{ ID() string }); ok {
		l.mu.Lock()
		l.sessionID = s.ID()
		l.mu.Unlock()
	}
}

// Before emits the record on the bus.
func (l *ExportListener) Before(_ context.Context, rec events.EventRecord) error {
	l.emit(events.RecordDispatched, rec, nil)
	return nil
}

// After emits the record on the bus.
func (l *ExportListener) After(_ context.Context, rec events.EventRecord) error {
	l.emit(events.RecordDispatched, rec, nil)
	return nil
}

// OnException emits the record tagged with the Go type of cause.
func (l *ExportListener) OnException(_ context.Context, rec events.EventRecord, cause error) error {
	var payload map[string]interface{}
	if cause != nil {
		payload = map[string]interface{}{"error_type": fmt.Sprintf("%T", cause)}
	}
	l.emit(events.ExceptionDispatched, rec, payload)
	return nil
}

func (l *ExportListener) emit(t events.EventType, rec events.EventRecord, payload map[string]interface{}) {
	rec.ReturnObject = nil
	l.mu.RLock()
	id := l.sessionID
	l.mu.RUnlock()
	l.bus.Emit(events.Event{
		Type:      t,
		Timestamp: time.Now(),
		SessionID: id,
		Record:    rec,
		Payload:   payload,
	})
}
