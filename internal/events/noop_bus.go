package events

import "github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"

// NoOpEventBus discards every event. It is used when export is disabled.
type NoOpEventBus struct{}

// NewNoOpEventBus returns a bus that discards every event.
func NewNoOpEventBus() events.Bus {
	return &NoOpEventBus{}
}

// Emit discards event.
func (n *NoOpEventBus) Emit(events.Event) {}

var _ events.Bus = (*NoOpEventBus)(nil)
