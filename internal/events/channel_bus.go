// Package events carries dispatched records out of the command path: an
// in-process bus, a listener feeding it, a NATS forwarder draining it and a
// listener maintaining Prometheus counters.
package events

import (
	"sync"

	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
)

const defaultBufferSize = 256

// ChannelEventBus implements events.Bus over a buffered channel. Emit never
// blocks: when the buffer is full the event is dropped and a warning logged.
type ChannelEventBus struct {
	channel chan events.Event
	log     seltracelog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ events.Bus = (*ChannelEventBus)(nil)

// NewChannelEventBus creates a bus holding up to bufferSize pending events.
// It panics if log is nil.
func NewChannelEventBus(bufferSize int, log seltracelog.Logger) *ChannelEventBus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if log == nil {
		panic("ChannelEventBus requires a non-nil logger")
	}
	bus := &ChannelEventBus{
		channel: make(chan events.Event, bufferSize),
		log:     log.With("component", "ChannelEventBus"),
	}
	bus.log.Debugf("ChannelEventBus initialized with buffer size %d", bufferSize)
	return bus
}

// Emit queues event without blocking. Events are dropped when the buffer
// is full or the bus is closed.
func (c *ChannelEventBus) Emit(event events.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.log.Debugf("Event bus closed, dropping event type '%s'", event.Type)
		return
	}
	select {
	case c.channel <- event:
	default:
		c.log.Warnf("Event channel buffer full, dropping event type '%s' for %s", event.Type, event.Record.Command)
	}
}

// Channel returns the receive side for consumers such as NATSForwarder.
func (c *ChannelEventBus) Channel() <-chan events.Event {
	return c.channel
}

// Close stops accepting events and closes the channel so consumers drain
// what is left and return. It is safe to call more than once.
func (c *ChannelEventBus) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.channel)
	c.log.Debugf("Closed ChannelEventBus channel")
}
