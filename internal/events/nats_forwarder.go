package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gxo-labs/seltrace/internal/metrics"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix prefixes the subjects events are published on.
const DefaultSubjectPrefix = "seltrace.events"

// Publisher is the part of a NATS connection the forwarder needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// NATSForwarder drains a ChannelEventBus and publishes each event as JSON on
// <prefix>.<command>.
type NATSForwarder struct {
	bus     *ChannelEventBus
	pub     Publisher
	prefix  string
	metrics *metrics.Collectors
	log     seltracelog.Logger
}

// NewNATSForwarder panics on a nil bus, publisher or logger. collectors may
// be nil.
func NewNATSForwarder(bus *ChannelEventBus, pub Publisher, prefix string, collectors *metrics.Collectors, log seltracelog.Logger) *NATSForwarder {
	if bus == nil || pub == nil || log == nil {
		panic("NATSForwarder requires a non-nil bus, publisher and logger")
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSForwarder{
		bus:     bus,
		pub:     pub,
		prefix:  prefix,
		metrics: collectors,
		log:     log.With("component", "NATSForwarder"),
	}
}

// ConnectNATS dials url with reconnects enabled.
func ConnectNATS(url, name string, timeout time.Duration) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(timeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// Subject returns the subject ev is published on.
func (f *NATSForwarder) Subject(ev events.Event) string {
	return f.prefix + "." + string(ev.Record.Command)
}

// Start publishes events until the bus is closed or ctx is done. Publish
// failures are logged and counted; they never stop the forwarder.
func (f *NATSForwarder) Start(ctx context.Context) {
	f.log.Debugf("Starting NATS forwarder on prefix '%s'", f.prefix)
	for {
		select {
		case ev, ok := <-f.bus.Channel():
			if !ok {
				f.log.Debugf("Event bus channel closed, stopping forwarder")
				return
			}
			f.forward(ev)
		case <-ctx.Done():
			f.log.Debugf("Context cancelled, stopping forwarder")
			return
		}
	}
}

func (f *NATSForwarder) forward(ev events.Event) {
	status := "success"
	defer func() {
		if f.metrics != nil {
			f.metrics.ExportsPublished.WithLabelValues("nats", status).Inc()
		}
	}()

	data, err := json.Marshal(ev)
	if err != nil {
		status = "failure"
		f.log.Warnf("Failed to encode event for %s: %v", ev.Record.Command, err)
		return
	}
	subject := f.Subject(ev)
	if err := f.pub.Publish(subject, data); err != nil {
		status = "failure"
		f.log.Warnf("Failed to publish event on '%s': %v", subject, err)
	}
}
