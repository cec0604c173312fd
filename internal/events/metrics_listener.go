package events

import (
	"context"

	"github.com/gxo-labs/seltrace/internal/metrics"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
)

// MetricsListener counts dispatched records by phase.
type MetricsListener struct {
	events.BaseListener
	collectors *metrics.Collectors
}

var _ events.Listener = (*MetricsListener)(nil)

// NewMetricsListener panics if collectors is nil.
func NewMetricsListener(collectors *metrics.Collectors) *MetricsListener {
	if collectors == nil {
		panic("MetricsListener requires non-nil collectors")
	}
	return &MetricsListener{collectors: collectors}
}

// Name returns the registry name of the listener.
func (l *MetricsListener) Name() string { return "metrics" }

// Before counts the record.
func (l *MetricsListener) Before(_ context.Context, rec events.EventRecord) error {
	l.collectors.Records.WithLabelValues(string(rec.Phase)).Inc()
	return nil
}

// After counts the record.
func (l *MetricsListener) After(_ context.Context, rec events.EventRecord) error {
	l.collectors.Records.WithLabelValues(string(rec.Phase)).Inc()
	return nil
}

// OnException counts the record.
func (l *MetricsListener) OnException(_ context.Context, rec events.EventRecord, _ error) error {
	l.collectors.Records.WithLabelValues(string(rec.Phase)).Inc()
	return nil
}
