package events

import (
	"github.com/gxo-labs/seltrace/internal/listeners"
	"github.com/gxo-labs/seltrace/internal/metrics"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/plugin"
)

func init() {
	listeners.Register("metrics", func(deps plugin.Dependencies) (events.Listener, error) {
		return NewMetricsListener(metrics.NewCollectors(deps.Metrics, deps.Logger)), nil
	})
	listeners.Register("export", func(deps plugin.Dependencies) (events.Listener, error) {
		return NewExportListener(deps.Bus), nil
	})
}
