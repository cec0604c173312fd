package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegistryProvider gives access to the registry holding seltrace command and
// event metrics, so callers can expose it however they like.
type RegistryProvider interface {
	// Registry returns the Prometheus registry containing seltrace metrics.
	Registry() *prometheus.Registry
}
