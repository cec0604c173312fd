package metrics

import (
	seltracemetrics "github.com/gxo-labs/seltrace/pkg/seltrace/v1/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRegistryProvider implements RegistryProvider with a private
// Prometheus registry.
type PrometheusRegistryProvider struct {
	registry *prometheus.Registry
}

// NewPrometheusRegistryProvider creates a provider with an empty registry.
func NewPrometheusRegistryProvider() *PrometheusRegistryProvider {
	return &PrometheusRegistryProvider{registry: prometheus.NewRegistry()}
}

// Registry returns the wrapped registry.
func (p *PrometheusRegistryProvider) Registry() *prometheus.Registry {
	return p.registry
}

var _ seltracemetrics.RegistryProvider = (*PrometheusRegistryProvider)(nil)
