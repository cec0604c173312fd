package metrics

import (
	"errors"

	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
	seltracemetrics "github.com/gxo-labs/seltrace/pkg/seltrace/v1/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds the collectors shared by every session of a process.
type Collectors struct {
	CommandDuration  *prometheus.HistogramVec
	Commands         *prometheus.CounterVec
	Records          *prometheus.CounterVec
	SecretsRedacted  prometheus.Counter
	ScriptSteps      *prometheus.CounterVec
	ExportsPublished *prometheus.CounterVec
}

// NewCollectors creates the seltrace collectors and registers them with the
// provider's registry. Collectors already registered by an earlier session
// are reused. A nil provider yields unregistered collectors.
func NewCollectors(provider seltracemetrics.RegistryProvider, log seltracelog.Logger) *Collectors {
	c := &Collectors{
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "seltrace_command_duration_seconds", Help: "Duration of wire commands sent to the browser.", Buckets: prometheus.DefBuckets},
			[]string{"command"},
		),
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "seltrace_commands_total", Help: "Total number of wire commands by outcome."},
			[]string{"command", "status"},
		),
		Records: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "seltrace_records_total", Help: "Total number of dispatched event records by phase."},
			[]string{"phase"},
		),
		SecretsRedacted: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "seltrace_secrets_redacted_total", Help: "Total number of typed secrets masked in event records."},
		),
		ScriptSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "seltrace_script_steps_total", Help: "Total number of replayed script steps by outcome."},
			[]string{"action", "status"},
		),
		ExportsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "seltrace_exports_total", Help: "Total number of events published to an external sink by outcome."},
			[]string{"sink", "status"},
		),
	}
	if provider == nil || provider.Registry() == nil {
		return c
	}
	reg := provider.Registry()
	c.CommandDuration = register(reg, c.CommandDuration, log)
	c.Commands = register(reg, c.Commands, log)
	c.Records = register(reg, c.Records, log)
	c.SecretsRedacted = register(reg, c.SecretsRedacted, log)
	c.ScriptSteps = register(reg, c.ScriptSteps, log)
	c.ExportsPublished = register(reg, c.ExportsPublished, log)
	return c
}

func register[C prometheus.Collector](reg *prometheus.Registry, col C, log seltracelog.Logger) C {
	err := reg.Register(col)
	if err == nil {
		return col
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	if log != nil {
		log.Warnf("Failed to register metric collector: %v", err)
	}
	return col
}
